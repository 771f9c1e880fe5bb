package airdrop_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchain/core/state"
	"marketchain/native/airdrop"
	"marketchain/native/ledger"
	"marketchain/native/transferproxy"
	"marketchain/storage"
)

var owner = addr(1)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newHarness(t *testing.T) (*airdrop.Engine, *ledger.Engine, [20]byte) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())

	ledgerEng := ledger.NewEngine()
	ledgerEng.SetState(manager)
	ledgerEng.SetTransferAgent(transferproxy.Address)

	proxyEng := transferproxy.NewEngine(ledgerEng)
	proxyEng.SetState(manager)
	proxyEng.SetOwner(owner)
	require.NoError(t, proxyEng.SetOperator(owner, airdrop.Address, true))

	airdropEng := airdrop.NewEngine(ledgerEng, proxyEng)
	airdropEng.SetState(manager)
	airdropEng.SetOwner(owner)

	collection, err := ledgerEng.CreateCollection(owner, "Airdrop Test", "DRP", "", false)
	require.NoError(t, err)
	_, err = ledgerEng.CreateToken(owner, collection.Address, 1, big.NewInt(100), owner, "", [20]byte{}, 0)
	require.NoError(t, err)
	return airdropEng, ledgerEng, collection.Address
}

func TestCreateIsOwnerOnly(t *testing.T) {
	airdropEng, _, asset := newHarness(t)

	_, err := airdropEng.Create(addr(2), asset, 1, big.NewInt(5))
	require.ErrorIs(t, err, airdrop.ErrNotOwner)
}

func TestCreateRejectsZeroAmount(t *testing.T) {
	airdropEng, _, asset := newHarness(t)

	_, err := airdropEng.Create(owner, asset, 1, big.NewInt(0))
	require.ErrorIs(t, err, airdrop.ErrInvalidAmount)
}

func TestCreatePoolsUnits(t *testing.T) {
	airdropEng, ledgerEng, asset := newHarness(t)

	dropID, err := airdropEng.Create(owner, asset, 1, big.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, uint64(1), dropID)

	held, err := ledgerEng.BalanceOf(asset, 1, airdrop.Address)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), held)

	drop, err := airdropEng.Drop(dropID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), drop.Amount)
	require.Equal(t, big.NewInt(0), drop.Claimed)
}

func TestClaimHandsOutExactlyOneUnit(t *testing.T) {
	airdropEng, ledgerEng, asset := newHarness(t)
	claimer := addr(2)

	dropID, err := airdropEng.Create(owner, asset, 1, big.NewInt(5))
	require.NoError(t, err)

	require.NoError(t, airdropEng.Claim(claimer, dropID))

	balance, err := ledgerEng.BalanceOf(asset, 1, claimer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), balance)

	drop, err := airdropEng.Drop(dropID)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), drop.Claimed)
}

func TestClaimOncePerAddress(t *testing.T) {
	airdropEng, _, asset := newHarness(t)
	claimer := addr(2)

	dropID, err := airdropEng.Create(owner, asset, 1, big.NewInt(5))
	require.NoError(t, err)

	require.NoError(t, airdropEng.Claim(claimer, dropID))
	require.ErrorIs(t, airdropEng.Claim(claimer, dropID), airdrop.ErrAlreadyClaimed)
}

func TestClaimClosesAtCapacity(t *testing.T) {
	airdropEng, _, asset := newHarness(t)

	dropID, err := airdropEng.Create(owner, asset, 1, big.NewInt(2))
	require.NoError(t, err)

	require.NoError(t, airdropEng.Claim(addr(2), dropID))
	require.NoError(t, airdropEng.Claim(addr(3), dropID))
	require.ErrorIs(t, airdropEng.Claim(addr(4), dropID), airdrop.ErrClosed)
}

func TestClaimUnknownDrop(t *testing.T) {
	airdropEng, _, _ := newHarness(t)

	require.ErrorIs(t, airdropEng.Claim(addr(2), 99), airdrop.ErrNotFound)
}
