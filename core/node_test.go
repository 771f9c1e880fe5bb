package core_test

import (
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"marketchain/core"
	"marketchain/core/events"
	"marketchain/native/airdrop"
	"marketchain/native/gift"
	"marketchain/native/market"
	"marketchain/storage"
)

var nodeOwner = addr(1)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func keccak(secret []byte) [32]byte {
	return ethcrypto.Keccak256Hash(secret)
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

func newNode(t *testing.T) *core.Node {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), nodeOwner)
	require.NoError(t, err)
	return node
}

// listing creates a collection with one token minted to the seller.
func listing(t *testing.T, node *core.Node, seller [20]byte, supply int64) [20]byte {
	t.Helper()
	collection, err := node.CreateCollection(seller, "Node Test", "NDT", "", false)
	require.NoError(t, err)
	_, err = node.CreateToken(seller, collection.Address, 1, big.NewInt(supply), seller, "", [20]byte{}, 0)
	require.NoError(t, err)
	return collection.Address
}

func TestNewNodeRegistersCustodyOperators(t *testing.T) {
	node := newNode(t)

	for _, module := range [][20]byte{market.Address, gift.Address, airdrop.Address} {
		operator, err := node.ProxyIsOperator(module)
		require.NoError(t, err)
		require.True(t, operator)
	}
}

func TestFundAccountOwnerOnly(t *testing.T) {
	node := newNode(t)

	err := node.FundAccount(addr(2), addr(2), big.NewInt(100))
	require.ErrorIs(t, err, core.ErrNotOwner)

	require.NoError(t, node.FundAccount(nodeOwner, addr(2), big.NewInt(100)))
	balance, err := node.Balance(addr(2))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), balance)
}

func TestBuyFlowEndToEnd(t *testing.T) {
	node := newNode(t)
	seller := addr(2)
	buyer := addr(3)
	asset := listing(t, node, seller, 10)

	require.NoError(t, node.FundAccount(nodeOwner, buyer, big.NewInt(1000)))
	require.NoError(t, node.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(50)))

	// 4 units at 50 each.
	require.NoError(t, node.BuyItem(buyer, asset, 1, seller, big.NewInt(4), big.NewInt(200)))

	balance, err := node.BalanceOf(asset, 1, buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4), balance)

	buyerFunds, err := node.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(800), buyerFunds)

	// 300 bps of 200 stays with the market, the rest reaches the seller.
	sellerFunds, err := node.Balance(seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(194), sellerFunds)

	fees, err := node.FeeBalance()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(6), fees)
}

func TestFailedCallLeavesNoTrace(t *testing.T) {
	node := newNode(t)
	seller := addr(2)
	buyer := addr(3)
	asset := listing(t, node, seller, 10)

	require.NoError(t, node.FundAccount(nodeOwner, buyer, big.NewInt(1000)))
	require.NoError(t, node.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(50)))

	// Wrong value: the whole call rolls back, escrow and balances untouched.
	err := node.BuyItem(buyer, asset, 1, seller, big.NewInt(4), big.NewInt(199))
	require.ErrorIs(t, err, market.ErrIncorrectValue)

	trade, err := node.Trade(asset, 1, seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4), trade.Amount)

	buyerFunds, err := node.Balance(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), buyerFunds)

	escrowed, err := node.BalanceOf(asset, 1, market.Address)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4), escrowed)
}

func TestEventsForwardedOnlyOnCommit(t *testing.T) {
	node := newNode(t)
	seller := addr(2)
	buyer := addr(3)
	asset := listing(t, node, seller, 10)

	require.NoError(t, node.FundAccount(nodeOwner, buyer, big.NewInt(1000)))
	require.NoError(t, node.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(50)))

	recorder := &recordingEmitter{}
	node.SetEmitter(recorder)

	err := node.BuyItem(buyer, asset, 1, seller, big.NewInt(4), big.NewInt(199))
	require.Error(t, err)
	require.Empty(t, recorder.types)

	require.NoError(t, node.BuyItem(buyer, asset, 1, seller, big.NewInt(4), big.NewInt(200)))
	require.NotEmpty(t, recorder.types)
	require.Contains(t, recorder.types, market.EventTypeTradeExecuted)
}

func TestLinkFlowThroughNode(t *testing.T) {
	node := newNode(t)
	sender := addr(2)
	claimer := addr(3)
	asset := listing(t, node, sender, 10)

	secret := []byte("node-link")
	linkID, err := node.CreateLink(sender, asset, 1, big.NewInt(3), keccak(secret))
	require.NoError(t, err)

	require.NoError(t, node.ClaimLink(claimer, linkID, secret))

	balance, err := node.BalanceOf(asset, 1, claimer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3), balance)
}

func TestAirdropFlowThroughNode(t *testing.T) {
	node := newNode(t)
	asset := listing(t, node, nodeOwner, 10)

	dropID, err := node.AirdropCreate(nodeOwner, asset, 1, big.NewInt(2))
	require.NoError(t, err)

	require.NoError(t, node.AirdropClaim(addr(2), dropID))
	require.NoError(t, node.AirdropClaim(addr(3), dropID))
	require.ErrorIs(t, node.AirdropClaim(addr(4), dropID), airdrop.ErrClosed)
}

func TestStatePersistsAcrossNodes(t *testing.T) {
	db := storage.NewMemDB()
	node, err := core.NewNode(db, nodeOwner)
	require.NoError(t, err)

	seller := addr(2)
	asset := listing(t, node, seller, 10)
	require.NoError(t, node.FundAccount(nodeOwner, addr(3), big.NewInt(500)))

	// A fresh node over the same database sees the committed state.
	reopened, err := core.NewNode(db, nodeOwner)
	require.NoError(t, err)

	balance, err := reopened.BalanceOf(asset, 1, seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), balance)

	funds, err := reopened.Balance(addr(3))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), funds)
}
