package sale_test

import (
	"crypto/ecdsa"
	"fmt"
	"math"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/native/ledger"
	"marketchain/native/sale"
	"marketchain/storage"
)

var saleOwner = addr(1)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func uris(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("bafy-pass-%d", i+1)
	}
	return out
}

type harness struct {
	engine  *sale.Engine
	ledger  *ledger.Engine
	manager *state.Manager
	key     *ecdsa.PrivateKey
	signer  [20]byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())

	ledgerEng := ledger.NewEngine()
	ledgerEng.SetState(manager)

	saleEng := sale.NewEngine(ledgerEng)
	saleEng.SetState(manager)

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
	return &harness{engine: saleEng, ledger: ledgerEng, manager: manager, key: key, signer: signer}
}

func (h *harness) params(maxSupply, maxPerAccount, rewards uint64, price int64) sale.Params {
	return sale.Params{
		Name:          "Launch Passes",
		Symbol:        "PASS",
		BaseURI:       "",
		MaxSupply:     maxSupply,
		MaxPerAccount: maxPerAccount,
		Rewards:       rewards,
		Price:         big.NewInt(price),
		Signer:        h.signer,
		RewardsTo:     addr(9),
		URIs:          uris(int(maxSupply)),
	}
}

// authorize signs the buyer's digest the way an off-node allowlist service
// would, with the recovery byte in its 27/28 form.
func (h *harness) authorize(t *testing.T, buyer [20]byte) []byte {
	t.Helper()
	digest := sale.AuthorizationDigest(buyer)
	sig, err := ethcrypto.Sign(digest[:], h.key)
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func (h *harness) fund(t *testing.T, account [20]byte, amount int64) {
	t.Helper()
	acc, err := h.manager.GetAccount(account)
	require.NoError(t, err)
	acc.Balance = big.NewInt(amount)
	require.NoError(t, h.manager.PutAccount(account, acc))
}

func (h *harness) balance(t *testing.T, account [20]byte) *big.Int {
	t.Helper()
	acc, err := h.manager.GetAccount(account)
	require.NoError(t, err)
	return acc.Balance
}

func TestInitializePremintsRewards(t *testing.T) {
	h := newHarness(t)

	record, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.Equal(t, uint64(3), record.Cursor)

	for id := uint64(1); id <= 3; id++ {
		balance, err := h.ledger.BalanceOf(record.Collection, id, addr(9))
		require.NoError(t, err)
		require.Equal(t, big.NewInt(1), balance)

		uri, err := h.ledger.TokenURI(record.Collection, id)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("ipfs://bafy-pass-%d", id), uri)
	}

	_, err = h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.ErrorIs(t, err, sale.ErrAlreadyInitialized)
}

func TestInitializeValidatesParams(t *testing.T) {
	h := newHarness(t)

	params := h.params(10, 5, 3, 100)
	params.URIs = params.URIs[:4]
	_, err := h.engine.Initialize(saleOwner, params)
	require.Error(t, err)

	params = h.params(10, 5, 3, 100)
	params.Rewards = 10
	_, err = h.engine.Initialize(saleOwner, params)
	require.Error(t, err)
}

func TestBuyMintsSequentialPasses(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)

	record, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	h.fund(t, buyer, 1000)

	require.NoError(t, h.engine.Buy(buyer, 2, big.NewInt(200), h.authorize(t, buyer)))

	// Reward passes occupy ids 1..3, so the buyer gets 4 and 5.
	for id := uint64(4); id <= 5; id++ {
		balance, err := h.ledger.BalanceOf(record.Collection, id, buyer)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(1), balance)
	}
	require.Equal(t, big.NewInt(800), h.balance(t, buyer))
	require.Equal(t, big.NewInt(200), h.balance(t, sale.Address))

	minted, err := h.engine.Allocation(buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(2), minted)
}

func TestBuyRequiresActiveSale(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)

	err = h.engine.Buy(buyer, 1, big.NewInt(100), h.authorize(t, buyer))
	require.ErrorIs(t, err, sale.ErrSaleInactive)
}

func TestBuySignatureBoundToBuyer(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)
	other := addr(3)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	h.fund(t, other, 1000)

	// A signature issued for one buyer does not authorize another.
	err = h.engine.Buy(other, 1, big.NewInt(100), h.authorize(t, buyer))
	require.ErrorIs(t, err, sale.ErrInvalidSignature)

	err = h.engine.Buy(other, 1, big.NewInt(100), nil)
	require.ErrorIs(t, err, sale.ErrInvalidSignature)
}

func TestPublicSaleSkipsSignature(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	require.NoError(t, h.engine.SetPublicSale(saleOwner, true))
	h.fund(t, buyer, 1000)

	require.NoError(t, h.engine.Buy(buyer, 1, big.NewInt(100), nil))
}

func TestBuyValidationOrder(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 3, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	h.fund(t, buyer, 1000)

	require.ErrorIs(t, h.engine.Buy(buyer, 0, big.NewInt(0), nil), sale.ErrInvalidAmount)
	require.ErrorIs(t, h.engine.Buy(buyer, 4, big.NewInt(400), nil), sale.ErrAllocationExceeded)
	require.ErrorIs(t, h.engine.Buy(buyer, 3, big.NewInt(200), nil), sale.ErrIncorrectValue)
}

func TestBuyEnforcesSupplyCap(t *testing.T) {
	h := newHarness(t)

	// 5 passes total, 3 preminted as rewards: 2 remain for sale.
	_, err := h.engine.Initialize(saleOwner, h.params(5, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	require.NoError(t, h.engine.SetPublicSale(saleOwner, true))

	buyer := addr(2)
	h.fund(t, buyer, 1000)
	require.ErrorIs(t, h.engine.Buy(buyer, 3, big.NewInt(300), nil), sale.ErrSupplyExhausted)
	require.NoError(t, h.engine.Buy(buyer, 2, big.NewInt(200), nil))
	require.ErrorIs(t, h.engine.Buy(buyer, 1, big.NewInt(100), nil), sale.ErrSupplyExhausted)
}

func TestBuyRejectsOverflowingAmount(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)
	other := addr(3)

	// Free public sale so only the supply accounting gates the purchase.
	_, err := h.engine.Initialize(saleOwner, h.params(8, 3, 3, 0))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	require.NoError(t, h.engine.SetPublicSale(saleOwner, true))

	require.NoError(t, h.engine.Buy(buyer, 3, big.NewInt(0), nil))

	// An amount chosen to wrap minted+amount and cursor+amount past zero must
	// not slip through the caps or disturb the sale record.
	err = h.engine.Buy(buyer, math.MaxUint64-2, big.NewInt(0), nil)
	require.ErrorIs(t, err, sale.ErrSupplyExhausted)

	minted, err := h.engine.Allocation(buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(3), minted)

	current, err := h.engine.Sale()
	require.NoError(t, err)
	require.Equal(t, uint64(6), current.Cursor)

	require.NoError(t, h.engine.Buy(other, 2, big.NewInt(0), nil))
}

func TestBuyRequiresFunds(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	h.fund(t, buyer, 50)

	err = h.engine.Buy(buyer, 1, big.NewInt(100), h.authorize(t, buyer))
	require.ErrorIs(t, err, sale.ErrInsufficientFunds)
}

func TestWithdrawSweepsProceeds(t *testing.T) {
	h := newHarness(t)
	buyer := addr(2)
	treasury := addr(8)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	h.fund(t, buyer, 1000)
	require.NoError(t, h.engine.Buy(buyer, 3, big.NewInt(300), h.authorize(t, buyer)))

	_, err = h.engine.Withdraw(addr(2), treasury)
	require.ErrorIs(t, err, sale.ErrNotOwner)

	amount, err := h.engine.Withdraw(saleOwner, treasury)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300), amount)
	require.Equal(t, big.NewInt(300), h.balance(t, treasury))
	require.Equal(t, big.NewInt(0), h.balance(t, sale.Address))
}

func TestToggleRequiresOwner(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.engine.SetSaleActive(saleOwner, true), sale.ErrNotInitialized)

	_, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)

	require.ErrorIs(t, h.engine.SetSaleActive(addr(2), true), sale.ErrNotOwner)
	require.ErrorIs(t, h.engine.SetPublicSale(addr(2), true), sale.ErrNotOwner)
}

func TestTransferTokenOwnership(t *testing.T) {
	h := newHarness(t)
	newOwner := addr(7)

	record, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)

	require.ErrorIs(t, h.engine.TransferTokenOwnership(addr(2), newOwner), sale.ErrNotOwner)
	require.NoError(t, h.engine.TransferTokenOwnership(saleOwner, newOwner))

	// The sale can no longer mint into the collection it gave away.
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	require.NoError(t, h.engine.SetPublicSale(saleOwner, true))
	buyer := addr(2)
	h.fund(t, buyer, 1000)
	err = h.engine.Buy(buyer, 1, big.NewInt(100), nil)
	require.ErrorIs(t, err, ledger.ErrNotMintable)

	// The new owner mints directly.
	_, err = h.ledger.CreateToken(newOwner, record.Collection, 9, big.NewInt(1), newOwner, "", [20]byte{}, 0)
	require.NoError(t, err)
}

func TestFullSaleRun(t *testing.T) {
	h := newHarness(t)
	first := addr(2)
	second := addr(3)

	record, err := h.engine.Initialize(saleOwner, h.params(10, 5, 3, 100))
	require.NoError(t, err)
	require.NoError(t, h.engine.SetSaleActive(saleOwner, true))
	h.fund(t, first, 1000)
	h.fund(t, second, 1000)

	require.NoError(t, h.engine.Buy(first, 3, big.NewInt(300), h.authorize(t, first)))
	require.NoError(t, h.engine.Buy(second, 2, big.NewInt(200), h.authorize(t, second)))

	current, err := h.engine.Sale()
	require.NoError(t, err)
	require.Equal(t, uint64(8), current.Cursor)

	// Ids 1..3 premint, 4..6 to the first buyer, 7..8 to the second.
	for id := uint64(4); id <= 6; id++ {
		balance, err := h.ledger.BalanceOf(record.Collection, id, first)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(1), balance)
	}
	for id := uint64(7); id <= 8; id++ {
		balance, err := h.ledger.BalanceOf(record.Collection, id, second)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(1), balance)
	}
	require.Equal(t, big.NewInt(500), h.balance(t, sale.Address))

	supply, err := h.ledger.TotalSupply(record.Collection, 8)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), supply)
}

func TestBuyerAccountStartsEmpty(t *testing.T) {
	h := newHarness(t)

	account, err := h.manager.GetAccount(addr(42))
	require.NoError(t, err)
	require.Equal(t, types.NewAccount().Balance, account.Balance)
}
