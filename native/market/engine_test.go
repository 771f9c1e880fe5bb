package market_test

import (
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/native/ledger"
	"marketchain/native/market"
	"marketchain/native/transferproxy"
	"marketchain/native/vault"
	"marketchain/storage"
)

var admin = addr(1)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type harness struct {
	manager *state.Manager
	ledger  *ledger.Engine
	proxy   *transferproxy.Engine
	vault   *vault.Engine
	market  *market.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())

	ledgerEng := ledger.NewEngine()
	ledgerEng.SetState(manager)
	ledgerEng.SetTransferAgent(transferproxy.Address)

	proxyEng := transferproxy.NewEngine(ledgerEng)
	proxyEng.SetState(manager)
	proxyEng.SetOwner(admin)
	require.NoError(t, proxyEng.SetOperator(admin, market.Address, true))

	vaultEng := vault.NewEngine(ledgerEng)
	vaultEng.SetState(manager)
	vaultEng.AuthorizeDepositor(market.Address)

	marketEng := market.NewEngine(ledgerEng, proxyEng)
	marketEng.SetState(manager)
	marketEng.SetOwner(admin)
	marketEng.SetVault(vaultEng)

	return &harness{manager: manager, ledger: ledgerEng, proxy: proxyEng, vault: vaultEng, market: marketEng}
}

func (h *harness) fund(t *testing.T, account [20]byte, amount int64) {
	t.Helper()
	require.NoError(t, h.manager.PutAccount(account, &types.Account{Balance: big.NewInt(amount)}))
}

func (h *harness) balance(t *testing.T, account [20]byte) *big.Int {
	t.Helper()
	acc, err := h.manager.GetAccount(account)
	require.NoError(t, err)
	return acc.Balance
}

// mintListing creates a collection and token for the seller and returns the
// collection address.
func (h *harness) mintListing(t *testing.T, seller [20]byte, supply int64, royaltyReceiver [20]byte, royaltyBps uint32) [20]byte {
	t.Helper()
	collection, err := h.ledger.CreateCollection(seller, "Market Test", "MKT", "", false)
	require.NoError(t, err)
	_, err = h.ledger.CreateToken(seller, collection.Address, 1, big.NewInt(supply), seller, "", royaltyReceiver, royaltyBps)
	require.NoError(t, err)
	return collection.Address
}

func TestOpenTradeEscrowsItems(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)

	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(100)))

	escrowed, err := h.ledger.BalanceOf(asset, 1, market.Address)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4), escrowed)

	remaining, err := h.ledger.BalanceOf(asset, 1, seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(6), remaining)

	trade, err := h.market.Trade(asset, 1, seller)
	require.NoError(t, err)
	require.True(t, trade.Open())
	require.Equal(t, big.NewInt(100), trade.Price)
}

func TestOpenTradeRejectsDuplicateOpenOffer(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)

	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(2), big.NewInt(100)))
	err := h.market.OpenTrade(seller, asset, 1, big.NewInt(2), big.NewInt(100))
	require.ErrorIs(t, err, market.ErrTradeOpen)
}

func TestOpenTradeRejectsZeroAmount(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)

	err := h.market.OpenTrade(seller, asset, 1, big.NewInt(0), big.NewInt(100))
	require.ErrorIs(t, err, market.ErrInvalidAmount)
}

func TestBuyItemSplitsPaymentExactly(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	royaltyReceiver := addr(9)
	asset := h.mintListing(t, seller, 10, royaltyReceiver, 1000)
	h.fund(t, buyer, 1_000)

	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(5), big.NewInt(100)))
	require.NoError(t, h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(2), big.NewInt(200)))

	// value 200, fee 3% = 6, royalty 10% of 194 = 19, seller rest = 175.
	require.Equal(t, big.NewInt(800), h.balance(t, buyer))
	require.Equal(t, big.NewInt(6), h.balance(t, market.Address))
	require.Equal(t, big.NewInt(19), h.balance(t, royaltyReceiver))
	require.Equal(t, big.NewInt(175), h.balance(t, seller))

	bought, err := h.ledger.BalanceOf(asset, 1, buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), bought)

	trade, err := h.market.Trade(asset, 1, seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3), trade.Amount)
}

func TestBuyItemSkipsRoyaltyToSeller(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	asset := h.mintListing(t, seller, 10, seller, 1000)
	h.fund(t, buyer, 1_000)

	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(5), big.NewInt(100)))
	require.NoError(t, h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100)))

	// Fee 3 stays with the market, everything else lands with the seller in
	// one payout.
	require.Equal(t, big.NewInt(97), h.balance(t, seller))
}

func TestBuyItemValidationOrder(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(2), big.NewInt(100)))

	err := h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, market.ErrInvalidAmount)

	err = h.market.BuyItem(seller, asset, 1, seller, big.NewInt(1), big.NewInt(100))
	require.ErrorIs(t, err, market.ErrSelfTrade)

	err = h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(3), big.NewInt(300))
	require.ErrorIs(t, err, market.ErrInsufficientItems)

	err = h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(99))
	require.ErrorIs(t, err, market.ErrIncorrectValue)
}

func TestBuyItemRejectsUnderfundedBuyer(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 50)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(2), big.NewInt(100)))

	err := h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100))
	require.ErrorIs(t, err, market.ErrInsufficientFunds)
}

func TestGiftItemDeliversToThirdParty(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	friend := addr(4)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(2), big.NewInt(100)))

	require.NoError(t, h.market.GiftItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100), friend))

	balance, err := h.ledger.BalanceOf(asset, 1, friend)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), balance)
}

func TestGiftItemViaVaultParksUnderSecretHash(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	claimer := addr(4)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(3), big.NewInt(100)))

	secret := []byte("vault-secret")
	secretHash := ethcrypto.Keccak256Hash(secret)
	require.NoError(t, h.market.GiftItemViaVault(buyer, asset, 1, seller, big.NewInt(2), big.NewInt(200), secretHash))

	held, err := h.ledger.BalanceOf(asset, 1, vault.Address)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), held)

	require.NoError(t, h.vault.ClaimGiftForMyself(claimer, secret))
	claimed, err := h.ledger.BalanceOf(asset, 1, claimer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), claimed)
}

func TestGiftItemViaVaultRejectsLiveHash(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(100)))

	secretHash := ethcrypto.Keccak256Hash([]byte("shared"))
	require.NoError(t, h.market.GiftItemViaVault(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100), secretHash))

	err := h.market.GiftItemViaVault(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100), secretHash)
	require.ErrorIs(t, err, vault.ErrHashInUse)
}

func TestGiftTradeIsUnpaidSellerOnly(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	friend := addr(4)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(3), big.NewInt(100)))

	require.ErrorIs(t, h.market.GiftTrade(seller, asset, 1, big.NewInt(1), seller), market.ErrUselessOperation)
	require.NoError(t, h.market.GiftTrade(seller, asset, 1, big.NewInt(1), friend))

	balance, err := h.ledger.BalanceOf(asset, 1, friend)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), balance)
	require.Equal(t, big.NewInt(0), h.balance(t, seller))
}

func TestCloseTradeReturnsCustodyAndZeroesOffer(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(100)))

	require.NoError(t, h.market.CloseTrade(seller, asset, 1))

	balance, err := h.ledger.BalanceOf(asset, 1, seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), balance)

	trade, err := h.market.Trade(asset, 1, seller)
	require.NoError(t, err)
	require.False(t, trade.Open())
	require.Equal(t, big.NewInt(0), trade.Price)

	require.ErrorIs(t, h.market.CloseTrade(seller, asset, 1), market.ErrTradeNotOpen)
}

func TestReopenAfterClose(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)

	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(4), big.NewInt(100)))
	require.NoError(t, h.market.CloseTrade(seller, asset, 1))
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(2), big.NewInt(50)))

	trade, err := h.market.Trade(asset, 1, seller)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), trade.Amount)
	require.Equal(t, big.NewInt(50), trade.Price)
}

func TestChangePriceRequiresOpenTrade(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)

	require.ErrorIs(t, h.market.ChangePrice(seller, asset, 1, big.NewInt(5)), market.ErrTradeNotOpen)

	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(1), big.NewInt(100)))
	require.NoError(t, h.market.ChangePrice(seller, asset, 1, big.NewInt(40)))

	require.ErrorIs(t, h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100)), market.ErrIncorrectValue)
	require.NoError(t, h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(40)))
}

func TestServiceFeeAdministration(t *testing.T) {
	h := newHarness(t)

	bps, err := h.market.ServiceFeeBps()
	require.NoError(t, err)
	require.Equal(t, market.DefaultServiceFeeBps, bps)

	require.ErrorIs(t, h.market.SetServiceFee(addr(2), 500), market.ErrNotOwner)
	require.ErrorIs(t, h.market.SetServiceFee(admin, 10_001), market.ErrFeeRange)

	require.NoError(t, h.market.SetServiceFee(admin, 0))
	bps, err = h.market.ServiceFeeBps()
	require.NoError(t, err)
	require.Equal(t, uint32(0), bps)
}

func TestWithdrawPaysOutAccruedFees(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	treasury := addr(8)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(5), big.NewInt(100)))
	require.NoError(t, h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(2), big.NewInt(200)))

	feeBalance, err := h.market.FeeBalance()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(6), feeBalance)

	require.ErrorIs(t, h.market.Withdraw(addr(2), treasury, big.NewInt(6)), market.ErrNotOwner)
	require.ErrorIs(t, h.market.Withdraw(admin, treasury, big.NewInt(7)), market.ErrInsufficientFees)

	require.NoError(t, h.market.Withdraw(admin, treasury, big.NewInt(6)))
	require.Equal(t, big.NewInt(6), h.balance(t, treasury))
}

func TestPayoutHookCannotReenter(t *testing.T) {
	h := newHarness(t)
	seller := addr(2)
	buyer := addr(3)
	asset := h.mintListing(t, seller, 10, [20]byte{}, 0)
	h.fund(t, buyer, 1_000)
	require.NoError(t, h.market.OpenTrade(seller, asset, 1, big.NewInt(5), big.NewInt(100)))

	var reentryErr error
	h.market.SetPayoutHook(func(recipient [20]byte, amount *big.Int) error {
		reentryErr = h.market.CloseTrade(seller, asset, 1)
		return reentryErr
	})

	err := h.market.BuyItem(buyer, asset, 1, seller, big.NewInt(1), big.NewInt(100))
	require.ErrorIs(t, err, market.ErrReentrancy)
	require.ErrorIs(t, reentryErr, market.ErrReentrancy)
}
