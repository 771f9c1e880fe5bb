package market

import (
	"errors"
	"math/big"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/common"
	"marketchain/native/ledger"
	"marketchain/native/transferproxy"
	"marketchain/native/vault"
)

var (
	ErrNilState          = errors.New("market: state not configured")
	ErrNilLedger         = errors.New("market: ledger not configured")
	ErrNilProxy          = errors.New("market: transfer proxy not configured")
	ErrNilVault          = errors.New("market: vault not configured")
	ErrNotOwner          = errors.New("market: caller is not the owner")
	ErrInvalidAmount     = errors.New("market: amount must be greater than 0")
	ErrTradeOpen         = errors.New("market: trade is already open")
	ErrTradeNotOpen      = errors.New("market: trade is not open")
	ErrSelfTrade         = errors.New("market: trade cannot be executed by the seller")
	ErrInsufficientItems = errors.New("market: not enough items in trade")
	ErrIncorrectValue    = errors.New("market: value sent is incorrect")
	ErrUselessOperation  = errors.New("market: useless operation")
	ErrFeeRange          = errors.New("market: service fee can not exceed 10000 basis points")
	ErrInsufficientFees  = errors.New("market: insufficient fee balance")
	ErrInsufficientFunds = errors.New("market: insufficient funds")
	ErrReentrancy        = errors.New("market: reentrant call blocked")
)

// DefaultServiceFeeBps is applied until the owner persists another value.
const DefaultServiceFeeBps uint32 = 300

// Address is the market custody account. Escrowed trade units and accrued
// service fees are both held under it.
var Address = common.ModuleAddress("market")

type engineState interface {
	TradePut(*Trade) error
	TradeGet(key [32]byte) (*Trade, bool)
	MarketServiceFeeGet() (uint32, bool, error)
	MarketServiceFeePut(uint32) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// PayoutHook observes outbound native payouts. A non-nil error aborts the
// whole call, mirroring a payment recipient refusing the transfer.
type PayoutHook func(recipient [20]byte, amount *big.Int) error

// Engine drives the trade lifecycle: open, execute (buy or gift), reduce,
// close, plus fee administration. State is mutated before any native payout
// and a guard flag rejects nested trade-mutating calls issued from a payout.
type Engine struct {
	state   engineState
	ledger  *ledger.Engine
	proxy   *transferproxy.Engine
	vault   *vault.Engine
	emitter events.Emitter
	owner   [20]byte
	hook    PayoutHook
	locked  bool
}

// NewEngine constructs a market engine bound to the ledger and proxy.
func NewEngine(l *ledger.Engine, p *transferproxy.Engine) *Engine {
	return &Engine{ledger: l, proxy: p, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOwner configures the administrative owner.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// SetVault wires the custodial vault used by GiftItemViaVault.
func (e *Engine) SetVault(v *vault.Engine) { e.vault = v }

// SetPayoutHook installs an observer for outbound native payouts. Primarily
// used by tests to model hostile payment recipients.
func (e *Engine) SetPayoutHook(hook PayoutHook) { e.hook = hook }

// SetEmitter configures the event emitter. Passing nil resets to no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) enter() error {
	if e.locked {
		return ErrReentrancy
	}
	e.locked = true
	return nil
}

func (e *Engine) leave() { e.locked = false }

// ServiceFeeBps returns the persisted service fee, falling back to the
// default when the owner never set one.
func (e *Engine) ServiceFeeBps() (uint32, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	bps, ok, err := e.state.MarketServiceFeeGet()
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultServiceFeeBps, nil
	}
	return bps, nil
}

// SetServiceFee persists a new service fee. Owner only, at most 10000 bps.
func (e *Engine) SetServiceFee(caller [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if bps > 10_000 {
		return ErrFeeRange
	}
	if err := e.state.MarketServiceFeePut(bps); err != nil {
		return err
	}
	e.emit(NewServiceFeeChangedEvent(bps))
	return nil
}

// Trade returns the stored offer for a key, dormant records included.
func (e *Engine) Trade(asset [20]byte, id uint64, seller [20]byte) (*Trade, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	trade, ok := e.state.TradeGet(TradeKey(asset, id, seller))
	if !ok {
		return &Trade{Asset: asset, AssetID: id, Seller: seller, Price: big.NewInt(0), Amount: big.NewInt(0)}, nil
	}
	return SanitizeTrade(trade)
}

// FeeBalance reports the native balance accrued to the market from service
// fees, the only funds Withdraw may pay out.
func (e *Engine) FeeBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, err := e.state.GetAccount(Address)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

// OpenTrade escrows amount units from the seller and records the offer.
func (e *Engine) OpenTrade(seller, asset [20]byte, id uint64, amount, price *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.proxy == nil {
		return ErrNilProxy
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if price == nil || price.Sign() < 0 {
		return ErrIncorrectValue
	}
	key := TradeKey(asset, id, seller)
	if existing, ok := e.state.TradeGet(key); ok && existing.Open() {
		return ErrTradeOpen
	}
	if err := e.proxy.SafeTransferFrom(Address, asset, seller, Address, id, amount); err != nil {
		return err
	}
	trade := &Trade{
		Asset:   asset,
		AssetID: id,
		Seller:  seller,
		Price:   new(big.Int).Set(price),
		Amount:  new(big.Int).Set(amount),
	}
	if err := e.state.TradePut(trade); err != nil {
		return err
	}
	e.emit(NewTradeOpenedEvent(trade))
	return nil
}

// BuyItem purchases amount units from an open trade, delivering to the buyer.
func (e *Engine) BuyItem(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int) error {
	return e.executeTrade(buyer, asset, id, seller, amount, value, buyer)
}

// GiftItem purchases amount units from an open trade, delivering to a third
// party chosen by the paying buyer.
func (e *Engine) GiftItem(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int, to [20]byte) error {
	return e.executeTrade(buyer, asset, id, seller, amount, value, to)
}

// GiftItemViaVault purchases amount units and parks them in the custodial
// vault under a caller-chosen secret hash, to be claimed later by whoever
// learns the secret.
func (e *Engine) GiftItemViaVault(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int, secretHash [32]byte) error {
	if e.vault == nil {
		return ErrNilVault
	}
	if err := e.executeTrade(buyer, asset, id, seller, amount, value, vault.Address); err != nil {
		return err
	}
	return e.vault.HoldGift(Address, secretHash, asset, id, amount)
}

func (e *Engine) executeTrade(buyer, asset [20]byte, id uint64, seller [20]byte, amount, value *big.Int, recipient [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if buyer == seller {
		return ErrSelfTrade
	}
	key := TradeKey(asset, id, seller)
	stored, ok := e.state.TradeGet(key)
	if !ok || stored.Amount == nil || stored.Amount.Cmp(amount) < 0 {
		return ErrInsufficientItems
	}
	trade, err := SanitizeTrade(stored)
	if err != nil {
		return err
	}
	expected := new(big.Int).Mul(trade.Price, amount)
	if value == nil || value.Cmp(expected) != 0 {
		return ErrIncorrectValue
	}

	// Effects before interactions: the offer shrinks and custody units move
	// before any native currency leaves the market account.
	trade.Amount = new(big.Int).Sub(trade.Amount, amount)
	if err := e.state.TradePut(trade); err != nil {
		return err
	}
	if err := e.ledger.SafeTransferFrom(Address, asset, Address, recipient, id, amount); err != nil {
		return err
	}

	if err := e.collectPayment(buyer, value); err != nil {
		return err
	}
	if err := e.settlePayment(asset, id, seller, value); err != nil {
		return err
	}
	e.emit(NewTradeExecutedEvent(asset, id, seller, buyer, amount, recipient))
	return nil
}

// collectPayment debits the buyer and credits the market custody account with
// the full attached value.
func (e *Engine) collectPayment(buyer [20]byte, value *big.Int) error {
	if value.Sign() == 0 {
		return nil
	}
	return e.transferNative(buyer, Address, value, false)
}

// settlePayment splits the payment value into service fee, royalty and seller
// proceeds. The fee stays on the market account; truncation remainders land
// with the seller.
func (e *Engine) settlePayment(asset [20]byte, id uint64, seller [20]byte, value *big.Int) error {
	if value.Sign() == 0 {
		return nil
	}
	feeBps, err := e.ServiceFeeBps()
	if err != nil {
		return err
	}
	fee := new(big.Int).Mul(value, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	rest := new(big.Int).Sub(value, fee)

	receiver, royalty, err := e.ledger.RoyaltyInfo(asset, id, rest)
	if err != nil {
		return err
	}
	if royalty.Sign() > 0 && receiver != ([20]byte{}) && receiver != seller {
		if err := e.transferNative(Address, receiver, royalty, true); err != nil {
			return err
		}
		rest = new(big.Int).Sub(rest, royalty)
	}
	if rest.Sign() > 0 {
		if err := e.transferNative(Address, seller, rest, true); err != nil {
			return err
		}
	}
	return nil
}

// GiftTrade lets the seller hand out units from their own open trade without
// payment.
func (e *Engine) GiftTrade(seller, asset [20]byte, id uint64, amount *big.Int, to [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to == seller {
		return ErrUselessOperation
	}
	key := TradeKey(asset, id, seller)
	stored, ok := e.state.TradeGet(key)
	if !ok || stored.Amount == nil || stored.Amount.Cmp(amount) < 0 {
		return ErrInsufficientItems
	}
	trade, err := SanitizeTrade(stored)
	if err != nil {
		return err
	}
	trade.Amount = new(big.Int).Sub(trade.Amount, amount)
	if err := e.state.TradePut(trade); err != nil {
		return err
	}
	if err := e.ledger.SafeTransferFrom(Address, asset, Address, to, id, amount); err != nil {
		return err
	}
	e.emit(NewTradeGiftedEvent(asset, id, seller, amount, to))
	return nil
}

// CloseTrade returns all remaining escrowed units to the seller and zeroes
// the offer.
func (e *Engine) CloseTrade(seller, asset [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	key := TradeKey(asset, id, seller)
	stored, ok := e.state.TradeGet(key)
	if !ok || !stored.Open() {
		return ErrTradeNotOpen
	}
	trade, err := SanitizeTrade(stored)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Set(trade.Amount)
	trade.Amount = big.NewInt(0)
	trade.Price = big.NewInt(0)
	if err := e.state.TradePut(trade); err != nil {
		return err
	}
	if err := e.ledger.SafeTransferFrom(Address, asset, Address, seller, id, remaining); err != nil {
		return err
	}
	e.emit(NewTradeClosedEvent(asset, id, seller))
	return nil
}

// ChangePrice updates the unit price of an open trade.
func (e *Engine) ChangePrice(seller, asset [20]byte, id uint64, newPrice *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if newPrice == nil || newPrice.Sign() < 0 {
		return ErrIncorrectValue
	}
	key := TradeKey(asset, id, seller)
	stored, ok := e.state.TradeGet(key)
	if !ok || !stored.Open() {
		return ErrTradeNotOpen
	}
	trade, err := SanitizeTrade(stored)
	if err != nil {
		return err
	}
	trade.Price = new(big.Int).Set(newPrice)
	if err := e.state.TradePut(trade); err != nil {
		return err
	}
	e.emit(NewTradePriceChangedEvent(trade))
	return nil
}

// Withdraw pays accrued service fees out of the market account. Owner only.
func (e *Engine) Withdraw(caller, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.FeeBalance()
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFees
	}
	if err := e.transferNative(Address, to, amount, true); err != nil {
		return err
	}
	e.emit(NewWithdrawalEvent(to, amount))
	return nil
}

// transferNative moves native currency between accounts. When notify is set
// the payout hook runs after the credit; its error aborts the call.
func (e *Engine) transferNative(from, to [20]byte, amount *big.Int, notify bool) error {
	if from == to {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	if fromAcc == nil {
		fromAcc = types.NewAccount()
	}
	if toAcc == nil {
		toAcc = types.NewAccount()
	}
	if fromAcc.Balance == nil || fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to, toAcc); err != nil {
		return err
	}
	if notify && e.hook != nil {
		if err := e.hook(to, amount); err != nil {
			return err
		}
	}
	return nil
}
