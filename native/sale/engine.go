package sale

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/common"
	"marketchain/native/ledger"
)

var (
	ErrNilState           = errors.New("sale: state not configured")
	ErrNilLedger          = errors.New("sale: ledger not configured")
	ErrNotInitialized     = errors.New("sale: not initialized")
	ErrAlreadyInitialized = errors.New("sale: already initialized")
	ErrNotOwner           = errors.New("sale: caller is not the owner")
	ErrSaleInactive       = errors.New("sale: sale is not active")
	ErrInvalidAmount      = errors.New("sale: amount must be greater than 0")
	ErrAllocationExceeded = errors.New("sale: per-account allocation exceeded")
	ErrSupplyExhausted    = errors.New("sale: not enough passes left")
	ErrIncorrectValue     = errors.New("sale: value does not match price")
	ErrInvalidSignature   = errors.New("sale: signature does not authorize caller")
	ErrInsufficientFunds  = errors.New("sale: insufficient funds")
)

const (
	EventTypeMint       = "sale.mint"
	EventTypeWithdrawal = "sale.withdrawal"
)

// Address is the sale's account identity: it owns the pass collection on the
// ledger and accrues purchase proceeds.
var Address = common.ModuleAddress("sale")

type engineState interface {
	SaleGet() (*Sale, bool)
	SalePut(*Sale) error
	SaleAllocationGet(addr [20]byte) (uint64, error)
	SaleAllocationPut(addr [20]byte, minted uint64) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type saleEvent struct {
	evt *types.Event
}

func (e saleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e saleEvent) Event() *types.Event { return e.evt }

// Engine runs a fixed-supply pass sale over its own ledger collection. Minting
// is gated by a per-buyer authorization signature until the sale goes public.
type Engine struct {
	state   engineState
	ledger  *ledger.Engine
	emitter events.Emitter
}

// NewEngine constructs a sale engine bound to the ledger.
func NewEngine(l *ledger.Engine) *Engine {
	return &Engine{ledger: l, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

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
	e.emitter.Emit(saleEvent{evt: evt})
}

// Initialize creates the pass collection, premints the reward passes (ids
// 1..Rewards, one unit each) to the rewards address, and records the sale
// terms. One-shot.
func (e *Engine) Initialize(owner [20]byte, params Params) (*Sale, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.ledger == nil {
		return nil, ErrNilLedger
	}
	if _, ok := e.state.SaleGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	params, err := SanitizeParams(params)
	if err != nil {
		return nil, err
	}
	collection, err := e.ledger.CreateCollection(Address, params.Name, params.Symbol, params.BaseURI, false)
	if err != nil {
		return nil, err
	}
	sale := &Sale{
		Collection:    collection.Address,
		Owner:         owner,
		MaxSupply:     params.MaxSupply,
		MaxPerAccount: params.MaxPerAccount,
		Rewards:       params.Rewards,
		Price:         new(big.Int).Set(params.Price),
		Signer:        params.Signer,
		URIs:          append([]string(nil), params.URIs...),
		Cursor:        params.Rewards,
	}
	for id := uint64(1); id <= params.Rewards; id++ {
		if _, err := e.ledger.CreateToken(Address, collection.Address, id, big.NewInt(1), params.RewardsTo, params.URIs[id-1], [20]byte{}, 0); err != nil {
			return nil, fmt.Errorf("sale: premint pass %d: %w", id, err)
		}
	}
	if err := e.state.SalePut(sale); err != nil {
		return nil, err
	}
	return sale.Clone(), nil
}

// Sale returns the current sale record, or nil before initialization.
func (e *Engine) Sale() (*Sale, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sale, ok := e.state.SaleGet()
	if !ok {
		return nil, nil
	}
	return sale.Clone(), nil
}

// Allocation returns how many passes an address has bought.
func (e *Engine) Allocation(addr [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.SaleAllocationGet(addr)
}

// Buy mints the next amount of passes to the caller against exact payment.
// Unless the sale is public, the signature must authorize the caller's
// address; binding the signed message to the buyer keeps a leaked signature
// useless to anyone else.
func (e *Engine) Buy(caller [20]byte, amount uint64, value *big.Int, signature []byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	sale, ok := e.state.SaleGet()
	if !ok {
		return ErrNotInitialized
	}
	if !sale.Active {
		return ErrSaleInactive
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > sale.MaxSupply {
		return ErrSupplyExhausted
	}
	minted, err := e.state.SaleAllocationGet(caller)
	if err != nil {
		return err
	}
	// Subtraction forms: the additive checks wrap on uint64 overflow, letting
	// a huge amount reset the allocation and regress the cursor.
	if amount > sale.MaxPerAccount-minted {
		return ErrAllocationExceeded
	}
	if amount > sale.MaxSupply-sale.Cursor {
		return ErrSupplyExhausted
	}
	expected := new(big.Int).Mul(sale.Price, new(big.Int).SetUint64(amount))
	if value == nil || value.Cmp(expected) != 0 {
		return ErrIncorrectValue
	}
	if !sale.Public {
		if !verifyAuthorization(sale.Signer, caller, signature) {
			return ErrInvalidSignature
		}
	}
	first := sale.Cursor + 1
	sale.Cursor += amount
	if err := e.state.SalePut(sale); err != nil {
		return err
	}
	if err := e.state.SaleAllocationPut(caller, minted+amount); err != nil {
		return err
	}
	if err := e.collectPayment(caller, expected); err != nil {
		return err
	}
	for id := first; id <= sale.Cursor; id++ {
		if _, err := e.ledger.CreateToken(Address, sale.Collection, id, big.NewInt(1), caller, sale.URIs[id-1], [20]byte{}, 0); err != nil {
			return fmt.Errorf("sale: mint pass %d: %w", id, err)
		}
		e.emit(&types.Event{Type: EventTypeMint, Attributes: map[string]string{
			"asset":   hex.EncodeToString(sale.Collection[:]),
			"tokenId": strconv.FormatUint(id, 10),
			"to":      hex.EncodeToString(caller[:]),
			"value":   sale.Price.String(),
		}})
	}
	return nil
}

func (e *Engine) collectPayment(from [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	payer, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if payer.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	payer.Balance = new(big.Int).Sub(payer.Balance, amount)
	if err := e.state.PutAccount(from, payer); err != nil {
		return err
	}
	vault, err := e.state.GetAccount(Address)
	if err != nil {
		return err
	}
	vault.Balance = new(big.Int).Add(vault.Balance, amount)
	return e.state.PutAccount(Address, vault)
}

// Withdraw sweeps the accrued proceeds to a recipient. Owner only.
func (e *Engine) Withdraw(caller, to [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sale, ok := e.state.SaleGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	if caller != sale.Owner {
		return nil, ErrNotOwner
	}
	account, err := e.state.GetAccount(Address)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Set(account.Balance)
	account.Balance = big.NewInt(0)
	if err := e.state.PutAccount(Address, account); err != nil {
		return nil, err
	}
	recipient, err := e.state.GetAccount(to)
	if err != nil {
		return nil, err
	}
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	if err := e.state.PutAccount(to, recipient); err != nil {
		return nil, err
	}
	e.emit(&types.Event{Type: EventTypeWithdrawal, Attributes: map[string]string{
		"to":     hex.EncodeToString(to[:]),
		"amount": amount.String(),
	}})
	return amount, nil
}

// SetSaleActive toggles minting. Owner only.
func (e *Engine) SetSaleActive(caller [20]byte, active bool) error {
	return e.updateSale(caller, func(s *Sale) { s.Active = active })
}

// SetPublicSale toggles the signature requirement off. Owner only.
func (e *Engine) SetPublicSale(caller [20]byte, public bool) error {
	return e.updateSale(caller, func(s *Sale) { s.Public = public })
}

func (e *Engine) updateSale(caller [20]byte, apply func(*Sale)) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	sale, ok := e.state.SaleGet()
	if !ok {
		return ErrNotInitialized
	}
	if caller != sale.Owner {
		return ErrNotOwner
	}
	apply(sale)
	return e.state.SalePut(sale)
}

// TransferTokenOwnership hands the pass collection to a new owner on the
// ledger, ending the sale's minting authority. Owner only.
func (e *Engine) TransferTokenOwnership(caller, newOwner [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	sale, ok := e.state.SaleGet()
	if !ok {
		return ErrNotInitialized
	}
	if caller != sale.Owner {
		return ErrNotOwner
	}
	return e.ledger.TransferCollectionOwnership(Address, sale.Collection, newOwner)
}

// AuthorizationDigest returns the personal-message digest a signer commits to
// when authorizing a buyer: the buyer's address left-padded to 32 bytes.
func AuthorizationDigest(buyer [20]byte) [32]byte {
	var message [32]byte
	copy(message[12:], buyer[:])
	prefixed := append([]byte("\x19Ethereum Signed Message:\n32"), message[:]...)
	return ethcrypto.Keccak256Hash(prefixed)
}

func verifyAuthorization(signer, buyer [20]byte, signature []byte) bool {
	if len(signature) != 65 {
		return false
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	digest := AuthorizationDigest(buyer)
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	return [20]byte(recovered) == signer
}
