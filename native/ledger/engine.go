package ledger

import (
	"encoding/binary"
	"errors"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketchain/core/events"
	"marketchain/core/types"
)

var (
	ErrNilState            = errors.New("ledger: state not configured")
	ErrCollectionNotFound  = errors.New("ledger: collection not found")
	ErrTokenNotFound       = errors.New("ledger: token not found")
	ErrTokenExists         = errors.New("ledger: token is already created")
	ErrNotMintable         = errors.New("ledger: not publicly mintable")
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance for transfer")
	ErrNotApproved         = errors.New("ledger: caller is not owner nor approved")
	ErrNotOwner            = errors.New("ledger: caller is not the collection owner")
	ErrPaused              = errors.New("ledger: token transfer while paused")
	ErrLengthMismatch      = errors.New("ledger: array length mismatch")
)

type engineState interface {
	CollectionPut(*Collection) error
	CollectionGet(addr [20]byte) (*Collection, bool)
	CollectionNonce() (uint64, error)
	CollectionSetNonce(uint64) error
	TokenPut(*Token) error
	TokenGet(asset [20]byte, id uint64) (*Token, bool)
	BalanceGet(asset [20]byte, id uint64, owner [20]byte) (*big.Int, error)
	BalancePut(asset [20]byte, id uint64, owner [20]byte, amount *big.Int) error
	ApprovalGet(asset, owner, operator [20]byte) (bool, error)
	ApprovalPut(asset, owner, operator [20]byte, approved bool) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Engine is the multi-supply token registry. Every other module moves assets
// through it, either as the owner of a balance, an approved operator, or the
// configured transfer agent (the TransferProxy custody address).
type Engine struct {
	state         engineState
	emitter       events.Emitter
	transferAgent [20]byte
}

// NewEngine creates a ledger engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferAgent registers the address that is implicitly approved as an
// operator for every owner, the role the TransferProxy plays.
func (e *Engine) SetTransferAgent(addr [20]byte) { e.transferAgent = addr }

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
	e.emitter.Emit(ledgerEvent{evt: evt})
}

// CreateCollection registers a new collection under a deterministic address
// derived from the owner and a global registry nonce.
func (e *Engine) CreateCollection(owner [20]byte, name, symbol, baseURI string, publiclyMintable bool) (*Collection, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	nonce, err := e.state.CollectionNonce()
	if err != nil {
		return nil, err
	}
	var seed [28]byte
	copy(seed[:20], owner[:])
	binary.BigEndian.PutUint64(seed[20:], nonce)
	hash := ethcrypto.Keccak256(seed[:])
	var addr [20]byte
	copy(addr[:], hash[12:])

	collection := &Collection{
		Address:          addr,
		Owner:            owner,
		Name:             strings.TrimSpace(name),
		Symbol:           strings.TrimSpace(symbol),
		BaseURI:          strings.TrimSpace(baseURI),
		PubliclyMintable: publiclyMintable,
	}
	sanitized, err := SanitizeCollection(collection)
	if err != nil {
		return nil, err
	}
	if err := e.state.CollectionSetNonce(nonce + 1); err != nil {
		return nil, err
	}
	if err := e.state.CollectionPut(sanitized); err != nil {
		return nil, err
	}
	e.emit(NewCollectionCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

func (e *Engine) loadCollection(asset [20]byte) (*Collection, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	collection, ok := e.state.CollectionGet(asset)
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return collection, nil
}

// CreateToken mints a brand new token id with its full supply assigned to the
// recipient. Creation is one-shot: repeating an id fails.
func (e *Engine) CreateToken(caller, asset [20]byte, id uint64, supply *big.Int, to [20]byte, uri string, royaltyReceiver [20]byte, royaltyBps uint32) (*Token, error) {
	collection, err := e.loadCollection(asset)
	if err != nil {
		return nil, err
	}
	if collection.Paused {
		return nil, ErrPaused
	}
	if caller != collection.Owner && !collection.PubliclyMintable {
		return nil, ErrNotMintable
	}
	if _, exists := e.state.TokenGet(asset, id); exists {
		return nil, ErrTokenExists
	}
	if supply == nil || supply.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	token := &Token{
		Asset:           asset,
		ID:              id,
		Creator:         caller,
		Supply:          new(big.Int).Set(supply),
		URI:             strings.TrimSpace(uri),
		RoyaltyReceiver: royaltyReceiver,
		RoyaltyBps:      royaltyBps,
	}
	sanitized, err := SanitizeToken(token)
	if err != nil {
		return nil, err
	}
	if err := e.state.TokenPut(sanitized); err != nil {
		return nil, err
	}
	balance, err := e.state.BalanceGet(asset, id, to)
	if err != nil {
		return nil, err
	}
	if err := e.state.BalancePut(asset, id, to, new(big.Int).Add(balance, sanitized.Supply)); err != nil {
		return nil, err
	}
	e.emit(NewTokenCreatedEvent(sanitized, to))
	return sanitized.Clone(), nil
}

// BalanceOf returns the quantity of a token id held by an owner.
func (e *Engine) BalanceOf(asset [20]byte, id uint64, owner [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.BalanceGet(asset, id, owner)
}

// BalanceOfBatch resolves balances for equal-length owner and id slices.
func (e *Engine) BalanceOfBatch(asset [20]byte, owners [][20]byte, ids []uint64) ([]*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if len(owners) != len(ids) {
		return nil, ErrLengthMismatch
	}
	balances := make([]*big.Int, len(owners))
	for i := range owners {
		balance, err := e.state.BalanceGet(asset, ids[i], owners[i])
		if err != nil {
			return nil, err
		}
		balances[i] = balance
	}
	return balances, nil
}

// TotalSupply reports the outstanding supply of a token id.
func (e *Engine) TotalSupply(asset [20]byte, id uint64) (*big.Int, error) {
	token, err := e.loadToken(asset, id)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(token.Supply), nil
}

// CreatorOf reports the address that first minted a token id.
func (e *Engine) CreatorOf(asset [20]byte, id uint64) ([20]byte, error) {
	token, err := e.loadToken(asset, id)
	if err != nil {
		return [20]byte{}, err
	}
	return token.Creator, nil
}

// RoyaltyInfo returns the royalty receiver and the royalty owed on a sale
// value, using truncating basis-point arithmetic.
func (e *Engine) RoyaltyInfo(asset [20]byte, id uint64, saleValue *big.Int) ([20]byte, *big.Int, error) {
	token, err := e.loadToken(asset, id)
	if err != nil {
		return [20]byte{}, nil, err
	}
	if saleValue == nil || token.RoyaltyBps == 0 || token.RoyaltyReceiver == ([20]byte{}) {
		return token.RoyaltyReceiver, big.NewInt(0), nil
	}
	royalty := new(big.Int).Mul(saleValue, big.NewInt(int64(token.RoyaltyBps)))
	royalty.Div(royalty, big.NewInt(10_000))
	return token.RoyaltyReceiver, royalty, nil
}

// TokenURI resolves the metadata URI: the per-token IPFS CID when present,
// otherwise the collection base URI.
func (e *Engine) TokenURI(asset [20]byte, id uint64) (string, error) {
	token, err := e.loadToken(asset, id)
	if err != nil {
		return "", err
	}
	if token.URI != "" {
		return "ipfs://" + token.URI, nil
	}
	collection, err := e.loadCollection(asset)
	if err != nil {
		return "", err
	}
	return collection.BaseURI, nil
}

func (e *Engine) loadToken(asset [20]byte, id uint64) (*Token, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	token, ok := e.state.TokenGet(asset, id)
	if !ok {
		return nil, ErrTokenNotFound
	}
	return token, nil
}

// SetApprovalForAll toggles an operator's blanket approval over all of the
// owner's balances in a collection.
func (e *Engine) SetApprovalForAll(asset, owner, operator [20]byte, approved bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if _, ok := e.state.CollectionGet(asset); !ok {
		return ErrCollectionNotFound
	}
	return e.state.ApprovalPut(asset, owner, operator, approved)
}

// IsApprovedForAll reports whether the operator may move the owner's balances.
// The configured transfer agent is always approved.
func (e *Engine) IsApprovedForAll(asset, owner, operator [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	if operator == e.transferAgent && operator != ([20]byte{}) {
		return true, nil
	}
	return e.state.ApprovalGet(asset, owner, operator)
}

func (e *Engine) authorize(asset, from, caller [20]byte) error {
	if caller == from {
		return nil
	}
	approved, err := e.IsApprovedForAll(asset, from, caller)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApproved
	}
	return nil
}

// SafeTransferFrom moves token units between owners. The caller must be the
// owner, an approved operator, or the transfer agent.
func (e *Engine) SafeTransferFrom(caller, asset, from, to [20]byte, id uint64, amount *big.Int) error {
	collection, err := e.loadCollection(asset)
	if err != nil {
		return err
	}
	if collection.Paused {
		return ErrPaused
	}
	if err := e.authorize(asset, from, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, ok := e.state.TokenGet(asset, id); !ok {
		return ErrTokenNotFound
	}
	fromBalance, err := e.state.BalanceGet(asset, id, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer would read the same balance twice and let the credit
	// overwrite the debit, minting units.
	if from == to {
		e.emit(NewTransferEvent(asset, id, from, to, amount))
		return nil
	}
	toBalance, err := e.state.BalanceGet(asset, id, to)
	if err != nil {
		return err
	}
	if err := e.state.BalancePut(asset, id, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := e.state.BalancePut(asset, id, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	e.emit(NewTransferEvent(asset, id, from, to, amount))
	return nil
}

// SafeBatchTransferFrom applies SafeTransferFrom element-wise over equal
// length id and amount slices.
func (e *Engine) SafeBatchTransferFrom(caller, asset, from, to [20]byte, ids []uint64, amounts []*big.Int) error {
	if len(ids) != len(amounts) {
		return ErrLengthMismatch
	}
	for i := range ids {
		if err := e.SafeTransferFrom(caller, asset, from, to, ids[i], amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// Burn destroys token units, reducing balance and total supply together so
// the conservation invariant holds.
func (e *Engine) Burn(caller, asset, from [20]byte, id uint64, amount *big.Int) error {
	collection, err := e.loadCollection(asset)
	if err != nil {
		return err
	}
	if collection.Paused {
		return ErrPaused
	}
	if err := e.authorize(asset, from, caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	token, err := e.loadToken(asset, id)
	if err != nil {
		return err
	}
	balance, err := e.state.BalanceGet(asset, id, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.state.BalancePut(asset, id, from, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	token.Supply = new(big.Int).Sub(token.Supply, amount)
	if err := e.state.TokenPut(token); err != nil {
		return err
	}
	e.emit(NewBurnEvent(asset, id, from, amount))
	return nil
}

// BurnBatch applies Burn element-wise.
func (e *Engine) BurnBatch(caller, asset, from [20]byte, ids []uint64, amounts []*big.Int) error {
	if len(ids) != len(amounts) {
		return ErrLengthMismatch
	}
	for i := range ids {
		if err := e.Burn(caller, asset, from, ids[i], amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// SetPaused freezes or unfreezes a collection's transfers, mints and burns.
func (e *Engine) SetPaused(caller, asset [20]byte, paused bool) error {
	collection, err := e.loadCollection(asset)
	if err != nil {
		return err
	}
	if caller != collection.Owner {
		return ErrNotOwner
	}
	collection.Paused = paused
	return e.state.CollectionPut(collection)
}

// SetBaseURI updates the collection fallback URI.
func (e *Engine) SetBaseURI(caller, asset [20]byte, baseURI string) error {
	collection, err := e.loadCollection(asset)
	if err != nil {
		return err
	}
	if caller != collection.Owner {
		return ErrNotOwner
	}
	collection.BaseURI = strings.TrimSpace(baseURI)
	return e.state.CollectionPut(collection)
}

// TransferCollectionOwnership hands the collection owner role to another
// address.
func (e *Engine) TransferCollectionOwnership(caller, asset, newOwner [20]byte) error {
	collection, err := e.loadCollection(asset)
	if err != nil {
		return err
	}
	if caller != collection.Owner {
		return ErrNotOwner
	}
	collection.Owner = newOwner
	return e.state.CollectionPut(collection)
}
