package vault

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/common"
	"marketchain/native/ledger"
)

var (
	ErrNilState      = errors.New("vault: state not configured")
	ErrNilLedger     = errors.New("vault: ledger not configured")
	ErrUnauthorized  = errors.New("vault: caller is not an authorized depositor")
	ErrInvalidAmount = errors.New("vault: amount must be greater than 0")
	ErrHashInUse     = errors.New("vault: hash already holds a gift")
	ErrHoldNotFound  = errors.New("vault: no claimable gift for this secret")
)

const (
	EventTypeGiftHeld    = "vault.gift.held"
	EventTypeGiftClaimed = "vault.gift.claimed"
)

// Address is the vault custody account on the ledger. Holds reference assets
// by collection address, which is stable across ledger logic upgrades, so
// claims keep working for assets parked mid-upgrade.
var Address = common.ModuleAddress("vault")

// Hold is an escrowed gift keyed by the depositor-committed secret hash.
// Knowledge of the preimage is the sole claim credential.
type Hold struct {
	SecretHash [32]byte
	Asset      [20]byte
	AssetID    uint64
	Amount     *big.Int
}

// Clone returns a deep copy of the hold.
func (h *Hold) Clone() *Hold {
	if h == nil {
		return nil
	}
	clone := *h
	if h.Amount != nil {
		clone.Amount = new(big.Int).Set(h.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

type engineState interface {
	HoldPut(*Hold) error
	HoldGet(secretHash [32]byte) (*Hold, bool)
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine custodies hash-locked gifts deposited by the market and releases
// them to whoever reveals the matching secret.
type Engine struct {
	state      engineState
	ledger     *ledger.Engine
	emitter    events.Emitter
	depositors map[[20]byte]bool
}

// NewEngine constructs a vault engine bound to the ledger.
func NewEngine(l *ledger.Engine) *Engine {
	return &Engine{ledger: l, emitter: events.NoopEmitter{}, depositors: make(map[[20]byte]bool)}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// AuthorizeDepositor allows an address (the market custody account) to record
// holds.
func (e *Engine) AuthorizeDepositor(addr [20]byte) {
	if e.depositors == nil {
		e.depositors = make(map[[20]byte]bool)
	}
	e.depositors[addr] = true
}

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
	e.emitter.Emit(vaultEvent{evt: evt})
}

// HoldGift records a hash-locked hold over units already delivered into the
// vault custody account. A hash with a live hold cannot be reused, so one
// claim can never sweep two deposits.
func (e *Engine) HoldGift(depositor [20]byte, secretHash [32]byte, asset [20]byte, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.depositors[depositor] {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if existing, ok := e.state.HoldGet(secretHash); ok && existing.Amount != nil && existing.Amount.Sign() > 0 {
		return ErrHashInUse
	}
	hold := &Hold{
		SecretHash: secretHash,
		Asset:      asset,
		AssetID:    id,
		Amount:     new(big.Int).Set(amount),
	}
	if err := e.state.HoldPut(hold); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeGiftHeld, Attributes: map[string]string{
		"secretHash": hex.EncodeToString(secretHash[:]),
		"asset":      hex.EncodeToString(asset[:]),
		"tokenId":    strconv.FormatUint(id, 10),
		"amount":     amount.String(),
	}})
	return nil
}

// ClaimGiftForMyself releases the hold matching the secret to the caller.
func (e *Engine) ClaimGiftForMyself(caller [20]byte, secret []byte) error {
	return e.claim(caller, secret, caller)
}

// ClaimGiftForAnotherPerson releases the hold matching the secret to a
// recipient chosen by the claimer.
func (e *Engine) ClaimGiftForAnotherPerson(caller [20]byte, secret []byte, recipient [20]byte) error {
	return e.claim(caller, secret, recipient)
}

func (e *Engine) claim(caller [20]byte, secret []byte, recipient [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	secretHash := ethcrypto.Keccak256Hash(secret)
	hold, ok := e.state.HoldGet(secretHash)
	if !ok || hold.Amount == nil || hold.Amount.Sign() == 0 {
		return ErrHoldNotFound
	}
	amount := new(big.Int).Set(hold.Amount)
	hold.Amount = big.NewInt(0)
	if err := e.state.HoldPut(hold); err != nil {
		return err
	}
	if err := e.ledger.SafeTransferFrom(Address, hold.Asset, Address, recipient, hold.AssetID, amount); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeGiftClaimed, Attributes: map[string]string{
		"secretHash": hex.EncodeToString(secretHash[:]),
		"asset":      hex.EncodeToString(hold.Asset[:]),
		"tokenId":    strconv.FormatUint(hold.AssetID, 10),
		"claimer":    hex.EncodeToString(caller[:]),
		"recipient":  hex.EncodeToString(recipient[:]),
		"amount":     amount.String(),
	}})
	return nil
}
