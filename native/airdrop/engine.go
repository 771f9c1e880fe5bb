package airdrop

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/common"
	"marketchain/native/ledger"
	"marketchain/native/transferproxy"
)

var (
	ErrNilState       = errors.New("airdrop: state not configured")
	ErrNilLedger      = errors.New("airdrop: ledger not configured")
	ErrNilProxy       = errors.New("airdrop: transfer proxy not configured")
	ErrNotOwner       = errors.New("airdrop: caller is not the owner")
	ErrInvalidAmount  = errors.New("airdrop: amount must be greater than 0")
	ErrNotFound       = errors.New("airdrop: drop does not exist")
	ErrClosed         = errors.New("airdrop: drop is fully claimed")
	ErrAlreadyClaimed = errors.New("airdrop: address already claimed this drop")
)

const (
	EventTypeDropCreated = "airdrop.drop.created"
	EventTypeDropClaimed = "airdrop.drop.claimed"
)

// Address is the custody account holding the pooled units of open drops.
var Address = common.ModuleAddress("airdrop")

// Drop is a first-come pool of identical units, one unit per claimant.
type Drop struct {
	ID      uint64
	Asset   [20]byte
	AssetID uint64
	Creator [20]byte
	Amount  *big.Int
	Claimed *big.Int
}

// Clone returns a deep copy of the drop.
func (d *Drop) Clone() *Drop {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if d.Claimed != nil {
		clone.Claimed = new(big.Int).Set(d.Claimed)
	} else {
		clone.Claimed = big.NewInt(0)
	}
	return &clone
}

type engineState interface {
	DropNonce() (uint64, error)
	SetDropNonce(uint64) error
	DropPut(*Drop) error
	DropGet(id uint64) (*Drop, bool)
	DropClaimedGet(dropID uint64, addr [20]byte) (bool, error)
	DropClaimedPut(dropID uint64, addr [20]byte) error
}

type airdropEvent struct {
	evt *types.Event
}

func (e airdropEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e airdropEvent) Event() *types.Event { return e.evt }

// Engine pools donated units and hands out one unit per claiming address.
type Engine struct {
	state   engineState
	ledger  *ledger.Engine
	proxy   *transferproxy.Engine
	emitter events.Emitter
	owner   [20]byte
}

// NewEngine constructs an airdrop engine bound to the ledger and proxy.
func NewEngine(l *ledger.Engine, p *transferproxy.Engine) *Engine {
	return &Engine{ledger: l, proxy: p, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOwner configures the administrative owner allowed to create drops.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

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
	e.emitter.Emit(airdropEvent{evt: evt})
}

// Create pulls units from the caller into drop custody and opens a new drop.
// Owner only.
func (e *Engine) Create(caller, asset [20]byte, id uint64, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if e.proxy == nil {
		return 0, ErrNilProxy
	}
	if caller != e.owner {
		return 0, ErrNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	nonce, err := e.state.DropNonce()
	if err != nil {
		return 0, err
	}
	dropID := nonce + 1
	if err := e.state.SetDropNonce(dropID); err != nil {
		return 0, err
	}
	drop := &Drop{
		ID:      dropID,
		Asset:   asset,
		AssetID: id,
		Creator: caller,
		Amount:  new(big.Int).Set(amount),
		Claimed: big.NewInt(0),
	}
	if err := e.state.DropPut(drop); err != nil {
		return 0, err
	}
	if err := e.proxy.SafeTransferFrom(Address, asset, caller, Address, id, amount); err != nil {
		return 0, err
	}
	e.emit(&types.Event{Type: EventTypeDropCreated, Attributes: map[string]string{
		"dropId":  strconv.FormatUint(dropID, 10),
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"creator": hex.EncodeToString(caller[:]),
		"amount":  amount.String(),
	}})
	return dropID, nil
}

// Drop returns the drop record for an id, or nil when it never existed.
func (e *Engine) Drop(id uint64) (*Drop, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	drop, ok := e.state.DropGet(id)
	if !ok {
		return nil, nil
	}
	return drop.Clone(), nil
}

// Claim hands exactly one unit to the caller. Each address claims a given
// drop at most once; the drop closes when the claimed counter reaches its
// amount.
func (e *Engine) Claim(caller [20]byte, dropID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	drop, ok := e.state.DropGet(dropID)
	if !ok {
		return ErrNotFound
	}
	if drop.Amount == nil || drop.Claimed == nil || drop.Claimed.Cmp(drop.Amount) >= 0 {
		return ErrClosed
	}
	claimed, err := e.state.DropClaimedGet(dropID, caller)
	if err != nil {
		return err
	}
	if claimed {
		return ErrAlreadyClaimed
	}
	drop.Claimed = new(big.Int).Add(drop.Claimed, big.NewInt(1))
	if err := e.state.DropPut(drop); err != nil {
		return err
	}
	if err := e.state.DropClaimedPut(dropID, caller); err != nil {
		return err
	}
	if err := e.ledger.SafeTransferFrom(Address, drop.Asset, Address, caller, drop.AssetID, big.NewInt(1)); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeDropClaimed, Attributes: map[string]string{
		"dropId":  strconv.FormatUint(dropID, 10),
		"asset":   hex.EncodeToString(drop.Asset[:]),
		"tokenId": strconv.FormatUint(drop.AssetID, 10),
		"claimer": hex.EncodeToString(caller[:]),
	}})
	return nil
}
