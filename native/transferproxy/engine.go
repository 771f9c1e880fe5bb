package transferproxy

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/common"
	"marketchain/native/ledger"
)

var (
	ErrNilState       = errors.New("transferproxy: state not configured")
	ErrNilLedger      = errors.New("transferproxy: ledger not configured")
	ErrNotOwner       = errors.New("transferproxy: caller is not the owner")
	ErrNotOperator    = errors.New("transferproxy: caller is not the operator")
	ErrLengthMismatch = errors.New("transferproxy: array length mismatch")
)

const (
	EventTypeOperatorSet = "transferproxy.operator_set"
	EventTypeTransfer    = "transferproxy.transfer"
)

// Address is the stable custody identity the proxy presents to the ledger.
// Collections register it as their transfer agent, which is what lets the
// proxy relay moves without a per-transfer owner signature.
var Address = common.ModuleAddress("transferproxy")

type engineState interface {
	OperatorGet(addr [20]byte) (bool, error)
	OperatorPut(addr [20]byte, approved bool) error
}

type proxyEvent struct {
	evt *types.Event
}

func (e proxyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e proxyEvent) Event() *types.Event { return e.evt }

// Engine is the sole gateway through which registered operator modules move
// assets between arbitrary addresses. It custodies nothing itself; it only
// relays authorized transfers to the ledger.
type Engine struct {
	state   engineState
	ledger  *ledger.Engine
	emitter events.Emitter
	owner   [20]byte
}

// NewEngine constructs a proxy engine bound to the supplied ledger.
func NewEngine(l *ledger.Engine) *Engine {
	return &Engine{ledger: l, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend holding the operator flags. The flags
// outlive any engine instance, so swapping the logic preserves registrations.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOwner configures the administrative owner.
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
	e.emitter.Emit(proxyEvent{evt: evt})
}

// IsOperator reports whether an address holds the operator flag.
func (e *Engine) IsOperator(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.OperatorGet(addr)
}

// SetOperator toggles a single operator flag. Owner only.
func (e *Engine) SetOperator(caller, operator [20]byte, approved bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if err := e.state.OperatorPut(operator, approved); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeOperatorSet, Attributes: map[string]string{
		"operator": hex.EncodeToString(operator[:]),
		"approved": strconv.FormatBool(approved),
	}})
	return nil
}

// SetOperators toggles operator flags in bulk, element-wise equivalent to
// repeated SetOperator calls.
func (e *Engine) SetOperators(caller [20]byte, operators [][20]byte, approved []bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if len(operators) != len(approved) {
		return ErrLengthMismatch
	}
	for i := range operators {
		if err := e.SetOperator(caller, operators[i], approved[i]); err != nil {
			return err
		}
	}
	return nil
}

// SafeTransferFrom relays a transfer on behalf of a registered operator. The
// ledger sees the proxy as the acting party, which it accepts because the
// proxy is the collections' transfer agent.
func (e *Engine) SafeTransferFrom(caller, asset, from, to [20]byte, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	operator, err := e.state.OperatorGet(caller)
	if err != nil {
		return err
	}
	if !operator {
		return ErrNotOperator
	}
	if err := e.ledger.SafeTransferFrom(Address, asset, from, to, id, amount); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"operator": hex.EncodeToString(caller[:]),
		"asset":    hex.EncodeToString(asset[:]),
		"tokenId":  strconv.FormatUint(id, 10),
		"from":     hex.EncodeToString(from[:]),
		"to":       hex.EncodeToString(to[:]),
		"amount":   amount.String(),
	}})
	return nil
}
