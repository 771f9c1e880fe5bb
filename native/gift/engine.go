package gift

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketchain/core/events"
	"marketchain/core/types"
	"marketchain/native/common"
	"marketchain/native/ledger"
	"marketchain/native/transferproxy"
)

var (
	ErrNilState      = errors.New("gift: state not configured")
	ErrNilLedger     = errors.New("gift: ledger not configured")
	ErrNilProxy      = errors.New("gift: transfer proxy not configured")
	ErrInvalidAmount = errors.New("gift: amount must be greater than 0")
	ErrLinkNotFound  = errors.New("gift: link does not exist or is already claimed")
	ErrInvalidSecret = errors.New("gift: secret does not match the link hash")
)

const (
	EventTypeGiftSent    = "gift.sent"
	EventTypeLinkCreated = "gift.link.created"
	EventTypeLinkClaimed = "gift.link.claimed"
)

// Address is the custody account that parks units behind unclaimed links.
var Address = common.ModuleAddress("gift")

// Link is a claimable transfer parked under gift custody until someone
// presents the preimage of its hash. Links are independent records; two links
// may carry the same hash and each is claimed on its own.
type Link struct {
	ID         uint64
	Asset      [20]byte
	AssetID    uint64
	Sender     [20]byte
	Amount     *big.Int
	SecretHash [32]byte
}

// Clone returns a deep copy of the link.
func (l *Link) Clone() *Link {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

type engineState interface {
	GiftNonce() (uint64, error)
	SetGiftNonce(uint64) error
	LinkNonce() (uint64, error)
	SetLinkNonce(uint64) error
	LinkPut(*Link) error
	LinkGet(id uint64) (*Link, bool)
}

type giftEvent struct {
	evt *types.Event
}

func (e giftEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e giftEvent) Event() *types.Event { return e.evt }

// Engine sends direct gifts and manages hash-locked claim links.
type Engine struct {
	state   engineState
	ledger  *ledger.Engine
	proxy   *transferproxy.Engine
	emitter events.Emitter
}

// NewEngine constructs a gift engine bound to the ledger and proxy.
func NewEngine(l *ledger.Engine, p *transferproxy.Engine) *Engine {
	return &Engine{ledger: l, proxy: p, emitter: events.NoopEmitter{}}
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
	e.emitter.Emit(giftEvent{evt: evt})
}

// Gift moves units straight from the sender to the recipient through the
// proxy. No custody window: the recipient owns the units when the call
// returns. The gift id only sequences the event stream.
func (e *Engine) Gift(from, asset [20]byte, id uint64, to [20]byte, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if e.proxy == nil {
		return 0, ErrNilProxy
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	nonce, err := e.state.GiftNonce()
	if err != nil {
		return 0, err
	}
	giftID := nonce + 1
	if err := e.state.SetGiftNonce(giftID); err != nil {
		return 0, err
	}
	if err := e.proxy.SafeTransferFrom(Address, asset, from, to, id, amount); err != nil {
		return 0, err
	}
	e.emit(&types.Event{Type: EventTypeGiftSent, Attributes: map[string]string{
		"giftId":  strconv.FormatUint(giftID, 10),
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"from":    hex.EncodeToString(from[:]),
		"to":      hex.EncodeToString(to[:]),
		"amount":  amount.String(),
	}})
	return giftID, nil
}

// CreateLink parks units under gift custody behind a secret hash and returns
// the new link id. Links sharing a hash stay independent: each carries its
// own amount and is claimed on its own.
func (e *Engine) CreateLink(creator, asset [20]byte, id uint64, amount *big.Int, secretHash [32]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if e.proxy == nil {
		return 0, ErrNilProxy
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	nonce, err := e.state.LinkNonce()
	if err != nil {
		return 0, err
	}
	linkID := nonce + 1
	if err := e.state.SetLinkNonce(linkID); err != nil {
		return 0, err
	}
	link := &Link{
		ID:         linkID,
		Asset:      asset,
		AssetID:    id,
		Sender:     creator,
		Amount:     new(big.Int).Set(amount),
		SecretHash: secretHash,
	}
	if err := e.state.LinkPut(link); err != nil {
		return 0, err
	}
	if err := e.proxy.SafeTransferFrom(Address, asset, creator, Address, id, amount); err != nil {
		return 0, err
	}
	e.emit(&types.Event{Type: EventTypeLinkCreated, Attributes: map[string]string{
		"linkId":     strconv.FormatUint(linkID, 10),
		"asset":      hex.EncodeToString(asset[:]),
		"tokenId":    strconv.FormatUint(id, 10),
		"sender":     hex.EncodeToString(creator[:]),
		"amount":     amount.String(),
		"secretHash": hex.EncodeToString(secretHash[:]),
	}})
	return linkID, nil
}

// Link returns the link record for an id, or nil when it never existed.
func (e *Engine) Link(id uint64) (*Link, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	link, ok := e.state.LinkGet(id)
	if !ok {
		return nil, nil
	}
	return link.Clone(), nil
}

// ClaimLink releases a link's full amount to the caller. Claiming is
// terminal: the amount is zeroed and a second claim of the same id fails as
// not found even with the right secret.
func (e *Engine) ClaimLink(caller [20]byte, linkID uint64, secret []byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	link, ok := e.state.LinkGet(linkID)
	if !ok || link.Amount == nil || link.Amount.Sign() == 0 {
		return ErrLinkNotFound
	}
	hash := ethcrypto.Keccak256Hash(secret)
	if !bytes.Equal(hash[:], link.SecretHash[:]) {
		return ErrInvalidSecret
	}
	amount := new(big.Int).Set(link.Amount)
	link.Amount = big.NewInt(0)
	if err := e.state.LinkPut(link); err != nil {
		return err
	}
	if err := e.ledger.SafeTransferFrom(Address, link.Asset, Address, caller, link.AssetID, amount); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeLinkClaimed, Attributes: map[string]string{
		"linkId":  strconv.FormatUint(linkID, 10),
		"asset":   hex.EncodeToString(link.Asset[:]),
		"tokenId": strconv.FormatUint(link.AssetID, 10),
		"claimer": hex.EncodeToString(caller[:]),
		"amount":  amount.String(),
	}})
	return nil
}
