package ledger

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"marketchain/core/types"
)

const (
	EventTypeCollectionCreated = "ledger.collection.created"
	EventTypeTokenCreated      = "ledger.token.created"
	EventTypeTransfer          = "ledger.transfer"
	EventTypeBurn              = "ledger.burn"
)

// NewCollectionCreatedEvent returns the canonical payload for a collection
// registration.
func NewCollectionCreatedEvent(c *Collection) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["asset"] = hex.EncodeToString(c.Address[:])
		attrs["owner"] = hex.EncodeToString(c.Owner[:])
		attrs["name"] = c.Name
		attrs["symbol"] = c.Symbol
	}
	return &types.Event{Type: EventTypeCollectionCreated, Attributes: attrs}
}

// NewTokenCreatedEvent returns the canonical payload for a one-shot token
// creation.
func NewTokenCreatedEvent(t *Token, to [20]byte) *types.Event {
	attrs := make(map[string]string)
	if t != nil {
		attrs["asset"] = hex.EncodeToString(t.Asset[:])
		attrs["tokenId"] = strconv.FormatUint(t.ID, 10)
		attrs["creator"] = hex.EncodeToString(t.Creator[:])
		attrs["supply"] = t.Supply.String()
		attrs["to"] = hex.EncodeToString(to[:])
	}
	return &types.Event{Type: EventTypeTokenCreated, Attributes: attrs}
}

// NewTransferEvent returns the canonical payload for a balance movement.
func NewTransferEvent(asset [20]byte, id uint64, from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"from":    hex.EncodeToString(from[:]),
		"to":      hex.EncodeToString(to[:]),
		"amount":  amount.String(),
	}}
}

// NewBurnEvent returns the canonical payload for a supply reduction.
func NewBurnEvent(asset [20]byte, id uint64, from [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBurn, Attributes: map[string]string{
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"from":    hex.EncodeToString(from[:]),
		"amount":  amount.String(),
	}}
}
