package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"marketchain/core/types"
)

const (
	EventTypeTradeOpened       = "market.trade.opened"
	EventTypeTradeExecuted     = "market.trade.executed"
	EventTypeTradeGifted       = "market.trade.gifted"
	EventTypeTradeClosed       = "market.trade.closed"
	EventTypeTradePriceChanged = "market.trade.price_changed"
	EventTypeServiceFeeChanged = "market.service_fee_changed"
	EventTypeWithdrawal        = "market.withdrawal"
)

// NewTradeOpenedEvent returns the canonical payload for a newly opened trade.
func NewTradeOpenedEvent(t *Trade) *types.Event {
	attrs := make(map[string]string)
	if t != nil {
		attrs["asset"] = hex.EncodeToString(t.Asset[:])
		attrs["tokenId"] = strconv.FormatUint(t.AssetID, 10)
		attrs["seller"] = hex.EncodeToString(t.Seller[:])
		attrs["amount"] = t.Amount.String()
		attrs["price"] = t.Price.String()
	}
	return &types.Event{Type: EventTypeTradeOpened, Attributes: attrs}
}

// NewTradeExecutedEvent returns the payload for a purchase or paid gift.
func NewTradeExecutedEvent(asset [20]byte, id uint64, seller, buyer [20]byte, amount *big.Int, to [20]byte) *types.Event {
	return &types.Event{Type: EventTypeTradeExecuted, Attributes: map[string]string{
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"seller":  hex.EncodeToString(seller[:]),
		"buyer":   hex.EncodeToString(buyer[:]),
		"amount":  amount.String(),
		"to":      hex.EncodeToString(to[:]),
	}}
}

// NewTradeGiftedEvent returns the payload for a seller-side unpaid gift.
func NewTradeGiftedEvent(asset [20]byte, id uint64, seller [20]byte, amount *big.Int, to [20]byte) *types.Event {
	return &types.Event{Type: EventTypeTradeGifted, Attributes: map[string]string{
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"seller":  hex.EncodeToString(seller[:]),
		"amount":  amount.String(),
		"to":      hex.EncodeToString(to[:]),
	}}
}

// NewTradeClosedEvent returns the payload for a closed trade.
func NewTradeClosedEvent(asset [20]byte, id uint64, seller [20]byte) *types.Event {
	return &types.Event{Type: EventTypeTradeClosed, Attributes: map[string]string{
		"asset":   hex.EncodeToString(asset[:]),
		"tokenId": strconv.FormatUint(id, 10),
		"seller":  hex.EncodeToString(seller[:]),
	}}
}

// NewTradePriceChangedEvent returns the payload for a price update.
func NewTradePriceChangedEvent(t *Trade) *types.Event {
	attrs := make(map[string]string)
	if t != nil {
		attrs["asset"] = hex.EncodeToString(t.Asset[:])
		attrs["tokenId"] = strconv.FormatUint(t.AssetID, 10)
		attrs["seller"] = hex.EncodeToString(t.Seller[:])
		attrs["price"] = t.Price.String()
	}
	return &types.Event{Type: EventTypeTradePriceChanged, Attributes: attrs}
}

// NewServiceFeeChangedEvent returns the payload for a fee update.
func NewServiceFeeChangedEvent(bps uint32) *types.Event {
	return &types.Event{Type: EventTypeServiceFeeChanged, Attributes: map[string]string{
		"feeBps": strconv.FormatUint(uint64(bps), 10),
	}}
}

// NewWithdrawalEvent returns the payload for a completed fee withdrawal.
func NewWithdrawalEvent(to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdrawal, Attributes: map[string]string{
		"to":     hex.EncodeToString(to[:]),
		"amount": amount.String(),
	}}
}
