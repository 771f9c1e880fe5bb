package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"marketchain/native/market"
	"marketchain/storage"
)

type storedTrade struct {
	Asset   [20]byte
	AssetID uint64
	Seller  [20]byte
	Price   *big.Int
	Amount  *big.Int
}

func tradeKey(key [32]byte) []byte {
	return storageKey(tradeRecordPrefix, key[:])
}

// TradePut persists a trade record under its derived key.
func (m *Manager) TradePut(t *market.Trade) error {
	sanitized, err := market.SanitizeTrade(t)
	if err != nil {
		return err
	}
	key := sanitized.Key()
	return m.writeRLP(tradeKey(key), &storedTrade{
		Asset:   sanitized.Asset,
		AssetID: sanitized.AssetID,
		Seller:  sanitized.Seller,
		Price:   sanitized.Price,
		Amount:  sanitized.Amount,
	})
}

// TradeGet loads a trade record by its derived key.
func (m *Manager) TradeGet(key [32]byte) (*market.Trade, bool) {
	var stored storedTrade
	ok, err := m.readRLP(tradeKey(key), &stored)
	if err != nil || !ok {
		return nil, false
	}
	trade := &market.Trade{
		Asset:   stored.Asset,
		AssetID: stored.AssetID,
		Seller:  stored.Seller,
		Price:   big.NewInt(0),
		Amount:  big.NewInt(0),
	}
	if stored.Price != nil {
		trade.Price = new(big.Int).Set(stored.Price)
	}
	if stored.Amount != nil {
		trade.Amount = new(big.Int).Set(stored.Amount)
	}
	return trade, true
}

// MarketServiceFeeGet returns the configured service fee and whether one has
// been stored at all.
func (m *Manager) MarketServiceFeeGet() (uint32, bool, error) {
	data, err := m.db.Get(storageKey(marketFeeKey))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) != 4 {
		return 0, false, fmt.Errorf("state: malformed service fee value")
	}
	return binary.BigEndian.Uint32(data), true, nil
}

// MarketServiceFeePut stores the service fee in basis points.
func (m *Manager) MarketServiceFeePut(bps uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], bps)
	return m.db.Put(storageKey(marketFeeKey), buf[:])
}
