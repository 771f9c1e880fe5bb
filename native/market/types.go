package market

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Trade is a standing offer by a seller of a fixed quantity of one token id
// at a fixed unit price. The escrowed units live under the market custody
// address; the trade only tracks how many of them this offer may still sell.
// A trade is open iff Amount > 0; records are zeroed, never deleted.
type Trade struct {
	Asset   [20]byte
	AssetID uint64
	Seller  [20]byte
	Price   *big.Int
	Amount  *big.Int
}

// TradeKey derives the storage key for a (asset, id, seller) offer.
func TradeKey(asset [20]byte, id uint64, seller [20]byte) [32]byte {
	buf := make([]byte, 20+8+20)
	copy(buf, asset[:])
	binary.BigEndian.PutUint64(buf[20:], id)
	copy(buf[28:], seller[:])
	return ethcrypto.Keccak256Hash(buf)
}

// Key returns the trade's storage key.
func (t *Trade) Key() [32]byte {
	return TradeKey(t.Asset, t.AssetID, t.Seller)
}

// Open reports whether the trade still has escrowed units on offer.
func (t *Trade) Open() bool {
	return t != nil && t.Amount != nil && t.Amount.Sign() > 0
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Price != nil {
		clone.Price = new(big.Int).Set(t.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if t.Amount != nil {
		clone.Amount = new(big.Int).Set(t.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeTrade validates a trade record, returning a clone with non-nil
// amounts.
func SanitizeTrade(t *Trade) (*Trade, error) {
	if t == nil {
		return nil, fmt.Errorf("market: nil trade")
	}
	clone := t.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("market: trade price must be non-negative")
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("market: trade amount must be non-negative")
	}
	return clone, nil
}
