package sale

import (
	"fmt"
	"math/big"
)

// Params fixes the immutable terms of a sale at initialization.
type Params struct {
	Name          string
	Symbol        string
	BaseURI       string
	MaxSupply     uint64
	MaxPerAccount uint64
	Rewards       uint64
	Price         *big.Int
	Signer        [20]byte
	RewardsTo     [20]byte
	URIs          []string
}

// Sale is the persisted sale record. Cursor is the highest token id minted so
// far; ids 1..Rewards are the preminted reward passes.
type Sale struct {
	Collection    [20]byte
	Owner         [20]byte
	MaxSupply     uint64
	MaxPerAccount uint64
	Rewards       uint64
	Price         *big.Int
	Signer        [20]byte
	URIs          []string
	Cursor        uint64
	Active        bool
	Public        bool
}

// Clone returns a deep copy of the sale record.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Price != nil {
		clone.Price = new(big.Int).Set(s.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	clone.URIs = append([]string(nil), s.URIs...)
	return &clone
}

// SanitizeParams validates sale terms.
func SanitizeParams(p Params) (Params, error) {
	if p.MaxSupply == 0 {
		return p, fmt.Errorf("sale: max supply must be greater than 0")
	}
	if p.MaxPerAccount == 0 {
		return p, fmt.Errorf("sale: per-account limit must be greater than 0")
	}
	if p.Rewards >= p.MaxSupply {
		return p, fmt.Errorf("sale: rewards must leave public supply")
	}
	if uint64(len(p.URIs)) != p.MaxSupply {
		return p, fmt.Errorf("sale: uri list must cover the full supply")
	}
	if p.Price == nil || p.Price.Sign() < 0 {
		return p, fmt.Errorf("sale: price must be non-negative")
	}
	return p, nil
}
