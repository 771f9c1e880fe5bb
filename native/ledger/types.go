package ledger

import (
	"fmt"
	"math/big"
	"strings"
)

// Collection is a registry entry grouping semi-fungible tokens under one
// stable address. The address never changes across engine upgrades, so every
// other module refers to assets by (collection address, token id).
type Collection struct {
	Address          [20]byte
	Owner            [20]byte
	Name             string
	Symbol           string
	BaseURI          string
	PubliclyMintable bool
	Paused           bool
}

// Clone returns a copy of the collection.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Token captures the immutable metadata and running supply of a single token
// id. The creator is fixed at first mint; supply changes only through burns.
type Token struct {
	Asset           [20]byte
	ID              uint64
	Creator         [20]byte
	Supply          *big.Int
	URI             string
	RoyaltyReceiver [20]byte
	RoyaltyBps      uint32
}

// Clone returns a deep copy of the token record.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Supply != nil {
		clone.Supply = new(big.Int).Set(t.Supply)
	} else {
		clone.Supply = big.NewInt(0)
	}
	return &clone
}

// SanitizeCollection validates a collection definition without mutating the
// original.
func SanitizeCollection(c *Collection) (*Collection, error) {
	if c == nil {
		return nil, fmt.Errorf("ledger: nil collection")
	}
	clone := c.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	clone.Symbol = strings.TrimSpace(clone.Symbol)
	if clone.Name == "" {
		return nil, fmt.Errorf("ledger: collection name required")
	}
	if clone.Symbol == "" {
		return nil, fmt.Errorf("ledger: collection symbol required")
	}
	return clone, nil
}

// SanitizeToken validates a token record, returning a cloned instance with a
// non-nil supply.
func SanitizeToken(t *Token) (*Token, error) {
	if t == nil {
		return nil, fmt.Errorf("ledger: nil token")
	}
	clone := t.Clone()
	if clone.Supply.Sign() < 0 {
		return nil, fmt.Errorf("ledger: token supply must be non-negative")
	}
	if clone.RoyaltyBps > 10_000 {
		return nil, fmt.Errorf("ledger: royalty bps out of range: %d", clone.RoyaltyBps)
	}
	return clone, nil
}
