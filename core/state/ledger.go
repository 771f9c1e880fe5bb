package state

import (
	"encoding/binary"
	"math/big"

	"marketchain/native/ledger"
)

type storedCollection struct {
	Address          [20]byte
	Owner            [20]byte
	Name             string
	Symbol           string
	BaseURI          string
	PubliclyMintable bool
	Paused           bool
}

type storedToken struct {
	Asset           [20]byte
	ID              uint64
	Creator         [20]byte
	Supply          *big.Int
	URI             string
	RoyaltyReceiver [20]byte
	RoyaltyBps      uint32
}

func collectionKey(addr [20]byte) []byte {
	return storageKey(collectionRecordPrefix, addr[:])
}

func tokenKey(asset [20]byte, id uint64) []byte {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	return storageKey(tokenRecordPrefix, asset[:], idBuf[:])
}

func balanceKey(asset [20]byte, id uint64, owner [20]byte) []byte {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	return storageKey(balancePrefix, asset[:], idBuf[:], owner[:])
}

func approvalKey(asset, owner, operator [20]byte) []byte {
	return storageKey(approvalPrefix, asset[:], owner[:], operator[:])
}

// CollectionPut persists a collection record.
func (m *Manager) CollectionPut(c *ledger.Collection) error {
	return m.writeRLP(collectionKey(c.Address), &storedCollection{
		Address:          c.Address,
		Owner:            c.Owner,
		Name:             c.Name,
		Symbol:           c.Symbol,
		BaseURI:          c.BaseURI,
		PubliclyMintable: c.PubliclyMintable,
		Paused:           c.Paused,
	})
}

// CollectionGet loads a collection record by address.
func (m *Manager) CollectionGet(addr [20]byte) (*ledger.Collection, bool) {
	var stored storedCollection
	ok, err := m.readRLP(collectionKey(addr), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &ledger.Collection{
		Address:          stored.Address,
		Owner:            stored.Owner,
		Name:             stored.Name,
		Symbol:           stored.Symbol,
		BaseURI:          stored.BaseURI,
		PubliclyMintable: stored.PubliclyMintable,
		Paused:           stored.Paused,
	}, true
}

// CollectionNonce returns the collection-address derivation counter.
func (m *Manager) CollectionNonce() (uint64, error) {
	return m.readUint64(storageKey(collectionNonceKey))
}

// CollectionSetNonce stores the collection-address derivation counter.
func (m *Manager) CollectionSetNonce(nonce uint64) error {
	return m.writeUint64(storageKey(collectionNonceKey), nonce)
}

// TokenPut persists a token record.
func (m *Manager) TokenPut(t *ledger.Token) error {
	supply := big.NewInt(0)
	if t.Supply != nil {
		supply = new(big.Int).Set(t.Supply)
	}
	return m.writeRLP(tokenKey(t.Asset, t.ID), &storedToken{
		Asset:           t.Asset,
		ID:              t.ID,
		Creator:         t.Creator,
		Supply:          supply,
		URI:             t.URI,
		RoyaltyReceiver: t.RoyaltyReceiver,
		RoyaltyBps:      t.RoyaltyBps,
	})
}

// TokenGet loads a token record.
func (m *Manager) TokenGet(asset [20]byte, id uint64) (*ledger.Token, bool) {
	var stored storedToken
	ok, err := m.readRLP(tokenKey(asset, id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	supply := big.NewInt(0)
	if stored.Supply != nil {
		supply = new(big.Int).Set(stored.Supply)
	}
	return &ledger.Token{
		Asset:           stored.Asset,
		ID:              stored.ID,
		Creator:         stored.Creator,
		Supply:          supply,
		URI:             stored.URI,
		RoyaltyReceiver: stored.RoyaltyReceiver,
		RoyaltyBps:      stored.RoyaltyBps,
	}, true
}

// BalanceGet returns an owner's holding of a token id, zero when unset.
func (m *Manager) BalanceGet(asset [20]byte, id uint64, owner [20]byte) (*big.Int, error) {
	var stored *big.Int
	ok, err := m.readRLP(balanceKey(asset, id, owner), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return big.NewInt(0), nil
	}
	return stored, nil
}

// BalancePut stores an owner's holding of a token id.
func (m *Manager) BalancePut(asset [20]byte, id uint64, owner [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.writeRLP(balanceKey(asset, id, owner), amount)
}

// ApprovalGet reports whether an operator is approved for all of an owner's
// holdings in a collection.
func (m *Manager) ApprovalGet(asset, owner, operator [20]byte) (bool, error) {
	return m.readBool(approvalKey(asset, owner, operator))
}

// ApprovalPut stores an operator approval flag.
func (m *Manager) ApprovalPut(asset, owner, operator [20]byte, approved bool) error {
	return m.writeBool(approvalKey(asset, owner, operator), approved)
}
