package state

import (
	"encoding/binary"
	"math/big"

	"marketchain/native/airdrop"
)

type storedDrop struct {
	ID      uint64
	Asset   [20]byte
	AssetID uint64
	Creator [20]byte
	Amount  *big.Int
	Claimed *big.Int
}

func dropKey(id uint64) []byte {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	return storageKey(dropRecordPrefix, idBuf[:])
}

func dropClaimKey(id uint64, addr [20]byte) []byte {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	return storageKey(dropClaimPrefix, idBuf[:], addr[:])
}

// DropNonce returns the drop id counter.
func (m *Manager) DropNonce() (uint64, error) {
	return m.readUint64(storageKey(dropNonceKey))
}

// SetDropNonce stores the drop id counter.
func (m *Manager) SetDropNonce(nonce uint64) error {
	return m.writeUint64(storageKey(dropNonceKey), nonce)
}

// DropPut persists a drop record.
func (m *Manager) DropPut(d *airdrop.Drop) error {
	amount := big.NewInt(0)
	if d.Amount != nil {
		amount = new(big.Int).Set(d.Amount)
	}
	claimed := big.NewInt(0)
	if d.Claimed != nil {
		claimed = new(big.Int).Set(d.Claimed)
	}
	return m.writeRLP(dropKey(d.ID), &storedDrop{
		ID:      d.ID,
		Asset:   d.Asset,
		AssetID: d.AssetID,
		Creator: d.Creator,
		Amount:  amount,
		Claimed: claimed,
	})
}

// DropGet loads a drop record by id.
func (m *Manager) DropGet(id uint64) (*airdrop.Drop, bool) {
	var stored storedDrop
	ok, err := m.readRLP(dropKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	drop := &airdrop.Drop{
		ID:      stored.ID,
		Asset:   stored.Asset,
		AssetID: stored.AssetID,
		Creator: stored.Creator,
		Amount:  big.NewInt(0),
		Claimed: big.NewInt(0),
	}
	if stored.Amount != nil {
		drop.Amount = new(big.Int).Set(stored.Amount)
	}
	if stored.Claimed != nil {
		drop.Claimed = new(big.Int).Set(stored.Claimed)
	}
	return drop, true
}

// DropClaimedGet reports whether an address already claimed from a drop.
func (m *Manager) DropClaimedGet(dropID uint64, addr [20]byte) (bool, error) {
	return m.readBool(dropClaimKey(dropID, addr))
}

// DropClaimedPut marks an address as having claimed from a drop.
func (m *Manager) DropClaimedPut(dropID uint64, addr [20]byte) error {
	return m.writeBool(dropClaimKey(dropID, addr), true)
}
