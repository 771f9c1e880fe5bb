package state

import (
	"encoding/binary"
	"math/big"

	"marketchain/native/gift"
)

type storedLink struct {
	ID         uint64
	Asset      [20]byte
	AssetID    uint64
	Sender     [20]byte
	Amount     *big.Int
	SecretHash [32]byte
}

func linkKey(id uint64) []byte {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	return storageKey(linkRecordPrefix, idBuf[:])
}

// GiftNonce returns the direct-gift sequence counter.
func (m *Manager) GiftNonce() (uint64, error) {
	return m.readUint64(storageKey(giftNonceKey))
}

// SetGiftNonce stores the direct-gift sequence counter.
func (m *Manager) SetGiftNonce(nonce uint64) error {
	return m.writeUint64(storageKey(giftNonceKey), nonce)
}

// LinkNonce returns the link id counter.
func (m *Manager) LinkNonce() (uint64, error) {
	return m.readUint64(storageKey(linkNonceKey))
}

// SetLinkNonce stores the link id counter.
func (m *Manager) SetLinkNonce(nonce uint64) error {
	return m.writeUint64(storageKey(linkNonceKey), nonce)
}

// LinkPut persists a link record.
func (m *Manager) LinkPut(l *gift.Link) error {
	amount := big.NewInt(0)
	if l.Amount != nil {
		amount = new(big.Int).Set(l.Amount)
	}
	return m.writeRLP(linkKey(l.ID), &storedLink{
		ID:         l.ID,
		Asset:      l.Asset,
		AssetID:    l.AssetID,
		Sender:     l.Sender,
		Amount:     amount,
		SecretHash: l.SecretHash,
	})
}

// LinkGet loads a link record by id.
func (m *Manager) LinkGet(id uint64) (*gift.Link, bool) {
	var stored storedLink
	ok, err := m.readRLP(linkKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	amount := big.NewInt(0)
	if stored.Amount != nil {
		amount = new(big.Int).Set(stored.Amount)
	}
	return &gift.Link{
		ID:         stored.ID,
		Asset:      stored.Asset,
		AssetID:    stored.AssetID,
		Sender:     stored.Sender,
		Amount:     amount,
		SecretHash: stored.SecretHash,
	}, true
}
