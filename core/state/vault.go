package state

import (
	"math/big"

	"marketchain/native/vault"
)

type storedHold struct {
	SecretHash [32]byte
	Asset      [20]byte
	AssetID    uint64
	Amount     *big.Int
}

func holdKey(secretHash [32]byte) []byte {
	return storageKey(holdRecordPrefix, secretHash[:])
}

// HoldPut persists a vault hold keyed by its secret hash.
func (m *Manager) HoldPut(h *vault.Hold) error {
	amount := big.NewInt(0)
	if h.Amount != nil {
		amount = new(big.Int).Set(h.Amount)
	}
	return m.writeRLP(holdKey(h.SecretHash), &storedHold{
		SecretHash: h.SecretHash,
		Asset:      h.Asset,
		AssetID:    h.AssetID,
		Amount:     amount,
	})
}

// HoldGet loads a vault hold by secret hash.
func (m *Manager) HoldGet(secretHash [32]byte) (*vault.Hold, bool) {
	var stored storedHold
	ok, err := m.readRLP(holdKey(secretHash), &stored)
	if err != nil || !ok {
		return nil, false
	}
	amount := big.NewInt(0)
	if stored.Amount != nil {
		amount = new(big.Int).Set(stored.Amount)
	}
	return &vault.Hold{
		SecretHash: stored.SecretHash,
		Asset:      stored.Asset,
		AssetID:    stored.AssetID,
		Amount:     amount,
	}, true
}
