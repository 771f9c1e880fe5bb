package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"marketchain/core/types"
	"marketchain/storage"
)

// Manager is the persistence layer shared by every engine. It stores RLP
// records under keccak-derived keys and satisfies each engine's narrow state
// interface, so engines never see the database directly.
type Manager struct {
	db storage.Database
}

// NewManager constructs a manager over a database or overlay.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) writeRLP(key []byte, value interface{}) error {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, data)
}

func (m *Manager) readRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) writeUint64(key []byte, value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return m.db.Put(key, buf[:])
}

func (m *Manager) readUint64(key []byte) (uint64, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: malformed counter value")
	}
	return binary.BigEndian.Uint64(data), nil
}

func (m *Manager) writeBool(key []byte, value bool) error {
	b := []byte{0}
	if value {
		b[0] = 1
	}
	return m.db.Put(key, b)
}

func (m *Manager) readBool(key []byte) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(data) == 1 && data[0] == 1, nil
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountKey(addr [20]byte) []byte {
	return storageKey(accountPrefix, addr[:])
}

// GetAccount loads a native-balance account, returning a fresh zero account
// for addresses never seen before.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.readRLP(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists a native-balance account.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = new(big.Int).Set(account.Balance)
	}
	return m.writeRLP(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: balance})
}
