package state

import (
	"math/big"

	"marketchain/native/sale"
)

type storedSale struct {
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

// SalePut persists the sale record.
func (m *Manager) SalePut(s *sale.Sale) error {
	price := big.NewInt(0)
	if s.Price != nil {
		price = new(big.Int).Set(s.Price)
	}
	return m.writeRLP(storageKey(saleRecordKey), &storedSale{
		Collection:    s.Collection,
		Owner:         s.Owner,
		MaxSupply:     s.MaxSupply,
		MaxPerAccount: s.MaxPerAccount,
		Rewards:       s.Rewards,
		Price:         price,
		Signer:        s.Signer,
		URIs:          append([]string(nil), s.URIs...),
		Cursor:        s.Cursor,
		Active:        s.Active,
		Public:        s.Public,
	})
}

// SaleGet loads the sale record.
func (m *Manager) SaleGet() (*sale.Sale, bool) {
	var stored storedSale
	ok, err := m.readRLP(storageKey(saleRecordKey), &stored)
	if err != nil || !ok {
		return nil, false
	}
	price := big.NewInt(0)
	if stored.Price != nil {
		price = new(big.Int).Set(stored.Price)
	}
	return &sale.Sale{
		Collection:    stored.Collection,
		Owner:         stored.Owner,
		MaxSupply:     stored.MaxSupply,
		MaxPerAccount: stored.MaxPerAccount,
		Rewards:       stored.Rewards,
		Price:         price,
		Signer:        stored.Signer,
		URIs:          append([]string(nil), stored.URIs...),
		Cursor:        stored.Cursor,
		Active:        stored.Active,
		Public:        stored.Public,
	}, true
}

func saleAllocationKey(addr [20]byte) []byte {
	return storageKey(saleAllocationPrefix, addr[:])
}

// SaleAllocationGet returns how many passes an address has bought.
func (m *Manager) SaleAllocationGet(addr [20]byte) (uint64, error) {
	return m.readUint64(saleAllocationKey(addr))
}

// SaleAllocationPut stores an address's purchased pass count.
func (m *Manager) SaleAllocationPut(addr [20]byte, minted uint64) error {
	return m.writeUint64(saleAllocationKey(addr), minted)
}
