package types

import "math/big"

// Account holds the native-currency state tracked for every address that has
// interacted with the engine. Balances are denominated in the smallest
// indivisible unit.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// NewAccount returns an account with a zeroed balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return &clone
}
