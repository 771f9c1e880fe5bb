package common

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// ModuleAddress derives the deterministic custody address for a named engine
// module. Assets escrowed by the market, vault, gift and airdrop engines are
// ledger-owned by these addresses, so custody balances are visible through the
// ordinary balance queries.
func ModuleAddress(name string) [20]byte {
	hash := ethcrypto.Keccak256([]byte("module/" + name))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}
