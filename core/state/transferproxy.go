package state

func operatorKey(addr [20]byte) []byte {
	return storageKey(operatorPrefix, addr[:])
}

// OperatorGet reports whether an address carries the proxy operator flag.
func (m *Manager) OperatorGet(addr [20]byte) (bool, error) {
	return m.readBool(operatorKey(addr))
}

// OperatorPut stores a proxy operator flag.
func (m *Manager) OperatorPut(addr [20]byte, approved bool) error {
	return m.writeBool(operatorKey(addr), approved)
}
