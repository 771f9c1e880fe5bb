package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Address is a 20-byte account address encoded as 0x-prefixed hex in JSON.
type Address [20]byte

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(a[:]))
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := decodeHex(raw, 20)
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	copy(a[:], decoded)
	return nil
}

// Hash is a 32-byte value encoded as 0x-prefixed hex in JSON.
type Hash [32]byte

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h[:]))
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := decodeHex(raw, 32)
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	copy(h[:], decoded)
	return nil
}

// Bytes is arbitrary binary data encoded as 0x-prefixed hex in JSON.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(b))
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := decodeHex(raw, -1)
	if err != nil {
		return fmt.Errorf("invalid bytes: %w", err)
	}
	*b = decoded
	return nil
}

// BigInt carries arbitrary-precision integers as decimal strings in JSON.
type BigInt big.Int

func (b *BigInt) MarshalJSON() ([]byte, error) {
	if b == nil {
		return json.Marshal("0")
	}
	return json.Marshal((*big.Int)(b).String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Bare JSON numbers are accepted for convenience.
		raw = strings.TrimSpace(string(data))
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*(*big.Int)(b) = *value
	return nil
}

// Int returns the underlying big.Int, zero when unset.
func (b *BigInt) Int() *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	return (*big.Int)(b)
}

func newBigInt(v *big.Int) *BigInt {
	if v == nil {
		return (*BigInt)(big.NewInt(0))
	}
	return (*BigInt)(new(big.Int).Set(v))
}

func decodeHex(raw string, wantLen int) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, err
	}
	if wantLen >= 0 && len(decoded) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(decoded))
	}
	return decoded, nil
}
