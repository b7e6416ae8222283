package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// EVMAddressLength is the length in bytes of an EVM account/contract address.
const EVMAddressLength = 20

// EVMAddress is a 20-byte EVM account or contract address.
type EVMAddress [EVMAddressLength]byte

// ErrInvalidEVMAddress is returned when an address fails to parse.
var ErrInvalidEVMAddress = errors.New("common: invalid EVM address")

// ParseEVMAddress accepts an optionally "0x"-prefixed 40 hex-character
// string and returns the decoded address.
func ParseEVMAddress(s string) (EVMAddress, error) {
	var a EVMAddress
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != EVMAddressLength*2 {
		return a, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidEVMAddress, EVMAddressLength*2, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: %s", ErrInvalidEVMAddress, err)
	}
	copy(a[:], raw)
	return a, nil
}

// NativeEVMAddress is the zero address, used to represent a chain's native
// token rather than an ERC-20 contract.
var NativeEVMAddress EVMAddress

// IsNative reports whether a is the all-zero address.
func (a EVMAddress) IsNative() bool {
	return a == NativeEVMAddress
}

// Hex renders the address as a "0x"-prefixed lowercase hex string.
func (a EVMAddress) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a EVMAddress) String() string {
	return a.Hex()
}
