// Package common holds the small value types shared across the orchestrator:
// canister principals, EVM addresses, wasm hashes and token identifiers.
// The style mirrors go-ethereum's common package (fixed-size byte arrays
// with Hex/String accessors and strict parsing).
package common

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// PrincipalLength is the length in bytes of a canister/caller identity on
// the target compute fabric.
const PrincipalLength = 29

// Principal is an opaque identity for callers and canisters.
type Principal [PrincipalLength]byte

// ErrInvalidPrincipal is returned when a principal fails to parse.
var ErrInvalidPrincipal = errors.New("common: invalid principal")

// ParsePrincipal decodes the hex representation (without a 0x prefix) of a
// principal into its fixed-size form.
func ParsePrincipal(s string) (Principal, error) {
	var p Principal
	raw, err := hex.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("%w: %s", ErrInvalidPrincipal, err)
	}
	if len(raw) != PrincipalLength {
		return p, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrincipal, PrincipalLength, len(raw))
	}
	copy(p[:], raw)
	return p, nil
}

// BytesToPrincipal copies raw into a Principal, panicking if the length is
// wrong. Callers that cannot guarantee the length should use ParsePrincipal.
func BytesToPrincipal(raw []byte) Principal {
	var p Principal
	if len(raw) != PrincipalLength {
		panic(fmt.Sprintf("common: BytesToPrincipal: expected %d bytes, got %d", PrincipalLength, len(raw)))
	}
	copy(p[:], raw)
	return p
}

// String renders the principal as lowercase hex.
func (p Principal) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p is the all-zero principal (used as a sentinel
// for "not yet allocated").
func (p Principal) IsZero() bool {
	return p == Principal{}
}

// Bytes returns a copy of the underlying bytes.
func (p Principal) Bytes() []byte {
	out := make([]byte, PrincipalLength)
	copy(out, p[:])
	return out
}
