package common

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// WasmHashLength is the length in bytes of a content hash over a compressed
// wasm binary.
const WasmHashLength = 32

// WasmHash is the SHA-256 digest of a compressed wasm binary.
type WasmHash [WasmHashLength]byte

// ErrInvalidWasmHash is returned when a wasm hash fails to parse.
var ErrInvalidWasmHash = errors.New("common: invalid wasm hash")

// ParseWasmHash decodes a hex-encoded 32-byte hash.
func ParseWasmHash(s string) (WasmHash, error) {
	var h WasmHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %s", ErrInvalidWasmHash, err)
	}
	if len(raw) != WasmHashLength {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidWasmHash, WasmHashLength, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// HashCompressedWasm computes the content hash used to address a wasm
// binary, operating on bytes that have already been compressed by the
// caller (see internal/wasmstore, which compresses with snappy before
// hashing, matching spec.md §3's "SHA-256 of the compressed binary").
func HashCompressedWasm(compressed []byte) WasmHash {
	return WasmHash(sha256.Sum256(compressed))
}

func (h WasmHash) String() string {
	return hex.EncodeToString(h[:])
}

func (h WasmHash) IsZero() bool {
	return h == WasmHash{}
}
