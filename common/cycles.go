package common

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Cycles is the fabric's resource unit, denominated as an arbitrary
// precision non-negative integer narrowed to u128 range at the wire
// boundary (spec.md §9: "all cycles/fee arithmetic uses u128; check-and-
// return on underflow, never wrap"). It is backed by uint256.Int the same
// way the teacher's miner package backs wei amounts with uint256.Int.
type Cycles struct {
	inner uint256.Int
}

// ErrCyclesUnderflow is returned by Sub when the result would be negative.
var ErrCyclesUnderflow = errors.New("common: cycles underflow")

// ErrCyclesOverflowsU128 is returned when a value narrowed from the wire
// does not fit in 128 bits.
var ErrCyclesOverflowsU128 = errors.New("common: cycles value overflows u128")

var maxU128 = new(uint256.Int).Sub(
	new(uint256.Int).Lsh(uint256.NewInt(1), 128),
	uint256.NewInt(1),
)

// NewCycles constructs a Cycles value from a uint64, always representable.
func NewCycles(v uint64) Cycles {
	return Cycles{inner: *uint256.NewInt(v)}
}

// CyclesFromBigEndian narrows an arbitrary-precision wire value (e.g. a
// decoded Nat) to u128 range, rejecting anything larger.
func CyclesFromBigEndian(b []byte) (Cycles, error) {
	var i uint256.Int
	i.SetBytes(b)
	if i.Gt(maxU128) {
		return Cycles{}, ErrCyclesOverflowsU128
	}
	return Cycles{inner: i}, nil
}

// Add returns c + other.
func (c Cycles) Add(other Cycles) Cycles {
	var out uint256.Int
	out.Add(&c.inner, &other.inner)
	return Cycles{inner: out}
}

// Sub returns c - other, failing rather than wrapping if other > c.
func (c Cycles) Sub(other Cycles) (Cycles, error) {
	if other.inner.Gt(&c.inner) {
		return Cycles{}, fmt.Errorf("%w: %s - %s", ErrCyclesUnderflow, c, other)
	}
	var out uint256.Int
	out.Sub(&c.inner, &other.inner)
	return Cycles{inner: out}, nil
}

// MulUint64 returns c * n. The threshold formulas in
// internal/runtime/cycles_management.go do not use it.
func (c Cycles) MulUint64(n uint64) Cycles {
	var out uint256.Int
	out.Mul(&c.inner, uint256.NewInt(n))
	return Cycles{inner: out}
}

// Cmp compares c to other: -1, 0, 1.
func (c Cycles) Cmp(other Cycles) int {
	return c.inner.Cmp(&other.inner)
}

// LessThan reports whether c < other.
func (c Cycles) LessThan(other Cycles) bool {
	return c.Cmp(other) < 0
}

// GreaterOrEqual reports whether c >= other.
func (c Cycles) GreaterOrEqual(other Cycles) bool {
	return c.Cmp(other) >= 0
}

// Uint64 narrows c to a uint64, returning false if it does not fit.
func (c Cycles) Uint64() (uint64, bool) {
	if !c.inner.IsUint64() {
		return 0, false
	}
	return c.inner.Uint64(), true
}

func (c Cycles) String() string {
	return c.inner.Dec()
}
