// Package safecast checks that two's-complement and unsigned values held in a
// 256-bit word fit the narrower widths the pool stores them in.
package safecast

import (
	"errors"

	cons "github.com/ftchann/uniswap-core/lib/constants"

	ui "github.com/holiman/uint256"
)

var ErrCastOverflow = errors.New("safe cast overflow")

// ToUint128 fails if x does not fit in 128 unsigned bits.
func ToUint128(x *ui.Int) (*ui.Int, error) {
	if x.Gt(cons.MaxUint128) {
		return nil, ErrCastOverflow
	}
	return x, nil
}

// ToUint160 fails if x does not fit in 160 unsigned bits.
func ToUint160(x *ui.Int) (*ui.Int, error) {
	if x.Gt(cons.MaxUint160) {
		return nil, ErrCastOverflow
	}
	return x, nil
}

// ToInt128 fails if the signed value x is outside [-2^127, 2^127).
func ToInt128(x *ui.Int) (*ui.Int, error) {
	if x.Sgt(cons.MaxInt128) || x.Slt(cons.MinInt128) {
		return nil, ErrCastOverflow
	}
	return x, nil
}

// ToInt256 fails if the unsigned value x would read as negative.
func ToInt256(x *ui.Int) (*ui.Int, error) {
	if x.Gt(cons.MaxInt256) {
		return nil, ErrCastOverflow
	}
	return x, nil
}

// Uint128 truncates x to its low 128 bits.
func Uint128(x *ui.Int) *ui.Int {
	return new(ui.Int).And(x, cons.MaxUint128)
}

// WrapInt56 wraps x to a signed 56-bit value, the width tick accumulators are kept in.
func WrapInt56(x int64) int64 {
	return x << 8 >> 8
}

// Uint160 truncates x to its low 160 bits.
func Uint160(x *ui.Int) *ui.Int {
	return new(ui.Int).And(x, cons.MaxUint160)
}
