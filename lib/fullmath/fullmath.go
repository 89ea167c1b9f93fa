package fullmath

import (
	"errors"

	cons "github.com/ftchann/uniswap-core/lib/constants"

	ui "github.com/holiman/uint256"
)

// ErrOverflow is returned when a result does not fit in 256 bits or the denominator is zero.
var ErrOverflow = errors.New("mulDiv overflow")

// MulDiv calculates floor(a*b/denominator) with a 512-bit intermediate product.
func MulDiv(a, b, denominator *ui.Int) (*ui.Int, error) {
	if denominator.IsZero() {
		return nil, ErrOverflow
	}
	result, overflow := new(ui.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// MulDivRoundingUp calculates ceil(a*b/denominator) with a 512-bit intermediate product.
func MulDivRoundingUp(a, b, denominator *ui.Int) (*ui.Int, error) {
	result, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	rem := new(ui.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		if result.Eq(cons.MaxUint256) {
			return nil, ErrOverflow
		}
		result.AddUint64(result, 1)
	}
	return result, nil
}

// DivRoundingUp returns ceil(x/y). y must be non-zero.
func DivRoundingUp(x, y *ui.Int) *ui.Int {
	quotient := new(ui.Int).Div(x, y)
	if !new(ui.Int).Mod(x, y).IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient
}
