package liquiditymath

import (
	"errors"

	cons "github.com/ftchann/uniswap-core/lib/constants"

	ui "github.com/holiman/uint256"
)

var (
	ErrLiquiditySub = errors.New("LS")
	ErrLiquidityAdd = errors.New("LA")
)

// AddDelta adds a signed liquidity delta y to an unsigned 128-bit liquidity x.
func AddDelta(x, y *ui.Int) (*ui.Int, error) {
	if y.Sign() < 0 {
		neg := new(ui.Int).Neg(y)
		if neg.Gt(x) {
			return nil, ErrLiquiditySub
		}
		return new(ui.Int).Sub(x, neg), nil
	}
	z := new(ui.Int).Add(x, y)
	if z.Gt(cons.MaxUint128) {
		return nil, ErrLiquidityAdd
	}
	return z, nil
}
