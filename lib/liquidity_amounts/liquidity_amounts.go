// Package liquidity_amounts converts between token amounts and liquidity for a
// price range.
package liquidity_amounts

import (
	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/fullmath"
	"github.com/ftchann/uniswap-core/lib/safecast"
	sm "github.com/ftchann/uniswap-core/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

func sortRatios(sqrtRatioAX96, sqrtRatioBX96 *ui.Int) (*ui.Int, *ui.Int) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		return sqrtRatioBX96, sqrtRatioAX96
	}
	return sqrtRatioAX96, sqrtRatioBX96
}

// GetLiquidityForAmount0 computes the liquidity received for amount0 over the range.
func GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *ui.Int) (*ui.Int, error) {
	sqrtRatioAX96, sqrtRatioBX96 = sortRatios(sqrtRatioAX96, sqrtRatioBX96)
	intermediate, err := fullmath.MulDiv(sqrtRatioAX96, sqrtRatioBX96, cons.Q96)
	if err != nil {
		return nil, err
	}
	liquidity, err := fullmath.MulDiv(amount0, intermediate, new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
	if err != nil {
		return nil, err
	}
	return safecast.ToUint128(liquidity)
}

// GetLiquidityForAmount1 computes the liquidity received for amount1 over the range.
func GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *ui.Int) (*ui.Int, error) {
	sqrtRatioAX96, sqrtRatioBX96 = sortRatios(sqrtRatioAX96, sqrtRatioBX96)
	liquidity, err := fullmath.MulDiv(amount1, cons.Q96, new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
	if err != nil {
		return nil, err
	}
	return safecast.ToUint128(liquidity)
}

// GetLiquidityForAmounts computes the maximum liquidity that amount0 and amount1 can
// back at the current price.
func GetLiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *ui.Int) (*ui.Int, error) {
	sqrtRatioAX96, sqrtRatioBX96 = sortRatios(sqrtRatioAX96, sqrtRatioBX96)

	if !sqrtRatioX96.Gt(sqrtRatioAX96) {
		return GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	}
	if sqrtRatioX96.Lt(sqrtRatioBX96) {
		liquidity0, err := GetLiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Lt(liquidity1) {
			return liquidity0, nil
		}
		return liquidity1, nil
	}
	return GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
}

// GetAmountsForLiquidity computes the token amounts, rounded down, that liquidity
// represents at the current price.
func GetAmountsForLiquidity(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (amount0, amount1 *ui.Int, err error) {
	sqrtRatioAX96, sqrtRatioBX96 = sortRatios(sqrtRatioAX96, sqrtRatioBX96)

	amount0, amount1 = new(ui.Int), new(ui.Int)
	switch {
	case !sqrtRatioX96.Gt(sqrtRatioAX96):
		amount0, err = sm.GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
	case sqrtRatioX96.Lt(sqrtRatioBX96):
		amount0, err = sm.GetAmount0Delta(sqrtRatioX96, sqrtRatioBX96, liquidity, false)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = sm.GetAmount1Delta(sqrtRatioAX96, sqrtRatioX96, liquidity, false)
	default:
		amount1, err = sm.GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
