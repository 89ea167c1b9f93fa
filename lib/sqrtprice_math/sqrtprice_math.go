package sqrtprice_math

import (
	"errors"
	"math/big"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	fm "github.com/ftchann/uniswap-core/lib/fullmath"
	"github.com/ftchann/uniswap-core/lib/safecast"

	ui "github.com/holiman/uint256"
)

var (
	ErrZeroPrice               = errors.New("sqrt price is zero")
	ErrZeroLiquidity           = errors.New("liquidity is zero")
	ErrInsufficientPriceOutput = errors.New("price cannot cover output")
)

// GetPrice returns floor(sqrtPriceX96^2 / 2^192), the integer token1/token0 price.
func GetPrice(x96 *ui.Int) *big.Int {
	bigx96 := x96.ToBig()
	temp1 := new(big.Int).Mul(bigx96, bigx96)
	return temp1.Rsh(temp1, 192)
}

// GetAmount0Delta
// Gets the amount0 delta between two prices: liquidity / sqrt(lower) - liquidity / sqrt(upper)
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return nil, ErrZeroPrice
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	numerator2 := new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		res, err := fm.MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return nil, err
		}
		return fm.DivRoundingUp(res, sqrtRatioAX96), nil
	}

	res, err := fm.MulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return res.Div(res, sqrtRatioAX96), nil
}

// GetAmount1Delta
// Gets the amount1 delta between two prices: liquidity * (sqrt(upper) - sqrt(lower))
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	ratioDiff := new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fm.MulDivRoundingUp(liquidity, ratioDiff, cons.Q96)
	}
	return fm.MulDiv(liquidity, ratioDiff, cons.Q96)
}

// GetAmount0DeltaSigned takes a signed liquidity (two's complement) and returns a signed amount.
// Positive liquidity rounds up (amount owed to the pool), negative rounds down.
func GetAmount0DeltaSigned(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (*ui.Int, error) {
	if liquidity.Sign() < 0 {
		amount, err := GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, new(ui.Int).Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		if _, err := safecast.ToInt256(amount); err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	amount, err := GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
	if err != nil {
		return nil, err
	}
	return safecast.ToInt256(amount)
}

// GetAmount1DeltaSigned is the token1 counterpart of GetAmount0DeltaSigned.
func GetAmount1DeltaSigned(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (*ui.Int, error) {
	if liquidity.Sign() < 0 {
		amount, err := GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, new(ui.Int).Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		if _, err := safecast.ToInt256(amount); err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	amount, err := GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
	if err != nil {
		return nil, err
	}
	return safecast.ToInt256(amount)
}

// GetNextSqrtPriceFromInput rounds so that the price never overshoots the target.
func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput rounds so that the output is always covered.
func GetNextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if amount.IsZero() {
		return sqrtPX96.Clone(), nil
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	// product wraps mod 2^256, the division check detects the wrap
	product := new(ui.Int).Mul(amount, sqrtPX96)
	productExact := new(ui.Int).Div(product, amount).Eq(sqrtPX96)
	if add {
		if productExact {
			denominator := new(ui.Int).Add(numerator1, product)
			if denominator.Cmp(numerator1) >= 0 {
				return fm.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		denominator, overflow := new(ui.Int).AddOverflow(new(ui.Int).Div(numerator1, sqrtPX96), amount)
		if overflow {
			return nil, fm.ErrOverflow
		}
		return fm.DivRoundingUp(numerator1, denominator), nil
	}

	if !productExact || !numerator1.Gt(product) {
		return nil, ErrInsufficientPriceOutput
	}
	denominator := new(ui.Int).Sub(numerator1, product)
	next, err := fm.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if err != nil {
		return nil, err
	}
	return safecast.ToUint160(next)
}

func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if add {
		var quotient *ui.Int
		if amount.Cmp(cons.MaxUint160) <= 0 {
			quotient = new(ui.Int).Div(new(ui.Int).Lsh(amount, 96), liquidity)
		} else {
			var err error
			quotient, err = fm.MulDiv(amount, cons.Q96, liquidity)
			if err != nil {
				return nil, err
			}
		}
		next, overflow := new(ui.Int).AddOverflow(sqrtPX96, quotient)
		if overflow {
			return nil, fm.ErrOverflow
		}
		return safecast.ToUint160(next)
	}

	var quotient *ui.Int
	if amount.Cmp(cons.MaxUint160) <= 0 {
		quotient = fm.DivRoundingUp(new(ui.Int).Lsh(amount, 96), liquidity)
	} else {
		var err error
		quotient, err = fm.MulDivRoundingUp(amount, cons.Q96, liquidity)
		if err != nil {
			return nil, err
		}
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, ErrInsufficientPriceOutput
	}
	return new(ui.Int).Sub(sqrtPX96, quotient), nil
}
