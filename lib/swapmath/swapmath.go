package swapmath

import (
	cons "github.com/ftchann/uniswap-core/lib/constants"
	fm "github.com/ftchann/uniswap-core/lib/fullmath"
	sqrtmath "github.com/ftchann/uniswap-core/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

var MaxFee = ui.NewInt(cons.MaxFee)

// ComputeSwapStep
// Computes the result of swapping some amount in, or amount out, given the parameters of the swap.
// amountRemainingI is signed: positive for exact input, negative for exact output.
// The fee plus amountIn never exceeds the remaining amount for exact input.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemainingI *ui.Int, feePips uint32) (sqrtRatioNextX96, amountIn, amountOut, feeAmount *ui.Int, err error) {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	exactIn := amountRemainingI.Sign() >= 0
	fee := ui.NewInt(uint64(feePips))
	feeComplement := new(ui.Int).Sub(MaxFee, fee)

	if exactIn {
		amountRemainingLessFee, err := fm.MulDiv(amountRemainingI, feeComplement, MaxFee)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if zeroForOne {
			amountIn, err = sqrtmath.GetAmount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			amountIn, err = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if amountRemainingLessFee.Cmp(amountIn) >= 0 {
			sqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else {
			sqrtRatioNextX96, err = sqrtmath.GetNextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
	} else {
		if zeroForOne {
			amountOut, err = sqrtmath.GetAmount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			amountOut, err = sqrtmath.GetAmount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if new(ui.Int).Neg(amountRemainingI).Cmp(amountOut) >= 0 {
			sqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else {
			sqrtRatioNextX96, err = sqrtmath.GetNextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, new(ui.Int).Neg(amountRemainingI), zeroForOne)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
	}

	max := sqrtRatioTargetX96.Eq(sqrtRatioNextX96)

	// recompute from the actual price pair
	if zeroForOne {
		if !(max && exactIn) {
			amountIn, err = sqrtmath.GetAmount0Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
		if !(max && !exactIn) {
			amountOut, err = sqrtmath.GetAmount1Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
	} else {
		if !(max && exactIn) {
			amountIn, err = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, true)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
		if !(max && !exactIn) {
			amountOut, err = sqrtmath.GetAmount0Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, false)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
	}

	// cap the output amount to not exceed the remaining output amount
	if !exactIn && amountOut.Cmp(new(ui.Int).Neg(amountRemainingI)) > 0 {
		amountOut = new(ui.Int).Neg(amountRemainingI)
	}

	if exactIn && !sqrtRatioNextX96.Eq(sqrtRatioTargetX96) {
		// we didn't reach the target, so take the remainder of the maximum input as fee
		feeAmount = new(ui.Int).Sub(amountRemainingI, amountIn)
	} else {
		feeAmount, err = fm.MulDivRoundingUp(amountIn, fee, feeComplement)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	return sqrtRatioNextX96, amountIn, amountOut, feeAmount, nil
}
