package pool

import (
	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/events"
	"github.com/ftchann/uniswap-core/lib/fullmath"
	"github.com/ftchann/uniswap-core/lib/liquiditymath"
	"github.com/ftchann/uniswap-core/lib/safecast"
	"github.com/ftchann/uniswap-core/lib/swapmath"
	"github.com/ftchann/uniswap-core/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type stepComputations struct {
	sqrtPriceStartX96 *ui.Int
	tickNext          int
	initialized       bool
	sqrtPriceNextX96  *ui.Int
	amountIn          *ui.Int
	amountOut         *ui.Int
	feeAmount         *ui.Int
}

type swapState struct {
	amountSpecifiedRemainingI *ui.Int
	amountCalculatedI         *ui.Int
	sqrtPriceX96              *ui.Int
	tick                      int
	feeGrowthGlobalX128       *ui.Int
	protocolFee               *ui.Int
	liquidity                 *ui.Int
}

// swapCache holds values read once per swap.
type swapCache struct {
	feeProtocol    uint8
	liquidityStart *ui.Int
	blockTimestamp uint32

	// computed on the first initialized tick crossed
	computedLatestObservation         bool
	tickCumulative                    int64
	secondsPerLiquidityCumulativeX128 *ui.Int
}

// Swap trades token0 for token1 when zeroForOne, token1 for token0 otherwise.
// A positive amountSpecified is an exact input, a negative one an exact output.
// A nil or zero sqrtPriceLimitX96 lets the price move to the end of the curve.
// The returned deltas are signed from the pool's point of view: positive amounts
// were paid in by the callback, negative amounts were sent to recipient.
func (p *Pool) Swap(
	sender common.Address,
	recipient common.Address,
	zeroForOne bool,
	amountSpecified *ui.Int,
	sqrtPriceLimitX96 *ui.Int,
	data []byte,
	callback SwapCallback,
) (amount0, amount1 *ui.Int, err error) {
	err = p.execute("swap", func() error {
		var err error
		amount0, amount1, err = p.swap(sender, recipient, zeroForOne, amountSpecified, sqrtPriceLimitX96, data, callback)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) swap(
	sender common.Address,
	recipient common.Address,
	zeroForOne bool,
	amountSpecified *ui.Int,
	sqrtPriceLimitIn *ui.Int,
	data []byte,
	callback SwapCallback,
) (amount0, amount1 *ui.Int, err error) {
	if amountSpecified.IsZero() {
		return nil, nil, ErrAmountZero
	}
	if callback == nil {
		return nil, nil, ErrNilCallback
	}

	slot0Start := p.slot0

	sqrtPriceLimitX96 := new(ui.Int)
	if sqrtPriceLimitIn == nil || sqrtPriceLimitIn.IsZero() {
		if zeroForOne {
			sqrtPriceLimitX96.Add(tickmath.MinSqrtRatio, cons.One)
		} else {
			sqrtPriceLimitX96.Sub(tickmath.MaxSqrtRatio, cons.One)
		}
	} else {
		sqrtPriceLimitX96.Set(sqrtPriceLimitIn)
	}
	if zeroForOne {
		if !sqrtPriceLimitX96.Lt(&slot0Start.SqrtPriceX96) || !sqrtPriceLimitX96.Gt(tickmath.MinSqrtRatio) {
			return nil, nil, ErrSqrtPriceLimit
		}
	} else {
		if !sqrtPriceLimitX96.Gt(&slot0Start.SqrtPriceX96) || !sqrtPriceLimitX96.Lt(tickmath.MaxSqrtRatio) {
			return nil, nil, ErrSqrtPriceLimit
		}
	}

	cache := swapCache{
		liquidityStart: p.liquidity.Clone(),
		blockTimestamp: p.clock.Now(),
	}
	if zeroForOne {
		cache.feeProtocol = slot0Start.FeeProtocol % 16
	} else {
		cache.feeProtocol = slot0Start.FeeProtocol >> 4
	}

	exactInput := amountSpecified.Sign() > 0

	var feeGrowthGlobalX128 *ui.Int
	if zeroForOne {
		feeGrowthGlobalX128 = p.feeGrowthGlobal0X128.Clone()
	} else {
		feeGrowthGlobalX128 = p.feeGrowthGlobal1X128.Clone()
	}
	state := swapState{
		amountSpecifiedRemainingI: amountSpecified.Clone(),
		amountCalculatedI:         new(ui.Int),
		sqrtPriceX96:              slot0Start.SqrtPriceX96.Clone(),
		tick:                      slot0Start.Tick,
		feeGrowthGlobalX128:       feeGrowthGlobalX128,
		protocolFee:               new(ui.Int),
		liquidity:                 cache.liquidityStart.Clone(),
	}

	// continue swapping as long as we haven't used the entire input/output and haven't reached the price limit
	for !state.amountSpecifiedRemainingI.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		var step stepComputations
		step.sqrtPriceStartX96 = state.sqrtPriceX96.Clone()
		step.tickNext, step.initialized = p.bitmap.NextInitializedTickWithinOneWord(state.tick, p.params.TickSpacing, zeroForOne)

		// the bitmap is not aware of the tick bounds
		if step.tickNext < tickmath.MinTick {
			step.tickNext = tickmath.MinTick
		} else if step.tickNext > tickmath.MaxTick {
			step.tickNext = tickmath.MaxTick
		}

		step.sqrtPriceNextX96, err = tickmath.GetSqrtRatioAtTick(step.tickNext)
		if err != nil {
			return nil, nil, err
		}

		targetValue := step.sqrtPriceNextX96
		if zeroForOne {
			if step.sqrtPriceNextX96.Lt(sqrtPriceLimitX96) {
				targetValue = sqrtPriceLimitX96
			}
		} else {
			if step.sqrtPriceNextX96.Gt(sqrtPriceLimitX96) {
				targetValue = sqrtPriceLimitX96
			}
		}

		state.sqrtPriceX96, step.amountIn, step.amountOut, step.feeAmount, err = swapmath.ComputeSwapStep(
			state.sqrtPriceX96, targetValue, state.liquidity, state.amountSpecifiedRemainingI, p.params.Fee)
		if err != nil {
			return nil, nil, err
		}

		if exactInput {
			state.amountSpecifiedRemainingI.Sub(state.amountSpecifiedRemainingI, new(ui.Int).Add(step.amountIn, step.feeAmount))
			state.amountCalculatedI.Sub(state.amountCalculatedI, step.amountOut)
		} else {
			state.amountSpecifiedRemainingI.Add(state.amountSpecifiedRemainingI, step.amountOut)
			state.amountCalculatedI.Add(state.amountCalculatedI, new(ui.Int).Add(step.amountIn, step.feeAmount))
		}

		if cache.feeProtocol > 0 {
			delta := new(ui.Int).Div(step.feeAmount, ui.NewInt(uint64(cache.feeProtocol)))
			step.feeAmount.Sub(step.feeAmount, delta)
			state.protocolFee.Add(state.protocolFee, delta)
		}

		if state.liquidity.Sign() > 0 {
			fee, err := fullmath.MulDiv(step.feeAmount, cons.Q128, state.liquidity)
			if err != nil {
				return nil, nil, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, fee)
		}

		if state.sqrtPriceX96.Eq(step.sqrtPriceNextX96) {
			if step.initialized {
				if !cache.computedLatestObservation {
					cache.tickCumulative, cache.secondsPerLiquidityCumulativeX128, err = p.observations.ObserveSingle(
						cache.blockTimestamp,
						0,
						slot0Start.Tick,
						slot0Start.ObservationIndex,
						cache.liquidityStart,
						slot0Start.ObservationCardinality,
					)
					if err != nil {
						return nil, nil, err
					}
					cache.computedLatestObservation = true
				}

				var feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int
				if zeroForOne {
					feeGrowthGlobal0X128 = state.feeGrowthGlobalX128
					feeGrowthGlobal1X128 = &p.feeGrowthGlobal1X128
				} else {
					feeGrowthGlobal0X128 = &p.feeGrowthGlobal0X128
					feeGrowthGlobal1X128 = state.feeGrowthGlobalX128
				}
				liquidityNet := p.ticks.Cross(
					step.tickNext,
					feeGrowthGlobal0X128,
					feeGrowthGlobal1X128,
					cache.secondsPerLiquidityCumulativeX128,
					cache.tickCumulative,
					cache.blockTimestamp,
				)
				// moving leftward, liquidityNet is interpreted as the opposite sign
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				state.liquidity, err = liquiditymath.AddDelta(state.liquidity, liquidityNet)
				if err != nil {
					return nil, nil, err
				}
			}
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		} else if !state.sqrtPriceX96.Eq(step.sqrtPriceStartX96) {
			// recompute unless we're on a lower tick boundary and haven't moved
			state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if state.tick != slot0Start.Tick {
		index, cardinality := p.observations.Write(
			slot0Start.ObservationIndex,
			cache.blockTimestamp,
			slot0Start.Tick,
			cache.liquidityStart,
			slot0Start.ObservationCardinality,
			slot0Start.ObservationCardinalityNext,
		)
		p.slot0.ObservationIndex = index
		p.slot0.ObservationCardinality = cardinality
	}
	p.slot0.SqrtPriceX96.Set(state.sqrtPriceX96)
	p.slot0.Tick = state.tick

	if !cache.liquidityStart.Eq(state.liquidity) {
		p.liquidity.Set(state.liquidity)
	}

	// overflow of the protocol fee total is accepted, it has to be collected first
	if zeroForOne {
		p.feeGrowthGlobal0X128.Set(state.feeGrowthGlobalX128)
		if !state.protocolFee.IsZero() {
			p.protocolFees0.Add(&p.protocolFees0, state.protocolFee)
			p.protocolFees0.Set(safecast.Uint128(&p.protocolFees0))
		}
	} else {
		p.feeGrowthGlobal1X128.Set(state.feeGrowthGlobalX128)
		if !state.protocolFee.IsZero() {
			p.protocolFees1.Add(&p.protocolFees1, state.protocolFee)
			p.protocolFees1.Set(safecast.Uint128(&p.protocolFees1))
		}
	}

	specifiedUsed := new(ui.Int).Sub(amountSpecified, state.amountSpecifiedRemainingI)
	if zeroForOne == exactInput {
		amount0, amount1 = specifiedUsed, state.amountCalculatedI
	} else {
		amount0, amount1 = state.amountCalculatedI, specifiedUsed
	}

	// output first, then verify the input arrived
	if zeroForOne {
		if amount1.Sign() < 0 {
			if err := p.pay(p.params.Token1, recipient, new(ui.Int).Neg(amount1)); err != nil {
				return nil, nil, err
			}
		}
		balance0Before := p.balance0()
		if err := callback.SwapCallback(amount0.Clone(), amount1.Clone(), data); err != nil {
			return nil, nil, err
		}
		if !paidAtLeast(balance0Before, amount0, p.balance0()) {
			return nil, nil, ErrInsufficientInput
		}
	} else {
		if amount0.Sign() < 0 {
			if err := p.pay(p.params.Token0, recipient, new(ui.Int).Neg(amount0)); err != nil {
				return nil, nil, err
			}
		}
		balance1Before := p.balance1()
		if err := callback.SwapCallback(amount0.Clone(), amount1.Clone(), data); err != nil {
			return nil, nil, err
		}
		if !paidAtLeast(balance1Before, amount1, p.balance1()) {
			return nil, nil, ErrInsufficientInput
		}
	}

	p.emit(events.NameSwap, events.SwapData{
		Sender:       sender.Hex(),
		Recipient:    recipient.Hex(),
		Amount0:      events.Signed(amount0),
		Amount1:      events.Signed(amount1),
		SqrtPriceX96: state.sqrtPriceX96.Dec(),
		Liquidity:    state.liquidity.Dec(),
		Tick:         int32(state.tick),
	})
	return amount0, amount1, nil
}
