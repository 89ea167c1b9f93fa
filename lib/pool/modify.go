package pool

import (
	"github.com/ftchann/uniswap-core/lib/events"
	"github.com/ftchann/uniswap-core/lib/liquiditymath"
	"github.com/ftchann/uniswap-core/lib/safecast"
	sm "github.com/ftchann/uniswap-core/lib/sqrtprice_math"
	"github.com/ftchann/uniswap-core/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// updatePosition updates the ticks and the position for a liquidity change and
// returns nothing else; the token amounts are derived by modifyPosition.
func (p *Pool) updatePosition(owner common.Address, tickLower, tickUpper int, liquidityDelta *ui.Int, tickCurrent int) error {
	var flippedLower, flippedUpper bool
	if !liquidityDelta.IsZero() {
		time := p.clock.Now()
		tickCumulative, secondsPerLiquidityCumulativeX128, err := p.observations.ObserveSingle(
			time,
			0,
			p.slot0.Tick,
			p.slot0.ObservationIndex,
			&p.liquidity,
			p.slot0.ObservationCardinality,
		)
		if err != nil {
			return err
		}

		flippedLower, err = p.ticks.Update(
			tickLower,
			tickCurrent,
			liquidityDelta,
			&p.feeGrowthGlobal0X128,
			&p.feeGrowthGlobal1X128,
			secondsPerLiquidityCumulativeX128,
			tickCumulative,
			time,
			false,
			p.maxLiquidityPerTick,
		)
		if err != nil {
			return err
		}
		flippedUpper, err = p.ticks.Update(
			tickUpper,
			tickCurrent,
			liquidityDelta,
			&p.feeGrowthGlobal0X128,
			&p.feeGrowthGlobal1X128,
			secondsPerLiquidityCumulativeX128,
			tickCumulative,
			time,
			true,
			p.maxLiquidityPerTick,
		)
		if err != nil {
			return err
		}

		if flippedLower {
			if err := p.bitmap.FlipTick(tickLower, p.params.TickSpacing); err != nil {
				return err
			}
		}
		if flippedUpper {
			if err := p.bitmap.FlipTick(tickUpper, p.params.TickSpacing); err != nil {
				return err
			}
		}
	}

	feeGrowthInside0X128, feeGrowthInside1X128 := p.ticks.GetFeeGrowthInside(
		tickLower, tickUpper, tickCurrent, &p.feeGrowthGlobal0X128, &p.feeGrowthGlobal1X128)
	if _, err := p.positions.Update(owner, tickLower, tickUpper, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128); err != nil {
		return err
	}

	// clear ticks that are no longer needed
	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}
	return nil
}

// modifyPosition applies a signed liquidity delta to a position and returns the
// signed token amounts owed to (positive) or by (negative) the pool.
func (p *Pool) modifyPosition(owner common.Address, tickLower, tickUpper int, liquidityDelta *ui.Int) (amount0, amount1 *ui.Int, err error) {
	if err := checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	slot0 := p.slot0
	if err := p.updatePosition(owner, tickLower, tickUpper, liquidityDelta, slot0.Tick); err != nil {
		return nil, nil, err
	}

	amount0, amount1 = new(ui.Int), new(ui.Int)
	if liquidityDelta.IsZero() {
		return amount0, amount1, nil
	}

	sqrtRatioLower, err := tickmath.GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtRatioUpper, err := tickmath.GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case slot0.Tick < tickLower:
		// current tick is below the range, only token0 is needed
		amount0, err = sm.GetAmount0DeltaSigned(sqrtRatioLower, sqrtRatioUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
	case slot0.Tick < tickUpper:
		liquidityBefore := p.liquidity.Clone()
		index, cardinality := p.observations.Write(
			slot0.ObservationIndex,
			p.clock.Now(),
			slot0.Tick,
			liquidityBefore,
			slot0.ObservationCardinality,
			slot0.ObservationCardinalityNext,
		)
		p.slot0.ObservationIndex = index
		p.slot0.ObservationCardinality = cardinality

		amount0, err = sm.GetAmount0DeltaSigned(&slot0.SqrtPriceX96, sqrtRatioUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = sm.GetAmount1DeltaSigned(sqrtRatioLower, &slot0.SqrtPriceX96, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}

		liquidity, err := liquiditymath.AddDelta(liquidityBefore, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
		p.liquidity.Set(liquidity)
	default:
		// current tick is above the range, only token1 is needed
		amount1, err = sm.GetAmount1DeltaSigned(sqrtRatioLower, sqrtRatioUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}

// Mint adds amount of liquidity to the recipient's position. The callback must pay
// the returned amounts to the pool before it returns.
func (p *Pool) Mint(
	sender common.Address,
	recipient common.Address,
	tickLower int,
	tickUpper int,
	amount *ui.Int,
	data []byte,
	callback MintCallback,
) (amount0, amount1 *ui.Int, err error) {
	err = p.execute("mint", func() error {
		if amount.IsZero() {
			return ErrMintAmountZero
		}
		if callback == nil {
			return ErrNilCallback
		}
		if _, err := safecast.ToUint128(amount); err != nil {
			return err
		}
		if _, err := safecast.ToInt128(amount); err != nil {
			return err
		}

		amount0Int, amount1Int, err := p.modifyPosition(recipient, tickLower, tickUpper, amount)
		if err != nil {
			return err
		}
		amount0, amount1 = amount0Int, amount1Int

		var balance0Before, balance1Before *ui.Int
		if !amount0.IsZero() {
			balance0Before = p.balance0()
		}
		if !amount1.IsZero() {
			balance1Before = p.balance1()
		}
		if err := callback.MintCallback(amount0.Clone(), amount1.Clone(), data); err != nil {
			return err
		}
		if !amount0.IsZero() && !paidAtLeast(balance0Before, amount0, p.balance0()) {
			return ErrInsufficientMint0
		}
		if !amount1.IsZero() && !paidAtLeast(balance1Before, amount1, p.balance1()) {
			return ErrInsufficientMint1
		}

		p.emit(events.NameMint, events.MintData{
			Sender:    sender.Hex(),
			Owner:     recipient.Hex(),
			TickLower: int32(tickLower),
			TickUpper: int32(tickUpper),
			Amount:    amount.Dec(),
			Amount0:   amount0.Dec(),
			Amount1:   amount1.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn removes amount of liquidity from the owner's position and credits the
// principal to the position's owed tokens. An amount of zero pokes the position
// so it accrues fees.
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int, amount *ui.Int) (amount0, amount1 *ui.Int, err error) {
	err = p.execute("burn", func() error {
		if _, err := safecast.ToUint128(amount); err != nil {
			return err
		}
		if _, err := safecast.ToInt128(amount); err != nil {
			return err
		}
		amount0Int, amount1Int, err := p.modifyPosition(owner, tickLower, tickUpper, new(ui.Int).Neg(amount))
		if err != nil {
			return err
		}

		amount0 = new(ui.Int).Neg(amount0Int)
		amount1 = new(ui.Int).Neg(amount1Int)
		if !amount0.IsZero() || !amount1.IsZero() {
			p.positions.Credit(owner, tickLower, tickUpper, amount0, amount1)
		}

		p.emit(events.NameBurn, events.BurnData{
			Owner:     owner.Hex(),
			TickLower: int32(tickLower),
			TickUpper: int32(tickUpper),
			Amount:    amount.Dec(),
			Amount0:   amount0.Dec(),
			Amount1:   amount1.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect sends up to the requested owed tokens of the owner's position to recipient.
func (p *Pool) Collect(
	owner common.Address,
	recipient common.Address,
	tickLower int,
	tickUpper int,
	amount0Requested *ui.Int,
	amount1Requested *ui.Int,
) (amount0, amount1 *ui.Int, err error) {
	err = p.execute("collect", func() error {
		amount0, amount1 = p.positions.Collect(owner, tickLower, tickUpper, amount0Requested, amount1Requested)
		if !amount0.IsZero() {
			if err := p.pay(p.params.Token0, recipient, amount0); err != nil {
				return err
			}
		}
		if !amount1.IsZero() {
			if err := p.pay(p.params.Token1, recipient, amount1); err != nil {
				return err
			}
		}

		p.emit(events.NameCollect, events.CollectData{
			Owner:     owner.Hex(),
			Recipient: recipient.Hex(),
			TickLower: int32(tickLower),
			TickUpper: int32(tickUpper),
			Amount0:   amount0.Dec(),
			Amount1:   amount1.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
