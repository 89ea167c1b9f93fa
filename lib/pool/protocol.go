package pool

import (
	"fmt"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/events"
	"github.com/ftchann/uniswap-core/lib/fullmath"
	"github.com/ftchann/uniswap-core/lib/safecast"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Flash lends amount0 and amount1 to recipient for the duration of the callback,
// which must pay them back plus the fee. Anything paid above the principal is
// distributed to in-range liquidity as fees.
func (p *Pool) Flash(
	sender common.Address,
	recipient common.Address,
	amount0 *ui.Int,
	amount1 *ui.Int,
	data []byte,
	callback FlashCallback,
) error {
	return p.execute("flash", func() error {
		if callback == nil {
			return ErrNilCallback
		}
		if p.liquidity.IsZero() {
			return ErrNoLiquidity
		}

		feePips := ui.NewInt(uint64(p.params.Fee))
		fee0, err := fullmath.MulDivRoundingUp(amount0, feePips, cons.E6)
		if err != nil {
			return err
		}
		fee1, err := fullmath.MulDivRoundingUp(amount1, feePips, cons.E6)
		if err != nil {
			return err
		}
		balance0Before := p.balance0()
		balance1Before := p.balance1()

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

		if err := callback.FlashCallback(fee0.Clone(), fee1.Clone(), data); err != nil {
			return err
		}

		balance0After := p.balance0()
		balance1After := p.balance1()
		if !paidAtLeast(balance0Before, fee0, balance0After) {
			return ErrFlashUnpaid0
		}
		if !paidAtLeast(balance1Before, fee1, balance1After) {
			return ErrFlashUnpaid1
		}

		// sub is safe because we know balanceAfter is gt balanceBefore by at least fee
		paid0 := new(ui.Int).Sub(balance0After, balance0Before)
		paid1 := new(ui.Int).Sub(balance1After, balance1Before)

		if !paid0.IsZero() {
			feeProtocol0 := p.slot0.FeeProtocol % 16
			fees0 := new(ui.Int)
			if feeProtocol0 != 0 {
				fees0.Div(paid0, ui.NewInt(uint64(feeProtocol0)))
			}
			if !fees0.IsZero() {
				p.protocolFees0.Set(safecast.Uint128(new(ui.Int).Add(&p.protocolFees0, fees0)))
			}
			growth, err := fullmath.MulDiv(new(ui.Int).Sub(paid0, fees0), cons.Q128, &p.liquidity)
			if err != nil {
				return err
			}
			p.feeGrowthGlobal0X128.Add(&p.feeGrowthGlobal0X128, growth)
		}
		if !paid1.IsZero() {
			feeProtocol1 := p.slot0.FeeProtocol >> 4
			fees1 := new(ui.Int)
			if feeProtocol1 != 0 {
				fees1.Div(paid1, ui.NewInt(uint64(feeProtocol1)))
			}
			if !fees1.IsZero() {
				p.protocolFees1.Set(safecast.Uint128(new(ui.Int).Add(&p.protocolFees1, fees1)))
			}
			growth, err := fullmath.MulDiv(new(ui.Int).Sub(paid1, fees1), cons.Q128, &p.liquidity)
			if err != nil {
				return err
			}
			p.feeGrowthGlobal1X128.Add(&p.feeGrowthGlobal1X128, growth)
		}

		p.emit(events.NameFlash, events.FlashData{
			Sender:    sender.Hex(),
			Recipient: recipient.Hex(),
			Amount0:   amount0.Dec(),
			Amount1:   amount1.Dec(),
			Paid0:     paid0.Dec(),
			Paid1:     paid1.Dec(),
		})
		return nil
	})
}

// IncreaseObservationCardinalityNext grows the observation buffer the next
// writes may use. Lowering it is a no-op.
func (p *Pool) IncreaseObservationCardinalityNext(observationCardinalityNext uint16) error {
	return p.execute("increaseObservationCardinalityNext", func() error {
		old := p.slot0.ObservationCardinalityNext
		next, err := p.observations.Grow(old, observationCardinalityNext)
		if err != nil {
			return err
		}
		p.slot0.ObservationCardinalityNext = next
		if old != next {
			p.emit(events.NameIncreaseObservationCardinalityNext, events.IncreaseObservationCardinalityNextData{
				Old: old,
				New: next,
			})
		}
		return nil
	})
}

func validFeeProtocol(feeProtocol uint8) bool {
	return feeProtocol == 0 || (feeProtocol >= 4 && feeProtocol <= 10)
}

// SetFeeProtocol sets the denominator of the protocol's share of the swap fees
// for each token. Only the factory owner may call it.
func (p *Pool) SetFeeProtocol(sender common.Address, feeProtocol0, feeProtocol1 uint8) error {
	return p.execute("setFeeProtocol", func() error {
		if sender != p.factory.Owner() {
			return ErrNotOwner
		}
		if !validFeeProtocol(feeProtocol0) || !validFeeProtocol(feeProtocol1) {
			return fmt.Errorf("%d/%d: %w", feeProtocol0, feeProtocol1, ErrInvalidFeeProtocol)
		}
		old := p.slot0.FeeProtocol
		p.slot0.FeeProtocol = feeProtocol0 + feeProtocol1<<4
		p.emit(events.NameSetFeeProtocol, events.SetFeeProtocolData{
			FeeProtocol0Old: old % 16,
			FeeProtocol1Old: old >> 4,
			FeeProtocol0New: feeProtocol0,
			FeeProtocol1New: feeProtocol1,
		})
		return nil
	})
}

// CollectProtocol sends up to the requested accrued protocol fees to recipient.
// Only the factory owner may call it.
func (p *Pool) CollectProtocol(sender, recipient common.Address, amount0Requested, amount1Requested *ui.Int) (amount0, amount1 *ui.Int, err error) {
	err = p.execute("collectProtocol", func() error {
		if sender != p.factory.Owner() {
			return ErrNotOwner
		}
		amount0 = amount0Requested.Clone()
		if amount0.Gt(&p.protocolFees0) {
			amount0.Set(&p.protocolFees0)
		}
		amount1 = amount1Requested.Clone()
		if amount1.Gt(&p.protocolFees1) {
			amount1.Set(&p.protocolFees1)
		}

		if !amount0.IsZero() {
			p.protocolFees0.Sub(&p.protocolFees0, amount0)
			if err := p.pay(p.params.Token0, recipient, amount0); err != nil {
				return err
			}
		}
		if !amount1.IsZero() {
			p.protocolFees1.Sub(&p.protocolFees1, amount1)
			if err := p.pay(p.params.Token1, recipient, amount1); err != nil {
				return err
			}
		}

		p.emit(events.NameCollectProtocol, events.CollectProtocolData{
			Sender:    sender.Hex(),
			Recipient: recipient.Hex(),
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

// SnapshotCumulativesInside returns the tick cumulative, seconds per liquidity and
// seconds spent inside the range. The values are only meaningful when compared to
// an earlier snapshot of the same range taken while a position existed over it.
func (p *Pool) SnapshotCumulativesInside(tickLower, tickUpper int) (tickCumulativeInside int64, secondsPerLiquidityInsideX128 *ui.Int, secondsInside uint32, err error) {
	if !p.initialized() {
		return 0, nil, 0, fmt.Errorf("snapshotCumulativesInside: %w", ErrNotInitialized)
	}
	if err := checkTicks(tickLower, tickUpper); err != nil {
		return 0, nil, 0, fmt.Errorf("snapshotCumulativesInside: %w", err)
	}

	lower := p.ticks.Get(tickLower)
	upper := p.ticks.Get(tickUpper)
	if !lower.Initialized {
		return 0, nil, 0, fmt.Errorf("snapshotCumulativesInside: lower %d: %w", tickLower, ErrTickNotInitialized)
	}
	if !upper.Initialized {
		return 0, nil, 0, fmt.Errorf("snapshotCumulativesInside: upper %d: %w", tickUpper, ErrTickNotInitialized)
	}

	slot0 := p.slot0
	switch {
	case slot0.Tick < tickLower:
		spl := new(ui.Int).Sub(&lower.SecondsPerLiquidityOutsideX128, &upper.SecondsPerLiquidityOutsideX128)
		return safecast.WrapInt56(lower.TickCumulativeOutside - upper.TickCumulativeOutside),
			safecast.Uint160(spl),
			lower.SecondsOutside - upper.SecondsOutside,
			nil
	case slot0.Tick < tickUpper:
		time := p.clock.Now()
		tickCumulative, secondsPerLiquidityCumulativeX128, err := p.observations.ObserveSingle(
			time,
			0,
			slot0.Tick,
			slot0.ObservationIndex,
			&p.liquidity,
			slot0.ObservationCardinality,
		)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("snapshotCumulativesInside: %w", err)
		}
		spl := new(ui.Int).Sub(secondsPerLiquidityCumulativeX128, &lower.SecondsPerLiquidityOutsideX128)
		spl.Sub(spl, &upper.SecondsPerLiquidityOutsideX128)
		return safecast.WrapInt56(tickCumulative - lower.TickCumulativeOutside - upper.TickCumulativeOutside),
			safecast.Uint160(spl),
			time - lower.SecondsOutside - upper.SecondsOutside,
			nil
	default:
		spl := new(ui.Int).Sub(&upper.SecondsPerLiquidityOutsideX128, &lower.SecondsPerLiquidityOutsideX128)
		return safecast.WrapInt56(upper.TickCumulativeOutside - lower.TickCumulativeOutside),
			safecast.Uint160(spl),
			upper.SecondsOutside - lower.SecondsOutside,
			nil
	}
}
