package tick

import (
	"errors"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/journal"
	"github.com/ftchann/uniswap-core/lib/liquiditymath"
	"github.com/ftchann/uniswap-core/lib/safecast"
	"github.com/ftchann/uniswap-core/lib/tickmath"

	ui "github.com/holiman/uint256"
)

var ErrLiquidityOverflow = errors.New("LO")

// Info is the state stored per initialized tick.
// The "outside" values are relative to the current tick.
type Info struct {
	// total position liquidity referencing this tick
	LiquidityGross ui.Int
	// signed (two's complement) amount of liquidity added when crossed left to right
	LiquidityNet          ui.Int
	FeeGrowthOutside0X128 ui.Int
	FeeGrowthOutside1X128 ui.Int
	// int56 semantics
	TickCumulativeOutside          int64
	SecondsPerLiquidityOutsideX128 ui.Int
	SecondsOutside                 uint32
	Initialized                    bool
}

// Table maps tick indexes to their Info.
// Every mutation is recorded in the journal, if one is set.
type Table struct {
	ticks   map[int]*Info
	journal *journal.Journal
}

func NewTable(j *journal.Journal) *Table {
	return &Table{
		ticks:   make(map[int]*Info),
		journal: j,
	}
}

// Get returns a copy of the tick info. Uninitialized ticks read as zero.
func (t *Table) Get(tick int) Info {
	if info, ok := t.ticks[tick]; ok {
		return *info
	}
	return Info{}
}

// Len returns the number of stored ticks.
func (t *Table) Len() int {
	return len(t.ticks)
}

func (t *Table) record(tick int) *Info {
	info, ok := t.ticks[tick]
	if ok {
		prev := *info
		t.journal.Append(func() {
			restored := prev
			t.ticks[tick] = &restored
		})
		return info
	}
	t.journal.Append(func() {
		delete(t.ticks, tick)
	})
	info = &Info{}
	t.ticks[tick] = info
	return info
}

// TickSpacingToMaxLiquidityPerTick derives the max liquidity per tick from the spacing
// so that liquidity on every usable tick together never overflows uint128.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int) *ui.Int {
	minTick := tickmath.MinTick / tickSpacing * tickSpacing
	maxTick := tickmath.MaxTick / tickSpacing * tickSpacing
	numTicks := uint64((maxTick-minTick)/tickSpacing) + 1
	return new(ui.Int).Div(cons.MaxUint128, ui.NewInt(numTicks))
}

// GetFeeGrowthInside returns the all-time fee growth per unit of liquidity inside [lower, upper).
// The subtraction wraps, only differences between two readings are meaningful.
func (t *Table) GetFeeGrowthInside(tickLower, tickUpper, tickCurrent int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) (*ui.Int, *ui.Int) {
	lower := t.Get(tickLower)
	upper := t.Get(tickUpper)

	var feeGrowthBelow0X128, feeGrowthBelow1X128 *ui.Int
	if tickCurrent >= tickLower {
		feeGrowthBelow0X128 = lower.FeeGrowthOutside0X128.Clone()
		feeGrowthBelow1X128 = lower.FeeGrowthOutside1X128.Clone()
	} else {
		feeGrowthBelow0X128 = new(ui.Int).Sub(feeGrowthGlobal0X128, &lower.FeeGrowthOutside0X128)
		feeGrowthBelow1X128 = new(ui.Int).Sub(feeGrowthGlobal1X128, &lower.FeeGrowthOutside1X128)
	}

	var feeGrowthAbove0X128, feeGrowthAbove1X128 *ui.Int
	if tickCurrent < tickUpper {
		feeGrowthAbove0X128 = upper.FeeGrowthOutside0X128.Clone()
		feeGrowthAbove1X128 = upper.FeeGrowthOutside1X128.Clone()
	} else {
		feeGrowthAbove0X128 = new(ui.Int).Sub(feeGrowthGlobal0X128, &upper.FeeGrowthOutside0X128)
		feeGrowthAbove1X128 = new(ui.Int).Sub(feeGrowthGlobal1X128, &upper.FeeGrowthOutside1X128)
	}

	inside0 := new(ui.Int).Sub(feeGrowthGlobal0X128, feeGrowthBelow0X128)
	inside0.Sub(inside0, feeGrowthAbove0X128)
	inside1 := new(ui.Int).Sub(feeGrowthGlobal1X128, feeGrowthBelow1X128)
	inside1.Sub(inside1, feeGrowthAbove1X128)
	return inside0, inside1
}

// Update applies a signed liquidity delta to a tick and reports whether it flipped
// between initialized and uninitialized. Nothing is changed when an error is returned.
func (t *Table) Update(
	tick int,
	tickCurrent int,
	liquidityDelta *ui.Int,
	feeGrowthGlobal0X128 *ui.Int,
	feeGrowthGlobal1X128 *ui.Int,
	secondsPerLiquidityCumulativeX128 *ui.Int,
	tickCumulative int64,
	time uint32,
	upper bool,
	maxLiquidity *ui.Int,
) (bool, error) {
	current := t.Get(tick)

	liquidityGrossBefore := &current.LiquidityGross
	liquidityGrossAfter, err := liquiditymath.AddDelta(liquidityGrossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if liquidityGrossAfter.Gt(maxLiquidity) {
		return false, ErrLiquidityOverflow
	}

	var liquidityNet *ui.Int
	if upper {
		liquidityNet = new(ui.Int).Sub(&current.LiquidityNet, liquidityDelta)
	} else {
		liquidityNet = new(ui.Int).Add(&current.LiquidityNet, liquidityDelta)
	}
	if _, err := safecast.ToInt128(liquidityNet); err != nil {
		return false, err
	}

	flipped := liquidityGrossAfter.IsZero() != liquidityGrossBefore.IsZero()

	info := t.record(tick)
	if liquidityGrossBefore.IsZero() {
		// by convention, all growth before a tick was initialized happened below it
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
			info.SecondsPerLiquidityOutsideX128.Set(secondsPerLiquidityCumulativeX128)
			info.TickCumulativeOutside = tickCumulative
			info.SecondsOutside = time
		}
		info.Initialized = true
	}
	info.LiquidityGross.Set(liquidityGrossAfter)
	info.LiquidityNet.Set(liquidityNet)
	return flipped, nil
}

// Clear deletes a tick that is no longer referenced.
func (t *Table) Clear(tick int) {
	if _, ok := t.ticks[tick]; !ok {
		return
	}
	t.record(tick)
	delete(t.ticks, tick)
}

// Cross flips the outside accumulators of a tick as the price moves across it
// and returns the tick's liquidityNet.
func (t *Table) Cross(
	tick int,
	feeGrowthGlobal0X128 *ui.Int,
	feeGrowthGlobal1X128 *ui.Int,
	secondsPerLiquidityCumulativeX128 *ui.Int,
	tickCumulative int64,
	time uint32,
) *ui.Int {
	info := t.record(tick)
	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, &info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, &info.FeeGrowthOutside1X128)
	spl := new(ui.Int).Sub(secondsPerLiquidityCumulativeX128, &info.SecondsPerLiquidityOutsideX128)
	info.SecondsPerLiquidityOutsideX128.Set(safecast.Uint160(spl))
	info.TickCumulativeOutside = safecast.WrapInt56(tickCumulative - info.TickCumulativeOutside)
	info.SecondsOutside = time - info.SecondsOutside
	return info.LiquidityNet.Clone()
}
