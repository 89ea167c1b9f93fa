// Package oracle stores price and liquidity accumulators in a ring buffer
// that can be queried for any time within its window.
package oracle

import (
	"errors"

	"github.com/ftchann/uniswap-core/lib/journal"
	"github.com/ftchann/uniswap-core/lib/safecast"

	ui "github.com/holiman/uint256"
)

var (
	ErrStaleTarget = errors.New("OLD")
	ErrEmptyBuffer = errors.New("I")
)

// MaxCardinality is the largest number of observations the buffer can hold.
const MaxCardinality = 65535

type Observation struct {
	BlockTimestamp uint32
	// tick * time elapsed since initialization, int56 semantics
	TickCumulative int64
	// seconds / max(1, liquidity) since initialization, uint160
	SecondsPerLiquidityCumulativeX128 ui.Int
	Initialized                       bool
}

// Observations is the ring buffer. Its length is the highest cardinality ever requested.
type Observations struct {
	obs     []Observation
	journal *journal.Journal
}

func NewObservations(j *journal.Journal) *Observations {
	return &Observations{journal: j}
}

// At returns a copy of the observation in slot i.
func (o *Observations) At(i uint16) Observation {
	if int(i) >= len(o.obs) {
		return Observation{}
	}
	return o.obs[i]
}

// Len returns the number of allocated slots.
func (o *Observations) Len() int {
	return len(o.obs)
}

func (o *Observations) set(i uint16, obs Observation) {
	n := len(o.obs)
	if int(i) >= n {
		o.journal.Append(func() { o.obs = o.obs[:n] })
		o.obs = append(o.obs, make([]Observation, int(i)+1-n)...)
	} else {
		prev := o.obs[i]
		o.journal.Append(func() { o.obs[i] = prev })
	}
	o.obs[i] = obs
}

// Transform advances last to time assuming tick and liquidity held since last was written.
func Transform(last Observation, blockTimestamp uint32, tick int, liquidity *ui.Int) Observation {
	delta := blockTimestamp - last.BlockTimestamp

	denominator := liquidity
	if denominator.IsZero() {
		denominator = ui.NewInt(1)
	}
	spl := new(ui.Int).Lsh(ui.NewInt(uint64(delta)), 128)
	spl.Div(spl, denominator)
	spl.Add(spl, &last.SecondsPerLiquidityCumulativeX128)

	return Observation{
		BlockTimestamp:                    blockTimestamp,
		TickCumulative:                    safecast.WrapInt56(last.TickCumulative + int64(tick)*int64(delta)),
		SecondsPerLiquidityCumulativeX128: *safecast.Uint160(spl),
		Initialized:                       true,
	}
}

// Initialize writes the first slot and returns the starting cardinality and cardinalityNext.
func (o *Observations) Initialize(time uint32) (cardinality, cardinalityNext uint16) {
	o.set(0, Observation{
		BlockTimestamp: time,
		Initialized:    true,
	})
	return 1, 1
}

// Write records an observation at most once per timestamp. The cardinality grows to
// cardinalityNext only when the index is at the end of the current window.
func (o *Observations) Write(
	index uint16,
	blockTimestamp uint32,
	tick int,
	liquidity *ui.Int,
	cardinality uint16,
	cardinalityNext uint16,
) (indexUpdated, cardinalityUpdated uint16) {
	last := o.At(index)
	if last.BlockTimestamp == blockTimestamp {
		return index, cardinality
	}

	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	} else {
		cardinalityUpdated = cardinality
	}

	indexUpdated = uint16((uint32(index) + 1) % uint32(cardinalityUpdated))
	o.set(indexUpdated, Transform(last, blockTimestamp, tick, liquidity))
	return indexUpdated, cardinalityUpdated
}

// Grow prepares slots up to next. The slots are written with a non-zero timestamp
// and stay uninitialized until Write reaches them.
func (o *Observations) Grow(current, next uint16) (uint16, error) {
	if current == 0 {
		return 0, ErrEmptyBuffer
	}
	if next <= current {
		return current, nil
	}
	for i := current; i < next; i++ {
		o.set(i, Observation{BlockTimestamp: 1})
	}
	return next, nil
}

// Lte compares two timestamps that are both at or before time, accounting for
// a single wrap of the 32 bit clock.
func Lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdjusted := uint64(a)
	if a <= time {
		aAdjusted += 1 << 32
	}
	bAdjusted := uint64(b)
	if b <= time {
		bAdjusted += 1 << 32
	}
	return aAdjusted <= bAdjusted
}

// binarySearch finds the observations surrounding target. The target must be within
// the window of the buffer.
func (o *Observations) binarySearch(time, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter Observation) {
	l := (uint32(index) + 1) % uint32(cardinality)
	r := l + uint32(cardinality) - 1
	for {
		i := (l + r) / 2

		beforeOrAt = o.obs[i%uint32(cardinality)]
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter = o.obs[(i+1)%uint32(cardinality)]

		targetAtOrAfter := Lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && Lte(time, target, atOrAfter.BlockTimestamp) {
			return
		}
		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

func (o *Observations) getSurroundingObservations(
	time uint32,
	target uint32,
	tick int,
	index uint16,
	liquidity *ui.Int,
	cardinality uint16,
) (beforeOrAt, atOrAfter Observation, err error) {
	// optimistically start with the newest observation
	beforeOrAt = o.At(index)
	if Lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, atOrAfter, nil
		}
		return beforeOrAt, Transform(beforeOrAt, target, tick, liquidity), nil
	}

	// oldest observation
	beforeOrAt = o.At(uint16((uint32(index) + 1) % uint32(cardinality)))
	if !beforeOrAt.Initialized {
		beforeOrAt = o.At(0)
	}
	if !Lte(time, beforeOrAt.BlockTimestamp, target) {
		return Observation{}, Observation{}, ErrStaleTarget
	}

	beforeOrAt, atOrAfter = o.binarySearch(time, target, index, cardinality)
	return beforeOrAt, atOrAfter, nil
}

// ObserveSingle returns the accumulators as of secondsAgo before time, interpolating
// between observations and extrapolating from the newest one.
func (o *Observations) ObserveSingle(
	time uint32,
	secondsAgo uint32,
	tick int,
	index uint16,
	liquidity *ui.Int,
	cardinality uint16,
) (tickCumulative int64, secondsPerLiquidityCumulativeX128 *ui.Int, err error) {
	if secondsAgo == 0 {
		last := o.At(index)
		if last.BlockTimestamp != time {
			last = Transform(last, time, tick, liquidity)
		}
		return last.TickCumulative, last.SecondsPerLiquidityCumulativeX128.Clone(), nil
	}

	target := time - secondsAgo
	beforeOrAt, atOrAfter, err := o.getSurroundingObservations(time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	if target == beforeOrAt.BlockTimestamp {
		return beforeOrAt.TickCumulative, beforeOrAt.SecondsPerLiquidityCumulativeX128.Clone(), nil
	}
	if target == atOrAfter.BlockTimestamp {
		return atOrAfter.TickCumulative, atOrAfter.SecondsPerLiquidityCumulativeX128.Clone(), nil
	}

	observationTimeDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
	targetDelta := target - beforeOrAt.BlockTimestamp

	tickCumulativeDelta := safecast.WrapInt56(atOrAfter.TickCumulative - beforeOrAt.TickCumulative)
	tickCumulative = beforeOrAt.TickCumulative +
		tickCumulativeDelta/int64(observationTimeDelta)*int64(targetDelta)

	splDelta := safecast.Uint160(new(ui.Int).Sub(&atOrAfter.SecondsPerLiquidityCumulativeX128, &beforeOrAt.SecondsPerLiquidityCumulativeX128))
	splDelta.Mul(splDelta, ui.NewInt(uint64(targetDelta)))
	splDelta.Div(splDelta, ui.NewInt(uint64(observationTimeDelta)))
	secondsPerLiquidityCumulativeX128 = safecast.Uint160(splDelta.Add(splDelta, &beforeOrAt.SecondsPerLiquidityCumulativeX128))
	return safecast.WrapInt56(tickCumulative), secondsPerLiquidityCumulativeX128, nil
}

// Observe calls ObserveSingle for each entry of secondsAgos.
func (o *Observations) Observe(
	time uint32,
	secondsAgos []uint32,
	tick int,
	index uint16,
	liquidity *ui.Int,
	cardinality uint16,
) ([]int64, []*ui.Int, error) {
	if cardinality == 0 {
		return nil, nil, ErrEmptyBuffer
	}

	tickCumulatives := make([]int64, len(secondsAgos))
	secondsPerLiquidityCumulativeX128s := make([]*ui.Int, len(secondsAgos))
	for i, secondsAgo := range secondsAgos {
		tc, spl, err := o.ObserveSingle(time, secondsAgo, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, err
		}
		tickCumulatives[i] = tc
		secondsPerLiquidityCumulativeX128s[i] = spl
	}
	return tickCumulatives, secondsPerLiquidityCumulativeX128s, nil
}
