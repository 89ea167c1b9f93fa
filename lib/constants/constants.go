package constants

import (
	ui "github.com/holiman/uint256"
)

var (
	Zero       = new(ui.Int)
	One        = new(ui.Int).SetOne()
	MaxUint256 = new(ui.Int).SetAllOne()
	// used in liquidity amount math
	Q96  = new(ui.Int).Lsh(One, 96)
	Q128 = new(ui.Int).Lsh(One, 128)
	Q192 = new(ui.Int).Lsh(One, 192)
	E6   = ui.NewInt(1_000_000)

	MaxUint128 = new(ui.Int).Sub(Q128, One)
	MaxUint160 = new(ui.Int).Sub(new(ui.Int).Lsh(One, 160), One)
	MaxInt128  = new(ui.Int).Sub(new(ui.Int).Lsh(One, 127), One)
	MinInt128  = new(ui.Int).Neg(new(ui.Int).Lsh(One, 127))
	MaxInt256  = new(ui.Int).Sub(new(ui.Int).Lsh(One, 255), One)
)

// MaxFee is the fee denominator, fees are expressed in hundredths of a bip.
const MaxFee = 1_000_000

// TickSpaces maps the enabled fee tiers to their tick spacing.
var TickSpaces = map[uint32]int{
	500:   10,
	3000:  60,
	10000: 200,
}
