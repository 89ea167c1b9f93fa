package position

import (
	"errors"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/fullmath"
	"github.com/ftchann/uniswap-core/lib/journal"
	"github.com/ftchann/uniswap-core/lib/liquiditymath"
	"github.com/ftchann/uniswap-core/lib/safecast"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	ui "github.com/holiman/uint256"
)

// ErrInvalidPoke is returned when a zero liquidity delta touches an empty position.
var ErrInvalidPoke = errors.New("NP")

// Info is the state of one owner's liquidity in one range.
type Info struct {
	Liquidity ui.Int
	// fee growth per unit of liquidity as of the last update
	FeeGrowthInside0LastX128 ui.Int
	FeeGrowthInside1LastX128 ui.Int
	// fees owed to the position owner, uint128 and wrapping
	TokensOwed0 ui.Int
	TokensOwed1 ui.Int
}

// Key packs owner, tickLower and tickUpper (int24 big endian) and hashes them with keccak256.
func Key(owner common.Address, tickLower, tickUpper int) common.Hash {
	buf := make([]byte, 0, common.AddressLength+6)
	buf = append(buf, owner.Bytes()...)
	buf = appendInt24(buf, tickLower)
	buf = appendInt24(buf, tickUpper)
	return crypto.Keccak256Hash(buf)
}

func appendInt24(buf []byte, v int) []byte {
	u := uint32(int32(v)) & 0xffffff
	return append(buf, byte(u>>16), byte(u>>8), byte(u))
}

// Update credits fees accumulated since the last update and applies liquidityDelta.
// The receiver is untouched when an error is returned.
func (i *Info) Update(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *ui.Int) error {
	var liquidityNext *ui.Int
	if liquidityDelta.IsZero() {
		if i.Liquidity.IsZero() {
			return ErrInvalidPoke
		}
		liquidityNext = i.Liquidity.Clone()
	} else {
		var err error
		liquidityNext, err = liquiditymath.AddDelta(&i.Liquidity, liquidityDelta)
		if err != nil {
			return err
		}
	}

	temp0 := new(ui.Int).Sub(feeGrowthInside0X128, &i.FeeGrowthInside0LastX128)
	temp1 := new(ui.Int).Sub(feeGrowthInside1X128, &i.FeeGrowthInside1LastX128)
	tokensOwed0, err := fullmath.MulDiv(temp0, &i.Liquidity, cons.Q128)
	if err != nil {
		return err
	}
	tokensOwed1, err := fullmath.MulDiv(temp1, &i.Liquidity, cons.Q128)
	if err != nil {
		return err
	}

	i.Liquidity.Set(liquidityNext)
	i.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	i.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)
	// overflow is acceptable, the owner has to withdraw before 2^128 accrues
	i.TokensOwed0.Set(safecast.Uint128(new(ui.Int).Add(&i.TokensOwed0, safecast.Uint128(tokensOwed0))))
	i.TokensOwed1.Set(safecast.Uint128(new(ui.Int).Add(&i.TokensOwed1, safecast.Uint128(tokensOwed1))))
	return nil
}

// Table stores positions by key. Positions are created on first touch and never removed.
type Table struct {
	positions map[common.Hash]*Info
	journal   *journal.Journal
}

func NewTable(j *journal.Journal) *Table {
	return &Table{
		positions: make(map[common.Hash]*Info),
		journal:   j,
	}
}

// Get returns a copy of the position. Missing positions read as zero.
func (t *Table) Get(owner common.Address, tickLower, tickUpper int) Info {
	if info, ok := t.positions[Key(owner, tickLower, tickUpper)]; ok {
		return *info
	}
	return Info{}
}

func (t *Table) Len() int {
	return len(t.positions)
}

func (t *Table) record(key common.Hash) *Info {
	info, ok := t.positions[key]
	if ok {
		prev := *info
		t.journal.Append(func() {
			restored := prev
			t.positions[key] = &restored
		})
		return info
	}
	t.journal.Append(func() {
		delete(t.positions, key)
	})
	info = &Info{}
	t.positions[key] = info
	return info
}

// Update applies Info.Update to the stored position.
func (t *Table) Update(owner common.Address, tickLower, tickUpper int, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *ui.Int) (Info, error) {
	key := Key(owner, tickLower, tickUpper)
	cur := t.Get(owner, tickLower, tickUpper)
	if err := cur.Update(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128); err != nil {
		return Info{}, err
	}
	info := t.record(key)
	*info = cur
	return cur, nil
}

// Credit adds burned principal to the owed amounts, wrapping at 2^128.
func (t *Table) Credit(owner common.Address, tickLower, tickUpper int, amount0, amount1 *ui.Int) {
	info := t.record(Key(owner, tickLower, tickUpper))
	info.TokensOwed0.Set(safecast.Uint128(new(ui.Int).Add(&info.TokensOwed0, amount0)))
	info.TokensOwed1.Set(safecast.Uint128(new(ui.Int).Add(&info.TokensOwed1, amount1)))
}

// Collect caps the requested amounts by what is owed, deducts and returns them.
func (t *Table) Collect(owner common.Address, tickLower, tickUpper int, requested0, requested1 *ui.Int) (amount0, amount1 *ui.Int) {
	cur := t.Get(owner, tickLower, tickUpper)
	amount0 = requested0.Clone()
	if amount0.Gt(&cur.TokensOwed0) {
		amount0.Set(&cur.TokensOwed0)
	}
	amount1 = requested1.Clone()
	if amount1.Gt(&cur.TokensOwed1) {
		amount1.Set(&cur.TokensOwed1)
	}
	if amount0.IsZero() && amount1.IsZero() {
		return
	}
	info := t.record(Key(owner, tickLower, tickUpper))
	info.TokensOwed0.Sub(&info.TokensOwed0, amount0)
	info.TokensOwed1.Sub(&info.TokensOwed1, amount1)
	return
}
