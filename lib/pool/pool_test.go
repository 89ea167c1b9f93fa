package pool

import (
	"errors"
	"testing"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/events"
	"github.com/ftchann/uniswap-core/lib/ledger"
	"github.com/ftchann/uniswap-core/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr = common.HexToAddress("0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8")
	token0   = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	token1   = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	owner    = common.HexToAddress("0x1f98431c8ad98523631ae4a59f267346ea31f984")
	payer    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	other    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	e18 = ui.NewInt(1_000_000_000_000_000_000)
)

func neg(x *ui.Int) *ui.Int {
	return new(ui.Int).Neg(x)
}

type harness struct {
	t      *testing.T
	pool   *Pool
	ledger *ledger.Memory
	clock  *ManualClock
	events *events.Recorder
}

func newHarness(t *testing.T, sqrtPriceX96 *ui.Int) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ledger: ledger.NewMemory(),
		clock:  NewManualClock(1000),
		events: &events.Recorder{},
	}
	supply := new(ui.Int).Lsh(cons.One, 200)
	require.NoError(t, h.ledger.Mint(token0, payer, supply))
	require.NoError(t, h.ledger.Mint(token1, payer, supply))

	p, err := NewPool(Params{Address: poolAddr, Token0: token0, Token1: token1, Fee: 3000}, h.ledger,
		WithClock(h.clock),
		WithSink(h.events),
		WithFactory(StaticOwner(owner)),
	)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(sqrtPriceX96))
	h.pool = p
	h.events.Drain()
	return h
}

// pay moves tokens from the payer to the pool.
func (h *harness) pay(amount0, amount1 *ui.Int) error {
	if amount0.Sign() > 0 {
		if err := h.ledger.Transfer(token0, payer, poolAddr, amount0); err != nil {
			return err
		}
	}
	if amount1.Sign() > 0 {
		if err := h.ledger.Transfer(token1, payer, poolAddr, amount1); err != nil {
			return err
		}
	}
	return nil
}

func (h *harness) mintCallback() MintCallback {
	return MintCallbackFunc(func(amount0Owed, amount1Owed *ui.Int, _ []byte) error {
		return h.pay(amount0Owed, amount1Owed)
	})
}

func (h *harness) swapCallback() SwapCallback {
	return SwapCallbackFunc(func(amount0Delta, amount1Delta *ui.Int, _ []byte) error {
		return h.pay(amount0Delta, amount1Delta)
	})
}

func (h *harness) mint(tickLower, tickUpper int, amount *ui.Int) (*ui.Int, *ui.Int) {
	h.t.Helper()
	amount0, amount1, err := h.pool.Mint(payer, payer, tickLower, tickUpper, amount, nil, h.mintCallback())
	require.NoError(h.t, err)
	return amount0, amount1
}

func (h *harness) swap(zeroForOne bool, amountSpecified *ui.Int) (*ui.Int, *ui.Int) {
	h.t.Helper()
	amount0, amount1, err := h.pool.Swap(payer, payer, zeroForOne, amountSpecified, nil, nil, h.swapCallback())
	require.NoError(h.t, err)
	return amount0, amount1
}

func TestNewPoolParams(t *testing.T) {
	l := ledger.NewMemory()

	p, err := NewPool(Params{Fee: 500}, l)
	require.NoError(t, err)
	require.Equal(t, 10, p.Params().TickSpacing)
	require.Equal(t, "1917569901783203986719870431555990", p.MaxLiquidityPerTick().Dec())

	_, err = NewPool(Params{Fee: 1234}, l)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = NewPool(Params{Fee: 1_000_000, TickSpacing: 1}, l)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = NewPool(Params{Fee: 3000, TickSpacing: 16384}, l)
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = NewPool(Params{Fee: 3000}, nil)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestInitialize(t *testing.T) {
	rec := &events.Recorder{}
	p, err := NewPool(Params{Address: poolAddr, Token0: token0, Token1: token1, Fee: 3000}, ledger.NewMemory(),
		WithClock(NewManualClock(1000)), WithSink(rec))
	require.NoError(t, err)

	_, _, err = p.Mint(payer, payer, -60, 60, ui.NewInt(1), nil, MintCallbackFunc(func(_, _ *ui.Int, _ []byte) error { return nil }))
	require.ErrorIs(t, err, ErrNotInitialized)
	_, _, _, err = p.SnapshotCumulativesInside(-60, 60)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.ErrorIs(t, p.Initialize(new(ui.Int).Sub(tickmath.MinSqrtRatio, cons.One)), tickmath.ErrSqrtRatioOutOfRange)
	require.NoError(t, p.Initialize(cons.Q96))
	require.ErrorIs(t, p.Initialize(cons.Q96), ErrAlreadyInitialized)

	slot0 := p.Slot0()
	require.Equal(t, 0, slot0.Tick)
	require.Equal(t, cons.Q96.Dec(), slot0.SqrtPriceX96.Dec())
	require.Equal(t, uint16(1), slot0.ObservationCardinality)
	require.Equal(t, uint16(1), slot0.ObservationCardinalityNext)
	require.True(t, slot0.Unlocked)

	obs := p.Observation(0)
	require.True(t, obs.Initialized)
	require.Equal(t, uint32(1000), obs.BlockTimestamp)

	require.Equal(t, []string{events.NameInitialize}, rec.Names())
	require.Equal(t, uint64(1), rec.Events()[0].Seq)
	data := rec.Events()[0].Data.(events.InitializeData)
	require.Equal(t, cons.Q96.Dec(), data.SqrtPriceX96)
}

func TestSmallSwapAcrossEmptyCurve(t *testing.T) {
	h := newHarness(t, cons.Q96)

	amount0, amount1 := h.mint(-60, 60, ui.NewInt(1000))
	require.Equal(t, "3", amount0.Dec())
	require.Equal(t, "3", amount1.Dec())

	amount0, amount1 = h.swap(true, ui.NewInt(100))
	require.Equal(t, "5", amount0.Dec())
	require.Equal(t, "-2", events.Signed(amount1))
	// output is fee reduced and below the input
	require.True(t, new(ui.Int).Neg(amount1).Lt(ui.NewInt(100)))

	slot0 := h.pool.Slot0()
	require.Equal(t, tickmath.MinTick, slot0.Tick)
	require.Equal(t, "4295128740", slot0.SqrtPriceX96.Dec())
	require.True(t, h.pool.Liquidity().IsZero())
	fg0, fg1 := h.pool.FeeGrowthGlobal()
	require.Equal(t, "340282366920938463463374607431768211", fg0.Dec())
	require.True(t, fg1.IsZero())
}

func TestSwapExactInputAndOutput(t *testing.T) {
	h := newHarness(t, cons.Q96)

	amount0, amount1 := h.mint(-600, 600, e18)
	require.Equal(t, "29553010879137170", amount0.Dec())
	require.Equal(t, "29553010879137170", amount1.Dec())
	require.Equal(t, e18.Dec(), h.pool.Liquidity().Dec())

	amount0, amount1 = h.swap(true, ui.NewInt(1_000_000_000_000_000))
	require.Equal(t, "1000000000000000", amount0.Dec())
	require.Equal(t, "-996006981039903", events.Signed(amount1))

	slot0 := h.pool.Slot0()
	require.Equal(t, -20, slot0.Tick)
	require.Equal(t, "79149250711305166342700278159", slot0.SqrtPriceX96.Dec())
	fg0, _ := h.pool.FeeGrowthGlobal()
	require.Equal(t, "1020847100762815390390123822295304", fg0.Dec())

	// exact output of token0
	amount0, amount1 = h.swap(false, neg(ui.NewInt(1_000_000_000_000_000)))
	require.Equal(t, "-1000000000000000", events.Signed(amount0))
	require.Equal(t, "1002013029127313", amount1.Dec())

	slot0 = h.pool.Slot0()
	require.Equal(t, 0, slot0.Tick)
	require.Equal(t, "79228400199464935988351915393", slot0.SqrtPriceX96.Dec())
	_, fg1 := h.pool.FeeGrowthGlobal()
	require.Equal(t, "1022902095711204724056423955906185", fg1.Dec())

	balance0 := h.ledger.BalanceOf(token0, poolAddr)
	balance1 := h.ledger.BalanceOf(token1, poolAddr)
	require.Equal(t, "29553010879137170", balance0.Dec())
	require.Equal(t, "29559016927224580", balance1.Dec())

	require.Equal(t, []string{events.NameMint, events.NameSwap, events.NameSwap}, h.events.Names())
	for i, e := range h.events.Events() {
		// Initialize took the first sequence number
		require.Equal(t, uint64(i+2), e.Seq)
	}
	swapEvent := h.events.Events()[2].Data.(events.SwapData)
	require.Equal(t, "-1000000000000000", swapEvent.Amount0)
	require.Equal(t, int32(0), swapEvent.Tick)
	require.Equal(t, e18.Dec(), swapEvent.Liquidity)
}

func TestSwapCrossesInitializedTick(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-60, 60, e18)
	h.mint(-600, 600, e18)
	require.Equal(t, "2000000000000000000", h.pool.Liquidity().Dec())

	amount0, amount1 := h.swap(true, ui.NewInt(10_000_000_000_000_000))
	require.Equal(t, "10000000000000000", amount0.Dec())
	require.Equal(t, "-9912816306615178", events.Signed(amount1))

	slot0 := h.pool.Slot0()
	require.Equal(t, -139, slot0.Tick)
	require.Equal(t, "78680104762184586990478407069", slot0.SqrtPriceX96.Dec())
	require.Equal(t, e18.Dec(), h.pool.Liquidity().Dec())
	fg0, _ := h.pool.FeeGrowthGlobal()
	require.Equal(t, "7132256228676415841154124566172760", fg0.Dec())

	// the crossed tick flipped its outside values, all time so far was spent above it
	crossed := h.pool.Tick(-60)
	require.False(t, crossed.FeeGrowthOutside0X128.IsZero())
	require.Zero(t, crossed.SecondsOutside)
}

func TestMintBurnTwoRanges(t *testing.T) {
	h := newHarness(t, cons.Q96)

	amount0, amount1 := h.mint(-60, 60, e18)
	require.Equal(t, "2995354955910781", amount0.Dec())
	require.Equal(t, "2995354955910781", amount1.Dec())

	// above the current price only token0 is needed
	amount0, amount1 = h.mint(120, 240, e18)
	require.Equal(t, "5945956573874156", amount0.Dec())
	require.True(t, amount1.IsZero())
	require.Equal(t, e18.Dec(), h.pool.Liquidity().Dec())

	require.True(t, h.pool.TickInitialized(120))
	require.True(t, h.pool.TickInitialized(240))

	amount0, amount1, err := h.pool.Burn(payer, 120, 240, e18)
	require.NoError(t, err)
	// burning rounds down, so the pool keeps the dust
	require.Equal(t, "5945956573874155", amount0.Dec())
	require.True(t, amount1.IsZero())
	require.Equal(t, e18.Dec(), h.pool.Liquidity().Dec())
	require.False(t, h.pool.TickInitialized(120))
	require.False(t, h.pool.Tick(120).Initialized)

	amount0, amount1, err = h.pool.Burn(payer, -60, 60, e18)
	require.NoError(t, err)
	require.Equal(t, "2995354955910780", amount0.Dec())
	require.Equal(t, "2995354955910780", amount1.Dec())
	require.True(t, h.pool.Liquidity().IsZero())
	require.False(t, h.pool.TickInitialized(-60))
	require.False(t, h.pool.TickInitialized(60))

	pos := h.pool.Position(payer, -60, 60)
	require.True(t, pos.Liquidity.IsZero())
	require.Equal(t, "2995354955910780", pos.TokensOwed0.Dec())

	amount0, amount1, err = h.pool.Collect(payer, other, -60, 60, cons.MaxUint128, cons.MaxUint128)
	require.NoError(t, err)
	require.Equal(t, "2995354955910780", amount0.Dec())
	require.Equal(t, "2995354955910780", amount1.Dec())
	require.Equal(t, "2995354955910780", h.ledger.BalanceOf(token0, other).Dec())

	pos = h.pool.Position(payer, -60, 60)
	require.True(t, pos.TokensOwed0.IsZero())
	require.True(t, pos.TokensOwed1.IsZero())

	// nothing left to collect
	amount0, amount1, err = h.pool.Collect(payer, other, -60, 60, cons.MaxUint128, cons.MaxUint128)
	require.NoError(t, err)
	require.True(t, amount0.IsZero())
	require.True(t, amount1.IsZero())
}

func TestMintValidation(t *testing.T) {
	h := newHarness(t, cons.Q96)
	cb := h.mintCallback()

	_, _, err := h.pool.Mint(payer, payer, 60, -60, ui.NewInt(1), nil, cb)
	require.ErrorIs(t, err, ErrTickOrder)
	_, _, err = h.pool.Mint(payer, payer, tickmath.MinTick-1, 60, ui.NewInt(1), nil, cb)
	require.ErrorIs(t, err, ErrTickLowerRange)
	_, _, err = h.pool.Mint(payer, payer, -60, tickmath.MaxTick+1, ui.NewInt(1), nil, cb)
	require.ErrorIs(t, err, ErrTickUpperRange)
	_, _, err = h.pool.Mint(payer, payer, -60, 60, new(ui.Int), nil, cb)
	require.ErrorIs(t, err, ErrMintAmountZero)
	_, _, err = h.pool.Mint(payer, payer, -60, 60, ui.NewInt(1), nil, nil)
	require.ErrorIs(t, err, ErrNilCallback)
	_, _, err = h.pool.Mint(payer, payer, -61, 60, ui.NewInt(1), nil, cb)
	require.Error(t, err)

	over := new(ui.Int).Add(h.pool.MaxLiquidityPerTick(), cons.One)
	_, _, err = h.pool.Mint(payer, payer, -60, 60, over, nil, cb)
	require.Error(t, err)

	require.Empty(t, h.events.Names())
	require.Zero(t, h.pool.positions.Len())
	require.Zero(t, h.pool.ticks.Len())
}

func TestMintUnderpaidRollsBack(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)
	h.events.Drain()

	payerBefore := h.ledger.BalanceOf(token0, payer)
	poolBefore := h.ledger.BalanceOf(token0, poolAddr)
	slot0Before := h.pool.Slot0()

	short := MintCallbackFunc(func(amount0Owed, amount1Owed *ui.Int, _ []byte) error {
		return h.pay(new(ui.Int).Sub(amount0Owed, cons.One), amount1Owed)
	})
	_, _, err := h.pool.Mint(payer, payer, -60, 60, e18, nil, short)
	require.ErrorIs(t, err, ErrInsufficientMint0)

	require.Equal(t, payerBefore.Dec(), h.ledger.BalanceOf(token0, payer).Dec())
	require.Equal(t, poolBefore.Dec(), h.ledger.BalanceOf(token0, poolAddr).Dec())
	require.Equal(t, e18.Dec(), h.pool.Liquidity().Dec())
	require.Equal(t, slot0Before, h.pool.Slot0())
	require.False(t, h.pool.TickInitialized(-60))
	require.False(t, h.pool.Tick(60).Initialized)
	pos := h.pool.Position(payer, -60, 60)
	require.True(t, pos.Liquidity.IsZero())
	require.Empty(t, h.events.Names())

	// the pool is usable afterwards
	h.mint(-60, 60, e18)
	require.Equal(t, "2000000000000000000", h.pool.Liquidity().Dec())
}

func TestBurnRejectsAmountAboveUint128(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-60, 60, e18)
	h.events.Drain()

	slot0Before := h.pool.Slot0()
	for _, amount := range []*ui.Int{
		new(ui.Int).SetAllOne(),
		new(ui.Int).Add(cons.MaxUint128, cons.One),
		new(ui.Int).Lsh(cons.One, 127),
	} {
		_, _, err := h.pool.Burn(other, -60, 60, amount)
		require.Error(t, err, amount.Hex())
	}

	pos := h.pool.Position(other, -60, 60)
	require.True(t, pos.Liquidity.IsZero())
	require.True(t, pos.TokensOwed0.IsZero())
	require.True(t, pos.TokensOwed1.IsZero())
	require.Equal(t, e18.Dec(), h.pool.Liquidity().Dec())
	require.Equal(t, slot0Before, h.pool.Slot0())
	require.Empty(t, h.events.Names())

	// nothing is collectable by the caller
	amount0, amount1, err := h.pool.Collect(other, other, -60, 60, cons.MaxUint128, cons.MaxUint128)
	require.NoError(t, err)
	require.True(t, amount0.IsZero())
	require.True(t, amount1.IsZero())
}

func TestMintCallbackError(t *testing.T) {
	h := newHarness(t, cons.Q96)
	boom := errors.New("boom")
	_, _, err := h.pool.Mint(payer, payer, -60, 60, e18, nil, MintCallbackFunc(func(_, _ *ui.Int, _ []byte) error {
		return boom
	}))
	require.ErrorIs(t, err, boom)
	require.True(t, h.pool.Slot0().Unlocked)
	require.Zero(t, h.pool.ticks.Len())
}

func TestReentrancyLocked(t *testing.T) {
	h := newHarness(t, cons.Q96)

	var reentered []error
	cb := MintCallbackFunc(func(amount0Owed, amount1Owed *ui.Int, _ []byte) error {
		_, _, err := h.pool.Swap(payer, payer, true, ui.NewInt(1), nil, nil, h.swapCallback())
		reentered = append(reentered, err)
		_, _, err = h.pool.Burn(payer, -60, 60, new(ui.Int))
		reentered = append(reentered, err)
		reentered = append(reentered, h.pool.IncreaseObservationCardinalityNext(5))
		return h.pay(amount0Owed, amount1Owed)
	})
	_, _, err := h.pool.Mint(payer, payer, -60, 60, e18, nil, cb)
	require.NoError(t, err)

	require.Len(t, reentered, 3)
	for _, err := range reentered {
		require.ErrorIs(t, err, ErrLocked)
	}
	require.Equal(t, uint16(1), h.pool.Slot0().ObservationCardinalityNext)
	require.Equal(t, []string{events.NameMint}, h.events.Names())
}

func TestSwapValidation(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)
	cb := h.swapCallback()

	_, _, err := h.pool.Swap(payer, payer, true, new(ui.Int), nil, nil, cb)
	require.ErrorIs(t, err, ErrAmountZero)

	// the limit must be on the trading side of the current price
	_, _, err = h.pool.Swap(payer, payer, true, ui.NewInt(10), new(ui.Int).Add(cons.Q96, cons.One), nil, cb)
	require.ErrorIs(t, err, ErrSqrtPriceLimit)
	_, _, err = h.pool.Swap(payer, payer, true, ui.NewInt(10), cons.Q96, nil, cb)
	require.ErrorIs(t, err, ErrSqrtPriceLimit)
	_, _, err = h.pool.Swap(payer, payer, true, ui.NewInt(10), tickmath.MinSqrtRatio, nil, cb)
	require.ErrorIs(t, err, ErrSqrtPriceLimit)
	_, _, err = h.pool.Swap(payer, payer, false, ui.NewInt(10), tickmath.MaxSqrtRatio, nil, cb)
	require.ErrorIs(t, err, ErrSqrtPriceLimit)
	_, _, err = h.pool.Swap(payer, payer, false, ui.NewInt(10), nil, nil, nil)
	require.ErrorIs(t, err, ErrNilCallback)
}

func TestSwapStopsAtPriceLimit(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)

	limit := tickmath.MustGetSqrtRatioAtTick(-10)
	amount0, amount1, err := h.pool.Swap(payer, payer, true, e18, limit, nil, h.swapCallback())
	require.NoError(t, err)
	require.True(t, amount0.Lt(e18))
	require.True(t, amount1.Sign() < 0)

	slot0 := h.pool.Slot0()
	require.Equal(t, limit.Dec(), slot0.SqrtPriceX96.Dec())
	require.Equal(t, -10, slot0.Tick)
}

func TestSwapUnderpaidRollsBack(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)
	h.events.Drain()

	recipientBefore := h.ledger.BalanceOf(token1, other)
	slot0Before := h.pool.Slot0()
	fg0Before, _ := h.pool.FeeGrowthGlobal()

	cb := SwapCallbackFunc(func(amount0Delta, amount1Delta *ui.Int, _ []byte) error {
		// the output already arrived at the recipient
		require.Equal(t, new(ui.Int).Neg(amount1Delta).Dec(), h.ledger.BalanceOf(token1, other).Dec())
		return h.pay(new(ui.Int).Sub(amount0Delta, cons.One), new(ui.Int))
	})
	_, _, err := h.pool.Swap(payer, other, true, ui.NewInt(1_000_000_000_000_000), nil, nil, cb)
	require.ErrorIs(t, err, ErrInsufficientInput)

	require.Equal(t, recipientBefore.Dec(), h.ledger.BalanceOf(token1, other).Dec())
	require.Equal(t, slot0Before, h.pool.Slot0())
	fg0After, _ := h.pool.FeeGrowthGlobal()
	require.Equal(t, fg0Before.Dec(), fg0After.Dec())
	require.Empty(t, h.events.Names())
}

func TestProtocolFee(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)

	require.ErrorIs(t, h.pool.SetFeeProtocol(other, 4, 4), ErrNotOwner)
	require.ErrorIs(t, h.pool.SetFeeProtocol(owner, 3, 4), ErrInvalidFeeProtocol)
	require.ErrorIs(t, h.pool.SetFeeProtocol(owner, 4, 11), ErrInvalidFeeProtocol)
	require.NoError(t, h.pool.SetFeeProtocol(owner, 4, 0))
	require.Equal(t, uint8(4), h.pool.Slot0().FeeProtocol)

	amount0, amount1 := h.swap(true, ui.NewInt(1_000_000_000_000_000))
	require.Equal(t, "1000000000000000", amount0.Dec())
	require.Equal(t, "-996006981039903", events.Signed(amount1))

	pf0, pf1 := h.pool.ProtocolFees()
	require.Equal(t, "750000000000", pf0.Dec())
	require.True(t, pf1.IsZero())
	fg0, _ := h.pool.FeeGrowthGlobal()
	require.Equal(t, "765635325572111542792592866721478", fg0.Dec())

	_, _, err := h.pool.CollectProtocol(other, other, cons.MaxUint128, cons.MaxUint128)
	require.ErrorIs(t, err, ErrNotOwner)

	collected0, collected1, err := h.pool.CollectProtocol(owner, other, ui.NewInt(500_000_000_000), cons.MaxUint128)
	require.NoError(t, err)
	require.Equal(t, "500000000000", collected0.Dec())
	require.True(t, collected1.IsZero())

	collected0, _, err = h.pool.CollectProtocol(owner, other, cons.MaxUint128, cons.MaxUint128)
	require.NoError(t, err)
	require.Equal(t, "250000000000", collected0.Dec())
	require.Equal(t, "750000000000", h.ledger.BalanceOf(token0, other).Dec())
	pf0, _ = h.pool.ProtocolFees()
	require.True(t, pf0.IsZero())

	var change events.SetFeeProtocolData
	for _, e := range h.events.Events() {
		if e.Name == events.NameSetFeeProtocol {
			change = e.Data.(events.SetFeeProtocolData)
		}
	}
	require.Equal(t, events.SetFeeProtocolData{FeeProtocol0New: 4}, change)
}

func TestFeesAccrueToPosition(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)
	h.swap(true, ui.NewInt(1_000_000_000_000_000))

	// poke to accrue the swap fee
	amount0, amount1, err := h.pool.Burn(payer, -600, 600, new(ui.Int))
	require.NoError(t, err)
	require.True(t, amount0.IsZero())
	require.True(t, amount1.IsZero())

	pos := h.pool.Position(payer, -600, 600)
	require.Equal(t, "2999999999999", pos.TokensOwed0.Dec())
	require.True(t, pos.TokensOwed1.IsZero())

	collected0, _, err := h.pool.Collect(payer, payer, -600, 600, ui.NewInt(1_000_000_000_000), cons.MaxUint128)
	require.NoError(t, err)
	require.Equal(t, "1000000000000", collected0.Dec())
	pos = h.pool.Position(payer, -600, 600)
	require.Equal(t, "1999999999999", pos.TokensOwed0.Dec())

	// poking an empty position is rejected
	_, _, err = h.pool.Burn(other, -600, 600, new(ui.Int))
	require.Error(t, err)
}

func TestFlash(t *testing.T) {
	h := newHarness(t, cons.Q96)

	amount := ui.NewInt(1_000_000_000_000_000)
	repay := FlashCallbackFunc(func(fee0, fee1 *ui.Int, _ []byte) error {
		return h.pay(new(ui.Int).Add(amount, fee0), fee1)
	})
	err := h.pool.Flash(payer, payer, amount, new(ui.Int), nil, repay)
	require.ErrorIs(t, err, ErrNoLiquidity)

	h.mint(-600, 600, e18)
	require.NoError(t, h.pool.SetFeeProtocol(owner, 4, 0))
	h.events.Drain()

	var gotFee0 *ui.Int
	var gotData []byte
	err = h.pool.Flash(payer, payer, amount, new(ui.Int), []byte("x"), FlashCallbackFunc(func(fee0, fee1 *ui.Int, data []byte) error {
		gotFee0, gotData = fee0, data
		return repay(fee0, fee1, data)
	}))
	require.NoError(t, err)
	require.Equal(t, []byte("x"), gotData)
	require.Equal(t, "3000000000000", gotFee0.Dec())

	pf0, _ := h.pool.ProtocolFees()
	require.Equal(t, "750000000000", pf0.Dec())
	fg0, _ := h.pool.FeeGrowthGlobal()
	require.Equal(t, "765635325572111542792592866721478", fg0.Dec())

	require.Equal(t, []string{events.NameFlash}, h.events.Names())
	flash := h.events.Events()[0].Data.(events.FlashData)
	require.Equal(t, "3000000000000", flash.Paid0)
	require.Equal(t, "0", flash.Paid1)
}

func TestFlashUnpaid(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)
	poolBefore := h.ledger.BalanceOf(token1, poolAddr)

	amount := ui.NewInt(1_000_000)
	err := h.pool.Flash(payer, other, new(ui.Int), amount, nil, FlashCallbackFunc(func(fee0, fee1 *ui.Int, _ []byte) error {
		// principal only
		return h.pay(new(ui.Int), amount)
	}))
	require.ErrorIs(t, err, ErrFlashUnpaid1)
	require.Equal(t, poolBefore.Dec(), h.ledger.BalanceOf(token1, poolAddr).Dec())
	require.True(t, h.ledger.BalanceOf(token1, other).IsZero())
}

func TestObserve(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)

	h.clock.Set(1010)
	h.swap(true, ui.NewInt(1_000_000_000_000_000))
	require.Equal(t, -20, h.pool.Slot0().Tick)

	h.clock.Set(1020)
	tickCumulatives, _, err := h.pool.Observe([]uint32{0, 10})
	require.NoError(t, err)
	require.Equal(t, []int64{-200, 0}, tickCumulatives)

	_, _, err = h.pool.Observe([]uint32{11})
	require.Error(t, err)

	require.NoError(t, h.pool.IncreaseObservationCardinalityNext(4))
	require.NoError(t, h.pool.IncreaseObservationCardinalityNext(2))
	require.Equal(t, uint16(4), h.pool.Slot0().ObservationCardinalityNext)
	require.Equal(t, uint16(1), h.pool.Slot0().ObservationCardinality)

	var grows int
	for _, e := range h.events.Events() {
		if e.Name == events.NameIncreaseObservationCardinalityNext {
			grows++
			require.Equal(t, events.IncreaseObservationCardinalityNextData{Old: 1, New: 4}, e.Data)
		}
	}
	require.Equal(t, 1, grows)

	// the next write in a new block grows the buffer
	h.clock.Set(1030)
	h.swap(false, ui.NewInt(1_000_000_000_000_000))
	require.Equal(t, uint16(4), h.pool.Slot0().ObservationCardinality)
	require.Equal(t, uint16(1), h.pool.Slot0().ObservationIndex)
}

func TestObserveUninitialized(t *testing.T) {
	p, err := NewPool(Params{Address: poolAddr, Token0: token0, Token1: token1, Fee: 3000}, ledger.NewMemory())
	require.NoError(t, err)

	_, _, err = p.Observe([]uint32{0})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestSnapshotCumulativesInside(t *testing.T) {
	h := newHarness(t, cons.Q96)
	h.mint(-600, 600, e18)

	_, _, _, err := h.pool.SnapshotCumulativesInside(-60, 60)
	require.ErrorIs(t, err, ErrTickNotInitialized)

	h.clock.Set(1100)
	tickCumulative, secondsPerLiquidity, secondsInside, err := h.pool.SnapshotCumulativesInside(-600, 600)
	require.NoError(t, err)
	require.Equal(t, int64(0), tickCumulative)
	require.Equal(t, "34028236692093846346337", secondsPerLiquidity.Dec())
	require.Equal(t, uint32(100), secondsInside)

	// a range entirely above the price has seen no time inside
	h.mint(1200, 1800, e18)
	h.clock.Set(1200)
	_, _, secondsInside, err = h.pool.SnapshotCumulativesInside(1200, 1800)
	require.NoError(t, err)
	require.Zero(t, secondsInside)
}

func TestEventsOnlyOnCommit(t *testing.T) {
	h := newHarness(t, cons.Q96)
	var seen []string
	h.pool.sink = events.SinkFunc(func(e events.Event) { seen = append(seen, e.Name) })

	cb := MintCallbackFunc(func(amount0Owed, amount1Owed *ui.Int, _ []byte) error {
		// nothing has been published while the call runs
		require.Empty(t, seen)
		return h.pay(amount0Owed, amount1Owed)
	})
	_, _, err := h.pool.Mint(payer, payer, -60, 60, e18, nil, cb)
	require.NoError(t, err)
	require.Equal(t, []string{events.NameMint}, seen)

	require.Empty(t, h.pool.pending)
	require.Zero(t, h.pool.journal.Len())
}
