package pool

import (
	"fmt"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/events"
	"github.com/ftchann/uniswap-core/lib/journal"
	"github.com/ftchann/uniswap-core/lib/oracle"
	"github.com/ftchann/uniswap-core/lib/position"
	"github.com/ftchann/uniswap-core/lib/tick"
	"github.com/ftchann/uniswap-core/lib/tickbitmap"
	"github.com/ftchann/uniswap-core/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Params are the immutable pool parameters.
type Params struct {
	// Address is the account holding the pool's tokens in the ledger.
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	// Fee in hundredths of a bip.
	Fee uint32
	// TickSpacing defaults to the spacing of the fee tier when zero.
	TickSpacing int
}

// Slot0 is the frequently accessed pool state.
type Slot0 struct {
	SqrtPriceX96 ui.Int
	// tick matching SqrtPriceX96, not always equal to GetTickAtSqrtRatio(SqrtPriceX96)
	// when the price sits exactly on a tick boundary
	Tick                       int
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	// token0 share in the low 4 bits, token1 share in the high 4 bits, as 1/x
	FeeProtocol uint8
	Unlocked    bool
}

// globals is the scalar state restored when a call reverts.
type globals struct {
	slot0                Slot0
	feeGrowthGlobal0X128 ui.Int
	feeGrowthGlobal1X128 ui.Int
	protocolFees0        ui.Int
	protocolFees1        ui.Int
	liquidity            ui.Int
}

// Pool is a single concentrated liquidity pool. It is not safe for concurrent
// use; independent pools share nothing and may run on separate goroutines.
type Pool struct {
	params              Params
	maxLiquidityPerTick *ui.Int

	globals

	ticks        *tick.Table
	bitmap       *tickbitmap.Bitmap
	positions    *position.Table
	observations *oracle.Observations
	journal      *journal.Journal

	ledger  Ledger
	factory Factory
	clock   Clock
	sink    events.Sink
	logger  *zap.Logger

	pending []events.Event
	seq     uint64
}

type Option func(*Pool)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

func WithClock(clock Clock) Option {
	return func(p *Pool) { p.clock = clock }
}

func WithSink(sink events.Sink) Option {
	return func(p *Pool) { p.sink = sink }
}

func WithFactory(factory Factory) Option {
	return func(p *Pool) { p.factory = factory }
}

func NewPool(params Params, ledger Ledger, opts ...Option) (*Pool, error) {
	if params.Fee >= cons.MaxFee {
		return nil, fmt.Errorf("fee %d: %w", params.Fee, ErrInvalidParams)
	}
	if params.TickSpacing == 0 {
		spacing, ok := cons.TickSpaces[params.Fee]
		if !ok {
			return nil, fmt.Errorf("no tick spacing for fee %d: %w", params.Fee, ErrInvalidParams)
		}
		params.TickSpacing = spacing
	}
	if params.TickSpacing < 0 || params.TickSpacing >= 16384 {
		return nil, fmt.Errorf("tick spacing %d: %w", params.TickSpacing, ErrInvalidParams)
	}
	if ledger == nil {
		return nil, fmt.Errorf("nil ledger: %w", ErrInvalidParams)
	}

	j := journal.New()
	p := &Pool{
		params:              params,
		maxLiquidityPerTick: tick.TickSpacingToMaxLiquidityPerTick(params.TickSpacing),
		ticks:               tick.NewTable(j),
		bitmap:              tickbitmap.NewBitmap(j),
		positions:           position.NewTable(j),
		observations:        oracle.NewObservations(j),
		journal:             j,
		ledger:              ledger,
		factory:             StaticOwner{},
		clock:               SystemClock{},
		logger:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("pool", params.Address.Hex()))
	return p, nil
}

// Initialize sets the starting price. It can only be called once.
func (p *Pool) Initialize(sqrtPriceX96 *ui.Int) error {
	if p.initialized() {
		return ErrAlreadyInitialized
	}
	tickCurrent, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	cardinality, cardinalityNext := p.observations.Initialize(p.clock.Now())
	p.journal.Reset()

	p.slot0 = Slot0{
		Tick:                       tickCurrent,
		ObservationCardinality:     cardinality,
		ObservationCardinalityNext: cardinalityNext,
		Unlocked:                   true,
	}
	p.slot0.SqrtPriceX96.Set(sqrtPriceX96)

	p.emit(events.NameInitialize, events.InitializeData{
		SqrtPriceX96: sqrtPriceX96.Dec(),
		Tick:         int32(tickCurrent),
	})
	p.flush()
	p.logger.Debug("pool initialized", zap.String("sqrtPriceX96", sqrtPriceX96.Dec()), zap.Int("tick", tickCurrent))
	return nil
}

func (p *Pool) initialized() bool {
	return !p.slot0.SqrtPriceX96.IsZero()
}

// execute runs fn under the reentrancy lock. If fn fails every change it made,
// including pending events and ledger transfers when supported, is undone.
func (p *Pool) execute(op string, fn func() error) error {
	if !p.initialized() {
		return fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	if !p.slot0.Unlocked {
		return fmt.Errorf("%s: %w", op, ErrLocked)
	}

	saved := p.globals
	revision := p.journal.Len()
	pendingLen := len(p.pending)
	snapshotter, canSnapshot := p.ledger.(Snapshotter)
	var ledgerSnapshot int
	if canSnapshot {
		ledgerSnapshot = snapshotter.Snapshot()
	}

	p.slot0.Unlocked = false
	if err := fn(); err != nil {
		p.journal.Revert(revision)
		p.globals = saved
		p.pending = p.pending[:pendingLen]
		if canSnapshot {
			snapshotter.RevertToSnapshot(ledgerSnapshot)
		}
		p.logger.Debug("pool call reverted", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	p.slot0.Unlocked = true
	p.journal.Reset()
	p.flush()

	p.logger.Debug("pool call committed",
		zap.String("op", op),
		zap.Int("tick", p.slot0.Tick),
		zap.String("sqrtPriceX96", p.slot0.SqrtPriceX96.Dec()),
		zap.String("liquidity", p.liquidity.Dec()),
	)
	return nil
}

func (p *Pool) emit(name string, data interface{}) {
	p.pending = append(p.pending, events.Event{
		Name:      name,
		Pool:      p.params.Address.Hex(),
		Timestamp: p.clock.Now(),
		Data:      data,
	})
}

func (p *Pool) flush() {
	pending := p.pending
	p.pending = nil
	for _, e := range pending {
		p.seq++
		e.Seq = p.seq
		if p.sink != nil {
			p.sink.Emit(e)
		}
	}
}

func (p *Pool) balance0() *ui.Int {
	return p.ledger.BalanceOf(p.params.Token0, p.params.Address)
}

func (p *Pool) balance1() *ui.Int {
	return p.ledger.BalanceOf(p.params.Token1, p.params.Address)
}

func (p *Pool) pay(token, recipient common.Address, amount *ui.Int) error {
	if err := p.ledger.Transfer(token, p.params.Address, recipient, amount); err != nil {
		return fmt.Errorf("transfer %s to %s: %w", token.Hex(), recipient.Hex(), err)
	}
	return nil
}

// paidAtLeast reports whether after >= before + amount without overflow.
func paidAtLeast(before, amount, after *ui.Int) bool {
	required, overflow := new(ui.Int).AddOverflow(before, amount)
	return !overflow && !required.Gt(after)
}

func checkTicks(tickLower, tickUpper int) error {
	if tickLower >= tickUpper {
		return ErrTickOrder
	}
	if tickLower < tickmath.MinTick {
		return ErrTickLowerRange
	}
	if tickUpper > tickmath.MaxTick {
		return ErrTickUpperRange
	}
	return nil
}

func (p *Pool) Params() Params {
	return p.params
}

func (p *Pool) MaxLiquidityPerTick() *ui.Int {
	return p.maxLiquidityPerTick.Clone()
}

func (p *Pool) Slot0() Slot0 {
	return p.slot0
}

func (p *Pool) Liquidity() *ui.Int {
	return p.liquidity.Clone()
}

func (p *Pool) FeeGrowthGlobal() (*ui.Int, *ui.Int) {
	return p.feeGrowthGlobal0X128.Clone(), p.feeGrowthGlobal1X128.Clone()
}

func (p *Pool) ProtocolFees() (*ui.Int, *ui.Int) {
	return p.protocolFees0.Clone(), p.protocolFees1.Clone()
}

func (p *Pool) Tick(i int) tick.Info {
	return p.ticks.Get(i)
}

// TickInitialized reports the bitmap state of tick i.
func (p *Pool) TickInitialized(i int) bool {
	return p.bitmap.IsInitialized(i, p.params.TickSpacing)
}

func (p *Pool) Position(owner common.Address, tickLower, tickUpper int) position.Info {
	return p.positions.Get(owner, tickLower, tickUpper)
}

func (p *Pool) Observation(i uint16) oracle.Observation {
	return p.observations.At(i)
}

// Observe returns the accumulators as of each secondsAgo before now.
func (p *Pool) Observe(secondsAgos []uint32) ([]int64, []*ui.Int, error) {
	if !p.initialized() {
		return nil, nil, fmt.Errorf("observe: %w", ErrNotInitialized)
	}
	return p.observations.Observe(
		p.clock.Now(),
		secondsAgos,
		p.slot0.Tick,
		p.slot0.ObservationIndex,
		&p.liquidity,
		p.slot0.ObservationCardinality,
	)
}
