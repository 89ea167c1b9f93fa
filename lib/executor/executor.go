// Package executor replays recorded operations against a single pool backed by
// an in-memory ledger.
package executor

import (
	"context"
	"encoding/binary"
	"fmt"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/events"
	"github.com/ftchann/uniswap-core/lib/fullmath"
	"github.com/ftchann/uniswap-core/lib/ledger"
	la "github.com/ftchann/uniswap-core/lib/liquidity_amounts"
	ppool "github.com/ftchann/uniswap-core/lib/pool"
	"github.com/ftchann/uniswap-core/lib/storage"
	"github.com/ftchann/uniswap-core/lib/tickmath"
	ent "github.com/ftchann/uniswap-core/lib/transaction"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	ui "github.com/holiman/uint256"
	"go.uber.org/zap"
)

// PoolAddress derives a stable ledger account for a replayed pool from its tokens,
// fee and the name of the stream it replays.
func PoolAddress(token0, token1 common.Address, fee uint32, name string) common.Address {
	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], fee)
	hash := crypto.Keccak256(token0.Bytes(), token1.Bytes(), feeBytes[:], []byte(name))
	return common.BytesToAddress(hash[12:])
}

type Config struct {
	Params ppool.Params
	Owner  common.Address
	// SqrtPriceX96 initializes the pool before the first transaction when set.
	SqrtPriceX96 *ui.Int
	// Cardinality is the observation buffer size requested after initialization.
	Cardinality uint16
	// BatchSize is the number of events buffered before they are stored.
	BatchSize int
	// SnapshotInterval in seconds, zero disables snapshots.
	SnapshotInterval uint32
}

// Failure records a transaction the pool rejected.
type Failure struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Timestamp uint32 `json:"timestamp"`
	Error     string `json:"error"`
}

// Snapshot is the pool state and the value it holds, in token0, at a point in time.
type Snapshot struct {
	Timestamp    uint32 `json:"timestamp"`
	Tick         int    `json:"tick"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Balance0     string `json:"balance0"`
	Balance1     string `json:"balance1"`
	ValueIn0     string `json:"value_in_token0"`
}

type Result struct {
	Applied   int
	Events    int
	Failures  []Failure
	Snapshots []Snapshot
}

// Execution pays for every operation on behalf of its sender, minting whatever
// tokens the sender lacks.
type Execution struct {
	cfg    Config
	pool   *ppool.Pool
	ledger *ledger.Memory
	clock  *ppool.ManualClock
	store  storage.Storage
	logger *zap.Logger

	buffer  []events.Event
	written int
}

func CreateExecution(cfg Config, store storage.Storage, logger *zap.Logger) (*Execution, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	e := &Execution{
		cfg:    cfg,
		ledger: ledger.NewMemory(),
		clock:  ppool.NewManualClock(0),
		store:  store,
		logger: logger,
	}
	pool, err := ppool.NewPool(cfg.Params, e.ledger,
		ppool.WithClock(e.clock),
		ppool.WithSink(e),
		ppool.WithFactory(ppool.StaticOwner(cfg.Owner)),
		ppool.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	e.cfg.Params = pool.Params()
	return e, nil
}

func (e *Execution) Pool() *ppool.Pool {
	return e.pool
}

func (e *Execution) Ledger() *ledger.Memory {
	return e.ledger
}

// Emit buffers committed pool events until the next flush.
func (e *Execution) Emit(event events.Event) {
	e.buffer = append(e.buffer, event)
}

func (e *Execution) flush(ctx context.Context) error {
	if len(e.buffer) == 0 {
		return nil
	}
	if err := e.store.PutEventBatch(ctx, e.buffer); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	e.written += len(e.buffer)
	e.buffer = e.buffer[:0]
	return nil
}

// Run applies the transactions in order. Rejected transactions are recorded as
// failures and the replay continues; storage errors abort it.
func (e *Execution) Run(ctx context.Context, transactions []ent.Transaction) (Result, error) {
	var result Result

	if e.cfg.SqrtPriceX96 != nil && !e.cfg.SqrtPriceX96.IsZero() {
		if len(transactions) > 0 {
			e.clock.Set(transactions[0].Timestamp)
		}
		if err := e.initialize(e.cfg.SqrtPriceX96); err != nil {
			return result, fmt.Errorf("initialize: %w", err)
		}
		e.ledger.Finalise()
	}

	started := false
	var nextSnapshot uint32
	for i, trans := range transactions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		e.clock.Set(trans.Timestamp)

		if err := e.apply(trans); err != nil {
			result.Failures = append(result.Failures, Failure{
				Index:     i,
				ID:        trans.ID,
				Type:      trans.Type,
				Timestamp: trans.Timestamp,
				Error:     err.Error(),
			})
			e.logger.Debug("transaction rejected",
				zap.Int("index", i),
				zap.String("type", trans.Type),
				zap.String("id", trans.ID),
				zap.Error(err),
			)
		} else {
			result.Applied++
		}
		e.ledger.Finalise()

		if e.cfg.SnapshotInterval > 0 && e.initialized() {
			if !started {
				nextSnapshot = trans.Timestamp
				started = true
			}
			if trans.Timestamp >= nextSnapshot {
				snapshot, err := e.snapshot()
				if err != nil {
					return result, err
				}
				result.Snapshots = append(result.Snapshots, snapshot)
				nextSnapshot += e.cfg.SnapshotInterval
			}
		}

		if len(e.buffer) >= e.cfg.BatchSize {
			if err := e.flush(ctx); err != nil {
				return result, err
			}
		}
	}

	if err := e.flush(ctx); err != nil {
		return result, err
	}
	result.Events = e.written
	return result, nil
}

func (e *Execution) initialized() bool {
	slot0 := e.pool.Slot0()
	return !slot0.SqrtPriceX96.IsZero()
}

func (e *Execution) initialize(sqrtPriceX96 *ui.Int) error {
	if err := e.pool.Initialize(sqrtPriceX96); err != nil {
		return err
	}
	if e.cfg.Cardinality > 1 {
		return e.pool.IncreaseObservationCardinalityNext(e.cfg.Cardinality)
	}
	return nil
}

func orMax(requested *ui.Int) *ui.Int {
	if requested == nil || requested.IsZero() {
		return cons.MaxUint128.Clone()
	}
	return requested
}

func (e *Execution) apply(trans ent.Transaction) error {
	sender := trans.Sender
	recipient := trans.Recipient
	if recipient == (common.Address{}) {
		recipient = sender
	}

	switch trans.Type {
	case ent.TypeInitialize:
		return e.initialize(trans.SqrtPriceX96)
	case ent.TypeMint:
		liquidity := trans.Amount
		if liquidity.IsZero() {
			var err error
			if liquidity, err = e.liquidityForAmounts(trans); err != nil {
				return err
			}
		}
		_, _, err := e.pool.Mint(sender, recipient, trans.TickLower, trans.TickUpper, liquidity, nil, ppool.MintCallbackFunc(
			func(amount0Owed, amount1Owed *ui.Int, _ []byte) error {
				return e.settle(amount0Owed, amount1Owed, sender)
			}))
		return err
	case ent.TypeBurn:
		_, _, err := e.pool.Burn(sender, trans.TickLower, trans.TickUpper, trans.Amount)
		return err
	case ent.TypeCollect:
		_, _, err := e.pool.Collect(sender, recipient, trans.TickLower, trans.TickUpper, orMax(trans.Amount0), orMax(trans.Amount1))
		return err
	case ent.TypeSwap:
		_, _, err := e.pool.Swap(sender, recipient, trans.ZeroForOne, trans.Amount, trans.SqrtPriceX96, nil, ppool.SwapCallbackFunc(
			func(amount0Delta, amount1Delta *ui.Int, _ []byte) error {
				return e.settle(amount0Delta, amount1Delta, sender)
			}))
		return err
	case ent.TypeFlash:
		return e.pool.Flash(sender, recipient, trans.Amount0, trans.Amount1, nil, ppool.FlashCallbackFunc(
			func(fee0, fee1 *ui.Int, _ []byte) error {
				return e.settle(new(ui.Int).Add(trans.Amount0, fee0), new(ui.Int).Add(trans.Amount1, fee1), sender)
			}))
	case ent.TypeSetFeeProtocol:
		return e.pool.SetFeeProtocol(sender, trans.FeeProtocol0, trans.FeeProtocol1)
	case ent.TypeCollectProtocol:
		_, _, err := e.pool.CollectProtocol(sender, recipient, orMax(trans.Amount0), orMax(trans.Amount1))
		return err
	case ent.TypeIncreaseObservationCardinalityNext:
		return e.pool.IncreaseObservationCardinalityNext(trans.Cardinality)
	}
	return fmt.Errorf("%q: %w", trans.Type, ent.ErrUnknownType)
}

func (e *Execution) liquidityForAmounts(trans ent.Transaction) (*ui.Int, error) {
	sqrtRatioAX96, err := tickmath.GetSqrtRatioAtTick(trans.TickLower)
	if err != nil {
		return nil, err
	}
	sqrtRatioBX96, err := tickmath.GetSqrtRatioAtTick(trans.TickUpper)
	if err != nil {
		return nil, err
	}
	slot0 := e.pool.Slot0()
	return la.GetLiquidityForAmounts(&slot0.SqrtPriceX96, sqrtRatioAX96, sqrtRatioBX96, trans.Amount0, trans.Amount1)
}

// settle pays the positive amounts from payer to the pool.
func (e *Execution) settle(amount0, amount1 *ui.Int, payer common.Address) error {
	params := e.cfg.Params
	if err := e.pay(params.Token0, payer, amount0); err != nil {
		return err
	}
	return e.pay(params.Token1, payer, amount1)
}

func (e *Execution) pay(token, payer common.Address, amount *ui.Int) error {
	if amount.Sign() <= 0 {
		return nil
	}
	balance := e.ledger.BalanceOf(token, payer)
	if balance.Lt(amount) {
		if err := e.ledger.Mint(token, payer, new(ui.Int).Sub(amount, balance)); err != nil {
			return err
		}
	}
	return e.ledger.Transfer(token, payer, e.cfg.Params.Address, amount)
}

func (e *Execution) snapshot() (Snapshot, error) {
	slot0 := e.pool.Slot0()
	params := e.cfg.Params
	balance0 := e.ledger.BalanceOf(params.Token0, params.Address)
	balance1 := e.ledger.BalanceOf(params.Token1, params.Address)

	// amount1 / price, applied one sqrt price at a time to stay in 256 bits
	amount1to0, err := fullmath.MulDiv(balance1, cons.Q96, &slot0.SqrtPriceX96)
	if err != nil {
		return Snapshot{}, err
	}
	amount1to0, err = fullmath.MulDiv(amount1to0, cons.Q96, &slot0.SqrtPriceX96)
	if err != nil {
		return Snapshot{}, err
	}
	value := new(ui.Int).Add(balance0, amount1to0)

	return Snapshot{
		Timestamp:    e.clock.Now(),
		Tick:         slot0.Tick,
		SqrtPriceX96: slot0.SqrtPriceX96.Dec(),
		Liquidity:    e.pool.Liquidity().Dec(),
		Balance0:     balance0.Dec(),
		Balance1:     balance1.Dec(),
		ValueIn0:     value.Dec(),
	}, nil
}
