package executor

import (
	"context"
	"errors"
	"testing"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/events"
	ppool "github.com/ftchann/uniswap-core/lib/pool"
	"github.com/ftchann/uniswap-core/lib/storage"
	ent "github.com/ftchann/uniswap-core/lib/transaction"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	token0 = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	token1 = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	owner  = common.HexToAddress("0x1f98431c8ad98523631ae4a59f267346ea31f984")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	e18 = ui.NewInt(1_000_000_000_000_000_000)
)

func newExecution(t *testing.T, cfg Config, store storage.Storage) *Execution {
	t.Helper()
	cfg.Params = ppool.Params{
		Address: PoolAddress(token0, token1, 3000, t.Name()),
		Token0:  token0,
		Token1:  token1,
		Fee:     3000,
	}
	cfg.Owner = owner
	e, err := CreateExecution(cfg, store, nil)
	require.NoError(t, err)
	return e
}

func tx(typ string, timestamp uint32, sender common.Address) ent.Transaction {
	return ent.Transaction{
		Type:         typ,
		Timestamp:    timestamp,
		Sender:       sender,
		Amount:       new(ui.Int),
		Amount0:      new(ui.Int),
		Amount1:      new(ui.Int),
		SqrtPriceX96: new(ui.Int),
	}
}

func TestRun(t *testing.T) {
	store := &storage.Memory{}
	e := newExecution(t, Config{BatchSize: 2, SnapshotInterval: 1}, store)

	initialize := tx(ent.TypeInitialize, 100, alice)
	initialize.SqrtPriceX96 = cons.Q96.Clone()

	wide := tx(ent.TypeMint, 101, alice)
	wide.TickLower, wide.TickUpper = -600, 600
	wide.Amount = e18.Clone()

	fromAmounts := tx(ent.TypeMint, 101, alice)
	fromAmounts.TickLower, fromAmounts.TickUpper = -60, 60
	fromAmounts.Amount0 = ui.NewInt(2995354955910781)
	fromAmounts.Amount1 = ui.NewInt(2995354955910781)

	swap := tx(ent.TypeSwap, 102, alice)
	swap.ZeroForOne = true
	swap.Amount = ui.NewInt(1_000_000_000_000_000)

	badBurn := tx(ent.TypeBurn, 102, alice)
	badBurn.ID = "bad-burn"
	badBurn.TickLower, badBurn.TickUpper = 60, -60

	notOwner := tx(ent.TypeSetFeeProtocol, 102, bob)
	notOwner.FeeProtocol0, notOwner.FeeProtocol1 = 4, 4

	burn := tx(ent.TypeBurn, 103, alice)
	burn.TickLower, burn.TickUpper = -600, 600
	burn.Amount = e18.Clone()

	collect := tx(ent.TypeCollect, 104, alice)
	collect.TickLower, collect.TickUpper = -600, 600

	result, err := e.Run(context.Background(), []ent.Transaction{
		initialize, wide, fromAmounts, swap, badBurn, notOwner, burn, collect,
	})
	require.NoError(t, err)
	require.Equal(t, 6, result.Applied)
	require.Equal(t, 6, result.Events)

	require.Len(t, result.Failures, 2)
	require.Equal(t, 4, result.Failures[0].Index)
	require.Equal(t, "bad-burn", result.Failures[0].ID)
	require.Contains(t, result.Failures[0].Error, "TLU")
	require.Equal(t, 5, result.Failures[1].Index)
	require.Equal(t, ent.TypeSetFeeProtocol, result.Failures[1].Type)

	stored := store.Events()
	require.Len(t, stored, 6)
	names := make([]string, len(stored))
	for i, event := range stored {
		names[i] = event.Name
		require.Equal(t, uint64(i+1), event.Seq)
	}
	require.Equal(t, []string{
		events.NameInitialize, events.NameMint, events.NameMint, events.NameSwap, events.NameBurn, events.NameCollect,
	}, names)
	require.Equal(t, "1000000000000000", stored[3].Data.(events.SwapData).Amount0)

	pool := e.Pool()
	info := pool.Position(alice, -60, 60)
	require.Equal(t, "1000000000000000020", info.Liquidity.Dec())
	info = pool.Position(alice, -600, 600)
	require.True(t, info.Liquidity.IsZero())
	require.True(t, info.TokensOwed0.IsZero())
	require.True(t, info.TokensOwed1.IsZero())
	slot0 := pool.Slot0()
	require.Less(t, slot0.Tick, 0)

	// the collected range comes back to alice
	require.False(t, e.Ledger().BalanceOf(token0, alice).IsZero())
	require.False(t, e.Ledger().BalanceOf(token1, alice).IsZero())

	require.Len(t, result.Snapshots, 5)
	first := result.Snapshots[0]
	require.Equal(t, uint32(100), first.Timestamp)
	require.Equal(t, "0", first.ValueIn0)
	last := result.Snapshots[4]
	require.Equal(t, uint32(104), last.Timestamp)
	require.Equal(t, slot0.Tick, last.Tick)
	require.NotEqual(t, "0", last.ValueIn0)
}

func TestRunInitializesFromConfig(t *testing.T) {
	store := &storage.Memory{}
	e := newExecution(t, Config{SqrtPriceX96: cons.Q96.Clone(), Cardinality: 4}, store)

	grow := tx(ent.TypeIncreaseObservationCardinalityNext, 50, alice)
	grow.Cardinality = 2

	result, err := e.Run(context.Background(), []ent.Transaction{grow})
	require.NoError(t, err)
	require.Equal(t, 1, result.Applied)

	// lowering the cardinality emits nothing
	stored := store.Events()
	require.Len(t, stored, 2)
	require.Equal(t, events.NameInitialize, stored[0].Name)
	require.Equal(t, uint32(50), stored[0].Timestamp)
	require.Equal(t, events.NameIncreaseObservationCardinalityNext, stored[1].Name)
	require.Equal(t, uint16(4), e.Pool().Slot0().ObservationCardinalityNext)
}

func TestRunUnknownType(t *testing.T) {
	e := newExecution(t, Config{SqrtPriceX96: cons.Q96.Clone()}, &storage.Memory{})

	result, err := e.Run(context.Background(), []ent.Transaction{tx("Donate", 1, alice)})
	require.NoError(t, err)
	require.Zero(t, result.Applied)
	require.Len(t, result.Failures, 1)
	require.Contains(t, result.Failures[0].Error, ent.ErrUnknownType.Error())
}

func TestRunFlashAndProtocolFees(t *testing.T) {
	store := &storage.Memory{}
	e := newExecution(t, Config{SqrtPriceX96: cons.Q96.Clone()}, store)

	mint := tx(ent.TypeMint, 1, alice)
	mint.TickLower, mint.TickUpper = -600, 600
	mint.Amount = e18.Clone()

	setFee := tx(ent.TypeSetFeeProtocol, 2, owner)
	setFee.FeeProtocol0, setFee.FeeProtocol1 = 4, 4

	flash := tx(ent.TypeFlash, 3, bob)
	flash.Recipient = alice
	flash.Amount0 = ui.NewInt(1_000_000_000_000_000)

	collect := tx(ent.TypeCollectProtocol, 4, owner)

	result, err := e.Run(context.Background(), []ent.Transaction{mint, setFee, flash, collect})
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	// fee 3000000000000, a quarter of it to the protocol
	require.Equal(t, "750000000000", e.Ledger().BalanceOf(token0, owner).Dec())
	// bob repays principal and fee, alice keeps the loan
	require.Equal(t, "1000000000000000", e.Ledger().BalanceOf(token0, alice).Dec())
	require.True(t, e.Ledger().BalanceOf(token0, bob).IsZero())

	stored := store.Events()
	require.Equal(t, events.NameFlash, stored[3].Name)
	require.Equal(t, "3000000000000", stored[3].Data.(events.FlashData).Paid0)
}

type failingStorage struct{}

var errStore = errors.New("disk full")

func (failingStorage) PutEventBatch(context.Context, []events.Event) error {
	return errStore
}

func TestRunStorageError(t *testing.T) {
	e := newExecution(t, Config{SqrtPriceX96: cons.Q96.Clone(), BatchSize: 1}, failingStorage{})

	_, err := e.Run(context.Background(), []ent.Transaction{tx(ent.TypeIncreaseObservationCardinalityNext, 1, alice)})
	require.ErrorIs(t, err, errStore)
}

func TestRunCanceled(t *testing.T) {
	e := newExecution(t, Config{}, &storage.Memory{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, []ent.Transaction{tx(ent.TypeInitialize, 1, alice)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPoolAddress(t *testing.T) {
	a := PoolAddress(token0, token1, 3000, "swaps.jsonl")
	require.Equal(t, a, PoolAddress(token0, token1, 3000, "swaps.jsonl"))
	require.NotEqual(t, a, PoolAddress(token0, token1, 500, "swaps.jsonl"))
	require.NotEqual(t, a, PoolAddress(token0, token1, 3000, "other.jsonl"))
}

func TestCreateExecutionValidation(t *testing.T) {
	_, err := CreateExecution(Config{}, nil, nil)
	require.Error(t, err)

	_, err = CreateExecution(Config{Params: ppool.Params{Fee: 1234}}, &storage.Memory{}, nil)
	require.ErrorIs(t, err, ppool.ErrInvalidParams)
}
