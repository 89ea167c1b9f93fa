package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ftchann/uniswap-core/lib/config"
	"github.com/ftchann/uniswap-core/lib/executor"
	ppool "github.com/ftchann/uniswap-core/lib/pool"
	"github.com/ftchann/uniswap-core/lib/storage"
	"github.com/ftchann/uniswap-core/lib/storage/postgres"
	"github.com/ftchann/uniswap-core/lib/tickmath"
	ent "github.com/ftchann/uniswap-core/lib/transaction"

	ui "github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "poolsim",
		Short:        "Concentrated liquidity pool simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay pool transactions from JSONL files, one pool per file",
		RunE:  runReplay,
	}

	replayCmd.Flags().StringSlice("in", nil, "input transaction JSONL files (comma-separated)")
	replayCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	replayCmd.Flags().String("report", "./data/report.jsonl", "failures and snapshots JSONL")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN, events are written there instead of --out when set")
	replayCmd.Flags().Int("batch-size", 500, "events per storage write")
	replayCmd.Flags().String("token0", "0x0000000000000000000000000000000000000001", "token0 address")
	replayCmd.Flags().String("token1", "0x0000000000000000000000000000000000000002", "token1 address")
	replayCmd.Flags().String("owner", "", "factory owner allowed to manage protocol fees")
	replayCmd.Flags().Uint32("fee", 3000, "fee in hundredths of a bip")
	replayCmd.Flags().Int("tick-spacing", 0, "tick spacing, 0 uses the fee tier default")
	replayCmd.Flags().String("sqrt-price-x96", "", "initialize every pool at this price before replaying")
	replayCmd.Flags().Uint16("cardinality", 1, "observation cardinality requested after initialization")
	replayCmd.Flags().Uint32("snapshot-interval", 0, "seconds between pool snapshots, 0 disables them")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Print the tick of a sqrt price",
		RunE:  runTick,
	}
	tickCmd.Flags().String("sqrt-price", "", "sqrt price as a Q64.96 decimal")
	root.AddCommand(tickCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Print the sqrt price of a tick",
		RunE:  runPrice,
	}
	priceCmd.Flags().Int("tick", 0, "tick")
	root.AddCommand(priceCmd)

	return root
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.In) == 0 {
		return fmt.Errorf("input is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store   storage.Storage
		pgStore *postgres.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pgStore
	} else {
		store = storage.NewJsonlStorage(cfg.Out)
	}

	report, err := newJSONLWriter(cfg.Report, false)
	if err != nil {
		return err
	}
	defer report.Close()

	logger.Info("replay start",
		zap.Strings("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("report", cfg.Report),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint32("fee", cfg.Fee),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint32("snapshot_interval", cfg.SnapshotInterval),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, in := range cfg.In {
		in := in
		group.Go(func() error {
			return replayFile(groupCtx, in, cfg, store, pgStore, report, logger)
		})
	}
	return group.Wait()
}

type reportRecord struct {
	Stream   string             `json:"stream"`
	Pool     string             `json:"pool"`
	Failure  *executor.Failure  `json:"failure,omitempty"`
	Snapshot *executor.Snapshot `json:"snapshot,omitempty"`
}

func replayFile(
	ctx context.Context,
	path string,
	cfg config.Config,
	store storage.Storage,
	pgStore *postgres.Store,
	report *jsonlWriter,
	logger *zap.Logger,
) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	transactions, err := ent.Read(file)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	stream := filepath.Base(path)
	address := executor.PoolAddress(cfg.Token0, cfg.Token1, cfg.Fee, stream)
	logger = logger.With(zap.String("stream", stream))

	exec, err := executor.CreateExecution(executor.Config{
		Params: ppool.Params{
			Address:     address,
			Token0:      cfg.Token0,
			Token1:      cfg.Token1,
			Fee:         cfg.Fee,
			TickSpacing: cfg.TickSpacing,
		},
		Owner:            cfg.Owner,
		SqrtPriceX96:     cfg.SqrtPriceX96,
		Cardinality:      cfg.Cardinality,
		BatchSize:        cfg.BatchSize,
		SnapshotInterval: cfg.SnapshotInterval,
	}, store, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if pgStore != nil {
		params := exec.Pool().Params()
		if err := pgStore.UpsertPool(ctx, postgres.Pool{
			Address:     address.Hex(),
			Token0:      params.Token0.Hex(),
			Token1:      params.Token1.Hex(),
			Fee:         params.Fee,
			TickSpacing: params.TickSpacing,
		}); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
	}

	result, err := exec.Run(ctx, transactions)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for i := range result.Failures {
		if err := report.Write(reportRecord{Stream: stream, Pool: address.Hex(), Failure: &result.Failures[i]}); err != nil {
			return err
		}
	}
	for i := range result.Snapshots {
		if err := report.Write(reportRecord{Stream: stream, Pool: address.Hex(), Snapshot: &result.Snapshots[i]}); err != nil {
			return err
		}
	}

	slot0 := exec.Pool().Slot0()
	logger.Info("replay done",
		zap.String("pool", address.Hex()),
		zap.Int("transactions", len(transactions)),
		zap.Int("applied", result.Applied),
		zap.Int("failed", len(result.Failures)),
		zap.Int("events", result.Events),
		zap.Int("tick", slot0.Tick),
		zap.String("sqrt_price_x96", slot0.SqrtPriceX96.Dec()),
		zap.String("liquidity", exec.Pool().Liquidity().Dec()),
	)
	return nil
}

func runTick(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("sqrt-price")
	sqrtPriceX96, err := ui.FromDecimal(raw)
	if err != nil {
		return fmt.Errorf("sqrt-price %q: %w", raw, err)
	}
	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tick)
	return nil
}

func runPrice(cmd *cobra.Command, _ []string) error {
	tick, _ := cmd.Flags().GetInt("tick")
	sqrtPriceX96, err := tickmath.GetSqrtRatioAtTick(tick)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sqrtPriceX96.Dec())
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
