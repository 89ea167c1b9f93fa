package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ftchann/uniswap-core/lib/events"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address TEXT PRIMARY KEY,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	fee INTEGER NOT NULL,
	tick_spacing INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS pool_events (
	pool_address TEXT NOT NULL,
	seq BIGINT NOT NULL,
	event_name TEXT NOT NULL,
	block_timestamp BIGINT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool_address, seq)
);
`

// Pool is the metadata row of a replayed pool.
type Pool struct {
	Address     string
	Token0      string
	Token1      string
	Fee         uint32
	TickSpacing int
}

// Store provides Postgres persistence for pool events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertPool inserts or updates pool metadata.
func (s *Store) UpsertPool(ctx context.Context, pool Pool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (pool_address, token0, token1, fee, tick_spacing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (pool_address)
		DO UPDATE SET
			token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			fee = EXCLUDED.fee,
			tick_spacing = EXCLUDED.tick_spacing,
			updated_at = now()
	`,
		pool.Address,
		pool.Token0,
		pool.Token1,
		int64(pool.Fee),
		pool.TickSpacing,
	)
	return err
}

// PutEventBatch inserts events. Events already stored for the same pool and
// sequence number are left untouched, so a replay can be rerun.
func (s *Store) PutEventBatch(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}
	queued := &pgx.Batch{}
	for _, e := range batch {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal %s data: %w", e.Name, err)
		}
		queued.Queue(`
			INSERT INTO pool_events (pool_address, seq, event_name, block_timestamp, data, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (pool_address, seq) DO NOTHING
		`,
			e.Pool,
			int64(e.Seq),
			e.Name,
			int64(e.Timestamp),
			data,
		)
	}

	br := s.pool.SendBatch(ctx, queued)
	defer br.Close()

	for range batch {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
