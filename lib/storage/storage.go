// Package storage persists committed pool events.
package storage

import (
	"context"

	"github.com/ftchann/uniswap-core/lib/events"
)

// Storage defines a sink for event batches.
type Storage interface {
	PutEventBatch(ctx context.Context, batch []events.Event) error
}
