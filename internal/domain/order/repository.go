package order

import (
	"context"
)

// Repository defines storage operations for orders.
type Repository interface {
	// Upsert writes the order row and replaces its items. Replay-safe:
	// applying the same order twice leaves one copy of the items.
	Upsert(ctx context.Context, o *Order) error

	// Get returns an order with items and client name, nil if absent.
	Get(ctx context.Context, id string) (*Order, error)

	// Count returns the number of orders.
	Count(ctx context.Context) (int64, error)
}
