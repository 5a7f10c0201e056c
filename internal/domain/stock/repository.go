package stock

import (
	"context"
)

// Repository defines storage operations for stock levels.
type Repository interface {
	// Upsert writes the absolute level for a product.
	Upsert(ctx context.Context, l *Level) error

	// Get returns the level for a product, nil if absent.
	Get(ctx context.Context, productID string) (*Level, error)

	// List returns all levels ordered by product id.
	List(ctx context.Context) ([]Level, error)
}
