package product

import (
	"context"
)

// Repository defines storage operations for the product catalog.
type Repository interface {
	// Upsert inserts or updates a product row, preserving created_at on
	// conflict.
	Upsert(ctx context.Context, p *Product) error

	// Get returns a product by id, nil if absent.
	Get(ctx context.Context, id string) (*Product, error)

	// List returns all products ordered by name.
	List(ctx context.Context) ([]Product, error)

	// Count returns the number of products.
	Count(ctx context.Context) (int64, error)
}
