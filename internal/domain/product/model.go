// Package product provides the product catalog.
package product

import (
	"context"
	"time"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/types"
)

// EntityType is the versioned-store entity type for products.
const EntityType = "product"

// Product represents one catalog item. Inactive products cannot be
// ordered or have stock adjusted locally, but replicated snapshots of
// them are still applied.
type Product struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Description *string     `db:"description" json:"description,omitempty"`
	Price       types.Money `db:"price" json:"price"`
	Active      bool        `db:"active" json:"active"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`

	Version int64 `db:"-" json:"version"`
}

// Validate checks the record before persisting.
func (p *Product) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("product name is required").
			WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("product price cannot be negative").
			WithDetail("field", "price")
	}
	return nil
}
