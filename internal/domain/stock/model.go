// Package stock provides per-product stock levels. Quantities never go
// negative; local mutations run under the product lock table, replicated
// ones under the version rule.
package stock

import (
	"time"

	"acmesync/internal/domain/product"
)

// EntityType is the versioned-store entity type for stock levels.
const EntityType = "stock"

// Level is the stock record for one product. Origin names the node that
// produced the current quantity; Reference ties a change to the order or
// adjustment that caused it.
type Level struct {
	ProductID string    `db:"product_id" json:"productId"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	Origin    string    `db:"origin" json:"origin"`
	Reference *string   `db:"reference" json:"reference,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Version int64 `db:"-" json:"version"`
}

// Snapshot is the replicated form of a stock change: the absolute level
// plus the product it belongs to, so a receiver can materialize both.
type Snapshot struct {
	Level   Level            `json:"level"`
	Product *product.Product `json:"product,omitempty"`
}
