// Package order provides order creation: the one multi-table transaction
// in the system (order row plus one stock decrement per item).
package order

import (
	"context"
	"time"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/types"
	"acmesync/internal/domain/client"
	"acmesync/internal/domain/product"
)

// EntityType is the versioned-store entity type for orders.
const EntityType = "order"

// StatusConfirmed is the only order status; an order exists once its
// stock decrements committed.
const StatusConfirmed = "confirmed"

// Item is one order line.
type Item struct {
	ProductID   string `db:"product_id" json:"productId"`
	Quantity    int64  `db:"quantity" json:"quantity"`
	ProductName string `db:"product_name" json:"productName,omitempty"`
}

// Order represents one confirmed order with its lines.
type Order struct {
	ID         string      `db:"id" json:"id"`
	ClientID   string      `db:"client_id" json:"clientId"`
	ClientName string      `db:"client_name" json:"clientName,omitempty"`
	Status     string      `db:"status" json:"status"`
	Total      types.Money `db:"total" json:"total"`
	Origin     string      `db:"origin" json:"origin"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`

	Items   []Item `db:"-" json:"items"`
	Version int64  `db:"-" json:"version"`
}

// Snapshot is the replicated form of an order: the order itself plus the
// client and product records it references, so a receiving node can
// materialize missing rows before inserting the order. Stock decrements
// travel as separate stock_update events.
type Snapshot struct {
	Order    Order             `json:"order"`
	Client   *client.Client    `json:"client,omitempty"`
	Products []product.Product `json:"products,omitempty"`
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string
	Quantity  int64
}

// CreateInput is a local order creation request.
type CreateInput struct {
	OrderID  string
	ClientID string
	Items    []ItemInput
}

// Validate checks the request shape.
func (in *CreateInput) Validate(ctx context.Context) error {
	if in.ClientID == "" {
		return apperror.NewValidation("clientId is required").
			WithDetail("field", "clientId")
	}
	if len(in.Items) == 0 {
		return apperror.NewValidation("order requires at least one item").
			WithDetail("field", "items")
	}
	for i, item := range in.Items {
		if item.ProductID == "" {
			return apperror.NewValidation("item productId is required").
				WithDetail("item", i)
		}
		if item.Quantity <= 0 {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("item", i).
				WithDetail("quantity", item.Quantity)
		}
	}
	return nil
}
