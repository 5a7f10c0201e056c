package dto

import (
	"acmesync/internal/domain/order"
)

// OrderItemRequest is one requested order line.
type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest is the request body for POST /orders.
type CreateOrderRequest struct {
	ID       string             `json:"id"`
	ClientID string             `json:"clientId" binding:"required"`
	Items    []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToInput converts the DTO to a service input.
func (r *CreateOrderRequest) ToInput() order.CreateInput {
	items := make([]order.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	return order.CreateInput{
		OrderID:  r.ID,
		ClientID: r.ClientID,
		Items:    items,
	}
}

// --- Stock ---

// AdjustStockRequest is the request body for POST /stock/:productId/adjust.
// Delta is signed; receipts are positive, issues negative.
type AdjustStockRequest struct {
	Delta     int64  `json:"delta" binding:"required"`
	Reference string `json:"reference"`
}
