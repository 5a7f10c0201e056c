// Package document_repo provides SQLite implementations for the document
// repositories (orders).
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"acmesync/internal/domain/order"
	"acmesync/internal/infrastructure/storage/sqlite"
)

const (
	ordersTable     = "orders"
	orderItemsTable = "order_items"
)

// OrderRepo implements order.Repository.
type OrderRepo struct {
	txm     *sqlite.TxManager
	builder squirrel.StatementBuilderType
}

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txm *sqlite.TxManager) *OrderRepo {
	return &OrderRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Upsert writes the order row and replaces its items, so a replayed
// order_created event leaves exactly one copy of each line.
func (r *OrderRepo) Upsert(ctx context.Context, o *order.Order) error {
	querier := r.txm.GetQuerier(ctx)

	query := `
		INSERT INTO orders (id, client_id, status, total, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			status    = excluded.status,
			total     = excluded.total,
			origin    = excluded.origin`

	if _, err := querier.ExecContext(ctx, query,
		o.ID, o.ClientID, o.Status, o.Total.String(), o.Origin, o.CreatedAt); err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}

	if _, err := querier.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = ?", o.ID); err != nil {
		return fmt.Errorf("clear order items %s: %w", o.ID, err)
	}

	if len(o.Items) == 0 {
		return nil
	}

	q := r.builder.Insert(orderItemsTable).Columns("order_id", "product_id", "quantity")
	for _, item := range o.Items {
		q = q.Values(o.ID, item.ProductID, item.Quantity)
	}

	insert, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build items insert: %w", err)
	}
	if _, err := querier.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("insert order items %s: %w", o.ID, err)
	}
	return nil
}

// Get returns an order with its items and client name, nil if absent.
func (r *OrderRepo) Get(ctx context.Context, orderID string) (*order.Order, error) {
	querier := r.txm.GetQuerier(ctx)

	query := `
		SELECT o.id, o.client_id, c.name AS client_name,
		       o.status, o.total, o.origin, o.created_at
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE o.id = ?
		LIMIT 1`

	var o order.Order
	if err := sqlscan.Get(ctx, querier, &o, query, orderID); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	itemsQuery := `
		SELECT oi.product_id, oi.quantity, p.name AS product_name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id`

	if err := sqlscan.Select(ctx, querier, &o.Items, itemsQuery, orderID); err != nil {
		return nil, fmt.Errorf("get order items %s: %w", orderID, err)
	}
	return &o, nil
}

// Count returns the number of orders.
func (r *OrderRepo) Count(ctx context.Context) (int64, error) {
	q := r.builder.Select("COUNT(1)").From(ordersTable)

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &n, query, args...); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Ensure interface compliance.
var _ order.Repository = (*OrderRepo)(nil)
