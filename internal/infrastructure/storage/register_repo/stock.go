// Package register_repo provides the SQLite implementation for the stock
// level register.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"acmesync/internal/domain/stock"
	"acmesync/internal/infrastructure/storage/sqlite"
)

const stockLevelsTable = "stock_levels"

var stockColumns = []string{"product_id", "quantity", "origin", "reference", "updated_at"}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *sqlite.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *sqlite.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Upsert writes the absolute level for a product.
func (r *StockRepo) Upsert(ctx context.Context, l *stock.Level) error {
	query := `
		INSERT INTO stock_levels (product_id, quantity, origin, reference, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			quantity   = excluded.quantity,
			origin     = excluded.origin,
			reference  = excluded.reference,
			updated_at = excluded.updated_at`

	_, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query,
		l.ProductID, l.Quantity, l.Origin, l.Reference, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert stock level %s: %w", l.ProductID, err)
	}
	return nil
}

// Get returns the level for a product, nil if absent.
func (r *StockRepo) Get(ctx context.Context, productID string) (*stock.Level, error) {
	q := r.builder.Select(stockColumns...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"product_id": productID}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l stock.Level
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &l, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock level %s: %w", productID, err)
	}
	return &l, nil
}

// List returns all levels ordered by product id.
func (r *StockRepo) List(ctx context.Context) ([]stock.Level, error) {
	q := r.builder.Select(stockColumns...).
		From(stockLevelsTable).
		OrderBy("product_id")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []stock.Level
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &levels, query, args...); err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}
	return levels, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
