package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"acmesync/internal/domain/product"
	"acmesync/internal/infrastructure/storage/sqlite"
)

const productsTable = "products"

var productColumns = []string{"id", "name", "description", "price", "active", "created_at", "updated_at"}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txm     *sqlite.TxManager
	builder squirrel.StatementBuilderType
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *sqlite.TxManager) *ProductRepo {
	return &ProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Upsert inserts or updates a product, preserving created_at on conflict.
func (r *ProductRepo) Upsert(ctx context.Context, p *product.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			price       = excluded.price,
			active      = excluded.active,
			updated_at  = excluded.updated_at`

	_, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price.String(), p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// Get returns a product by id, nil if absent.
func (r *ProductRepo) Get(ctx context.Context, productID string) (*product.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &p, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return &p, nil
}

// List returns all products ordered by name.
func (r *ProductRepo) List(ctx context.Context) ([]product.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		OrderBy("name", "id")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var products []product.Product
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &products, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Count returns the number of products.
func (r *ProductRepo) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.txm, r.builder, productsTable)
}

// Ensure interface compliance.
var _ product.Repository = (*ProductRepo)(nil)
