// Package catalog_repo provides SQLite implementations for the catalog
// repositories (clients, products, users).
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"acmesync/internal/domain/client"
	"acmesync/internal/infrastructure/storage/sqlite"
)

const clientsTable = "clients"

var clientColumns = []string{"id", "name", "document", "email", "created_at", "updated_at"}

// ClientRepo implements client.Repository.
type ClientRepo struct {
	txm     *sqlite.TxManager
	builder squirrel.StatementBuilderType
}

// NewClientRepo creates a new client repository.
func NewClientRepo(txm *sqlite.TxManager) *ClientRepo {
	return &ClientRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Upsert inserts or updates a client. created_at is kept from the first
// insert so replayed snapshots do not rewrite history.
func (r *ClientRepo) Upsert(ctx context.Context, c *client.Client) error {
	query := `
		INSERT INTO clients (id, name, document, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			document   = excluded.document,
			email      = excluded.email,
			updated_at = excluded.updated_at`

	_, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID, c.Name, c.Document, c.Email, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert client %s: %w", c.ID, err)
	}
	return nil
}

// Get returns a client by id, nil if absent.
func (r *ClientRepo) Get(ctx context.Context, clientID string) (*client.Client, error) {
	q := r.builder.Select(clientColumns...).
		From(clientsTable).
		Where(squirrel.Eq{"id": clientID}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c client.Client
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &c, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client %s: %w", clientID, err)
	}
	return &c, nil
}

// List returns all clients ordered by name.
func (r *ClientRepo) List(ctx context.Context) ([]client.Client, error) {
	q := r.builder.Select(clientColumns...).
		From(clientsTable).
		OrderBy("name", "id")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var clients []client.Client
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &clients, query, args...); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// Count returns the number of clients.
func (r *ClientRepo) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.txm, r.builder, clientsTable)
}

// Ensure interface compliance.
var _ client.Repository = (*ClientRepo)(nil)
