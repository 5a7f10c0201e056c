package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"acmesync/internal/domain/user"
	"acmesync/internal/infrastructure/storage/sqlite"
)

const usersTable = "users"

var userColumns = []string{"username", "password_hash", "role", "created_at"}

// UserRepo implements user.Repository.
type UserRepo struct {
	txm     *sqlite.TxManager
	builder squirrel.StatementBuilderType
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *sqlite.TxManager) *UserRepo {
	return &UserRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Upsert inserts or updates a user record.
func (r *UserRepo) Upsert(ctx context.Context, rec *user.Record) error {
	query := `
		INSERT INTO users (username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash,
			role          = excluded.role`

	_, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query,
		rec.Username, rec.PasswordHash, rec.Role, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", rec.Username, err)
	}
	return nil
}

// Get returns a user record by username, nil if absent.
func (r *UserRepo) Get(ctx context.Context, username string) (*user.Record, error) {
	q := r.builder.Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"username": username}).
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec user.Record
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &rec, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &rec, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.txm, r.builder, usersTable)
}

// Ensure interface compliance.
var _ user.Repository = (*UserRepo)(nil)
