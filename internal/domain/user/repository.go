package user

import (
	"context"
)

// Repository defines storage operations for users.
type Repository interface {
	// Upsert inserts or updates a user row.
	Upsert(ctx context.Context, rec *Record) error

	// Get returns a user record by username, nil if absent.
	Get(ctx context.Context, username string) (*Record, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int64, error)
}
