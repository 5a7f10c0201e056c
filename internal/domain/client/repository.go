package client

import (
	"context"
)

// Repository defines storage operations for the client catalog.
type Repository interface {
	// Upsert inserts or updates a client row, preserving created_at on
	// conflict.
	Upsert(ctx context.Context, c *Client) error

	// Get returns a client by id, nil if absent.
	Get(ctx context.Context, id string) (*Client, error)

	// List returns all clients ordered by name.
	List(ctx context.Context) ([]Client, error)

	// Count returns the number of clients.
	Count(ctx context.Context) (int64, error)
}
