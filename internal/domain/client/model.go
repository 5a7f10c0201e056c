// Package client provides the client catalog: the customers orders are
// created for.
package client

import (
	"context"
	"regexp"
	"time"

	"acmesync/internal/core/apperror"
)

// EntityType is the versioned-store entity type for clients.
const EntityType = "client"

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Client represents one customer record. Version reflects the entity
// version under which the record was last written; replicated snapshots
// carry it so receivers can apply the version rule.
type Client struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Document  *string   `db:"document" json:"document,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Version int64 `db:"-" json:"version"`
}

// Validate checks the record before persisting.
func (c *Client) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("client name is required").
			WithDetail("field", "name")
	}
	if c.Email != nil && *c.Email != "" && !emailRE.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email")
	}
	return nil
}
