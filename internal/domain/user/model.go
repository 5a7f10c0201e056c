// Package user provides node users, replicated with their password
// hashes so any node can authenticate any user.
package user

import (
	"context"
	"time"

	"acmesync/internal/core/apperror"
)

// EntityType is the versioned-store entity type for users.
const EntityType = "user"

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents one account. The password hash never leaves the
// storage and replication layers.
type User struct {
	Username  string    `db:"username" json:"username"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	Version int64 `db:"-" json:"version"`
}

// Record is the stored form including the bcrypt hash.
type Record struct {
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// Snapshot is the replicated form of a user. It carries the bcrypt hash,
// never the plaintext password.
type Snapshot struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int64     `json:"version"`
}

// ValidateRole checks a role value.
func ValidateRole(ctx context.Context, role string) error {
	switch role {
	case RoleAdmin, RoleUser:
		return nil
	}
	return apperror.NewValidation("invalid role").
		WithDetail("field", "role").
		WithDetail("value", role)
}
