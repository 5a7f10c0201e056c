package user

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"acmesync/internal/core/apperror"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

// UpsertInput is a local user mutation request.
type UpsertInput struct {
	Username string
	Password string
	Role     string
}

// Service provides account management and authentication.
type Service struct {
	repo     Repository
	versions *sqlite.VersionedStore
	events   *replication.EventLog
	audit    *sqlite.AuditLog
	registry *replication.PeerRegistry
	node     string
}

// NewService creates the user service.
func NewService(
	repo Repository,
	versions *sqlite.VersionedStore,
	events *replication.EventLog,
	audit *sqlite.AuditLog,
	registry *replication.PeerRegistry,
	node string,
) *Service {
	return &Service{
		repo:     repo,
		versions: versions,
		events:   events,
		audit:    audit,
		registry: registry,
		node:     node,
	}
}

// Upsert creates or updates a user locally. The password is hashed here;
// the replicated snapshot carries only the hash.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*User, error) {
	if in.Username == "" {
		return nil, apperror.NewValidation("username is required").
			WithDetail("field", "username")
	}
	if len(in.Password) < 6 {
		return nil, apperror.NewValidation("password must be at least 6 characters").
			WithDetail("field", "password")
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	if err := ValidateRole(ctx, in.Role); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := &Record{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),
	}

	ref := sqlite.EntityRef{Type: EntityType, ID: rec.Username}
	var version int64
	_, err = s.versions.Apply(ctx, ref, 0, s.node, func(ctx context.Context, v int64) error {
		if err := s.repo.Upsert(ctx, rec); err != nil {
			return err
		}
		version = v
		snap := Snapshot{
			Username:     rec.Username,
			PasswordHash: rec.PasswordHash,
			Role:         rec.Role,
			CreatedAt:    rec.CreatedAt,
			Version:      v,
		}
		if _, err := s.events.Record(ctx, replication.EventUserUpsert, ref, v, snap); err != nil {
			return err
		}
		// The audit entry records the mutation, never the hash.
		return s.audit.Record(ctx, EntityType, rec.Username, sqlite.AuditActionUpsert, User{
			Username:  rec.Username,
			Role:      rec.Role,
			CreatedAt: rec.CreatedAt,
			Version:   v,
		})
	})
	if err != nil {
		return nil, err
	}

	s.registry.Wake()
	logger.Info(ctx, "user upserted", "username", rec.Username, "role", rec.Role)
	return &User{Username: rec.Username, Role: rec.Role, CreatedAt: rec.CreatedAt, Version: version}, nil
}

// Authenticate verifies credentials and returns the account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	rec, err := s.repo.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.NewUnauthorized("invalid credentials")
	}
	return &User{Username: rec.Username, Role: rec.Role, CreatedAt: rec.CreatedAt}, nil
}

// EnsureAdmin seeds the bootstrap admin account if it does not exist.
// Runs at startup; does not replicate an unchanged account.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	rec, err := s.repo.Get(ctx, username)
	if err != nil {
		return err
	}
	if rec != nil {
		return nil
	}
	_, err = s.Upsert(ctx, UpsertInput{Username: username, Password: password, Role: RoleAdmin})
	return err
}

// ApplyRemote implements replication.Applier for user_upsert events.
func (s *Service) ApplyRemote(ctx context.Context, ev replication.Event) (sqlite.Outcome, error) {
	var snap Snapshot
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		return sqlite.Outcome{}, fmt.Errorf("decode user payload: %w", err)
	}
	if snap.Username == "" || snap.PasswordHash == "" {
		return sqlite.Outcome{}, apperror.NewValidation("user payload missing username or hash")
	}

	ref := sqlite.EntityRef{Type: EntityType, ID: snap.Username}
	return s.versions.Apply(ctx, ref, snap.Version, ev.OriginNode, func(ctx context.Context, version int64) error {
		return s.repo.Upsert(ctx, &Record{
			Username:     snap.Username,
			PasswordHash: snap.PasswordHash,
			Role:         snap.Role,
			CreatedAt:    snap.CreatedAt,
		})
	})
}
