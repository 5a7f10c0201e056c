package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/id"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

// UpsertInput is a local client mutation request.
type UpsertInput struct {
	ID       string
	Name     string
	Document *string
	Email    *string
}

// Service provides business logic for the client catalog. Every write,
// local or replicated, funnels through the versioned store's apply rule.
type Service struct {
	repo     Repository
	versions *sqlite.VersionedStore
	events   *replication.EventLog
	audit    *sqlite.AuditLog
	registry *replication.PeerRegistry
	node     string
}

// NewService creates the client service.
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

// Upsert creates or updates a client locally, bumps its version, and
// enqueues a client_upsert event for every peer in the same commit.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Client, error) {
	if in.ID == "" {
		in.ID = id.NewString()
	}

	now := time.Now().UTC()
	c := &Client{
		ID:        in.ID,
		Name:      in.Name,
		Document:  in.Document,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	ref := sqlite.EntityRef{Type: EntityType, ID: c.ID}
	_, err := s.versions.Apply(ctx, ref, 0, s.node, func(ctx context.Context, version int64) error {
		if err := s.repo.Upsert(ctx, c); err != nil {
			return err
		}
		c.Version = version
		if _, err := s.events.Record(ctx, replication.EventClientUpsert, ref, version, c); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityType, c.ID, sqlite.AuditActionUpsert, c)
	})
	if err != nil {
		return nil, err
	}

	s.registry.Wake()
	logger.Info(ctx, "client upserted", "client_id", c.ID, "version", c.Version)
	return c, nil
}

// Get returns a client with its current version.
func (s *Service) Get(ctx context.Context, clientID string) (*Client, error) {
	c, err := s.repo.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.NewNotFound("client", clientID)
	}
	version, err := s.versions.CurrentVersion(ctx, sqlite.EntityRef{Type: EntityType, ID: clientID})
	if err != nil {
		return nil, err
	}
	c.Version = version
	return c, nil
}

// List returns all clients.
func (s *Service) List(ctx context.Context) ([]Client, error) {
	return s.repo.List(ctx)
}

// Count returns the number of clients.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// ApplySnapshot applies a replicated client snapshot at its own version.
// Stale snapshots are skipped, not errors.
func (s *Service) ApplySnapshot(ctx context.Context, snap Client, origin string) (sqlite.Outcome, error) {
	ref := sqlite.EntityRef{Type: EntityType, ID: snap.ID}
	return s.versions.Apply(ctx, ref, snap.Version, origin, func(ctx context.Context, version int64) error {
		return s.repo.Upsert(ctx, &snap)
	})
}

// ApplyRemote implements replication.Applier for client_upsert events.
func (s *Service) ApplyRemote(ctx context.Context, ev replication.Event) (sqlite.Outcome, error) {
	var snap Client
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		return sqlite.Outcome{}, fmt.Errorf("decode client payload: %w", err)
	}
	if snap.ID == "" {
		return sqlite.Outcome{}, apperror.NewValidation("client payload missing id")
	}
	return s.ApplySnapshot(ctx, snap, ev.OriginNode)
}
