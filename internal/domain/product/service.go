package product

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/id"
	"acmesync/internal/core/types"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

// UpsertInput is a local product mutation request.
type UpsertInput struct {
	ID          string
	Name        string
	Description *string
	Price       types.Money
	Active      *bool
}

// Service provides business logic for the product catalog.
type Service struct {
	repo     Repository
	versions *sqlite.VersionedStore
	events   *replication.EventLog
	audit    *sqlite.AuditLog
	registry *replication.PeerRegistry
	node     string
}

// NewService creates the product service.
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

// Upsert creates or updates a product locally, bumps its version, and
// enqueues a product_upsert event for every peer in the same commit.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Product, error) {
	if in.ID == "" {
		in.ID = id.NewString()
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	now := time.Now().UTC()
	p := &Product{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	ref := sqlite.EntityRef{Type: EntityType, ID: p.ID}
	_, err := s.versions.Apply(ctx, ref, 0, s.node, func(ctx context.Context, version int64) error {
		if err := s.repo.Upsert(ctx, p); err != nil {
			return err
		}
		p.Version = version
		if _, err := s.events.Record(ctx, replication.EventProductUpsert, ref, version, p); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityType, p.ID, sqlite.AuditActionUpsert, p)
	})
	if err != nil {
		return nil, err
	}

	s.registry.Wake()
	logger.Info(ctx, "product upserted", "product_id", p.ID, "version", p.Version)
	return p, nil
}

// Get returns a product with its current version.
func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNotFound("product", productID)
	}
	version, err := s.versions.CurrentVersion(ctx, sqlite.EntityRef{Type: EntityType, ID: productID})
	if err != nil {
		return nil, err
	}
	p.Version = version
	return p, nil
}

// GetActive returns an active product or fails.
func (s *Service) GetActive(ctx context.Context, productID string) (*Product, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperror.NewProductInactive(productID)
	}
	return p, nil
}

// List returns all products.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Count returns the number of products.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// ApplySnapshot applies a replicated product snapshot at its own version.
func (s *Service) ApplySnapshot(ctx context.Context, snap Product, origin string) (sqlite.Outcome, error) {
	ref := sqlite.EntityRef{Type: EntityType, ID: snap.ID}
	return s.versions.Apply(ctx, ref, snap.Version, origin, func(ctx context.Context, version int64) error {
		return s.repo.Upsert(ctx, &snap)
	})
}

// ApplyRemote implements replication.Applier for product_upsert events.
func (s *Service) ApplyRemote(ctx context.Context, ev replication.Event) (sqlite.Outcome, error) {
	var snap Product
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		return sqlite.Outcome{}, fmt.Errorf("decode product payload: %w", err)
	}
	if snap.ID == "" {
		return sqlite.Outcome{}, apperror.NewValidation("product payload missing id")
	}
	return s.ApplySnapshot(ctx, snap, ev.OriginNode)
}
