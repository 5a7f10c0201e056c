package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/locking"
	"acmesync/internal/domain/product"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

// Service provides stock mutations. The lock table guards the
// check-then-act window between reading a quantity and writing the
// decrement; the version rule handles everything arriving from peers.
type Service struct {
	repo     Repository
	products *product.Service
	locks    *locking.Table
	txm      *sqlite.TxManager
	versions *sqlite.VersionedStore
	events   *replication.EventLog
	audit    *sqlite.AuditLog
	registry *replication.PeerRegistry
	node     string
}

// NewService creates the stock service.
func NewService(
	repo Repository,
	products *product.Service,
	locks *locking.Table,
	txm *sqlite.TxManager,
	versions *sqlite.VersionedStore,
	events *replication.EventLog,
	audit *sqlite.AuditLog,
	registry *replication.PeerRegistry,
	node string,
) *Service {
	return &Service{
		repo:     repo,
		products: products,
		locks:    locks,
		txm:      txm,
		versions: versions,
		events:   events,
		audit:    audit,
		registry: registry,
		node:     node,
	}
}

// Adjust applies a signed delta to a product's stock under the product
// lock, in one transaction, and enqueues a stock_update event.
func (s *Service) Adjust(ctx context.Context, productID string, delta int64, reference string) (*Level, error) {
	var out *Level
	err := s.locks.WithLock(productID, func() error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			p, err := s.products.GetActive(ctx, productID)
			if err != nil {
				return err
			}
			lvl, err := s.ApplyDeltaLocked(ctx, p, delta, reference)
			if err != nil {
				return err
			}
			out = lvl
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.registry.Wake()
	logger.Info(ctx, "stock adjusted",
		"product_id", productID,
		"delta", delta,
		"quantity", out.Quantity,
		"version", out.Version,
	)
	return out, nil
}

// ApplyDeltaLocked performs the versioned decrement/increment and records
// the stock_update event. The caller must hold the product lock and a
// transaction; order creation uses this directly so its decrements commit
// with the order row.
func (s *Service) ApplyDeltaLocked(ctx context.Context, p *product.Product, delta int64, reference string) (*Level, error) {
	current, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	var quantity int64
	if current != nil {
		quantity = current.Quantity
	}

	next := quantity + delta
	if next < 0 {
		return nil, apperror.NewInsufficientStock(p.ID, -delta, quantity)
	}

	ref := sqlite.EntityRef{Type: EntityType, ID: p.ID}
	var lvl *Level
	_, err = s.versions.Apply(ctx, ref, 0, s.node, func(ctx context.Context, version int64) error {
		lvl = &Level{
			ProductID: p.ID,
			Quantity:  next,
			Origin:    s.node,
			Reference: &reference,
			UpdatedAt: time.Now().UTC(),
			Version:   version,
		}
		if err := s.repo.Upsert(ctx, lvl); err != nil {
			return err
		}
		if _, err := s.events.Record(ctx, replication.EventStockUpdate, ref, version, Snapshot{
			Level:   *lvl,
			Product: p,
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityType, p.ID, sqlite.AuditActionStockAdjust, lvl)
	})
	if err != nil {
		return nil, err
	}
	return lvl, nil
}

// Get returns the level for a product, zero if the product exists but has
// no stock row yet.
func (s *Service) Get(ctx context.Context, productID string) (*Level, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	lvl, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if lvl == nil {
		return &Level{ProductID: productID, Origin: s.node, UpdatedAt: time.Now().UTC()}, nil
	}
	version, err := s.versions.CurrentVersion(ctx, sqlite.EntityRef{Type: EntityType, ID: productID})
	if err != nil {
		return nil, err
	}
	lvl.Version = version
	return lvl, nil
}

// List returns all stock levels.
func (s *Service) List(ctx context.Context) ([]Level, error) {
	return s.repo.List(ctx)
}

// ApplyRemote implements replication.Applier for stock_update events.
// The embedded product snapshot is applied first so the stock row always
// has its product; the level itself is absolute state, applied under the
// version rule.
//
// No product lock here: the receiver already runs the applier inside the
// single-writer transaction, which serializes this apply against any local
// mutation, and the version rule discards stale levels. Taking the lock
// table inside that transaction would invert the lock/transaction order
// the local paths use (lock first, then transaction) and deadlock against
// a local Adjust waiting on the write connection.
func (s *Service) ApplyRemote(ctx context.Context, ev replication.Event) (sqlite.Outcome, error) {
	var snap Snapshot
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		return sqlite.Outcome{}, fmt.Errorf("decode stock payload: %w", err)
	}
	if snap.Level.ProductID == "" {
		return sqlite.Outcome{}, apperror.NewValidation("stock payload missing product id")
	}

	var out sqlite.Outcome
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if snap.Product != nil {
			if _, err := s.products.ApplySnapshot(ctx, *snap.Product, ev.OriginNode); err != nil {
				return err
			}
		}
		ref := sqlite.EntityRef{Type: EntityType, ID: snap.Level.ProductID}
		outcome, err := s.versions.Apply(ctx, ref, ev.Version, ev.OriginNode, func(ctx context.Context, version int64) error {
			lvl := snap.Level
			return s.repo.Upsert(ctx, &lvl)
		})
		if err != nil {
			return err
		}
		out = outcome
		return nil
	})
	if err != nil {
		return sqlite.Outcome{}, err
	}
	return out, nil
}
