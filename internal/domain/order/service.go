package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/id"
	"acmesync/internal/core/locking"
	"acmesync/internal/core/types"
	"acmesync/internal/domain/client"
	"acmesync/internal/domain/product"
	"acmesync/internal/domain/stock"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

// Service provides order creation. An order is the only mutation touching
// several products at once, so it takes every product lock in sorted order
// before opening the transaction that decrements stock and writes the
// order row.
type Service struct {
	repo     Repository
	clients  *client.Service
	products *product.Service
	stock    *stock.Service
	locks    *locking.Table
	txm      *sqlite.TxManager
	versions *sqlite.VersionedStore
	events   *replication.EventLog
	audit    *sqlite.AuditLog
	registry *replication.PeerRegistry
	node     string
}

// NewService creates the order service.
func NewService(
	repo Repository,
	clients *client.Service,
	products *product.Service,
	stockSvc *stock.Service,
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
		clients:  clients,
		products: products,
		stock:    stockSvc,
		locks:    locks,
		txm:      txm,
		versions: versions,
		events:   events,
		audit:    audit,
		registry: registry,
		node:     node,
	}
}

// Create confirms an order: all stock decrements and the order row commit
// together or not at all. On any failure (unknown client, inactive
// product, insufficient stock) nothing is written and no event is
// enqueued.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if err := in.Validate(ctx); err != nil {
		return nil, err
	}
	if in.OrderID == "" {
		in.OrderID = id.NewString()
	}

	productIDs := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	var out *Order
	err := s.locks.WithLocks(productIDs, func() error {
		return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			o, err := s.createLocked(ctx, in)
			if err != nil {
				return err
			}
			out = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.registry.Wake()
	logger.Info(ctx, "order created",
		"order_id", out.ID,
		"client_id", out.ClientID,
		"items", len(out.Items),
		"total", out.Total.String(),
	)
	return out, nil
}

func (s *Service) createLocked(ctx context.Context, in CreateInput) (*Order, error) {
	c, err := s.clients.Get(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}

	// Fetch and validate every product before touching stock, so the
	// first decrement never happens for an order that cannot complete.
	seen := make(map[string]*product.Product, len(in.Items))
	prods := make([]product.Product, 0, len(in.Items))
	total := types.ZeroMoney()
	for _, item := range in.Items {
		p, ok := seen[item.ProductID]
		if !ok {
			p, err = s.products.GetActive(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			seen[item.ProductID] = p
			prods = append(prods, *p)
		}
		total = total.Add(p.Price.Mul(types.MoneyFromInt(item.Quantity)))
	}

	o := &Order{
		ID:         in.OrderID,
		ClientID:   c.ID,
		ClientName: c.Name,
		Status:     StatusConfirmed,
		Total:      total,
		Origin:     s.node,
		CreatedAt:  time.Now().UTC(),
		Items:      make([]Item, 0, len(in.Items)),
	}
	reference := "order:" + o.ID
	for _, item := range in.Items {
		p := seen[item.ProductID]
		if _, err := s.stock.ApplyDeltaLocked(ctx, p, -item.Quantity, reference); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, Item{
			ProductID:   p.ID,
			Quantity:    item.Quantity,
			ProductName: p.Name,
		})
	}

	ref := sqlite.EntityRef{Type: EntityType, ID: o.ID}
	_, err = s.versions.Apply(ctx, ref, 0, s.node, func(ctx context.Context, version int64) error {
		if err := s.repo.Upsert(ctx, o); err != nil {
			return err
		}
		o.Version = version
		snap := Snapshot{Order: *o, Client: c, Products: prods}
		if _, err := s.events.Record(ctx, replication.EventOrderCreated, ref, version, snap); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityType, o.ID, sqlite.AuditActionOrderCreate, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns an order with its current version.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperror.NewNotFound("order", orderID)
	}
	version, err := s.versions.CurrentVersion(ctx, sqlite.EntityRef{Type: EntityType, ID: orderID})
	if err != nil {
		return nil, err
	}
	o.Version = version
	return o, nil
}

// Count returns the number of orders.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// ApplyRemote implements replication.Applier for order_created events.
// The embedded client and product snapshots are applied first so the
// order's references resolve on a node that has not seen them yet. Stock
// is not touched here: the origin's decrements arrive as their own
// stock_update events carrying absolute quantities.
func (s *Service) ApplyRemote(ctx context.Context, ev replication.Event) (sqlite.Outcome, error) {
	var snap Snapshot
	if err := json.Unmarshal(ev.Payload, &snap); err != nil {
		return sqlite.Outcome{}, fmt.Errorf("decode order payload: %w", err)
	}
	if snap.Order.ID == "" {
		return sqlite.Outcome{}, apperror.NewValidation("order payload missing id")
	}

	return s.applyRemote(ctx, snap, ev)
}

func (s *Service) applyRemote(ctx context.Context, snap Snapshot, ev replication.Event) (sqlite.Outcome, error) {
	var out sqlite.Outcome
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if snap.Client != nil {
			if _, err := s.clients.ApplySnapshot(ctx, *snap.Client, ev.OriginNode); err != nil {
				return err
			}
		}
		for _, p := range snap.Products {
			if _, err := s.products.ApplySnapshot(ctx, p, ev.OriginNode); err != nil {
				return err
			}
		}

		ref := sqlite.EntityRef{Type: EntityType, ID: snap.Order.ID}
		outcome, err := s.versions.Apply(ctx, ref, ev.Version, ev.OriginNode, func(ctx context.Context, version int64) error {
			o := snap.Order
			return s.repo.Upsert(ctx, &o)
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
