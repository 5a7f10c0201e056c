// Package status assembles the node status report: what this node holds
// and what it still owes its peers.
package status

import (
	"context"
	"time"

	"acmesync/internal/domain/client"
	"acmesync/internal/domain/order"
	"acmesync/internal/domain/product"
	"acmesync/internal/domain/stock"
	"acmesync/internal/replication"
)

// Counts holds per-entity record counts.
type Counts struct {
	Clients  int64 `json:"clients"`
	Products int64 `json:"products"`
	Users    int64 `json:"users"`
	Orders   int64 `json:"orders"`
}

// Report is one point-in-time status snapshot.
type Report struct {
	Node        string           `json:"node"`
	Peers       []string         `json:"peers"`
	Counts      Counts           `json:"counts"`
	Stock       []stock.Level    `json:"stock"`
	QueueDepths map[string]int64 `json:"queueDepths"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Counter is the count query each domain repository already implements.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Reporter builds status reports from the live services.
type Reporter struct {
	node     string
	clients  *client.Service
	products *product.Service
	users    Counter
	orders   *order.Service
	stock    *stock.Service
	registry *replication.PeerRegistry
}

// NewReporter creates the status reporter.
func NewReporter(
	node string,
	clients *client.Service,
	products *product.Service,
	users Counter,
	orders *order.Service,
	stockSvc *stock.Service,
	registry *replication.PeerRegistry,
) *Reporter {
	return &Reporter{
		node:     node,
		clients:  clients,
		products: products,
		users:    users,
		orders:   orders,
		stock:    stockSvc,
		registry: registry,
	}
}

// Report assembles the current snapshot. Counts and depths come from
// separate queries, so the report is a near-consistent view, which is
// enough for an operator endpoint.
func (r *Reporter) Report(ctx context.Context) (*Report, error) {
	rep := &Report{
		Node:        r.node,
		Peers:       r.registry.Peers(),
		GeneratedAt: time.Now().UTC(),
	}

	var err error
	if rep.Counts.Clients, err = r.clients.Count(ctx); err != nil {
		return nil, err
	}
	if rep.Counts.Products, err = r.products.Count(ctx); err != nil {
		return nil, err
	}
	if rep.Counts.Users, err = r.users.Count(ctx); err != nil {
		return nil, err
	}
	if rep.Counts.Orders, err = r.orders.Count(ctx); err != nil {
		return nil, err
	}

	if rep.Stock, err = r.stock.List(ctx); err != nil {
		return nil, err
	}
	if rep.QueueDepths, err = r.registry.Depths(ctx); err != nil {
		return nil, err
	}
	return rep, nil
}
