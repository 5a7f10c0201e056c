// Package replication implements the node-to-node convergence engine:
// durable event production, per-peer FIFO dispatch with retry, and the
// idempotent inbound receiver.
package replication

import (
	"encoding/json"
	"time"

	"acmesync/internal/infrastructure/storage/sqlite"
)

// EventType identifies the kind of mutation an event carries.
type EventType string

const (
	EventClientUpsert  EventType = "client_upsert"
	EventProductUpsert EventType = "product_upsert"
	EventUserUpsert    EventType = "user_upsert"
	EventOrderCreated  EventType = "order_created"
	EventStockUpdate   EventType = "stock_update"
)

// Event is one accepted mutation on the wire. Immutable once created.
type Event struct {
	EventID    string          `json:"event_id"`
	Type       EventType       `json:"event_type"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Version    int64           `json:"version"`
	Payload    json.RawMessage `json:"payload"`
	OriginNode string          `json:"origin_node"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Stored converts the event to its persisted form.
func (e Event) Stored() sqlite.StoredEvent {
	return sqlite.StoredEvent{
		EventID:    e.EventID,
		EventType:  string(e.Type),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Version:    e.Version,
		Payload:    e.Payload,
		OriginNode: e.OriginNode,
		CreatedAt:  e.CreatedAt,
	}
}

// FromStored reconstructs a wire event from its persisted form.
func FromStored(s sqlite.StoredEvent) Event {
	return Event{
		EventID:    s.EventID,
		Type:       EventType(s.EventType),
		EntityType: s.EntityType,
		EntityID:   s.EntityID,
		Version:    s.Version,
		Payload:    s.Payload,
		OriginNode: s.OriginNode,
		CreatedAt:  s.CreatedAt,
	}
}
