package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"acmesync/internal/core/id"
	"acmesync/internal/infrastructure/storage/sqlite"
)

// EventLog constructs replication events and persists them, with one
// pending outbox row per configured peer, inside the transaction that
// commits the mutation they describe. An event therefore exists exactly
// when its mutation durably committed.
type EventLog struct {
	outbox *sqlite.Outbox
	node   string
	peers  []string
}

// NewEventLog creates the event log for this node.
func NewEventLog(outbox *sqlite.Outbox, node string, peers []string) *EventLog {
	return &EventLog{outbox: outbox, node: node, peers: peers}
}

// Record allocates a globally unique event id, stamps origin and creation
// time, and appends the event to the outbox for every configured peer.
// MUST be called inside a transaction context.
func (l *EventLog) Record(ctx context.Context, typ EventType, ref sqlite.EntityRef, version int64, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	ev := Event{
		EventID:    id.NewString(),
		Type:       typ,
		EntityType: ref.Type,
		EntityID:   ref.ID,
		Version:    version,
		Payload:    raw,
		OriginNode: l.node,
		CreatedAt:  time.Now().UTC(),
	}

	if err := l.outbox.Append(ctx, ev.Stored(), l.peers); err != nil {
		return Event{}, err
	}

	return ev, nil
}

// Peers returns the configured peer URLs.
func (l *EventLog) Peers() []string {
	return l.peers
}
