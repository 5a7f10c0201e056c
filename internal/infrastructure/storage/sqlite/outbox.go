package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

// OutboxStatus represents the delivery state of an event for one peer.
type OutboxStatus string

const (
	OutboxStatusPending      OutboxStatus = "pending"
	OutboxStatusAcknowledged OutboxStatus = "acknowledged"
)

// StoredEvent is a replication event persisted with the commit that
// produced it. Immutable once written.
type StoredEvent struct {
	Seq        int64     `db:"seq"`
	EventID    string    `db:"event_id"`
	EventType  string    `db:"event_type"`
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	Version    int64     `db:"version"`
	Payload    []byte    `db:"payload"`
	OriginNode string    `db:"origin_node"`
	CreatedAt  time.Time `db:"created_at"`
}

// Outbox persists replication events and one pending row per configured
// peer inside the producing transaction, so an event exists if and only if
// its mutation durably committed. Pending rows survive restart; the
// dispatcher reloads them and deletes nothing until a peer acknowledges.
type Outbox struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewOutbox creates the outbox over the transaction manager.
func NewOutbox(txm *TxManager) *Outbox {
	return &Outbox{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Append writes the event and its per-peer pending rows.
// MUST be called inside a transaction context: the event must not outlive
// a rolled-back mutation.
func (o *Outbox) Append(ctx context.Context, ev StoredEvent, peers []string) error {
	tx := o.txm.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox append requires transaction context")
	}

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	insert := o.builder.Insert(eventsTable).
		Columns("event_id", "event_type", "entity_type", "entity_id",
			"version", "payload", "origin_node", "created_at").
		Values(ev.EventID, ev.EventType, ev.EntityType, ev.EntityID,
			ev.Version, ev.Payload, ev.OriginNode, ev.CreatedAt)

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event %s: %w", ev.EventID, err)
	}

	for _, peer := range peers {
		q := o.builder.Insert(outboxTable).
			Columns("event_id", "peer", "status").
			Values(ev.EventID, peer, OutboxStatusPending)

		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build outbox insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert outbox row %s/%s: %w", ev.EventID, peer, err)
		}
	}

	return nil
}

// PendingForPeer returns unacknowledged events for a peer in the order
// they were locally committed (strict FIFO).
func (o *Outbox) PendingForPeer(ctx context.Context, peer string, limit int) ([]StoredEvent, error) {
	q := o.builder.Select(
		"e.seq", "e.event_id", "e.event_type", "e.entity_type", "e.entity_id",
		"e.version", "e.payload", "e.origin_node", "e.created_at",
	).From(eventsTable + " e").
		Join(outboxTable + " x ON x.event_id = e.event_id").
		Where(squirrel.Eq{"x.peer": peer, "x.status": OutboxStatusPending}).
		OrderBy("e.seq")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	var events []StoredEvent
	if err := sqlscan.Select(ctx, o.txm.GetQuerier(ctx), &events, query, args...); err != nil {
		return nil, fmt.Errorf("select pending for %s: %w", peer, err)
	}
	return events, nil
}

// MarkAcknowledged records a peer's acknowledgment of an event.
func (o *Outbox) MarkAcknowledged(ctx context.Context, peer, eventID string) error {
	q := o.builder.Update(outboxTable).
		Set("status", OutboxStatusAcknowledged).
		Set("acked_at", time.Now().UTC()).
		Where(squirrel.Eq{"peer": peer, "event_id": eventID})

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build ack update: %w", err)
	}

	if _, err := o.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ack %s for %s: %w", eventID, peer, err)
	}
	return nil
}

// PendingCount returns the backlog for one peer.
func (o *Outbox) PendingCount(ctx context.Context, peer string) (int64, error) {
	q := o.builder.Select("COUNT(1)").
		From(outboxTable).
		Where(squirrel.Eq{"peer": peer, "status": OutboxStatusPending})

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int64
	if err := sqlscan.Get(ctx, o.txm.GetQuerier(ctx), &count, query, args...); err != nil {
		return 0, fmt.Errorf("count pending for %s: %w", peer, err)
	}
	return count, nil
}

const (
	eventsTable = "replication_events"
	outboxTable = "replication_outbox"
)
