package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const appliedEventsTable = "applied_events"

// LedgerEntry records that a replication event id has been processed,
// independently of the version check. It short-circuits redeliveries even
// when two events race for the same version.
type LedgerEntry struct {
	EventID    string    `db:"event_id"`
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	Version    int64     `db:"version"`
	Outcome    string    `db:"outcome"`
	AppliedAt  time.Time `db:"applied_at"`
}

// Ledger is the inbound idempotency ledger keyed by event id.
// Retention is bounded: entries older than the configured TTL are removed
// by CleanupExpired; anything redelivered after that is still discarded by
// the version rule, so the ledger only needs to cover the retry horizon.
type Ledger struct {
	txm       *TxManager
	builder   squirrel.StatementBuilderType
	retention time.Duration
}

// NewLedger creates the idempotency ledger with the given retention window.
func NewLedger(txm *TxManager, retention time.Duration) *Ledger {
	return &Ledger{
		txm:       txm,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		retention: retention,
	}
}

// Seen reports whether an event id has already been processed.
func (l *Ledger) Seen(ctx context.Context, eventID string) (bool, error) {
	q := l.builder.Select("COUNT(1)").
		From(appliedEventsTable).
		Where(squirrel.Eq{"event_id": eventID})

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build ledger query: %w", err)
	}

	var count int64
	if err := sqlscan.Get(ctx, l.txm.GetQuerier(ctx), &count, query, args...); err != nil {
		return false, fmt.Errorf("check ledger for %s: %w", eventID, err)
	}
	return count > 0, nil
}

// Record stores an event id as processed. Safe to call for events whose
// mutation was skipped; duplicates are ignored so a racing redelivery
// cannot fail the receiving transaction.
func (l *Ledger) Record(ctx context.Context, entry LedgerEntry) error {
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO applied_events (event_id, entity_type, entity_id, version, outcome, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`

	_, err := l.txm.GetQuerier(ctx).ExecContext(ctx, query,
		entry.EventID, entry.EntityType, entry.EntityID,
		entry.Version, entry.Outcome, entry.AppliedAt)
	if err != nil {
		return fmt.Errorf("record ledger entry %s: %w", entry.EventID, err)
	}
	return nil
}

// CleanupExpired removes ledger entries older than the retention window.
// Returns the number of removed rows.
func (l *Ledger) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-l.retention)

	q := l.builder.Delete(appliedEventsTable).
		Where(squirrel.Lt{"applied_at": cutoff})

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cleanup query: %w", err)
	}

	res, err := l.txm.GetQuerier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup ledger: %w", err)
	}
	return res.RowsAffected()
}
