package replication

import (
	"context"
	"fmt"

	"acmesync/internal/core/apperror"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/pkg/logger"
)

// ReceiveOutcome reports what the receiver did with an inbound event.
type ReceiveOutcome string

const (
	// OutcomeAccepted means the event's mutation was applied.
	OutcomeAccepted ReceiveOutcome = "accepted"
	// OutcomeDuplicateIgnored means the event id was already processed or
	// its version was stale; no side effects either way.
	OutcomeDuplicateIgnored ReceiveOutcome = "duplicate_ignored"
)

// Applier applies one remote event type against the versioned store.
// Implementations live in the domain packages; each funnels through
// VersionedStore.Apply so local and remote writes share one rule.
type Applier interface {
	ApplyRemote(ctx context.Context, ev Event) (sqlite.Outcome, error)
}

// Receiver applies inbound events idempotently. Token validation happens
// in the HTTP layer before an event reaches Receive; everything here runs
// in a single transaction: ledger check, mutation, ledger record.
type Receiver struct {
	txm      *sqlite.TxManager
	ledger   *sqlite.Ledger
	appliers map[EventType]Applier
	log      *logger.Logger
}

// NewReceiver creates the inbound event receiver.
func NewReceiver(txm *sqlite.TxManager, ledger *sqlite.Ledger, log *logger.Logger) *Receiver {
	return &Receiver{
		txm:      txm,
		ledger:   ledger,
		appliers: make(map[EventType]Applier),
		log:      log.WithComponent("receiver"),
	}
}

// Register installs the applier for one event type.
func (r *Receiver) Register(typ EventType, applier Applier) {
	r.appliers[typ] = applier
}

// Receive applies one inbound event.
//
// An event id already present in the ledger short-circuits with no side
// effects. Otherwise the registered applier runs under the version rule;
// whether it applied or was skipped as stale, the event id is recorded so
// later redeliveries short-circuit without touching the store.
func (r *Receiver) Receive(ctx context.Context, ev Event) (ReceiveOutcome, error) {
	applier, ok := r.appliers[ev.Type]
	if !ok {
		return "", apperror.NewUnknownEvent(string(ev.Type))
	}

	var outcome ReceiveOutcome
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		seen, err := r.ledger.Seen(ctx, ev.EventID)
		if err != nil {
			return err
		}
		if seen {
			outcome = OutcomeDuplicateIgnored
			return nil
		}

		applied, err := applier.ApplyRemote(ctx, ev)
		if err != nil {
			return fmt.Errorf("apply %s event %s: %w", ev.Type, ev.EventID, err)
		}

		if err := r.ledger.Record(ctx, sqlite.LedgerEntry{
			EventID:    ev.EventID,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Version:    ev.Version,
			Outcome:    string(applied.Status),
		}); err != nil {
			return err
		}

		if applied.Applied() {
			outcome = OutcomeAccepted
		} else {
			outcome = OutcomeDuplicateIgnored
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Debugw("event received",
		"event_id", ev.EventID,
		"event_type", ev.Type,
		"origin", ev.OriginNode,
		"outcome", outcome,
	)
	return outcome, nil
}
