package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

const entityVersionsTable = "entity_versions"

// ApplyStatus is the result of a versioned apply.
type ApplyStatus string

const (
	// StatusApplied means the mutation ran and the entity version advanced.
	StatusApplied ApplyStatus = "applied"
	// StatusSkipped means the incoming version was not newer than the
	// stored one; the mutation did not run. Not an error.
	StatusSkipped ApplyStatus = "skipped"
)

// Outcome reports what a versioned apply did and the version now stored.
type Outcome struct {
	Status  ApplyStatus
	Version int64
}

// Applied reports whether the mutation ran.
func (o Outcome) Applied() bool {
	return o.Status == StatusApplied
}

// EntityRef identifies one versioned entity.
type EntityRef struct {
	Type string
	ID   string
}

// VersionedStore enforces the single conflict-resolution rule shared by
// local and replicated mutations: a mutation with a version not greater
// than the stored one is a no-op; otherwise the mutator runs in the same
// transaction that advances the version row.
type VersionedStore struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewVersionedStore creates a versioned store over the transaction manager.
func NewVersionedStore(txm *TxManager) *VersionedStore {
	return &VersionedStore{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Apply runs mutator under the version rule.
//
// incoming > 0 replays a replicated mutation at exactly that version;
// incoming == 0 is a local mutation and the store assigns current+1.
// The mutator receives the version being written so it can stamp rows.
// Everything happens in one transaction (the caller's, if one is already
// in context).
func (s *VersionedStore) Apply(
	ctx context.Context,
	ref EntityRef,
	incoming int64,
	origin string,
	mutator func(ctx context.Context, version int64) error,
) (Outcome, error) {
	var out Outcome
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.CurrentVersion(ctx, ref)
		if err != nil {
			return err
		}

		if incoming > 0 && incoming <= current {
			out = Outcome{Status: StatusSkipped, Version: current}
			return nil
		}

		next := incoming
		if next == 0 {
			next = current + 1
		}

		if err := mutator(ctx, next); err != nil {
			return err
		}

		if err := s.setVersion(ctx, ref, next, origin); err != nil {
			return err
		}

		out = Outcome{Status: StatusApplied, Version: next}
		return nil
	})
	return out, err
}

// CurrentVersion returns the stored version for an entity, 0 if none.
func (s *VersionedStore) CurrentVersion(ctx context.Context, ref EntityRef) (int64, error) {
	q := s.builder.Select("version").
		From(entityVersionsTable).
		Where(squirrel.Eq{"entity_type": ref.Type, "entity_id": ref.ID})

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build version query: %w", err)
	}

	var version int64
	if err := sqlscan.Get(ctx, s.txm.GetQuerier(ctx), &version, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get version for %s/%s: %w", ref.Type, ref.ID, err)
	}

	return version, nil
}

func (s *VersionedStore) setVersion(ctx context.Context, ref EntityRef, version int64, origin string) error {
	query := `
		INSERT INTO entity_versions (entity_type, entity_id, version, last_modified_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			version = excluded.version,
			last_modified_by = excluded.last_modified_by,
			updated_at = excluded.updated_at`

	_, err := s.txm.GetQuerier(ctx).ExecContext(ctx, query,
		ref.Type, ref.ID, version, origin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set version for %s/%s: %w", ref.Type, ref.ID, err)
	}
	return nil
}
