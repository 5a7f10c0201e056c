package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_SeenAfterRecord(t *testing.T) {
	_, txm := openTestDB(t)
	ledger := NewLedger(txm, 7*24*time.Hour)
	ctx := context.Background()

	seen, err := ledger.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Record(ctx, LedgerEntry{
		EventID:    "ev-1",
		EntityType: "client",
		EntityID:   "c-1",
		Version:    1,
		Outcome:    string(StatusApplied),
	}))

	seen, err = ledger.Seen(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLedger_DuplicateRecordIsNoop(t *testing.T) {
	_, txm := openTestDB(t)
	ledger := NewLedger(txm, 7*24*time.Hour)
	ctx := context.Background()

	entry := LedgerEntry{
		EventID:    "ev-1",
		EntityType: "client",
		EntityID:   "c-1",
		Version:    1,
		Outcome:    string(StatusApplied),
	}
	require.NoError(t, ledger.Record(ctx, entry))
	require.NoError(t, ledger.Record(ctx, entry))
}

func TestLedger_CleanupExpired(t *testing.T) {
	_, txm := openTestDB(t)
	ledger := NewLedger(txm, time.Hour)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, LedgerEntry{
		EventID:   "ev-old",
		Outcome:   string(StatusApplied),
		AppliedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))
	require.NoError(t, ledger.Record(ctx, LedgerEntry{
		EventID: "ev-fresh",
		Outcome: string(StatusApplied),
	}))

	removed, err := ledger.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	seen, err := ledger.Seen(ctx, "ev-old")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = ledger.Seen(ctx, "ev-fresh")
	require.NoError(t, err)
	assert.True(t, seen)
}
