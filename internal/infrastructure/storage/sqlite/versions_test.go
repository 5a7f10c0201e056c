package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionedStore_LocalApplyAssignsNextVersion(t *testing.T) {
	_, txm := openTestDB(t)
	store := NewVersionedStore(txm)
	ctx := context.Background()
	ref := EntityRef{Type: "client", ID: "c-1"}

	out, err := store.Apply(ctx, ref, 0, "node-a", func(ctx context.Context, version int64) error {
		assert.Equal(t, int64(1), version)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, out.Applied())
	assert.Equal(t, int64(1), out.Version)

	out, err = store.Apply(ctx, ref, 0, "node-a", func(ctx context.Context, version int64) error {
		assert.Equal(t, int64(2), version)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Version)

	current, err := store.CurrentVersion(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)
}

func TestVersionedStore_StaleReplayIsSkipped(t *testing.T) {
	_, txm := openTestDB(t)
	store := NewVersionedStore(txm)
	ctx := context.Background()
	ref := EntityRef{Type: "product", ID: "p-1"}

	_, err := store.Apply(ctx, ref, 5, "node-b", func(ctx context.Context, version int64) error {
		return nil
	})
	require.NoError(t, err)

	ran := false
	out, err := store.Apply(ctx, ref, 3, "node-b", func(ctx context.Context, version int64) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran, "stale mutation must not run")
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, int64(5), out.Version)

	// Equal version is stale too.
	out, err = store.Apply(ctx, ref, 5, "node-b", func(ctx context.Context, version int64) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, StatusSkipped, out.Status)
}

func TestVersionedStore_NewerReplayApplies(t *testing.T) {
	_, txm := openTestDB(t)
	store := NewVersionedStore(txm)
	ctx := context.Background()
	ref := EntityRef{Type: "stock", ID: "p-1"}

	_, err := store.Apply(ctx, ref, 2, "node-b", func(ctx context.Context, version int64) error {
		return nil
	})
	require.NoError(t, err)

	out, err := store.Apply(ctx, ref, 7, "node-c", func(ctx context.Context, version int64) error {
		assert.Equal(t, int64(7), version)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, out.Applied())
	assert.Equal(t, int64(7), out.Version)
}

func TestVersionedStore_MutatorErrorRollsBack(t *testing.T) {
	_, txm := openTestDB(t)
	store := NewVersionedStore(txm)
	ctx := context.Background()
	ref := EntityRef{Type: "order", ID: "o-1"}

	_, err := store.Apply(ctx, ref, 0, "node-a", func(ctx context.Context, version int64) error {
		return assert.AnError
	})
	require.Error(t, err)

	current, err := store.CurrentVersion(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current, "failed mutation must not advance the version")
}

func TestVersionedStore_IndependentEntities(t *testing.T) {
	_, txm := openTestDB(t)
	store := NewVersionedStore(txm)
	ctx := context.Background()

	_, err := store.Apply(ctx, EntityRef{Type: "client", ID: "x"}, 0, "node-a",
		func(ctx context.Context, version int64) error { return nil })
	require.NoError(t, err)

	// Same id, different type: separate version counter.
	current, err := store.CurrentVersion(ctx, EntityRef{Type: "product", ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}
