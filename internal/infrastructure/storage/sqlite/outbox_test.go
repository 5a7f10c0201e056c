package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendEvent(t *testing.T, txm *TxManager, outbox *Outbox, eventID string, peers []string) {
	t.Helper()
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return outbox.Append(ctx, StoredEvent{
			EventID:    eventID,
			EventType:  "client_upsert",
			EntityType: "client",
			EntityID:   "c-1",
			Version:    1,
			Payload:    []byte(`{}`),
			OriginNode: "node-a",
		}, peers)
	})
	require.NoError(t, err)
}

func TestOutbox_AppendRequiresTransaction(t *testing.T) {
	_, txm := openTestDB(t)
	outbox := NewOutbox(txm)

	err := outbox.Append(context.Background(), StoredEvent{EventID: "ev-1"}, []string{"http://peer-b"})
	require.Error(t, err)
}

func TestOutbox_PendingIsFIFO(t *testing.T) {
	_, txm := openTestDB(t)
	outbox := NewOutbox(txm)
	ctx := context.Background()
	peers := []string{"http://peer-b"}

	for i := 0; i < 5; i++ {
		appendEvent(t, txm, outbox, fmt.Sprintf("ev-%d", i), peers)
	}

	events, err := outbox.PendingForPeer(ctx, "http://peer-b", 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("ev-%d", i), ev.EventID)
	}
}

func TestOutbox_AcknowledgePerPeer(t *testing.T) {
	_, txm := openTestDB(t)
	outbox := NewOutbox(txm)
	ctx := context.Background()
	peers := []string{"http://peer-b", "http://peer-c"}

	appendEvent(t, txm, outbox, "ev-1", peers)

	require.NoError(t, outbox.MarkAcknowledged(ctx, "http://peer-b", "ev-1"))

	count, err := outbox.PendingCount(ctx, "http://peer-b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The other peer still owes an acknowledgment.
	count, err = outbox.PendingCount(ctx, "http://peer-c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOutbox_RolledBackMutationLeavesNoEvent(t *testing.T) {
	_, txm := openTestDB(t)
	outbox := NewOutbox(txm)
	ctx := context.Background()

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := outbox.Append(ctx, StoredEvent{
			EventID: "ev-doomed", EventType: "client_upsert",
			EntityType: "client", EntityID: "c-1", Version: 1,
			Payload: []byte(`{}`), OriginNode: "node-a",
		}, []string{"http://peer-b"}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	count, err := outbox.PendingCount(ctx, "http://peer-b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestOutbox_LimitBoundsBatch(t *testing.T) {
	_, txm := openTestDB(t)
	outbox := NewOutbox(txm)
	ctx := context.Background()
	peers := []string{"http://peer-b"}

	for i := 0; i < 4; i++ {
		appendEvent(t, txm, outbox, fmt.Sprintf("ev-%d", i), peers)
	}

	events, err := outbox.PendingForPeer(ctx, "http://peer-b", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-0", events[0].EventID)
	assert.Equal(t, "ev-1", events[1].EventID)
}
