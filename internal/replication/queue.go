package replication

import (
	"context"

	"acmesync/internal/infrastructure/storage/sqlite"
)

// PeerQueue is the outbound FIFO for one peer, backed by the durable
// outbox. The in-memory part is only a wake-up signal; ordering and
// retention live in the database, so a restart loses nothing.
// Owned exclusively by that peer's dispatcher once Start is called.
type PeerQueue struct {
	peer   string
	outbox *sqlite.Outbox
	notify chan struct{}
}

// NewPeerQueue creates the queue for one peer.
func NewPeerQueue(peer string, outbox *sqlite.Outbox) *PeerQueue {
	return &PeerQueue{
		peer:   peer,
		outbox: outbox,
		notify: make(chan struct{}, 1),
	}
}

// Peer returns the peer base URL this queue belongs to.
func (q *PeerQueue) Peer() string {
	return q.peer
}

// Notify wakes the dispatcher without blocking the producer.
func (q *PeerQueue) Notify() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Wait returns the channel the dispatcher blocks on while idle.
func (q *PeerQueue) Wait() <-chan struct{} {
	return q.notify
}

// Pending returns up to limit unacknowledged events in commit order.
func (q *PeerQueue) Pending(ctx context.Context, limit int) ([]Event, error) {
	stored, err := q.outbox.PendingForPeer(ctx, q.peer, limit)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(stored))
	for _, s := range stored {
		events = append(events, FromStored(s))
	}
	return events, nil
}

// Acknowledge marks an event as delivered to this peer.
func (q *PeerQueue) Acknowledge(ctx context.Context, eventID string) error {
	return q.outbox.MarkAcknowledged(ctx, q.peer, eventID)
}

// Depth returns the current backlog for this peer.
func (q *PeerQueue) Depth(ctx context.Context) (int64, error) {
	return q.outbox.PendingCount(ctx, q.peer)
}
