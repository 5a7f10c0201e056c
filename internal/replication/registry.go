package replication

import (
	"context"

	"acmesync/internal/infrastructure/storage/sqlite"
)

// PeerRegistry owns one queue per configured peer. It is built once at
// startup from configuration and passed explicitly to whatever constructs
// dispatchers; there is no ambient global state.
type PeerRegistry struct {
	peers  []string
	queues map[string]*PeerQueue
}

// NewPeerRegistry builds the registry for the configured peer list.
func NewPeerRegistry(peers []string, outbox *sqlite.Outbox) *PeerRegistry {
	queues := make(map[string]*PeerQueue, len(peers))
	for _, p := range peers {
		queues[p] = NewPeerQueue(p, outbox)
	}
	return &PeerRegistry{peers: peers, queues: queues}
}

// Peers returns the configured peer URLs in configuration order.
func (r *PeerRegistry) Peers() []string {
	return r.peers
}

// Queue returns the queue for a peer, nil if the peer is not configured.
func (r *PeerRegistry) Queue(peer string) *PeerQueue {
	return r.queues[peer]
}

// Wake nudges every dispatcher; called after a local commit enqueued
// outbox rows.
func (r *PeerRegistry) Wake() {
	for _, q := range r.queues {
		q.Notify()
	}
}

// Depths returns the current backlog per peer.
func (r *PeerRegistry) Depths(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(r.queues))
	for peer, q := range r.queues {
		depth, err := q.Depth(ctx)
		if err != nil {
			return nil, err
		}
		out[peer] = depth
	}
	return out, nil
}
