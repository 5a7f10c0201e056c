package replication

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acmesync/internal/infrastructure/storage/sqlite"
)

// capturingPeer records delivered events and can be toggled unavailable.
type capturingPeer struct {
	mu       sync.Mutex
	received []Event
	attempts int
	failing  bool
	srv      *httptest.Server
}

func newCapturingPeer(t *testing.T, token string) *capturingPeer {
	p := &capturingPeer{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(ReplicaTokenHeader) != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		p.attempts++
		if p.failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.received = append(p.received, ev)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *capturingPeer) setFailing(failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing = failing
}

func (p *capturingPeer) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *capturingPeer) eventIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.received))
	for _, ev := range p.received {
		ids = append(ids, ev.EventID)
	}
	return ids
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestDispatcher_DeliversInCommitOrder(t *testing.T) {
	node := newTestNode(t)
	peer := newCapturingPeer(t, "secret")
	events := NewEventLog(node.outbox, "node-a", []string{peer.srv.URL})

	ev1 := node.record(t, events, EventClientUpsert, sqlite.EntityRef{Type: "client", ID: "c-1"}, 1, map[string]string{"id": "c-1"})
	ev2 := node.record(t, events, EventClientUpsert, sqlite.EntityRef{Type: "client", ID: "c-2"}, 1, map[string]string{"id": "c-2"})
	ev3 := node.record(t, events, EventStockUpdate, sqlite.EntityRef{Type: "stock", ID: "p-1"}, 1, map[string]string{"id": "p-1"})

	queue := NewPeerQueue(peer.srv.URL, node.outbox)
	d := NewDispatcher(queue, "secret", 50*time.Millisecond, time.Second, testLogger())
	d.Start()
	defer d.Stop()
	queue.Notify()

	waitFor(t, 5*time.Second, func() bool { return len(peer.eventIDs()) == 3 })
	assert.Equal(t, []string{ev1.EventID, ev2.EventID, ev3.EventID}, peer.eventIDs())

	depth, err := queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestDispatcher_RetainsEventsWhilePeerDown(t *testing.T) {
	node := newTestNode(t)
	peer := newCapturingPeer(t, "secret")
	peer.setFailing(true)
	events := NewEventLog(node.outbox, "node-a", []string{peer.srv.URL})

	ev1 := node.record(t, events, EventProductUpsert, sqlite.EntityRef{Type: "product", ID: "p-1"}, 1, map[string]string{"id": "p-1"})
	ev2 := node.record(t, events, EventProductUpsert, sqlite.EntityRef{Type: "product", ID: "p-2"}, 1, map[string]string{"id": "p-2"})

	queue := NewPeerQueue(peer.srv.URL, node.outbox)
	d := NewDispatcher(queue, "secret", 50*time.Millisecond, time.Second, testLogger())
	d.Start()
	defer d.Stop()
	queue.Notify()

	// Give the dispatcher a few retry cycles against the failing peer.
	time.Sleep(200 * time.Millisecond)
	depth, err := queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth, "undelivered events must stay queued")
	assert.Empty(t, peer.eventIDs())

	// Peer recovers; the fixed-interval retry drains the backlog in order.
	peer.setFailing(false)
	waitFor(t, 5*time.Second, func() bool { return len(peer.eventIDs()) == 2 })
	assert.Equal(t, []string{ev1.EventID, ev2.EventID}, peer.eventIDs())
}

func TestDispatcher_TokenMismatchKeepsEventQueued(t *testing.T) {
	node := newTestNode(t)
	peer := newCapturingPeer(t, "secret")
	events := NewEventLog(node.outbox, "node-a", []string{peer.srv.URL})

	node.record(t, events, EventClientUpsert, sqlite.EntityRef{Type: "client", ID: "c-1"}, 1, map[string]string{"id": "c-1"})

	queue := NewPeerQueue(peer.srv.URL, node.outbox)
	d := NewDispatcher(queue, "wrong-token", 50*time.Millisecond, time.Second, testLogger())
	d.Start()
	defer d.Stop()
	queue.Notify()

	time.Sleep(200 * time.Millisecond)
	depth, err := queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
	assert.Empty(t, peer.eventIDs())
}

func TestDispatcher_FailureHoldsFullRetryInterval(t *testing.T) {
	node := newTestNode(t)
	peer := newCapturingPeer(t, "secret")
	peer.setFailing(true)
	events := NewEventLog(node.outbox, "node-a", []string{peer.srv.URL})

	node.record(t, events, EventClientUpsert, sqlite.EntityRef{Type: "client", ID: "c-1"}, 1, map[string]string{"id": "c-1"})

	queue := NewPeerQueue(peer.srv.URL, node.outbox)
	d := NewDispatcher(queue, "secret", 600*time.Millisecond, time.Second, testLogger())
	d.Start()
	defer d.Stop()
	queue.Notify()

	waitFor(t, 2*time.Second, func() bool { return peer.attemptCount() >= 1 })
	peer.setFailing(false)

	// A wake from a fresh local commit must not retry the failed head
	// before the interval elapses.
	queue.Notify()
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, peer.eventIDs())

	waitFor(t, 5*time.Second, func() bool { return len(peer.eventIDs()) == 1 })
}

func TestEngine_PerPeerBacklogIsIndependent(t *testing.T) {
	node := newTestNode(t)
	up := newCapturingPeer(t, "secret")
	down := newCapturingPeer(t, "secret")
	down.setFailing(true)

	peers := []string{up.srv.URL, down.srv.URL}
	events := NewEventLog(node.outbox, "node-a", peers)
	registry := NewPeerRegistry(peers, node.outbox)

	node.record(t, events, EventClientUpsert, sqlite.EntityRef{Type: "client", ID: "c-1"}, 1, map[string]string{"id": "c-1"})

	engine := NewEngine(registry, node.ledger, "secret", 50*time.Millisecond, time.Second, testLogger())
	engine.Start()
	defer engine.Stop()
	registry.Wake()

	// The healthy peer drains while the failing one accumulates.
	waitFor(t, 5*time.Second, func() bool { return len(up.eventIDs()) == 1 })

	depths, err := registry.Depths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), depths[up.srv.URL])
	assert.Equal(t, int64(1), depths[down.srv.URL])
}
