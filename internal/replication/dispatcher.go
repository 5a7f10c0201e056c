package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"acmesync/pkg/logger"
)

var tracer = otel.Tracer("acmesync/replication")

// ReplicaTokenHeader carries the shared inter-node secret on replication
// calls. Distinct from end-user Authorization headers.
const ReplicaTokenHeader = "X-Replica-Token"

// eventPath is the inbound replication endpoint on every node.
const eventPath = "/api/v1/replica/event"

// dispatchBatchSize bounds one outbox read; delivery is still one event
// per HTTP call.
const dispatchBatchSize = 64

// Dispatcher drains one peer's queue for the process lifetime. Events are
// sent one per call in commit order; any failure (connection error,
// timeout, non-2xx) leaves the head in place and the loop sleeps for the
// retry interval before trying the same event again. A peer that stays
// unreachable accumulates backlog but never loses events, and never
// blocks dispatchers for other peers.
type Dispatcher struct {
	queue         *PeerQueue
	client        *http.Client
	token         string
	retryInterval time.Duration
	log           *logger.Logger

	stop chan struct{}
	done chan struct{}
}

// NewDispatcher creates a dispatcher bound to one peer queue.
func NewDispatcher(queue *PeerQueue, token string, retryInterval, requestTimeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		queue:         queue,
		client:        &http.Client{Timeout: requestTimeout},
		token:         token,
		retryInterval: retryInterval,
		log:           log.WithComponent("dispatcher").With("peer", queue.Peer()),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop signals shutdown and waits for the loop to exit. Unacknowledged
// events stay in the outbox and are redelivered after restart.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	ctx := context.Background()
	ticker := time.NewTicker(d.retryInterval)
	defer ticker.Stop()

	for {
		failed, stopped := d.drain(ctx)
		if stopped {
			return
		}

		if failed {
			// The head could not be delivered. Hold for the full retry
			// interval; a wake from a new local commit must not turn into
			// an immediate retry against a struggling peer.
			select {
			case <-d.stop:
				return
			case <-ticker.C:
			}
			continue
		}

		select {
		case <-d.stop:
			return
		case <-d.queue.Wait():
		case <-ticker.C:
		}
	}
}

// drain sends pending events until the queue is empty or a send fails.
// Returns failed=true when the head event could not be delivered, and
// stopped=true if shutdown was requested.
func (d *Dispatcher) drain(ctx context.Context) (failed, stopped bool) {
	for {
		select {
		case <-d.stop:
			return false, true
		default:
		}

		events, err := d.queue.Pending(ctx, dispatchBatchSize)
		if err != nil {
			d.log.Errorw("load pending events", "error", err)
			return true, false
		}
		if len(events) == 0 {
			return false, false
		}

		for _, ev := range events {
			if err := d.send(ctx, ev); err != nil {
				d.log.Warnw("event delivery failed, will retry",
					"event_id", ev.EventID,
					"event_type", ev.Type,
					"error", err,
				)
				return true, false
			}
			if err := d.queue.Acknowledge(ctx, ev.EventID); err != nil {
				// The peer applied the event; its ledger makes the
				// inevitable redelivery a no-op.
				d.log.Errorw("acknowledge failed", "event_id", ev.EventID, "error", err)
				return true, false
			}
			d.log.Debugw("event delivered", "event_id", ev.EventID, "event_type", ev.Type)
		}
	}
}

// send performs one replication call. Any non-2xx status is a failure.
func (d *Dispatcher) send(ctx context.Context, ev Event) error {
	ctx, span := tracer.Start(ctx, "replication.send",
		trace.WithAttributes(
			attribute.String("peer", d.queue.Peer()),
			attribute.String("event_id", ev.EventID),
			attribute.String("event_type", string(ev.Type)),
		))
	defer span.End()

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.queue.Peer()+eventPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ReplicaTokenHeader, d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("peer returned status %d", resp.StatusCode)
	}
	return nil
}
