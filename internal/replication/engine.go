package replication

import (
	"context"
	"time"

	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/pkg/logger"
)

// ledgerCleanupInterval is how often expired ledger entries are pruned.
const ledgerCleanupInterval = time.Hour

// Engine runs the outbound side of replication: one dispatcher per
// configured peer plus periodic ledger cleanup. Bound to the process
// lifetime; Stop signals every loop and waits for them.
type Engine struct {
	registry    *PeerRegistry
	dispatchers []*Dispatcher
	ledger      *sqlite.Ledger
	log         *logger.Logger

	stop chan struct{}
	done chan struct{}
}

// NewEngine builds dispatchers for every peer in the registry.
func NewEngine(
	registry *PeerRegistry,
	ledger *sqlite.Ledger,
	token string,
	retryInterval, requestTimeout time.Duration,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		registry: registry,
		ledger:   ledger,
		log:      log.WithComponent("replication"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, peer := range registry.Peers() {
		e.dispatchers = append(e.dispatchers,
			NewDispatcher(registry.Queue(peer), token, retryInterval, requestTimeout, log))
	}
	return e
}

// Start launches all dispatchers and the ledger cleanup loop.
func (e *Engine) Start() {
	for _, d := range e.dispatchers {
		d.Start()
	}
	go e.cleanupLoop()
	e.log.Infow("replication engine started", "peers", len(e.dispatchers))
}

// Stop shuts down dispatch. Unacknowledged events remain in the outbox.
func (e *Engine) Stop() {
	close(e.stop)
	for _, d := range e.dispatchers {
		d.Stop()
	}
	<-e.done
	e.log.Info("replication engine stopped")
}

func (e *Engine) cleanupLoop() {
	defer close(e.done)

	ticker := time.NewTicker(ledgerCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			removed, err := e.ledger.CleanupExpired(context.Background())
			if err != nil {
				e.log.Errorw("ledger cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				e.log.Infow("ledger cleanup", "removed", removed)
			}
		}
	}
}
