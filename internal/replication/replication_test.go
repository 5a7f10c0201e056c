package replication

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/pkg/logger"
)

type testNode struct {
	db     *sqlite.DB
	txm    *sqlite.TxManager
	outbox *sqlite.Outbox
	ledger *sqlite.Ledger
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txm := sqlite.NewTxManager(db)
	return &testNode{
		db:     db,
		txm:    txm,
		outbox: sqlite.NewOutbox(txm),
		ledger: sqlite.NewLedger(txm, 7*24*time.Hour),
	}
}

func (n *testNode) record(t *testing.T, events *EventLog, typ EventType, ref sqlite.EntityRef, version int64, payload any) Event {
	t.Helper()
	var ev Event
	err := n.txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		ev, err = events.Record(ctx, typ, ref, version, payload)
		return err
	})
	require.NoError(t, err)
	return ev
}

func testLogger() *logger.Logger {
	return logger.Default()
}
