package stock_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acmesync/internal/core/locking"
	"acmesync/internal/core/types"
	"acmesync/internal/domain/product"
	"acmesync/internal/domain/stock"
	"acmesync/internal/infrastructure/storage/catalog_repo"
	"acmesync/internal/infrastructure/storage/register_repo"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
	"acmesync/pkg/logger"
)

type testEnv struct {
	txm      *sqlite.TxManager
	locks    *locking.Table
	products *product.Service
	stock    *stock.Service
	receiver *replication.Receiver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	const node = "node-a"
	peers := []string{"http://peer-b"}

	txm := sqlite.NewTxManager(db)
	versions := sqlite.NewVersionedStore(txm)
	ledger := sqlite.NewLedger(txm, 7*24*time.Hour)
	outbox := sqlite.NewOutbox(txm)
	audit, err := sqlite.NewAuditLog(txm)
	require.NoError(t, err)

	registry := replication.NewPeerRegistry(peers, outbox)
	events := replication.NewEventLog(outbox, node, peers)
	locks := locking.NewTable()

	products := product.NewService(catalog_repo.NewProductRepo(txm), versions, events, audit, registry, node)
	stockSvc := stock.NewService(register_repo.NewStockRepo(txm), products, locks, txm, versions, events, audit, registry, node)

	receiver := replication.NewReceiver(txm, ledger, logger.Default())
	receiver.Register(replication.EventStockUpdate, stockSvc)

	return &testEnv{
		txm:      txm,
		locks:    locks,
		products: products,
		stock:    stockSvc,
		receiver: receiver,
	}
}

func (e *testEnv) seed(t *testing.T, quantity int64) string {
	t.Helper()
	ctx := context.Background()

	p, err := e.products.Upsert(ctx, product.UpsertInput{Name: "Widget", Price: types.MustMoney("5.00")})
	require.NoError(t, err)
	_, err = e.stock.Adjust(ctx, p.ID, quantity, "initial")
	require.NoError(t, err)
	return p.ID
}

func makeStockEvent(eventID, productID string, quantity, version int64) replication.Event {
	raw, _ := json.Marshal(stock.Snapshot{
		Level: stock.Level{
			ProductID: productID,
			Quantity:  quantity,
			Origin:    "node-b",
			UpdatedAt: time.Now().UTC(),
			Version:   version,
		},
	})
	return replication.Event{
		EventID:    eventID,
		Type:       replication.EventStockUpdate,
		EntityType: stock.EntityType,
		EntityID:   productID,
		Version:    version,
		Payload:    raw,
		OriginNode: "node-b",
	}
}

// A replicated stock event arriving while a local mutation holds the
// product lock and the write connection must wait its turn, not deadlock
// the node.
func TestReceive_CompletesWhileLocalLockHolderWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seed(t, 10)

	inTx := make(chan struct{})
	release := make(chan struct{})
	localDone := make(chan error, 1)

	// Reproduce Adjust's exact sequence: product lock first, then the
	// transaction, held open until released.
	go func() {
		localDone <- env.locks.WithLock(productID, func() error {
			return env.txm.RunInTransaction(ctx, func(ctx context.Context) error {
				p, err := env.products.GetActive(ctx, productID)
				if err != nil {
					return err
				}
				if _, err := env.stock.ApplyDeltaLocked(ctx, p, -1, "local"); err != nil {
					return err
				}
				close(inTx)
				<-release
				return nil
			})
		})
	}()
	<-inTx

	recvDone := make(chan error, 1)
	go func() {
		_, err := env.receiver.Receive(ctx, makeStockEvent("ev-remote", productID, 42, 10))
		recvDone <- err
	}()

	// The receiver is parked waiting for the write connection. Letting the
	// local transaction finish must unblock it.
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case err := <-localDone:
			require.NoError(t, err)
		case err := <-recvDone:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("local mutation and remote apply deadlocked on the same product")
		}
	}

	// The remote absolute level is newer than the local decrement.
	lvl, err := env.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), lvl.Quantity)
	assert.Equal(t, int64(10), lvl.Version)
}

// Unsynchronized race between Adjust and an inbound stock_update on the
// same product: both must complete and converge on a consistent level.
func TestAdjust_RacingRemoteApplyConverges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seed(t, 10)

	localDone := make(chan error, 1)
	recvDone := make(chan error, 1)
	go func() {
		_, err := env.stock.Adjust(ctx, productID, -1, "local")
		localDone <- err
	}()
	go func() {
		_, err := env.receiver.Receive(ctx, makeStockEvent("ev-race", productID, 42, 10))
		recvDone <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-localDone:
			require.NoError(t, err)
		case err := <-recvDone:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent local and remote stock mutations did not complete")
		}
	}

	// Remote first: the local decrement lands on top of the absolute 42.
	// Local first: the remote level, carrying the higher version, wins.
	lvl, err := env.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Contains(t, []int64{41, 42}, lvl.Quantity)
}

func TestReceive_StaleRemoteLevelIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seed(t, 10)

	// Push the local version past the incoming one.
	for i := 0; i < 3; i++ {
		_, err := env.stock.Adjust(ctx, productID, 1, "receipt")
		require.NoError(t, err)
	}

	outcome, err := env.receiver.Receive(ctx, makeStockEvent("ev-stale", productID, 99, 2))
	require.NoError(t, err)
	assert.Equal(t, replication.OutcomeDuplicateIgnored, outcome)

	lvl, err := env.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(13), lvl.Quantity)
}
