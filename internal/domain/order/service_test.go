package order_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acmesync/internal/core/apperror"
	"acmesync/internal/core/locking"
	"acmesync/internal/core/types"
	"acmesync/internal/domain/client"
	"acmesync/internal/domain/order"
	"acmesync/internal/domain/product"
	"acmesync/internal/domain/stock"
	"acmesync/internal/infrastructure/storage/catalog_repo"
	"acmesync/internal/infrastructure/storage/document_repo"
	"acmesync/internal/infrastructure/storage/register_repo"
	"acmesync/internal/infrastructure/storage/sqlite"
	"acmesync/internal/replication"
)

const testPeer = "http://peer-b"

type testEnv struct {
	txm      *sqlite.TxManager
	outbox   *sqlite.Outbox
	clients  *client.Service
	products *product.Service
	stock    *stock.Service
	orders   *order.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	const node = "node-a"
	peers := []string{testPeer}

	txm := sqlite.NewTxManager(db)
	versions := sqlite.NewVersionedStore(txm)
	outbox := sqlite.NewOutbox(txm)
	audit, err := sqlite.NewAuditLog(txm)
	require.NoError(t, err)

	registry := replication.NewPeerRegistry(peers, outbox)
	events := replication.NewEventLog(outbox, node, peers)
	locks := locking.NewTable()

	clients := client.NewService(catalog_repo.NewClientRepo(txm), versions, events, audit, registry, node)
	products := product.NewService(catalog_repo.NewProductRepo(txm), versions, events, audit, registry, node)
	stockSvc := stock.NewService(register_repo.NewStockRepo(txm), products, locks, txm, versions, events, audit, registry, node)
	orders := order.NewService(document_repo.NewOrderRepo(txm), clients, products, stockSvc,
		locks, txm, versions, events, audit, registry, node)

	return &testEnv{
		txm:      txm,
		outbox:   outbox,
		clients:  clients,
		products: products,
		stock:    stockSvc,
		orders:   orders,
	}
}

// seed creates a client, a product at the given price, and initial stock.
func (e *testEnv) seed(t *testing.T, price string, quantity int64) (clientID, productID string) {
	t.Helper()
	ctx := context.Background()

	c, err := e.clients.Upsert(ctx, client.UpsertInput{Name: "ACME Ltd"})
	require.NoError(t, err)

	p, err := e.products.Upsert(ctx, product.UpsertInput{Name: "Widget", Price: types.MustMoney(price)})
	require.NoError(t, err)

	if quantity != 0 {
		_, err = e.stock.Adjust(ctx, p.ID, quantity, "initial")
		require.NoError(t, err)
	}
	return c.ID, p.ID
}

func TestCreate_DecrementsStockAndComputesTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, productID := env.seed(t, "19.90", 10)

	o, err := env.orders.Create(ctx, order.CreateInput{
		ClientID: clientID,
		Items:    []order.ItemInput{{ProductID: productID, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, "ACME Ltd", o.ClientName)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(3), o.Items[0].Quantity)
	assert.True(t, o.Total.Equal(types.MustMoney("59.70")), "total = price * quantity, got %s", o.Total)

	lvl, err := env.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), lvl.Quantity)

	stored, err := env.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Widget", stored.Items[0].ProductName)
}

func TestCreate_InsufficientStockLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, productID := env.seed(t, "5.00", 2)

	pendingBefore, err := env.outbox.PendingCount(ctx, testPeer)
	require.NoError(t, err)

	_, err = env.orders.Create(ctx, order.CreateInput{
		ClientID: clientID,
		Items:    []order.ItemInput{{ProductID: productID, Quantity: 5}},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

	// Stock untouched, no order row, no events enqueued.
	lvl, err := env.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lvl.Quantity)

	count, err := env.orders.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	pendingAfter, err := env.outbox.PendingCount(ctx, testPeer)
	require.NoError(t, err)
	assert.Equal(t, pendingBefore, pendingAfter)
}

func TestCreate_MultiItemFailureRollsBackEveryDecrement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, okProduct := env.seed(t, "1.00", 10)

	scarce, err := env.products.Upsert(ctx, product.UpsertInput{Name: "Rare", Price: types.MustMoney("2.00")})
	require.NoError(t, err)
	_, err = env.stock.Adjust(ctx, scarce.ID, 1, "initial")
	require.NoError(t, err)

	_, err = env.orders.Create(ctx, order.CreateInput{
		ClientID: clientID,
		Items: []order.ItemInput{
			{ProductID: okProduct, Quantity: 4},
			{ProductID: scarce.ID, Quantity: 3},
		},
	})
	require.Error(t, err)

	// The first item's decrement must have rolled back with the failure.
	lvl, err := env.stock.Get(ctx, okProduct)
	require.NoError(t, err)
	assert.Equal(t, int64(10), lvl.Quantity)
}

func TestCreate_InactiveProductRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, productID := env.seed(t, "5.00", 10)

	inactive := false
	_, err := env.products.Upsert(ctx, product.UpsertInput{
		ID: productID, Name: "Widget", Price: types.MustMoney("5.00"), Active: &inactive,
	})
	require.NoError(t, err)

	_, err = env.orders.Create(ctx, order.CreateInput{
		ClientID: clientID,
		Items:    []order.ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeProductInactive, appErr.Code)
}

func TestCreate_UnknownClientRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, productID := env.seed(t, "5.00", 10)

	_, err := env.orders.Create(ctx, order.CreateInput{
		ClientID: "no-such-client",
		Items:    []order.ItemInput{{ProductID: productID, Quantity: 1}},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, appErr.Code)
}

func TestCreate_ConcurrentOrdersNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, productID := env.seed(t, "5.00", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.orders.Create(ctx, order.CreateInput{
				ClientID: clientID,
				Items:    []order.ItemInput{{ProductID: productID, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two competing orders wins the last unit")

	lvl, err := env.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), lvl.Quantity)
}

func TestCreate_EnqueuesOrderAndStockEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, productID := env.seed(t, "5.00", 10)

	before, err := env.outbox.PendingCount(ctx, testPeer)
	require.NoError(t, err)

	_, err = env.orders.Create(ctx, order.CreateInput{
		ClientID: clientID,
		Items:    []order.ItemInput{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)

	// One stock_update plus one order_created.
	after, err := env.outbox.PendingCount(ctx, testPeer)
	require.NoError(t, err)
	assert.Equal(t, before+2, after)
}

func TestApplyRemote_MaterializesReferencesButNotStock(t *testing.T) {
	origin := newTestEnv(t)
	replica := newTestEnv(t)
	ctx := context.Background()

	clientID, productID := origin.seed(t, "3.50", 10)
	o, err := origin.orders.Create(ctx, order.CreateInput{
		ClientID: clientID,
		Items:    []order.ItemInput{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)

	events, err := origin.outbox.PendingForPeer(ctx, testPeer, 0)
	require.NoError(t, err)

	var orderEvent *replication.Event
	for _, s := range events {
		ev := replication.FromStored(s)
		if ev.Type == replication.EventOrderCreated {
			orderEvent = &ev
			break
		}
	}
	require.NotNil(t, orderEvent)

	outcome, err := replica.orders.ApplyRemote(ctx, *orderEvent)
	require.NoError(t, err)
	assert.True(t, outcome.Applied())

	// Order, client, and product snapshots landed.
	got, err := replica.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, got.Total.Equal(o.Total))

	c, err := replica.clients.Get(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, "ACME Ltd", c.Name)

	// Stock was not decremented here: that state arrives via stock_update.
	lvl, err := replica.stock.Get(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), lvl.Quantity)

	// Redelivery is a version-rule no-op.
	outcome, err = replica.orders.ApplyRemote(ctx, *orderEvent)
	require.NoError(t, err)
	assert.False(t, outcome.Applied())
}

func TestCreate_ValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	clientID, productID := env.seed(t, "5.00", 10)

	cases := []struct {
		name string
		in   order.CreateInput
	}{
		{"no items", order.CreateInput{ClientID: clientID}},
		{"zero quantity", order.CreateInput{ClientID: clientID, Items: []order.ItemInput{{ProductID: productID, Quantity: 0}}}},
		{"negative quantity", order.CreateInput{ClientID: clientID, Items: []order.ItemInput{{ProductID: productID, Quantity: -1}}}},
		{"missing client", order.CreateInput{Items: []order.ItemInput{{ProductID: productID, Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.orders.Create(ctx, tc.in)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}
