package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"kiosk-service/internal/ledger"
	"kiosk-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersistence struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memPersistence) LoadLedger(_ context.Context, siteKey, deviceID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[siteKey+"/"+deviceID], nil
}

func (m *memPersistence) SaveLedger(_ context.Context, siteKey, deviceID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[siteKey+"/"+deviceID] = data
	return nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[int64]*models.Order
}

func (f *fakeOrders) GetOrderByNo(_ context.Context, _ string, orderNo int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderNo]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) complete(orderNo int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[orderNo].IsComp = true
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []int64
	targets []string
	err     error
}

func (n *fakeNotifier) Notify(_ context.Context, target string, orderNo int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, orderNo)
	n.targets = append(n.targets, target)
	return nil
}

func newWatcherFixture(t *testing.T) (*Watcher, *fakeOrders, *fakeNotifier, *ledger.Ledger) {
	t.Helper()
	orders := &fakeOrders{orders: make(map[int64]*models.Order)}
	notifier := &fakeNotifier{}
	w := NewWatcher(orders, notifier)

	led, err := ledger.New(context.Background(), &memPersistence{data: make(map[string][]byte)}, "site-a", "dev-1")
	require.NoError(t, err)
	return w, orders, notifier, led
}

func TestCompletionNotifiesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)

	orders.orders[42] = &models.Order{SiteKey: "site-a", OrderNo: 42}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 42, TotalItems: 1}))
	w.Watch("site-a", led, 42)

	orders.complete(42)

	// The same transition delivered twice fires one notification.
	w.HandleCompletion(ctx, "site-a", 42)
	w.HandleCompletion(ctx, "site-a", 42)

	assert.Equal(t, []int64{42}, notifier.calls)
	assert.Empty(t, led.All(), "entry is pruned after notification")
}

func TestRewatchReplacesPriorHandle(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)

	orders.orders[7] = &models.Order{SiteKey: "site-a", OrderNo: 7}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 7, TotalItems: 1}))

	// Registering twice must not leave two live watches for one entry.
	w.Watch("site-a", led, 7)
	w.Watch("site-a", led, 7)

	orders.complete(7)
	w.HandleCompletion(ctx, "site-a", 7)

	assert.Equal(t, []int64{7}, notifier.calls)
}

func TestCancelledWatchIsAbandoned(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)

	orders.orders[3] = &models.Order{SiteKey: "site-a", OrderNo: 3}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 3, TotalItems: 1}))

	cancel := w.Watch("site-a", led, 3)
	cancel()
	cancel() // idempotent

	orders.complete(3)
	w.HandleCompletion(ctx, "site-a", 3)

	assert.Empty(t, notifier.calls)
	assert.Len(t, led.All(), 1, "abandoned entry is not pruned")
}

func TestNotifierFailureStillPrunes(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)
	notifier.err = errors.New("permission revoked")

	orders.orders[9] = &models.Order{SiteKey: "site-a", OrderNo: 9}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 9, TotalItems: 1}))
	w.Watch("site-a", led, 9)

	orders.complete(9)
	w.HandleCompletion(ctx, "site-a", 9)

	assert.Empty(t, led.All(), "notification is best effort; the entry is pruned regardless")
}

func TestSyncCatchesUpMissedCompletion(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)

	// Order completed while the device was away; the push is long gone.
	orders.orders[11] = &models.Order{SiteKey: "site-a", OrderNo: 11, IsComp: true}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 11, TotalItems: 2}))

	w.Sync(ctx, "site-a", led)

	assert.Equal(t, []int64{11}, notifier.calls)
	assert.Empty(t, led.All())
}

func TestSyncDropsWatchesForRemovedEntries(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)

	orders.orders[5] = &models.Order{SiteKey: "site-a", OrderNo: 5}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 5, TotalItems: 1}))
	w.Sync(ctx, "site-a", led)

	// Entry removed externally (another tab notified and pruned it).
	_, err := led.MarkNotified(ctx, 5)
	require.NoError(t, err)
	w.Sync(ctx, "site-a", led)

	orders.complete(5)
	w.HandleCompletion(ctx, "site-a", 5)
	assert.Empty(t, notifier.calls)
}

func TestNotificationCarriesTarget(t *testing.T) {
	ctx := context.Background()
	w, orders, notifier, led := newWatcherFixture(t)

	orders.orders[13] = &models.Order{
		SiteKey:            "site-a",
		OrderNo:            13,
		NotificationTarget: sql.NullString{String: "push-token-xyz", Valid: true},
	}
	require.NoError(t, led.Append(ctx, models.LedgerEntry{OrderNo: 13, TotalItems: 1}))
	w.Watch("site-a", led, 13)

	orders.complete(13)
	w.HandleCompletion(ctx, "site-a", 13)

	require.Len(t, notifier.targets, 1)
	assert.Equal(t, "push-token-xyz", notifier.targets[0])
}
