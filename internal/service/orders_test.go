package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kiosk-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	mu      sync.Mutex
	nextID  int64
	created []*models.Order
	open    bool
	openErr error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{open: true}
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	f.created = append(f.created, order)
	return nil
}

func (f *fakeOrderStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (f *fakeOrderStore) GetOrderByNo(_ context.Context, siteKey string, orderNo int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.created {
		if o.SiteKey == siteKey && o.OrderNo == orderNo {
			return o, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (f *fakeOrderStore) GetOrderByIdempotencyKey(_ context.Context, siteKey, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.created {
		if o.SiteKey == siteKey && o.IdempotencyKey.Valid && o.IdempotencyKey.String == key {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderStore) GetActiveOrders(_ context.Context, siteKey string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.created {
		if o.SiteKey == siteKey && !o.IsComp {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) CompleteOrder(ctx context.Context, siteKey string, orderNo int64) (*models.Order, bool, error) {
	order, err := f.GetOrderByNo(ctx, siteKey, orderNo)
	if err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.IsComp {
		return order, false, nil
	}
	order.IsComp = true
	return order, true, nil
}

func (f *fakeOrderStore) IsSiteOpen(context.Context, string) (bool, error) {
	return f.open, f.openErr
}

type recordingPublisher struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	completed []*models.OrderCompletedEvent
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishOrderCompleted(_ context.Context, e *models.OrderCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, e)
	return nil
}

func newTestOrderService() (*OrderService, *fakeOrderStore, *memCounters, *recordingPublisher) {
	store := newFakeOrderStore()
	counters := newMemCounters()
	pub := &recordingPublisher{}
	svc := NewOrderService(store, NewSequencer(counters), pub)
	return svc, store, counters, pub
}

func TestSubmitOrderEmptyRejected(t *testing.T) {
	svc, store, counters, _ := newTestOrderService()

	_, err := svc.SubmitOrder(context.Background(), &SubmitOrderRequest{
		SiteKey: "site-a",
		Items:   nil,
	})
	require.ErrorIs(t, err, models.ErrEmptyOrder)

	// Rejected before sequencing: no number consumed, nothing written.
	assert.Zero(t, counters.calls)
	assert.Empty(t, store.created)
}

func TestSubmitOrderZeroQuantityRejected(t *testing.T) {
	svc, store, counters, _ := newTestOrderService()

	_, err := svc.SubmitOrder(context.Background(), &SubmitOrderRequest{
		SiteKey: "site-a",
		Items:   []SubmitItemRequest{{ProductID: 1, Name: "Coffee", Price: 400, Quantity: 0}},
	})
	require.ErrorIs(t, err, models.ErrEmptyOrder)
	assert.Zero(t, counters.calls)
	assert.Empty(t, store.created)
}

func TestSubmitOrderTotals(t *testing.T) {
	svc, _, _, pub := newTestOrderService()

	order, err := svc.SubmitOrder(context.Background(), &SubmitOrderRequest{
		SiteKey: "site-a",
		Items: []SubmitItemRequest{
			{ProductID: 1, Name: "Coffee", Price: 400, Quantity: 2},
			{ProductID: 2, Name: "Donut", Price: 250, Quantity: 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.OrderNo)
	assert.Equal(t, 5, order.TotalItems)
	assert.Equal(t, int64(2*400+3*250), order.TotalPrice)
	assert.False(t, order.IsComp)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(800), order.Items[0].Subtotal)
	assert.Equal(t, int64(750), order.Items[1].Subtotal)

	require.Len(t, pub.created, 1)
	assert.Equal(t, order.OrderNo, pub.created[0].OrderNo)
}

func TestSubmitOrderSiteClosed(t *testing.T) {
	svc, store, counters, _ := newTestOrderService()
	store.open = false

	_, err := svc.SubmitOrder(context.Background(), &SubmitOrderRequest{
		SiteKey: "site-a",
		Items:   []SubmitItemRequest{{ProductID: 1, Name: "Coffee", Price: 400, Quantity: 1}},
	})
	require.ErrorIs(t, err, models.ErrSiteClosed)
	assert.Zero(t, counters.calls)
}

func TestSubmitOrderOpenStateUnknownDefaultsOpen(t *testing.T) {
	svc, _, _, _ := newTestOrderService()
	svc.store.(*fakeOrderStore).openErr = errors.New("settings read failed")

	order, err := svc.SubmitOrder(context.Background(), &SubmitOrderRequest{
		SiteKey: "site-a",
		Items:   []SubmitItemRequest{{ProductID: 1, Name: "Coffee", Price: 400, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.OrderNo)
}

func TestSubmitOrderIdempotencyKeyReturnsExisting(t *testing.T) {
	svc, _, counters, _ := newTestOrderService()

	req := &SubmitOrderRequest{
		SiteKey:        "site-a",
		Items:          []SubmitItemRequest{{ProductID: 1, Name: "Coffee", Price: 400, Quantity: 1}},
		IdempotencyKey: "resubmit-1",
	}

	first, err := svc.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.OrderNo, second.OrderNo)
	assert.Equal(t, 1, counters.calls, "resubmission must not consume another number")
}

func TestCompleteOrderPublishesOnce(t *testing.T) {
	svc, _, _, pub := newTestOrderService()
	ctx := context.Background()

	order, err := svc.SubmitOrder(ctx, &SubmitOrderRequest{
		SiteKey: "site-a",
		Items:   []SubmitItemRequest{{ProductID: 1, Name: "Coffee", Price: 400, Quantity: 1}},
	})
	require.NoError(t, err)

	completed, err := svc.CompleteOrder(ctx, "site-a", order.OrderNo)
	require.NoError(t, err)
	assert.True(t, completed.IsComp)
	require.Len(t, pub.completed, 1)

	// The transition is one-way; a repeat publishes nothing.
	_, err = svc.CompleteOrder(ctx, "site-a", order.OrderNo)
	require.NoError(t, err)
	assert.Len(t, pub.completed, 1)
}
