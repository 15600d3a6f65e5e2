package service

import (
	"context"
	"sync"

	"kiosk-service/internal/models"
	"kiosk-service/internal/util"

	"go.uber.org/zap"
)

// WaitEstimator turns a queue snapshot slice into a wait estimate in minutes.
// itemsBefore is the item count of every active order ahead of the target;
// selfItems is the target order's own item count.
type WaitEstimator func(itemsBefore, selfItems int) int

// LinearWaitEstimator models throughput as a fixed preparation time per item
func LinearWaitEstimator(perItemMinutes int) WaitEstimator {
	return func(itemsBefore, selfItems int) int {
		return itemsBefore*perItemMinutes + selfItems*perItemMinutes
	}
}

// Estimate is a tracked order's place in the queue
type Estimate struct {
	Position    int `json:"position"`
	WaitMinutes int `json:"wait_minutes"`
}

// Tracker maintains the live set of active orders for one site. Each snapshot
// replaces the previous state wholesale; the tracker never accumulates deltas.
type Tracker struct {
	mu         sync.RWMutex
	siteKey    string
	active     []models.Order
	nowServing int64
	primed     bool
	estimator  WaitEstimator
	logger     *zap.Logger
}

// NewTracker creates a tracker for one site
func NewTracker(siteKey string, estimator WaitEstimator) *Tracker {
	return &Tracker{
		siteKey:   siteKey,
		estimator: estimator,
		logger:    util.GetLogger(),
	}
}

// OnActiveOrdersChanged replaces the active set with an authoritative
// snapshot, ascending by order number. An empty snapshot means the queue is
// empty and nowServing drops to zero.
func (t *Tracker) OnActiveOrdersChanged(list []models.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = list
	t.primed = true
	if len(list) == 0 {
		t.nowServing = 0
	} else {
		t.nowServing = list[0].OrderNo
	}
	util.ActiveOrdersGauge.WithLabelValues(t.siteKey).Set(float64(len(list)))
}

// OnStreamError records a feed error and retains the last good snapshot. An
// erroring feed must not be mistaken for an empty queue.
func (t *Tracker) OnStreamError(err error) {
	util.StreamErrorsTotal.WithLabelValues("active_orders").Inc()
	t.logger.Error("Active orders stream error",
		zap.String("site_key", t.siteKey),
		zap.Error(err))
}

// NowServing returns the smallest active order number, zero when the queue is
// empty
func (t *Tracker) NowServing() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nowServing
}

// ActiveCount returns the size of the active set
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

// Primed reports whether at least one snapshot has arrived
func (t *Tracker) Primed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.primed
}

// Estimate computes the queue position and wait for an active order. Position
// zero means the order is being prepared now. ok is false when the order is
// not in the active set, which callers must treat as distinct from position
// zero: the order may already be complete, or the first snapshot may not have
// arrived yet.
func (t *Tracker) Estimate(orderNo int64) (Estimate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	found := false
	var selfItems int
	position := 0
	itemsBefore := 0
	for _, o := range t.active {
		switch {
		case o.OrderNo < orderNo:
			position++
			itemsBefore += o.TotalItems
		case o.OrderNo == orderNo:
			found = true
			selfItems = o.TotalItems
		}
	}
	if !found {
		return Estimate{}, false
	}
	return Estimate{
		Position:    position,
		WaitMinutes: t.estimator(itemsBefore, selfItems),
	}, true
}

// WaitForEntry recomputes the wait estimate for a ledger entry. When the
// order is no longer in the active set the entry's own item count stands in,
// matching the ledger's best-effort contract.
func (t *Tracker) WaitForEntry(entry models.LedgerEntry) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	itemsBefore := 0
	selfItems := entry.TotalItems
	for _, o := range t.active {
		if o.OrderNo < entry.OrderNo {
			itemsBefore += o.TotalItems
		} else if o.OrderNo == entry.OrderNo {
			selfItems = o.TotalItems
		}
	}
	return t.estimator(itemsBefore, selfItems)
}

// ActiveOrderStore reads the full active snapshot for a site
type ActiveOrderStore interface {
	GetActiveOrders(ctx context.Context, siteKey string) ([]models.Order, error)
}

// QueueService owns one tracker per site and refreshes them from the store.
// Site selection is an explicit parameter throughout; no ambient current-site
// state is kept.
type QueueService struct {
	mu        sync.Mutex
	trackers  map[string]*Tracker
	store     ActiveOrderStore
	estimator WaitEstimator
}

// NewQueueService creates a queue service
func NewQueueService(store ActiveOrderStore, estimator WaitEstimator) *QueueService {
	return &QueueService{
		trackers:  make(map[string]*Tracker),
		store:     store,
		estimator: estimator,
	}
}

// Tracker returns the tracker for a site, creating it on first use
func (q *QueueService) Tracker(siteKey string) *Tracker {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.trackers[siteKey]
	if !ok {
		t = NewTracker(siteKey, q.estimator)
		q.trackers[siteKey] = t
	}
	return t
}

// Refresh reads the authoritative active snapshot and drives the site's
// tracker. A read error is reported to the tracker's error path and the last
// good snapshot is retained.
func (q *QueueService) Refresh(ctx context.Context, siteKey string) error {
	tracker := q.Tracker(siteKey)

	list, err := q.store.GetActiveOrders(ctx, siteKey)
	if err != nil {
		tracker.OnStreamError(err)
		return err
	}
	tracker.OnActiveOrdersChanged(list)
	return nil
}
