package service

import (
	"context"
	"errors"
	"sync"

	"kiosk-service/internal/ledger"
	"kiosk-service/internal/models"
	"kiosk-service/internal/notify"
	"kiosk-service/internal/util"

	"go.uber.org/zap"
)

// OrderGetter reads single order records for completion checks
type OrderGetter interface {
	GetOrderByNo(ctx context.Context, siteKey string, orderNo int64) (*models.Order, error)
}

type watchKey struct {
	siteKey string
	orderNo int64
}

type watch struct {
	ledger    *ledger.Ledger
	cancelled bool
}

// Watcher fires the completion notification for each ledger entry exactly
// once per subscription lifetime, then prunes the entry. The registry is
// keyed by order number: registering an order that already has a handle
// replaces it, so an entry never holds two live watches.
type Watcher struct {
	mu       sync.Mutex
	orders   OrderGetter
	notifier notify.Notifier
	watches  map[watchKey]*watch
	logger   *zap.Logger
}

// NewWatcher creates a completion watcher
func NewWatcher(orders OrderGetter, notifier notify.Notifier) *Watcher {
	return &Watcher{
		orders:   orders,
		notifier: notifier,
		watches:  make(map[watchKey]*watch),
		logger:   util.GetLogger(),
	}
}

// Watch registers a completion watch for a ledger entry and returns its
// cancel handle. Cancel is idempotent. Any prior handle for the same order is
// replaced.
func (w *Watcher) Watch(siteKey string, led *ledger.Ledger, orderNo int64) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watchLocked(siteKey, led, orderNo)
}

func (w *Watcher) watchLocked(siteKey string, led *ledger.Ledger, orderNo int64) func() {
	key := watchKey{siteKey: siteKey, orderNo: orderNo}
	if prior, ok := w.watches[key]; ok {
		prior.cancelled = true
	}

	wt := &watch{ledger: led}
	w.watches[key] = wt

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		wt.cancelled = true
		if w.watches[key] == wt {
			delete(w.watches, key)
		}
	}
}

// Sync reconciles the registry with a ledger's current entry set: entries
// gain a watch, watches whose entry disappeared are abandoned. It then checks
// each watched order's current state, so a completion that happened while the
// device was away is caught up rather than lost. Cross-stream ordering gives
// no guarantee that the completion push arrives while the watch is live.
func (w *Watcher) Sync(ctx context.Context, siteKey string, led *ledger.Ledger) {
	entries := led.All()

	w.mu.Lock()
	keep := make(map[watchKey]bool, len(entries))
	for _, e := range entries {
		key := watchKey{siteKey: siteKey, orderNo: e.OrderNo}
		keep[key] = true
		if existing, ok := w.watches[key]; !ok || existing.ledger != led {
			w.watchLocked(siteKey, led, e.OrderNo)
		}
	}
	for key, wt := range w.watches {
		if key.siteKey == siteKey && wt.ledger == led && !keep[key] {
			wt.cancelled = true
			delete(w.watches, key)
		}
	}
	w.mu.Unlock()

	for _, e := range entries {
		order, err := w.orders.GetOrderByNo(ctx, siteKey, e.OrderNo)
		if err != nil {
			if !errors.Is(err, models.ErrOrderNotFound) {
				util.StreamErrorsTotal.WithLabelValues("order").Inc()
				w.logger.Error("Order state check failed",
					zap.String("site_key", siteKey),
					zap.Int64("order_no", e.OrderNo),
					zap.Error(err))
			}
			continue
		}
		if order.IsComp {
			w.HandleCompletion(ctx, siteKey, e.OrderNo)
		}
	}
}

// HandleCompletion reacts to a completion push for an order. The ledger prune
// is the local once-only gate: the first push removes the entry, so a second
// delivery of the same transition finds nothing to do. Notifier failure is
// logged and swallowed; the entry stays pruned.
func (w *Watcher) HandleCompletion(ctx context.Context, siteKey string, orderNo int64) {
	key := watchKey{siteKey: siteKey, orderNo: orderNo}

	w.mu.Lock()
	wt, ok := w.watches[key]
	if !ok || wt.cancelled {
		w.mu.Unlock()
		return
	}
	delete(w.watches, key)
	wt.cancelled = true
	w.mu.Unlock()

	removed, err := wt.ledger.MarkNotified(ctx, orderNo)
	if err != nil {
		w.logger.Error("Failed to prune ledger entry",
			zap.String("site_key", siteKey),
			zap.Int64("order_no", orderNo),
			zap.Error(err))
	}
	if !removed {
		return
	}

	target := ""
	if order, err := w.orders.GetOrderByNo(ctx, siteKey, orderNo); err == nil && order.NotificationTarget.Valid {
		target = order.NotificationTarget.String
	}

	if err := w.notifier.Notify(ctx, target, orderNo); err != nil {
		util.NotificationsFailedTotal.Inc()
		w.logger.Error("Notification delivery failed",
			zap.String("site_key", siteKey),
			zap.Int64("order_no", orderNo),
			zap.Error(err))
		return
	}
	util.NotificationsSentTotal.Inc()
	w.logger.Info("Completion notification sent",
		zap.String("site_key", siteKey),
		zap.Int64("order_no", orderNo))
}
