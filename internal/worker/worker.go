package worker

import (
	"context"

	"kiosk-service/internal/broker"
	"kiosk-service/internal/ledger"
	"kiosk-service/internal/models"
	"kiosk-service/internal/service"
	"kiosk-service/internal/util"

	"go.uber.org/zap"
)

// QueueWorker consumes the order event feed and keeps the per-site queue
// views current. Every event triggers a full authoritative re-read of the
// active set; the feed only signals that something changed.
type QueueWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	queue        *service.QueueService
	ledgers      *ledger.Manager
	watcher      *service.Watcher
	logger       *zap.Logger
}

// NewQueueWorker creates a new queue worker
func NewQueueWorker(
	consumer *broker.Consumer,
	queue *service.QueueService,
	ledgers *ledger.Manager,
	watcher *service.Watcher,
) *QueueWorker {
	w := &QueueWorker{
		consumer: consumer,
		queue:    queue,
		ledgers:  ledgers,
		watcher:  watcher,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *QueueWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting queue worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *QueueWorker) Stop() error {
	w.logger.Info("Stopping queue worker")
	return w.consumer.Close()
}

func (w *QueueWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	w.refresh(ctx, event.SiteKey)
	return nil
}

func (w *QueueWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	// The per-order completion push and the active-set update carry no
	// ordering guarantee relative to each other; dispatch both from the
	// same event and let each side tolerate the other's lag.
	w.watcher.HandleCompletion(ctx, event.SiteKey, event.OrderNo)
	w.refresh(ctx, event.SiteKey)
	return nil
}

// refresh re-reads the active snapshot and recomputes wait estimates for
// every ledger loaded for the site. A failed re-read retains the last good
// view; it is not an empty queue.
func (w *QueueWorker) refresh(ctx context.Context, siteKey string) {
	if err := w.queue.Refresh(ctx, siteKey); err != nil {
		return
	}

	tracker := w.queue.Tracker(siteKey)
	for _, led := range w.ledgers.ForSite(siteKey) {
		entries := led.All()
		if len(entries) == 0 {
			continue
		}
		waits := make(map[int64]int, len(entries))
		for _, e := range entries {
			waits[e.OrderNo] = tracker.WaitForEntry(e)
		}
		if err := led.UpdateWaits(ctx, waits); err != nil {
			w.logger.Error("Failed to update ledger waits",
				zap.String("site_key", siteKey),
				zap.Error(err))
		}
	}
}
