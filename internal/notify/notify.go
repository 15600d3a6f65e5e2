package notify

import (
	"context"
	"fmt"
	"time"

	"kiosk-service/internal/broker"
	"kiosk-service/internal/models"
	"kiosk-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers a completion notification to a device. Delivery is best
// effort; callers log and swallow failures.
type Notifier interface {
	Notify(ctx context.Context, target string, orderNo int64) error
}

// PushNotifier publishes ready notifications to the push delivery topic.
// Delivery to the device behind the target token is external to this service.
type PushNotifier struct {
	publisher *broker.Producer
	logger    *zap.Logger
}

// NewPushNotifier creates a push notifier backed by a producer for the
// notifications topic
func NewPushNotifier(publisher *broker.Producer) *PushNotifier {
	return &PushNotifier{
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Notify publishes an order-ready event keyed by the device token. An order
// without a target gets a log line only; the customer still sees the queue
// view update.
func (n *PushNotifier) Notify(ctx context.Context, target string, orderNo int64) error {
	if target == "" {
		n.logger.Info("Order ready, no notification target registered",
			zap.Int64("order_no", orderNo))
		return nil
	}

	event := &models.OrderReadyEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReady,
			Timestamp: time.Now(),
		},
		OrderNo:   orderNo,
		Target:    target,
		DedupeTag: fmt.Sprintf("order-%d", orderNo),
		Title:     "Your order is ready!",
		Body:      fmt.Sprintf("Please pick up order number %d", orderNo),
	}

	if err := n.publisher.PublishEvent(ctx, target, event); err != nil {
		return fmt.Errorf("failed to publish ready notification: %w", err)
	}
	return nil
}
