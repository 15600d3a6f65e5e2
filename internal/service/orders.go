package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the order-facing slice of the backing store
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByNo(ctx context.Context, siteKey string, orderNo int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, siteKey, key string) (*models.Order, error)
	GetActiveOrders(ctx context.Context, siteKey string) ([]models.Order, error)
	CompleteOrder(ctx context.Context, siteKey string, orderNo int64) (*models.Order, bool, error)
	IsSiteOpen(ctx context.Context, siteKey string) (bool, error)
}

// EventPublisher publishes order lifecycle events to the change feed
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
}

// OrderService handles order submission and lifecycle
type OrderService struct {
	store     OrderStore
	sequencer *Sequencer
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, sequencer *Sequencer, publisher EventPublisher) *OrderService {
	return &OrderService{
		store:     store,
		sequencer: sequencer,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// SubmitItemRequest is one requested line of an order
type SubmitItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// SubmitOrderRequest represents a request to submit an order
type SubmitOrderRequest struct {
	SiteKey            string
	Items              []SubmitItemRequest
	NotificationTarget string
	IdempotencyKey     string
}

// SubmitOrder validates and persists a new order. Validation happens before
// any sequencing or store write, so a rejected submission consumes no order
// number.
func (s *OrderService) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitOrder")
	defer span.End()

	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_order").Inc()
		return nil, models.ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			util.OrdersFailedTotal.WithLabelValues("empty_order").Inc()
			return nil, models.ErrEmptyOrder
		}
	}

	open, err := s.store.IsSiteOpen(ctx, req.SiteKey)
	if err != nil {
		// Unknown open state defaults to open rather than refusing orders.
		s.logger.Warn("Failed to read site settings",
			zap.String("site_key", req.SiteKey),
			zap.Error(err))
		open = true
	}
	if !open {
		util.OrdersFailedTotal.WithLabelValues("site_closed").Inc()
		return nil, models.ErrSiteClosed
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.SiteKey, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order submission detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_no", existing.OrderNo))
			return existing, nil
		}
	}

	orderNo, err := s.sequencer.NextOrderNumber(ctx, req.SiteKey)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("sequencing").Inc()
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	totalItems := 0
	var totalPrice int64
	for _, it := range req.Items {
		subtotal := it.Price * int64(it.Quantity)
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
		totalItems += it.Quantity
		totalPrice += subtotal
	}

	order := &models.Order{
		SiteKey:    req.SiteKey,
		OrderNo:    orderNo,
		TotalItems: totalItems,
		TotalPrice: totalPrice,
		IsComp:     false,
		Items:      items,
	}
	if req.NotificationTarget != "" {
		order.NotificationTarget = sql.NullString{String: req.NotificationTarget, Valid: true}
	}
	if req.IdempotencyKey != "" {
		order.IdempotencyKey = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersSubmittedTotal.Inc()
	s.logger.Info("Order submitted",
		zap.String("site_key", req.SiteKey),
		zap.Int64("order_no", orderNo),
		zap.Int("total_items", totalItems))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		SiteKey:    order.SiteKey,
		OrderID:    order.ID,
		OrderNo:    order.OrderNo,
		TotalItems: order.TotalItems,
		TotalPrice: order.TotalPrice,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

// GetOrder retrieves an order by its site-scoped number
func (s *OrderService) GetOrder(ctx context.Context, siteKey string, orderNo int64) (*models.Order, error) {
	return s.store.GetOrderByNo(ctx, siteKey, orderNo)
}

// CompleteOrder marks an order complete. The transition is one-way; marking
// an already complete order again publishes nothing.
func (s *OrderService) CompleteOrder(ctx context.Context, siteKey string, orderNo int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CompleteOrder")
	defer span.End()

	order, transitioned, err := s.store.CompleteOrder(ctx, siteKey, orderNo)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return order, nil
	}

	util.OrdersCompletedTotal.Inc()
	s.logger.Info("Order completed",
		zap.String("site_key", siteKey),
		zap.Int64("order_no", orderNo))

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		SiteKey: siteKey,
		OrderID: order.ID,
		OrderNo: orderNo,
	}
	if err := s.publisher.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}

	return order, nil
}
