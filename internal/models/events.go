package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderReady     = "ORDER_READY_NOTIFICATION"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is submitted
type OrderCreatedEvent struct {
	BaseEvent
	SiteKey    string `json:"site_key"`
	OrderID    int64  `json:"order_id"`
	OrderNo    int64  `json:"order_no"`
	TotalItems int    `json:"total_items"`
	TotalPrice int64  `json:"total_price"`
}

// OrderCompletedEvent published when staff marks an order complete
type OrderCompletedEvent struct {
	BaseEvent
	SiteKey string `json:"site_key"`
	OrderID int64  `json:"order_id"`
	OrderNo int64  `json:"order_no"`
}

// OrderReadyEvent published to the notifications topic for push delivery.
// Delivery to the device behind Target happens outside this service.
type OrderReadyEvent struct {
	BaseEvent
	SiteKey   string `json:"site_key"`
	OrderNo   int64  `json:"order_no"`
	Target    string `json:"target"`
	DedupeTag string `json:"dedupe_tag"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}
