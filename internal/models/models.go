package models

import (
	"database/sql"
	"time"
)

// Order represents a customer order placed at a site
type Order struct {
	ID                 int64          `db:"id" json:"id"`
	SiteKey            string         `db:"site_key" json:"site_key"`
	OrderNo            int64          `db:"order_no" json:"order_no"`
	TotalItems         int            `db:"total_items" json:"total_items"`
	TotalPrice         int64          `db:"total_price" json:"total_price"`
	IsComp             bool           `db:"is_comp" json:"is_comp"`
	NotificationTarget sql.NullString `db:"notification_target" json:"notification_target,omitempty"`
	IdempotencyKey     sql.NullString `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	CompletedAt        sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem represents one line of an order
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	Price     int64  `db:"price" json:"price"`
	Quantity  int    `db:"quantity" json:"quantity"`
	Subtotal  int64  `db:"subtotal" json:"subtotal"`
}

// Counter holds the last issued order number for a site
type Counter struct {
	SiteKey string `db:"site_key"`
	Current int64  `db:"current"`
}

// Product is a catalog entry, read-only to this service
type Product struct {
	ID          int64          `db:"id" json:"id"`
	SiteKey     string         `db:"site_key" json:"site_key"`
	ProductID   int64          `db:"product_id" json:"product_id"`
	Name        string         `db:"name" json:"name"`
	Price       int64          `db:"price" json:"price"`
	TaxIncluded bool           `db:"tax_included" json:"tax_included"`
	ImageURI    string         `db:"image_uri" json:"image_uri"`
	Description string         `db:"description" json:"description,omitempty"`
	SoldOut     bool           `db:"sold_out" json:"sold_out"`
	SectionID   sql.NullInt64  `db:"section_id" json:"section_id,omitempty"`
	SortIndex   int64          `db:"sort_index" json:"sort_index"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Section groups products for display
type Section struct {
	ID        int64  `db:"id" json:"id"`
	SiteKey   string `db:"site_key" json:"site_key"`
	Name      string `db:"name" json:"name"`
	SortIndex int64  `db:"sort_index" json:"sort_index"`
}

// SiteSettings carries the per-site flags editable by staff
type SiteSettings struct {
	SiteKey string `db:"site_key" json:"site_key"`
	IsOpen  bool   `db:"is_open" json:"is_open"`
}

// QRCode maps a printed code to its site
type QRCode struct {
	Code    string `db:"code" json:"code"`
	SiteKey string `db:"site_key" json:"site_key"`
	Active  bool   `db:"active" json:"active"`
}

// LedgerEntry tracks an order placed from one device, pending notification
type LedgerEntry struct {
	OrderNo     int64 `json:"order_no"`
	OrderID     int64 `json:"order_id"`
	Notified    bool  `json:"notified"`
	TotalItems  int   `json:"total_items"`
	WaitMinutes int   `json:"wait_minutes"`
}
