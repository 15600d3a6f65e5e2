package store

import (
	"context"
	"database/sql"
	"fmt"

	"kiosk-service/internal/models"
)

// CreateOrder inserts a new order with its items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (site_key, order_no, total_items, total_price, is_comp, notification_target, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = tx.GetContext(ctx, order, query,
		order.SiteKey, order.OrderNo, order.TotalItems, order.TotalPrice,
		order.IsComp, order.NotificationTarget, order.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, name, price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.GetContext(ctx, &item.ID, itemQuery,
			item.OrderID, item.ProductID, item.Name, item.Price, item.Quantity, item.Subtotal); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNo retrieves an order by its site-scoped number
func (s *Store) GetOrderByNo(ctx context.Context, siteKey string, orderNo int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE site_key = $1 AND order_no = $2", siteKey, orderNo)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil when absent
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, siteKey, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE site_key = $1 AND idempotency_key = $2", siteKey, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetActiveOrders retrieves incomplete orders for a site, ascending by order number
func (s *Store) GetActiveOrders(ctx context.Context, siteKey string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE site_key = $1 AND is_comp = FALSE ORDER BY order_no", siteKey)
	return orders, err
}

// CompleteOrder transitions an order to complete. The transition is one-way:
// an already complete order is left untouched and reported via the bool.
func (s *Store) CompleteOrder(ctx context.Context, siteKey string, orderNo int64) (*models.Order, bool, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET is_comp = TRUE, completed_at = NOW()
		WHERE site_key = $1 AND order_no = $2 AND is_comp = FALSE
		RETURNING *`, siteKey, orderNo)
	if err == sql.ErrNoRows {
		existing, getErr := s.GetOrderByNo(ctx, siteKey, orderNo)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &order, true, nil
}

func (s *Store) loadItems(ctx context.Context, order *models.Order) error {
	return s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", order.ID)
}
