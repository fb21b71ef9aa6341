package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

const orderColumns = `id, buyer_id, event_id, total_amount, discount_amount, coupon_id, status,
	idempotency_key, created_at, updated_at`

const orderLineColumns = `id, order_id, product_id, product_type, name, quantity, price,
	room_type_id, booth_sub_type_id`

// CreateOrder inserts the PENDING placeholder row for a checkout
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, span := util.StartSpan(ctx, "Store.CreateOrder")
	defer span.End()

	query := `
		INSERT INTO orders (id, buyer_id, event_id, total_amount, discount_amount, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := s.conn(ctx).GetContext(ctx, order, query,
		order.ID, order.BuyerID, order.EventID, order.TotalAmount, order.DiscountAmount,
		order.Status, order.IdempotencyKey)
	if isUniqueViolation(err) {
		return models.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", mapError(err))
	}
	return nil
}

// FinalizeOrder moves a PENDING order to its final state with computed totals
func (s *Store) FinalizeOrder(ctx context.Context, order *models.Order) error {
	ctx, span := util.StartSpan(ctx, "Store.FinalizeOrder")
	defer span.End()

	query := `
		UPDATE orders
		SET status = $1, total_amount = $2, discount_amount = $3, coupon_id = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
		RETURNING updated_at`

	err := s.conn(ctx).GetContext(ctx, &order.UpdatedAt, query,
		order.Status, order.TotalAmount, order.DiscountAmount, order.CouponID,
		order.ID, models.OrderStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("finalize order %s: no pending order", order.ID)
	}
	if err != nil {
		return fmt.Errorf("finalize order %s: %w", order.ID, mapError(err))
	}
	return nil
}

// GetOrderByID retrieves an order without its lines
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey returns nil when no order carries the key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.conn(ctx).GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrderLine inserts a line and fills in its generated id
func (s *Store) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	query := `
		INSERT INTO order_lines (order_id, product_id, product_type, name, quantity, price, room_type_id, booth_sub_type_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := s.conn(ctx).GetContext(ctx, &line.ID, query,
		line.OrderID, line.ProductID, line.ProductType, line.Name, line.Quantity, line.Price,
		line.RoomTypeID, line.BoothSubTypeID)
	if err != nil {
		return fmt.Errorf("insert order line %s: %w", line.ProductID, mapError(err))
	}
	return nil
}

// GetOrderLines retrieves the lines of an order in insertion order
func (s *Store) GetOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	lines := []models.OrderLine{}
	err := s.conn(ctx).SelectContext(ctx, &lines,
		"SELECT "+orderLineColumns+" FROM order_lines WHERE order_id = $1 ORDER BY id", orderID)
	return lines, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.conn(ctx).GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
