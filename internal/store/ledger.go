package store

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

// CountedLedger reserves units from a table holding an integer remaining
// count per (event_id, key) row. The decrement is a single conditional
// UPDATE, so concurrent reservations never drive remaining below zero and
// no row lock is held longer than the enclosing transaction needs it.
type CountedLedger struct {
	store     *Store
	table     string
	keyColumn string
	keyOf     func(models.OrderLine) string
}

func NewTicketLedger(s *Store) *CountedLedger {
	return &CountedLedger{store: s, table: "ticket_inventory", keyColumn: "product_id", keyOf: productKey}
}

func NewSponsorLedger(s *Store) *CountedLedger {
	return &CountedLedger{store: s, table: "sponsor_inventory", keyColumn: "product_id", keyOf: productKey}
}

func NewHotelLedger(s *Store) *CountedLedger {
	return &CountedLedger{store: s, table: "hotel_room_inventory", keyColumn: "room_type_id", keyOf: roomTypeKey}
}

func productKey(l models.OrderLine) string { return l.ProductID }

func roomTypeKey(l models.OrderLine) string {
	if l.RoomTypeID == nil {
		return ""
	}
	return *l.RoomTypeID
}

// Reserve decrements remaining by line.Quantity within the transaction in ctx
func (l *CountedLedger) Reserve(ctx context.Context, eventID string, line models.OrderLine) error {
	ctx, span := util.StartSpan(ctx, "CountedLedger.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.WithLabelValues(string(line.ProductType)).Observe(time.Since(start).Seconds())
	}()

	if line.Quantity < 1 {
		return fmt.Errorf("%s: %w", line.Label(), models.ErrInvalidQuantity)
	}
	key := l.keyOf(line)

	query := fmt.Sprintf(`
		UPDATE %s SET remaining = remaining - $1, updated_at = NOW()
		WHERE event_id = $2 AND %s = $3 AND remaining >= $1`, l.table, l.keyColumn)

	res, err := l.store.conn(ctx).ExecContext(ctx, query, line.Quantity, eventID, key)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", line.Label(), mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", line.Label(), err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE event_id = $1 AND %s = $2)`, l.table, l.keyColumn)
	if err := l.store.conn(ctx).GetContext(ctx, &exists, existsQuery, eventID, key); err != nil {
		return fmt.Errorf("reserve %s: %w", line.Label(), mapError(err))
	}
	if !exists {
		return fmt.Errorf("%s: %w", line.Label(), models.ErrInventoryNotFound)
	}
	return fmt.Errorf("%s: %w", line.Label(), models.ErrInsufficientStock)
}

// BoothLedger sells single booth sub-units by flipping is_available
type BoothLedger struct {
	store *Store
}

func NewBoothLedger(s *Store) *BoothLedger {
	return &BoothLedger{store: s}
}

func (l *BoothLedger) Reserve(ctx context.Context, eventID string, line models.OrderLine) error {
	ctx, span := util.StartSpan(ctx, "BoothLedger.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.WithLabelValues(string(models.ProductTypeBooth)).Observe(time.Since(start).Seconds())
	}()

	if line.Quantity != 1 {
		return fmt.Errorf("%s: booth quantity must be 1, got %d: %w", line.Label(), line.Quantity, models.ErrInvalidQuantity)
	}
	if line.BoothSubTypeID == nil {
		return fmt.Errorf("%s: %w", line.Label(), models.ErrInventoryNotFound)
	}
	id := *line.BoothSubTypeID

	res, err := l.store.conn(ctx).ExecContext(ctx, `
		UPDATE booth_sub_types SET is_available = FALSE, updated_at = NOW()
		WHERE id = $1 AND event_id = $2 AND is_available`, id, eventID)
	if err != nil {
		return fmt.Errorf("reserve booth %s: %w", line.Label(), mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve booth %s: %w", line.Label(), err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := l.store.conn(ctx).GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM booth_sub_types WHERE id = $1 AND event_id = $2)`, id, eventID); err != nil {
		return fmt.Errorf("reserve booth %s: %w", line.Label(), mapError(err))
	}
	if !exists {
		return fmt.Errorf("%s: %w", line.Label(), models.ErrInventoryNotFound)
	}
	return fmt.Errorf("%s: booth already sold: %w", line.Label(), models.ErrInsufficientStock)
}
