package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// UnitPrice looks up the current catalog price of the product on a line.
// found is false for PRODUCT lines and for products the catalog does not list.
func (s *Store) UnitPrice(ctx context.Context, eventID string, line models.OrderLine) (decimal.Decimal, bool, error) {
	var (
		query string
		args  []interface{}
	)

	switch line.ProductType {
	case models.ProductTypeTicket:
		query = `SELECT unit_price FROM ticket_inventory WHERE event_id = $1 AND product_id = $2`
		args = []interface{}{eventID, line.ProductID}
	case models.ProductTypeSponsor:
		query = `SELECT unit_price FROM sponsor_inventory WHERE event_id = $1 AND product_id = $2`
		args = []interface{}{eventID, line.ProductID}
	case models.ProductTypeHotel:
		query = `SELECT unit_price FROM hotel_room_inventory WHERE event_id = $1 AND room_type_id = $2`
		args = []interface{}{eventID, roomTypeKey(line)}
	case models.ProductTypeBooth:
		if line.BoothSubTypeID == nil {
			return decimal.Zero, false, nil
		}
		query = `SELECT unit_price FROM booth_sub_types WHERE event_id = $1 AND id = $2`
		args = []interface{}{eventID, *line.BoothSubTypeID}
	case models.ProductTypeMembership:
		query = `SELECT price FROM membership_plans WHERE id = $1`
		args = []interface{}{line.ProductID}
	default:
		return decimal.Zero, false, nil
	}

	var price decimal.Decimal
	err := s.conn(ctx).GetContext(ctx, &price, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("catalog price for %s: %w", line.Label(), mapError(err))
	}
	return price, true, nil
}
