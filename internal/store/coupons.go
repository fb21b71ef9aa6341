package store

import (
	"context"
	"database/sql"
	"errors"

	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

// GetCouponByID returns nil when no coupon has the id
func (s *Store) GetCouponByID(ctx context.Context, id string) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "Store.GetCouponByID")
	defer span.End()

	return s.getCoupon(ctx, "SELECT id, code, discount_type, discount_value FROM coupons WHERE id = $1", id)
}

// GetCouponByCode returns nil when no coupon has the code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "Store.GetCouponByCode")
	defer span.End()

	return s.getCoupon(ctx, "SELECT id, code, discount_type, discount_value FROM coupons WHERE code = $1", code)
}

// LockCoupon reports whether the coupon still exists and, inside a
// transaction, holds a key-share lock on it so it cannot be deleted before
// the order referencing it commits.
func (s *Store) LockCoupon(ctx context.Context, id string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "Store.LockCoupon")
	defer span.End()

	var found string
	err := s.conn(ctx).GetContext(ctx, &found, "SELECT id FROM coupons WHERE id = $1 FOR KEY SHARE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

func (s *Store) getCoupon(ctx context.Context, query, arg string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.conn(ctx).GetContext(ctx, &coupon, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &coupon, nil
}
