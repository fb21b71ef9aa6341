package service

import (
	"context"
	"fmt"
	"strings"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// CouponStore looks coupons up. Both methods return nil, nil when nothing matches.
type CouponStore interface {
	GetCouponByID(ctx context.Context, id string) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// DiscountResult is the server-computed discount for a subtotal
type DiscountResult struct {
	Amount decimal.Decimal
	Coupon *models.Coupon
}

// DiscountResolver is the only place discount amounts are computed
type DiscountResolver struct {
	coupons CouponStore
	logger  *zap.Logger
}

func NewDiscountResolver(coupons CouponStore) *DiscountResolver {
	return &DiscountResolver{
		coupons: coupons,
		logger:  util.GetLogger(),
	}
}

// Resolve finds the referenced coupon, by id then by code, and computes its
// discount against subtotal. A reference matching no coupon yields a zero
// discount rather than an error.
func (r *DiscountResolver) Resolve(ctx context.Context, subtotal decimal.Decimal, ref *models.CouponRef) (DiscountResult, error) {
	ctx, span := util.StartSpan(ctx, "DiscountResolver.Resolve")
	defer span.End()

	none := DiscountResult{Amount: decimal.Zero}
	if ref.Empty() {
		return none, nil
	}

	coupon, err := r.lookup(ctx, ref)
	if err != nil {
		return none, err
	}
	if coupon == nil {
		util.CouponLookupMissesTotal.Inc()
		r.logger.Info("Coupon not found, continuing at full price",
			zap.String("coupon_id", ref.ID),
			zap.String("coupon_code", ref.Code))
		return none, nil
	}

	amount := ComputeDiscount(coupon, subtotal)
	if amount.IsPositive() {
		util.DiscountsAppliedTotal.WithLabelValues(string(coupon.DiscountType)).Inc()
	}
	return DiscountResult{Amount: amount, Coupon: coupon}, nil
}

func (r *DiscountResolver) lookup(ctx context.Context, ref *models.CouponRef) (*models.Coupon, error) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		coupon, err := r.coupons.GetCouponByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup coupon by id: %w", err)
		}
		if coupon != nil {
			return coupon, nil
		}
	}
	if code := strings.TrimSpace(ref.Code); code != "" {
		coupon, err := r.coupons.GetCouponByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("lookup coupon by code: %w", err)
		}
		return coupon, nil
	}
	return nil, nil
}

// ComputeDiscount applies a coupon to subtotal. The result is never negative,
// never exceeds subtotal and is rounded half-up to cents.
func ComputeDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || !subtotal.IsPositive() || !coupon.DiscountValue.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountTypeFixed:
		amount = decimal.Min(coupon.DiscountValue, subtotal)
	case models.DiscountTypePercentage:
		amount = subtotal.Mul(coupon.DiscountValue).Div(hundred)
	default:
		util.GetLogger().Warn("Unknown discount type, ignoring coupon",
			zap.String("coupon_id", coupon.ID),
			zap.String("discount_type", string(coupon.DiscountType)))
		return decimal.Zero
	}

	return decimal.Min(amount, subtotal).Round(2)
}

// FinalTotal is max(0, round2(subtotal - discount))
func FinalTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Round(2)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
