package service

import (
	"context"
	"testing"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiscount(t *testing.T) {
	cases := []struct {
		name     string
		coupon   *models.Coupon
		subtotal string
		want     string
	}{
		{"fixed", coupon("c", "C", models.DiscountTypeFixed, "30"), "100.00", "30.00"},
		{"fixed above subtotal", coupon("c", "C", models.DiscountTypeFixed, "50"), "10.00", "10.00"},
		{"percentage", coupon("c", "C", models.DiscountTypePercentage, "15"), "100.00", "15.00"},
		{"percentage rounds half up", coupon("c", "C", models.DiscountTypePercentage, "10"), "0.25", "0.03"},
		{"percentage over hundred capped", coupon("c", "C", models.DiscountTypePercentage, "150"), "80", "80"},
		{"zero subtotal", coupon("c", "C", models.DiscountTypeFixed, "30"), "0", "0"},
		{"unknown type", coupon("c", "C", models.DiscountType("BOGO"), "30"), "100", "0"},
		{"nil coupon", nil, "100", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiscount(tc.coupon, decimal.RequireFromString(tc.subtotal))
			assertMoney(t, tc.want, got)
		})
	}
}

func TestFinalTotal(t *testing.T) {
	assertMoney(t, "70.00", FinalTotal(decimal.RequireFromString("100"), decimal.RequireFromString("30")))
	assertMoney(t, "0", FinalTotal(decimal.RequireFromString("10"), decimal.RequireFromString("10")))
	assertMoney(t, "0", FinalTotal(decimal.RequireFromString("10"), decimal.RequireFromString("12")))
	assertMoney(t, "33.34", FinalTotal(decimal.RequireFromString("33.335"), decimal.Zero))
}

func TestDiscountResolver_LooksUpByIDThenCode(t *testing.T) {
	coupons := newFakeCoupons(coupon("cpn-1", "SAVE30", models.DiscountTypeFixed, "30"))
	r := NewDiscountResolver(coupons)

	res, err := r.Resolve(context.Background(), decimal.NewFromInt(100), &models.CouponRef{ID: "cpn-1", Code: "OTHER"})
	require.NoError(t, err)
	require.NotNil(t, res.Coupon)
	assert.Equal(t, "cpn-1", res.Coupon.ID)

	res, err = r.Resolve(context.Background(), decimal.NewFromInt(100), &models.CouponRef{Code: "SAVE30"})
	require.NoError(t, err)
	require.NotNil(t, res.Coupon)
	assertMoney(t, "30", res.Amount)
	assert.Equal(t, 1, coupons.idHits)

	res, err = r.Resolve(context.Background(), decimal.NewFromInt(100), &models.CouponRef{})
	require.NoError(t, err)
	assert.Nil(t, res.Coupon)
	assertMoney(t, "0", res.Amount)
	assert.Equal(t, 1, coupons.idHits)
}
