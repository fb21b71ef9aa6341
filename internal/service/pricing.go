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

// PricePolicy decides what happens when a cart price differs from the catalog
type PricePolicy string

const (
	// PricePolicyReject fails the checkout on any mismatch
	PricePolicyReject PricePolicy = "reject"
	// PricePolicyCorrect replaces the submitted price with the catalog price
	PricePolicyCorrect PricePolicy = "correct"
	// PricePolicyTrust keeps the submitted price
	PricePolicyTrust PricePolicy = "trust"
)

func ParsePricePolicy(s string) (PricePolicy, error) {
	switch p := PricePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PricePolicyReject, PricePolicyCorrect, PricePolicyTrust:
		return p, nil
	case "":
		return PricePolicyReject, nil
	default:
		return "", fmt.Errorf("unknown price policy %q", s)
	}
}

// PriceCatalog reports the current unit price of the product on a line.
// found is false when the catalog has no price for it.
type PriceCatalog interface {
	UnitPrice(ctx context.Context, eventID string, line models.OrderLine) (price decimal.Decimal, found bool, err error)
}

type priceVerifier struct {
	catalog PriceCatalog
	policy  PricePolicy
	logger  *zap.Logger
}

// verify checks line.Price against the catalog and, under the correct
// policy, overwrites it.
func (v *priceVerifier) verify(ctx context.Context, eventID string, line *models.OrderLine) error {
	if v.catalog == nil || v.policy == PricePolicyTrust {
		return nil
	}

	price, found, err := v.catalog.UnitPrice(ctx, eventID, *line)
	if err != nil {
		return err
	}
	if !found || price.Equal(line.Price) {
		return nil
	}

	util.PriceMismatchesTotal.WithLabelValues(string(v.policy)).Inc()

	if v.policy == PricePolicyCorrect {
		v.logger.Warn("Cart price differs from catalog, using catalog price",
			zap.String("event_id", eventID),
			zap.String("product", line.Label()),
			zap.String("submitted", line.Price.StringFixed(2)),
			zap.String("catalog", price.StringFixed(2)))
		line.Price = price
		return nil
	}

	return validationError(line.Label(), "price of %s changed from %s to %s, please review your cart",
		line.Label(), line.Price.StringFixed(2), price.StringFixed(2))
}
