package service

import (
	"strings"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// CartItem is one entry of the submitted cart
type CartItem struct {
	ProductID      string          `json:"productId"`
	ProductType    string          `json:"productType"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Name           string          `json:"name"`
	RoomTypeID     string          `json:"roomTypeId,omitempty"`
	BoothSubTypeID string          `json:"boothSubTypeId,omitempty"`
}

// Normalize turns cart items into order lines. Unknown product types become
// PRODUCT. Any invalid item fails the whole cart with a validation error
// naming that item.
func Normalize(items []CartItem) ([]models.OrderLine, error) {
	if len(items) == 0 {
		return nil, validationError("", "cart is empty")
	}

	lines := make([]models.OrderLine, 0, len(items))
	for i, item := range items {
		line := models.OrderLine{
			ProductID:   strings.TrimSpace(item.ProductID),
			ProductType: models.ParseProductType(item.ProductType),
			Name:        strings.TrimSpace(item.Name),
			Quantity:    item.Quantity,
			Price:       item.Price,
		}
		label := line.Label()

		if line.ProductID == "" {
			return nil, validationError(label, "cart item %d (%s): productId is required", i+1, label)
		}
		if line.Quantity < 1 {
			return nil, validationError(label, "cart item %d (%s): quantity must be at least 1", i+1, label)
		}
		if line.Price.IsNegative() {
			return nil, validationError(label, "cart item %d (%s): price must not be negative", i+1, label)
		}
		if !line.Price.Equal(line.Price.Round(2)) {
			return nil, validationError(label, "cart item %d (%s): price must have at most 2 decimal places", i+1, label)
		}

		switch line.ProductType {
		case models.ProductTypeHotel:
			id := strings.TrimSpace(item.RoomTypeID)
			if id == "" {
				return nil, validationError(label, "cart item %d (%s): hotel booking requires roomTypeId", i+1, label)
			}
			line.RoomTypeID = &id
		case models.ProductTypeBooth:
			id := strings.TrimSpace(item.BoothSubTypeID)
			if id == "" {
				return nil, validationError(label, "cart item %d (%s): booth booking requires boothSubTypeId", i+1, label)
			}
			line.BoothSubTypeID = &id
		}

		lines = append(lines, line)
	}
	return lines, nil
}
