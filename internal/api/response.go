package api

import (
	"time"

	"checkout-service/internal/models"
)

// orderResponse renders money as fixed two-decimal strings.
type orderResponse struct {
	ID             string              `json:"id"`
	BuyerID        string              `json:"buyerId"`
	EventID        string              `json:"eventId"`
	Status         string              `json:"status"`
	TotalAmount    string              `json:"totalAmount"`
	DiscountAmount string              `json:"discountAmount"`
	CouponID       *string             `json:"couponId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	Lines          []orderLineResponse `json:"lines"`
}

type orderLineResponse struct {
	ProductID      string  `json:"productId"`
	ProductType    string  `json:"productType"`
	Name           string  `json:"name"`
	Quantity       int     `json:"quantity"`
	Price          string  `json:"price"`
	LineTotal      string  `json:"lineTotal"`
	RoomTypeID     *string `json:"roomTypeId,omitempty"`
	BoothSubTypeID *string `json:"boothSubTypeId,omitempty"`
}

func newOrderResponse(o *models.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			ProductID:      l.ProductID,
			ProductType:    string(l.ProductType),
			Name:           l.Name,
			Quantity:       l.Quantity,
			Price:          l.Price.StringFixed(2),
			LineTotal:      l.LineTotal().StringFixed(2),
			RoomTypeID:     l.RoomTypeID,
			BoothSubTypeID: l.BoothSubTypeID,
		})
	}
	return orderResponse{
		ID:             o.ID,
		BuyerID:        o.BuyerID,
		EventID:        o.EventID,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount.StringFixed(2),
		DiscountAmount: o.DiscountAmount.StringFixed(2),
		CouponID:       o.CouponID,
		CreatedAt:      o.CreatedAt,
		Lines:          lines,
	}
}
