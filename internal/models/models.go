package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType is the inventory category of an order line
type ProductType string

const (
	ProductTypeTicket     ProductType = "TICKET"
	ProductTypeSponsor    ProductType = "SPONSOR"
	ProductTypeHotel      ProductType = "HOTEL"
	ProductTypeBooth      ProductType = "BOOTH"
	ProductTypeMembership ProductType = "MEMBERSHIP"
	ProductTypeProduct    ProductType = "PRODUCT"
)

// ParseProductType uppercases raw and falls back to PRODUCT for anything
// outside the known vocabulary.
func ParseProductType(raw string) ProductType {
	switch t := ProductType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case ProductTypeTicket, ProductTypeSponsor, ProductTypeHotel,
		ProductTypeBooth, ProductTypeMembership, ProductTypeProduct:
		return t
	default:
		return ProductTypeProduct
	}
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
)

// Order represents one checkout of a buyer against an event
type Order struct {
	ID             string          `db:"id" json:"id"`
	BuyerID        string          `db:"buyer_id" json:"buyerId"`
	EventID        string          `db:"event_id" json:"eventId"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discountAmount"`
	CouponID       *string         `db:"coupon_id" json:"couponId,omitempty"`
	Status         string          `db:"status" json:"status"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
	Lines          []OrderLine     `db:"-" json:"lines"`
}

// Subtotal sums price x quantity over the order lines
func (o *Order) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range o.Lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	return subtotal
}

// OrderLine is a single purchased product. Price is frozen at purchase time.
type OrderLine struct {
	ID             int64           `db:"id" json:"id"`
	OrderID        string          `db:"order_id" json:"orderId"`
	ProductID      string          `db:"product_id" json:"productId"`
	ProductType    ProductType     `db:"product_type" json:"productType"`
	Name           string          `db:"name" json:"name"`
	Quantity       int             `db:"quantity" json:"quantity"`
	Price          decimal.Decimal `db:"price" json:"price"`
	RoomTypeID     *string         `db:"room_type_id" json:"roomTypeId,omitempty"`
	BoothSubTypeID *string         `db:"booth_sub_type_id" json:"boothSubTypeId,omitempty"`
}

func (l OrderLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Label is the name used when reporting problems with the line
func (l OrderLine) Label() string {
	if l.Name != "" {
		return l.Name
	}
	return l.ProductID
}

// Discount types
type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "FIXED"
	DiscountTypePercentage DiscountType = "PERCENTAGE"
)

// Coupon is a discount rule resolvable by id or code
type Coupon struct {
	ID            string          `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	DiscountType  DiscountType    `db:"discount_type" json:"discountType"`
	DiscountValue decimal.Decimal `db:"discount_value" json:"discountValue"`
}

// CouponRef is the caller's reference to a coupon
type CouponRef struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

func (r *CouponRef) Empty() bool {
	return r == nil || (strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Code) == "")
}

// OutboxMessage is an event waiting to be relayed to the broker
type OutboxMessage struct {
	ID        int64      `db:"id"`
	EventID   string     `db:"event_id"`
	Topic     string     `db:"topic"`
	Key       string     `db:"key"`
	Payload   []byte     `db:"payload"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    *time.Time `db:"sent_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
