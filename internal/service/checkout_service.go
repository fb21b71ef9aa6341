package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutRepository is the transactional store behind a checkout. Methods
// called with the context passed to WithTx's fn run in that transaction.
type CheckoutRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLine(ctx context.Context, line *models.OrderLine) error
	FinalizeOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	EnqueueOutbox(ctx context.Context, eventID, topic, key string, payload interface{}) error
	// LockCoupon reports whether the coupon row still exists and pins it
	// for the rest of the transaction.
	LockCoupon(ctx context.Context, id string) (bool, error)
}

// IdempotencyCache remembers which order answered an idempotency key.
// GetOrderID returns "" on a miss.
type IdempotencyCache interface {
	GetOrderID(ctx context.Context, key string) (string, error)
	SetOrderID(ctx context.Context, key, orderID string) error
}

type CheckoutConfig struct {
	MaxAttempts int
	PricePolicy PricePolicy
	EventsTopic string
}

// CheckoutService turns a cart into a completed order in one transaction
type CheckoutService struct {
	repo        CheckoutRepository
	ledgers     Ledgers
	discounts   *DiscountResolver
	prices      *priceVerifier
	idempotency IdempotencyCache
	cfg         CheckoutConfig
	logger      *zap.Logger
}

// NewCheckoutService creates a checkout service. catalog and idempotency may be nil.
func NewCheckoutService(
	repo CheckoutRepository,
	ledgers Ledgers,
	discounts *DiscountResolver,
	catalog PriceCatalog,
	idempotency IdempotencyCache,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PricePolicy == "" {
		cfg.PricePolicy = PricePolicyReject
	}
	logger := util.GetLogger()
	return &CheckoutService{
		repo:        repo,
		ledgers:     ledgers,
		discounts:   discounts,
		prices:      &priceVerifier{catalog: catalog, policy: cfg.PricePolicy, logger: logger},
		idempotency: idempotency,
		cfg:         cfg,
		logger:      logger,
	}
}

// CheckoutRequest is a buyer's cart for one event
type CheckoutRequest struct {
	EventID        string            `json:"-"`
	BuyerID        string            `json:"companyId" binding:"required"`
	CartItems      []CartItem        `json:"cartItems" binding:"required,min=1"`
	Coupon         *models.CouponRef `json:"coupon,omitempty"`
	IdempotencyKey string            `json:"-"`
}

type CheckoutResult struct {
	Order *models.Order
	// Replayed is set when the order was created by an earlier request
	// carrying the same idempotency key.
	Replayed bool
}

// Checkout validates the cart, reserves stock for every line, prices the
// order and persists it as COMPLETED. Either everything commits or nothing
// does. Every error returned is a *CheckoutError.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := s.checkout(ctx, req)
	if err != nil {
		var ce *CheckoutError
		if !errors.As(err, &ce) {
			ce = infrastructureError(err)
		}
		s.recordFailure(req, ce)
		return nil, ce
	}
	return res, nil
}

func (s *CheckoutService) checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.BuyerID = strings.TrimSpace(req.BuyerID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	if req.EventID == "" {
		return nil, validationError("", "event id is required")
	}
	if req.BuyerID == "" {
		return nil, validationError("", "companyId is required")
	}

	lines, err := Normalize(req.CartItems)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(ctx, req, existing)
		}
	}

	var order *models.Order
	for attempt := 1; ; attempt++ {
		order, err = s.attempt(ctx, req, lines)
		if err == nil {
			break
		}
		if errors.Is(err, models.ErrDuplicateIdempotencyKey) {
			// A concurrent request with the same key committed first.
			existing, lookupErr := s.repo.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing == nil {
				return nil, err
			}
			return s.replay(ctx, req, existing)
		}
		if errors.Is(err, models.ErrTxConflict) && attempt < s.cfg.MaxAttempts && ctx.Err() == nil {
			util.CheckoutRetriesTotal.Inc()
			s.logger.Warn("Checkout transaction conflict, retrying",
				zap.String("event_id", req.EventID),
				zap.String("buyer_id", req.BuyerID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetOrderID(ctx, req.IdempotencyKey, order.ID); err != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	util.CheckoutsCompletedTotal.Inc()
	s.logger.Info("Checkout completed",
		zap.String("order_id", order.ID),
		zap.String("event_id", order.EventID),
		zap.String("buyer_id", order.BuyerID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.String("discount_amount", order.DiscountAmount.StringFixed(2)))

	return &CheckoutResult{Order: order}, nil
}

// attempt runs the whole checkout in one transaction. Business failures come
// back as *CheckoutError; anything else is a store error.
func (s *CheckoutService) attempt(ctx context.Context, req *CheckoutRequest, lines []models.OrderLine) (*models.Order, error) {
	var order *models.Order

	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		order = &models.Order{
			ID:             uuid.New().String(),
			BuyerID:        req.BuyerID,
			EventID:        req.EventID,
			TotalAmount:    decimal.Zero,
			DiscountAmount: decimal.Zero,
			Status:         models.OrderStatusPending,
			Lines:          make([]models.OrderLine, 0, len(lines)),
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			order.IdempotencyKey = &key
		}

		if err := s.repo.CreateOrder(ctx, order); err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, line := range lines {
			line.OrderID = order.ID

			if err := s.prices.verify(ctx, req.EventID, &line); err != nil {
				return err
			}

			ledger, ok := s.ledgers.For(line.ProductType)
			if !ok {
				return fmt.Errorf("no inventory ledger for product type %s", line.ProductType)
			}
			if err := ledger.Reserve(ctx, req.EventID, line); err != nil {
				return s.reservationError(req.EventID, line, err)
			}

			if err := s.repo.CreateOrderLine(ctx, &line); err != nil {
				return err
			}
			subtotal = subtotal.Add(line.LineTotal())
			order.Lines = append(order.Lines, line)
		}

		discount, err := s.discounts.Resolve(ctx, subtotal, req.Coupon)
		if err != nil {
			return err
		}
		if discount, err = s.confirmCoupon(ctx, req, discount); err != nil {
			return err
		}

		order.DiscountAmount = discount.Amount
		order.TotalAmount = FinalTotal(subtotal, discount.Amount)
		if discount.Coupon != nil {
			couponID := discount.Coupon.ID
			order.CouponID = &couponID
		}
		order.Status = models.OrderStatusCompleted

		if err := s.repo.FinalizeOrder(ctx, order); err != nil {
			return err
		}

		event := models.OrderCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCompleted,
				Timestamp: time.Now().UTC(),
			},
			Order: *order,
		}
		return s.repo.EnqueueOutbox(ctx, event.EventID, s.cfg.EventsTopic, "order-"+order.ID, event)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// confirmCoupon re-checks a resolved coupon against the store inside the
// transaction. Coupons can come from a cache and outlive their row; one that
// is gone is treated like any unknown coupon.
func (s *CheckoutService) confirmCoupon(ctx context.Context, req *CheckoutRequest, discount DiscountResult) (DiscountResult, error) {
	if discount.Coupon == nil {
		return discount, nil
	}
	ok, err := s.repo.LockCoupon(ctx, discount.Coupon.ID)
	if err != nil {
		return discount, fmt.Errorf("lock coupon %s: %w", discount.Coupon.ID, err)
	}
	if ok {
		return discount, nil
	}

	util.CouponLookupMissesTotal.Inc()
	s.logger.Info("Coupon no longer exists, continuing at full price",
		zap.String("event_id", req.EventID),
		zap.String("coupon_id", discount.Coupon.ID))
	return DiscountResult{Amount: decimal.Zero}, nil
}

// reservationError converts a ledger failure into the caller-facing error.
// Store failures pass through so conflicts can be retried.
func (s *CheckoutService) reservationError(eventID string, line models.OrderLine, err error) error {
	var kind error
	var reason, metricReason string

	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		kind, metricReason = ErrInsufficientStock, "insufficient_stock"
		if line.ProductType == models.ProductTypeBooth {
			reason = fmt.Sprintf("%s is no longer available", line.Label())
		} else {
			reason = fmt.Sprintf("not enough stock for %s (requested %d)", line.Label(), line.Quantity)
		}
	case errors.Is(err, models.ErrInvalidQuantity):
		kind, metricReason = ErrInvalidRequest, "invalid_quantity"
		reason = fmt.Sprintf("invalid quantity %d for %s", line.Quantity, line.Label())
	case errors.Is(err, models.ErrInventoryNotFound):
		kind, metricReason = ErrInvalidRequest, "not_found"
		reason = fmt.Sprintf("%s is not offered for this event", line.Label())
	default:
		util.InventoryReservationsFailed.WithLabelValues(string(line.ProductType), "error").Inc()
		return err
	}

	util.InventoryReservationsFailed.WithLabelValues(string(line.ProductType), metricReason).Inc()
	s.logger.Info("Reservation rejected",
		zap.String("event_id", eventID),
		zap.String("product", line.Label()),
		zap.String("product_type", string(line.ProductType)),
		zap.Int("quantity", line.Quantity),
		zap.String("reason", metricReason))

	return &CheckoutError{Kind: kind, Product: line.Label(), Reason: reason, Err: err}
}

func (s *CheckoutService) findByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if s.idempotency != nil {
		orderID, err := s.idempotency.GetOrderID(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency cache lookup failed", zap.Error(err))
		} else if orderID != "" {
			order, err := s.repo.GetOrderByID(ctx, orderID)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, models.ErrOrderNotFound) {
				return nil, err
			}
		}
	}
	return s.repo.GetOrderByIdempotencyKey(ctx, key)
}

func (s *CheckoutService) replay(ctx context.Context, req *CheckoutRequest, existing *models.Order) (*CheckoutResult, error) {
	if existing.BuyerID != req.BuyerID || existing.EventID != req.EventID {
		return nil, &CheckoutError{
			Kind:   ErrIdempotencyConflict,
			Reason: "idempotency key was already used for a different checkout",
		}
	}

	lines, err := s.repo.GetOrderLines(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	existing.Lines = lines

	util.CheckoutReplaysTotal.Inc()
	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("order_id", existing.ID))
	return &CheckoutResult{Order: existing, Replayed: true}, nil
}

func (s *CheckoutService) recordFailure(req *CheckoutRequest, ce *CheckoutError) {
	reason := "infrastructure"
	switch {
	case errors.Is(ce, ErrValidation):
		reason = "validation"
	case errors.Is(ce, ErrInsufficientStock):
		reason = "insufficient_stock"
	case errors.Is(ce, ErrInvalidRequest):
		reason = "invalid_request"
	case errors.Is(ce, ErrIdempotencyConflict):
		reason = "idempotency_conflict"
	}
	util.CheckoutsFailedTotal.WithLabelValues(reason).Inc()

	fields := []zap.Field{
		zap.String("event_id", req.EventID),
		zap.String("buyer_id", req.BuyerID),
		zap.String("reason", reason),
		zap.Error(ce),
	}
	if ce.ClientAttributable() {
		s.logger.Info("Checkout rejected", fields...)
		return
	}
	s.logger.Error("Checkout failed", fields...)
}

// GetOrder retrieves an order with its lines
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return order, nil
}
