package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

const testEvent = "evt-1"

type fakeOutboxEntry struct {
	EventID string
	Topic   string
	Key     string
	Payload []byte
}

type fakeBooth struct {
	EventID   string
	Available bool
}

// fakeState is everything a transaction can see and change
type fakeState struct {
	orders     map[string]models.Order
	lines      map[string][]models.OrderLine
	stock      map[string]int
	booths     map[string]fakeBooth
	outbox     []fakeOutboxEntry
	nextLineID int64
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		orders:     make(map[string]models.Order, len(s.orders)),
		lines:      make(map[string][]models.OrderLine, len(s.lines)),
		stock:      make(map[string]int, len(s.stock)),
		booths:     make(map[string]fakeBooth, len(s.booths)),
		outbox:     append([]fakeOutboxEntry(nil), s.outbox...),
		nextLineID: s.nextLineID,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]models.OrderLine(nil), v...)
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.booths {
		c.booths[k] = v
	}
	return c
}

func stockKey(table, eventID, key string) string {
	return table + "|" + eventID + "|" + key
}

type fakeTxKey struct{}

// fakeRepo serializes transactions under one mutex and applies a
// transaction's copy of the state only when fn and the commit succeed.
type fakeRepo struct {
	mu        sync.Mutex
	committed *fakeState

	finalizeErr error
	conflicts   int
	txCount     int
	// deletedCoupons are coupon ids whose row is gone even if a cache still serves them
	deletedCoupons map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{committed: &fakeState{
		orders: map[string]models.Order{},
		lines:  map[string][]models.OrderLine{},
		stock:  map[string]int{},
		booths: map[string]fakeBooth{},
	}}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(fakeTxKey{}).(*fakeState); ok {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.txCount++
	st := r.committed.clone()
	if err := fn(context.WithValue(ctx, fakeTxKey{}, st)); err != nil {
		return err
	}
	if r.conflicts > 0 {
		r.conflicts--
		return fmt.Errorf("commit: %w", models.ErrTxConflict)
	}
	r.committed = st
	return nil
}

// view returns the transaction state in ctx, or the committed state with the lock held
func (r *fakeRepo) view(ctx context.Context) (*fakeState, func()) {
	if st, ok := ctx.Value(fakeTxKey{}).(*fakeState); ok {
		return st, func() {}
	}
	r.mu.Lock()
	return r.committed, r.mu.Unlock
}

func (r *fakeRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	st, done := r.view(ctx)
	defer done()

	if order.IdempotencyKey != nil {
		for _, o := range st.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return models.ErrDuplicateIdempotencyKey
			}
		}
	}
	stored := *order
	stored.Lines = nil
	st.orders[order.ID] = stored
	return nil
}

func (r *fakeRepo) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	st, done := r.view(ctx)
	defer done()

	st.nextLineID++
	line.ID = st.nextLineID
	st.lines[line.OrderID] = append(st.lines[line.OrderID], *line)
	return nil
}

func (r *fakeRepo) FinalizeOrder(ctx context.Context, order *models.Order) error {
	if r.finalizeErr != nil {
		return r.finalizeErr
	}
	st, done := r.view(ctx)
	defer done()

	stored, ok := st.orders[order.ID]
	if !ok || stored.Status != models.OrderStatusPending {
		return fmt.Errorf("finalize order %s: no pending order", order.ID)
	}
	if order.CouponID != nil && r.deletedCoupons[*order.CouponID] {
		return fmt.Errorf("finalize order %s: coupon_id foreign key violation", order.ID)
	}
	stored.Status = order.Status
	stored.TotalAmount = order.TotalAmount
	stored.DiscountAmount = order.DiscountAmount
	stored.CouponID = order.CouponID
	st.orders[order.ID] = stored
	return nil
}

func (r *fakeRepo) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	st, done := r.view(ctx)
	defer done()

	o, ok := st.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &o, nil
}

func (r *fakeRepo) GetOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	st, done := r.view(ctx)
	defer done()

	return append([]models.OrderLine{}, st.lines[orderID]...), nil
}

func (r *fakeRepo) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	st, done := r.view(ctx)
	defer done()

	for _, o := range st.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) LockCoupon(_ context.Context, id string) (bool, error) {
	return !r.deletedCoupons[id], nil
}

func (r *fakeRepo) EnqueueOutbox(ctx context.Context, eventID, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	st, done := r.view(ctx)
	defer done()

	st.outbox = append(st.outbox, fakeOutboxEntry{EventID: eventID, Topic: topic, Key: key, Payload: data})
	return nil
}

func (r *fakeRepo) setStock(table, key string, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed.stock[stockKey(table, testEvent, key)] = remaining
}

func (r *fakeRepo) stockLeft(table, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed.stock[stockKey(table, testEvent, key)]
}

func (r *fakeRepo) addBooth(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed.booths[id] = fakeBooth{EventID: testEvent, Available: true}
}

func (r *fakeRepo) boothAvailable(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed.booths[id].Available
}

func (r *fakeRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed.orders)
}

func (r *fakeRepo) outboxEntries() []fakeOutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fakeOutboxEntry(nil), r.committed.outbox...)
}

// fakeCountedLedger mirrors the conditional decrement of the SQL ledger
type fakeCountedLedger struct {
	repo   *fakeRepo
	table  string
	byRoom bool
}

func (l *fakeCountedLedger) Reserve(ctx context.Context, eventID string, line models.OrderLine) error {
	st, done := l.repo.view(ctx)
	defer done()

	if line.Quantity < 1 {
		return models.ErrInvalidQuantity
	}
	key := line.ProductID
	if l.byRoom {
		key = *line.RoomTypeID
	}
	k := stockKey(l.table, eventID, key)
	remaining, ok := st.stock[k]
	if !ok {
		return fmt.Errorf("%s: %w", line.Label(), models.ErrInventoryNotFound)
	}
	if remaining < line.Quantity {
		return fmt.Errorf("%s: %w", line.Label(), models.ErrInsufficientStock)
	}
	st.stock[k] = remaining - line.Quantity
	return nil
}

type fakeBoothLedger struct {
	repo *fakeRepo
}

func (l *fakeBoothLedger) Reserve(ctx context.Context, eventID string, line models.OrderLine) error {
	st, done := l.repo.view(ctx)
	defer done()

	if line.Quantity != 1 {
		return models.ErrInvalidQuantity
	}
	booth, ok := st.booths[*line.BoothSubTypeID]
	if !ok || booth.EventID != eventID {
		return models.ErrInventoryNotFound
	}
	if !booth.Available {
		return models.ErrInsufficientStock
	}
	booth.Available = false
	st.booths[*line.BoothSubTypeID] = booth
	return nil
}

func fakeLedgers(repo *fakeRepo) Ledgers {
	return Ledgers{
		models.ProductTypeTicket:  &fakeCountedLedger{repo: repo, table: "ticket_inventory"},
		models.ProductTypeSponsor: &fakeCountedLedger{repo: repo, table: "sponsor_inventory"},
		models.ProductTypeHotel:   &fakeCountedLedger{repo: repo, table: "hotel_room_inventory", byRoom: true},
		models.ProductTypeBooth:   &fakeBoothLedger{repo: repo},
	}
}

type fakeCoupons struct {
	mu     sync.Mutex
	byID   map[string]*models.Coupon
	err    error
	idHits int
}

func newFakeCoupons(coupons ...*models.Coupon) *fakeCoupons {
	f := &fakeCoupons{byID: map[string]*models.Coupon{}}
	for _, c := range coupons {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCoupons) GetCouponByID(_ context.Context, id string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idHits++
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeCoupons) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.byID {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, nil
}

func coupon(id, code string, t models.DiscountType, value string) *models.Coupon {
	return &models.Coupon{ID: id, Code: code, DiscountType: t, DiscountValue: decimal.RequireFromString(value)}
}

// fakeCatalog prices products by product id
type fakeCatalog struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (c *fakeCatalog) UnitPrice(_ context.Context, _ string, line models.OrderLine) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[line.ProductID]
	return p, ok, nil
}

func (c *fakeCatalog) set(productID, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[productID] = decimal.RequireFromString(price)
}

type fakeIdempotencyCache struct {
	mu   sync.Mutex
	keys map[string]string
}

func (c *fakeIdempotencyCache) GetOrderID(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key], nil
}

func (c *fakeIdempotencyCache) SetOrderID(_ context.Context, key, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = orderID
	return nil
}
