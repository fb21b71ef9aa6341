package service

import (
	"context"

	"checkout-service/internal/models"
)

// Ledger checks and consumes stock for one order line inside the
// transaction carried by ctx. Implementations return models.ErrInsufficientStock
// when stock is short, models.ErrInventoryNotFound when the product has no
// inventory record and models.ErrInvalidQuantity for nonsensical quantities.
type Ledger interface {
	Reserve(ctx context.Context, eventID string, line models.OrderLine) error
}

type noInventory struct{}

func (noInventory) Reserve(context.Context, string, models.OrderLine) error { return nil }

// NoInventory is the ledger for products without stock (memberships and
// generic products). Reserving always succeeds.
var NoInventory Ledger = noInventory{}

// Ledgers dispatches order lines to the ledger for their product type
type Ledgers map[models.ProductType]Ledger

// For returns the ledger for t. ok is false for a stocked product type
// with no ledger registered.
func (l Ledgers) For(t models.ProductType) (Ledger, bool) {
	if lg, ok := l[t]; ok {
		return lg, true
	}
	switch t {
	case models.ProductTypeMembership, models.ProductTypeProduct:
		return NoInventory, true
	}
	return nil, false
}
