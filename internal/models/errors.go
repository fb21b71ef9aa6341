package models

import "errors"

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrInventoryNotFound       = errors.New("inventory record not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	// ErrTxConflict marks a deadlock or serialization failure. The
	// transaction had no effect and may be run again.
	ErrTxConflict = errors.New("transaction conflict")
)
