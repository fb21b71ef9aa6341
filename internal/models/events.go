package models

import "time"

// Event types
const (
	EventTypeOrderCompleted = "ORDER_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCompletedEvent is written to the outbox when a checkout commits.
// It carries the full order so downstream consumers (invoicing) need no lookup.
type OrderCompletedEvent struct {
	BaseEvent
	Order Order `json:"order"`
}
