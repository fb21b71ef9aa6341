package store

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/internal/models"
)

// EnqueueOutbox records an event for the relay. Called inside the checkout
// transaction so the event exists exactly when the order does.
func (s *Store) EnqueueOutbox(ctx context.Context, eventID, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		eventID, topic, key, data)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", eventID, mapError(err))
	}
	return nil
}

// FetchPendingOutbox returns unsent messages oldest first
func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	var out []models.OutboxMessage
	err := s.conn(ctx).SelectContext(ctx, &out, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	return out, err
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := s.conn(ctx).ExecContext(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id)
	return err
}
