package worker

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

type OutboxStore interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

type Publisher interface {
	PublishRaw(ctx context.Context, key string, value []byte) error
}

// OutboxRelay moves committed outbox rows to Kafka. Delivery is at least
// once: a crash between publish and MarkOutboxSent republishes the message,
// and consumers dedupe by event id.
type OutboxRelay struct {
	store     OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

const (
	defaultRelayInterval  = 500 * time.Millisecond
	defaultRelayBatchSize = 100
)

func NewOutboxRelay(store OutboxStore, publisher Publisher, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	if batchSize < 1 {
		batchSize = defaultRelayBatchSize
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
	}
}

// Start polls until ctx is cancelled
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting outbox relay", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping outbox relay")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce publishes one batch in id order and returns how many were sent.
// It stops at the first failure so later events never overtake earlier ones.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	msgs, err := r.store.FetchPendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending outbox: %w", err)
	}

	sent := 0
	for _, msg := range msgs {
		if err := r.publisher.PublishRaw(ctx, msg.Key, msg.Payload); err != nil {
			util.OutboxPublishFailedTotal.Inc()
			return sent, fmt.Errorf("publish outbox %s: %w", msg.EventID, err)
		}
		if err := r.store.MarkOutboxSent(ctx, msg.ID); err != nil {
			return sent, fmt.Errorf("mark outbox %s sent: %w", msg.EventID, err)
		}
		util.OutboxPublishedTotal.Inc()
		sent++
	}

	if sent > 0 {
		r.logger.Debug("Relayed outbox messages", zap.Int("count", sent))
	}
	return sent, nil
}
