package worker

import (
	"context"
	"fmt"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// InvoiceRenderer produces the invoice for a completed order
type InvoiceRenderer interface {
	Render(ctx context.Context, order *models.Order) error
}

type ProcessedEventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// InvoiceWorker hands every completed order to the invoice renderer once
type InvoiceWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	processed    ProcessedEventStore
	renderer     InvoiceRenderer
	logger       *zap.Logger
}

// NewInvoiceWorker creates a new invoice worker
func NewInvoiceWorker(consumer *broker.Consumer, processed ProcessedEventStore, renderer InvoiceRenderer) *InvoiceWorker {
	w := &InvoiceWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		processed:    processed,
		renderer:     renderer,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnOrderCompleted(w.HandleOrderCompleted)
	return w
}

// Start starts the worker
func (w *InvoiceWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting invoice worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *InvoiceWorker) Stop() error {
	w.logger.Info("Stopping invoice worker")
	return w.consumer.Close()
}

// HandleOrderCompleted renders the invoice unless the event was seen before
func (w *InvoiceWorker) HandleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	done, err := w.processed.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("check processed event %s: %w", event.EventID, err)
	}
	if done {
		w.logger.Debug("Skipping already processed event", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.renderer.Render(ctx, &event.Order); err != nil {
		return fmt.Errorf("render invoice for order %s: %w", event.Order.ID, err)
	}
	util.InvoicesRenderedTotal.Inc()

	return w.processed.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// LogInvoiceRenderer writes an invoice summary to the log. Document layout
// belongs to the invoicing system.
type LogInvoiceRenderer struct {
	logger *zap.Logger
}

func NewLogInvoiceRenderer() *LogInvoiceRenderer {
	return &LogInvoiceRenderer{logger: util.GetLogger()}
}

func (r *LogInvoiceRenderer) Render(_ context.Context, order *models.Order) error {
	items := make([]string, 0, len(order.Lines))
	for _, l := range order.Lines {
		items = append(items, fmt.Sprintf("%dx %s @ %s", l.Quantity, l.Label(), l.Price.StringFixed(2)))
	}
	r.logger.Info("Invoice issued",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("event_id", order.EventID),
		zap.Strings("items", items),
		zap.String("subtotal", order.Subtotal().StringFixed(2)),
		zap.String("discount_amount", order.DiscountAmount.StringFixed(2)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return nil
}
