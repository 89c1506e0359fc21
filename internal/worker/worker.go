// Package worker consumes decision events and keeps running totals.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/govguard/internal/bus"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/tally"
)

// Worker records every published decision into a tally store.
type Worker struct {
	bus   domain.EventBus
	store tally.Store

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	recorded atomic.Int64
	rejected atomic.Int64
}

// NewWorker creates a new tally worker.
func NewWorker(eventBus domain.EventBus, store tally.Store) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    eventBus,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the decision topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicDecision, w.handleDecision)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("tally worker started",
		"topic", domain.TopicDecision,
	)
	return nil
}

// handleDecision records one decision event. Malformed events are logged
// and dropped so they never reach the totals.
func (w *Worker) handleDecision(ctx context.Context, msg *domain.Message) error {
	event, err := bus.DecodeDecision(msg.Payload)
	if err != nil {
		w.rejected.Add(1)
		slog.Warn("dropping malformed decision event",
			"message_id", msg.ID,
			"error", err,
		)
		return nil
	}

	if err := w.store.Record(ctx, event.Decision()); err != nil {
		slog.Error("failed to record decision",
			"event_id", event.EventID,
			"invoice_id", event.InvoiceID,
			"error", err,
		)
		return err
	}
	w.recorded.Add(1)

	slog.Debug("decision recorded",
		"event_id", event.EventID,
		"invoice_id", event.InvoiceID,
		"status", event.Status,
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("tally worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Recorded          int64    `json:"recorded"`
	Rejected          int64    `json:"rejected"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Recorded:          w.recorded.Load(),
		Rejected:          w.rejected.Load(),
	}
}
