package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// DecisionEvent is published once per answered evaluate request.
type DecisionEvent struct {
	EventID          string          `json:"eventId"`
	InvoiceID        string          `json:"invoiceId"`
	Status           domain.Status   `json:"status"`
	Flags            []domain.Flag   `json:"flags"`
	EstimatedSavings decimal.Decimal `json:"estimatedSavings"`
	ReferenceTime    time.Time       `json:"referenceTime"`
}

// Decision rebuilds the decision carried by the event.
func (e DecisionEvent) Decision() domain.Decision {
	return domain.Decision{
		Status:           e.Status,
		TriggeredFlags:   e.Flags,
		EstimatedSavings: e.EstimatedSavings,
	}
}

// PublishDecision encodes e and publishes it on domain.TopicDecision.
func PublishDecision(ctx context.Context, b domain.EventBus, e DecisionEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal decision event: %w", err)
	}
	return b.Publish(ctx, domain.TopicDecision, payload)
}

// DecodeDecision parses a decision event payload.
func DecodeDecision(payload []byte) (DecisionEvent, error) {
	var e DecisionEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return DecisionEvent{}, fmt.Errorf("failed to unmarshal decision event: %w", err)
	}
	switch e.Status {
	case domain.StatusClean, domain.StatusReviewRequired:
	default:
		return DecisionEvent{}, fmt.Errorf("decision event %s has unknown status %q", e.EventID, e.Status)
	}
	return e, nil
}
