// Package decision aggregates triggered rule flags into a risk decision.
package decision

import (
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// ReviewThreshold is the number of triggered flags at which an invoice is
// escalated. All flags weigh equally.
const ReviewThreshold = 2

// Aggregate produces the decision for a set of triggered flags. amount must
// already be normalized; it becomes the estimated savings when the invoice
// is escalated.
func Aggregate(flags []domain.Flag, amount decimal.Decimal) domain.Decision {
	triggered := make([]domain.Flag, len(flags))
	copy(triggered, flags)

	d := domain.Decision{
		Status:           domain.StatusClean,
		TriggeredFlags:   triggered,
		EstimatedSavings: decimal.Zero,
	}

	if len(triggered) >= ReviewThreshold {
		d.Status = domain.StatusReviewRequired
		d.EstimatedSavings = amount
	}

	return d
}

// RequiresReview returns true if the decision was escalated.
func RequiresReview(d domain.Decision) bool {
	return d.Status == domain.StatusReviewRequired
}

// Labels extracts the human-readable labels of the triggered flags.
func Labels(d domain.Decision) []string {
	labels := make([]string, 0, len(d.TriggeredFlags))
	for _, f := range d.TriggeredFlags {
		labels = append(labels, f.Label)
	}
	return labels
}
