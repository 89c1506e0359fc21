package domain

import (
	"github.com/shopspring/decimal"
)

// Status is the outcome of an invoice evaluation.
type Status string

// Decision statuses.
const (
	StatusClean          Status = "Clean"
	StatusReviewRequired Status = "Review Required"
)

// Decision is the engine's output for one invoice. It is created by a single
// evaluation and owned by the caller afterwards.
type Decision struct {
	Status         Status `json:"status"`
	TriggeredFlags []Flag `json:"triggered_flags"`

	// EstimatedSavings is zero unless Status is StatusReviewRequired.
	EstimatedSavings decimal.Decimal `json:"estimated_savings"`
}
