// Package explain writes reviewer-facing explanations of decisions.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/govguard/internal/decision"
	"github.com/opensource-finance/govguard/internal/domain"
)

// Explainer describes why an invoice received its decision.
type Explainer interface {
	Explain(ctx context.Context, inv domain.InvoiceRecord, d domain.Decision) (string, error)
}

// New creates an explainer based on configuration.
func New(ctx context.Context, cfg domain.ExplainerConfig) (Explainer, error) {
	switch cfg.Type {
	case "template", "":
		return TemplateExplainer{}, nil
	case "gemini":
		return NewGeminiExplainer(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported explainer type: %s", cfg.Type)
	}
}

// TemplateExplainer renders a fixed-format explanation. It never fails.
type TemplateExplainer struct{}

// Explain lists every triggered flag and, for escalated invoices, the
// exposure and a review recommendation.
func (TemplateExplainer) Explain(_ context.Context, inv domain.InvoiceRecord, d domain.Decision) (string, error) {
	if len(d.TriggeredFlags) == 0 {
		return "This invoice appears to be standard business expenditure. No risk indicators were triggered.", nil
	}

	var b strings.Builder
	if decision.RequiresReview(d) {
		b.WriteString("Potential fraud risk detected.\n")
	} else {
		b.WriteString("One risk indicator was triggered; below the review threshold.\n")
	}

	for i, label := range decision.Labels(d) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
	}

	if decision.RequiresReview(d) {
		fmt.Fprintf(&b, "Estimated exposure: $%s.\n", d.EstimatedSavings.StringFixed(2))
		b.WriteString("Recommendation: Flag for manual review by the audit team.")
	} else {
		b.WriteString("Recommendation: No action required.")
	}

	return b.String(), nil
}
