// Package scoring exposes the single evaluate operation: normalize an
// invoice, run the rule table, aggregate the result.
package scoring

import (
	"time"

	"github.com/opensource-finance/govguard/internal/decision"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/rules"
)

// Scorer evaluates invoices. It reads no clock and keeps no counters, so
// one Scorer can be shared by every caller.
type Scorer struct {
	engine *rules.Engine
}

// NewScorer creates a scorer over a compiled rule engine.
func NewScorer(engine *rules.Engine) *Scorer {
	return &Scorer{engine: engine}
}

// NewDefaultScorer creates a scorer over the built-in rule table.
func NewDefaultScorer() (*Scorer, error) {
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return nil, err
	}
	return NewScorer(engine), nil
}

// Evaluate scores inv as of referenceTime. The same inputs always yield an
// equal decision.
func (s *Scorer) Evaluate(inv domain.InvoiceRecord, referenceTime time.Time) domain.Decision {
	normalized := rules.Normalize(inv, referenceTime)
	flags := s.engine.Evaluate(normalized, referenceTime)
	return decision.Aggregate(flags, normalized.Amount)
}

// Rules returns the rule table in evaluation order.
func (s *Scorer) Rules() []rules.RuleDef {
	return s.engine.Rules()
}
