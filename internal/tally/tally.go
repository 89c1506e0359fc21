// Package tally keeps caller-owned running totals over scoring decisions.
// The scoring engine never touches these counters; they are fed from the
// decisions it returns.
package tally

import (
	"context"
	"fmt"

	"github.com/opensource-finance/govguard/internal/decision"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals is a snapshot of the running counters.
type Totals struct {
	Processed int64           `json:"processed"`
	Flagged   int64           `json:"flagged"`
	Savings   decimal.Decimal `json:"savings"`
}

// Add folds one decision into the totals.
func (t *Totals) Add(d domain.Decision) {
	t.Processed++
	if decision.RequiresReview(d) {
		t.Flagged++
		t.Savings = t.Savings.Add(d.EstimatedSavings)
	}
}

// Store accumulates totals from decisions.
type Store interface {
	Record(ctx context.Context, d domain.Decision) error
	Snapshot(ctx context.Context) (Totals, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// New creates a store based on configuration.
func New(cfg domain.TallyConfig) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unsupported tally type: %s", cfg.Type)
	}
}
