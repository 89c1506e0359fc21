package history

import (
	"context"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
)

// DefaultLookback is how far back prior payments are considered when no
// window is configured.
const DefaultLookback = 365 * 24 * time.Hour

// Service looks up a vendor's recent payments relative to a reference time.
type Service struct {
	store    domain.HistoryStore
	lookback time.Duration
}

// NewService creates a new history lookup service.
func NewService(store domain.HistoryStore, lookback time.Duration) *Service {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Service{
		store:    store,
		lookback: lookback,
	}
}

// Lookup returns the prior payments to vendor inside the lookback window
// ending at ref. Payments dated after ref are included.
func (s *Service) Lookup(ctx context.Context, vendor string, ref time.Time) ([]domain.PriorTransaction, error) {
	return s.store.PriorPayments(ctx, vendor, ref.Add(-s.lookback))
}

// Lookback returns the configured window.
func (s *Service) Lookback() time.Duration {
	return s.lookback
}
