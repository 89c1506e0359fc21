package tally

import (
	"context"
	"sync"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps totals in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	totals Totals
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{totals: Totals{Savings: decimal.Zero}}
}

// Record folds d into the totals.
func (s *MemoryStore) Record(_ context.Context, d domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals.Add(d)
	return nil
}

// Snapshot returns a copy of the current totals.
func (s *MemoryStore) Snapshot(_ context.Context) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals, nil
}

// Reset zeroes the totals.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = Totals{Savings: decimal.Zero}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
