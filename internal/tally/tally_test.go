package tally

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func review(amount string) domain.Decision {
	return domain.Decision{
		Status:           domain.StatusReviewRequired,
		EstimatedSavings: decimal.RequireFromString(amount),
	}
}

func clean() domain.Decision {
	return domain.Decision{Status: domain.StatusClean, EstimatedSavings: decimal.Zero}
}

func TestTotalsAdd(t *testing.T) {
	var totals Totals
	totals.Add(review("55000"))
	totals.Add(clean())
	totals.Add(review("0.10"))
	totals.Add(review("0.20"))

	assert.Equal(t, int64(4), totals.Processed)
	assert.Equal(t, int64(3), totals.Flagged)
	assert.Equal(t, "55000.3", totals.Savings.String())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Ping(ctx))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Processed)
	assert.True(t, snap.Savings.IsZero())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := clean()
			if i%2 == 0 {
				d = review("1000")
			}
			assert.NoError(t, store.Record(ctx, d))
		}(i)
	}
	wg.Wait()

	snap, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.Processed)
	assert.Equal(t, int64(50), snap.Flagged)
	assert.True(t, snap.Savings.Equal(decimal.NewFromInt(50000)))

	require.NoError(t, store.Reset(ctx))
	snap, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Processed)
}

func TestParseTotals(t *testing.T) {
	got, err := parseTotals(map[string]string{
		"processed": "12",
		"flagged":   "3",
		"savings":   "1234.56",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Processed)
	assert.Equal(t, int64(3), got.Flagged)
	assert.Equal(t, "1234.56", got.Savings.String())

	got, err = parseTotals(map[string]string{})
	require.NoError(t, err)
	assert.True(t, got.Savings.IsZero())

	_, err = parseTotals(map[string]string{"savings": "lots"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	store, err := New(domain.TallyConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = New(domain.TallyConfig{Type: "etcd"})
	assert.Error(t, err)
}

// Runs only when a Redis server is available.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("GOVGUARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GOVGUARD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(addr, "", 0, "govguard:test:tally")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Reset(ctx))
	defer store.Reset(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Record(ctx, review("0.05")))
		}()
	}
	wg.Wait()
	require.NoError(t, store.Record(ctx, clean()))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(21), snap.Processed)
	assert.Equal(t, int64(20), snap.Flagged)
	assert.Equal(t, "1", snap.Savings.String())
}
