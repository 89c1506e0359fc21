package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestFileExtractor(t *testing.T) {
	today := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	ex := FileExtractor{Today: today}

	t.Run("JSON", func(t *testing.T) {
		inv, err := ex.Extract("batch/inv.JSON", strings.NewReader(`{"invoice_id":"A-1","amount":"10"}`))
		require.NoError(t, err)
		assert.Equal(t, "A-1", inv.InvoiceID)
		assert.Equal(t, "10", inv.Amount.String())
	})

	t.Run("JSONNotObject", func(t *testing.T) {
		_, err := ex.Extract("inv.json", strings.NewReader(`[1]`))
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("Unreadable", func(t *testing.T) {
		_, err := ex.Extract("inv.json", errReader{})
		assert.Error(t, err)

		_, err = ex.Extract("scan.pdf", errReader{})
		assert.Error(t, err)
	})

	t.Run("Simulated", func(t *testing.T) {
		inv, err := ex.Extract("scan-001.pdf", strings.NewReader("%PDF-1.7"))
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(inv.InvoiceID, "INV-"))
		assert.True(t, inv.Amount.GreaterThanOrEqual(decimal.NewFromInt(1000)))
		assert.True(t, inv.Amount.LessThanOrEqual(decimal.NewFromInt(80999)))
		assert.True(t, inv.Amount.Equal(inv.Amount.Truncate(0)))
		assert.Contains(t, []string{"Public Works", "IT Services"}, inv.Department)
		assert.Equal(t, "Acme Corp", inv.Vendor)
		assert.Equal(t, today, inv.Date)
		assert.Nil(t, inv.PreviousTransactions)
	})

	t.Run("SimulatedIsReproducible", func(t *testing.T) {
		a, err := ex.Extract("dir-a/scan-xyz.png", strings.NewReader(""))
		require.NoError(t, err)
		b, err := ex.Extract("dir-b/scan-xyz.png", strings.NewReader("other bytes"))
		require.NoError(t, err)
		assert.Equal(t, a.InvoiceID, b.InvoiceID)
		assert.True(t, a.Amount.Equal(b.Amount))
		assert.Equal(t, a.Department, b.Department)
	})
}

func TestDedupe(t *testing.T) {
	records := []domain.InvoiceRecord{
		{InvoiceID: "A", Vendor: "first"},
		{InvoiceID: "", Vendor: "anon-1"},
		{InvoiceID: "B", Vendor: "b"},
		{InvoiceID: "A", Vendor: "second"},
		{InvoiceID: "", Vendor: "anon-2"},
	}

	got := Dedupe(records)
	require.Len(t, got, 4)

	vendors := make([]string, 0, len(got))
	for _, r := range got {
		vendors = append(vendors, r.Vendor)
	}
	assert.Equal(t, []string{"second", "anon-1", "b", "anon-2"}, vendors)

	assert.Empty(t, Dedupe(nil))
}

type stubHistory struct {
	prior  []domain.PriorTransaction
	err    error
	calls  int
	vendor string
	ref    time.Time
}

func (s *stubHistory) Lookup(_ context.Context, vendor string, ref time.Time) ([]domain.PriorTransaction, error) {
	s.calls++
	s.vendor = vendor
	s.ref = ref
	return s.prior, s.err
}

func TestEnricher(t *testing.T) {
	ctx := context.Background()
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prior := []domain.PriorTransaction{{Amount: decimal.NewFromInt(42)}}

	t.Run("FillsMissingHistory", func(t *testing.T) {
		h := &stubHistory{prior: prior}
		inv := domain.InvoiceRecord{Vendor: "Acme"}

		out := NewEnricher(h).Enrich(ctx, inv, ref)
		require.Len(t, out.PreviousTransactions, 1)
		assert.Equal(t, "Acme", h.vendor)
		assert.Equal(t, ref, h.ref)
		assert.Nil(t, inv.PreviousTransactions, "input must not be modified")
	})

	t.Run("KeepsSuppliedHistory", func(t *testing.T) {
		h := &stubHistory{prior: prior}
		inv := domain.InvoiceRecord{Vendor: "Acme", PreviousTransactions: []domain.PriorTransaction{}}

		out := NewEnricher(h).Enrich(ctx, inv, ref)
		assert.Empty(t, out.PreviousTransactions)
		assert.Zero(t, h.calls)
	})

	t.Run("SkipsUnknownVendor", func(t *testing.T) {
		h := &stubHistory{prior: prior}
		NewEnricher(h).Enrich(ctx, domain.InvoiceRecord{}, ref)
		assert.Zero(t, h.calls)
	})

	t.Run("LookupFailure", func(t *testing.T) {
		h := &stubHistory{err: errors.New("db down")}
		out := NewEnricher(h).Enrich(ctx, domain.InvoiceRecord{Vendor: "Acme"}, ref)
		assert.Empty(t, out.PreviousTransactions)
	})

	t.Run("NoLedgerEntries", func(t *testing.T) {
		h := &stubHistory{}
		out := NewEnricher(h).Enrich(ctx, domain.InvoiceRecord{Vendor: "Acme"}, ref)
		assert.NotNil(t, out.PreviousTransactions)
		assert.Empty(t, out.PreviousTransactions)
	})

	t.Run("NilLookup", func(t *testing.T) {
		inv := domain.InvoiceRecord{Vendor: "Acme"}
		out := NewEnricher(nil).Enrich(ctx, inv, ref)
		assert.Nil(t, out.PreviousTransactions)
	})
}
