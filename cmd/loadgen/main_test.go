package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/govguard/internal/api"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/scoring"
	"github.com/opensource-finance/govguard/internal/tally"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *tally.MemoryStore) {
	t.Helper()
	scorer, err := scoring.NewDefaultScorer()
	require.NoError(t, err)

	store := tally.NewMemoryStore()
	srv := api.NewServer(domain.ServerConfig{}, api.Deps{Scorer: scorer, Tally: store, Version: "test"})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func TestGenerateInvoicesIsDeterministic(t *testing.T) {
	a := generateInvoices(50, 7)
	b := generateInvoices(50, 7)
	c := generateInvoices(50, 8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 50)
	assert.Equal(t, "LG-000049", a[49].InvoiceID)
}

func TestReadInvoiceCSV(t *testing.T) {
	data := `Invoice_ID,amount,vendor,department,extra
INV-1,55000,Acme Corp,Public Works,x
INV-2,12.50,Paper Co
`
	invoices, err := readInvoiceCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, Invoice{InvoiceID: "INV-1", Amount: "55000", Vendor: "Acme Corp", Department: "Public Works"}, invoices[0])
	assert.Equal(t, "", invoices[1].Department)

	_, err = readInvoiceCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	var sorted []time.Duration
	for i := 1; i <= 100; i++ {
		sorted = append(sorted, time.Duration(i)*time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, time.Millisecond, percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestRunAgainstServer(t *testing.T) {
	ts, store := newTestServer(t)

	invoices := []Invoice{
		{InvoiceID: "INV-1", Amount: "55000", Vendor: "Acme Corp", Department: "Public Works"},
		{InvoiceID: "INV-2", Amount: "12.50", Vendor: "Paper Co", Department: "Parks"},
		{InvoiceID: "INV-3", Amount: "3000", Vendor: "Paper Co", Department: "Parks", Date: "2020-01-01"},
	}

	report := run(ts.Client(), ts.URL, "2025-06-01", invoices, 2, nil)

	assert.Equal(t, 3, report.Total)
	assert.Zero(t, report.Errors)
	assert.Equal(t, 2, report.Statuses[string(domain.StatusReviewRequired)])
	assert.Equal(t, 1, report.Statuses[string(domain.StatusClean)])
	assert.Equal(t, 2, report.Flags[string(domain.FlagRoundAmount)])
	assert.Len(t, report.Latencies, 3)

	totals, err := store.Snapshot(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 3, totals.Processed)

	var out bytes.Buffer
	printReport(&out, report)
	assert.Contains(t, out.String(), "Requests:    3")
	assert.Contains(t, out.String(), "Review Required")
}

func TestRunCountsErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	report := run(ts.Client(), ts.URL, "not a date", []Invoice{{InvoiceID: "INV-1", Amount: "1"}}, 0, nil)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Errors)
}
