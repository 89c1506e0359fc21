package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
)

// HistoryLookup returns a vendor's prior payments relative to ref.
type HistoryLookup interface {
	Lookup(ctx context.Context, vendor string, ref time.Time) ([]domain.PriorTransaction, error)
}

// Enricher fills in transaction history the caller did not supply.
type Enricher struct {
	history HistoryLookup
}

// NewEnricher creates an enricher. A nil lookup makes Enrich a no-op.
func NewEnricher(history HistoryLookup) *Enricher {
	return &Enricher{history: history}
}

// Enrich returns inv with PreviousTransactions filled from the payment
// ledger when the document carried no history field. A supplied list, even
// an empty one, is kept as is. Lookup failures are logged and leave the
// history empty.
func (e *Enricher) Enrich(ctx context.Context, inv domain.InvoiceRecord, ref time.Time) domain.InvoiceRecord {
	if e == nil || e.history == nil || inv.PreviousTransactions != nil || inv.Vendor == "" {
		return inv
	}

	prior, err := e.history.Lookup(ctx, inv.Vendor, ref)
	if err != nil {
		slog.Warn("history lookup failed",
			"invoice_id", inv.InvoiceID,
			"vendor", inv.Vendor,
			"error", err,
		)
		return inv
	}

	out := inv.Clone()
	out.PreviousTransactions = prior
	if out.PreviousTransactions == nil {
		out.PreviousTransactions = []domain.PriorTransaction{}
	}
	return out
}
