package ingest

import "github.com/opensource-finance/govguard/internal/domain"

// Dedupe keeps the last record for each invoice ID at the position where
// that ID first appeared. Records without an ID are all kept.
func Dedupe(records []domain.InvoiceRecord) []domain.InvoiceRecord {
	out := make([]domain.InvoiceRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		if rec.InvoiceID == "" {
			out = append(out, rec)
			continue
		}
		if i, seen := index[rec.InvoiceID]; seen {
			out[i] = rec
			continue
		}
		index[rec.InvoiceID] = len(out)
		out = append(out, rec)
	}
	return out
}
