package rules

import (
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// Normalize applies the defaulting policy every rule relies on:
//   - a negative, zero or out-of-range amount reads as 0
//   - an empty vendor or department reads as "Unknown"
//   - a missing date reads as the reference time
//   - a missing history reads as empty; out-of-range entries are dropped
//
// The input is not modified. Normalize is idempotent.
func Normalize(inv domain.InvoiceRecord, ref time.Time) domain.InvoiceRecord {
	out := inv.Clone()

	if !domain.AmountInRange(out.Amount) || !out.Amount.IsPositive() {
		out.Amount = decimal.Zero
	}
	if out.Vendor == "" {
		out.Vendor = domain.UnknownParty
	}
	if out.Department == "" {
		out.Department = domain.UnknownParty
	}
	if out.Date.IsZero() {
		out.Date = ref
	}
	if out.PreviousTransactions == nil {
		out.PreviousTransactions = []domain.PriorTransaction{}
	}
	out.PreviousTransactions = dropOutOfRange(out.PreviousTransactions)

	return out
}

func dropOutOfRange(history []domain.PriorTransaction) []domain.PriorTransaction {
	kept := history[:0]
	for _, tx := range history {
		if domain.AmountInRange(tx.Amount) {
			kept = append(kept, tx)
		}
	}
	return kept
}

// StaleBefore returns the cutoff for the stale invoice rule: midnight UTC of
// the calendar date one year before ref's date. The time of day of ref
// never moves the cutoff.
func StaleBefore(ref time.Time) time.Time {
	return CalendarDate(ref).AddDate(-1, 0, 0)
}

// CalendarDate returns t's calendar date, in t's own location, as midnight
// UTC. Dates compared through it ignore time of day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
