package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownParty is the value an empty vendor or department normalizes to.
const UnknownParty = "Unknown"

// UnknownInvoiceID labels results for documents that carried no invoice ID.
const UnknownInvoiceID = "UNKNOWN"

// InvoiceRecord is a single invoice handed to the scoring engine by the
// ingestion layer. It is treated as immutable for one evaluation.
type InvoiceRecord struct {
	// InvoiceID is opaque. Consumers render an empty ID as "UNKNOWN";
	// the engine never fills it in.
	InvoiceID string `json:"invoice_id"`

	// Amount is always read as >= 0 after normalization.
	Amount decimal.Decimal `json:"amount"`

	Vendor     string    `json:"vendor"`
	Department string    `json:"department"`
	Date       time.Time `json:"date"`

	// PreviousTransactions holds prior amounts for the same vendor/context.
	// Only the duplicate rule reads it.
	PreviousTransactions []PriorTransaction `json:"previous_transactions"`
}

// PriorTransaction is one entry of an invoice's transaction history.
type PriorTransaction struct {
	Amount decimal.Decimal `json:"amount"`
}

// Clone returns a copy that shares no slices with the receiver.
func (r InvoiceRecord) Clone() InvoiceRecord {
	out := r
	if r.PreviousTransactions != nil {
		out.PreviousTransactions = make([]PriorTransaction, len(r.PreviousTransactions))
		copy(out.PreviousTransactions, r.PreviousTransactions)
	}
	return out
}
