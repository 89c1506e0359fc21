// Package ingest turns raw invoice documents into records the scoring
// engine can evaluate.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNotObject is returned when a document is not a JSON object.
var ErrNotObject = errors.New("invoice document is not a JSON object")

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Decode parses an invoice document leniently. Only a document that is not
// a JSON object is an error; any field that is missing or malformed is left
// at its zero value for the engine's normalization to handle.
func Decode(data []byte) (domain.InvoiceRecord, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return domain.InvoiceRecord{}, ErrNotObject
	}

	return domain.InvoiceRecord{
		InvoiceID:            decodeString(fields["invoice_id"]),
		Amount:               ParseAmount(fields["amount"]),
		Vendor:               decodeString(fields["vendor"]),
		Department:           decodeString(fields["department"]),
		Date:                 ParseDate(decodeString(fields["date"])),
		PreviousTransactions: decodeHistory(fields["previous_transactions"]),
	}, nil
}

// ParseAmount reads a JSON number or numeric string without passing through
// a float. Anything else, including amounts outside domain.AmountInRange,
// reads as zero.
func ParseAmount(raw json.RawMessage) decimal.Decimal {
	d, ok := parseAmount(raw)
	if !ok {
		return decimal.Zero
	}
	return d
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || len(raw) > domain.MaxAmountTextLen+2 {
		return decimal.Decimal{}, false
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, false
		}
	}
	text = strings.TrimSpace(text)
	if len(text) > domain.MaxAmountTextLen {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(text)
	if err != nil || !domain.AmountInRange(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp. Date-only
// values are midnight UTC. Anything else reads as the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// decodeString reads a JSON string. Numbers are kept as their literal text
// so numeric invoice IDs survive.
func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeHistory returns nil when the field is absent or not a list, and a
// non-nil slice otherwise. Entries may be {"amount": x} objects or bare
// amounts; entries without a readable amount are skipped.
func decodeHistory(raw json.RawMessage) []domain.PriorTransaction {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil
	}

	history := make([]domain.PriorTransaction, 0, len(entries))
	for _, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 {
			continue
		}

		amountRaw := entry
		if entry[0] == '{' {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(entry, &obj); err != nil {
				continue
			}
			var ok bool
			if amountRaw, ok = obj["amount"]; !ok {
				continue
			}
		}

		amount, ok := parseAmount(amountRaw)
		if !ok {
			continue
		}
		history = append(history, domain.PriorTransaction{Amount: amount})
	}
	return history
}

// Encode renders a record in the same document shape Decode reads.
func Encode(inv domain.InvoiceRecord) ([]byte, error) {
	doc := map[string]any{
		"invoice_id": inv.InvoiceID,
		"amount":     inv.Amount.String(),
		"vendor":     inv.Vendor,
		"department": inv.Department,
	}
	if !inv.Date.IsZero() {
		doc["date"] = inv.Date.Format(time.RFC3339)
	}
	if inv.PreviousTransactions != nil {
		history := make([]map[string]string, 0, len(inv.PreviousTransactions))
		for _, tx := range inv.PreviousTransactions {
			history = append(history, map[string]string{"amount": tx.Amount.String()})
		}
		doc["previous_transactions"] = history
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice: %w", err)
	}
	return data, nil
}
