package ingest

import (
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/shopspring/decimal"
)

// FileExtractor reads invoice files. JSON files are decoded; any other file
// stands in for a scanned document and gets a simulated extraction.
type FileExtractor struct {
	// Today is the date stamped on simulated records.
	Today time.Time
}

// Extract produces a record from one file. Read failures and JSON files
// that are not objects are errors.
func (f FileExtractor) Extract(name string, r io.Reader) (domain.InvoiceRecord, error) {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		data, err := io.ReadAll(r)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
		inv, err := Decode(data)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("%s: %w", name, err)
		}
		return inv, nil
	}

	if _, err := io.Copy(io.Discard, r); err != nil {
		return domain.InvoiceRecord{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return f.simulate(name), nil
}

// simulate builds a plausible record for a document that cannot be parsed.
// The generator is seeded from the file name so reruns are reproducible.
func (f FileExtractor) simulate(name string) domain.InvoiceRecord {
	h := fnv.New64a()
	h.Write([]byte(filepath.Base(name)))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	department := "IT Services"
	if rng.IntN(2) == 0 {
		department = "Public Works"
	}

	return domain.InvoiceRecord{
		InvoiceID:  fmt.Sprintf("INV-%d", rng.IntN(10000)),
		Amount:     decimal.NewFromInt(int64(rng.IntN(80000) + 1000)),
		Vendor:     "Acme Corp",
		Department: department,
		Date:       f.Today,
	}
}
