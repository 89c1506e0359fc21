// Load generator for exercising GovGuard's evaluate endpoint.
//
// Usage:
//
//	go run ./cmd/loadgen -url http://localhost:8080 -n 5000 -workers 20
//	go run ./cmd/loadgen -csv invoices.csv
//
// Invoices come from a CSV file (columns invoice_id, amount, vendor,
// department, date) or are synthesized from a fixed seed. Every request is
// posted to /evaluate and the run reports latency percentiles, throughput,
// the status mix and how often each flag fired.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Invoice is one request body.
type Invoice struct {
	InvoiceID  string `json:"invoice_id"`
	Amount     string `json:"amount"`
	Vendor     string `json:"vendor"`
	Department string `json:"department"`
	Date       string `json:"date,omitempty"`
}

// EvaluateResponse is the subset of the evaluate response the report uses.
type EvaluateResponse struct {
	EvaluationID string `json:"evaluationId"`
	Status       string `json:"status"`
	Flags        []struct {
		ID string `json:"id"`
	} `json:"flags"`
	EstimatedSavings string `json:"estimatedSavings"`
}

// Result is the outcome of one request.
type Result struct {
	Latency time.Duration
	Status  string
	Flags   []string
	Err     error
}

// Report aggregates results.
type Report struct {
	Total     int
	Errors    int
	Statuses  map[string]int
	Flags     map[string]int
	Latencies []time.Duration
	Duration  time.Duration
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "GovGuard base URL")
	csvPath := flag.String("csv", "", "CSV file of invoices (default: synthesize)")
	count := flag.Int("n", 1000, "number of synthetic invoices")
	seed := flag.Uint64("seed", 1, "seed for synthetic invoices")
	workers := flag.Int("workers", 10, "number of concurrent workers")
	asOf := flag.String("as-of", "", "reference_time sent with every request")
	verbose := flag.Bool("verbose", false, "print each result")
	flag.Parse()

	fmt.Println("GovGuard load generator")
	fmt.Printf("\nURL:      %s\n", *baseURL)
	fmt.Printf("Workers:  %d\n", *workers)

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: GovGuard not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("GovGuard is healthy")

	var invoices []Invoice
	if *csvPath != "" {
		f, err := os.Open(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		invoices, err = readInvoiceCSV(f)
		f.Close()
		if err != nil {
			fmt.Printf("ERROR: failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		invoices = generateInvoices(*count, *seed)
	}
	fmt.Printf("Invoices: %d\n", len(invoices))

	client := &http.Client{Timeout: 10 * time.Second}
	report := run(client, *baseURL, *asOf, invoices, *workers, func(inv Invoice, r Result) {
		if !*verbose {
			return
		}
		if r.Err != nil {
			fmt.Printf("ERROR %-10s %v\n", inv.InvoiceID, r.Err)
			return
		}
		fmt.Printf("%-10s $%12s %-16s %-8s %v\n", inv.InvoiceID, inv.Amount, r.Status, r.Latency.Round(time.Microsecond), r.Flags)
	})

	printReport(os.Stdout, report)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var (
	vendors     = []string{"Acme Corp", "Paper Co", "Suspicious Inc", "Roadworks Ltd", ""}
	departments = []string{"Public Works", "Infrastructure", "IT Services", "Parks", "Libraries"}
)

// generateInvoices synthesizes n invoices. The same seed gives the same set.
func generateInvoices(n int, seed uint64) []Invoice {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	invoices := make([]Invoice, n)
	for i := range invoices {
		cents := rng.Int64N(9_000_000) + 100
		if rng.IntN(5) == 0 {
			cents -= cents % 100_000 // whole thousands
		}
		invoices[i] = Invoice{
			InvoiceID:  fmt.Sprintf("LG-%06d", i),
			Amount:     fmt.Sprintf("%d.%02d", cents/100, cents%100),
			Vendor:     vendors[rng.IntN(len(vendors))],
			Department: departments[rng.IntN(len(departments))],
			Date:       base.AddDate(0, 0, -rng.IntN(600)).Format("2006-01-02"),
		}
	}
	return invoices
}

// readInvoiceCSV reads invoices from a CSV with a header row. Unknown
// columns are ignored and malformed rows are skipped.
func readInvoiceCSV(r io.Reader) ([]Invoice, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var invoices []Invoice
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		invoices = append(invoices, Invoice{
			InvoiceID:  field(record, "invoice_id"),
			Amount:     field(record, "amount"),
			Vendor:     field(record, "vendor"),
			Department: field(record, "department"),
			Date:       field(record, "date"),
		})
	}
	return invoices, nil
}

// run posts every invoice with numWorkers concurrent clients. observe is
// called from worker goroutines and may be nil.
func run(client *http.Client, baseURL, asOf string, invoices []Invoice, numWorkers int, observe func(Invoice, Result)) *Report {
	if numWorkers < 1 {
		numWorkers = 1
	}

	report := &Report{
		Statuses: make(map[string]int),
		Flags:    make(map[string]int),
	}
	var mu sync.Mutex

	work := make(chan Invoice, 100)
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inv := range work {
				r := evaluate(client, baseURL, asOf, inv)
				if observe != nil {
					observe(inv, r)
				}

				mu.Lock()
				report.Total++
				report.Latencies = append(report.Latencies, r.Latency)
				if r.Err != nil {
					report.Errors++
				} else {
					report.Statuses[r.Status]++
					for _, f := range r.Flags {
						report.Flags[f]++
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, inv := range invoices {
		work <- inv
	}
	close(work)

	wg.Wait()
	report.Duration = time.Since(start)
	return report
}

func evaluate(client *http.Client, baseURL, asOf string, inv Invoice) Result {
	payload := map[string]any{
		"invoice_id": inv.InvoiceID,
		"amount":     inv.Amount,
		"vendor":     inv.Vendor,
		"department": inv.Department,
	}
	if inv.Date != "" {
		payload["date"] = inv.Date
	}
	if asOf != "" {
		payload["reference_time"] = asOf
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: err}
	}

	start := time.Now()
	resp, err := client.Post(baseURL+"/evaluate", "application/json", bytes.NewReader(body))
	if err != nil {
		return Result{Latency: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Latency: time.Since(start), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out EvaluateResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, Err: err}
	}

	flags := make([]string, len(out.Flags))
	for i, f := range out.Flags {
		flags[i] = f.ID
	}
	return Result{Latency: latency, Status: out.Status, Flags: flags}
}

// percentile returns the p-th percentile (0-100) of sorted latencies using
// the nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p/100*float64(len(sorted)) + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func printReport(w io.Writer, r *Report) {
	sorted := append([]time.Duration(nil), r.Latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Fprintln(w, "\nRESULTS")
	fmt.Fprintf(w, "   Requests:    %d\n", r.Total)
	fmt.Fprintf(w, "   Errors:      %d\n", r.Errors)
	fmt.Fprintf(w, "   Duration:    %v\n", r.Duration.Round(time.Millisecond))
	if r.Duration > 0 {
		fmt.Fprintf(w, "   Throughput:  %.2f req/sec\n", float64(r.Total)/r.Duration.Seconds())
	}

	fmt.Fprintln(w, "\nLATENCY")
	for _, p := range []float64{50, 90, 95, 99} {
		fmt.Fprintf(w, "   p%-3.0f %v\n", p, percentile(sorted, p).Round(time.Microsecond))
	}
	if len(sorted) > 0 {
		fmt.Fprintf(w, "   max  %v\n", sorted[len(sorted)-1].Round(time.Microsecond))
	}

	fmt.Fprintln(w, "\nSTATUS MIX")
	for _, status := range sortedKeys(r.Statuses) {
		n := r.Statuses[status]
		fmt.Fprintf(w, "   %-16s %6d (%.2f%%)\n", status, n, 100*float64(n)/float64(r.Total))
	}

	fmt.Fprintln(w, "\nFLAGS")
	for _, id := range sortedKeys(r.Flags) {
		fmt.Fprintf(w, "   %-28s %6d\n", id, r.Flags[id])
	}
	fmt.Fprintln(w)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
