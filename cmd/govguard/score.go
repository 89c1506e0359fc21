package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/opensource-finance/govguard/internal/decision"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/explain"
	"github.com/opensource-finance/govguard/internal/history"
	"github.com/opensource-finance/govguard/internal/ingest"
	"github.com/opensource-finance/govguard/internal/rules"
	"github.com/opensource-finance/govguard/internal/scoring"
	"github.com/opensource-finance/govguard/internal/tally"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	reviewStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	cleanStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type scoreOptions struct {
	asOf      string
	noHistory bool
	explain   bool
	quiet     bool
}

func (a *app) scoreCmd() *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "score <files...>",
		Short: "Score invoice files and print a summary",
		Long: `Extract every file into an invoice record, drop duplicate invoice IDs, and
score each record. JSON files are decoded; any other file is treated as a
scanned document and receives a simulated extraction.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScore(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "reference date for staleness (default: now)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not fill missing history from the payment ledger")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "print an explanation for every escalated invoice")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")

	return cmd
}

func (a *app) runScore(ctx context.Context, out, errOut io.Writer, files []string, opts *scoreOptions) error {
	ref := time.Now()
	if opts.asOf != "" {
		ref = ingest.ParseDate(opts.asOf)
		if ref.IsZero() {
			return fmt.Errorf("invalid --as-of %q: want YYYY-MM-DD or RFC 3339", opts.asOf)
		}
	}

	records := extractFiles(files, ref, errOut, opts.quiet)
	records = ingest.Dedupe(records)

	var enricher *ingest.Enricher
	if a.cfg.History.Enabled && !opts.noHistory {
		store, err := history.New(a.cfg.History)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
		enricher = ingest.NewEnricher(history.NewService(store, a.cfg.History.Lookback))
	}

	scorer, err := scoring.NewDefaultScorer()
	if err != nil {
		return fmt.Errorf("failed to initialize scorer: %w", err)
	}

	var explainer explain.Explainer
	if opts.explain {
		if explainer, err = explain.New(ctx, a.cfg.Explainer); err != nil {
			return fmt.Errorf("failed to initialize explainer: %w", err)
		}
	}

	totals := tally.NewMemoryStore()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("Invoice"),
		headerStyle.Render("Vendor"),
		headerStyle.Render("Amount"),
		headerStyle.Render("Status"),
		headerStyle.Render("Flags"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 10),
		strings.Repeat("─", 16),
		strings.Repeat("─", 12),
		strings.Repeat("─", 15),
		strings.Repeat("─", 30))

	var explanations []string
	for _, inv := range records {
		inv = enricher.Enrich(ctx, inv, ref)
		d := scorer.Evaluate(inv, ref)
		if err := totals.Record(ctx, d); err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}

		// Show the record as it was scored.
		scored := rules.Normalize(inv, ref)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			invoiceLabel(scored),
			scored.Vendor,
			scored.Amount.StringFixed(2),
			renderStatus(d.Status),
			renderFlags(d))

		if explainer != nil && decision.RequiresReview(d) {
			text, err := explainer.Explain(ctx, inv, d)
			if err != nil {
				slog.Warn("explanation failed", "invoice_id", inv.InvoiceID, "error", err)
				continue
			}
			explanations = append(explanations, fmt.Sprintf("%s\n%s", headerStyle.Render(invoiceLabel(inv)), text))
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	for _, e := range explanations {
		fmt.Fprintf(out, "\n%s\n", e)
	}

	snapshot, err := totals.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %d\n", headerStyle.Render("Processed:"), snapshot.Processed)
	fmt.Fprintf(out, "%s %d\n", headerStyle.Render("Flagged:  "), snapshot.Flagged)
	fmt.Fprintf(out, "%s $%s\n", headerStyle.Render("Savings:  "), snapshot.Savings.StringFixed(2))
	return nil
}

// extractFiles reads every file into a record. Unreadable files are logged
// and skipped.
func extractFiles(files []string, ref time.Time, errOut io.Writer, quiet bool) []domain.InvoiceRecord {
	extractor := ingest.FileExtractor{Today: ref}

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Extracting invoices...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(errOut)
			}),
		)
	}

	records := make([]domain.InvoiceRecord, 0, len(files))
	for _, name := range files {
		inv, err := extractFile(extractor, name)
		if err != nil {
			slog.Warn("skipping file", "file", name, "error", err)
		} else {
			records = append(records, inv)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return records
}

func extractFile(extractor ingest.FileExtractor, name string) (domain.InvoiceRecord, error) {
	f, err := os.Open(name)
	if err != nil {
		return domain.InvoiceRecord{}, err
	}
	defer f.Close()
	return extractor.Extract(name, f)
}

func invoiceLabel(inv domain.InvoiceRecord) string {
	if inv.InvoiceID == "" {
		return domain.UnknownInvoiceID
	}
	return inv.InvoiceID
}

func renderStatus(s domain.Status) string {
	if s == domain.StatusReviewRequired {
		return reviewStyle.Render(string(s))
	}
	return cleanStyle.Render(string(s))
}

func renderFlags(d domain.Decision) string {
	if len(d.TriggeredFlags) == 0 {
		return mutedStyle.Render("-")
	}
	ids := make([]string, len(d.TriggeredFlags))
	for i, f := range d.TriggeredFlags {
		ids[i] = string(f.ID)
	}
	return strings.Join(ids, ", ")
}
