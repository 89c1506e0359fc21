package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/history"
	"github.com/opensource-finance/govguard/internal/ingest"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the vendor payment ledger",
	}
	cmd.AddCommand(a.historyAddCmd())
	cmd.AddCommand(a.historyGetCmd())
	return cmd
}

func (a *app) historyAddCmd() *cobra.Command {
	var vendor, amount, date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a settled vendor payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			paidAt := ingest.ParseDate(date)
			if paidAt.IsZero() {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD or RFC 3339", date)
			}

			p := &domain.Payment{Vendor: vendor, Amount: value, PaidAt: paidAt}
			return a.withHistory(cmd.Context(), func(ctx context.Context, store *history.SQLStore) error {
				if err := store.RecordPayment(ctx, p); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor name")
	cmd.Flags().StringVar(&amount, "amount", "", "payment amount")
	cmd.Flags().StringVar(&date, "date", "", "payment date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func (a *app) historyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a recorded payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(cmd.Context(), func(ctx context.Context, store *history.SQLStore) error {
				p, err := store.GetPayment(ctx, args[0])
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("payment %s not found", args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func (a *app) withHistory(ctx context.Context, fn func(context.Context, *history.SQLStore) error) error {
	if !a.cfg.History.Enabled {
		return errors.New("history is disabled in configuration")
	}
	store, err := history.New(a.cfg.History)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
