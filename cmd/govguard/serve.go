package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/govguard/internal/api"
	"github.com/opensource-finance/govguard/internal/bus"
	"github.com/opensource-finance/govguard/internal/cache"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/explain"
	"github.com/opensource-finance/govguard/internal/history"
	"github.com/opensource-finance/govguard/internal/ingest"
	"github.com/opensource-finance/govguard/internal/scoring"
	"github.com/opensource-finance/govguard/internal/tally"
	"github.com/opensource-finance/govguard/internal/worker"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scoring service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runServe(ctx context.Context, out io.Writer) error {
	cfg := a.cfg

	slog.Info("starting govguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"history", cfg.History.Driver,
		"history_enabled", cfg.History.Enabled,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tally", cfg.Tally.Type,
		"explainer", cfg.Explainer.Type,
	)

	if cfg.Tracing.Enabled {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		slog.Info("trace propagation enabled", "service_name", cfg.Tracing.ServiceName)
	}

	deps := api.Deps{Version: Version}

	// Initialize History
	if cfg.History.Enabled {
		store, err := history.New(cfg.History)
		if err != nil {
			return fmt.Errorf("failed to initialize history: %w", err)
		}
		defer store.Close()

		deps.History = store
		deps.Enricher = ingest.NewEnricher(history.NewService(store, cfg.History.Lookback))
		slog.Info("history initialized", "driver", cfg.History.Driver)
	}

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	deps.Cache = cacheImpl
	deps.Replayer = cache.NewReplayer(cacheImpl, cfg.Cache.ReplayTTL)
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	deps.Bus = busImpl
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Tally
	tallyStore, err := tally.New(cfg.Tally)
	if err != nil {
		return fmt.Errorf("failed to initialize tally: %w", err)
	}
	defer tallyStore.Close()
	deps.Tally = tallyStore
	slog.Info("tally initialized", "type", cfg.Tally.Type)

	tallyWorker := worker.NewWorker(busImpl, tallyStore)
	if err := tallyWorker.Start(); err != nil {
		return fmt.Errorf("failed to start tally worker: %w", err)
	}
	deps.Worker = tallyWorker

	// Initialize Scorer
	deps.Scorer, err = scoring.NewDefaultScorer()
	if err != nil {
		return fmt.Errorf("failed to initialize scorer: %w", err)
	}
	slog.Info("scorer initialized", "rules_count", len(deps.Scorer.Rules()))

	deps.Explainer, err = explain.New(ctx, cfg.Explainer)
	if err != nil {
		return fmt.Errorf("failed to initialize explainer: %w", err)
	}

	srv := api.NewServer(cfg.Server, deps)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("govguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(out, cfg, Version)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		tallyWorker.Stop()
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("shutting down...")
	shutdown(srv, tallyWorker, 10*time.Second)

	slog.Info("govguard shutdown complete")
	return nil
}

type httpShutdowner interface {
	Shutdown(ctx context.Context) error
}

type stopper interface {
	Stop() error
}

// shutdown drains in-flight requests first, then stops the tally worker, so
// every decision a request published still reaches the totals.
func shutdown(srv httpShutdowner, tallyWorker stopper, timeout time.Duration) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if err := tallyWorker.Stop(); err != nil {
		slog.Error("failed to stop tally worker", "error", err)
	}
}

func printBanner(w io.Writer, cfg *domain.Config, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  GovGuard - invoice risk scoring")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Version:  %s\n", version)
	fmt.Fprintf(w, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Endpoints:")
	fmt.Fprintln(w, "    POST /evaluate       - Score an invoice")
	fmt.Fprintln(w, "    GET  /stats          - Running totals")
	fmt.Fprintln(w, "    POST /payments       - Record a vendor payment")
	fmt.Fprintln(w, "    GET  /payments/{id}  - Get a vendor payment")
	fmt.Fprintln(w, "    GET  /health         - Health check")
	fmt.Fprintln(w)
}
