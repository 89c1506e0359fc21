// GovGuard - Deterministic invoice risk scoring.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/opensource-finance/govguard/internal/config"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries state shared by every subcommand once config is loaded.
type app struct {
	cfgFile string
	cfg     *domain.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	v := viper.New()

	root := &cobra.Command{
		Use:   "govguard",
		Short: "Deterministic fraud-risk scoring for public-sector invoices",
		Long: `GovGuard scores invoices against a fixed table of risk rules and escalates
any invoice that trips two or more of them for manual review.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd, v)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./govguard.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (json, text)")

	_ = v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.scoreCmd())
	root.AddCommand(a.historyCmd())
	root.AddCommand(versionCmd())

	return root
}

func (a *app) initConfig(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Load(v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	return nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
