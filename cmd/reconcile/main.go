// Command reconcile runs a single reconciliation pass over stale pending
// orders and exits. It is meant for cron or a one-off recovery after a
// webhook outage; the server runs the same pass on a ticker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dukerupert/kirana/internal"
	"github.com/dukerupert/kirana/internal/bootstrap"
	"github.com/dukerupert/kirana/internal/service"
	"github.com/dukerupert/kirana/internal/telemetry"
	"github.com/dukerupert/kirana/internal/worker"
)

func run() error {
	minAge := flag.Duration("min-age", 0, "only examine orders older than this (default from RECONCILE_MIN_AGE)")
	batch := flag.Int("batch", 0, "orders read per page (default from RECONCILE_BATCH_SIZE)")
	intentTTL := flag.Duration("intent-ttl", 0, "cancel intents still awaiting payment after this (default from RECONCILE_INTENT_TTL)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := bootstrap.NewBillingProvider(cfg, logger)
	if err != nil {
		return err
	}
	publisher, err := bootstrap.NewPublisher(cfg, "kirana-reconcile", logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	settlement := service.NewSettlementService(store, provider, bootstrap.PricingPolicy(cfg), publisher, logger)

	wcfg := worker.Config{
		WorkerID:       "reconcile-cli",
		Interval:       cfg.Reconcile.Interval,
		MinAge:         cfg.Reconcile.MinAge,
		BatchSize:      cfg.Reconcile.BatchSize,
		MaxConcurrency: cfg.Reconcile.MaxConcurrency,
		IntentTTL:      cfg.Reconcile.IntentTTL,
	}
	if *minAge > 0 {
		wcfg.MinAge = *minAge
	}
	if *batch > 0 {
		wcfg.BatchSize = *batch
	}
	if *intentTTL > 0 {
		wcfg.IntentTTL = *intentTTL
	}

	report, err := worker.NewReconciler(store, provider, settlement, wcfg, logger).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	logger.Info().
		Int("checked", report.Checked).
		Int("settled", report.Settled).
		Int("canceled", report.Canceled).
		Int("expired", report.Expired).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Reconciliation complete")

	if report.Failed > 0 {
		return fmt.Errorf("%d orders failed to reconcile", report.Failed)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("reconcile exited")
	}
}
