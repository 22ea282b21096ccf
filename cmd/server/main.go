package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/dukerupert/kirana/internal"
	"github.com/dukerupert/kirana/internal/bootstrap"
	"github.com/dukerupert/kirana/internal/handler"
	"github.com/dukerupert/kirana/internal/handler/storefront"
	"github.com/dukerupert/kirana/internal/handler/webhook"
	"github.com/dukerupert/kirana/internal/middleware"
	"github.com/dukerupert/kirana/internal/router"
	"github.com/dukerupert/kirana/internal/routes"
	"github.com/dukerupert/kirana/internal/service"
	"github.com/dukerupert/kirana/internal/telemetry"
	"github.com/dukerupert/kirana/internal/worker"
)

const metricsNamespace = "kirana"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Metrics share one registry so /metrics exposes HTTP and business series
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	telemetry.Business = telemetry.NewBusinessMetrics(metricsNamespace, reg)
	metrics := middleware.NewMetrics(metricsNamespace, reg)

	// Store
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Payment processor
	billingProvider, err := bootstrap.NewBillingProvider(cfg, logger)
	if err != nil {
		return err
	}

	// Settlement events
	publisher, err := bootstrap.NewPublisher(cfg, "kirana-server", logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// ==========================================================================
	// Initialize services
	// ==========================================================================

	policy := bootstrap.PricingPolicy(cfg)

	logger.Info().Msg("Initializing services...")
	cartService := service.NewCartService(store, policy, logger)
	checkoutService := service.NewCheckoutService(store, billingProvider, policy, cfg.Stripe.Currency, logger)
	orderService := service.NewOrderService(store, logger)
	settlementService := service.NewSettlementService(store, billingProvider, policy, publisher, logger)
	referralService := service.NewReferralService(store, logger)
	couponService := service.NewCouponService(store, logger)
	logger.Info().Msg("Services initialized")

	// ==========================================================================
	// Initialize handlers and middleware
	// ==========================================================================

	orderHandler := storefront.NewOrderHandler(checkoutService, orderService, settlementService)

	couponLimiter := middleware.NewRateLimiter(middleware.CouponRateLimiterConfig())
	defer couponLimiter.Stop()

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0
	}

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		middleware.Recovery,
		telemetry.SentryMiddleware(),
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		middleware.WithPrincipal,
		telemetry.SentryContextMiddleware(middleware.SentryUser),
	)

	routes.RegisterStorefrontRoutes(r, routes.StorefrontDeps{
		CartHandler:    storefront.NewCartHandler(cartService),
		OrderHandler:   orderHandler,
		LoyaltyHandler: storefront.NewLoyaltyHandler(couponService, referralService),
		CouponLimiter:  couponLimiter,
	})
	routes.RegisterAdminRoutes(r, routes.AdminDeps{OrderHandler: orderHandler})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(billingProvider, settlementService).HandleWebhook,
	})

	opsDeps := routes.OpsDeps{Health: handler.Health(store)}
	if cfg.Server.MetricsEnabled {
		opsDeps.Metrics = metrics.Handler()
	}
	routes.RegisterOpsRoutes(r, opsDeps)

	// ==========================================================================
	// Background reconciliation
	// ==========================================================================

	if cfg.Reconcile.Enabled {
		reconciler := worker.NewReconciler(store, billingProvider, settlementService, worker.Config{
			Interval:       cfg.Reconcile.Interval,
			MinAge:         cfg.Reconcile.MinAge,
			BatchSize:      cfg.Reconcile.BatchSize,
			MaxConcurrency: cfg.Reconcile.MaxConcurrency,
			IntentTTL:      cfg.Reconcile.IntentTTL,
		}, logger)
		go func() {
			if err := reconciler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Reconciler stopped")
			}
		}()
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(router.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins, MaxAgeSeconds: 600})(r),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", srv.Addr).Str("env", cfg.Env).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
