package bootstrap

import (
	"context"
	"fmt"

	"github.com/dukerupert/kirana/internal"
	"github.com/dukerupert/kirana/internal/billing"
	"github.com/dukerupert/kirana/internal/events"
	"github.com/dukerupert/kirana/internal/memory"
	"github.com/dukerupert/kirana/internal/postgres"
	"github.com/dukerupert/kirana/internal/pricing"
	"github.com/dukerupert/kirana/internal/repository"
	"github.com/rs/zerolog"
)

// Store is a repository.Store that can report its health.
type Store interface {
	repository.Store
	Ping(ctx context.Context) error
}

// OpenStore opens the configured store. The returned func releases it.
// The memory store is seeded with demo data; Postgres is migrated when
// cfg.Database.Migrate is set.
func OpenStore(ctx context.Context, cfg *internal.Config, logger zerolog.Logger) (Store, func(), error) {
	switch cfg.Database.Driver {
	case internal.StorageDriverMemory:
		logger.Warn().Msg("Using in-memory store; data is lost on restart")
		store := memory.NewStore()
		if err := SeedDemoData(ctx, store, logger); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		return store, func() {}, nil

	case internal.StorageDriverPostgres:
		if cfg.Database.Migrate {
			logger.Info().Msg("Running database migrations...")
			if err := internal.MigrateDatabase(cfg.Database.URL); err != nil {
				return nil, nil, fmt.Errorf("migration failed: %w", err)
			}
			logger.Info().Msg("Database migrations completed successfully")
		}

		logger.Info().Msg("Connecting to database...")
		store, err := postgres.New(ctx, postgres.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		logger.Info().Msg("Database connection established")
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Database.Driver)
}

// NewBillingProvider returns the Stripe provider, or the in-process mock
// when no secret key is configured outside production.
func NewBillingProvider(cfg *internal.Config, logger zerolog.Logger) (billing.Provider, error) {
	if cfg.UsesMockPayments() {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set; using mock billing provider")
		return billing.NewMockProvider(), nil
	}

	logger.Info().Msg("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Currency:      cfg.Stripe.Currency,
	}
	provider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info().Bool("test_mode", stripeConfig.IsTestMode()).Msg("Stripe billing provider initialized")
	return provider, nil
}

// NewPublisher connects to NATS, or returns a no-op publisher when no URL
// is configured.
func NewPublisher(cfg *internal.Config, name string, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.NATS.URL == "" {
		logger.Info().Msg("NATS_URL not set; settlement events disabled")
		return events.Nop{}, nil
	}

	logger.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")
	pub, err := events.NewNATSPublisher(events.NATSConfig{
		URL:           cfg.NATS.URL,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		Name:          name,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info().Msg("NATS publisher initialized")
	return pub, nil
}

// PricingPolicy builds the pricing policy from configuration.
func PricingPolicy(cfg *internal.Config) pricing.Policy {
	return pricing.NewPolicy(
		cfg.Pricing.FreeShippingThreshold,
		cfg.Pricing.FlatShippingFee,
		cfg.Pricing.TaxRate,
		cfg.Pricing.ReferralBonusRate,
	)
}
