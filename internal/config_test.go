package internal

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestConfig_Defaults(t *testing.T) {
	cfg := fromViper(testViper(nil))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, uint16(3000), cfg.Port)
	assert.Equal(t, StorageDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "inr", cfg.Stripe.Currency)
	assert.Equal(t, int64(99900), cfg.Pricing.FreeShippingThreshold)
	assert.Equal(t, int64(9900), cfg.Pricing.FlatShippingFee)
	assert.InDelta(t, 0.18, cfg.Pricing.TaxRate, 1e-9)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Reconcile.IntentTTL)
	assert.True(t, cfg.UsesMockPayments())
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RECONCILE_INTERVAL", "30s")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	cfg := fromViper(v)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint16(8081), cfg.Port)
	assert.Equal(t, StorageDriverMemory, cfg.Database.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
		check     func(t *testing.T, cfg *Config)
	}{
		{
			name:      "unknown env falls back to prod",
			overrides: map[string]any{"ENV": "staging", "STRIPE_SECRET_KEY": "sk", "STRIPE_WEBHOOK_SECRET": "wh"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "prod", cfg.Env)
				assert.False(t, cfg.UsesMockPayments())
			},
		},
		{
			name:      "bad log level falls back to info",
			overrides: map[string]any{"LOG_LEVEL": "loud"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
			},
		},
		{
			name:      "prod requires stripe key",
			overrides: map[string]any{"ENV": "prod"},
			wantErr:   "STRIPE_SECRET_KEY",
		},
		{
			name:      "prod requires webhook secret",
			overrides: map[string]any{"ENV": "prod", "STRIPE_SECRET_KEY": "sk"},
			wantErr:   "STRIPE_WEBHOOK_SECRET",
		},
		{
			name:      "memory store refused in prod",
			overrides: map[string]any{"ENV": "prod", "STORAGE_DRIVER": "memory", "STRIPE_SECRET_KEY": "sk", "STRIPE_WEBHOOK_SECRET": "wh"},
			wantErr:   "not allowed in production",
		},
		{
			name:      "unknown driver",
			overrides: map[string]any{"STORAGE_DRIVER": "sqlite"},
			wantErr:   "unknown STORAGE_DRIVER",
		},
		{
			name:      "tax rate out of range",
			overrides: map[string]any{"PRICING_TAX_RATE": 1.5},
			wantErr:   "PRICING_TAX_RATE",
		},
		{
			name:      "reconcile interval must be positive",
			overrides: map[string]any{"RECONCILE_INTERVAL": "0s"},
			wantErr:   "RECONCILE_INTERVAL",
		},
		{
			name:      "intent ttl must outlive min age",
			overrides: map[string]any{"RECONCILE_MIN_AGE": "2h", "RECONCILE_INTENT_TTL": "1h"},
			wantErr:   "RECONCILE_INTENT_TTL",
		},
		{
			name:      "reconcile concurrency defaults",
			overrides: map[string]any{"RECONCILE_MAX_CONCURRENCY": 0, "RECONCILE_BATCH_SIZE": -1},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 1, cfg.Reconcile.MaxConcurrency)
				assert.Equal(t, 50, cfg.Reconcile.BatchSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fromViper(testViper(tt.overrides))
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod", "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod", "verbose")

	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}
