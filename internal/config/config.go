// Package config provides environment-aware configuration for the mixer.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	slruntime "github.com/frennadev/nitro-launch-bot-sub004/infrastructure/runtime"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds mixer configuration sourced from the environment (§6).
type Config struct {
	Env Environment

	// Persistence (§4.1 persistence contract)
	DatabaseURL      string `env:"MIXER_DATABASE_URL"`
	DBMaxConnections int    `env:"DB_MAX_CONNECTIONS,default=20"`

	// Encryption (§6 "encryption wire format")
	EncryptionSecret string `env:"ENCRYPTION_SECRET"`

	// Chain connection (§4.3)
	RPCEndpoint string `env:"RPC_ENDPOINT"`

	// MixerConfig defaults (§3); per-run callers may still override these.
	IntermediateWalletCount int           `env:"MIXER_INTERMEDIATE_WALLET_COUNT,default=8"` // K
	MinDelay                time.Duration `env:"MIXER_MIN_DELAY,default=5s"`                // sequential mode total budget, lower bound
	MaxDelay                time.Duration `env:"MIXER_MAX_DELAY,default=30s"`               // sequential mode total budget, upper bound
	UseFreshWallets         bool          `env:"MIXER_USE_FRESH_WALLETS,default=false"`
	PriorityFee             int64         `env:"PRIORITY_FEE,default=1000"`
	FeeFundingWalletKey     string        `env:"MIXER_FEE_FUNDING_WALLET_PRIVATE_KEY"` // base58 secret key, optional
	ParallelMode            bool          `env:"MIXER_PARALLEL_MODE,default=false"`
	MaxConcurrentTx         int           `env:"MIXER_MAX_CONCURRENT_TX,default=3"`
	BalanceCheckTimeout     time.Duration `env:"MIXER_BALANCE_CHECK_TIMEOUT,default=5s"`

	// Adjacent fee collection (mixer itself does not levy these — §6)
	TransactionFeePercentage float64 `env:"TRANSACTION_FEE_PERCENTAGE,default=0"`
	TransactionFeeWallet     string  `env:"TRANSACTION_FEE_WALLET"`
	PlatformFeeWallet        string  `env:"PLATFORM_FEE_WALLET"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	// Rate limiting (§4.3)
	ReadRequestsPerSecond   int `env:"MIXER_READ_RPS,default=180"`
	SubmitRequestsPerSecond int `env:"MIXER_SUBMIT_RPS,default=45"`

	// Features
	MetricsEnabled bool `env:"METRICS_ENABLED"`
	MetricsPort    int  `env:"METRICS_PORT,default=9090"`
}

// Load loads configuration based on MIXER_ENV/ENVIRONMENT, applying
// config/<env>.env as a base layer and real environment variables as the
// override layer.
func Load() (*Config, error) {
	env := Environment(slruntime.Env())

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	_ = godotenv.Load(configFile) // absence of a per-env file is not an error

	cfg := &Config{
		Env:            env,
		MetricsEnabled: env == Production,
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors when none of its tagged fields are present in the
		// environment at all; that just means every value falls back to its
		// struct-tag default, which is fine for local runs.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("failed to load configuration: decode env: %w", err)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("failed to load configuration: MIXER_DATABASE_URL is required")
	}
	if cfg.EncryptionSecret == "" {
		return nil, fmt.Errorf("failed to load configuration: ENCRYPTION_SECRET is required")
	}
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("failed to load configuration: RPC_ENDPOINT is required")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development environment.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

// IsTesting returns true if running in testing environment.
func (c *Config) IsTesting() bool { return c.Env == Testing }

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool { return c.Env == Production }

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.IntermediateWalletCount < 1 {
		return fmt.Errorf("MIXER_INTERMEDIATE_WALLET_COUNT must be >= 1")
	}
	if c.MaxConcurrentTx < 1 {
		return fmt.Errorf("MIXER_MAX_CONCURRENT_TX must be >= 1")
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("MIXER_MIN_DELAY must be <= MIXER_MAX_DELAY")
	}
	if c.IsProduction() && c.EncryptionSecret == "" {
		return fmt.Errorf("ENCRYPTION_SECRET must be set in production")
	}
	return nil
}
