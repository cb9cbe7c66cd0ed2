// Package config handles configuration for the marketplace process: defaults,
// a JSON overlay, environment variables and finally command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings.
//
// Fields:
//   - StoreDriver / DatabaseDSN: document store backend ("memory", "postgres", "sqlite").
//   - HealthAddrGRPC: bind address of the gRPC health endpoint; empty disables it.
//   - MetricsAddr: bind address of the Prometheus endpoint; empty disables it.
//   - FreeGenerationLimit: monthly AI generations for the free tier.
//   - FreeSubmissionLimit / ProSubmissionLimit: daily community submissions per tier.
//   - QuotaTimezone: IANA zone used to compute quota epoch keys.
//   - SecretKey / RecentLoginWindow: identity token signing and the freshness
//     required for password change and account deletion.
//   - OpenAI*: generative text service settings.
//   - ProPriceCents / PaymentDelay / PaymentAlwaysFail: simulated payment processor.
type Config struct {
	StoreDriver    string `envconfig:"STORE_DRIVER" validate:"oneof=memory postgres sqlite"`
	DatabaseDSN    string `envconfig:"DATABASE_DSN" validate:"required_unless=StoreDriver memory"`
	HealthAddrGRPC string `envconfig:"HEALTH_ADDR_GRPC"`
	MetricsAddr    string `envconfig:"METRICS_ADDR"`
	LogLevel       string `envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat      string `envconfig:"LOG_FORMAT" validate:"oneof=json text"`

	FreeGenerationLimit int    `envconfig:"FREE_GENERATION_LIMIT" validate:"gte=1"`
	FreeSubmissionLimit int    `envconfig:"FREE_SUBMISSION_LIMIT" validate:"gte=0"`
	ProSubmissionLimit  int    `envconfig:"PRO_SUBMISSION_LIMIT" validate:"gtfield=FreeSubmissionLimit"`
	QuotaTimezone       string `envconfig:"QUOTA_TIMEZONE" validate:"required"`

	SecretKey         string        `envconfig:"SECRET_KEY" validate:"required"`
	RecentLoginWindow time.Duration `envconfig:"RECENT_LOGIN_WINDOW" validate:"gt=0"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	ProPriceCents     int64         `envconfig:"PRO_PRICE_CENTS" validate:"gt=0"`
	PaymentDelay      time.Duration `envconfig:"PAYMENT_DELAY" validate:"gte=0"`
	PaymentAlwaysFail bool          `envconfig:"PAYMENT_ALWAYS_FAIL"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey is insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.StoreDriver = "memory"
	c.DatabaseDSN = ""
	c.HealthAddrGRPC = ":50051"
	c.MetricsAddr = ":9090"
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.FreeGenerationLimit = 5
	c.FreeSubmissionLimit = 2
	c.ProSubmissionLimit = 10
	c.QuotaTimezone = "UTC"
	c.SecretKey = "secretKey"
	c.RecentLoginWindow = 5 * time.Minute
	c.OpenAIModel = "gpt-4o-mini"
	c.ProPriceCents = 999
	c.PaymentDelay = 1500 * time.Millisecond
}

var validate = validator.New()

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return fmt.Errorf("invalid config: quota timezone: %w", err)
	}
	return nil
}

// Location returns the quota time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig builds a Config by applying defaults, then overlaying values from
// an optional JSON file, the environment and finally command-line flags.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
