package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/promptmarket/internal/flagx"
	"github.com/dmitrijs2005/promptmarket/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from zero values so a partial file only overrides what
// it names.
type JsonConfig struct {
	StoreDriver         *string         `json:"store_driver"`
	DatabaseDSN         *string         `json:"database_dsn"`
	HealthAddrGRPC      *string         `json:"health_addr_grpc"`
	MetricsAddr         *string         `json:"metrics_addr"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
	FreeGenerationLimit *int            `json:"free_generation_limit"`
	FreeSubmissionLimit *int            `json:"free_submission_limit"`
	ProSubmissionLimit  *int            `json:"pro_submission_limit"`
	QuotaTimezone       *string         `json:"quota_timezone"`
	SecretKey           *string         `json:"secret_key"`
	RecentLoginWindow   *timex.Duration `json:"recent_login_window"`
	OpenAIAPIKey        *string         `json:"openai_api_key"`
	OpenAIModel         *string         `json:"openai_model"`
	OpenAIBaseURL       *string         `json:"openai_base_url"`
	ProPriceCents       *int64          `json:"pro_price_cents"`
	PaymentDelay        *timex.Duration `json:"payment_delay"`
	PaymentAlwaysFail   *bool           `json:"payment_always_fail"`
}

// parseJSON overlays the file named by -c/-config onto config. No flag means
// nothing to load.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.StoreDriver, c.StoreDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.HealthAddrGRPC, c.HealthAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setInt(&config.FreeGenerationLimit, c.FreeGenerationLimit)
	setInt(&config.FreeSubmissionLimit, c.FreeSubmissionLimit)
	setInt(&config.ProSubmissionLimit, c.ProSubmissionLimit)
	setString(&config.QuotaTimezone, c.QuotaTimezone)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.OpenAIAPIKey, c.OpenAIAPIKey)
	setString(&config.OpenAIModel, c.OpenAIModel)
	setString(&config.OpenAIBaseURL, c.OpenAIBaseURL)
	if c.RecentLoginWindow != nil {
		config.RecentLoginWindow = c.RecentLoginWindow.Duration
	}
	if c.ProPriceCents != nil {
		config.ProPriceCents = *c.ProPriceCents
	}
	if c.PaymentDelay != nil {
		config.PaymentDelay = c.PaymentDelay.Duration
	}
	if c.PaymentAlwaysFail != nil {
		config.PaymentAlwaysFail = *c.PaymentAlwaysFail
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
