package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces the environment overlay, e.g. PROMPTMARKET_DATABASE_DSN.
const EnvPrefix = "PROMPTMARKET"

// parseEnv overlays variables that are set; unset variables keep the current value.
func parseEnv(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
