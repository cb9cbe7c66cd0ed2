package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/promptmarket/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-driver string  document store driver (memory, postgres, sqlite)
//	-d string       database DSN
//	-a string       gRPC health bind address
//	-m string       metrics bind address
//	-l string       log level
//	-s string       token secret key
//
// Other arguments are filtered out first with flagx.FilterArgs so that -c and
// -env, owned by other layers, do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-driver", "-d", "-a", "-m", "-l", "-s"})

	fs := flag.NewFlagSet("marketplace", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.StoreDriver, "driver", config.StoreDriver, "document store driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.HealthAddrGRPC, "a", config.HealthAddrGRPC, "gRPC health address")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
