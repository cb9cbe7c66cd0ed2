package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "memory", c.StoreDriver)
	assert.Equal(t, ":50051", c.HealthAddrGRPC)
	assert.Equal(t, 5, c.FreeGenerationLimit)
	assert.Equal(t, 2, c.FreeSubmissionLimit)
	assert.Equal(t, 10, c.ProSubmissionLimit)
	assert.Equal(t, "UTC", c.QuotaTimezone)
	assert.Equal(t, 5*time.Minute, c.RecentLoginWindow)
	assert.Equal(t, int64(999), c.ProPriceCents)
	require.NoError(t, c.Validate())
}

func TestLoad_NoSourcesEqualsDefaults(t *testing.T) {
	c, err := load(nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), c))
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"store_driver":          "sqlite",
		"database_dsn":          "from-json.db",
		"log_level":             "debug",
		"free_generation_limit": 7,
		"recent_login_window":   "2m",
		"payment_delay":         0,
	})

	t.Setenv("PROMPTMARKET_DATABASE_DSN", "from-env.db")
	t.Setenv("PROMPTMARKET_PRO_SUBMISSION_LIMIT", "20")

	c, err := load([]string{"-c", path, "-l", "warn"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.StoreDriver)
	assert.Equal(t, "from-env.db", c.DatabaseDSN, "env beats json")
	assert.Equal(t, "warn", c.LogLevel, "flags beat json")
	assert.Equal(t, 7, c.FreeGenerationLimit)
	assert.Equal(t, 20, c.ProSubmissionLimit)
	assert.Equal(t, 2*time.Minute, c.RecentLoginWindow)
	assert.Equal(t, time.Duration(0), c.PaymentDelay)
	assert.Equal(t, "json", c.LogFormat, "absent json keys keep defaults")
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PROMPTMARKET_SECRET_KEY", "env-secret")

	c, err := load([]string{"-s", "flag-secret", "-driver", "postgres", "-d", "postgres://x"})
	require.NoError(t, err)
	assert.Equal(t, "flag-secret", c.SecretKey)
	assert.Equal(t, "postgres", c.StoreDriver)
	assert.Equal(t, "postgres://x", c.DatabaseDSN)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := load([]string{"-c", filepath.Join(t.TempDir(), "absent.json")})
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ not json`), 0o600))
		_, err := load([]string{"-c", bad})
		require.Error(t, err)
	})

	t.Run("sql driver without dsn", func(t *testing.T) {
		_, err := load([]string{"-driver", "postgres"})
		require.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := load([]string{"-driver", "mongo"})
		require.Error(t, err)
	})
}

func TestValidate_SubmissionLimits(t *testing.T) {
	c := defaults()
	c.ProSubmissionLimit = c.FreeSubmissionLimit
	require.Error(t, c.Validate(), "pro limit must be strictly larger")

	c = defaults()
	c.QuotaTimezone = "Mars/Olympus"
	require.Error(t, c.Validate())
}

func TestLocation(t *testing.T) {
	c := defaults()
	c.QuotaTimezone = "America/New_York"
	assert.Equal(t, "America/New_York", c.Location().String())

	c.QuotaTimezone = "nowhere"
	assert.Equal(t, time.UTC, c.Location())
}
