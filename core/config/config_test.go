package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Admin:    AdminConfig{Password: "secret"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, DriverMemory, cfg.State.Driver)
	assert.Equal(t, DriverMemory, cfg.Media.Driver)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialDelay)
}

func TestNormalizeRejectsMissingSecrets(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.Token = ""
	require.Error(t, Normalize(cfg))

	cfg = baseConfig()
	cfg.Admin.Password = "  "
	require.ErrorContains(t, Normalize(cfg), "admin.password")
}

func TestNormalizeWebhookRequiresListener(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "webhook"
	cfg.Webhook.URL = "https://example.org/hook"
	require.ErrorContains(t, Normalize(cfg), "webhook.listen")

	cfg.Webhook.Listen = "0.0.0.0"
	cfg.Webhook.Port = 8443
	require.NoError(t, Normalize(cfg))
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "Polling"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeDrivers(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Driver = "postgres"
	require.ErrorContains(t, Normalize(cfg), "database.host")

	cfg.Database.Host = "localhost"
	cfg.Database.Name = "store"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)

	cfg.State.Driver = "redis"
	require.ErrorContains(t, Normalize(cfg), "redis_addr")
	cfg.State.RedisAddr = "localhost:6379"
	require.NoError(t, Normalize(cfg))

	cfg.Media.Driver = "s3"
	require.ErrorContains(t, Normalize(cfg), "media.bucket")
	cfg.Media.Bucket = "store-media"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "us-east-1", cfg.Media.Region)

	cfg.Media.Driver = "ftp"
	require.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", ""}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "callback", cfg.RateLimit.ExcludeUpdates[0])

	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	require.Error(t, Normalize(cfg))
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("telegram:\n  token: file-token\nadmin:\n  password: from-file\nstate:\n  ttl: 30m\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("ADMIN_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, "from-env", cfg.Admin.Password)
	assert.Equal(t, 30*time.Minute, cfg.State.TTL)
}
