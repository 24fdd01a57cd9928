package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// AdminConfig guards the /admin elevation path.
type AdminConfig struct {
	Password string `yaml:"password" envconfig:"ADMIN_PASSWORD"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// StateConfig selects where navigation and staging records live.
type StateConfig struct {
	Driver    string        `yaml:"driver" envconfig:"STATE_DRIVER"`
	RedisAddr string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisDB   int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	RedisPass string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	TTL       time.Duration `yaml:"ttl" envconfig:"STATE_TTL"`
}

// MediaConfig selects the product image backend.
type MediaConfig struct {
	Driver        string `yaml:"driver" envconfig:"MEDIA_DRIVER"`
	Bucket        string `yaml:"bucket" envconfig:"MEDIA_BUCKET"`
	Region        string `yaml:"region" envconfig:"MEDIA_REGION"`
	Endpoint      string `yaml:"endpoint" envconfig:"MEDIA_ENDPOINT"`
	Prefix        string `yaml:"prefix" envconfig:"MEDIA_PREFIX"`
	PublicBaseURL string `yaml:"public_base_url" envconfig:"MEDIA_PUBLIC_BASE_URL"`
	AccessKey     string `yaml:"access_key" envconfig:"MEDIA_ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" envconfig:"MEDIA_SECRET_KEY"`
}

// RetryConfig tunes the collaborator retry policy.
type RetryConfig struct {
	Attempts     int           `yaml:"attempts" envconfig:"RETRY_ATTEMPTS"`
	InitialDelay time.Duration `yaml:"initial_delay" envconfig:"RETRY_INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" envconfig:"RETRY_MAX_DELAY"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// DriverMemory keeps data in process memory.
	DriverMemory = "memory"
	// DriverPostgres stores data in PostgreSQL.
	DriverPostgres = "postgres"
	// DriverRedis stores data in Redis.
	DriverRedis = "redis"
	// DriverS3 stores media in an S3 compatible bucket.
	DriverS3 = "s3"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text and photo messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	State     StateConfig     `yaml:"state"`
	Media     MediaConfig     `yaml:"media"`
	Retry     RetryConfig     `yaml:"retry"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Admin.Password) == "" {
		return fmt.Errorf("admin.password is required")
	}

	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	if err := normalizeDrivers(cfg); err != nil {
		return err
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = 200 * time.Millisecond
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 3 * time.Second
	}
	return nil
}

func normalizeRunMode(cfg *Config) error {
	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	return nil
}

func normalizeDrivers(cfg *Config) error {
	storage := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch storage {
	case "":
		storage = DriverMemory
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: memory, postgres", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = storage
	if storage == DriverPostgres {
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres driver")
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 5
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = "migrations"
		}
	}

	state := strings.ToLower(strings.TrimSpace(cfg.State.Driver))
	switch state {
	case "":
		state = DriverMemory
	case DriverMemory:
	case DriverRedis:
		if strings.TrimSpace(cfg.State.RedisAddr) == "" {
			return fmt.Errorf("state.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid state.driver %q; allowed: memory, redis", cfg.State.Driver)
	}
	cfg.State.Driver = state
	if cfg.State.TTL < 0 {
		return fmt.Errorf("state.ttl must be >= 0")
	}

	media := strings.ToLower(strings.TrimSpace(cfg.Media.Driver))
	switch media {
	case "":
		media = DriverMemory
	case DriverMemory:
	case DriverS3:
		if strings.TrimSpace(cfg.Media.Bucket) == "" {
			return fmt.Errorf("media.bucket is required for the s3 driver")
		}
		if cfg.Media.Region == "" {
			cfg.Media.Region = "us-east-1"
		}
	default:
		return fmt.Errorf("invalid media.driver %q; allowed: memory, s3", cfg.Media.Driver)
	}
	cfg.Media.Driver = media
	return nil
}
