package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/storebot/core/config"
	coredatabase "github.com/m3rciful/storebot/core/database"
	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/retry"
)

// Options control the bootstrap pipeline. Zero hooks use the real implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig, retry.Policy) (*sqlx.DB, error)
	Migrate    func(*sqlx.DB, string) error
	Redis      func(context.Context, coreconfig.StateConfig, retry.Policy) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil unless storage uses postgres, Redis is nil unless state uses redis.
type Result struct {
	DB     *sqlx.DB
	Redis  *redis.Client
	Policy retry.Policy
}

// Close releases the connections held by r.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, then connects and migrates the backends the config selects.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{Policy: retry.FromConfig(cfg.Retry)}

	if cfg.Storage.Driver == coreconfig.DriverPostgres {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, cfg.Database, res.Policy)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(db, cfg.Database.MigrationsDir); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	if cfg.State.Driver == coreconfig.DriverRedis {
		connect := opts.Redis
		if connect == nil {
			connect = ConnectRedis
		}
		client, err := connect(ctx, cfg.State, res.Policy)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = client
	}

	return res, nil
}

// ConnectRedis opens a client and pings it, retrying while the server starts up.
func ConnectRedis(ctx context.Context, cfg coreconfig.StateConfig, policy retry.Policy) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	start := time.Now()
	err := policy.Do(ctx, "redis.connect", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		logger.Error(ctx, logger.CompStaging, "redis.connect",
			slog.String("addr", cfg.RedisAddr),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	logger.Info(ctx, logger.CompStaging, "redis.connect",
		slog.String("status", "ok"),
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
		slog.Duration("duration", logger.Took(start)),
	)
	return client, nil
}
