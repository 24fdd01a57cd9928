package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/retry"
)

// DSN renders a libpq keyword/value connection string.
func DSN(cfg coreconfig.DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, portOrDefault(cfg.Port), cfg.Name, cfg.SSLMode,
	)
}

func portOrDefault(port string) string {
	if port == "" {
		return "5432"
	}
	return port
}

// Connect opens the pool, verifies connectivity and applies pool limits.
// Transient startup failures such as a database still booting are retried with policy.
func Connect(ctx context.Context, cfg coreconfig.DatabaseConfig, policy retry.Policy) (*sqlx.DB, error) {
	start := time.Now()
	db, err := retry.Value(ctx, policy, "db.connect", func(ctx context.Context) (*sqlx.DB, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return sqlx.ConnectContext(attemptCtx, "postgres", DSN(cfg))
	})
	took := logger.Took(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", "postgres"),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", cfg.Name),
			slog.Duration("duration", took),
			logger.Err(err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", maxConns),
		slog.Duration("duration", took),
	)
	return db, nil
}
