package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/logging"
	"github.com/ekaya-inc/ekaya-briefs/pkg/retry"
)

// DB wraps a pgxpool connection pool. Repositories use the pool directly;
// each call acquires its own connection so concurrent saves never share one.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection creates a new database connection pool and pings it once.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Connect is NewConnection retried with backoff, for startup while Postgres
// may still be coming up. Attempts are logged with the password masked.
func Connect(ctx context.Context, cfg *Config, retryCfg *retry.Config, logger *zap.Logger) (*DB, error) {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	rc := *retryCfg
	rc.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Database not reachable yet, retrying",
			zap.String("url", logging.SanitizeConnectionString(cfg.URL)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	}

	return retry.DoWithResult(ctx, &rc, func() (*DB, error) {
		return NewConnection(ctx, cfg)
	})
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
