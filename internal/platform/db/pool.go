package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultApplicationName tags bridge sessions in pg_stat_activity.
const DefaultApplicationName = "ehrbridge"

type PoolOption func(*pgxpool.Config)

// WithConns sets the pool bounds. Non-positive values keep pgx defaults.
func WithConns(maxConns, minConns int32) PoolOption {
	return func(cfg *pgxpool.Config) {
		if maxConns > 0 {
			cfg.MaxConns = maxConns
		}
		if minConns > 0 && minConns <= cfg.MaxConns {
			cfg.MinConns = minConns
		}
	}
}

func WithApplicationName(name string) PoolOption {
	return func(cfg *pgxpool.Config) {
		if name != "" {
			cfg.ConnConfig.RuntimeParams["application_name"] = name
		}
	}
}

// WithHealthCheckPeriod sets how often idle connections are checked.
func WithHealthCheckPeriod(d time.Duration) PoolOption {
	return func(cfg *pgxpool.Config) {
		if d > 0 {
			cfg.HealthCheckPeriod = d
		}
	}
}

// PoolConfig parses databaseURL and applies opts without connecting. The
// application name defaults to DefaultApplicationName unless the URL sets one.
func PoolConfig(databaseURL string, opts ...PoolOption) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = DefaultApplicationName
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// NewPool connects and pings; the pool is closed again if the ping fails.
func NewPool(ctx context.Context, databaseURL string, opts ...PoolOption) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(databaseURL, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s/%s: %w", cfg.ConnConfig.Host, cfg.ConnConfig.Database, err)
	}
	return pool, nil
}
