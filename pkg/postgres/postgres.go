package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgreDB struct {
	Pool     *pgxpool.Pool
	DBConfig *pgxpool.Config
}

type Config interface {
	GetDSN() string
	PoolLimits() (maxConns, minConns int32, maxConnLifetime, maxConnIdleTime time.Duration)
}

// New opens a pgx pool sized from config and verifies the connection
// with a ping before returning.
func New(ctx context.Context, config Config) (*PostgreDB, error) {
	dbConfig, err := pgxpool.ParseConfig(config.GetDSN())
	if err != nil {
		return nil, err
	}

	maxConns, minConns, lifetime, idle := config.PoolLimits()
	dbConfig.MaxConns = maxConns
	dbConfig.MinConns = minConns
	dbConfig.MaxConnLifetime = lifetime
	dbConfig.MaxConnIdleTime = idle

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgreDB{
		Pool:     pool,
		DBConfig: dbConfig,
	}, nil
}
