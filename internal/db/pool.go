package db

import (
	"context"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgxpool"

	"patentes-service/internal/config"
)

// NewPool builds the bounded connection pool for one worker process.
//
// The pool must be constructed after the process starts and closed before it
// exits; connections must never be inherited across a process-spawn boundary.
// A per-connection statement_timeout is the only backstop against runaway
// queries, since no request cancellation propagates into in-flight statements.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MinConns = cfg.DB.PoolMinConns
	poolCfg.MaxConns = cfg.DB.PoolMaxConns

	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] =
		fmt.Sprintf("%d", cfg.DB.StatementTimeout.Milliseconds())

	dialer := &net.Dialer{
		Timeout:   poolCfg.ConnConfig.ConnectTimeout,
		KeepAlive: cfg.DB.KeepAlive,
	}
	poolCfg.ConnConfig.DialFunc = dialer.DialContext

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
