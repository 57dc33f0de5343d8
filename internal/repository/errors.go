package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPoolExhausted means no connection could be acquired within the
	// configured acquire timeout. Callers map it to a retryable
	// service-unavailable condition, never a generic internal error.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrStoreFailed wraps any statement the backing store rejected or
	// failed. The underlying driver error stays server-side.
	ErrStoreFailed = errors.New("store operation failed")

	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// acquire checks a connection out of the pool, failing fast with
// ErrPoolExhausted instead of queuing indefinitely. Every caller must pair
// it with a deferred Release so the connection returns to the pool on all
// exit paths. The acquire context only bounds the wait; the connection
// itself outlives it.
func acquire(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) (*pgxpool.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := pool.Acquire(actx)
	if err != nil {
		if actx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, err)
		}
		return nil, fmt.Errorf("%w: acquiring connection: %v", ErrStoreFailed, err)
	}
	return conn, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreFailed, op, err)
}
