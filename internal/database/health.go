package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const healthTimeout = 2 * time.Second

// Health reports dependency reachability for the /health endpoint.
type Health struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewHealth creates a Health checker.
func NewHealth(pool *pgxpool.Pool, rdb *redis.Client) *Health {
	return &Health{pool: pool, rdb: rdb}
}

// Check pings PostgreSQL and Redis and returns a status per dependency.
// ok is false if any dependency is unreachable.
func (h *Health) Check(ctx context.Context) (status map[string]string, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	status = map[string]string{"postgres": "ok", "redis": "ok"}
	ok = true

	if err := h.pool.Ping(ctx); err != nil {
		status["postgres"] = err.Error()
		ok = false
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		ok = false
	}
	return status, ok
}
