package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
)

// Cache is the shared TTL response cache backed by Postgres, so cache
// hits survive process restarts and are visible to every replica.
// Expired rows are filtered on read and reaped opportunistically on
// write; no background sweeper is needed.
type Cache struct {
	db *sql.DB
}

func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (c *Cache) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS answer_cache (
	cache_key TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_answer_cache_expires_at ON answer_cache(expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `SELECT payload FROM answer_cache WHERE cache_key = $1 AND expires_at > now()`

	var payload []byte
	err := c.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return payload, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `
INSERT INTO answer_cache (cache_key, payload, expires_at)
VALUES ($1, $2, now() + $3::interval)
ON CONFLICT (cache_key)
DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, created_at = now()`

	interval := fmt.Sprintf("%d milliseconds", ttl.Milliseconds())
	if _, err := c.db.ExecContext(ctx, query, key, value, interval); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	c.reapExpired(ctx)
	return nil
}

// reapExpired removes a small batch of expired rows per write. Failures
// are irrelevant to the caller; the read path never serves expired rows.
func (c *Cache) reapExpired(ctx context.Context) {
	const query = `
DELETE FROM answer_cache WHERE cache_key IN (
	SELECT cache_key FROM answer_cache WHERE expires_at <= now() LIMIT 100
)`
	_, _ = c.db.ExecContext(ctx, query)
}

var _ ports.AnswerCache = (*Cache)(nil)
