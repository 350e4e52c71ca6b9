package coordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresKV is a concrete KV backing for the coordination store, adapted
// from the teacher's PostgresMetadataStore. The hierarchical key space
// spec.md §6 describes is flattened into a single table keyed by the
// full path string.
type PostgresKV struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresKV opens a pool and ensures the backing table exists.
func NewPostgresKV(ctx context.Context, host string, port int, database, user, password string, maxConns, minConns int32, logger *zap.Logger) (*PostgresKV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	kv := &PostgresKV{pool: pool, logger: logger}
	if err := kv.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return kv, nil
}

func (p *PostgresKV) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admin_coordination_kv (
			key   TEXT PRIMARY KEY,
			value BYTEA NOT NULL
		)
	`)
	return err
}

// Put performs an atomic upsert, the single-key write primitive spec.md
// §6 requires of the coordination store.
func (p *PostgresKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO admin_coordination_kv (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to put coordination key %q: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM admin_coordination_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get coordination key %q: %w", key, err)
	}
	return value, nil
}

func (p *PostgresKV) Close() {
	p.pool.Close()
}
