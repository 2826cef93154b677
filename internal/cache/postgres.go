package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTable = "quasar_entries"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// PostgresSource reads values from a two-column table (key TEXT PRIMARY
// KEY, value BYTEA). It is typically the system of record behind a Redis
// L1 in a TieredSource.
type PostgresSource struct {
	pool  *pgxpool.Pool
	table string

	selectSQL string
	upsertSQL string
}

// NewPostgresSource connects to dsn, verifies the connection and creates the
// table if it does not exist. An empty table name selects "quasar_entries".
func NewPostgresSource(ctx context.Context, dsn, table string) (*PostgresSource, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	p, err := newPostgresSource(pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func newPostgresSource(pool *pgxpool.Pool, table string) (*PostgresSource, error) {
	if table == "" {
		table = defaultPostgresTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid postgres table name %q", table)
	}
	return &PostgresSource{
		pool:      pool,
		table:     table,
		selectSQL: fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, table),
		upsertSQL: fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, table),
	}, nil
}

func (p *PostgresSource) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL
	)`, p.table)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *PostgresSource) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, p.selectSQL, key).Scan(&value)
	if err != nil {
		return nil, pgErr(err)
	}
	return value, nil
}

// Set upserts value. Rows do not expire, so ttl is ignored.
func (p *PostgresSource) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := p.pool.Exec(ctx, p.upsertSQL, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *PostgresSource) Ping(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return p.pool.Ping(ctx)
}

func (p *PostgresSource) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func pgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
