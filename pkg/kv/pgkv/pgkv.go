// Package pgkv is a kv.Store backed by PostgreSQL, queried through
// pgx/v5's native pool rather than database/sql. Unlike Redis, Postgres
// has no built-in key expiry, so ttl is stored as an explicit expires_at
// timestamp column and enforced on read — this is the backend the Open
// Question about TTL units in spec.md §9(a) is actually about: the unit
// ambiguity disappears because the boundary type is time.Duration and
// each backend does its own conversion (see kv.Store).
package pgkv

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver for database/sql, used only to drive migrations
)

//go:embed migrations
var migrationsFS embed.FS

// Store adapts a PostgreSQL table to kv.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, applies the kv_store migration, and returns
// a ready Store. The caller is responsible for calling Close.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("pgkv: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgkv: ping: %w", err)
	}

	if err := runMigrations(cfg); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgkv: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Get returns the stored value for key, or ("", false, nil) if absent or
// past its expires_at.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt *time.Time
	row := s.pool.QueryRow(ctx, `SELECT value, expires_at FROM kv_store WHERE key = $1`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("pgkv: get %q: %w", key, err)
	}
	if expiresAt != nil && time.Now().After(*expiresAt) {
		_, _ = s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
		return "", false, nil
	}
	return value, true, nil
}

// Set stores value under key with an optional ttl, recorded as an
// expires_at timestamp.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_store (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("pgkv: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key, reporting whether it was present.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("pgkv: delete %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Clear truncates the kv_store table.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE TABLE kv_store`); err != nil {
		return fmt.Errorf("pgkv: clear: %w", err)
	}
	return nil
}

// runMigrations applies the embedded kv_store migration using a
// short-lived database/sql connection opened through the pgx stdlib
// driver — golang-migrate only speaks database/sql, while Store's own
// queries use pgxpool directly for the native pgx fast path.
func runMigrations(cfg Config) error {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
