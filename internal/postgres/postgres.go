// Package postgres keeps cache slots in PostgreSQL for multi-instance
// deployments.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rpggio/opsdash/internal/repository"
	"github.com/rpggio/opsdash/migrations"
)

// Open connects a pool and applies the embedded migrations.
func Open(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, errors.New("database URL is required for PostgreSQL")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies every pending migration through a database/sql view
// of the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sub, err := fs.Sub(migrations.FS, migrations.PostgresDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

var _ repository.CacheSlotRepository = (*SlotStore)(nil)

// SlotStore implements repository.CacheSlotRepository.
type SlotStore struct {
	pool *pgxpool.Pool
}

func NewSlotStore(pool *pgxpool.Pool) *SlotStore {
	return &SlotStore{pool: pool}
}

func (s *SlotStore) Load(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM cache_slots WHERE slot = $1`, slot).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return data, nil
}

func (s *SlotStore) Save(ctx context.Context, slot string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_slots (slot, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (slot) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, slot, data)
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return nil
}

func (s *SlotStore) Delete(ctx context.Context, slot string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cache_slots WHERE slot = $1`, slot); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return nil
}
