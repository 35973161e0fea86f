package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/opsdash/internal/repository"
)

var _ repository.CacheSlotRepository = (*CacheSlotRepository)(nil)

// CacheSlotRepository implements repository.CacheSlotRepository for SQLite
type CacheSlotRepository struct {
	db *DB
}

// NewCacheSlotRepository creates a new CacheSlotRepository
func NewCacheSlotRepository(db *DB) *CacheSlotRepository {
	return &CacheSlotRepository{db: db}
}

func (r *CacheSlotRepository) Load(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM cache_slots WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache slot: %w", err)
	}
	return data, nil
}

func (r *CacheSlotRepository) Save(ctx context.Context, slot string, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_slots (slot, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, slot, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save cache slot: %w", err)
	}
	return nil
}

func (r *CacheSlotRepository) Delete(ctx context.Context, slot string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("failed to delete cache slot: %w", err)
	}
	return nil
}
