package cache

import "context"

// SlotStore persists named byte slots. Load returns
// repository.ErrNotFound for an empty slot.
type SlotStore interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error
	Delete(ctx context.Context, slot string) error
}
