package repository

import (
	"context"

	"github.com/rpggio/opsdash/internal/domain/activity"
)

// CacheSlotRepository persists named byte slots for the bundle cache.
// Load returns ErrNotFound for an empty slot.
type CacheSlotRepository interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, data []byte) error
	Delete(ctx context.Context, slot string) error
}

// ActivityRepository manages activity log persistence
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
	List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// APIKeyRepository stores hashed API keys and resolves bearer tokens to
// the client they were issued to.
type APIKeyRepository interface {
	Add(ctx context.Context, clientID, token, description string) error
	ResolveClient(ctx context.Context, token string) (string, error)
}
