// Package redisstore keeps cache slots in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rpggio/opsdash/internal/repository"
)

// KeyPrefix namespaces every slot key.
const KeyPrefix = "opsdash:slot:"

var _ repository.CacheSlotRepository = (*SlotStore)(nil)

// SlotStore implements repository.CacheSlotRepository. Slots also carry a
// Redis expiry so abandoned entries do not linger.
type SlotStore struct {
	client *redis.Client
	expiry time.Duration
}

// Open parses a redis:// URL and connects.
func Open(ctx context.Context, url string, expiry time.Duration) (*SlotStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return New(client, expiry), nil
}

// New wraps an existing client. Zero expiry keeps slots until deleted.
func New(client *redis.Client, expiry time.Duration) *SlotStore {
	return &SlotStore{client: client, expiry: expiry}
}

func (s *SlotStore) Load(ctx context.Context, slot string) ([]byte, error) {
	data, err := s.client.Get(ctx, KeyPrefix+slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return data, nil
}

func (s *SlotStore) Save(ctx context.Context, slot string, data []byte) error {
	if err := s.client.Set(ctx, KeyPrefix+slot, data, s.expiry).Err(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return nil
}

func (s *SlotStore) Delete(ctx context.Context, slot string) error {
	if err := s.client.Del(ctx, KeyPrefix+slot).Err(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return nil
}

func (s *SlotStore) Close() error {
	return s.client.Close()
}
