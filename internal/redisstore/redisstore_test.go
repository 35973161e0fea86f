package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/opsdash/internal/redisstore"
	"github.com/rpggio/opsdash/internal/repository"
)

func TestSlotStore_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := redisstore.New(client, time.Hour)
	defer s.Close()

	ctx := context.Background()
	_, err := s.Load(ctx, "slot")
	require.ErrorIs(t, err, repository.ErrUnavailable)
	require.ErrorIs(t, s.Save(ctx, "slot", []byte("x")), repository.ErrUnavailable)
	require.ErrorIs(t, s.Delete(ctx, "slot"), repository.ErrUnavailable)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := redisstore.Open(context.Background(), "http://nope", 0)
	require.Error(t, err)
}

func TestSlotStore_Live(t *testing.T) {
	url := os.Getenv("OPSDASH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("OPSDASH_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := redisstore.Open(ctx, url, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	slot := "test-" + time.Now().Format("150405.000000")
	_, err = s.Load(ctx, slot)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Save(ctx, slot, []byte(`{"timestamp":1}`)))
	data, err := s.Load(ctx, slot)
	require.NoError(t, err)
	require.Equal(t, `{"timestamp":1}`, string(data))

	require.NoError(t, s.Delete(ctx, slot))
	_, err = s.Load(ctx, slot)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
