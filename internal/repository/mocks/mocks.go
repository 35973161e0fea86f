package mocks

import (
	"context"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/stretchr/testify/mock"
)

// CacheSlotRepository is a mock for repository.CacheSlotRepository.
type CacheSlotRepository struct {
	mock.Mock
}

func (m *CacheSlotRepository) Load(ctx context.Context, slot string) ([]byte, error) {
	args := m.Called(ctx, slot)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CacheSlotRepository) Save(ctx context.Context, slot string, data []byte) error {
	args := m.Called(ctx, slot, data)
	return args.Error(0)
}

func (m *CacheSlotRepository) Delete(ctx context.Context, slot string) error {
	args := m.Called(ctx, slot)
	return args.Error(0)
}

// ActivityRepository is a mock for repository.ActivityRepository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// APIKeyRepository is a mock for repository.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

func (m *APIKeyRepository) Add(ctx context.Context, clientID, token, description string) error {
	args := m.Called(ctx, clientID, token, description)
	return args.Error(0)
}

func (m *APIKeyRepository) ResolveClient(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}
