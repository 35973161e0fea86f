package activity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		ActivityType: activity.TypeRefreshSucceeded,
		Summary:      "refreshed",
	}

	repo.On("Log", ctx, entry).Return(nil)
	repo.On("List", ctx, activity.ListActivityOptions{Limit: activity.DefaultListLimit}).Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, entry))
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestActivityService_RejectsEmptyEntry(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	require.ErrorIs(t, svc.LogActivity(context.Background(), nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), &activity.ActivityEntry{}), activity.ErrInvalidInput)
}

func TestActivityService_RecordEncodesDetails(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeRefreshDegraded &&
			e.BundleID != nil && *e.BundleID == "b1" &&
			e.Details == `{"rejected":2}` &&
			e.DurationMS == 1500
	})).Return(nil)

	svc := activity.NewService(repo, nil)
	svc.Record(ctx, activity.TypeRefreshDegraded, "b1", "served cache", map[string]int{"rejected": 2}, 1500*time.Millisecond)
	repo.AssertExpectations(t)
}

func TestActivityService_RecordSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, mock.Anything).Return(errors.New("disk full"))

	svc := activity.NewService(repo, nil)
	require.NotPanics(t, func() {
		svc.Record(ctx, activity.TypeRefreshFailed, "", "fetch failed", nil, 0)
	})
}
