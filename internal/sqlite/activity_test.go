package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	bundleID := "b1"
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entry1 := &activity.ActivityEntry{
		ActivityType: activity.TypeRefreshSucceeded,
		BundleID:     &bundleID,
		Summary:      "Refreshed",
		Details:      `{"rejected":0}`,
		DurationMS:   120,
		CreatedAt:    base,
	}
	entry2 := &activity.ActivityEntry{
		ActivityType: activity.TypeFilterSet,
		Summary:      "Set filter status",
		CreatedAt:    base.Add(time.Minute),
	}

	require.NoError(t, repo.Log(ctx, entry1))
	require.NoError(t, repo.Log(ctx, entry2))
	require.NotZero(t, entry1.ID)

	entries, err := repo.List(ctx, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.ActivityType, entries[0].ActivityType)
	require.Nil(t, entries[0].BundleID)
	require.Equal(t, entry1.ActivityType, entries[1].ActivityType)
	require.Equal(t, "b1", *entries[1].BundleID)
	require.Equal(t, int64(120), entries[1].DurationMS)
	require.True(t, base.Equal(entries[1].CreatedAt))
}

func TestActivityRepository_Filters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b1, b2 := "b1", "b2"
	for i, e := range []*activity.ActivityEntry{
		{ActivityType: activity.TypeRefreshSucceeded, BundleID: &b1, Summary: "one"},
		{ActivityType: activity.TypeRefreshDegraded, BundleID: &b1, Summary: "two"},
		{ActivityType: activity.TypeRefreshSucceeded, BundleID: &b2, Summary: "three"},
	} {
		e.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Log(ctx, e))
	}

	typ := activity.TypeRefreshSucceeded
	entries, err := repo.List(ctx, activity.ListActivityOptions{ActivityType: &typ})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries, err = repo.List(ctx, activity.ListActivityOptions{BundleID: &b1})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	since := base.Add(90 * time.Minute)
	entries, err = repo.List(ctx, activity.ListActivityOptions{Since: &since})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "three", entries[0].Summary)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "two", entries[0].Summary)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Offset: 2})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "one", entries[0].Summary)
}
