package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/cache"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/store"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	rows    map[string][]record.Row
	err     error
	calls   atomic.Int32
	started chan string
	release chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, key string) ([]record.Row, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- key
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[key], nil
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, name string, data any) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}

type recordedActivity struct {
	mu    sync.Mutex
	types []activity.ActivityType
}

func (r *recordedActivity) Record(_ context.Context, typ activity.ActivityType, _, _ string, _ any, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, typ)
}

func (r *recordedActivity) has(typ activity.ActivityType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		if t == typ {
			return true
		}
	}
	return false
}

func projectRows() []record.Row {
	return []record.Row{
		{"Project ID": "p1", "Name": "Alpha", "Status": "Active", "Region": "EMEA", "Start Date": "2024-01-10", "Type": "build"},
		{"Project ID": "p2", "Name": "Beta", "Status": "Completed", "Region": "APAC", "Start Date": "2024-02-01",
			"Completion Date": "2024-03-02", "Delivery Date": "2024-03-02", "Planned Delivery Date": "2024-03-15",
			"Planned Budget": "1,000", "Actual Cost": "900", "Quality Score": 92},
		{"Project ID": "p3", "Name": "Gamma", "Status": "Completed", "Region": "EMEA", "Start Date": "2024-03-01",
			"Completion Date": "2024-03-21"},
		{"Project ID": "p4", "Name": "Delta", "Status": "OnHold", "Region": "LATAM", "Start Date": "2024-04-01"},
	}
}

func issueRows() []record.Row {
	return []record.Row{
		{"Issue ID": "i1", "Date": "2024-02-03", "Severity": "High", "Status": "Open"},
		{"Issue ID": "i2", "Date": "2024-03-04", "Severity": "Low", "Status": "Resolved"},
	}
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{rows: map[string][]record.Row{
		dashboard.DefaultProjectKey: projectRows(),
		dashboard.DefaultIssueKey:   issueRows(),
	}}
}

func acceptAllRenders() *mockRenderer {
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return r
}

func TestRefresh_PublishesEverySeries(t *testing.T) {
	ctx := context.Background()
	renderer := acceptAllRenders()
	act := &recordedActivity{}
	bundles := cache.New(nil, nil)
	c := dashboard.New(dashboard.Deps{
		Fetcher:  newFetcher(),
		Renderer: renderer,
		Cache:    bundles,
		Activity: act,
	}, dashboard.Config{})

	res, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, dashboard.StatusOK, res.Status)
	require.Equal(t, 4, res.Bundle.ProjectVolume.Total)
	require.Equal(t, 2, res.Bundle.Defects.Total)
	require.Zero(t, res.Rejected)

	renderer.AssertNumberOfCalls(t, "Render", len(metrics.Names))
	for _, name := range metrics.Names {
		renderer.AssertCalled(t, "Render", mock.Anything, name, mock.Anything)
	}

	current, degraded := c.Current()
	require.False(t, degraded)
	require.Equal(t, res.BundleID, current.ID)

	cached, ok := bundles.Get(ctx)
	require.True(t, ok)
	require.Equal(t, res.BundleID, cached.ID)
	require.True(t, act.has(activity.TypeRefreshSucceeded))
}

func TestRefresh_FetchesBothReportsConcurrently(t *testing.T) {
	f := newFetcher()
	f.started = make(chan string, 2)
	f.release = make(chan struct{})
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background())
		done <- err
	}()

	// Both fetches must be in flight before either is released.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case key := <-f.started:
			seen[key] = true
		case <-time.After(2 * time.Second):
			t.Fatal("fetches were not started concurrently")
		}
	}
	require.True(t, seen[dashboard.DefaultProjectKey])
	require.True(t, seen[dashboard.DefaultIssueKey])
	close(f.release)
	require.NoError(t, <-done)
}

func TestRefresh_AtMostOneInFlight(t *testing.T) {
	f := newFetcher()
	f.started = make(chan string, 2)
	f.release = make(chan struct{})
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background())
		done <- err
	}()
	<-f.started
	require.True(t, c.Refreshing())

	res, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, dashboard.ErrRefreshInProgress)
	require.Equal(t, dashboard.StatusSkipped, res.Status)

	close(f.release)
	require.NoError(t, <-done)
	require.Equal(t, int32(2), f.calls.Load())
	require.False(t, c.Refreshing())
}

func TestRefresh_FetchFailureServesCache(t *testing.T) {
	ctx := context.Background()
	f := newFetcher()
	renderer := acceptAllRenders()
	act := &recordedActivity{}
	c := dashboard.New(dashboard.Deps{
		Fetcher:  f,
		Renderer: renderer,
		Cache:    cache.New(nil, nil),
		Activity: act,
	}, dashboard.Config{})

	first, err := c.Refresh(ctx)
	require.NoError(t, err)

	f.fail(errors.New("connection reset"))
	res, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, dashboard.StatusDegraded, res.Status)
	require.Equal(t, first.BundleID, res.BundleID)
	require.NotEmpty(t, res.Warning)

	current, degraded := c.Current()
	require.True(t, degraded)
	require.Equal(t, first.BundleID, current.ID)
	renderer.AssertNumberOfCalls(t, "Render", 2*len(metrics.Names))
	require.True(t, act.has(activity.TypeRefreshDegraded))
}

func TestRefresh_FetchFailureWithoutCacheKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFetcher()
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})

	first, err := c.Refresh(ctx)
	require.NoError(t, err)

	f.fail(errors.New("403 forbidden"))
	res, err := c.Refresh(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, dashboard.ErrNoData)
	require.ErrorIs(t, err, dashboard.ErrFetch)
	var fe *dashboard.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, dashboard.StatusFailed, res.Status)

	current, degraded := c.Current()
	require.False(t, degraded)
	require.Equal(t, first.BundleID, current.ID)
}

func TestRefresh_RejectedRecordsAreDropped(t *testing.T) {
	f := newFetcher()
	f.rows[dashboard.DefaultProjectKey] = append(projectRows(), record.Row{"Project ID": "p5", "Status": "Active"})
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Rejected)
	require.NotNil(t, res.Validation)
	require.Equal(t, 4, res.Bundle.ProjectVolume.Total)
	require.Equal(t, 1, res.Bundle.Rejected)
}

func TestRefresh_StrictValidationFails(t *testing.T) {
	f := newFetcher()
	f.rows[dashboard.DefaultProjectKey] = append(projectRows(), record.Row{"Project ID": "p5"})
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{StrictValidation: true})

	res, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, record.ErrValidation)
	require.Equal(t, dashboard.StatusFailed, res.Status)
	current, _ := c.Current()
	require.Nil(t, current)
}

func unparseableRows() []record.Row {
	return []record.Row{
		{"Project ID": "q1", "Name": "Good", "Status": "Active", "Region": "EMEA", "Start Date": "2024-01-10",
			"Quality Score": 100},
		{"Project ID": "q2", "Name": "Bad", "Status": "Active", "Region": "EMEA", "Start Date": "2024-01-12",
			"Quality Score": "ninety", "Planned Budget": "lots", "Planned Delivery Date": "someday"},
	}
}

func TestRefresh_UnparseableValuesRejectRecord(t *testing.T) {
	f := newFetcher()
	f.rows[dashboard.DefaultProjectKey] = unparseableRows()
	act := &recordedActivity{}
	c := dashboard.New(dashboard.Deps{Fetcher: f, Activity: act}, dashboard.Config{})

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, dashboard.StatusOK, res.Status)
	require.Equal(t, 1, res.Rejected)
	require.NotNil(t, res.Validation)
	require.Equal(t, "q2", res.Validation.Issues[0].ID)
	require.Len(t, res.Validation.Issues[0].Reasons, 3)

	b := res.Bundle
	require.Equal(t, 1, b.ProjectVolume.Total)
	require.Equal(t, metrics.Of(100), b.ExecutionMetrics.AverageQuality)
	require.Equal(t, 1, b.Rejected)
	require.Contains(t, b.Notes, "1 records rejected during validation")
	require.True(t, act.has(activity.TypeRecordsRejected))
}

func TestRefresh_StrictValidationFailsOnUnparseableValues(t *testing.T) {
	f := newFetcher()
	f.rows[dashboard.DefaultProjectKey] = unparseableRows()
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{StrictValidation: true})

	res, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, record.ErrValidation)
	require.Equal(t, dashboard.StatusFailed, res.Status)
	require.Equal(t, 1, res.Rejected)
	require.NotNil(t, res.Validation)
	current, _ := c.Current()
	require.Nil(t, current)
}

func TestSetFilter_LastRegistrationWins(t *testing.T) {
	ctx := context.Background()
	c := dashboard.New(dashboard.Deps{Fetcher: newFetcher()}, dashboard.Config{})
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	_, err = c.SetFilter(ctx, store.KeyStatus, store.StatusFilter("Active"))
	require.NoError(t, err)
	replaced, err := c.SetFilter(ctx, store.KeyStatus, store.StatusFilter("Completed"))
	require.NoError(t, err)

	fresh := dashboard.New(dashboard.Deps{Fetcher: newFetcher()}, dashboard.Config{})
	_, err = fresh.Refresh(ctx)
	require.NoError(t, err)
	alone, err := fresh.SetFilter(ctx, store.KeyStatus, store.StatusFilter("Completed"))
	require.NoError(t, err)

	require.Equal(t, 2, replaced.ProjectVolume.Total)
	require.Equal(t, alone.ProjectVolume, replaced.ProjectVolume)
	require.Equal(t, []string{store.KeyStatus}, c.Filters())
}

func TestSetFilter_RecomputesWithoutFetching(t *testing.T) {
	ctx := context.Background()
	f := newFetcher()
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	b, err := c.SetFilter(ctx, store.KeyRegion, store.RegionFilter("EMEA"))
	require.NoError(t, err)
	require.Equal(t, 2, b.ProjectVolume.Total)
	require.Equal(t, int32(2), f.calls.Load())

	b, err = c.ClearFilter(ctx, store.KeyRegion)
	require.NoError(t, err)
	require.Equal(t, 4, b.ProjectVolume.Total)
	require.Empty(t, c.Filters())
}

func TestSetDateRange_BoundsTimeline(t *testing.T) {
	ctx := context.Background()
	c := dashboard.New(dashboard.Deps{Fetcher: newFetcher()}, dashboard.Config{})
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	r, err := record.NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	b, err := c.SetDateRange(ctx, r)
	require.NoError(t, err)
	require.Equal(t, 2, b.ProjectVolume.Total)
	require.Len(t, b.ProjectVolume.Timeline, 2)
	require.Equal(t, 1, b.Defects.Total)

	_, err = c.SetDateRange(ctx, record.DateRange{Start: r.End, End: r.Start})
	require.ErrorIs(t, err, dashboard.ErrInvalidInput)
}

func TestSetGranularity(t *testing.T) {
	ctx := context.Background()
	c := dashboard.New(dashboard.Deps{Fetcher: newFetcher()}, dashboard.Config{})

	// Before the first load only the setting changes.
	b, err := c.SetGranularity(ctx, "quarter")
	require.NoError(t, err)
	require.Nil(t, b)
	require.Equal(t, timeseries.Quarterly, c.Granularity())

	res, err := c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, timeseries.Quarterly, res.Bundle.Granularity)

	_, err = c.SetGranularity(ctx, "fortnightly")
	require.ErrorIs(t, err, dashboard.ErrInvalidInput)
}

func TestAutoRefresh(t *testing.T) {
	f := newFetcher()
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})

	require.ErrorIs(t, c.AutoRefresh(context.Background(), 0), dashboard.ErrInvalidInput)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, c.AutoRefresh(ctx, 20*time.Millisecond))
	require.GreaterOrEqual(t, f.calls.Load(), int32(2))

	current, _ := c.Current()
	require.NotNil(t, current)
}

func TestAutoRefresh_SkipsTicksWhileInFlight(t *testing.T) {
	f := newFetcher()
	f.started = make(chan string, 16)
	f.release = make(chan struct{})
	c := dashboard.New(dashboard.Deps{Fetcher: f}, dashboard.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.AutoRefresh(ctx, 10*time.Millisecond) }()

	// The first tick starts a refresh that stays blocked in both fetches.
	for i := 0; i < 2; i++ {
		select {
		case <-f.started:
		case <-time.After(2 * time.Second):
			t.Fatal("auto refresh did not start")
		}
	}
	require.True(t, c.Refreshing())

	// Many ticks pass while it is held open; none may start another fetch.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(2), f.calls.Load())

	cancel()
	close(f.release)
	require.NoError(t, <-done)
}
