package mcp

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
)

type rowsFetcher map[string][]record.Row

func (f rowsFetcher) Fetch(_ context.Context, key string) ([]record.Row, error) {
	rows, ok := f[key]
	if !ok {
		return nil, &dashboard.FetchError{Key: key, Err: context.DeadlineExceeded}
	}
	return rows, nil
}

type activityStub struct {
	listFn func(context.Context, activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

func (a activityStub) GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	return a.listFn(ctx, opts)
}

func reports() rowsFetcher {
	return rowsFetcher{
		dashboard.DefaultProjectKey: {
			{"id": "p1", "name": "Alpha", "status": "Active", "region": "EMEA", "startDate": "2024-01-10"},
			{"id": "p2", "name": "Beta", "status": "Completed", "region": "APAC", "startDate": "2024-02-01",
				"completionDate": "2024-02-21", "qualityScore": 95},
			{"id": "p3", "name": "Gamma", "status": "Completed", "region": "EMEA", "startDate": "2024-03-01",
				"completionDate": "2024-03-11", "qualityScore": 60},
		},
		dashboard.DefaultIssueKey: {
			{"id": "i1", "date": "2024-02-03", "status": "Open", "severity": "High"},
		},
	}
}

func connect(t *testing.T, services Services) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(Config{Services: services, TransportMode: "stdio"})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func decodeText[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	return v
}

func TestTools_ListsCatalog(t *testing.T) {
	dash := dashboard.New(dashboard.Deps{Fetcher: reports()}, dashboard.Config{})
	session := connect(t, Services{Dashboard: dash, Activity: activityStub{}})

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"get_metrics", "refresh_dashboard", "set_filter", "clear_filter",
		"set_granularity", "export_summary", "recent_activity",
	}, names)
}

func TestTools_RefreshAndRead(t *testing.T) {
	dash := dashboard.New(dashboard.Deps{Fetcher: reports()}, dashboard.Config{})
	session := connect(t, Services{Dashboard: dash})

	text, isErr := call(t, session, "get_metrics", nil)
	require.True(t, isErr)
	require.Equal(t, "NO_DATA", decodeText[APIError](t, text).Code)

	text, isErr = call(t, session, "refresh_dashboard", nil)
	require.False(t, isErr)
	require.Equal(t, dashboard.StatusOK, decodeText[dashboard.Result](t, text).Status)

	text, isErr = call(t, session, "get_metrics", map[string]any{"section": metrics.NameQuality})
	require.False(t, isErr)
	var resp struct {
		Section string          `json:"section"`
		Data    metrics.Quality `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Equal(t, metrics.NameQuality, resp.Section)
	require.Equal(t, 1, resp.Data.Excellent)

	text, isErr = call(t, session, "get_metrics", map[string]any{"section": "weather"})
	require.True(t, isErr)
	require.Equal(t, "UNKNOWN_SECTION", decodeText[APIError](t, text).Code)
}

func TestTools_FiltersAndGranularity(t *testing.T) {
	dash := dashboard.New(dashboard.Deps{Fetcher: reports()}, dashboard.Config{})
	session := connect(t, Services{Dashboard: dash})
	_, err := dash.Refresh(context.Background())
	require.NoError(t, err)

	text, isErr := call(t, session, "set_filter", map[string]any{"key": "region", "values": []string{"emea"}})
	require.False(t, isErr)
	resp := decodeText[struct {
		Filters []string        `json:"filters"`
		Data    *metrics.Bundle `json:"data"`
	}](t, text)
	require.Equal(t, []string{"region"}, resp.Filters)
	require.Equal(t, 2, resp.Data.ProjectVolume.Total)

	text, isErr = call(t, session, "set_filter", map[string]any{"key": "dateRange", "start": "2024-03-01", "end": "2024-01-01"})
	require.True(t, isErr)
	require.Equal(t, "INVALID_INPUT", decodeText[APIError](t, text).Code)

	text, isErr = call(t, session, "set_granularity", map[string]any{"granularity": "quarterly"})
	require.False(t, isErr)
	require.Equal(t, timeseries.Quarterly, decodeText[MetricsResponse](t, text).Granularity)

	text, isErr = call(t, session, "clear_filter", map[string]any{"key": "region"})
	require.False(t, isErr)
	require.Empty(t, decodeText[MetricsResponse](t, text).Filters)
}

func TestTools_ExportSummary(t *testing.T) {
	dash := dashboard.New(dashboard.Deps{Fetcher: reports()}, dashboard.Config{})
	session := connect(t, Services{Dashboard: dash})
	res, err := dash.Refresh(context.Background())
	require.NoError(t, err)

	text, isErr := call(t, session, "export_summary", nil)
	require.False(t, isErr)
	resp := decodeText[ExportSummaryResponse](t, text)
	require.Equal(t, res.BundleID, resp.BundleID)
	require.Regexp(t, `^dashboard_export_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}\.xlsx$`, resp.FileName)
	require.Len(t, resp.Scalars, len(res.Bundle.Scalars()))
	require.Contains(t, resp.Tables, "summary")
}

func TestTools_RecentActivity(t *testing.T) {
	var got activity.ListActivityOptions
	act := activityStub{listFn: func(_ context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
		got = opts
		return []activity.ActivityEntry{{ID: 7, ActivityType: activity.TypeFilterSet, Summary: "filter set: status"}}, nil
	}}
	dash := dashboard.New(dashboard.Deps{Fetcher: reports()}, dashboard.Config{})
	session := connect(t, Services{Dashboard: dash, Activity: act})

	text, isErr := call(t, session, "recent_activity", map[string]any{"type": "filter_set", "limit": 3})
	require.False(t, isErr)
	resp := decodeText[map[string][]activity.ActivityEntry](t, text)
	require.Len(t, resp["entries"], 1)
	require.Equal(t, 3, got.Limit)
	require.Equal(t, activity.TypeFilterSet, *got.ActivityType)
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Equal(t, "REFRESH_IN_PROGRESS", MapError(dashboard.ErrRefreshInProgress).Code)
	verr := &record.ValidationError{}
	verr.Add(record.KindProject, 0, "p1", []string{"name: required"})
	require.Equal(t, "VALIDATION_FAILED", MapError(verr).Code)
	require.Equal(t, "INTERNAL", MapError(context.Canceled).Code)
}
