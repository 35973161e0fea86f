package testserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/opsdash/internal/codec"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/export"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/testserver"
)

func projects() []record.Row {
	return []record.Row{
		{"Project ID": "p1", "Name": "Alpha", "Status": "Active", "Region": "EMEA", "Start Date": "2024-01-10",
			"Planned Budget": 1000, "Actual Cost": 900},
		{"Project ID": "p2", "Name": "Beta", "Status": "Completed", "Region": "APAC", "Start Date": "2024-02-01",
			"Completion Date": "2024-02-21", "Quality Score": 95, "Planned Budget": 2000, "Actual Cost": 2500},
		{"Project ID": "p3", "Name": "Gamma", "Status": "OnHold", "Region": "EMEA", "Start Date": "2024-03-05"},
	}
}

func issues() []record.Row {
	return []record.Row{
		{"Issue ID": "i1", "Project ID": "p1", "Date": "2024-01-15", "Status": "Open", "Severity": "High"},
		{"Issue ID": "i2", "Project ID": "p2", "Date": "2024-02-10", "Status": "Closed", "Severity": "Low"},
	}
}

func do(t *testing.T, ts *testserver.TestServer, client *http.Client, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type bundleBody struct {
	Degraded bool            `json:"degraded"`
	Bundle   *metrics.Bundle `json:"bundle"`
}

func TestHTTP_RequiresToken(t *testing.T) {
	ts := testserver.New(t, "secret-token", "ops")

	resp, _ := do(t, ts, ts.Server.Client(), http.MethodGet, "/api/bundle", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, ts, ts.Server.Client(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, ts, ts.Client(), http.MethodGet, "/api/filters", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_RefreshFilterExport(t *testing.T) {
	ts := testserver.New(t, "secret-token", "ops")
	ts.WriteReports(t, projects(), issues())
	client := ts.Client()

	resp, data := do(t, ts, client, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var res dashboard.Result
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, dashboard.StatusOK, res.Status)
	require.Zero(t, res.Rejected)

	resp, data = do(t, ts, client, http.MethodGet, "/api/bundle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bundleBody
	require.NoError(t, json.Unmarshal(data, &body))
	require.False(t, body.Degraded)
	require.Equal(t, 3, body.Bundle.ProjectVolume.Total)
	require.Equal(t, 2, body.Bundle.Defects.Total)

	resp, data = do(t, ts, client, http.MethodPut, "/api/filters/region", `{"values":["EMEA"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &body))
	require.Equal(t, 2, body.Bundle.ProjectVolume.Total)

	resp, data = do(t, ts, client, http.MethodGet, "/api/series/"+metrics.NameProjectVolume, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Contains(t, string(data), `"series":"projectVolume"`)

	resp, data = do(t, ts, client, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), export.FilePrefix)
	tables, err := codec.DecodeTables(data)
	require.NoError(t, err)
	summary, err := export.Find(tables, export.TableSummary)
	require.NoError(t, err)
	scalars, err := export.ImportSummary(summary)
	require.NoError(t, err)
	require.NotEmpty(t, scalars)

	resp, data = do(t, ts, client, http.MethodGet, "/api/activity?type=filter_set", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "region")
}

func TestHTTP_DegradedFromCache(t *testing.T) {
	ts := testserver.New(t, "", "")
	ts.WriteReports(t, projects(), issues())
	client := ts.Client()

	resp, data := do(t, ts, client, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	ts.RemoveReports(t)
	resp, data = do(t, ts, client, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var res dashboard.Result
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, dashboard.StatusDegraded, res.Status)
	require.NotEmpty(t, res.Warning)

	resp, data = do(t, ts, client, http.MethodGet, "/api/bundle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body bundleBody
	require.NoError(t, json.Unmarshal(data, &body))
	require.True(t, body.Degraded)
}

func TestHTTP_NoDataWithoutReports(t *testing.T) {
	ts := testserver.New(t, "", "")

	resp, _ := do(t, ts, ts.Client(), http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = do(t, ts, ts.Client(), http.MethodGet, "/api/bundle", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMCP_OverStreamableHTTP(t *testing.T) {
	ts := testserver.New(t, "secret-token", "ops")
	ts.WriteReports(t, projects(), issues())
	session := ts.ConnectMCP(t)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "refresh_dashboard", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.False(t, res.IsError)

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "get_metrics",
		Arguments: map[string]any{"section": metrics.NameStatusOverview},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	text := res.Content[0].(*sdkmcp.TextContent).Text
	require.Contains(t, text, `"section":"statusOverview"`)

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "recent_activity",
		Arguments: map[string]any{"limit": 5},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, res.Content[0].(*sdkmcp.TextContent).Text, "refresh_succeeded")
}
