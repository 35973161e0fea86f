package testserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/rpggio/opsdash/internal/app"
	"github.com/rpggio/opsdash/internal/codec"
	"github.com/rpggio/opsdash/internal/config"
	"github.com/rpggio/opsdash/internal/domain/export"
	"github.com/rpggio/opsdash/internal/domain/record"
)

// Report keys used by the test server.
const (
	ProjectKey = "reports/projects.xlsx"
	IssueKey   = "reports/issues.xlsx"
)

type TestServer struct {
	Server    *httptest.Server
	App       *app.App
	ReportDir string
	Token     string
	ClientID  string
}

// New starts the full HTTP API over an in-memory database and a
// temporary report directory. A non-empty token enables auth and is
// registered for clientID.
func New(t *testing.T, token, clientID string) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	cfg.Storage.Root = t.TempDir()
	cfg.Dashboard.ProjectKey = ProjectKey
	cfg.Dashboard.IssueKey = IssueKey
	cfg.Auth.Enabled = token != ""

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	if token != "" {
		require.NoError(t, a.APIKeys.Add(context.Background(), clientID, token, "test"))
	}

	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)

	return &TestServer{
		Server:    server,
		App:       a,
		ReportDir: cfg.Storage.Root,
		Token:     token,
		ClientID:  clientID,
	}
}

// WriteReports stores both reports as workbooks under their keys.
func (ts *TestServer) WriteReports(t *testing.T, projects, issues []record.Row) {
	t.Helper()
	writeWorkbook(t, filepath.Join(ts.ReportDir, ProjectKey), "projects", projects)
	writeWorkbook(t, filepath.Join(ts.ReportDir, IssueKey), "issues", issues)
}

// RemoveReports deletes both reports so the next refresh fails to fetch.
func (ts *TestServer) RemoveReports(t *testing.T) {
	t.Helper()
	require.NoError(t, os.RemoveAll(filepath.Join(ts.ReportDir, "reports")))
}

// Client returns an HTTP client that sends the server's token.
func (ts *TestServer) Client() *http.Client {
	if ts.Token == "" {
		return ts.Server.Client()
	}
	return oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: ts.Token}))
}

// ConnectMCP opens an MCP session against the streamable endpoint.
func (ts *TestServer) ConnectMCP(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()
	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + ts.App.Config.MCP.Path,
		HTTPClient: ts.Client(),
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "testserver", Version: "v0"}, nil)
	session, err := client.Connect(context.Background(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func writeWorkbook(t *testing.T, path, sheet string, rows []record.Row) {
	t.Helper()
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}
	sort.Strings(columns)
	table := export.Table{Name: sheet, Columns: columns}
	for _, row := range rows {
		table.Rows = append(table.Rows, map[string]any(row))
	}
	data, err := codec.EncodeXLSX([]export.Table{table})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
