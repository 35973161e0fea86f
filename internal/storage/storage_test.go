package storage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/storage"
)

const issuesJSON = `[{"Issue ID":"i1","Date":"2024-01-05","Status":"Open","Severity":"High"}]`

func newFetcher(t *testing.T, url string, threshold uint32) *storage.HTTPFetcher {
	t.Helper()
	f, err := storage.NewHTTPFetcher(storage.HTTPOptions{
		BaseURL:          url,
		Token:            "secret",
		Timeout:          time.Second,
		FailureThreshold: threshold,
		OpenTimeout:      time.Hour,
	}, nil)
	require.NoError(t, err)
	return f
}

func TestHTTPFetcher_SendsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issuesJSON))
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL+"/store", 3)
	rows, err := f.Fetch(context.Background(), "reports/issues.json")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "i1", rows[0]["Issue ID"])
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "/store/reports/issues.json", gotPath)
}

func TestHTTPFetcher_MapsStatusCodes(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:        storage.ErrUnauthorized,
		http.StatusForbidden:           storage.ErrUnauthorized,
		http.StatusNotFound:            storage.ErrNotFound,
		http.StatusInternalServerError: storage.ErrUnavailable,
	}
	for code, want := range cases {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer srv.Close()

			_, err := newFetcher(t, srv.URL, 10).Fetch(context.Background(), "reports/projects.xlsx")
			require.ErrorIs(t, err, want)
			require.ErrorIs(t, err, dashboard.ErrFetch)

			var fe *dashboard.FetchError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, "reports/projects.xlsx", fe.Key)
		})
	}
}

func TestHTTPFetcher_UndecodablePayloadIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	_, err := newFetcher(t, srv.URL, 3).Fetch(context.Background(), "x")
	require.ErrorIs(t, err, dashboard.ErrFetch)
}

func TestHTTPFetcher_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, 2)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "r")
		require.ErrorIs(t, err, storage.ErrUnavailable)
	}
	_, err := f.Fetch(context.Background(), "r")
	require.ErrorIs(t, err, storage.ErrCircuitOpen)
	require.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcher_NotFoundDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newFetcher(t, srv.URL, 1)
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func TestNewHTTPFetcher_RejectsBadURL(t *testing.T) {
	_, err := storage.NewHTTPFetcher(storage.HTTPOptions{BaseURL: "not a url"}, nil)
	require.Error(t, err)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", "issues.json"), []byte(issuesJSON), 0o644))

	f := storage.NewFileFetcher(dir)
	rows, err := f.Fetch(context.Background(), "reports/issues.json")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = f.Fetch(context.Background(), "reports/missing.json")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, err, dashboard.ErrFetch)

	// Keys cannot escape the root.
	_, err = f.Fetch(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
