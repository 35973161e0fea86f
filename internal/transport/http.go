package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/opsdash/internal/codec"
	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/export"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
	"github.com/rpggio/opsdash/internal/render"
)

// Dashboard is the controller surface the HTTP API drives.
type Dashboard interface {
	Refresh(ctx context.Context) (dashboard.Result, error)
	Current() (*metrics.Bundle, bool)
	ApplyFilter(ctx context.Context, key string, spec dashboard.FilterSpec) (*metrics.Bundle, error)
	ClearFilter(ctx context.Context, key string) (*metrics.Bundle, error)
	SetGranularity(ctx context.Context, g timeseries.Granularity) (*metrics.Bundle, error)
	Filters() []string
	Granularity() timeseries.Granularity
}

// SeriesSource serves the latest rendering of each series.
type SeriesSource interface {
	Get(name string) (render.Message, error)
	Names() []string
}

// ActivityLister reads the activity log.
type ActivityLister interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Config wires the HTTP API.
type Config struct {
	Dashboard Dashboard
	Series    SeriesSource
	Activity  ActivityLister
	// Auth guards /api when set. /health is always open.
	Auth   func(http.Handler) http.Handler
	Logger *slog.Logger
	// Extra mounts additional handlers, such as the MCP endpoint, behind
	// the same auth.
	Extra map[string]http.Handler
}

// Server wires HTTP handlers.
type Server struct {
	dash     Dashboard
	series   SeriesSource
	activity ActivityLister
	now      func() time.Time
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	srv := &Server{dash: cfg.Dashboard, series: cfg.Series, activity: cfg.Activity, now: time.Now}

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Route("/api", func(r chi.Router) {
			r.Get("/bundle", srv.handleBundle)
			r.Get("/series", srv.handleSeriesNames)
			r.Get("/series/{name}", srv.handleSeries)
			r.Post("/refresh", srv.handleRefresh)
			r.Get("/filters", srv.handleFilters)
			r.Put("/filters/{key}", srv.handleSetFilter)
			r.Delete("/filters/{key}", srv.handleClearFilter)
			r.Put("/granularity", srv.handleGranularity)
			r.Get("/export", srv.handleExport)
			r.Get("/activity", srv.handleActivity)
		})
		for pattern, h := range cfg.Extra {
			r.Handle(pattern, h)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type bundleResponse struct {
	Degraded bool            `json:"degraded"`
	Bundle   *metrics.Bundle `json:"bundle"`
}

func (s *Server) handleBundle(w http.ResponseWriter, _ *http.Request) {
	b, degraded := s.dash.Current()
	if b == nil {
		writeDomainError(w, dashboard.ErrNoData)
		return
	}
	writeJSON(w, http.StatusOK, bundleResponse{Degraded: degraded, Bundle: b})
}

func (s *Server) handleSeriesNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"series": s.series.Names()})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	msg, err := s.series.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.dash.Refresh(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type filtersResponse struct {
	Filters     []string               `json:"filters"`
	Granularity timeseries.Granularity `json:"granularity"`
}

func (s *Server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, filtersResponse{Filters: s.dash.Filters(), Granularity: s.dash.Granularity()})
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var spec dashboard.FilterSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid filter body")
		return
	}
	b, err := s.dash.ApplyFilter(r.Context(), chi.URLParam(r, "key"), spec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeRecomputed(w, b)
}

func (s *Server) handleClearFilter(w http.ResponseWriter, r *http.Request) {
	b, err := s.dash.ClearFilter(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeRecomputed(w, b)
}

func (s *Server) handleGranularity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Granularity string `json:"granularity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid granularity body")
		return
	}
	b, err := s.dash.SetGranularity(r.Context(), timeseries.Granularity(body.Granularity))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeRecomputed(w, b)
}

// writeRecomputed answers a filter or granularity change. Before the
// first refresh there is nothing to recompute yet.
func (s *Server) writeRecomputed(w http.ResponseWriter, b *metrics.Bundle) {
	if b == nil {
		writeJSON(w, http.StatusAccepted, filtersResponse{Filters: s.dash.Filters(), Granularity: s.dash.Granularity()})
		return
	}
	_, degraded := s.dash.Current()
	writeJSON(w, http.StatusOK, bundleResponse{Degraded: degraded, Bundle: b})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, _ := s.dash.Current()
	if b == nil {
		writeDomainError(w, dashboard.ErrNoData)
		return
	}
	data, err := codec.EncodeXLSX(export.Tables(b))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	name := export.FileName(s.now()) + ".xlsx"
	w.Header().Set("Content-Type", codec.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, b.GeneratedAt, bytes.NewReader(data))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []activity.ActivityEntry{}})
		return
	}
	q := r.URL.Query()
	var opts activity.ListActivityOptions
	if v := q.Get("type"); v != "" {
		typ := activity.ActivityType(v)
		opts.ActivityType = &typ
	}
	if v := q.Get("bundle_id"); v != "" {
		opts.BundleID = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "since must be RFC3339")
			return
		}
		opts.Since = &since
	}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid_input", name+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	entries, err := s.activity.GetRecentActivity(r.Context(), opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
