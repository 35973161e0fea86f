// Package dashboard orchestrates fetching, filtering, metric computation,
// caching and publication of the dashboard bundle.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/store"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
	"golang.org/x/sync/errgroup"
)

// Default report keys in object storage.
const (
	DefaultProjectKey = "reports/projects.xlsx"
	DefaultIssueKey   = "reports/issues.xlsx"
)

// Status is the outcome of one refresh.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Result describes one refresh.
type Result struct {
	Status     Status                  `json:"status"`
	BundleID   string                  `json:"bundle_id,omitempty"`
	Rejected   int                     `json:"rejected"`
	Validation *record.ValidationError `json:"validation,omitempty"`
	Warning    string                  `json:"warning,omitempty"`
	Duration   time.Duration           `json:"duration"`
	Bundle     *metrics.Bundle         `json:"-"`
}

// Config holds controller settings.
type Config struct {
	ProjectKey  string
	IssueKey    string
	Granularity timeseries.Granularity
	// StrictValidation fails a refresh when any record is malformed or
	// holds an unparseable value, instead of dropping those records.
	StrictValidation bool
}

// Deps are the collaborators of a Controller. Renderer, Cache and
// Activity may be nil.
type Deps struct {
	Fetcher  Fetcher
	Renderer Renderer
	Cache    BundleCache
	Activity ActivityRecorder
	Engine   *metrics.Engine
	Store    *store.RecordStore
	Logger   *slog.Logger
}

// Controller owns the orchestration state of one dashboard: active
// filters, granularity and the last published bundle.
type Controller struct {
	fetcher  Fetcher
	renderer Renderer
	cache    BundleCache
	activity ActivityRecorder
	engine   *metrics.Engine
	records  *store.RecordStore
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	refreshing atomic.Bool

	// mu serialises recomputation with filter and granularity changes.
	mu          sync.Mutex
	filters     *store.FilterSet
	dateRange   *record.DateRange
	granularity timeseries.Granularity
	current     *metrics.Bundle
	degraded    bool
}

// New creates a controller.
func New(deps Deps, cfg Config) *Controller {
	if cfg.ProjectKey == "" {
		cfg.ProjectKey = DefaultProjectKey
	}
	if cfg.IssueKey == "" {
		cfg.IssueKey = DefaultIssueKey
	}
	if cfg.Granularity == "" {
		cfg.Granularity = timeseries.Monthly
	}
	if deps.Engine == nil {
		deps.Engine = metrics.NewEngine()
	}
	if deps.Store == nil {
		deps.Store = store.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Controller{
		fetcher:     deps.Fetcher,
		renderer:    deps.Renderer,
		cache:       deps.Cache,
		activity:    deps.Activity,
		engine:      deps.Engine,
		records:     deps.Store,
		logger:      deps.Logger,
		cfg:         cfg,
		now:         time.Now,
		filters:     store.NewFilterSet(),
		granularity: cfg.Granularity,
	}
}

// Refresh fetches both reports, reloads the store, recomputes and
// publishes. When the fetch fails the cached bundle is published in
// degraded mode; without one the previous state is kept and the fetch
// error is returned. A call made while another refresh is running
// returns ErrRefreshInProgress.
func (c *Controller) Refresh(ctx context.Context) (Result, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.record(ctx, activity.TypeRefreshSkipped, "", "refresh skipped: already in progress", nil, 0)
		return Result{Status: StatusSkipped}, ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	start := c.now()
	projectRows, issueRows, err := c.fetchAll(ctx)
	if err != nil {
		return c.fallback(ctx, start, err)
	}

	projects, parsed := record.ParseProjects(projectRows)
	issues, parsedIssues := record.ParseIssues(issueRows)
	parsed.Merge(parsedIssues)

	if c.cfg.StrictValidation {
		verr := record.Validate(projects, issues)
		verr.Merge(parsed)
		if len(verr.Issues) > 0 {
			took := c.now().Sub(start)
			c.record(ctx, activity.TypeRefreshFailed, "", verr.Error(), verr, took)
			return Result{Status: StatusFailed, Validation: verr, Rejected: len(verr.Issues), Duration: took}, verr
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result{Status: StatusOK}
	if err := c.records.LoadParsed(projects, issues, parsed); err != nil {
		var verr *record.ValidationError
		if errors.As(err, &verr) {
			res.Validation = verr
			res.Rejected = len(verr.Issues)
			c.logger.Warn("records rejected", "rejected", res.Rejected, "unparseable", len(parsed.Issues))
			c.record(ctx, activity.TypeRecordsRejected, "", verr.Error(), verr, 0)
		} else {
			return Result{Status: StatusFailed}, fmt.Errorf("loading records: %w", err)
		}
	}

	b := c.recomputeLocked(ctx)
	res.Bundle = b
	res.BundleID = b.ID
	res.Duration = c.now().Sub(start)

	c.logger.Info("dashboard refreshed",
		"bundle_id", b.ID,
		"rejected", res.Rejected,
		"duration_ms", res.Duration.Milliseconds(),
	)
	c.record(ctx, activity.TypeRefreshSucceeded, b.ID, "dashboard refreshed",
		map[string]int{"projects": b.ProjectVolume.Total, "issues": b.Defects.Total, "rejected": res.Rejected},
		res.Duration)
	return res, nil
}

func (c *Controller) fallback(ctx context.Context, start time.Time, fetchErr error) (Result, error) {
	took := c.now().Sub(start)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx); ok {
			c.mu.Lock()
			c.current = cached
			c.degraded = true
			c.publishLocked(ctx, cached)
			c.mu.Unlock()

			warning := fmt.Sprintf("live data unavailable, showing cached data from %s", cached.GeneratedAt.Format(time.RFC3339))
			c.logger.Warn("serving cached bundle", "degraded", true, "bundle_id", cached.ID, "error", fetchErr)
			c.record(ctx, activity.TypeRefreshDegraded, cached.ID, warning, map[string]string{"error": fetchErr.Error()}, took)
			return Result{Status: StatusDegraded, BundleID: cached.ID, Bundle: cached, Warning: warning, Duration: took}, nil
		}
	}

	c.logger.Error("refresh failed", "error", fetchErr)
	c.record(ctx, activity.TypeRefreshFailed, "", fetchErr.Error(), nil, took)
	return Result{Status: StatusFailed, Duration: took}, fmt.Errorf("%w: %w", ErrNoData, fetchErr)
}

// fetchAll runs both report fetches concurrently and joins them; a
// failure of either fails the pair.
func (c *Controller) fetchAll(ctx context.Context) ([]record.Row, []record.Row, error) {
	if c.fetcher == nil {
		return nil, nil, &FetchError{Key: c.cfg.ProjectKey, Err: errors.New("no fetcher configured")}
	}
	var projects, issues []record.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := c.fetcher.Fetch(gctx, c.cfg.ProjectKey)
		if err != nil {
			return asFetchError(c.cfg.ProjectKey, err)
		}
		projects = rows
		return nil
	})
	g.Go(func() error {
		rows, err := c.fetcher.Fetch(gctx, c.cfg.IssueKey)
		if err != nil {
			return asFetchError(c.cfg.IssueKey, err)
		}
		issues = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return projects, issues, nil
}

func asFetchError(key string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Key: key, Err: err}
}

// SetFilter registers p under key, replacing any predicate already under
// that key, then recomputes without fetching.
func (c *Controller) SetFilter(ctx context.Context, key string, p store.Predicate) (*metrics.Bundle, error) {
	if key == "" || p == nil {
		return nil, fmt.Errorf("%w: filter needs a key and a predicate", ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters.Set(key, p)
	if key == store.KeyDateRange {
		c.dateRange = nil
	}
	c.record(ctx, activity.TypeFilterSet, "", "filter set: "+key, map[string]string{"key": key}, 0)
	return c.recomputeIfLoadedLocked(ctx), nil
}

// SetDateRange registers the date range filter and bounds the timeline
// periods to it.
func (c *Controller) SetDateRange(ctx context.Context, r record.DateRange) (*metrics.Bundle, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters.Set(store.KeyDateRange, store.DateRangeFilter(r))
	c.dateRange = &r
	c.record(ctx, activity.TypeFilterSet, "", "filter set: "+store.KeyDateRange,
		map[string]string{"key": store.KeyDateRange, "start": r.Start.Format(time.DateOnly), "end": r.End.Format(time.DateOnly)}, 0)
	return c.recomputeIfLoadedLocked(ctx), nil
}

// ClearFilter removes the predicate under key and recomputes. Clearing
// an unknown key is not an error.
func (c *Controller) ClearFilter(ctx context.Context, key string) (*metrics.Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters.Remove(key)
	if key == store.KeyDateRange {
		c.dateRange = nil
	}
	c.record(ctx, activity.TypeFilterCleared, "", "filter cleared: "+key, map[string]string{"key": key}, 0)
	return c.recomputeIfLoadedLocked(ctx), nil
}

// SetGranularity changes the timeline period size and recomputes.
func (c *Controller) SetGranularity(ctx context.Context, g timeseries.Granularity) (*metrics.Bundle, error) {
	parsed, err := timeseries.ParseGranularity(string(g))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.granularity = parsed
	c.record(ctx, activity.TypeGranularitySet, "", "granularity set: "+string(parsed), nil, 0)
	return c.recomputeIfLoadedLocked(ctx), nil
}

// Filters returns the registered filter keys in registration order.
func (c *Controller) Filters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Keys()
}

// Granularity returns the active granularity.
func (c *Controller) Granularity() timeseries.Granularity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.granularity
}

// Current returns the last published bundle and whether it came from the
// cache. The bundle is nil before the first successful refresh.
func (c *Controller) Current() (*metrics.Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.degraded
}

// Refreshing reports whether a refresh is in flight.
func (c *Controller) Refreshing() bool { return c.refreshing.Load() }

// AutoRefresh calls Refresh every interval until ctx is done. A tick that
// lands while a refresh is still running is skipped.
func (c *Controller) AutoRefresh(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: refresh interval must be positive", ErrInvalidInput)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.refreshing.Load() {
				c.logger.Debug("auto refresh skipped", "reason", "in flight")
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
					c.logger.Warn("auto refresh failed", "error", err)
				}
			}()
		}
	}
}

func (c *Controller) recomputeIfLoadedLocked(ctx context.Context) *metrics.Bundle {
	if !c.records.Loaded() {
		return c.current
	}
	return c.recomputeLocked(ctx)
}

// recomputeLocked builds a bundle from one consistent store snapshot,
// caches it and publishes it. c.mu must be held.
func (c *Controller) recomputeLocked(ctx context.Context) *metrics.Bundle {
	snap := c.records.Snapshot(c.filters)
	b := c.engine.Compute(snap.Projects, snap.Issues, metrics.Options{
		Granularity: c.granularity,
		Range:       c.dateRange,
		Rejected:    snap.Rejected,
	})
	if c.cache != nil {
		c.cache.Put(ctx, b)
	}
	c.current = b
	c.degraded = false
	c.publishLocked(ctx, b)
	return b
}

func (c *Controller) publishLocked(ctx context.Context, b *metrics.Bundle) {
	if c.renderer == nil {
		return
	}
	for _, name := range metrics.Names {
		data, _ := b.Series(name)
		if err := c.renderer.Render(ctx, name, data); err != nil {
			c.logger.Warn("render failed", "series", name, "bundle_id", b.ID, "error", err)
		}
	}
}

func (c *Controller) record(ctx context.Context, typ activity.ActivityType, bundleID, summary string, details any, took time.Duration) {
	if c.activity == nil {
		return
	}
	c.activity.Record(ctx, typ, bundleID, summary, details, took)
}
