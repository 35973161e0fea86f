// Package app assembles the dashboard service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/opsdash/internal/config"
	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/cache"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
	"github.com/rpggio/opsdash/internal/mcp"
	"github.com/rpggio/opsdash/internal/postgres"
	"github.com/rpggio/opsdash/internal/redisstore"
	"github.com/rpggio/opsdash/internal/render"
	"github.com/rpggio/opsdash/internal/sqlite"
	"github.com/rpggio/opsdash/internal/storage"
	"github.com/rpggio/opsdash/internal/transport"
)

// Version is stamped at build time.
var Version = "dev"

// App holds the wired service.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	DB        *sqlite.DB
	Dashboard *dashboard.Controller
	Series    *render.Snapshot
	Activity  *activity.Service
	APIKeys   *sqlite.APIKeyRepository
	closers   []func() error
}

// New opens every backend named by cfg. Close releases them.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config

	db, err := OpenDB(ctx, cfg.DB.Path)
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	fetcher, err := a.fetcher()
	if err != nil {
		return err
	}
	slots, err := a.slotStore(ctx)
	if err != nil {
		return err
	}
	renderer, err := a.renderer()
	if err != nil {
		return err
	}
	granularity, err := timeseries.ParseGranularity(cfg.Dashboard.Granularity)
	if err != nil {
		return err
	}

	a.Activity = activity.NewService(sqlite.NewActivityRepository(db), a.Logger)
	a.APIKeys = sqlite.NewAPIKeyRepository(db)
	a.Dashboard = dashboard.New(dashboard.Deps{
		Fetcher:  fetcher,
		Renderer: renderer,
		Cache:    cache.New(slots, a.Logger, cache.WithTTL(cfg.Cache.TTL), cache.WithSlot(cfg.Cache.Slot)),
		Activity: a.Activity,
		Logger:   a.Logger,
	}, dashboard.Config{
		ProjectKey:       cfg.Dashboard.ProjectKey,
		IssueKey:         cfg.Dashboard.IssueKey,
		Granularity:      granularity,
		StrictValidation: cfg.Dashboard.StrictValidation,
	})
	return nil
}

func (a *App) fetcher() (dashboard.Fetcher, error) {
	s := a.Config.Storage
	switch s.Backend {
	case config.StorageHTTP:
		return storage.NewHTTPFetcher(storage.HTTPOptions{
			BaseURL:          s.BaseURL,
			Token:            s.Token,
			Timeout:          s.Timeout,
			FailureThreshold: s.FailureThreshold,
			OpenTimeout:      s.OpenTimeout,
		}, a.Logger)
	case config.StorageFile:
		return storage.NewFileFetcher(s.Root), nil
	}
	return nil, fmt.Errorf("%w: storage backend %q", config.ErrInvalid, s.Backend)
}

func (a *App) slotStore(ctx context.Context) (cache.SlotStore, error) {
	c := a.Config.Cache
	switch c.Backend {
	case config.CacheSQLite:
		return sqlite.NewCacheSlotRepository(a.DB), nil
	case config.CacheRedis:
		store, err := redisstore.Open(ctx, c.RedisURL, c.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.CachePostgres:
		pool, err := postgres.Open(ctx, c.PostgresURL, int(c.PostgresMaxConns))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		return postgres.NewSlotStore(pool), nil
	case config.CacheMemory:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: cache backend %q", config.ErrInvalid, c.Backend)
}

func (a *App) renderer() (dashboard.Renderer, error) {
	a.Series = render.NewSnapshot()
	if a.Config.Render.AMQPURL == "" {
		return a.Series, nil
	}
	pub, err := render.DialAMQP(a.Config.Render.AMQPURL, a.Config.Render.Exchange, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)
	return render.Fanout{a.Series, pub}, nil
}

// MCPServer builds the agent tool server for transport mode "stdio" or
// "http".
func (a *App) MCPServer(mode string) *sdkmcp.Server {
	return mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Dashboard: a.Dashboard,
			Activity:  a.Activity,
		},
		Resolver:      a.APIKeys,
		AuthEnabled:   a.Config.Auth.Enabled,
		TransportMode: mode,
		Version:       Version,
		Logger:        a.Logger,
	})
}

// Handler returns the HTTP API with the MCP endpoint mounted when
// enabled.
func (a *App) Handler() http.Handler {
	cfg := transport.Config{
		Dashboard: a.Dashboard,
		Series:    a.Series,
		Activity:  a.Activity,
		Logger:    a.Logger,
	}
	if a.Config.Auth.Enabled {
		cfg.Auth = transport.AuthMiddleware(a.APIKeys)
	}
	if a.Config.MCP.Enabled {
		server := a.MCPServer("http")
		handler := sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return server },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
		)
		cfg.Extra = map[string]http.Handler{a.Config.MCP.Path: handler}
	}
	return transport.NewServer(cfg)
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenDB opens the SQLite database at path, creating its directory, and
// applies pending migrations.
func OpenDB(ctx context.Context, path string) (*sqlite.DB, error) {
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
