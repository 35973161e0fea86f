package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
)

// DashboardService defines dashboard operations needed by MCP.
type DashboardService interface {
	Refresh(ctx context.Context) (dashboard.Result, error)
	Current() (*metrics.Bundle, bool)
	ApplyFilter(ctx context.Context, key string, spec dashboard.FilterSpec) (*metrics.Bundle, error)
	ClearFilter(ctx context.Context, key string) (*metrics.Bundle, error)
	SetGranularity(ctx context.Context, g timeseries.Granularity) (*metrics.Bundle, error)
	Filters() []string
	Granularity() timeseries.Granularity
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Dashboard DashboardService
	Activity  ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      ClientResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "opsdash",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(DefaultClient))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
