package dashboard

import (
	"context"
	"time"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
)

// Fetcher loads the decoded rows of one report.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]record.Row, error)
}

// Renderer receives one sub-metric series after every refresh.
type Renderer interface {
	Render(ctx context.Context, name string, data any) error
}

// BundleCache is the degraded-mode fallback.
type BundleCache interface {
	Put(ctx context.Context, b *metrics.Bundle)
	Get(ctx context.Context) (*metrics.Bundle, bool)
}

// ActivityRecorder writes refresh and filter events to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, typ activity.ActivityType, bundleID, summary string, details any, took time.Duration)
}
