package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeRefreshSucceeded ActivityType = "refresh_succeeded"
	TypeRefreshDegraded  ActivityType = "refresh_degraded"
	TypeRefreshFailed    ActivityType = "refresh_failed"
	TypeRefreshSkipped   ActivityType = "refresh_skipped"
	TypeRecordsRejected  ActivityType = "records_rejected"
	TypeFilterSet        ActivityType = "filter_set"
	TypeFilterCleared    ActivityType = "filter_cleared"
	TypeGranularitySet   ActivityType = "granularity_set"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ActivityType ActivityType `json:"type"`
	BundleID     *string      `json:"bundle_id,omitempty"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	DurationMS   int64        `json:"duration_ms,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
