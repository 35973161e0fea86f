package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultListLimit caps listings that do not set a limit.
const DefaultListLimit = 50

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry == nil || entry.ActivityType == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Record builds and logs an entry. Details are encoded as JSON. Failures
// are logged and dropped: the activity log never blocks a refresh.
func (s *Service) Record(ctx context.Context, typ ActivityType, bundleID, summary string, details any, took time.Duration) {
	entry := &ActivityEntry{
		ActivityType: typ,
		Summary:      summary,
		DurationMS:   took.Milliseconds(),
	}
	if bundleID != "" {
		entry.BundleID = &bundleID
	}
	if details != nil {
		data, err := json.Marshal(details)
		if err == nil {
			entry.Details = string(data)
		}
	}
	if err := s.LogActivity(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("activity not recorded", "type", typ, "error", err)
	}
}

// GetRecentActivity lists activity entries with filtering, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]ActivityEntry, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, opts)
}
