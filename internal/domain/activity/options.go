package activity

import "time"

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	ActivityType *ActivityType
	BundleID     *string
	Since        *time.Time
	Limit        int
	Offset       int
}
