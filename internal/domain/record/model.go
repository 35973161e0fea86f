package record

import "time"

// Well-known project statuses. The vocabulary is open: any other string
// read from a report is kept as-is.
const (
	StatusPlanned   = "Planned"
	StatusActive    = "Active"
	StatusCompleted = "Completed"
	StatusOnHold    = "OnHold"
	StatusCancelled = "Cancelled"
)

// Row is one decoded spreadsheet row keyed by its column header.
type Row map[string]any

// Kind names one of the two record collections.
type Kind string

const (
	KindProject Kind = "project"
	KindIssue   Kind = "issue"
)

// ProjectRecord is one row of the project report.
type ProjectRecord struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	Type                string     `json:"type"`
	Region              string     `json:"region"`
	StartDate           time.Time  `json:"start_date"`
	CompletionDate      *time.Time `json:"completion_date,omitempty"`
	DeliveryDate        time.Time  `json:"delivery_date"`
	PlannedDeliveryDate time.Time  `json:"planned_delivery_date"`
	PlannedBudget       float64    `json:"planned_budget"`
	ActualCost          float64    `json:"actual_cost"`
	QualityScore        float64    `json:"quality_score"`
	Date                time.Time  `json:"date"`

	// Optional inputs for risk and utilisation.
	Complexity     float64 `json:"complexity,omitempty"`
	Dependencies   int     `json:"dependencies,omitempty"`
	AllocatedHours float64 `json:"allocated_hours,omitempty"`
	ActualHours    float64 `json:"actual_hours,omitempty"`
}

// AnchorDate is the date used for range filtering and timeline bucketing.
// Records without an explicit anchor fall back to their start date.
func (p ProjectRecord) AnchorDate() time.Time {
	if !p.Date.IsZero() {
		return p.Date
	}
	return p.StartDate
}

// IsCompleted reports whether the project finished.
func (p ProjectRecord) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// DeliveredOnTime reports whether delivery happened on or before the plan,
// compared at day granularity. Records missing either date are not on time.
func (p ProjectRecord) DeliveredOnTime() bool {
	if p.DeliveryDate.IsZero() || p.PlannedDeliveryDate.IsZero() {
		return false
	}
	return !Day(p.DeliveryDate).After(Day(p.PlannedDeliveryDate))
}

// TurnaroundDays is the day difference between completion and start.
func (p ProjectRecord) TurnaroundDays() (float64, bool) {
	if !p.IsCompleted() || p.CompletionDate == nil || p.StartDate.IsZero() {
		return 0, false
	}
	return DaysBetween(p.StartDate, *p.CompletionDate), true
}

func (p ProjectRecord) FilterDate() time.Time { return p.AnchorDate() }
func (p ProjectRecord) FilterStatus() string  { return p.Status }
func (p ProjectRecord) FilterRegion() string  { return p.Region }

// IssueRecord is one row of the issue report.
type IssueRecord struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id,omitempty"`
	Date         time.Time  `json:"date"`
	Severity     string     `json:"severity"`
	Category     string     `json:"category"`
	Status       string     `json:"status"`
	Region       string     `json:"region,omitempty"`
	ResolvedDate *time.Time `json:"resolved_date,omitempty"`
}

// IsOpen reports whether the issue is still unresolved.
func (i IssueRecord) IsOpen() bool {
	if i.ResolvedDate != nil {
		return false
	}
	switch normalizeKey(i.Status) {
	case "resolved", "closed", "done", "fixed":
		return false
	}
	return true
}

func (i IssueRecord) FilterDate() time.Time { return i.Date }
func (i IssueRecord) FilterStatus() string  { return i.Status }
func (i IssueRecord) FilterRegion() string  { return i.Region }

// Filterable is the view of a record that filter predicates see.
type Filterable interface {
	FilterDate() time.Time
	FilterStatus() string
	FilterRegion() string
}

// DateRange is an inclusive day range.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange validates start <= end at day granularity.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks the range ordering invariant.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidRange
	}
	if Day(r.Start).After(Day(r.End)) {
		return ErrInvalidRange
	}
	return nil
}

// Contains reports whether t falls inside the range, both ends inclusive.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	d := Day(t)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}
