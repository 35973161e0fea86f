// Package metrics derives the chart-ready statistics of a dashboard from
// filtered project and issue records.
package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/risk"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
)

// Thresholds on the 0-100 quality score.
const (
	ExcellenceMark  = 90.0
	QualityPassMark = 70.0
)

const unspecified = "Unspecified"

// Options selects how a bundle is computed.
type Options struct {
	Granularity timeseries.Granularity
	// Range bounds the timeline periods. When nil the periods span the
	// dates found in the records.
	Range *record.DateRange
	// Rejected is the number of records dropped during validation.
	Rejected int
}

// Engine computes metric bundles. It holds no state between calls.
type Engine struct {
	scorer *risk.Scorer
	now    func() time.Time
	newID  func() string
}

// Option customises an Engine.
type Option func(*Engine)

// WithScorer replaces the risk scorer.
func WithScorer(s *risk.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithClock sets the source of bundle timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the source of bundle ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates an engine with the default risk scorer.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		scorer: risk.NewScorer(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Frame is the period axis shared by every timeline of one bundle.
type Frame struct {
	Granularity timeseries.Granularity
	Periods     []string
}

// Frame builds the period axis for the given records.
func (e *Engine) Frame(projects []record.ProjectRecord, issues []record.IssueRecord, opts Options) Frame {
	g := opts.Granularity
	if g == "" {
		g = timeseries.Monthly
	}
	if opts.Range != nil {
		return Frame{Granularity: g, Periods: timeseries.Periods(opts.Range.Start, opts.Range.End, g)}
	}

	var lo, hi time.Time
	see := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if lo.IsZero() || t.Before(lo) {
			lo = t
		}
		if hi.IsZero() || t.After(hi) {
			hi = t
		}
	}
	for _, p := range projects {
		see(p.AnchorDate())
		see(p.StartDate)
		if p.CompletionDate != nil {
			see(*p.CompletionDate)
		}
	}
	for _, i := range issues {
		see(i.Date)
	}
	return Frame{Granularity: g, Periods: timeseries.Periods(lo, hi, g)}
}

// Compute runs every sub-metric and assembles a new bundle.
func (e *Engine) Compute(projects []record.ProjectRecord, issues []record.IssueRecord, opts Options) *Bundle {
	f := e.Frame(projects, issues, opts)
	b := &Bundle{
		ID:          e.newID(),
		GeneratedAt: e.now().UTC(),
		Granularity: f.Granularity,
		Rejected:    opts.Rejected,
	}
	if opts.Range != nil {
		r := *opts.Range
		b.Range = &r
	}

	b.ProjectVolume = e.ProjectVolume(projects, f)
	b.TurnaroundTimes = e.TurnaroundTimes(projects, f)
	b.StatusOverview = e.StatusOverview(projects)
	b.ExecutionMetrics = e.ExecutionMetrics(projects)
	b.TimelineAnalytics = e.TimelineAnalytics(projects, f)
	b.ResourceUtilization = e.ResourceUtilization(projects)
	b.Distribution = e.Distribution(projects)
	b.Geographic = e.Geographic(projects)
	b.Trends = e.Trends(projects, f)
	b.Defects = e.Defects(issues, len(projects), f)
	b.Quality = e.Quality(projects, f)
	b.Compliance = e.Compliance(projects)

	rm := e.RiskMetrics(projects, f)
	b.RiskDistribution = rm.Distribution
	b.RiskTrend = rm.Trend
	b.TopRiskFactors = rm.TopFactors

	b.Notes = notes(b)
	return b
}

func notes(b *Bundle) []string {
	var out []string
	if b.Rejected > 0 {
		out = append(out, fmt.Sprintf("%d records rejected during validation", b.Rejected))
	}
	if b.StatusOverview.Total == 0 {
		out = append(out, "statusOverview.percentages not available")
	}
	for _, s := range b.Scalars() {
		if !s.Value.Defined {
			out = append(out, s.Name+" not available")
		}
	}
	return out
}

// countBy counts records per period of dateOf.
func countBy[T any](records []T, dateOf func(T) time.Time, g timeseries.Granularity) map[string]float64 {
	s := timeseries.Group(records, dateOf, g)
	out := make(map[string]float64, s.Len())
	for _, k := range s.Keys {
		out[k] = float64(len(s.Buckets[k]))
	}
	return out
}

// meanBy averages value over the records of each period.
func meanBy[T any](records []T, dateOf func(T) time.Time, value func(T) float64, g timeseries.Granularity) map[string]float64 {
	s := timeseries.Group(records, dateOf, g)
	out := make(map[string]float64, s.Len())
	for _, k := range s.Keys {
		sum := 0.0
		for _, r := range s.Buckets[k] {
			sum += value(r)
		}
		out[k] = sum / float64(len(s.Buckets[k]))
	}
	return out
}

// sumBy totals value over the records of each period.
func sumBy[T any](records []T, dateOf func(T) time.Time, value func(T) float64, g timeseries.Granularity) map[string]float64 {
	s := timeseries.Group(records, dateOf, g)
	out := make(map[string]float64, s.Len())
	for _, k := range s.Keys {
		for _, r := range s.Buckets[k] {
			out[k] += value(r)
		}
	}
	return out
}

// counts is a per-period series where an empty period is a real zero.
func (f Frame) counts(perPeriod map[string]float64) []timeseries.Point {
	sparse := make(map[string]float64, len(f.Periods))
	for _, p := range f.Periods {
		sparse[p] = perPeriod[p]
	}
	return timeseries.Dense(f.Periods, sparse, 0)
}

// cumulative is a running total carried forward over empty periods.
func (f Frame) cumulative(perPeriod map[string]float64) []timeseries.Point {
	keys := make([]string, 0, len(perPeriod))
	for k := range perPeriod {
		keys = append(keys, k)
	}
	return timeseries.Dense(f.Periods, timeseries.Cumulative(keys, perPeriod), 0)
}

// carry fills forward the last observed value. Periods before the first
// observation are undefined.
func (f Frame) carry(sparse map[string]float64) []ValuePoint {
	values := timeseries.FillForward(f.Periods, sparse, math.NaN())
	out := make([]ValuePoint, len(f.Periods))
	for i, p := range f.Periods {
		out[i] = ValuePoint{Period: p, Value: Of(values[i])}
	}
	return out
}

func label(s string) string {
	if s == "" {
		return unspecified
	}
	return s
}

func completionDate(p record.ProjectRecord) time.Time {
	if !p.IsCompleted() || p.CompletionDate == nil {
		return time.Time{}
	}
	return *p.CompletionDate
}

func withinBudget(p record.ProjectRecord) bool {
	return p.PlannedBudget > 0 && p.ActualCost <= p.PlannedBudget
}
