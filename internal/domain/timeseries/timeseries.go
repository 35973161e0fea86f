// Package timeseries buckets dated records into calendar periods and
// densifies sparse per-period values.
package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity is the calendar period size of a timeline.
type Granularity string

const (
	Daily     Granularity = "daily"
	Weekly    Granularity = "weekly"
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Yearly    Granularity = "yearly"
)

// ErrUnknownGranularity indicates a granularity name outside the supported set.
var ErrUnknownGranularity = errors.New("unknown granularity")

// ParseGranularity maps a name (case-insensitive) to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return g, nil
	case "day":
		return Daily, nil
	case "week":
		return Weekly, nil
	case "month":
		return Monthly, nil
	case "quarter":
		return Quarterly, nil
	case "year":
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// BucketKey maps a date to its period key. Keys of one granularity sort
// lexicographically in chronological order.
func BucketKey(t time.Time, g Granularity) string {
	switch g {
	case Daily:
		return t.Format("2006-01-02")
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Quarterly:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case Yearly:
		return fmt.Sprintf("%04d", t.Year())
	default:
		return t.Format("2006-01")
	}
}

// Series is an ordered grouping of records by period key.
type Series[T any] struct {
	Keys    []string
	Buckets map[string][]T
}

// Len returns the number of non-empty periods.
func (s Series[T]) Len() int { return len(s.Keys) }

// Group buckets records by the period of dateOf. Records keep their input
// order inside a bucket; records with a zero date are skipped.
func Group[T any](records []T, dateOf func(T) time.Time, g Granularity) Series[T] {
	s := Series[T]{Buckets: make(map[string][]T)}
	for _, r := range records {
		d := dateOf(r)
		if d.IsZero() {
			continue
		}
		key := BucketKey(d, g)
		if _, ok := s.Buckets[key]; !ok {
			s.Keys = append(s.Keys, key)
		}
		s.Buckets[key] = append(s.Buckets[key], r)
	}
	sort.Strings(s.Keys)
	return s
}

// Periods enumerates every period key from start to end inclusive.
func Periods(start, end time.Time, g Granularity) []string {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil
	}
	start = periodStart(start, g)
	var keys []string
	for t := start; !t.After(end); t = step(t, g) {
		keys = append(keys, BucketKey(t, g))
	}
	return keys
}

func periodStart(t time.Time, g Granularity) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Daily:
		return day
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Quarterly:
		first := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), first, 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func step(t time.Time, g Granularity) time.Time {
	switch g {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Quarterly:
		return t.AddDate(0, 3, 0)
	case Yearly:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// FillForward emits, for every period, the last value observed at or
// before it, or def until the first observation. Sparse keys that are not
// in periods still count once a later period is reached.
func FillForward(periods []string, sparse map[string]float64, def float64) []float64 {
	observed := make([]string, 0, len(sparse))
	for k := range sparse {
		observed = append(observed, k)
	}
	sort.Strings(observed)

	out := make([]float64, len(periods))
	current := def
	next := 0
	for i, p := range periods {
		for next < len(observed) && observed[next] <= p {
			current = sparse[observed[next]]
			next++
		}
		out[i] = current
	}
	return out
}

// Point is one period of a chart-ready series.
type Point struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// Dense pairs FillForward output with its periods.
func Dense(periods []string, sparse map[string]float64, def float64) []Point {
	values := FillForward(periods, sparse, def)
	points := make([]Point, len(periods))
	for i, p := range periods {
		points[i] = Point{Period: p, Value: values[i]}
	}
	return points
}

// Cumulative turns per-period counts into running totals keyed by period.
func Cumulative(keys []string, counts map[string]float64) map[string]float64 {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	out := make(map[string]float64, len(sorted))
	total := 0.0
	for _, k := range sorted {
		total += counts[k]
		out[k] = total
	}
	return out
}
