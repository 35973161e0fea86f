// Package export flattens a metric bundle into named tables of flat rows
// for spreadsheet download.
package export

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/risk"
)

const (
	// FilePrefix starts every export file name.
	FilePrefix = "dashboard_export_"
	// TimestampLayout formats the export time in file names.
	TimestampLayout = "2006-01-02_15-04"
)

// Table names.
const (
	TableSummary          = "summary"
	TableMeta             = "meta"
	TableStatus           = "status"
	TableGeographic       = "geographic"
	TableVolumeTimeline   = "volumeTimeline"
	TableTurnaroundByType = "turnaroundByType"
	TableDefectSeverity   = "defectsBySeverity"
	TableRiskProjects     = "riskProjects"
	TableRiskTrend        = "riskTrend"
	TableRiskFactors      = "riskFactors"
)

var (
	// ErrMissingTable indicates an import without the expected table.
	ErrMissingTable = errors.New("table not found")
	// ErrMalformedRow indicates a row that does not fit the table shape.
	ErrMalformedRow = errors.New("malformed row")
)

// Table is one sheet of an export. Cells hold strings, float64, int or
// nil for a not-available value.
type Table struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// FileName returns the export name for time t, without extension.
func FileName(t time.Time) string {
	return FilePrefix + t.Format(TimestampLayout)
}

// Tables flattens b. The summary table comes first.
func Tables(b *metrics.Bundle) []Table {
	return []Table{
		summary(b),
		meta(b),
		status(b),
		geographic(b),
		volumeTimeline(b),
		turnaroundByType(b),
		defectSeverity(b),
		riskProjects(b),
		riskTrend(b),
		riskFactors(b),
	}
}

// Find returns the table with the given name.
func Find(tables []Table, name string) (Table, error) {
	for _, t := range tables {
		if t.Name == name {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("%w: %s", ErrMissingTable, name)
}

func cell(v metrics.Value) any {
	if !v.Defined {
		return nil
	}
	return v.V
}

func summary(b *metrics.Bundle) Table {
	t := Table{Name: TableSummary, Columns: []string{"metric", "value"}}
	for _, s := range b.Scalars() {
		t.Rows = append(t.Rows, map[string]any{"metric": s.Name, "value": cell(s.Value)})
	}
	return t
}

func meta(b *metrics.Bundle) Table {
	t := Table{Name: TableMeta, Columns: []string{"key", "value"}}
	add := func(k string, v any) {
		t.Rows = append(t.Rows, map[string]any{"key": k, "value": v})
	}
	add("bundleId", b.ID)
	add("generatedAt", b.GeneratedAt.UTC().Format(time.RFC3339))
	add("granularity", string(b.Granularity))
	if b.Range != nil {
		add("rangeStart", b.Range.Start.Format(time.DateOnly))
		add("rangeEnd", b.Range.End.Format(time.DateOnly))
	}
	add("rejected", b.Rejected)
	for i, n := range b.Notes {
		add("note"+strconv.Itoa(i+1), n)
	}
	return t
}

func status(b *metrics.Bundle) Table {
	t := Table{Name: TableStatus, Columns: []string{"status", "count", "percentage"}}
	for _, s := range b.StatusOverview.Statuses {
		t.Rows = append(t.Rows, map[string]any{
			"status":     s,
			"count":      b.StatusOverview.Counts[s],
			"percentage": cell(b.StatusOverview.Percentages[s]),
		})
	}
	return t
}

func geographic(b *metrics.Bundle) Table {
	t := Table{Name: TableGeographic, Columns: []string{"region", "projectVolume", "successRate", "onTimeRate", "budgetVariance"}}
	for _, r := range b.Geographic {
		t.Rows = append(t.Rows, map[string]any{
			"region":         r.Region,
			"projectVolume":  r.ProjectVolume,
			"successRate":    cell(r.SuccessRate),
			"onTimeRate":     cell(r.OnTimeRate),
			"budgetVariance": cell(r.BudgetVariance),
		})
	}
	return t
}

func volumeTimeline(b *metrics.Bundle) Table {
	t := Table{Name: TableVolumeTimeline, Columns: []string{"period", "count", "cumulative"}}
	for i, p := range b.ProjectVolume.Timeline {
		row := map[string]any{"period": p.Period, "count": p.Value}
		if i < len(b.ProjectVolume.Cumulative) {
			row["cumulative"] = b.ProjectVolume.Cumulative[i].Value
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func turnaroundByType(b *metrics.Bundle) Table {
	t := Table{Name: TableTurnaroundByType, Columns: []string{"type", "count", "average"}}
	for _, typ := range sortedKeys(b.TurnaroundTimes.ByType) {
		t.Rows = append(t.Rows, map[string]any{
			"type":    typ,
			"count":   len(b.TurnaroundTimes.ByType[typ]),
			"average": cell(b.TurnaroundTimes.AverageByType[typ]),
		})
	}
	return t
}

func defectSeverity(b *metrics.Bundle) Table {
	t := Table{Name: TableDefectSeverity, Columns: []string{"severity", "count"}}
	for _, sev := range sortedKeys(b.Defects.BySeverity) {
		t.Rows = append(t.Rows, map[string]any{"severity": sev, "count": b.Defects.BySeverity[sev]})
	}
	return t
}

func riskProjects(b *metrics.Bundle) Table {
	t := Table{Name: TableRiskProjects, Columns: []string{"projectId", "score", "tier"}}
	for _, tier := range []risk.Tier{risk.TierHigh, risk.TierMedium, risk.TierLow} {
		for _, a := range b.RiskDistribution.Groups[tier] {
			t.Rows = append(t.Rows, map[string]any{"projectId": a.ProjectID, "score": a.Score, "tier": string(a.Tier)})
		}
	}
	return t
}

func riskTrend(b *metrics.Bundle) Table {
	t := Table{Name: TableRiskTrend, Columns: []string{"period", "high", "medium", "low", "averageScore"}}
	for _, p := range b.RiskTrend {
		t.Rows = append(t.Rows, map[string]any{
			"period":       p.Period,
			"high":         p.High,
			"medium":       p.Medium,
			"low":          p.Low,
			"averageScore": cell(p.AverageScore),
		})
	}
	return t
}

func riskFactors(b *metrics.Bundle) Table {
	t := Table{Name: TableRiskFactors, Columns: []string{"factor", "contribution", "share"}}
	for _, f := range b.TopRiskFactors {
		t.Rows = append(t.Rows, map[string]any{"factor": string(f.Factor), "contribution": f.Contribution, "share": f.Share})
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ImportSummary reads scalar fields back from a summary table. Cells may
// be numbers or their text form; empty cells are not-available values.
func ImportSummary(t Table) ([]metrics.Scalar, error) {
	out := make([]metrics.Scalar, 0, len(t.Rows))
	for i, row := range t.Rows {
		name, ok := row["metric"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: row %d has no metric name", ErrMalformedRow, i)
		}
		v, err := parseCell(row["value"])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", ErrMalformedRow, i, name, err)
		}
		out = append(out, metrics.Scalar{Name: name, Value: v})
	}
	return out, nil
}

func parseCell(v any) (metrics.Value, error) {
	switch val := v.(type) {
	case nil:
		return metrics.Undefined(), nil
	case float64:
		return metrics.Of(val), nil
	case int:
		return metrics.Of(float64(val)), nil
	case int64:
		return metrics.Of(float64(val)), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "n/a") {
			return metrics.Undefined(), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return metrics.Value{}, err
		}
		return metrics.Of(f), nil
	}
	return metrics.Value{}, fmt.Errorf("unsupported cell type %T", v)
}
