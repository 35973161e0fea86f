package metrics

import (
	"time"

	"github.com/rpggio/opsdash/internal/domain/record"
)

// Defects summarises the issue report. Density is issues per project and
// the timeline is the cumulative issue count carried over quiet periods.
func (e *Engine) Defects(issues []record.IssueRecord, projectCount int, f Frame) Defects {
	d := Defects{
		Total:      len(issues),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	var resolution []float64
	for _, i := range issues {
		d.BySeverity[label(i.Severity)]++
		d.ByCategory[label(i.Category)]++
		if i.IsOpen() {
			d.Open++
			continue
		}
		d.Resolved++
		if i.ResolvedDate != nil && !i.Date.IsZero() {
			resolution = append(resolution, record.DaysBetween(i.Date, *i.ResolvedDate))
		}
	}
	d.ResolutionRate = Percent(float64(d.Resolved), float64(d.Total))
	d.MeanResolutionDays = Mean(resolution)
	d.Density = Ratio(float64(d.Total), float64(projectCount))
	d.Timeline = f.cumulative(countBy(issues,
		func(i record.IssueRecord) time.Time { return i.Date }, f.Granularity))
	return d
}
