package metrics

import (
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/risk"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
)

// RiskMetrics scores every project, then reports the tier distribution,
// the tier mix per period and the factors ranked by contribution.
func (e *Engine) RiskMetrics(projects []record.ProjectRecord, f Frame) RiskMetrics {
	dist := e.scorer.Distribution(projects)

	var all []risk.Assessment
	for _, tier := range []risk.Tier{risk.TierHigh, risk.TierMedium, risk.TierLow} {
		all = append(all, dist.Groups[tier]...)
	}

	byPeriod := timeseries.Group(projects, anchor, f.Granularity)
	averages := make(map[string]float64, byPeriod.Len())
	mix := make(map[string]risk.Distribution, byPeriod.Len())
	for _, k := range byPeriod.Keys {
		d := e.scorer.Distribution(byPeriod.Buckets[k])
		mix[k] = d
		sum := 0.0
		for _, tier := range []risk.Tier{risk.TierHigh, risk.TierMedium, risk.TierLow} {
			for _, a := range d.Groups[tier] {
				sum += a.Score
			}
		}
		averages[k] = sum / float64(len(byPeriod.Buckets[k]))
	}

	carried := f.carry(averages)
	trend := make([]RiskTrendPoint, len(f.Periods))
	for i, p := range f.Periods {
		d := mix[p]
		trend[i] = RiskTrendPoint{
			Period:       p,
			High:         d.High,
			Medium:       d.Medium,
			Low:          d.Low,
			AverageScore: carried[i].Value,
		}
	}

	return RiskMetrics{
		Distribution: dist,
		Trend:        trend,
		TopFactors:   risk.TopFactors(all),
	}
}
