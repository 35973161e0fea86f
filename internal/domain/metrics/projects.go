package metrics

import (
	"sort"
	"time"

	"github.com/rpggio/opsdash/internal/domain/record"
)

func anchor(p record.ProjectRecord) time.Time { return p.AnchorDate() }
func started(p record.ProjectRecord) time.Time { return p.StartDate }

// ProjectVolume counts projects overall, by the Active and Completed
// statuses, and per period of their anchor date.
func (e *Engine) ProjectVolume(projects []record.ProjectRecord, f Frame) ProjectVolume {
	v := ProjectVolume{Total: len(projects)}
	for _, p := range projects {
		switch {
		case p.Status == record.StatusActive:
			v.Active++
		case p.IsCompleted():
			v.Completed++
		}
	}
	perPeriod := countBy(projects, anchor, f.Granularity)
	v.Timeline = f.counts(perPeriod)
	v.Cumulative = f.cumulative(perPeriod)
	return v
}

// TurnaroundTimes measures start-to-completion days of completed projects.
func (e *Engine) TurnaroundTimes(projects []record.ProjectRecord, f Frame) TurnaroundTimes {
	type done struct {
		completed time.Time
		days      float64
	}
	t := TurnaroundTimes{
		ByType:        make(map[string][]float64),
		AverageByType: make(map[string]Value),
	}
	var all []float64
	var finished []done
	for _, p := range projects {
		days, ok := p.TurnaroundDays()
		if !ok {
			continue
		}
		all = append(all, days)
		typ := label(p.Type)
		t.ByType[typ] = append(t.ByType[typ], days)
		finished = append(finished, done{completed: *p.CompletionDate, days: days})
	}
	t.Count = len(all)
	t.Average = Mean(all)
	for typ, durations := range t.ByType {
		t.AverageByType[typ] = Mean(durations)
	}
	t.Timeline = f.carry(meanBy(finished,
		func(d done) time.Time { return d.completed },
		func(d done) float64 { return d.days },
		f.Granularity))
	return t
}

// StatusOverview counts each observed status and its share of the total.
// Statuses are ordered by count, then name.
func (e *Engine) StatusOverview(projects []record.ProjectRecord) StatusOverview {
	s := StatusOverview{
		Total:       len(projects),
		Statuses:    []string{},
		Counts:      make(map[string]int),
		Percentages: make(map[string]Value),
	}
	for _, p := range projects {
		status := label(p.Status)
		if _, ok := s.Counts[status]; !ok {
			s.Statuses = append(s.Statuses, status)
		}
		s.Counts[status]++
	}
	sort.SliceStable(s.Statuses, func(i, j int) bool {
		a, b := s.Statuses[i], s.Statuses[j]
		if s.Counts[a] != s.Counts[b] {
			return s.Counts[a] > s.Counts[b]
		}
		return a < b
	})
	for status, n := range s.Counts {
		s.Percentages[status] = Percent(float64(n), float64(s.Total))
	}
	return s
}

// ExecutionMetrics summarises delivery, budget and quality performance.
// Score is the mean of on-time delivery, budget adherence and average
// quality, undefined unless all three are.
func (e *Engine) ExecutionMetrics(projects []record.ProjectRecord) ExecutionMetrics {
	var onTime, completed, budgeted, adherent int
	qualities := make([]float64, 0, len(projects))
	for _, p := range projects {
		if p.DeliveredOnTime() {
			onTime++
		}
		if p.IsCompleted() {
			completed++
		}
		if p.PlannedBudget > 0 {
			budgeted++
			if withinBudget(p) {
				adherent++
			}
		}
		qualities = append(qualities, p.QualityScore)
	}
	n := float64(len(projects))
	m := ExecutionMetrics{
		OnTimeDelivery:  Percent(float64(onTime), n),
		BudgetAdherence: Percent(float64(adherent), float64(budgeted)),
		CompletionRate:  Percent(float64(completed), n),
		AverageQuality:  Mean(qualities),
	}
	m.Score = MeanOf(m.OnTimeDelivery, m.BudgetAdherence, m.AverageQuality)
	return m
}

// TimelineAnalytics compares delivery against plan and tracks starts and
// completions per period.
func (e *Engine) TimelineAnalytics(projects []record.ProjectRecord, f Frame) TimelineAnalytics {
	var a TimelineAnalytics
	var delays []float64
	for _, p := range projects {
		if p.DeliveryDate.IsZero() || p.PlannedDeliveryDate.IsZero() {
			continue
		}
		a.Delivered++
		if p.DeliveredOnTime() {
			a.OnTime++
			continue
		}
		a.Delayed++
		delays = append(delays, record.DaysBetween(p.PlannedDeliveryDate, p.DeliveryDate))
	}
	a.AverageDelayDays = Mean(delays)
	a.Started = f.counts(countBy(projects, started, f.Granularity))
	a.Completed = f.counts(countBy(projects, completionDate, f.Granularity))
	return a
}

// ResourceUtilization compares actual hours against allocation.
func (e *Engine) ResourceUtilization(projects []record.ProjectRecord) ResourceUtilization {
	r := ResourceUtilization{ByType: make(map[string]Value)}
	allocated := make(map[string]float64)
	actual := make(map[string]float64)
	for _, p := range projects {
		r.AllocatedHours += p.AllocatedHours
		r.ActualHours += p.ActualHours
		if p.AllocatedHours > 0 && p.ActualHours > p.AllocatedHours {
			r.Overloaded++
		}
		typ := label(p.Type)
		allocated[typ] += p.AllocatedHours
		actual[typ] += p.ActualHours
	}
	r.Utilization = Percent(r.ActualHours, r.AllocatedHours)
	for typ := range allocated {
		r.ByType[typ] = Percent(actual[typ], allocated[typ])
	}
	return r
}

// Distribution counts projects per type and per region.
func (e *Engine) Distribution(projects []record.ProjectRecord) Distribution {
	d := Distribution{
		ByType:          make(map[string]int),
		ByRegion:        make(map[string]int),
		TypePercentages: make(map[string]Value),
	}
	for _, p := range projects {
		d.ByType[label(p.Type)]++
		d.ByRegion[label(p.Region)]++
	}
	for typ, n := range d.ByType {
		d.TypePercentages[typ] = Percent(float64(n), float64(len(projects)))
	}
	return d
}

// Geographic computes per-region rates, sorted by region. Regions without
// projects are never emitted.
func (e *Engine) Geographic(projects []record.ProjectRecord) []RegionMetrics {
	type acc struct {
		total, success, onTime int
		planned, actual        float64
	}
	byRegion := make(map[string]*acc)
	var regions []string
	for _, p := range projects {
		region := label(p.Region)
		a, ok := byRegion[region]
		if !ok {
			a = &acc{}
			byRegion[region] = a
			regions = append(regions, region)
		}
		a.total++
		if p.IsCompleted() && p.QualityScore >= ExcellenceMark {
			a.success++
		}
		if p.DeliveredOnTime() {
			a.onTime++
		}
		a.planned += p.PlannedBudget
		a.actual += p.ActualCost
	}
	sort.Strings(regions)

	out := make([]RegionMetrics, 0, len(regions))
	for _, region := range regions {
		a := byRegion[region]
		out = append(out, RegionMetrics{
			Region:         region,
			ProjectVolume:  a.total,
			SuccessRate:    Percent(float64(a.success), float64(a.total)),
			OnTimeRate:     Percent(float64(a.onTime), float64(a.total)),
			BudgetVariance: Percent(a.actual-a.planned, a.planned),
		})
	}
	return out
}

// Trends tracks starts, completions, quality and spend over time.
func (e *Engine) Trends(projects []record.ProjectRecord, f Frame) Trends {
	quality := func(p record.ProjectRecord) float64 { return p.QualityScore }
	cost := func(p record.ProjectRecord) float64 { return p.ActualCost }
	return Trends{
		Started:        f.counts(countBy(projects, started, f.Granularity)),
		Completed:      f.counts(countBy(projects, completionDate, f.Granularity)),
		Quality:        f.carry(meanBy(projects, anchor, quality, f.Granularity)),
		CumulativeCost: f.cumulative(sumBy(projects, anchor, cost, f.Granularity)),
	}
}

// Quality summarises quality scores overall, per type and over time.
func (e *Engine) Quality(projects []record.ProjectRecord, f Frame) Quality {
	q := Quality{ByType: make(map[string]Value)}
	scores := make([]float64, 0, len(projects))
	byType := make(map[string][]float64)
	for _, p := range projects {
		scores = append(scores, p.QualityScore)
		typ := label(p.Type)
		byType[typ] = append(byType[typ], p.QualityScore)
		if p.QualityScore >= ExcellenceMark {
			q.Excellent++
		}
	}
	q.AverageScore = Mean(scores)
	q.ExcellenceRate = Percent(float64(q.Excellent), float64(len(projects)))
	for typ, s := range byType {
		q.ByType[typ] = Mean(s)
	}
	q.Timeline = f.carry(meanBy(projects, anchor,
		func(p record.ProjectRecord) float64 { return p.QualityScore }, f.Granularity))
	return q
}

// Compliance counts projects that were on time, within budget and above
// the quality pass mark.
func (e *Engine) Compliance(projects []record.ProjectRecord) Compliance {
	var onTime, budget, quality int
	var c Compliance
	for _, p := range projects {
		ok := true
		if p.DeliveredOnTime() {
			onTime++
		} else {
			ok = false
		}
		if withinBudget(p) {
			budget++
		} else {
			ok = false
		}
		if p.QualityScore >= QualityPassMark {
			quality++
		} else {
			ok = false
		}
		if ok {
			c.Compliant++
		}
	}
	n := float64(len(projects))
	c.OnTimeRate = Percent(float64(onTime), n)
	c.WithinBudgetRate = Percent(float64(budget), n)
	c.QualityPassRate = Percent(float64(quality), n)
	c.ComplianceRate = Percent(float64(c.Compliant), n)
	return c
}
