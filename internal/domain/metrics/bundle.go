package metrics

import (
	"time"

	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/risk"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
)

// Sub-metric names. They double as series names for renderers and table
// names for exports.
const (
	NameProjectVolume       = "projectVolume"
	NameTurnaroundTimes     = "turnaroundTimes"
	NameStatusOverview      = "statusOverview"
	NameExecutionMetrics    = "executionMetrics"
	NameTimelineAnalytics   = "timelineAnalytics"
	NameResourceUtilization = "resourceUtilization"
	NameDistribution        = "distribution"
	NameGeographic          = "geographic"
	NameTrends              = "trends"
	NameDefects             = "defects"
	NameQuality             = "quality"
	NameCompliance          = "compliance"
	NameRiskDistribution    = "riskDistribution"
	NameRiskTrend           = "riskTrend"
	NameTopRiskFactors      = "topRiskFactors"
)

// Names lists every sub-metric in publication order.
var Names = []string{
	NameProjectVolume, NameTurnaroundTimes, NameStatusOverview, NameExecutionMetrics,
	NameTimelineAnalytics, NameResourceUtilization, NameDistribution, NameGeographic,
	NameTrends, NameDefects, NameQuality, NameCompliance,
	NameRiskDistribution, NameRiskTrend, NameTopRiskFactors,
}

// ValuePoint is one period of a series whose values may be undefined.
type ValuePoint struct {
	Period string `json:"period"`
	Value  Value  `json:"value"`
}

type ProjectVolume struct {
	Total      int                `json:"total"`
	Active     int                `json:"active"`
	Completed  int                `json:"completed"`
	Timeline   []timeseries.Point `json:"timeline"`
	Cumulative []timeseries.Point `json:"cumulative"`
}

type TurnaroundTimes struct {
	Average       Value                `json:"average"`
	Count         int                  `json:"count"`
	ByType        map[string][]float64 `json:"byType"`
	AverageByType map[string]Value     `json:"averageByType"`
	Timeline      []ValuePoint         `json:"timeline"`
}

type StatusOverview struct {
	Total       int              `json:"total"`
	Statuses    []string         `json:"statuses"`
	Counts      map[string]int   `json:"counts"`
	Percentages map[string]Value `json:"percentages"`
}

type ExecutionMetrics struct {
	OnTimeDelivery  Value `json:"onTimeDelivery"`
	BudgetAdherence Value `json:"budgetAdherence"`
	CompletionRate  Value `json:"completionRate"`
	AverageQuality  Value `json:"averageQuality"`
	Score           Value `json:"score"`
}

type TimelineAnalytics struct {
	Delivered        int                `json:"delivered"`
	OnTime           int                `json:"onTime"`
	Delayed          int                `json:"delayed"`
	AverageDelayDays Value              `json:"averageDelayDays"`
	Started          []timeseries.Point `json:"started"`
	Completed        []timeseries.Point `json:"completed"`
}

type ResourceUtilization struct {
	AllocatedHours float64          `json:"allocatedHours"`
	ActualHours    float64          `json:"actualHours"`
	Utilization    Value            `json:"utilization"`
	Overloaded     int              `json:"overloaded"`
	ByType         map[string]Value `json:"byType"`
}

type Distribution struct {
	ByType          map[string]int   `json:"byType"`
	ByRegion        map[string]int   `json:"byRegion"`
	TypePercentages map[string]Value `json:"typePercentages"`
}

// RegionMetrics is the geographic breakdown of one region.
type RegionMetrics struct {
	Region         string `json:"region"`
	ProjectVolume  int    `json:"projectVolume"`
	SuccessRate    Value  `json:"successRate"`
	OnTimeRate     Value  `json:"onTimeRate"`
	BudgetVariance Value  `json:"budgetVariance"`
}

type Trends struct {
	Started        []timeseries.Point `json:"started"`
	Completed      []timeseries.Point `json:"completed"`
	Quality        []ValuePoint       `json:"quality"`
	CumulativeCost []timeseries.Point `json:"cumulativeCost"`
}

type Defects struct {
	Total              int                `json:"total"`
	Open               int                `json:"open"`
	Resolved           int                `json:"resolved"`
	BySeverity         map[string]int     `json:"bySeverity"`
	ByCategory         map[string]int     `json:"byCategory"`
	ResolutionRate     Value              `json:"resolutionRate"`
	MeanResolutionDays Value              `json:"meanResolutionDays"`
	Density            Value              `json:"density"`
	Timeline           []timeseries.Point `json:"timeline"`
}

type Quality struct {
	AverageScore   Value            `json:"averageScore"`
	Excellent      int              `json:"excellent"`
	ExcellenceRate Value            `json:"excellenceRate"`
	ByType         map[string]Value `json:"byType"`
	Timeline       []ValuePoint     `json:"timeline"`
}

type Compliance struct {
	OnTimeRate       Value `json:"onTimeRate"`
	WithinBudgetRate Value `json:"withinBudgetRate"`
	QualityPassRate  Value `json:"qualityPassRate"`
	Compliant        int   `json:"compliant"`
	ComplianceRate   Value `json:"complianceRate"`
}

// RiskTrendPoint is the tier mix of one period.
type RiskTrendPoint struct {
	Period       string `json:"period"`
	High         int    `json:"high"`
	Medium       int    `json:"medium"`
	Low          int    `json:"low"`
	AverageScore Value  `json:"averageScore"`
}

// RiskMetrics groups the three risk outputs.
type RiskMetrics struct {
	Distribution risk.Distribution         `json:"distribution"`
	Trend        []RiskTrendPoint          `json:"trend"`
	TopFactors   []risk.FactorContribution `json:"topFactors"`
}

// Bundle is the complete output of one processing cycle. A bundle is
// never modified after Compute returns it.
type Bundle struct {
	ID          string                 `json:"id"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Granularity timeseries.Granularity `json:"granularity"`
	Range       *record.DateRange      `json:"range,omitempty"`
	Rejected    int                    `json:"rejected"`
	Notes       []string               `json:"notes,omitempty"`

	ProjectVolume       ProjectVolume             `json:"projectVolume"`
	TurnaroundTimes     TurnaroundTimes           `json:"turnaroundTimes"`
	StatusOverview      StatusOverview            `json:"statusOverview"`
	ExecutionMetrics    ExecutionMetrics          `json:"executionMetrics"`
	TimelineAnalytics   TimelineAnalytics         `json:"timelineAnalytics"`
	ResourceUtilization ResourceUtilization       `json:"resourceUtilization"`
	Distribution        Distribution              `json:"distribution"`
	Geographic          []RegionMetrics           `json:"geographic"`
	Trends              Trends                    `json:"trends"`
	Defects             Defects                   `json:"defects"`
	Quality             Quality                   `json:"quality"`
	Compliance          Compliance                `json:"compliance"`
	RiskDistribution    risk.Distribution         `json:"riskDistribution"`
	RiskTrend           []RiskTrendPoint          `json:"riskTrend"`
	TopRiskFactors      []risk.FactorContribution `json:"topRiskFactors"`
}

// Scalar is one named top-level number of a bundle.
type Scalar struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Scalars flattens the headline numbers in a fixed order.
func (b *Bundle) Scalars() []Scalar {
	count := func(n int) Value { return Of(float64(n)) }
	return []Scalar{
		{"projectVolume.total", count(b.ProjectVolume.Total)},
		{"projectVolume.active", count(b.ProjectVolume.Active)},
		{"projectVolume.completed", count(b.ProjectVolume.Completed)},
		{"turnaroundTimes.average", b.TurnaroundTimes.Average},
		{"turnaroundTimes.count", count(b.TurnaroundTimes.Count)},
		{"statusOverview.total", count(b.StatusOverview.Total)},
		{"executionMetrics.onTimeDelivery", b.ExecutionMetrics.OnTimeDelivery},
		{"executionMetrics.budgetAdherence", b.ExecutionMetrics.BudgetAdherence},
		{"executionMetrics.completionRate", b.ExecutionMetrics.CompletionRate},
		{"executionMetrics.averageQuality", b.ExecutionMetrics.AverageQuality},
		{"executionMetrics.score", b.ExecutionMetrics.Score},
		{"timelineAnalytics.delivered", count(b.TimelineAnalytics.Delivered)},
		{"timelineAnalytics.onTime", count(b.TimelineAnalytics.OnTime)},
		{"timelineAnalytics.delayed", count(b.TimelineAnalytics.Delayed)},
		{"timelineAnalytics.averageDelayDays", b.TimelineAnalytics.AverageDelayDays},
		{"resourceUtilization.allocatedHours", Of(b.ResourceUtilization.AllocatedHours)},
		{"resourceUtilization.actualHours", Of(b.ResourceUtilization.ActualHours)},
		{"resourceUtilization.utilization", b.ResourceUtilization.Utilization},
		{"resourceUtilization.overloaded", count(b.ResourceUtilization.Overloaded)},
		{"defects.total", count(b.Defects.Total)},
		{"defects.open", count(b.Defects.Open)},
		{"defects.resolved", count(b.Defects.Resolved)},
		{"defects.resolutionRate", b.Defects.ResolutionRate},
		{"defects.meanResolutionDays", b.Defects.MeanResolutionDays},
		{"defects.density", b.Defects.Density},
		{"quality.averageScore", b.Quality.AverageScore},
		{"quality.excellent", count(b.Quality.Excellent)},
		{"quality.excellenceRate", b.Quality.ExcellenceRate},
		{"compliance.onTimeRate", b.Compliance.OnTimeRate},
		{"compliance.withinBudgetRate", b.Compliance.WithinBudgetRate},
		{"compliance.qualityPassRate", b.Compliance.QualityPassRate},
		{"compliance.compliant", count(b.Compliance.Compliant)},
		{"compliance.complianceRate", b.Compliance.ComplianceRate},
		{"riskDistribution.high", count(b.RiskDistribution.High)},
		{"riskDistribution.medium", count(b.RiskDistribution.Medium)},
		{"riskDistribution.low", count(b.RiskDistribution.Low)},
	}
}

// Series returns the chart data of the named sub-metric.
func (b *Bundle) Series(name string) (any, bool) {
	switch name {
	case NameProjectVolume:
		return b.ProjectVolume, true
	case NameTurnaroundTimes:
		return b.TurnaroundTimes, true
	case NameStatusOverview:
		return b.StatusOverview, true
	case NameExecutionMetrics:
		return b.ExecutionMetrics, true
	case NameTimelineAnalytics:
		return b.TimelineAnalytics, true
	case NameResourceUtilization:
		return b.ResourceUtilization, true
	case NameDistribution:
		return b.Distribution, true
	case NameGeographic:
		return b.Geographic, true
	case NameTrends:
		return b.Trends, true
	case NameDefects:
		return b.Defects, true
	case NameQuality:
		return b.Quality, true
	case NameCompliance:
		return b.Compliance, true
	case NameRiskDistribution:
		return b.RiskDistribution, true
	case NameRiskTrend:
		return b.RiskTrend, true
	case NameTopRiskFactors:
		return b.TopRiskFactors, true
	}
	return nil, false
}
