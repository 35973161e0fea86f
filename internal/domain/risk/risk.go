// Package risk scores projects on five weighted factors and classifies
// the result into tiers.
package risk

import (
	"math"
	"sort"

	"github.com/rpggio/opsdash/internal/domain/record"
)

// Factor names one weighted risk dimension.
type Factor string

const (
	FactorTimeline   Factor = "timeline"
	FactorBudget     Factor = "budget"
	FactorComplexity Factor = "complexity"
	FactorDependency Factor = "dependency"
	FactorResource   Factor = "resource"
)

// Tier is a risk classification band.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Tier lower bounds; each band is closed below.
const (
	HighThreshold   = 75.0
	MediumThreshold = 40.0
)

// weightBasisPoints holds the factor weights in 1/10000 units so that
// their sum is exactly one.
var weightBasisPoints = map[Factor]int{
	FactorTimeline:   3000,
	FactorBudget:     2500,
	FactorComplexity: 2000,
	FactorDependency: 1500,
	FactorResource:   1000,
}

// Factors lists every factor in weight order.
var Factors = []Factor{FactorTimeline, FactorBudget, FactorComplexity, FactorDependency, FactorResource}

// WeightBasisPoints returns the weight of f in basis points.
func WeightBasisPoints(f Factor) int { return weightBasisPoints[f] }

// Weight returns the weight of f as a fraction.
func Weight(f Factor) float64 { return float64(weightBasisPoints[f]) / 10000 }

// SubScore rates one factor of a project on 0-100.
type SubScore func(p record.ProjectRecord) float64

// Option customises a Scorer.
type Option func(*Scorer)

// WithSubScore replaces the strategy for one factor.
func WithSubScore(f Factor, fn SubScore) Option {
	return func(s *Scorer) {
		if _, ok := weightBasisPoints[f]; ok && fn != nil {
			s.subScores[f] = fn
		}
	}
}

// Scorer combines factor sub-scores into a single weighted score.
type Scorer struct {
	subScores map[Factor]SubScore
}

// NewScorer creates a scorer with the default strategies.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{subScores: map[Factor]SubScore{
		FactorTimeline:   TimelineRisk,
		FactorBudget:     BudgetRisk,
		FactorComplexity: ComplexityRisk,
		FactorDependency: DependencyRisk,
		FactorResource:   ResourceRisk,
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assessment is the scored view of one project.
type Assessment struct {
	ProjectID     string             `json:"project_id"`
	Score         float64            `json:"score"`
	Tier          Tier               `json:"tier"`
	Contributions map[Factor]float64 `json:"contributions"`
}

// Assess scores p and keeps each factor's weighted contribution.
func (s *Scorer) Assess(p record.ProjectRecord) Assessment {
	contributions := make(map[Factor]float64, len(Factors))
	total := 0.0
	for _, f := range Factors {
		c := Weight(f) * clamp(s.subScores[f](p))
		contributions[f] = c
		total += c
	}
	score := clamp(total)
	return Assessment{
		ProjectID:     p.ID,
		Score:         score,
		Tier:          Classify(score),
		Contributions: contributions,
	}
}

// Score returns the weighted risk score of p in [0,100].
func (s *Scorer) Score(p record.ProjectRecord) float64 {
	return s.Assess(p).Score
}

// Classify maps a score to its tier.
func Classify(score float64) Tier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Distribution holds tier counts and the assessments in each tier.
type Distribution struct {
	High   int                   `json:"high"`
	Medium int                   `json:"medium"`
	Low    int                   `json:"low"`
	Groups map[Tier][]Assessment `json:"groups"`
}

// Count returns the number of projects in tier t.
func (d Distribution) Count(t Tier) int {
	switch t {
	case TierHigh:
		return d.High
	case TierMedium:
		return d.Medium
	default:
		return d.Low
	}
}

// Distribution assesses every project and groups them by tier, keeping
// input order inside each group.
func (s *Scorer) Distribution(projects []record.ProjectRecord) Distribution {
	d := Distribution{Groups: map[Tier][]Assessment{
		TierHigh:   {},
		TierMedium: {},
		TierLow:    {},
	}}
	for _, p := range projects {
		a := s.Assess(p)
		d.Groups[a.Tier] = append(d.Groups[a.Tier], a)
	}
	d.High = len(d.Groups[TierHigh])
	d.Medium = len(d.Groups[TierMedium])
	d.Low = len(d.Groups[TierLow])
	return d
}

// FactorContribution is one factor's aggregate share of total risk.
type FactorContribution struct {
	Factor       Factor  `json:"factor"`
	Contribution float64 `json:"contribution"`
	Share        float64 `json:"share"`
}

// TopFactors ranks factors by summed weighted contribution, highest
// first, ties broken by factor name. Share is the percentage of the total
// and is zero when no project carries any risk.
func TopFactors(assessments []Assessment) []FactorContribution {
	sums := make(map[Factor]float64, len(Factors))
	total := 0.0
	for _, a := range assessments {
		for f, c := range a.Contributions {
			sums[f] += c
			total += c
		}
	}
	out := make([]FactorContribution, 0, len(Factors))
	for _, f := range Factors {
		fc := FactorContribution{Factor: f, Contribution: sums[f]}
		if total > 0 {
			fc.Share = sums[f] / total * 100
		}
		out = append(out, fc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Factor < out[j].Factor
	})
	return out
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
