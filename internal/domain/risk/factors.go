package risk

import "github.com/rpggio/opsdash/internal/domain/record"

// Default sub-score strategies. Each is directional only and bounded to
// 0-100 by the scorer; callers with authoritative formulas replace them
// through WithSubScore.

const (
	// slipDaysForMaxRisk is the delivery slip that saturates timeline risk.
	slipDaysForMaxRisk = 60.0
	// overrunPctForMaxRisk is the cost overrun that saturates budget risk.
	overrunPctForMaxRisk = 50.0
	maxComplexity        = 10.0
	dependencyStep       = 10.0
	// overloadPctForMaxRisk is the hours overrun that saturates resource risk.
	overloadPctForMaxRisk = 50.0
)

// TimelineRisk grows with delivery slip past the planned date.
func TimelineRisk(p record.ProjectRecord) float64 {
	if p.DeliveryDate.IsZero() || p.PlannedDeliveryDate.IsZero() {
		return 0
	}
	slip := record.DaysBetween(p.PlannedDeliveryDate, p.DeliveryDate)
	if slip <= 0 {
		return 0
	}
	return slip / slipDaysForMaxRisk * 100
}

// BudgetRisk grows with actual cost above plan.
func BudgetRisk(p record.ProjectRecord) float64 {
	if p.PlannedBudget <= 0 {
		if p.ActualCost > 0 {
			return 100
		}
		return 0
	}
	overrun := (p.ActualCost - p.PlannedBudget) / p.PlannedBudget * 100
	if overrun <= 0 {
		return 0
	}
	return overrun / overrunPctForMaxRisk * 100
}

// ComplexityRisk scales the 0-10 complexity rating.
func ComplexityRisk(p record.ProjectRecord) float64 {
	return p.Complexity / maxComplexity * 100
}

// DependencyRisk adds a fixed step per upstream dependency.
func DependencyRisk(p record.ProjectRecord) float64 {
	return float64(p.Dependencies) * dependencyStep
}

// ResourceRisk grows with actual hours above allocation.
func ResourceRisk(p record.ProjectRecord) float64 {
	if p.AllocatedHours <= 0 {
		return 0
	}
	overload := (p.ActualHours - p.AllocatedHours) / p.AllocatedHours * 100
	if overload <= 0 {
		return 0
	}
	return overload / overloadPctForMaxRisk * 100
}
