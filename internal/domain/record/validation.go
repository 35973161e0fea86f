package record

import "strings"

// ValidateProject returns the reasons a project record is malformed.
func ValidateProject(p ProjectRecord) []string {
	var reasons []string
	if strings.TrimSpace(p.ID) == "" {
		reasons = append(reasons, "missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		reasons = append(reasons, "missing name")
	}
	if p.StartDate.IsZero() {
		reasons = append(reasons, "missing startDate")
	}
	if strings.TrimSpace(p.Status) == "" {
		reasons = append(reasons, "missing status")
	}
	if strings.TrimSpace(p.Region) == "" {
		reasons = append(reasons, "missing region")
	}
	if p.PlannedBudget < 0 {
		reasons = append(reasons, "negative plannedBudget")
	}
	if p.ActualCost < 0 {
		reasons = append(reasons, "negative actualCost")
	}
	if p.QualityScore < 0 || p.QualityScore > 100 {
		reasons = append(reasons, "qualityScore outside 0-100")
	}
	switch {
	case p.IsCompleted() && p.CompletionDate == nil:
		reasons = append(reasons, "completionDate required for Completed status")
	case !p.IsCompleted() && p.CompletionDate != nil:
		reasons = append(reasons, "completionDate set for "+p.Status+" status")
	}
	return reasons
}

// ValidateIssue returns the reasons an issue record is malformed.
func ValidateIssue(i IssueRecord) []string {
	var reasons []string
	if strings.TrimSpace(i.ID) == "" {
		reasons = append(reasons, "missing id")
	}
	if i.Date.IsZero() {
		reasons = append(reasons, "missing date")
	}
	if strings.TrimSpace(i.Status) == "" {
		reasons = append(reasons, "missing status")
	}
	return reasons
}

// Validate checks both collections and collects every rejected record.
func Validate(projects []ProjectRecord, issues []IssueRecord) *ValidationError {
	verr := &ValidationError{}
	for i, p := range projects {
		verr.Add(KindProject, i, p.ID, ValidateProject(p))
	}
	for i, issue := range issues {
		verr.Add(KindIssue, i, issue.ID, ValidateIssue(issue))
	}
	return verr
}
