package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var projectColumns = map[string]string{
	"id":                  "id",
	"projectid":           "id",
	"name":                "name",
	"projectname":         "name",
	"status":              "status",
	"type":                "type",
	"projecttype":         "type",
	"region":              "region",
	"startdate":           "startDate",
	"completiondate":      "completionDate",
	"deliverydate":        "deliveryDate",
	"actualdeliverydate":  "deliveryDate",
	"planneddeliverydate": "plannedDeliveryDate",
	"plannedbudget":       "plannedBudget",
	"budget":              "plannedBudget",
	"actualcost":          "actualCost",
	"cost":                "actualCost",
	"qualityscore":        "qualityScore",
	"quality":             "qualityScore",
	"date":                "date",
	"reportdate":          "date",
	"complexity":          "complexity",
	"dependencies":        "dependencies",
	"allocatedhours":      "allocatedHours",
	"actualhours":         "actualHours",
}

var issueColumns = map[string]string{
	"id":           "id",
	"issueid":      "id",
	"projectid":    "projectId",
	"date":         "date",
	"reporteddate": "date",
	"createddate":  "date",
	"severity":     "severity",
	"category":     "category",
	"type":         "category",
	"status":       "status",
	"region":       "region",
	"resolveddate": "resolvedDate",
}

// ParseProjects maps decoded rows onto project records. Every row yields a
// record, in row order; values that cannot be parsed are left zero and
// reported in the returned ValidationError.
func ParseProjects(rows []Row) ([]ProjectRecord, *ValidationError) {
	verr := &ValidationError{}
	out := make([]ProjectRecord, 0, len(rows))
	for i, row := range rows {
		fields := canonical(row, projectColumns)
		var p ProjectRecord
		var reasons []string

		p.ID = text(fields["id"])
		p.Name = text(fields["name"])
		p.Status = text(fields["status"])
		p.Type = text(fields["type"])
		p.Region = text(fields["region"])

		p.StartDate = optionalDate(fields, "startDate", &reasons)
		p.DeliveryDate = optionalDate(fields, "deliveryDate", &reasons)
		p.PlannedDeliveryDate = optionalDate(fields, "plannedDeliveryDate", &reasons)
		p.Date = optionalDate(fields, "date", &reasons)
		if completed := optionalDate(fields, "completionDate", &reasons); !completed.IsZero() {
			p.CompletionDate = &completed
		}

		p.PlannedBudget = optionalNumber(fields, "plannedBudget", &reasons)
		p.ActualCost = optionalNumber(fields, "actualCost", &reasons)
		p.QualityScore = optionalNumber(fields, "qualityScore", &reasons)
		p.Complexity = optionalNumber(fields, "complexity", &reasons)
		p.Dependencies = int(optionalNumber(fields, "dependencies", &reasons))
		p.AllocatedHours = optionalNumber(fields, "allocatedHours", &reasons)
		p.ActualHours = optionalNumber(fields, "actualHours", &reasons)

		verr.Add(KindProject, i, p.ID, reasons)
		out = append(out, p)
	}
	return out, verr
}

// ParseIssues maps decoded rows onto issue records, same contract as
// ParseProjects.
func ParseIssues(rows []Row) ([]IssueRecord, *ValidationError) {
	verr := &ValidationError{}
	out := make([]IssueRecord, 0, len(rows))
	for i, row := range rows {
		fields := canonical(row, issueColumns)
		var issue IssueRecord
		var reasons []string

		issue.ID = text(fields["id"])
		issue.ProjectID = text(fields["projectId"])
		issue.Severity = text(fields["severity"])
		issue.Category = text(fields["category"])
		issue.Status = text(fields["status"])
		issue.Region = text(fields["region"])
		issue.Date = optionalDate(fields, "date", &reasons)
		if resolved := optionalDate(fields, "resolvedDate", &reasons); !resolved.IsZero() {
			issue.ResolvedDate = &resolved
		}

		verr.Add(KindIssue, i, issue.ID, reasons)
		out = append(out, issue)
	}
	return out, verr
}

func canonical(row Row, columns map[string]string) map[string]any {
	out := make(map[string]any, len(row))
	for header, value := range row {
		if field, ok := columns[normalizeKey(header)]; ok {
			if _, seen := out[field]; !seen || isBlank(out[field]) {
				out[field] = value
			}
		}
	}
	return out
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isBlank(v any) bool {
	return text(v) == ""
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func optionalDate(fields map[string]any, name string, reasons *[]string) time.Time {
	v, ok := fields[name]
	if !ok || isBlank(v) {
		return time.Time{}
	}
	t, err := ParseDateValue(v)
	if err != nil {
		*reasons = append(*reasons, fmt.Sprintf("%s: %v", name, err))
		return time.Time{}
	}
	return t
}

func optionalNumber(fields map[string]any, name string, reasons *[]string) float64 {
	v, ok := fields[name]
	if !ok || isBlank(v) {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '€', '£', '%', ' ':
			return -1
		}
		return r
	}, text(v))
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		*reasons = append(*reasons, fmt.Sprintf("%s: not a number: %q", name, text(v)))
		return 0
	}
	return n
}
