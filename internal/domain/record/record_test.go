package record_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate_AcceptedFormats(t *testing.T) {
	want := date(2024, time.March, 5)
	for _, in := range []string{
		"2024-03-05",
		"2024-03-05T00:00:00Z",
		"2024-03-05 00:00:00",
		"03/05/2024",
		"2024/03/05",
		"05-Mar-2024",
		"45356",
	} {
		got, err := record.ParseDate(in)
		require.NoError(t, err, in)
		require.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}
}

func TestParseDate_Rejects(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024-13-45", "-3"} {
		_, err := record.ParseDate(in)
		require.ErrorIs(t, err, record.ErrDateFormat, in)
	}
}

func TestParseDateValue_Serial(t *testing.T) {
	got, err := record.ParseDateValue(float64(45356.5))
	require.NoError(t, err)
	require.Equal(t, date(2024, time.March, 5).Add(12*time.Hour), got)
}

func TestDateRange(t *testing.T) {
	_, err := record.NewDateRange(date(2024, 2, 1), date(2024, 1, 1))
	require.ErrorIs(t, err, record.ErrInvalidRange)

	r, err := record.NewDateRange(date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	require.True(t, r.Contains(date(2024, 1, 1)))
	require.True(t, r.Contains(date(2024, 1, 31).Add(23*time.Hour)))
	require.False(t, r.Contains(date(2024, 2, 1)))
	require.False(t, r.Contains(date(2023, 12, 31).Add(23*time.Hour)))
	require.False(t, r.Contains(time.Time{}))

	sameDay, err := record.NewDateRange(date(2024, 1, 5).Add(18*time.Hour), date(2024, 1, 5))
	require.NoError(t, err)
	require.True(t, sameDay.Contains(date(2024, 1, 5).Add(time.Hour)))
}

func TestValidate_CollectsPerRecordReasons(t *testing.T) {
	projects := []record.ProjectRecord{
		{ID: "p1", Name: "Alpha", StartDate: date(2024, 1, 1), Status: "Active", Region: "EMEA"},
		{ID: "p2", StartDate: date(2024, 1, 1), Status: "Active"},
		{Name: "Gamma", Region: "APAC"},
	}
	issues := []record.IssueRecord{{ID: "i1", Status: "Open"}}

	verr := record.Validate(projects, issues)
	require.Len(t, verr.Issues, 3)
	require.Equal(t, "p2", verr.Issues[0].ID)
	require.ElementsMatch(t, []string{"missing name", "missing region"}, verr.Issues[0].Reasons)
	require.ElementsMatch(t, []string{"missing id", "missing startDate", "missing status"}, verr.Issues[1].Reasons)
	require.Equal(t, record.KindIssue, verr.Issues[2].Kind)
	require.Equal(t, []string{"missing date"}, verr.Issues[2].Reasons)

	err := verr.OrNil()
	require.True(t, errors.Is(err, record.ErrValidation))
	var target *record.ValidationError
	require.True(t, errors.As(err, &target))
	require.Equal(t, map[int]bool{1: true, 2: true}, target.Rejected(record.KindProject))
}

func TestValidateProject_CompletionDateMatchesStatus(t *testing.T) {
	done := date(2024, 2, 1)
	base := record.ProjectRecord{ID: "p1", Name: "Alpha", StartDate: date(2024, 1, 1), Region: "EMEA"}

	completed := base
	completed.Status = record.StatusCompleted
	require.Equal(t, []string{"completionDate required for Completed status"}, record.ValidateProject(completed))

	completed.CompletionDate = &done
	require.Empty(t, record.ValidateProject(completed))

	active := base
	active.Status = record.StatusActive
	active.CompletionDate = &done
	require.Equal(t, []string{"completionDate set for Active status"}, record.ValidateProject(active))
}

func TestValidationError_MergeKeepsOneEntryPerRecord(t *testing.T) {
	verr := &record.ValidationError{}
	verr.Add(record.KindProject, 0, "p1", []string{"missing name"})

	other := &record.ValidationError{}
	other.Add(record.KindProject, 0, "p1", []string{"qualityScore: not a number"})
	other.Add(record.KindIssue, 0, "i1", []string{"date: unrecognised date format"})
	verr.Merge(other)
	verr.Merge(nil)

	require.Len(t, verr.Issues, 2)
	require.Equal(t, []string{"missing name", "qualityScore: not a number"}, verr.Issues[0].Reasons)
	require.Equal(t, record.KindIssue, verr.Issues[1].Kind)
	require.Len(t, other.Issues[0].Reasons, 1)
}

func TestValidate_NoIssuesIsNil(t *testing.T) {
	verr := record.Validate(nil, nil)
	require.NoError(t, verr.OrNil())
}

func TestParseProjects_LooseHeaders(t *testing.T) {
	rows := []record.Row{
		{
			"Project ID":            "P-1",
			"Project Name":          "Bridge",
			"Status":                "Completed",
			"Type":                  "Infra",
			"region":                "EMEA",
			"start_date":            "2024-01-01",
			"Completion Date":       "2024-01-11",
			"Delivery Date":         "01/12/2024",
			"Planned-Delivery-Date": "2024-01-15",
			"Planned Budget":        "$1,000",
			"Actual Cost":           1200.5,
			"Quality Score":         "92",
			"Date":                  float64(45292),
			"Dependencies":          "3",
		},
	}
	projects, verr := record.ParseProjects(rows)
	require.NoError(t, verr.OrNil())
	require.Len(t, projects, 1)

	p := projects[0]
	require.Equal(t, "P-1", p.ID)
	require.Equal(t, "Bridge", p.Name)
	require.Equal(t, date(2024, 1, 1), p.StartDate)
	require.NotNil(t, p.CompletionDate)
	require.Equal(t, date(2024, 1, 11), *p.CompletionDate)
	require.Equal(t, date(2024, 1, 12), p.DeliveryDate)
	require.Equal(t, 1000.0, p.PlannedBudget)
	require.Equal(t, 1200.5, p.ActualCost)
	require.Equal(t, 92.0, p.QualityScore)
	require.Equal(t, date(2024, 1, 1), p.Date)
	require.Equal(t, 3, p.Dependencies)

	days, ok := p.TurnaroundDays()
	require.True(t, ok)
	require.Equal(t, 10.0, days)
	require.True(t, p.DeliveredOnTime())
}

func TestParseProjects_ReportsBadValues(t *testing.T) {
	rows := []record.Row{
		{"ID": "P-1", "Name": "x", "Start Date": "soon", "Planned Budget": "lots"},
	}
	projects, verr := record.ParseProjects(rows)
	require.Len(t, projects, 1)
	require.Len(t, verr.Issues, 1)
	require.Len(t, verr.Issues[0].Reasons, 2)
	require.True(t, projects[0].StartDate.IsZero())
}

func TestParseIssues(t *testing.T) {
	rows := []record.Row{
		{"Issue ID": "I-1", "Date": "2024-02-01", "Severity": "High", "Type": "Defect", "Status": "Open"},
		{"Issue ID": "I-2", "Date": "2024-02-03", "Severity": "Low", "Category": "Compliance", "Status": "Closed", "Resolved Date": "2024-02-04"},
	}
	issues, verr := record.ParseIssues(rows)
	require.NoError(t, verr.OrNil())
	require.Len(t, issues, 2)
	require.Equal(t, "Defect", issues[0].Category)
	require.True(t, issues[0].IsOpen())
	require.False(t, issues[1].IsOpen())
}
