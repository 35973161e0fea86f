package record

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates one or more records are malformed.
	ErrValidation = errors.New("invalid records")
	// ErrInvalidRange indicates a date range with start after end.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrDateFormat indicates a date value in none of the accepted formats.
	ErrDateFormat = errors.New("unrecognised date format")
)

// RecordIssue lists why a single record was rejected.
type RecordIssue struct {
	Kind    Kind     `json:"kind"`
	Index   int      `json:"index"`
	ID      string   `json:"id,omitempty"`
	Reasons []string `json:"reasons"`
}

// ValidationError collects every rejected record of a batch.
type ValidationError struct {
	Issues []RecordIssue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		issue := e.Issues[0]
		return fmt.Sprintf("invalid %s record %d: %s", issue.Kind, issue.Index, strings.Join(issue.Reasons, "; "))
	}
	return fmt.Sprintf("%d invalid records", len(e.Issues))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records a rejected record. Empty reason lists are ignored; reasons
// for a record already collected are appended to its entry.
func (e *ValidationError) Add(kind Kind, index int, id string, reasons []string) {
	if len(reasons) == 0 {
		return
	}
	for i := range e.Issues {
		if e.Issues[i].Kind == kind && e.Issues[i].Index == index {
			e.Issues[i].Reasons = append(e.Issues[i].Reasons, reasons...)
			return
		}
	}
	e.Issues = append(e.Issues, RecordIssue{Kind: kind, Index: index, ID: id, Reasons: append([]string(nil), reasons...)})
}

// Merge adds the issues of other, one entry per record.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, issue := range other.Issues {
		e.Add(issue.Kind, issue.Index, issue.ID, issue.Reasons)
	}
}

// Rejected reports the set of rejected record indexes of the given kind.
func (e *ValidationError) Rejected(kind Kind) map[int]bool {
	out := make(map[int]bool)
	if e == nil {
		return out
	}
	for _, issue := range e.Issues {
		if issue.Kind == kind {
			out[issue.Index] = true
		}
	}
	return out
}

// OrNil returns nil when nothing was collected so callers can return it
// as an error without the typed-nil trap.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
