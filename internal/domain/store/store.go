// Package store holds the raw record collections of a session and applies
// filter sets to them.
package store

import (
	"sync"

	"github.com/rpggio/opsdash/internal/domain/record"
)

// RecordStore owns the raw project and issue records. Loads replace the
// whole state; readers always see one complete generation.
type RecordStore struct {
	mu       sync.RWMutex
	projects []record.ProjectRecord
	issues   []record.IssueRecord
	rejected *record.ValidationError
	gen      uint64
}

// New creates an empty store.
func New() *RecordStore {
	return &RecordStore{}
}

// Load replaces both collections. Records missing a required field are
// kept out of every filtered view and reported in the returned
// *record.ValidationError; whether that is fatal is the caller's call.
func (s *RecordStore) Load(projects []record.ProjectRecord, issues []record.IssueRecord) error {
	return s.LoadParsed(projects, issues, nil)
}

// LoadParsed is Load for records that came out of record.ParseProjects
// and record.ParseIssues. Records with values that failed to parse are
// rejected along with the malformed ones.
func (s *RecordStore) LoadParsed(projects []record.ProjectRecord, issues []record.IssueRecord, parsed *record.ValidationError) error {
	verr := record.Validate(projects, issues)
	verr.Merge(parsed)

	rejectedProjects := verr.Rejected(record.KindProject)
	keptProjects := make([]record.ProjectRecord, 0, len(projects))
	for i, p := range projects {
		if !rejectedProjects[i] {
			keptProjects = append(keptProjects, p)
		}
	}
	rejectedIssues := verr.Rejected(record.KindIssue)
	keptIssues := make([]record.IssueRecord, 0, len(issues))
	for i, issue := range issues {
		if !rejectedIssues[i] {
			keptIssues = append(keptIssues, issue)
		}
	}

	s.mu.Lock()
	s.projects = keptProjects
	s.issues = keptIssues
	s.rejected = verr
	s.gen++
	s.mu.Unlock()

	return verr.OrNil()
}

// Projects returns the visible projects passing fs, in source order.
func (s *RecordStore) Projects(fs *FilterSet) []record.ProjectRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.projects, fs)
}

// Issues returns the visible issues passing fs, in source order.
func (s *RecordStore) Issues(fs *FilterSet) []record.IssueRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.issues, fs)
}

// Snapshot is a consistent filtered view of both collections.
type Snapshot struct {
	Projects   []record.ProjectRecord
	Issues     []record.IssueRecord
	Generation uint64
	Rejected   int
}

// Snapshot filters both collections under one read lock so the views
// always come from the same load.
func (s *RecordStore) Snapshot(fs *FilterSet) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Projects:   filter(s.projects, fs),
		Issues:     filter(s.issues, fs),
		Generation: s.gen,
	}
	if s.rejected != nil {
		snap.Rejected = len(s.rejected.Issues)
	}
	return snap
}

// Loaded reports whether any load has happened.
func (s *RecordStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen > 0
}

func filter[T record.Filterable](in []T, fs *FilterSet) []T {
	out := make([]T, 0, len(in))
	for _, r := range in {
		if fs.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
