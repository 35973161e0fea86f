package store

import (
	"strings"

	"github.com/rpggio/opsdash/internal/domain/record"
)

// Standard filter keys.
const (
	KeyDateRange = "dateRange"
	KeyStatus    = "status"
	KeyRegion    = "region"
)

// Predicate decides whether a record is visible.
type Predicate func(r record.Filterable) bool

// FilterSet is an ordered collection of predicates keyed by name. A record
// passes when every registered predicate accepts it.
type FilterSet struct {
	keys  []string
	preds map[string]Predicate
}

// NewFilterSet creates an empty filter set.
func NewFilterSet() *FilterSet {
	return &FilterSet{preds: make(map[string]Predicate)}
}

// Set registers p under key. Re-registering a key replaces its predicate
// and keeps its original position.
func (f *FilterSet) Set(key string, p Predicate) {
	if p == nil {
		f.Remove(key)
		return
	}
	if f.preds == nil {
		f.preds = make(map[string]Predicate)
	}
	if _, ok := f.preds[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.preds[key] = p
}

// Remove drops the predicate under key. Unknown keys are ignored.
func (f *FilterSet) Remove(key string) {
	if _, ok := f.preds[key]; !ok {
		return
	}
	delete(f.preds, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the registered keys in registration order.
func (f *FilterSet) Keys() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.keys...)
}

// Len returns the number of registered predicates.
func (f *FilterSet) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Match applies every predicate in registration order.
func (f *FilterSet) Match(r record.Filterable) bool {
	if f == nil {
		return true
	}
	for _, k := range f.keys {
		if !f.preds[k](r) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (f *FilterSet) Clone() *FilterSet {
	out := NewFilterSet()
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		out.Set(k, f.preds[k])
	}
	return out
}

// DateRangeFilter accepts records whose filter date is inside r.
func DateRangeFilter(r record.DateRange) Predicate {
	return func(rec record.Filterable) bool {
		return r.Contains(rec.FilterDate())
	}
}

// StatusFilter accepts records whose status is one of statuses, compared
// case-insensitively.
func StatusFilter(statuses ...string) Predicate {
	allowed := toSet(statuses)
	return func(rec record.Filterable) bool {
		return allowed[strings.ToLower(strings.TrimSpace(rec.FilterStatus()))]
	}
}

// RegionFilter accepts records in one of regions. Records that carry no
// region, such as most issues, are not excluded.
func RegionFilter(regions ...string) Predicate {
	allowed := toSet(regions)
	return func(rec record.Filterable) bool {
		region := strings.ToLower(strings.TrimSpace(rec.FilterRegion()))
		if region == "" {
			return true
		}
		return allowed[region]
	}
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out[v] = true
		}
	}
	return out
}
