package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/record"
	"github.com/rpggio/opsdash/internal/domain/store"
)

// FilterSpec is the wire form of a built-in filter. Date ranges use Start
// and End; status and region filters use Values.
type FilterSpec struct {
	Start  string   `json:"start,omitempty"`
	End    string   `json:"end,omitempty"`
	Values []string `json:"values,omitempty"`
}

// ApplyFilter builds the built-in predicate for key from spec and
// registers it.
func (c *Controller) ApplyFilter(ctx context.Context, key string, spec FilterSpec) (*metrics.Bundle, error) {
	switch key {
	case store.KeyDateRange:
		start, err := record.ParseDate(spec.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: start: %w", ErrInvalidInput, err)
		}
		end, err := record.ParseDate(spec.End)
		if err != nil {
			return nil, fmt.Errorf("%w: end: %w", ErrInvalidInput, err)
		}
		r, err := record.NewDateRange(start, end)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return c.SetDateRange(ctx, r)
	case store.KeyStatus, store.KeyRegion:
		values := nonBlank(spec.Values)
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %s filter needs at least one value", ErrInvalidInput, key)
		}
		if key == store.KeyStatus {
			return c.SetFilter(ctx, key, store.StatusFilter(values...))
		}
		return c.SetFilter(ctx, key, store.RegionFilter(values...))
	}
	return nil, fmt.Errorf("%w: unknown filter %q", ErrInvalidInput, key)
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
