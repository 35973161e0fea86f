package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// ErrUndefinedMetric indicates a ratio or mean over zero eligible records.
var ErrUndefinedMetric = errors.New("metric undefined")

// Value is a derived number that may be undefined. Undefined values
// marshal to JSON null so they stay distinguishable from a real zero.
type Value struct {
	V       float64
	Defined bool
}

// Of wraps a defined number. NaN and infinities become undefined.
func Of(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Defined: true}
}

// Undefined returns the not-available marker.
func Undefined() Value { return Value{} }

// Float returns the number or ErrUndefinedMetric.
func (v Value) Float() (float64, error) {
	if !v.Defined {
		return 0, ErrUndefinedMetric
	}
	return v.V, nil
}

// Or returns the number, or def when undefined.
func (v Value) Or(def float64) float64 {
	if !v.Defined {
		return def
	}
	return v.V
}

func (v Value) String() string {
	if !v.Defined {
		return "n/a"
	}
	return strconv.FormatFloat(v.V, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}

// Ratio divides num by den, undefined when den is zero.
func Ratio(num, den float64) Value {
	if den == 0 {
		return Value{}
	}
	return Of(num / den)
}

// Percent is Ratio scaled to 0-100.
func Percent(num, den float64) Value {
	if den == 0 {
		return Value{}
	}
	return Of(num / den * 100)
}

// Mean is the arithmetic mean, undefined for no values.
func Mean(values []float64) Value {
	if len(values) == 0 {
		return Value{}
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return Of(sum / float64(len(values)))
}

// MeanOf averages values as one composite, undefined when any component
// is undefined.
func MeanOf(values ...Value) Value {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if !v.Defined {
			return Value{}
		}
		nums = append(nums, v.V)
	}
	return Mean(nums)
}
