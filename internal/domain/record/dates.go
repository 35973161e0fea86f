package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts is the full set of textual date formats accepted from reports.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
	"02-Jan-2006",
}

// serialEpoch is day zero of spreadsheet serial dates.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const maxSerialDay = 2958466 // 9999-12-31

// ParseDate parses a textual date in one of the accepted layouts or a
// spreadsheet serial day number. Results are in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrDateFormat)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return FromSerial(serial)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, s)
}

// ParseDateValue accepts the value types decoders produce for date cells.
func ParseDateValue(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case *time.Time:
		if val == nil {
			return time.Time{}, fmt.Errorf("%w: empty value", ErrDateFormat)
		}
		return val.UTC(), nil
	case float64:
		return FromSerial(val)
	case int:
		return FromSerial(float64(val))
	case int64:
		return FromSerial(float64(val))
	case string:
		return ParseDate(val)
	case nil:
		return time.Time{}, fmt.Errorf("%w: empty value", ErrDateFormat)
	default:
		return ParseDate(fmt.Sprint(val))
	}
}

// FromSerial converts a spreadsheet serial day number into a UTC time.
func FromSerial(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial <= 0 || serial >= maxSerialDay {
		return time.Time{}, fmt.Errorf("%w: serial %v out of range", ErrDateFormat, serial)
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return serialEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), nil
}

// Day truncates t to its calendar day, keeping the calendar date t shows.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the whole-day difference to - from.
func DaysBetween(from, to time.Time) float64 {
	return math.Round(Day(to).Sub(Day(from)).Hours() / 24)
}
