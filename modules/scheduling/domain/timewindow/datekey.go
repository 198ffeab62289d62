// Package timewindow holds the calendar-date and time-window rules used by
// scheduling: date keys, clock-in/out validation and interval intersection.
package timewindow

import (
	"strings"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey is a calendar date in YYYY-MM-DD form.
type DateKey string

func (k DateKey) String() string { return string(k) }

// Time returns midnight UTC of the date.
func (k DateKey) Time() (time.Time, bool) {
	t, err := time.Parse(dateKeyLayout, string(k))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	dateKeyLayout,
}

// ParseTimestamp accepts the ISO-8601 shapes the clients send. Values without
// an offset are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractDateKey returns the calendar date of a timestamp-like value: a string,
// a DateKey, a time.Time or a *time.Time. The date is taken in the value's own
// offset, so "2025-03-10T23:30:00-05:00" yields 2025-03-10. Empty or
// unparseable input yields ok=false; it never panics.
func ExtractDateKey(value any) (DateKey, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case DateKey:
		return ExtractDateKey(string(v))
	case string:
		t, ok := ParseTimestamp(v)
		if !ok {
			return "", false
		}
		return DateKey(t.Format(dateKeyLayout)), true
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		return DateKey(v.Format(dateKeyLayout)), true
	case *time.Time:
		if v == nil {
			return "", false
		}
		return ExtractDateKey(*v)
	default:
		return "", false
	}
}

// AddDays returns the date n days after key. The arithmetic runs on UTC
// midnights so daylight-saving changes cannot shift the result.
func AddDays(key DateKey, n int) (DateKey, bool) {
	t, ok := key.Time()
	if !ok {
		return "", false
	}
	return DateKey(t.AddDate(0, 0, n).Format(dateKeyLayout)), true
}
