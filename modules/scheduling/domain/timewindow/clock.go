package timewindow

import (
	"fmt"
	"strings"
)

// ClockInPolicy decides which job dates a clock-in may fall on.
type ClockInPolicy string

const (
	ClockInStartOnly  ClockInPolicy = "start_only"
	ClockInStartOrEnd ClockInPolicy = "start_or_end"
)

func ParseClockInPolicy(raw string) (ClockInPolicy, error) {
	switch p := ClockInPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return ClockInStartOnly, nil
	case ClockInStartOnly, ClockInStartOrEnd:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported clock-in policy: %q", raw)
	}
}

// ValidateClockIn reports whether clockIn falls on the job start date.
func ValidateClockIn(clockIn, jobStart any) bool {
	return ClockInStartOnly.ValidateClockIn(clockIn, jobStart, nil)
}

// ValidateClockIn applies the policy. jobEnd is only consulted by
// ClockInStartOrEnd.
func (p ClockInPolicy) ValidateClockIn(clockIn, jobStart, jobEnd any) bool {
	in, ok := ExtractDateKey(clockIn)
	if !ok {
		return false
	}
	if start, ok := ExtractDateKey(jobStart); ok && in == start {
		return true
	}
	if p == ClockInStartOrEnd {
		if end, ok := ExtractDateKey(jobEnd); ok && in == end {
			return true
		}
	}
	return false
}

// ValidateClockOut passes when the clock-out date is the job start date, the
// job end date, or the day after the end date (overnight shifts).
func ValidateClockOut(clockOut, jobStart, jobEnd any) bool {
	out, ok := ExtractDateKey(clockOut)
	if !ok {
		return false
	}
	if start, ok := ExtractDateKey(jobStart); ok && out == start {
		return true
	}
	end, ok := ExtractDateKey(jobEnd)
	if !ok {
		return false
	}
	if out == end {
		return true
	}
	next, ok := AddDays(end, 1)
	return ok && out == next
}
