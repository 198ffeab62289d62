package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractDateKey(t *testing.T) {
	ts := time.Date(2025, 3, 10, 22, 15, 0, 0, time.UTC)
	cases := []struct {
		name  string
		input any
		want  DateKey
		ok    bool
	}{
		{"rfc3339", "2025-03-10T09:00:00Z", "2025-03-10", true},
		{"rfc3339 with millis", "2025-03-10T09:00:00.000Z", "2025-03-10", true},
		{"offset keeps local date", "2025-03-10T23:30:00-05:00", "2025-03-10", true},
		{"no zone", "2025-03-10T09:00:00", "2025-03-10", true},
		{"date only", "2025-03-10", "2025-03-10", true},
		{"surrounding spaces", "  2025-03-10 ", "2025-03-10", true},
		{"time value", ts, "2025-03-10", true},
		{"time pointer", &ts, "2025-03-10", true},
		{"date key", DateKey("2025-03-10"), "2025-03-10", true},
		{"empty", "", "", false},
		{"garbage", "not a date", "", false},
		{"impossible date", "2025-02-30", "", false},
		{"nil", nil, "", false},
		{"nil pointer", (*time.Time)(nil), "", false},
		{"zero time", time.Time{}, "", false},
		{"unsupported type", 42, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractDateKey(tc.input)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractDateKey_Idempotent(t *testing.T) {
	inputs := []string{
		"2025-03-10T09:00:00Z",
		"2024-02-29T23:59:59.999Z",
		"2025-12-31T00:00:00+09:00",
		"2025-11-02T01:30:00-04:00",
		"2025-03-30T02:30:00",
	}
	for _, in := range inputs {
		first, ok := ExtractDateKey(in)
		require.True(t, ok, in)
		again, ok := ExtractDateKey(string(first) + "T00:00:00")
		require.True(t, ok, in)
		require.Equal(t, first, again, in)
	}
}

func TestAddDays(t *testing.T) {
	cases := []struct {
		key  DateKey
		n    int
		want DateKey
		ok   bool
	}{
		{"2025-03-12", 1, "2025-03-13", true},
		{"2025-02-28", 1, "2025-03-01", true},
		{"2024-02-28", 1, "2024-02-29", true},
		{"2025-12-31", 1, "2026-01-01", true},
		{"2025-03-01", -1, "2025-02-28", true},
		// US and EU daylight-saving switch days
		{"2025-03-09", 1, "2025-03-10", true},
		{"2025-10-26", 1, "2025-10-27", true},
		{"2025-03-10", 0, "2025-03-10", true},
		{"bad", 1, "", false},
		{"", 1, "", false},
	}
	for _, tc := range cases {
		got, ok := AddDays(tc.key, tc.n)
		require.Equal(t, tc.ok, ok, tc.key)
		require.Equal(t, tc.want, got, tc.key)
	}
}

func TestValidateClockOut_JobWindow(t *testing.T) {
	start, end := "2025-03-10T07:00:00Z", "2025-03-12T17:00:00Z"
	valid := []string{"2025-03-10T18:00:00Z", "2025-03-12T18:00:00Z", "2025-03-13T02:00:00Z"}
	invalid := []string{"2025-03-09T18:00:00Z", "2025-03-14T01:00:00Z", "", "garbage"}

	for _, v := range valid {
		require.True(t, ValidateClockOut(v, start, end), v)
	}
	for _, v := range invalid {
		require.False(t, ValidateClockOut(v, start, end), v)
	}
}

func TestValidateClockOut_MissingEnd(t *testing.T) {
	require.True(t, ValidateClockOut("2025-03-10T18:00:00Z", "2025-03-10", nil))
	require.False(t, ValidateClockOut("2025-03-11T18:00:00Z", "2025-03-10", nil))
}

func TestValidateClockIn(t *testing.T) {
	start, end := "2025-03-10T07:00:00Z", "2025-03-12T17:00:00Z"

	require.True(t, ValidateClockIn("2025-03-10T06:55:00Z", start))
	require.False(t, ValidateClockIn("2025-03-12T06:55:00Z", start))
	require.False(t, ValidateClockIn("", start))
	require.False(t, ValidateClockIn("2025-03-10T06:55:00Z", ""))

	t.Run("start_or_end accepts the end date", func(t *testing.T) {
		require.True(t, ClockInStartOrEnd.ValidateClockIn("2025-03-12T06:55:00Z", start, end))
		require.True(t, ClockInStartOrEnd.ValidateClockIn("2025-03-10T06:55:00Z", start, end))
		require.False(t, ClockInStartOrEnd.ValidateClockIn("2025-03-11T06:55:00Z", start, end))
	})

	t.Run("start_only ignores the end date", func(t *testing.T) {
		require.False(t, ClockInStartOnly.ValidateClockIn("2025-03-12T06:55:00Z", start, end))
	})
}

func TestParseClockInPolicy(t *testing.T) {
	p, err := ParseClockInPolicy("")
	require.NoError(t, err)
	require.Equal(t, ClockInStartOnly, p)

	p, err = ParseClockInPolicy(" START_OR_END ")
	require.NoError(t, err)
	require.Equal(t, ClockInStartOrEnd, p)

	_, err = ParseClockInPolicy("whenever")
	require.Error(t, err)
}

func TestWindow_Intersects(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC) }
	booked := Window{Start: at(9, 0), End: at(12, 0)}

	cases := []struct {
		name string
		cand Window
		want bool
	}{
		{"touching end boundary", Window{at(12, 0), at(15, 0)}, false},
		{"touching start boundary", Window{at(6, 0), at(9, 0)}, false},
		{"one minute overlap", Window{at(11, 59), at(15, 0)}, true},
		{"contained", Window{at(10, 0), at(11, 0)}, true},
		{"containing", Window{at(8, 0), at(13, 0)}, true},
		{"identical", booked, true},
		{"disjoint", Window{at(13, 0), at(14, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, booked.Intersects(tc.cand))
			require.Equal(t, tc.want, tc.cand.Intersects(booked), "intersection must be symmetric")
			want := booked.Start.Before(tc.cand.End) && tc.cand.Start.Before(booked.End)
			require.Equal(t, want, Intersects(booked, tc.cand))
		})
	}
}

func TestNewWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := NewWindow(start, start)
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewWindow(start, start.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidWindow)

	w, err := NewWindow(start, start.Add(3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3*time.Hour, w.Duration())
}
