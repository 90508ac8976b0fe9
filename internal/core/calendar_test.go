package core

import (
	"testing"
	"time"
)

// Tests pin a fixed reference timezone so local-day bucketing is exercised
// against something other than UTC.
var testLoc = time.FixedZone("UTC+2", 2*60*60)

func TestStartOfMonth(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			in:   time.Date(2024, 3, 17, 15, 4, 5, 0, testLoc),
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc),
		},
		{
			name: "first of month keeps month",
			in:   time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc),
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc),
		},
		{
			name: "utc timestamp near local month boundary",
			// 2024-02-29 23:30 UTC is already March 1st at UTC+2.
			in:   time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, testLoc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StartOfMonth(tt.in, testLoc)
			if !got.Equal(tt.want) {
				t.Errorf("StartOfMonth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{
			name: "forward normalizes day to first",
			in:   time.Date(2024, 1, 31, 10, 0, 0, 0, testLoc),
			n:    1,
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, testLoc),
		},
		{
			name: "backward across year boundary",
			in:   time.Date(2024, 1, 15, 0, 0, 0, 0, testLoc),
			n:    -2,
			want: time.Date(2023, 11, 1, 0, 0, 0, 0, testLoc),
		},
		{
			name: "zero offset",
			in:   time.Date(2024, 6, 10, 0, 0, 0, 0, testLoc),
			n:    0,
			want: time.Date(2024, 6, 1, 0, 0, 0, 0, testLoc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonths(tt.in, tt.n, testLoc)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonths(%v, %d) = %v, want %v", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		want  int
	}{
		{"january", 2024, time.January, 31},
		{"february leap year", 2024, time.February, 29},
		{"february non leap", 2023, time.February, 28},
		{"february century non leap", 1900, time.February, 28},
		{"april", 2024, time.April, 30},
		{"december", 2024, time.December, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysInMonth(tt.year, tt.month); got != tt.want {
				t.Errorf("DaysInMonth(%d, %v) = %d, want %d", tt.year, tt.month, got, tt.want)
			}
		})
	}
}

func TestCountWeekdayInRange(t *testing.T) {
	// 2024-01-01 is a Monday.
	day := func(d int) time.Time {
		return time.Date(2024, 1, d, 0, 0, 0, 0, testLoc)
	}

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		weekday time.Weekday
		want    int
	}{
		{
			name:    "two mondays in fourteen days starting monday",
			start:   day(1),
			end:     day(14),
			weekday: time.Monday,
			want:    2,
		},
		{
			name:    "single day matching",
			start:   day(1),
			end:     day(1),
			weekday: time.Monday,
			want:    1,
		},
		{
			name:    "single day not matching",
			start:   day(1),
			end:     day(1),
			weekday: time.Tuesday,
			want:    0,
		},
		{
			name:    "inverted range",
			start:   day(10),
			end:     day(5),
			weekday: time.Monday,
			want:    0,
		},
		{
			name:    "full january mondays",
			start:   day(1),
			end:     day(31),
			weekday: time.Monday,
			want:    5,
		},
		{
			name:    "full january sundays",
			start:   day(1),
			end:     day(31),
			weekday: time.Sunday,
			want:    4,
		},
		{
			name:    "time of day is ignored",
			start:   time.Date(2024, 1, 1, 23, 59, 0, 0, testLoc),
			end:     time.Date(2024, 1, 14, 0, 1, 0, 0, testLoc),
			weekday: time.Monday,
			want:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountWeekdayInRange(tt.start, tt.end, tt.weekday, testLoc)
			if got != tt.want {
				t.Errorf("CountWeekdayInRange() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDayAndMonthKeys(t *testing.T) {
	// 22:30 UTC on Jan 31st is already Feb 1st at UTC+2; keys must follow
	// the local day, not the UTC one.
	ts := time.Date(2024, 1, 31, 22, 30, 0, 0, time.UTC)

	if got := DayKey(ts, testLoc); got != "2024-02-01" {
		t.Errorf("DayKey() = %q, want %q", got, "2024-02-01")
	}
	if got := MonthKey(ts, testLoc); got != "2024-02" {
		t.Errorf("MonthKey() = %q, want %q", got, "2024-02")
	}
	if got := DayKey(ts, time.UTC); got != "2024-01-31" {
		t.Errorf("DayKey(UTC) = %q, want %q", got, "2024-01-31")
	}
}
