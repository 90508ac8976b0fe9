package core

import "time"

// Calendar arithmetic for the aggregation engine. Every function takes the
// location that defines the user-facing "local day": transaction timestamps
// are stored in UTC but must bucket to local calendar days, so UTC truncation
// is never used here.

// StartOfDay returns t's calendar day at local midnight.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// StartOfMonth returns the first day of the month containing t, at local
// midnight.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
}

// AddMonths returns the first of the month n months offset from t's month.
// The day component is always normalized to 1; callers re-apply a day of
// month themselves.
func AddMonths(t time.Time, n int, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month()+time.Month(n), 1, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days in the given month, leap years
// included. The zero-day trick resolves to the last day of the previous
// month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CountWeekdayInRange counts occurrences of weekday in [start, endInclusive],
// both normalized to local midnight. Returns 0 for an inverted range.
func CountWeekdayInRange(start, endInclusive time.Time, weekday time.Weekday, loc *time.Location) int {
	s := StartOfDay(start, loc)
	e := StartOfDay(endInclusive, loc)
	if e.Before(s) {
		return 0
	}
	offset := (int(weekday) - int(s.Weekday()) + 7) % 7
	first := s.AddDate(0, 0, offset)
	if first.After(e) {
		return 0
	}
	// Difference in whole calendar days. Computed on civil dates rather than
	// wall-clock durations so DST transitions cannot skew the division.
	diffDays := int(civilUTC(e).Sub(civilUTC(first)).Hours() / 24)
	return 1 + diffDays/7
}

// civilUTC re-expresses a local calendar day as the same date in UTC, where
// every day is exactly 24 hours.
func civilUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats t's local calendar day as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// MonthKey formats t's local calendar month as YYYY-MM.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}
