package services

import (
	"time"

	"github.com/shopspring/decimal"

	"cashbot/internal/core"
)

// Range presets accepted by the dashboard.
const (
	RangeMonth  = "month"
	Range3M     = "3m"
	RangeYear   = "year"
	RangeCustom = "custom"
)

// RangeQuery is the raw range selection from the request.
type RangeQuery struct {
	Preset string
	From   string // YYYY-MM, custom only
	To     string // YYYY-MM, custom only
	ToNow  bool   // custom only: end at now instead of To
}

// ResolveRange turns a range selector into concrete half-open boundaries and
// a display label. Malformed custom input never errors: the dashboard falls
// back to the current month rather than rendering blank.
func ResolveRange(q RangeQuery, now time.Time, loc *time.Location) (Range, string) {
	thisMonth := core.StartOfMonth(now, loc)

	switch q.Preset {
	case Range3M:
		return Range{Start: core.AddMonths(thisMonth, -2, loc), End: now}, "Last 3 months"
	case RangeYear:
		// Rolling 12-month window, not the calendar year.
		return Range{Start: core.AddMonths(thisMonth, -11, loc), End: now}, "Last 12 months"
	case RangeCustom:
		return resolveCustom(q, now, loc)
	default:
		return Range{Start: thisMonth, End: now}, thisMonth.Format("January 2006")
	}
}

func resolveCustom(q RangeQuery, now time.Time, loc *time.Location) (Range, string) {
	from, err := time.ParseInLocation("2006-01", q.From, loc)
	if err != nil {
		// Unparseable "from": default single-month range.
		thisMonth := core.StartOfMonth(now, loc)
		return Range{Start: thisMonth, End: now}, thisMonth.Format("January 2006")
	}
	start := core.StartOfMonth(from, loc)

	var end time.Time
	if q.ToNow {
		end = now
	} else if to, err := time.ParseInLocation("2006-01", q.To, loc); err == nil {
		end = core.AddMonths(to, 1, loc)
	} else {
		end = core.AddMonths(start, 1, loc)
	}

	// An empty or inverted range is forced to span at least one month.
	if !end.After(start) {
		end = core.AddMonths(start, 1, loc)
	}

	label := core.MonthKey(start, loc) + " – " + core.MonthKey(end.Add(-time.Nanosecond), loc)
	return Range{Start: start, End: end}, label
}

// PreviousRange derives the comparison window: the immediately preceding
// interval of identical duration.
func PreviousRange(cur Range) Range {
	return Range{Start: cur.Start.Add(-cur.Duration()), End: cur.Start}
}

// Delta computes the period-over-period relative change as a tri-state:
// nil when prev is zero and cur is not (no meaningful percentage from a zero
// base), 0 when both are zero, a plain ratio otherwise. Never NaN or Inf.
func Delta(cur, prev decimal.Decimal) *float64 {
	if prev.IsZero() {
		if cur.IsZero() {
			zero := 0.0
			return &zero
		}
		return nil
	}
	ratio := cur.Sub(prev).Div(prev.Abs()).InexactFloat64()
	return &ratio
}
