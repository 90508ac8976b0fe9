// Package services implements the aggregation engine behind the dashboard:
// recurring-rule expansion, period aggregation and summary building.
package services

import (
	"time"

	"github.com/shopspring/decimal"

	"cashbot/internal/core"
)

// Occurrence is one concrete dated instance generated from a recurring rule
// within a queried range. Occurrences are never persisted; they exist only
// within a single aggregation call.
type Occurrence struct {
	Date     time.Time
	RuleID   string
	Type     core.TransactionType
	Category core.Category
	Amount   decimal.Decimal
}

// DayTotals is an expenses/income pair for one calendar bucket.
type DayTotals struct {
	Expenses decimal.Decimal
	Income   decimal.Decimal
}

// Expansion is the one-pass output of expanding a rule set over a range:
// the occurrences themselves plus the grouped accumulators the aggregator
// consumes, so no re-scan of the occurrence list is needed.
type Expansion struct {
	Occurrences []Occurrence

	Expenses decimal.Decimal
	Income   decimal.Decimal

	// ExpenseByCategory holds expense contributions only; income is not
	// categorized in the breakdown.
	ExpenseByCategory map[core.Category]decimal.Decimal
	ByDay             map[string]DayTotals
	ByMonth           map[string]DayTotals
}

// Range is a half-open date interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (r Range) Duration() time.Duration { return r.End.Sub(r.Start) }

// normalizeRange floors both bounds to local midnight. If the original end
// carried any time-of-day component the exclusive bound advances one day, so
// a range ending "now" still includes today's occurrences (ceiling semantics
// on the upper bound only). endIncl is the last calendar day inside the range.
func normalizeRange(r Range, loc *time.Location) (start, endExcl, endIncl time.Time) {
	start = core.StartOfDay(r.Start, loc)
	endExcl = core.StartOfDay(r.End, loc)
	if !r.End.In(loc).Equal(endExcl) {
		endExcl = endExcl.AddDate(0, 0, 1)
	}
	endIncl = endExcl.AddDate(0, 0, -1)
	return start, endExcl, endIncl
}

// RuleExpander turns recurring rules into dated occurrences over a range.
// It is stateless; Expand is a pure function of its inputs.
type RuleExpander struct {
	loc *time.Location
}

func NewRuleExpander(loc *time.Location) *RuleExpander {
	return &RuleExpander{loc: loc}
}

// Expand produces every occurrence of rules that falls inside the half-open
// range, applying start-date and activity clamps, and accumulates totals and
// by-category/day/month buckets in the same pass.
//
// Malformed rules (missing day field, non-positive amount) contribute zero
// occurrences and are skipped silently: rule configuration is validated at
// creation time, not re-validated here.
func (e *RuleExpander) Expand(rules []core.RecurringRule, r Range) Expansion {
	start, endExcl, endIncl := normalizeRange(r, e.loc)

	out := Expansion{
		Expenses:          decimal.Zero,
		Income:            decimal.Zero,
		ExpenseByCategory: make(map[core.Category]decimal.Decimal),
		ByDay:             make(map[string]DayTotals),
		ByMonth:           make(map[string]DayTotals),
	}
	if !endExcl.After(start) {
		return out
	}

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if !rule.Amount.IsPositive() {
			continue
		}
		ruleStart := time.Time{}
		if !rule.StartDate.IsZero() {
			ruleStart = core.StartOfDay(rule.StartDate, e.loc)
			if ruleStart.After(endIncl) {
				continue
			}
		}

		switch rule.Frequency {
		case core.Monthly:
			e.expandMonthly(&out, rule, ruleStart, start, endExcl, endIncl)
		case core.Weekly:
			e.expandWeekly(&out, rule, ruleStart, start, endExcl)
		}
	}

	return out
}

// expandMonthly emits at most one occurrence per calendar month overlapping
// the range, regardless of how many of that month's days are in range.
func (e *RuleExpander) expandMonthly(out *Expansion, rule core.RecurringRule, ruleStart, start, endExcl, endIncl time.Time) {
	if rule.DayOfMonth == nil {
		return
	}

	for month := core.StartOfMonth(start, e.loc); month.Before(endExcl); month = core.AddMonths(month, 1, e.loc) {
		lastDay := core.DaysInMonth(month.Year(), month.Month())
		monthEnd := time.Date(month.Year(), month.Month(), lastDay, 0, 0, 0, 0, e.loc)

		// Skip months that end before the rule has started.
		if !ruleStart.IsZero() && ruleStart.After(monthEnd) {
			continue
		}

		// Clamp the scheduled day into the actual month length, so a
		// day-31 rule lands on the 30th or 28th/29th in short months.
		day := *rule.DayOfMonth
		if day > lastDay {
			day = lastDay
		}

		// A rule starting mid-month after its scheduled day still counts
		// for that month, dated on the start date itself.
		if !ruleStart.IsZero() && ruleStart.Year() == month.Year() && ruleStart.Month() == month.Month() && ruleStart.Day() > day {
			day = ruleStart.Day()
		}

		date := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, e.loc)
		if date.Before(start) {
			date = start
		}
		if date.After(endIncl) {
			date = endIncl
		}

		e.record(out, rule, date)
	}
}

// expandWeekly emits one occurrence per matching weekday, stepping exactly
// seven days from the first match at or after the range (and rule) start.
func (e *RuleExpander) expandWeekly(out *Expansion, rule core.RecurringRule, ruleStart, start, endExcl time.Time) {
	if rule.DayOfWeek == nil {
		return
	}

	first := start
	if !ruleStart.IsZero() && ruleStart.After(first) {
		first = ruleStart
	}
	offset := (*rule.DayOfWeek - int(first.Weekday()) + 7) % 7
	first = first.AddDate(0, 0, offset)

	for date := first; date.Before(endExcl); date = date.AddDate(0, 0, 7) {
		e.record(out, rule, date)
	}
}

func (e *RuleExpander) record(out *Expansion, rule core.RecurringRule, date time.Time) {
	out.Occurrences = append(out.Occurrences, Occurrence{
		Date:     date,
		RuleID:   rule.ID,
		Type:     rule.Type,
		Category: rule.Category,
		Amount:   rule.Amount,
	})

	dayKey := core.DayKey(date, e.loc)
	monthKey := core.MonthKey(date, e.loc)
	day := out.ByDay[dayKey]
	month := out.ByMonth[monthKey]

	switch rule.Type {
	case core.Expense:
		out.Expenses = out.Expenses.Add(rule.Amount)
		out.ExpenseByCategory[rule.Category] = out.ExpenseByCategory[rule.Category].Add(rule.Amount)
		day.Expenses = day.Expenses.Add(rule.Amount)
		month.Expenses = month.Expenses.Add(rule.Amount)
	case core.Income:
		out.Income = out.Income.Add(rule.Amount)
		day.Income = day.Income.Add(rule.Amount)
		month.Income = month.Income.Add(rule.Amount)
	}

	out.ByDay[dayKey] = day
	out.ByMonth[monthKey] = month
}
