package services

import (
	"time"

	"github.com/shopspring/decimal"

	"cashbot/internal/core"
)

// RecurringCategory is the synthetic bucket recurring contributions appear
// under in the category breakdown, keeping planned vs. actual visible while
// still summing into the same grand totals.
const RecurringCategory = "Recurring"

// PeriodAggregate holds every consistent view of one period: grand totals,
// expense-by-category, and per-day and per-month series. All maps are local
// to one Aggregate call.
type PeriodAggregate struct {
	Expenses decimal.Decimal
	Income   decimal.Decimal

	// ExpenseByCategory maps real categories plus RecurringCategory to
	// expense totals.
	ExpenseByCategory map[string]decimal.Decimal
	ByDay             map[string]DayTotals
	ByMonth           map[string]DayTotals
}

// PeriodAggregator merges actual transactions with expanded recurring
// occurrences into one set of period views. Stateless and safe for
// concurrent use; each call works on its own maps.
type PeriodAggregator struct {
	loc *time.Location
}

func NewPeriodAggregator(loc *time.Location) *PeriodAggregator {
	return &PeriodAggregator{loc: loc}
}

// Aggregate filters transactions to [r.Start, r.End) (half-open, so boundary
// records are never double-counted across adjacent periods), merges in the
// recurring expansion, and adds the flat monthly salary once per overlapping
// calendar month. Every month spanned by the range gets a ByMonth entry even
// when empty, so chart axes stay stable.
func (a *PeriodAggregator) Aggregate(txs []core.Transaction, recurring Expansion, monthlySalary decimal.Decimal, r Range) PeriodAggregate {
	start, endExcl, _ := normalizeRange(r, a.loc)

	agg := PeriodAggregate{
		Expenses:          decimal.Zero,
		Income:            decimal.Zero,
		ExpenseByCategory: make(map[string]decimal.Decimal),
		ByDay:             make(map[string]DayTotals),
		ByMonth:           make(map[string]DayTotals),
	}
	if !endExcl.After(start) {
		return agg
	}

	// Seed the month series before accumulating.
	months := 0
	for m := core.StartOfMonth(start, a.loc); m.Before(endExcl); m = core.AddMonths(m, 1, a.loc) {
		agg.ByMonth[core.MonthKey(m, a.loc)] = DayTotals{}
		months++
	}

	for _, tx := range txs {
		if tx.CreatedAt.Before(start) || !tx.CreatedAt.Before(endExcl) {
			continue
		}
		if !tx.Amount.IsPositive() {
			continue
		}

		dayKey := core.DayKey(tx.CreatedAt, a.loc)
		monthKey := core.MonthKey(tx.CreatedAt, a.loc)
		day := agg.ByDay[dayKey]
		month := agg.ByMonth[monthKey]

		switch tx.Type {
		case core.Expense:
			agg.Expenses = agg.Expenses.Add(tx.Amount)
			agg.ExpenseByCategory[string(tx.Category)] = agg.ExpenseByCategory[string(tx.Category)].Add(tx.Amount)
			day.Expenses = day.Expenses.Add(tx.Amount)
			month.Expenses = month.Expenses.Add(tx.Amount)
		case core.Income:
			agg.Income = agg.Income.Add(tx.Amount)
			day.Income = day.Income.Add(tx.Amount)
			month.Income = month.Income.Add(tx.Amount)
		default:
			continue
		}

		agg.ByDay[dayKey] = day
		agg.ByMonth[monthKey] = month
	}

	// Merge recurring contributions. In the breakdown they form one
	// synthetic bucket instead of joining the real categories.
	agg.Expenses = agg.Expenses.Add(recurring.Expenses)
	agg.Income = agg.Income.Add(recurring.Income)
	if recurring.Expenses.IsPositive() {
		agg.ExpenseByCategory[RecurringCategory] = agg.ExpenseByCategory[RecurringCategory].Add(recurring.Expenses)
	}
	for key, t := range recurring.ByDay {
		day := agg.ByDay[key]
		day.Expenses = day.Expenses.Add(t.Expenses)
		day.Income = day.Income.Add(t.Income)
		agg.ByDay[key] = day
	}
	for key, t := range recurring.ByMonth {
		month := agg.ByMonth[key]
		month.Expenses = month.Expenses.Add(t.Expenses)
		month.Income = month.Income.Add(t.Income)
		agg.ByMonth[key] = month
	}

	// The monthly salary is a flat per-month addend, not a rule: once per
	// overlapping calendar month, into the month series and the grand total.
	if monthlySalary.IsPositive() {
		for m := core.StartOfMonth(start, a.loc); m.Before(endExcl); m = core.AddMonths(m, 1, a.loc) {
			key := core.MonthKey(m, a.loc)
			month := agg.ByMonth[key]
			month.Income = month.Income.Add(monthlySalary)
			agg.ByMonth[key] = month
		}
		agg.Income = agg.Income.Add(monthlySalary.Mul(decimal.NewFromInt(int64(months))))
	}

	return agg
}
