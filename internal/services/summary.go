package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cashbot/internal/core"
)

// Store is the persistence collaborator the summary builder reads from.
// Implementations return records pre-filtered to a single owner; the engine
// applies all range and activity filtering itself.
type Store interface {
	// ListTransactions returns transactions with CreatedAt in [from, to),
	// in any order; aggregation does not depend on it.
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	// ListRecurringRules returns all rules for the owner, including
	// inactive ones (the expander filters).
	ListRecurringRules(ctx context.Context, userID string) ([]core.RecurringRule, error)
	GetProfile(ctx context.Context, userID string) (core.Profile, error)
}

// View types: the contract consumed directly by the presentation layer.
type (
	Totals struct {
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
	}

	Planned struct {
		Expenses float64 `json:"expenses"`
		Income   float64 `json:"income"`
	}

	KPI struct {
		Label string   `json:"label"`
		Value float64  `json:"value"`
		Delta *float64 `json:"delta"` // nil = undefined, distinct from 0
	}

	CategoryTotal struct {
		Category string  `json:"category"`
		Total    float64 `json:"total"`
	}

	DayPoint struct {
		Date     string  `json:"date"`
		Expenses float64 `json:"expenses"`
		Income   float64 `json:"income"`
	}

	MonthPoint struct {
		Month    string  `json:"month"`
		Expenses float64 `json:"expenses"`
		Income   float64 `json:"income"`
	}

	DashboardSummary struct {
		MonthLabel       string          `json:"monthLabel"`
		Summary          Totals          `json:"summary"`
		PlannedRecurring Planned         `json:"plannedRecurring"`
		KPIs             []KPI           `json:"kpis"`
		ByCategory       []CategoryTotal `json:"byCategory"`
		ByDay            []DayPoint      `json:"byDay"`
		ByMonth          []MonthPoint    `json:"byMonth"`
	}
)

// SummaryBuilder orchestrates a dashboard build: resolve ranges, fetch
// inputs, aggregate current and previous windows, compute deltas and shape
// the view. Each Build call is a pure function of its fetched inputs with no
// shared mutable state, so builds may run concurrently per request.
type SummaryBuilder struct {
	store      Store
	loc        *time.Location
	expander   *RuleExpander
	aggregator *PeriodAggregator
}

func NewSummaryBuilder(store Store, loc *time.Location) *SummaryBuilder {
	return &SummaryBuilder{
		store:      store,
		loc:        loc,
		expander:   NewRuleExpander(loc),
		aggregator: NewPeriodAggregator(loc),
	}
}

// Build produces the dashboard summary for one owner and range selection.
// Store read failures are propagated unchanged; the aggregation itself never
// fails partway.
func (b *SummaryBuilder) Build(ctx context.Context, userID string, q RangeQuery, now time.Time) (*DashboardSummary, error) {
	cur, label := ResolveRange(q, now, b.loc)
	prev := PreviousRange(cur)

	// One transaction fetch covers both windows; the reads have no ordering
	// dependency and run concurrently.
	var (
		txs     []core.Transaction
		rules   []core.RecurringRule
		profile core.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = b.store.ListTransactions(gctx, userID, prev.Start, cur.End)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rules, err = b.store.ListRecurringRules(gctx, userID)
		if err != nil {
			return fmt.Errorf("list recurring rules: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profile, err = b.store.GetProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	curRecurring := b.expander.Expand(rules, cur)
	prevRecurring := b.expander.Expand(rules, prev)

	curAgg := b.aggregator.Aggregate(txs, curRecurring, profile.MonthlySalary, cur)
	prevAgg := b.aggregator.Aggregate(txs, prevRecurring, profile.MonthlySalary, prev)

	curBalance := curAgg.Income.Sub(curAgg.Expenses)
	prevBalance := prevAgg.Income.Sub(prevAgg.Expenses)

	summary := &DashboardSummary{
		MonthLabel: label,
		Summary: Totals{
			Income:   curAgg.Income.InexactFloat64(),
			Expenses: curAgg.Expenses.InexactFloat64(),
		},
		PlannedRecurring: Planned{
			Expenses: curRecurring.Expenses.InexactFloat64(),
			Income:   curRecurring.Income.InexactFloat64(),
		},
		KPIs: []KPI{
			{Label: "Income", Value: curAgg.Income.InexactFloat64(), Delta: Delta(curAgg.Income, prevAgg.Income)},
			{Label: "Expenses", Value: curAgg.Expenses.InexactFloat64(), Delta: Delta(curAgg.Expenses, prevAgg.Expenses)},
			{Label: "Balance", Value: curBalance.InexactFloat64(), Delta: Delta(curBalance, prevBalance)},
		},
		ByCategory: categorySeries(curAgg.ExpenseByCategory),
		ByDay:      daySeries(curAgg.ByDay),
		ByMonth:    monthSeries(curAgg.ByMonth),
	}
	return summary, nil
}

func categorySeries(byCategory map[string]decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(byCategory))
	for category, total := range byCategory {
		if !total.IsPositive() {
			continue
		}
		out = append(out, CategoryTotal{Category: category, Total: total.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func daySeries(byDay map[string]DayTotals) []DayPoint {
	out := make([]DayPoint, 0, len(byDay))
	for date, t := range byDay {
		out = append(out, DayPoint{
			Date:     date,
			Expenses: t.Expenses.InexactFloat64(),
			Income:   t.Income.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func monthSeries(byMonth map[string]DayTotals) []MonthPoint {
	out := make([]MonthPoint, 0, len(byMonth))
	for month, t := range byMonth {
		out = append(out, MonthPoint{
			Month:    month,
			Expenses: t.Expenses.InexactFloat64(),
			Income:   t.Income.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
