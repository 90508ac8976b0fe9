package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestResolveRangePresets(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, testLoc)

	tests := []struct {
		name      string
		q         RangeQuery
		wantStart time.Time
		wantEnd   time.Time
		wantLabel string
	}{
		{
			name:      "month",
			q:         RangeQuery{Preset: RangeMonth},
			wantStart: date(2024, 3, 1),
			wantEnd:   now,
			wantLabel: "March 2024",
		},
		{
			name:      "unknown preset falls back to month",
			q:         RangeQuery{Preset: "fortnight"},
			wantStart: date(2024, 3, 1),
			wantEnd:   now,
			wantLabel: "March 2024",
		},
		{
			name:      "3m spans current plus two prior months",
			q:         RangeQuery{Preset: Range3M},
			wantStart: date(2024, 1, 1),
			wantEnd:   now,
			wantLabel: "Last 3 months",
		},
		{
			name:      "year is a rolling 12 month window",
			q:         RangeQuery{Preset: RangeYear},
			wantStart: date(2023, 4, 1),
			wantEnd:   now,
			wantLabel: "Last 12 months",
		},
		{
			name:      "custom from-to",
			q:         RangeQuery{Preset: RangeCustom, From: "2024-01", To: "2024-02"},
			wantStart: date(2024, 1, 1),
			wantEnd:   date(2024, 3, 1),
			wantLabel: "2024-01 – 2024-02",
		},
		{
			name:      "custom to-now",
			q:         RangeQuery{Preset: RangeCustom, From: "2024-02", ToNow: true},
			wantStart: date(2024, 2, 1),
			wantEnd:   now,
			wantLabel: "2024-02 – 2024-03",
		},
		{
			name:      "custom with to before from spans one month",
			q:         RangeQuery{Preset: RangeCustom, From: "2024-03", To: "2024-01"},
			wantStart: date(2024, 3, 1),
			wantEnd:   date(2024, 4, 1),
			wantLabel: "2024-03 – 2024-03",
		},
		{
			name:      "custom with missing to spans one month",
			q:         RangeQuery{Preset: RangeCustom, From: "2024-02"},
			wantStart: date(2024, 2, 1),
			wantEnd:   date(2024, 3, 1),
			wantLabel: "2024-02 – 2024-02",
		},
		{
			name:      "custom with garbage from falls back to current month",
			q:         RangeQuery{Preset: RangeCustom, From: "not-a-month", To: "2024-02"},
			wantStart: date(2024, 3, 1),
			wantEnd:   now,
			wantLabel: "March 2024",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, label := ResolveRange(tt.q, now, testLoc)
			if !rng.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", rng.Start, tt.wantStart)
			}
			if !rng.End.Equal(tt.wantEnd) {
				t.Errorf("End = %v, want %v", rng.End, tt.wantEnd)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %q, want %q", label, tt.wantLabel)
			}
		})
	}
}

func TestPreviousRange(t *testing.T) {
	cur := Range{Start: date(2024, 3, 1), End: date(2024, 4, 1)}
	prev := PreviousRange(cur)

	if !prev.End.Equal(cur.Start) {
		t.Errorf("prev.End = %v, want %v", prev.End, cur.Start)
	}
	if prev.Duration() != cur.Duration() {
		t.Errorf("prev duration = %v, cur duration = %v", prev.Duration(), cur.Duration())
	}
	// 31 days back from March 1 in a leap year.
	if !prev.Start.Equal(date(2024, 1, 30)) {
		t.Errorf("prev.Start = %v, want %v", prev.Start, date(2024, 1, 30))
	}
}

func TestDelta(t *testing.T) {
	f := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

	tests := []struct {
		name string
		cur  decimal.Decimal
		prev decimal.Decimal
		want *float64
	}{
		{name: "both zero", cur: f(0), prev: f(0), want: ptrF(0)},
		{name: "zero base is undefined", cur: f(100), prev: f(0), want: nil},
		{name: "increase", cur: f(150), prev: f(100), want: ptrF(0.5)},
		{name: "decrease", cur: f(50), prev: f(100), want: ptrF(-0.5)},
		{name: "unchanged", cur: f(100), prev: f(100), want: ptrF(0)},
		{name: "drop to zero", cur: f(0), prev: f(100), want: ptrF(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delta(tt.cur, tt.prev)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Delta = %v, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("Delta = nil, want %v", *tt.want)
			case tt.want != nil && got != nil && *got != *tt.want:
				t.Errorf("Delta = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func ptrF(v float64) *float64 { return &v }
