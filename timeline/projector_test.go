package timeline

import (
	"testing"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
)

var projectorNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func subscription(id int, recurrence models.Recurrence, start time.Time, end *time.Time) *models.Subscription {
	return &models.Subscription{
		ID:         id,
		Name:       "Figma",
		Amount:     decimal.NewFromInt(100),
		Recurrence: recurrence,
		StartDate:  start,
		EndDate:    end,
		IsActive:   utils.NewTrue(),
	}
}

func months(occs []Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Month.String())
	}
	return out
}

func sameMonths(t *testing.T, got []Occurrence, want ...string) {
	t.Helper()
	g := months(got)
	if len(g) != len(want) {
		t.Fatalf("got months %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got months %v, want %v", g, want)
		}
	}
}

func TestProject_MonthlyOpenEndedStopsAtCurrentMonth(t *testing.T) {
	sub := subscription(1, models.RecurrenceMonthly, date(2025, 1, 10), nil)
	occs := Project(sub, NewMonth(2025, time.January), NewMonth(2025, time.December), projectorNow)
	sameMonths(t, occs, "2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06")
	for _, o := range occs {
		if o.IsProjected {
			t.Fatalf("%s should not be projected", o.Month)
		}
		if !o.Amount.Equal(decimal.NewFromInt(100)) || o.SubscriptionId != 1 {
			t.Fatalf("unexpected occurrence %+v", o)
		}
	}
}

func TestProject_MonthlyWithEndDateMarksFutureProjected(t *testing.T) {
	end := date(2025, 12, 31)
	sub := subscription(1, models.RecurrenceMonthly, date(2025, 1, 1), &end)
	occs := Project(sub, NewMonth(2025, time.January), NewMonth(2025, time.December), projectorNow)
	if len(occs) != 12 {
		t.Fatalf("expected 12 occurrences, got %d", len(occs))
	}
	for _, o := range occs {
		want := o.Month > NewMonth(2025, time.June)
		if o.IsProjected != want {
			t.Fatalf("%s projected=%v want %v", o.Month, o.IsProjected, want)
		}
	}
}

func TestProject_RangeStartSkipsAheadOnCadence(t *testing.T) {
	end := date(2025, 12, 31)
	sub := subscription(1, models.RecurrenceMonthly, date(2024, 11, 1), &end)
	sameMonths(t, Project(sub, NewMonth(2025, time.February), NewMonth(2025, time.April), projectorNow),
		"2025-02", "2025-03", "2025-04")

	custom := subscription(2, models.RecurrenceCustom, date(2025, 1, 1), &end)
	custom.CustomIntervalMonths = 2
	sameMonths(t, Project(custom, NewMonth(2025, time.April), NewMonth(2025, time.December), projectorNow),
		"2025-05", "2025-07", "2025-09", "2025-11")
}

func TestProject_Cadences(t *testing.T) {
	end := date(2027, 12, 31)
	cases := []struct {
		name   string
		sub    *models.Subscription
		from   Month
		to     Month
		expect []string
	}{
		{
			name:   "quarterly steps three months from the start month",
			sub:    subscription(1, models.RecurrenceQuarterly, date(2025, 2, 1), &end),
			from:   NewMonth(2025, time.January),
			to:     NewMonth(2025, time.December),
			expect: []string{"2025-02", "2025-05", "2025-08", "2025-11"},
		},
		{
			name:   "yearly keeps the start month",
			sub:    subscription(2, models.RecurrenceYearly, date(2023, 3, 1), &end),
			from:   NewMonth(2025, time.January),
			to:     NewMonth(2026, time.December),
			expect: []string{"2025-03", "2026-03"},
		},
		{
			name:   "custom without interval behaves monthly",
			sub:    subscription(3, models.RecurrenceCustom, date(2025, 10, 1), &end),
			from:   NewMonth(2025, time.October),
			to:     NewMonth(2025, time.December),
			expect: []string{"2025-10", "2025-11", "2025-12"},
		},
		{
			name:   "end date month is inclusive",
			sub:    subscription(4, models.RecurrenceMonthly, date(2025, 1, 1), func() *time.Time { d := date(2025, 3, 2); return &d }()),
			from:   NewMonth(2025, time.January),
			to:     NewMonth(2025, time.December),
			expect: []string{"2025-01", "2025-02", "2025-03"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sameMonths(t, Project(tc.sub, tc.from, tc.to, projectorNow), tc.expect...)
		})
	}
}

func TestProject_OneTime(t *testing.T) {
	sub := subscription(1, models.RecurrenceOneTime, date(2025, 9, 5), nil)
	occs := Project(sub, NewMonth(2025, time.January), NewMonth(2025, time.December), projectorNow)
	sameMonths(t, occs, "2025-09")
	if !occs[0].IsProjected {
		t.Fatalf("future one-time occurrence should be projected")
	}
	if got := Project(sub, NewMonth(2026, time.January), NewMonth(2026, time.December), projectorNow); len(got) != 0 {
		t.Fatalf("one-time outside range should be empty, got %v", months(got))
	}
}

func TestProject_Empty(t *testing.T) {
	before := date(2024, 12, 1)
	inactive := subscription(1, models.RecurrenceMonthly, date(2025, 1, 1), nil)
	inactive.IsActive = utils.NewFalse()
	cases := map[string]*models.Subscription{
		"inactive":            inactive,
		"end before start":    subscription(2, models.RecurrenceMonthly, date(2025, 1, 1), &before),
		"unknown recurrence":  subscription(3, models.Recurrence("weekly"), date(2025, 1, 1), nil),
		"starts after window": subscription(4, models.RecurrenceMonthly, date(2026, 1, 1), nil),
		"nil subscription":    nil,
	}
	for name, sub := range cases {
		if got := Project(sub, NewMonth(2025, time.January), NewMonth(2025, time.December), projectorNow); len(got) != 0 {
			t.Fatalf("%s: expected no occurrences, got %v", name, months(got))
		}
	}
	sub := subscription(5, models.RecurrenceMonthly, date(2025, 1, 1), nil)
	if got := Project(sub, NewMonth(2025, time.May), NewMonth(2025, time.April), projectorNow); len(got) != 0 {
		t.Fatalf("inverted range should be empty")
	}
}

func TestProjectYear_OrdersByMonthThenSubscription(t *testing.T) {
	end := date(2025, 12, 31)
	subs := []*models.Subscription{
		subscription(9, models.RecurrenceQuarterly, date(2025, 1, 1), &end),
		subscription(3, models.RecurrenceYearly, date(2024, 4, 1), &end),
		subscription(5, models.RecurrenceQuarterly, date(2025, 1, 1), &end),
	}
	occs := ProjectYear(subs, 2025, projectorNow)
	want := []struct {
		month string
		id    int
	}{
		{"2025-01", 5}, {"2025-01", 9}, {"2025-04", 3}, {"2025-04", 5}, {"2025-04", 9},
		{"2025-07", 5}, {"2025-07", 9}, {"2025-10", 5}, {"2025-10", 9},
	}
	if len(occs) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(occs), len(want))
	}
	for i, w := range want {
		if occs[i].Month.String() != w.month || occs[i].SubscriptionId != w.id {
			t.Fatalf("position %d: got %s/%d want %s/%d", i, occs[i].Month, occs[i].SubscriptionId, w.month, w.id)
		}
	}
}

func TestProject_StepsAreExactAndDeterministic(t *testing.T) {
	end := date(2028, 12, 31)
	cases := []struct {
		name       string
		recurrence models.Recurrence
		interval   int
		step       int
		wantCount  int
	}{
		{"monthly", models.RecurrenceMonthly, 0, 1, 48},
		{"quarterly", models.RecurrenceQuarterly, 0, 3, 16},
		{"yearly", models.RecurrenceYearly, 0, 12, 4},
		{"custom every 2", models.RecurrenceCustom, 2, 2, 24},
		{"custom every 5", models.RecurrenceCustom, 5, 5, 10},
		{"custom without interval", models.RecurrenceCustom, 0, 1, 48},
	}
	for _, tc := range cases {
		sub := subscription(7, tc.recurrence, date(2025, 1, 20), &end)
		sub.CustomIntervalMonths = tc.interval
		from, to := NewMonth(2025, time.January), NewMonth(2028, time.December)

		occs := Project(sub, from, to, projectorNow)
		if len(occs) != tc.wantCount {
			t.Fatalf("%s: got %d occurrences, want %d", tc.name, len(occs), tc.wantCount)
		}
		if occs[0].Month != from {
			t.Fatalf("%s: first occurrence %s, want %s", tc.name, occs[0].Month, from)
		}
		for i := 1; i < len(occs); i++ {
			if occs[i].Month != occs[i-1].Month.AddMonths(tc.step) {
				t.Fatalf("%s: %s follows %s, want a step of %d months", tc.name, occs[i].Month, occs[i-1].Month, tc.step)
			}
		}

		again := Project(sub, from, to, projectorNow)
		if len(again) != len(occs) {
			t.Fatalf("%s: second call returned %d occurrences, want %d", tc.name, len(again), len(occs))
		}
		for i := range occs {
			if again[i].Month != occs[i].Month || again[i].IsProjected != occs[i].IsProjected || !again[i].Amount.Equal(occs[i].Amount) {
				t.Fatalf("%s: second call differs at %d: %+v vs %+v", tc.name, i, again[i], occs[i])
			}
		}
	}
}

func TestDefaultRange(t *testing.T) {
	end := date(2025, 9, 30)
	cases := []struct {
		name     string
		sub      *models.Subscription
		from, to string
	}{
		{"open-ended runs to now", subscription(1, models.RecurrenceMonthly, date(2024, 11, 5), nil), "2024-11", "2025-06"},
		{"ended runs to end month", subscription(1, models.RecurrenceMonthly, date(2025, 2, 1), &end), "2025-02", "2025-09"},
		{"future start collapses to start", subscription(1, models.RecurrenceMonthly, date(2025, 10, 1), nil), "2025-10", "2025-10"},
	}
	for _, tc := range cases {
		from, to := DefaultRange(tc.sub, projectorNow)
		if from.String() != tc.from || to.String() != tc.to {
			t.Fatalf("%s: got %s..%s, want %s..%s", tc.name, from, to, tc.from, tc.to)
		}
	}
}
