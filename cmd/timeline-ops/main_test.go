package main

import (
	"testing"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/timeline"
)

func TestSubscriptionRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	engine := &timeline.Engine{Clock: timeline.ClockFunc(func() time.Time { return now })}
	end := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		start    time.Time
		end      *time.Time
		from, to string
		wantFrom string
		wantTo   string
	}{
		{"past months of an open-ended subscription", time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC), nil, "", "", "2024-11", "2025-06"},
		{"ended subscription", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), &end, "", "", "2025-02", "2025-09"},
		{"open-ended subscription starting later", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), nil, "", "", "2025-10", "2025-10"},
		{"explicit flags win", time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC), nil, "2025-03", "2025-04", "2025-03", "2025-04"},
	}
	for _, tc := range cases {
		fromMonth, toMonth = tc.from, tc.to
		sub := &models.Subscription{ID: 1, Recurrence: models.RecurrenceMonthly, StartDate: tc.start, EndDate: tc.end}
		from, to, err := subscriptionRange(engine, sub)
		if err != nil {
			t.Fatalf("%s: subscriptionRange: %v", tc.name, err)
		}
		if from.String() != tc.wantFrom || to.String() != tc.wantTo {
			t.Fatalf("%s: got %s..%s, want %s..%s", tc.name, from, to, tc.wantFrom, tc.wantTo)
		}
	}
	fromMonth, toMonth = "", ""
}
