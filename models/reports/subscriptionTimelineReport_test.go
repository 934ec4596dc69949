package reports

import (
	"testing"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/timeline"
	"github.com/shopspring/decimal"
)

func TestSubscriptionTimelineWorkbook(t *testing.T) {
	paid := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	tl := &timeline.SubscriptionTimeline{
		Subscription: &models.Subscription{ID: 3, Name: "Adobe CC"},
		From:         timeline.NewMonth(2025, time.March),
		To:           timeline.NewMonth(2025, time.April),
		Occurrences: []*timeline.OccurrenceView{
			{
				Occurrence:      timeline.Occurrence{SubscriptionId: 3, Month: timeline.NewMonth(2025, time.March), Amount: decimal.NewFromInt(50)},
				Totals:          timeline.Totals{TotalPaid: decimal.NewFromInt(50), Remaining: decimal.Zero, Status: timeline.StatusPaid, StatusLabel: "Fully Paid"},
				ProjectionEntry: &models.SubscriptionProjectionEntry{IsPaid: true, PaidDate: &paid},
				Payments:        []*models.Payment{{ID: 1}},
			},
			{
				Occurrence: timeline.Occurrence{SubscriptionId: 3, Month: timeline.NewMonth(2025, time.April), Amount: decimal.NewFromInt(50)},
				Totals:     timeline.Totals{TotalPaid: decimal.Zero, Remaining: decimal.NewFromInt(50), Status: timeline.StatusPastDue, StatusLabel: "Past Due"},
			},
		},
		Summary: timeline.TimelineSummary{TotalDeclared: decimal.NewFromInt(100), TotalPaid: decimal.NewFromInt(50), TotalRemaining: decimal.NewFromInt(50), PaidCount: 1, PastDueCount: 1},
	}

	f, err := SubscriptionTimelineWorkbook(tl)
	if err != nil {
		t.Fatalf("SubscriptionTimelineWorkbook: %v", err)
	}
	checks := map[string]string{
		"A1": "Month",
		"A2": "2025-03",
		"E2": "Fully Paid",
		"F2": "2025-03-09",
		"A3": "2025-04",
		"E3": "Past Due",
		"A4": "Total",
		"D4": "50",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(timelineSheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s = %q, want %q", cell, got, want)
		}
	}
	if name := TimelineFileName(tl); name != "adobe_cc_2025-03_2025-04.xlsx" {
		t.Fatalf("unexpected file name %q", name)
	}
}
