package reports

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/cashflow_backend/timeline"
	"github.com/xuri/excelize/v2"
)

const timelineSheet = "Timeline"

var timelineHeaders = []string{"Month", "Amount", "Paid", "Remaining", "Status", "Paid Date", "Payments", "Needs Resync"}

// TimelineFileName names the export after the subscription and range.
func TimelineFileName(tl *timeline.SubscriptionTimeline) string {
	name := "subscription"
	if tl.Subscription != nil && strings.TrimSpace(tl.Subscription.Name) != "" {
		name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tl.Subscription.Name)), " ", "_")
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", name, tl.From, tl.To)
}

// SubscriptionTimelineWorkbook renders one row per occurrence followed by a
// totals row.
func SubscriptionTimelineWorkbook(tl *timeline.SubscriptionTimeline) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", timelineSheet); err != nil {
		return nil, err
	}

	for i, h := range timelineHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(timelineSheet, cell, h); err != nil {
			return nil, err
		}
	}

	row := 2
	for _, v := range tl.Occurrences {
		paidDate := ""
		if v.ProjectionEntry != nil && v.ProjectionEntry.PaidDate != nil {
			paidDate = v.ProjectionEntry.PaidDate.Format("2006-01-02")
		}
		values := []interface{}{
			v.Month.String(),
			v.Amount.InexactFloat64(),
			v.TotalPaid.InexactFloat64(),
			v.Remaining.InexactFloat64(),
			v.StatusLabel,
			paidDate,
			len(v.Payments),
			v.NeedsResync,
		}
		if err := setRow(f, row, values); err != nil {
			return nil, err
		}
		row++
	}

	s := tl.Summary
	totals := []interface{}{"Total", s.TotalDeclared.InexactFloat64(), s.TotalPaid.InexactFloat64(), s.TotalRemaining.InexactFloat64(),
		fmt.Sprintf("%d paid, %d past due", s.PaidCount, s.PastDueCount)}
	if err := setRow(f, row, totals); err != nil {
		return nil, err
	}

	f.SetColWidth(timelineSheet, "A", "A", 10)
	f.SetColWidth(timelineSheet, "B", "D", 14)
	f.SetColWidth(timelineSheet, "E", "E", 22)
	f.SetColWidth(timelineSheet, "F", "F", 12)
	return f, nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(timelineSheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}
