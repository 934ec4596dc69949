package timeline

import (
	"sort"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/shopspring/decimal"
)

// Occurrence is one expected payment of a subscription, keyed by
// (SubscriptionId, Month). It is computed, never stored.
type Occurrence struct {
	SubscriptionId int             `json:"subscription_id"`
	Month          Month           `json:"month"`
	Amount         decimal.Decimal `json:"amount"`
	IsProjected    bool            `json:"is_projected"`
}

// cadence returns the step in months; 0 means a single occurrence.
func cadence(sub *models.Subscription) (int, bool) {
	switch sub.Recurrence {
	case models.RecurrenceOneTime:
		return 0, true
	case models.RecurrenceMonthly:
		return 1, true
	case models.RecurrenceQuarterly:
		return 3, true
	case models.RecurrenceYearly:
		return 12, true
	case models.RecurrenceCustom:
		if sub.CustomIntervalMonths > 0 {
			return sub.CustomIntervalMonths, true
		}
		return 1, true
	}
	return 0, false
}

// Project lists the occurrences of sub inside [rangeStart, rangeEnd], in
// month order. Occurrences step from the start date's month at the
// recurrence cadence and stop at the end date's month, or at now's month
// when the subscription is open-ended. A one_time subscription has exactly
// its start month. Inactive subscriptions, unknown recurrences and end dates
// before the start date yield nothing.
func Project(sub *models.Subscription, rangeStart, rangeEnd Month, now time.Time) []Occurrence {
	if sub == nil || !sub.Active() || rangeEnd < rangeStart {
		return nil
	}
	step, ok := cadence(sub)
	if !ok {
		return nil
	}
	if sub.EndDate != nil && sub.EndDate.Before(sub.StartDate) {
		return nil
	}

	first := MonthOf(sub.StartDate)
	current := MonthOf(now)
	occurrence := func(m Month) Occurrence {
		return Occurrence{
			SubscriptionId: sub.ID,
			Month:          m,
			Amount:         sub.Amount,
			IsProjected:    m > current,
		}
	}

	if step == 0 {
		if first < rangeStart || first > rangeEnd {
			return nil
		}
		return []Occurrence{occurrence(first)}
	}

	last := current
	if sub.EndDate != nil {
		last = MonthOf(*sub.EndDate)
	}
	if last > rangeEnd {
		last = rangeEnd
	}

	m := first
	if rangeStart > first {
		skip := (int(rangeStart-first) + step - 1) / step
		m = first.AddMonths(skip * step)
	}

	var out []Occurrence
	for ; m <= last; m = m.AddMonths(step) {
		out = append(out, occurrence(m))
	}
	return out
}

// ProjectYear projects every subscription over one calendar year, ordered by
// month and then subscription id.
func ProjectYear(subs []*models.Subscription, year int, now time.Time) []Occurrence {
	start := NewMonth(year, time.January)
	end := NewMonth(year, time.December)
	var out []Occurrence
	for _, sub := range subs {
		out = append(out, Project(sub, start, end, now)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].SubscriptionId < out[j].SubscriptionId
	})
	return out
}

// DefaultRange is the subscription's start month through its end month, or
// through now when it is open-ended. A subscription starting after that end
// collapses to its start month.
func DefaultRange(sub *models.Subscription, now time.Time) (Month, Month) {
	from := MonthOf(sub.StartDate)
	to := MonthOf(now)
	if sub.EndDate != nil {
		to = MonthOf(*sub.EndDate)
	}
	if to < from {
		to = from
	}
	return from, to
}
