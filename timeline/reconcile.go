package timeline

import (
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPaid          Status = "paid"
	StatusPastDue       Status = "past_due"
	StatusPartiallyPaid Status = "partially_paid"
	StatusDeclared      Status = "declared"
	StatusPending       Status = "pending"
)

func (s Status) Label() string {
	switch s {
	case StatusPaid:
		return "Fully Paid"
	case StatusPastDue:
		return "Past Due"
	case StatusPartiallyPaid:
		return "Partially Paid"
	case StatusDeclared:
		return "Declaration (Unpaid)"
	default:
		return "Pending Payment"
	}
}

// Totals is the ledger-derived state of one occurrence.
type Totals struct {
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Remaining         decimal.Decimal `json:"remaining"`
	IsFullyPaid       bool            `json:"is_fully_paid"`
	HasPartialPayment bool            `json:"has_partial_payment"`
	IsPastDue         bool            `json:"is_past_due"`
	Status            Status          `json:"status"`
	StatusLabel       string          `json:"status_label"`
}

// SumPaid adds the amounts of payments that count towards the total.
func SumPaid(payments []*models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p != nil && p.Counted() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Reconcile derives the occurrence state. A month is past due once its
// first day is behind now and it is not fully paid. Status precedence is
// paid, past due, partially paid, then declared or pending.
func Reconcile(amount decimal.Decimal, payments []*models.Payment, month Month, isProjected bool, now time.Time) Totals {
	totalPaid := SumPaid(payments)
	remaining := amount.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	t := Totals{
		TotalPaid:   totalPaid,
		Remaining:   remaining,
		IsFullyPaid: totalPaid.GreaterThanOrEqual(amount),
	}
	t.HasPartialPayment = totalPaid.IsPositive() && !t.IsFullyPaid
	t.IsPastDue = month.FirstDay(now.Location()).Before(now) && !t.IsFullyPaid

	switch {
	case t.IsFullyPaid:
		t.Status = StatusPaid
	case t.IsPastDue:
		t.Status = StatusPastDue
	case t.HasPartialPayment:
		t.Status = StatusPartiallyPaid
	case isProjected:
		t.Status = StatusDeclared
	default:
		t.Status = StatusPending
	}
	t.StatusLabel = t.Status.Label()
	return t
}

// PaidState is the paid-tracking part of a projection row.
type PaidState struct {
	IsPaid       bool
	PaidDate     *time.Time
	ActualAmount *decimal.Decimal
}

func ClearedState() PaidState {
	return PaidState{}
}

// StateAfterAdd is the row state once a payment dated paidDate brought the
// ledger total to totalPaid. Partial totals leave the row unpaid.
func StateAfterAdd(amount, totalPaid decimal.Decimal, paidDate time.Time) PaidState {
	actual := totalPaid
	if totalPaid.GreaterThanOrEqual(amount) {
		d := paidDate
		return PaidState{IsPaid: true, PaidDate: &d, ActualAmount: &actual}
	}
	return PaidState{ActualAmount: &actual}
}

// LedgerState rebuilds the row state from the remaining payments: paid with
// the latest payment's date when they cover amount, otherwise unpaid with
// the partial total (or nothing when no payment is left).
func LedgerState(amount decimal.Decimal, payments []*models.Payment) PaidState {
	total := SumPaid(payments)
	if !total.IsPositive() {
		return ClearedState()
	}
	actual := total
	if !total.GreaterThanOrEqual(amount) {
		return PaidState{ActualAmount: &actual}
	}
	var latest *time.Time
	for _, p := range payments {
		if p == nil || !p.Counted() {
			continue
		}
		d := p.EffectiveDate()
		if latest == nil || d.After(*latest) {
			latest = &d
		}
	}
	return PaidState{IsPaid: true, PaidDate: latest, ActualAmount: &actual}
}

// InSync reports whether a stored row agrees with the ledger on paid flag
// and paid total.
func InSync(row *models.SubscriptionProjectionEntry, amount decimal.Decimal, payments []*models.Payment) bool {
	if row == nil {
		return !SumPaid(payments).IsPositive()
	}
	want := LedgerState(amount, payments)
	if row.IsPaid != want.IsPaid {
		return false
	}
	switch {
	case row.ActualAmount == nil && want.ActualAmount == nil:
		return true
	case row.ActualAmount == nil || want.ActualAmount == nil:
		return false
	default:
		return row.ActualAmount.Equal(*want.ActualAmount)
	}
}

func (s PaidState) update(notes *string) *models.SubscriptionProjectionEntryUpdate {
	return &models.SubscriptionProjectionEntryUpdate{
		IsPaid:       s.IsPaid,
		PaidDate:     s.PaidDate,
		ActualAmount: s.ActualAmount,
		Notes:        notes,
	}
}
