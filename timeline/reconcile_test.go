package timeline

import (
	"testing"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
)

func payment(id int, amount int64, on time.Time) *models.Payment {
	d := on
	return &models.Payment{ID: id, Amount: decimal.NewFromInt(amount), PaymentDate: on, PaidDate: &d, IsPaid: utils.NewTrue()}
}

func TestReconcile(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	voided := payment(9, 50, date(2025, 3, 1))
	voided.IsPaid = utils.NewFalse()

	cases := []struct {
		name        string
		payments    []*models.Payment
		month       Month
		projected   bool
		wantStatus  Status
		wantPaid    int64
		wantRemain  int64
		wantPartial bool
		wantPastDue bool
	}{
		{"unpaid current month is past due", nil, NewMonth(2025, time.June), false, StatusPastDue, 0, 100, false, true},
		{"partial future payment", []*models.Payment{payment(1, 40, date(2025, 6, 1))}, NewMonth(2025, time.August), true, StatusPartiallyPaid, 40, 60, true, false},
		{"partial overdue payment reports past due", []*models.Payment{payment(1, 40, date(2025, 2, 1))}, NewMonth(2025, time.February), false, StatusPastDue, 40, 60, true, true},
		{"covered by two payments", []*models.Payment{payment(1, 60, date(2025, 3, 5)), payment(2, 40, date(2025, 3, 20))}, NewMonth(2025, time.March), false, StatusPaid, 100, 0, false, false},
		{"overpaid clamps remaining", []*models.Payment{payment(1, 120, date(2025, 3, 5))}, NewMonth(2025, time.March), false, StatusPaid, 120, 0, false, false},
		{"future declaration", nil, NewMonth(2025, time.September), true, StatusDeclared, 0, 100, false, false},
		{"future pending", nil, NewMonth(2025, time.September), false, StatusPending, 0, 100, false, false},
		{"uncounted payments are ignored", []*models.Payment{voided}, NewMonth(2025, time.September), true, StatusDeclared, 0, 100, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Reconcile(hundred, tc.payments, tc.month, tc.projected, projectorNow)
			if got.Status != tc.wantStatus {
				t.Fatalf("status %s, want %s", got.Status, tc.wantStatus)
			}
			if got.StatusLabel != tc.wantStatus.Label() {
				t.Fatalf("label %q does not match status", got.StatusLabel)
			}
			if !got.TotalPaid.Equal(decimal.NewFromInt(tc.wantPaid)) || !got.Remaining.Equal(decimal.NewFromInt(tc.wantRemain)) {
				t.Fatalf("paid %s remaining %s", got.TotalPaid, got.Remaining)
			}
			if got.HasPartialPayment != tc.wantPartial || got.IsPastDue != tc.wantPastDue {
				t.Fatalf("partial=%v pastDue=%v", got.HasPartialPayment, got.IsPastDue)
			}
			if got.IsFullyPaid != (tc.wantStatus == StatusPaid) {
				t.Fatalf("fully paid flag disagrees with status")
			}
		})
	}
}

func TestStateAfterAdd(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	partial := StateAfterAdd(hundred, decimal.NewFromInt(40), date(2025, 3, 5))
	if partial.IsPaid || partial.PaidDate != nil || !partial.ActualAmount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected partial state %+v", partial)
	}
	full := StateAfterAdd(hundred, hundred, date(2025, 3, 20))
	if !full.IsPaid || !full.PaidDate.Equal(date(2025, 3, 20)) || !full.ActualAmount.Equal(hundred) {
		t.Fatalf("unexpected full state %+v", full)
	}
}

func TestLedgerState(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	if s := LedgerState(hundred, nil); s.IsPaid || s.ActualAmount != nil || s.PaidDate != nil {
		t.Fatalf("empty ledger should clear state, got %+v", s)
	}
	partial := LedgerState(hundred, []*models.Payment{payment(1, 60, date(2025, 3, 5))})
	if partial.IsPaid || !partial.ActualAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected partial state %+v", partial)
	}
	full := LedgerState(hundred, []*models.Payment{payment(2, 40, date(2025, 3, 20)), payment(1, 60, date(2025, 3, 5))})
	if !full.IsPaid || !full.PaidDate.Equal(date(2025, 3, 20)) {
		t.Fatalf("paid date should be the latest payment, got %+v", full)
	}
}

func TestInSync(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	payments := []*models.Payment{payment(1, 100, date(2025, 3, 5))}
	paid := &models.SubscriptionProjectionEntry{IsPaid: true, ActualAmount: &hundred}
	if !InSync(paid, hundred, payments) {
		t.Fatalf("matching row should be in sync")
	}
	cleared := &models.SubscriptionProjectionEntry{}
	if InSync(cleared, hundred, payments) {
		t.Fatalf("cleared row with a covering payment is out of sync")
	}
	if !InSync(cleared, hundred, nil) {
		t.Fatalf("cleared row without payments is in sync")
	}
	if !InSync(nil, hundred, nil) {
		t.Fatalf("absent row without payments is in sync")
	}
}
