package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mmdatafocus/cashflow_backend/timeline")

// Engine merges projected occurrences with stored projection rows and the
// payment ledger, and applies paid/unpaid transitions. Each transition runs
// in one transaction: either every write lands or none does.
type Engine struct {
	Store  Store
	Clock  Clock
	Logger *logrus.Logger
	// Locker is optional; nil disables cross-instance locking.
	Locker OccurrenceLocker
	// PurgePaymentsOnUnpaid is MarkUnpaid's default for DeletePayments.
	PurgePaymentsOnUnpaid bool

	resolver *EntryResolver
}

func NewEngine(store Store, clock Clock, logger *logrus.Logger) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Engine{
		Store:    store,
		Clock:    clock,
		Logger:   logger,
		resolver: NewEntryResolver(store),
	}
}

type AddPaymentInput struct {
	SubscriptionId int
	Month          Month
	PaidDate       time.Time
	Amount         decimal.Decimal
	PaymentMethod  string
	Notes          string
}

type MarkPaidInput struct {
	SubscriptionId int
	Month          Month
	PaidDate       time.Time
	PaymentMethod  string
	Notes          string
}

type DeletePaymentInput struct {
	SubscriptionId int
	Month          Month
	PaymentId      int
}

type MarkUnpaidInput struct {
	SubscriptionId int
	Month          Month
	// DeletePayments overrides Engine.PurgePaymentsOnUnpaid when set.
	DeletePayments *bool
}

// OccurrenceView is the reconciled state of one occurrence.
type OccurrenceView struct {
	Occurrence
	Totals
	ProjectionEntry *models.SubscriptionProjectionEntry `json:"projection_entry"`
	EntryId         int                                 `json:"entry_id,omitempty"`
	Payments        []*models.Payment                   `json:"payments"`
	// NeedsResync is set when the stored row disagrees with the ledger.
	NeedsResync bool `json:"needs_resync"`
}

type TimelineSummary struct {
	TotalDeclared  decimal.Decimal `json:"total_declared"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	PaidCount      int             `json:"paid_count"`
	PartialCount   int             `json:"partial_count"`
	PastDueCount   int             `json:"past_due_count"`
}

func (s *TimelineSummary) add(o TimelineSummary) {
	s.TotalDeclared = s.TotalDeclared.Add(o.TotalDeclared)
	s.TotalPaid = s.TotalPaid.Add(o.TotalPaid)
	s.TotalRemaining = s.TotalRemaining.Add(o.TotalRemaining)
	s.PaidCount += o.PaidCount
	s.PartialCount += o.PartialCount
	s.PastDueCount += o.PastDueCount
}

type SubscriptionTimeline struct {
	Subscription *models.Subscription `json:"subscription"`
	From         Month                `json:"from"`
	To           Month                `json:"to"`
	Occurrences  []*OccurrenceView    `json:"occurrences"`
	Summary      TimelineSummary      `json:"summary"`
}

// MonthTotal sums one month across subscriptions.
type MonthTotal struct {
	Month          Month           `json:"month"`
	TotalDeclared  decimal.Decimal `json:"total_declared"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalRemaining decimal.Decimal `json:"total_remaining"`
	Occurrences    int             `json:"occurrences"`
	PaidCount      int             `json:"paid_count"`
}

type BusinessTimeline struct {
	From          Month                   `json:"from"`
	To            Month                   `json:"to"`
	Subscriptions []*SubscriptionTimeline `json:"subscriptions"`
	Months        []*MonthTotal           `json:"months"`
	Summary       TimelineSummary         `json:"summary"`
}

type GenerateResult struct {
	SubscriptionId  int   `json:"subscription_id"`
	From            Month `json:"from"`
	To              Month `json:"to"`
	Created         int   `json:"created"`
	Existing        int   `json:"existing"`
	EntriesRepaired int   `json:"entries_repaired"`
}

type occurrenceState struct {
	sub      *models.Subscription
	occ      Occurrence
	row      *models.SubscriptionProjectionEntry
	entryId  int
	payments []*models.Payment
	events   []models.OccurrenceEventType
}

// amount prefers the row's declared amount over the subscription's current one.
func (s *occurrenceState) amount() decimal.Decimal {
	if s.row != nil {
		return s.row.Amount
	}
	return s.occ.Amount
}

func (s *occurrenceState) totals(now time.Time) Totals {
	return Reconcile(s.amount(), s.payments, s.occ.Month, s.occ.IsProjected, now)
}

func (s *occurrenceState) view(now time.Time) *OccurrenceView {
	occ := s.occ
	occ.Amount = s.amount()
	payments := s.payments
	if payments == nil {
		payments = []*models.Payment{}
	}
	return &OccurrenceView{
		Occurrence:      occ,
		Totals:          s.totals(now),
		ProjectionEntry: s.row,
		EntryId:         s.entryId,
		Payments:        payments,
		NeedsResync:     !InSync(s.row, s.amount(), s.payments),
	}
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

// Timeline reconciles every occurrence of a subscription in [from, to].
func (e *Engine) Timeline(ctx context.Context, subscriptionId int, from, to Month) (*SubscriptionTimeline, error) {
	if to < from {
		return nil, &ValidationError{Field: "endMonth", Message: "endMonth must not be before startMonth"}
	}
	ctx, span := tracer.Start(ctx, "timeline.Timeline", trace.WithAttributes(
		attribute.Int("subscription.id", subscriptionId),
		attribute.String("range.from", from.String()),
		attribute.String("range.to", to.String()),
	))
	defer span.End()

	sub, err := e.Store.GetSubscription(ctx, subscriptionId)
	if err != nil {
		return nil, err
	}
	return e.merge(ctx, sub, from, to, e.now())
}

// merge joins the projected occurrences of sub with its stored rows and
// their ledger payments.
func (e *Engine) merge(ctx context.Context, sub *models.Subscription, from, to Month, now time.Time) (*SubscriptionTimeline, error) {
	subscriptionId := sub.ID
	rows, err := e.Store.ListProjectionEntries(ctx, subscriptionId, from.String(), to.String())
	if err != nil {
		config.LogError(e.Logger, "timeline", "Timeline", "ListProjectionEntries", subscriptionId, err)
		return nil, err
	}

	rowByMonth := make(map[string]*models.SubscriptionProjectionEntry, len(rows))
	entryByRow := make(map[int]int, len(rows))
	entryIds := make([]int, 0, len(rows))
	for _, row := range rows {
		rowByMonth[row.Month] = row
		entryId, err := e.resolver.Resolve(ctx, subscriptionId, row)
		if errors.Is(err, ErrEntryNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entryByRow[row.ID] = entryId
		entryIds = append(entryIds, entryId)
	}

	paymentsByEntry := make(map[int][]*models.Payment)
	if len(entryIds) > 0 {
		payments, err := e.Store.ListPaymentsByEntries(ctx, entryIds)
		if err != nil {
			config.LogError(e.Logger, "timeline", "Timeline", "ListPaymentsByEntries", entryIds, err)
			return nil, err
		}
		for _, p := range payments {
			paymentsByEntry[p.EntryId] = append(paymentsByEntry[p.EntryId], p)
		}
	}

	result := &SubscriptionTimeline{
		Subscription: sub,
		From:         from,
		To:           to,
		Occurrences:  []*OccurrenceView{},
		Summary: TimelineSummary{
			TotalDeclared:  decimal.Zero,
			TotalPaid:      decimal.Zero,
			TotalRemaining: decimal.Zero,
		},
	}
	for _, occ := range Project(sub, from, to, now) {
		st := &occurrenceState{sub: sub, occ: occ}
		if row, ok := rowByMonth[occ.Month.String()]; ok {
			st.row = row
			st.entryId = entryByRow[row.ID]
			st.payments = paymentsByEntry[st.entryId]
		}
		v := st.view(now)
		result.Occurrences = append(result.Occurrences, v)

		s := &result.Summary
		s.TotalDeclared = s.TotalDeclared.Add(v.Amount)
		s.TotalPaid = s.TotalPaid.Add(v.TotalPaid)
		s.TotalRemaining = s.TotalRemaining.Add(v.Remaining)
		switch {
		case v.IsFullyPaid:
			s.PaidCount++
		case v.IsPastDue:
			s.PastDueCount++
		}
		if v.HasPartialPayment {
			s.PartialCount++
		}
	}
	return result, nil
}

// BusinessTimeline reconciles every active subscription of the business in
// [from, to] and totals the months that have at least one occurrence.
func (e *Engine) BusinessTimeline(ctx context.Context, from, to Month) (*BusinessTimeline, error) {
	if to < from {
		return nil, &ValidationError{Field: "endMonth", Message: "endMonth must not be before startMonth"}
	}
	ctx, span := tracer.Start(ctx, "timeline.BusinessTimeline", trace.WithAttributes(
		attribute.String("range.from", from.String()),
		attribute.String("range.to", to.String()),
	))
	defer span.End()

	now := e.now()
	subs, err := e.Store.ListActiveSubscriptions(ctx)
	if err != nil {
		config.LogError(e.Logger, "timeline", "BusinessTimeline", "ListActiveSubscriptions", nil, err)
		return nil, err
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })

	result := &BusinessTimeline{
		From:          from,
		To:            to,
		Subscriptions: []*SubscriptionTimeline{},
		Months:        []*MonthTotal{},
		Summary: TimelineSummary{
			TotalDeclared:  decimal.Zero,
			TotalPaid:      decimal.Zero,
			TotalRemaining: decimal.Zero,
		},
	}
	byMonth := make(map[Month]*MonthTotal)
	for _, sub := range subs {
		tl, err := e.merge(ctx, sub, from, to, now)
		if err != nil {
			return nil, err
		}
		if len(tl.Occurrences) == 0 {
			continue
		}
		result.Subscriptions = append(result.Subscriptions, tl)
		result.Summary.add(tl.Summary)
		for _, v := range tl.Occurrences {
			mt, ok := byMonth[v.Month]
			if !ok {
				mt = &MonthTotal{Month: v.Month, TotalDeclared: decimal.Zero, TotalPaid: decimal.Zero, TotalRemaining: decimal.Zero}
				byMonth[v.Month] = mt
				result.Months = append(result.Months, mt)
			}
			mt.TotalDeclared = mt.TotalDeclared.Add(v.Amount)
			mt.TotalPaid = mt.TotalPaid.Add(v.TotalPaid)
			mt.TotalRemaining = mt.TotalRemaining.Add(v.Remaining)
			mt.Occurrences++
			if v.IsFullyPaid {
				mt.PaidCount++
			}
		}
	}
	sort.Slice(result.Months, func(i, j int) bool { return result.Months[i].Month < result.Months[j].Month })
	return result, nil
}

// Occurrence reconciles a single month.
func (e *Engine) Occurrence(ctx context.Context, subscriptionId int, month Month) (*OccurrenceView, error) {
	now := e.now()
	st, err := e.load(ctx, subscriptionId, month, now)
	if err != nil {
		return nil, err
	}
	return st.view(now), nil
}

// ProjectYear projects every active subscription of the business for year.
func (e *Engine) ProjectYear(ctx context.Context, year int) ([]Occurrence, error) {
	subs, err := e.Store.ListActiveSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	return ProjectYear(subs, year, e.now()), nil
}

// AddPayment appends a payment of input.Amount to the occurrence. The amount
// must be positive and must not exceed the remaining balance.
func (e *Engine) AddPayment(ctx context.Context, input AddPaymentInput) (*OccurrenceView, error) {
	const op = "add_payment"
	if err := validatePaymentInput(input.PaidDate, &input.Amount); err != nil {
		transitionsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
		return nil, err
	}
	view, err := e.mutate(ctx, op, input.SubscriptionId, input.Month, func(ctx context.Context, st *occurrenceState, now time.Time) error {
		t := st.totals(now)
		if input.Amount.GreaterThan(t.Remaining) {
			return &ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("amount %s exceeds remaining balance %s", input.Amount.String(), t.Remaining.String()),
			}
		}
		return e.recordPayment(ctx, st, now, input.Amount, input.PaidDate, input.PaymentMethod, input.Notes, nil)
	})
	if err == nil {
		paymentsRecorded.Inc()
	}
	return view, err
}

// MarkPaid settles the occurrence in one step by paying its remaining balance.
func (e *Engine) MarkPaid(ctx context.Context, input MarkPaidInput) (*OccurrenceView, error) {
	const op = "mark_paid"
	if err := validatePaymentInput(input.PaidDate, nil); err != nil {
		transitionsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
		return nil, err
	}
	view, err := e.mutate(ctx, op, input.SubscriptionId, input.Month, func(ctx context.Context, st *occurrenceState, now time.Time) error {
		t := st.totals(now)
		if t.IsFullyPaid {
			return &ValidationError{Field: "month", Message: "occurrence is already fully paid"}
		}
		var rowNotes *string
		if input.Notes != "" {
			rowNotes = &input.Notes
		}
		return e.recordPayment(ctx, st, now, t.Remaining, input.PaidDate, input.PaymentMethod, input.Notes, rowNotes)
	})
	if err == nil {
		paymentsRecorded.Inc()
	}
	return view, err
}

// DeletePayment removes one payment of the occurrence and rebuilds the row's
// paid state from what remains.
func (e *Engine) DeletePayment(ctx context.Context, input DeletePaymentInput) (*OccurrenceView, error) {
	return e.mutate(ctx, "delete_payment", input.SubscriptionId, input.Month, func(ctx context.Context, st *occurrenceState, now time.Time) error {
		if st.row == nil || st.entryId == 0 || !hasPayment(st.payments, input.PaymentId) {
			return ErrPaymentNotFound
		}
		wasPaid := st.row.IsPaid
		if err := e.Store.DeletePayment(ctx, input.PaymentId); err != nil {
			return err
		}
		if err := e.refreshPayments(ctx, st); err != nil {
			return err
		}
		return e.applyState(ctx, st, now, LedgerState(st.amount(), st.payments), nil, wasPaid)
	})
}

// MarkUnpaid clears the row's paid fields. Payments stay in the ledger
// unless DeletePayments (or the engine default) asks for a purge.
func (e *Engine) MarkUnpaid(ctx context.Context, input MarkUnpaidInput) (*OccurrenceView, error) {
	purge := e.PurgePaymentsOnUnpaid
	if input.DeletePayments != nil {
		purge = *input.DeletePayments
	}
	return e.mutate(ctx, "mark_unpaid", input.SubscriptionId, input.Month, func(ctx context.Context, st *occurrenceState, now time.Time) error {
		if st.row == nil {
			return ErrProjectionEntryNotFound
		}
		wasPaid := st.row.IsPaid
		if purge {
			for _, p := range st.payments {
				if err := e.Store.DeletePayment(ctx, p.ID); err != nil {
					return err
				}
			}
			st.payments = nil
		}
		return e.applyState(ctx, st, now, ClearedState(), nil, wasPaid)
	})
}

// Resync rewrites the row's paid fields from the ledger total.
func (e *Engine) Resync(ctx context.Context, subscriptionId int, month Month) (*OccurrenceView, error) {
	return e.mutate(ctx, "resync", subscriptionId, month, func(ctx context.Context, st *occurrenceState, now time.Time) error {
		if st.row == nil {
			return nil
		}
		if _, err := e.ensureEntry(ctx, st); err != nil {
			return err
		}
		return e.applyState(ctx, st, now, LedgerState(st.amount(), st.payments), nil, st.row.IsPaid)
	})
}

// DeleteOccurrence removes a stored row and its ledger entry. Rows with
// payments are refused.
func (e *Engine) DeleteOccurrence(ctx context.Context, subscriptionId int, month Month) error {
	_, err := e.mutate(ctx, "delete_occurrence", subscriptionId, month, func(ctx context.Context, st *occurrenceState, now time.Time) error {
		if st.row == nil {
			return ErrProjectionEntryNotFound
		}
		if len(st.payments) > 0 {
			return &ValidationError{Field: "month", Message: "occurrence has payments; delete them first"}
		}
		if st.row.IsPaid {
			if err := e.publish(ctx, st, now, models.OccurrenceEventUnpaid, nil); err != nil {
				return err
			}
		}
		if st.entryId != 0 {
			if err := e.Store.DeleteLedgerEntry(ctx, st.entryId); err != nil {
				return err
			}
		}
		if err := e.Store.DeleteProjectionEntry(ctx, subscriptionId, st.row.ID); err != nil {
			return err
		}
		e.resolver.Forget(st.row.ID)
		st.row, st.entryId = nil, 0
		return nil
	})
	return err
}

// GenerateProjections stores a row and ledger entry for every projected
// occurrence in [from, to]. Existing rows are left untouched apart from
// materializing a missing ledger entry.
func (e *Engine) GenerateProjections(ctx context.Context, subscriptionId int, from, to Month) (result *GenerateResult, err error) {
	const op = "generate_projections"
	if to < from {
		err = &ValidationError{Field: "endMonth", Message: "endMonth must not be before startMonth"}
		transitionsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
		return nil, err
	}
	started := time.Now()
	ctx, span := tracer.Start(ctx, "timeline."+op, trace.WithAttributes(attribute.Int("subscription.id", subscriptionId)))
	defer func() {
		e.finish(span, op, started, err)
	}()

	now := e.now()
	res := &GenerateResult{SubscriptionId: subscriptionId, From: from, To: to}
	var touched []int
	err = e.Store.RunInTx(ctx, func(ctx context.Context) error {
		sub, err := e.Store.GetSubscription(ctx, subscriptionId)
		if err != nil {
			return err
		}
		rows, err := e.Store.ListProjectionEntries(ctx, subscriptionId, from.String(), to.String())
		if err != nil {
			return err
		}
		rowByMonth := make(map[string]*models.SubscriptionProjectionEntry, len(rows))
		for _, row := range rows {
			rowByMonth[row.Month] = row
		}
		for _, occ := range Project(sub, from, to, now) {
			st := &occurrenceState{sub: sub, occ: occ, row: rowByMonth[occ.Month.String()]}
			if st.row == nil {
				if err := e.ensureRow(ctx, st); err != nil {
					return err
				}
				res.Created++
			} else {
				res.Existing++
			}
			touched = append(touched, st.row.ID)
			repaired, err := e.ensureEntry(ctx, st)
			if err != nil {
				return err
			}
			if repaired {
				res.EntriesRepaired++
			}
		}
		return nil
	})
	if err != nil {
		for _, id := range touched {
			e.resolver.Forget(id)
		}
		e.logFailure(op, subscriptionId, from, err)
		return nil, err
	}
	return res, nil
}

type mutation func(ctx context.Context, st *occurrenceState, now time.Time) error

func (e *Engine) mutate(ctx context.Context, op string, subscriptionId int, month Month, fn mutation) (view *OccurrenceView, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "timeline."+op, trace.WithAttributes(
		attribute.Int("subscription.id", subscriptionId),
		attribute.String("occurrence.month", month.String()),
	))
	defer func() {
		e.finish(span, op, started, err)
	}()

	release, err := e.lock(ctx, subscriptionId, month)
	if err != nil {
		return nil, err
	}
	defer release()

	now := e.now()
	var st *occurrenceState
	err = e.Store.RunInTx(ctx, func(ctx context.Context) error {
		var lerr error
		st, lerr = e.load(ctx, subscriptionId, month, now)
		if lerr != nil {
			return lerr
		}
		return fn(ctx, st, now)
	})
	if err != nil {
		if st != nil && st.row != nil {
			e.resolver.Forget(st.row.ID)
		}
		e.logFailure(op, subscriptionId, month, err)
		return nil, err
	}
	for _, ev := range st.events {
		occurrenceEvents.WithLabelValues(string(ev)).Inc()
	}
	return st.view(now), nil
}

func (e *Engine) finish(span trace.Span, op string, started time.Time, err error) {
	transitionsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
	transitionDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) lock(ctx context.Context, subscriptionId int, month Month) (func(), error) {
	if e.Locker == nil {
		return func() {}, nil
	}
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	return e.Locker.Obtain(ctx, fmt.Sprintf("occurrence:%s:%d:%s", businessId, subscriptionId, month))
}

func (e *Engine) logFailure(op string, subscriptionId int, month Month, err error) {
	if IsValidationError(err) || IsNotFound(err) || errors.Is(err, utils.ErrorRecordNotFound) {
		return
	}
	config.LogError(e.Logger, "timeline", op, "transaction", map[string]interface{}{
		"subscription_id": subscriptionId,
		"month":           month.String(),
	}, err)
}

// load reads the occurrence inside the caller's transaction. A month that
// the recurrence no longer produces is still reachable while a stored row
// exists for it.
func (e *Engine) load(ctx context.Context, subscriptionId int, month Month, now time.Time) (*occurrenceState, error) {
	sub, err := e.Store.GetSubscription(ctx, subscriptionId)
	if err != nil {
		return nil, err
	}
	row, err := e.Store.FindProjectionEntry(ctx, subscriptionId, month.String())
	if err != nil {
		return nil, err
	}
	st := &occurrenceState{sub: sub, row: row}
	if occs := Project(sub, month, month, now); len(occs) == 1 {
		st.occ = occs[0]
	} else if row != nil {
		st.occ = Occurrence{SubscriptionId: subscriptionId, Month: month, Amount: row.Amount, IsProjected: row.IsProjected}
	} else {
		return nil, ErrOccurrenceNotFound
	}

	if row == nil {
		return st, nil
	}
	entryId, err := e.resolver.Resolve(ctx, subscriptionId, row)
	if errors.Is(err, ErrEntryNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.entryId = entryId
	if err := e.refreshPayments(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) ensureRow(ctx context.Context, st *occurrenceState) error {
	if st.row != nil {
		return nil
	}
	row, err := e.Store.UpsertProjectionEntry(ctx, st.sub.ID, &models.NewSubscriptionProjectionEntry{
		Month:       st.occ.Month.String(),
		Amount:      st.occ.Amount,
		IsProjected: st.occ.IsProjected,
	})
	if err != nil {
		return err
	}
	st.row = row
	return nil
}

// ensureEntry resolves the row's ledger entry, materializing it once when
// the row predates it. It reports whether an entry had to be created.
func (e *Engine) ensureEntry(ctx context.Context, st *occurrenceState) (bool, error) {
	if st.entryId != 0 {
		return false, nil
	}
	created := false
	id, err := e.resolver.Resolve(ctx, st.sub.ID, st.row)
	if errors.Is(err, ErrEntryNotFound) && st.row != nil && st.row.ID != 0 {
		if _, cerr := e.Store.CreateLedgerEntry(ctx, models.LedgerEntryForProjection(st.sub, st.row)); cerr != nil {
			return false, cerr
		}
		created = true
		id, err = e.resolver.Resolve(ctx, st.sub.ID, st.row)
	}
	if err != nil {
		return false, err
	}
	st.entryId = id
	return created, nil
}

func (e *Engine) refreshPayments(ctx context.Context, st *occurrenceState) error {
	payments, err := e.Store.ListPaymentsByEntry(ctx, st.entryId)
	if err != nil {
		return err
	}
	st.payments = payments
	return nil
}

// recordPayment runs the add-payment steps in order: row, entry, payment,
// row state, event.
func (e *Engine) recordPayment(ctx context.Context, st *occurrenceState, now time.Time, amount decimal.Decimal, paidDate time.Time, method, notes string, rowNotes *string) error {
	wasPaid := st.row != nil && st.row.IsPaid
	if err := e.ensureRow(ctx, st); err != nil {
		return err
	}
	if _, err := e.ensureEntry(ctx, st); err != nil {
		return err
	}
	_, err := e.Store.CreatePayment(ctx, &models.NewPayment{
		EntryId:       st.entryId,
		PaymentDate:   paidDate,
		Amount:        amount,
		PaymentMethod: method,
		Notes:         notes,
	})
	if err != nil {
		return err
	}
	if err := e.refreshPayments(ctx, st); err != nil {
		return err
	}
	return e.applyState(ctx, st, now, StateAfterAdd(st.amount(), SumPaid(st.payments), paidDate), rowNotes, wasPaid)
}

// applyState writes the row and emits an event when the paid flag flips.
func (e *Engine) applyState(ctx context.Context, st *occurrenceState, now time.Time, state PaidState, notes *string, wasPaid bool) error {
	row, err := e.Store.UpdateProjectionEntry(ctx, st.sub.ID, st.row.ID, state.update(notes))
	if err != nil {
		return err
	}
	st.row = row
	switch {
	case !wasPaid && state.IsPaid:
		return e.publish(ctx, st, now, models.OccurrenceEventPaid, state.PaidDate)
	case wasPaid && !state.IsPaid:
		return e.publish(ctx, st, now, models.OccurrenceEventUnpaid, nil)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, st *occurrenceState, now time.Time, eventType models.OccurrenceEventType, paidDate *time.Time) error {
	err := e.Store.PublishOccurrenceEvent(ctx, &models.OccurrenceEvent{
		Type:              eventType,
		SubscriptionId:    st.sub.ID,
		Month:             st.occ.Month.String(),
		ProjectionEntryId: st.row.ID,
		OccurredAt:        now,
		Snapshot: models.OccurrenceSnapshot{
			EntryId:          st.entryId,
			SubscriptionName: st.sub.Name,
			Category:         st.sub.Category,
			Vendor:           st.sub.Vendor,
			Amount:           st.amount(),
			TotalPaid:        SumPaid(st.payments),
			PaidDate:         paidDate,
		},
	})
	if err != nil {
		return err
	}
	st.events = append(st.events, eventType)
	return nil
}

func validatePaymentInput(paidDate time.Time, amount *decimal.Decimal) error {
	if paidDate.IsZero() {
		return &ValidationError{Field: "paidDate", Message: "paid date is required"}
	}
	if amount != nil && !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "amount must be greater than 0"}
	}
	return nil
}

func hasPayment(payments []*models.Payment, id int) bool {
	for _, p := range payments {
		if p.ID == id {
			return true
		}
	}
	return false
}
