// Package timelinetest provides an in-memory timeline store for tests.
package timelinetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
)

const BusinessId = "biz-test"

type txKey struct{}

type snapshot struct {
	subs     map[int]models.Subscription
	rows     map[int]models.SubscriptionProjectionEntry
	entries  map[int]models.Entry
	payments map[int]models.Payment
	events   []models.OccurrenceEvent
	nextId   int
}

// MemStore keeps subscriptions, projection rows, ledger entries, payments
// and published events in maps. RunInTx restores a snapshot when fn fails,
// so partial writes are never visible after an error.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	subs     map[int]models.Subscription
	rows     map[int]models.SubscriptionProjectionEntry
	entries  map[int]models.Entry
	payments map[int]models.Payment
	events   []models.OccurrenceEvent
	nextId   int

	// FailOn makes the named method return the error.
	FailOn map[string]error
	// FindLedgerEntryCalls counts lookups, for cache assertions.
	FindLedgerEntryCalls int
	// HideLedgerEntries makes FindLedgerEntry report nothing while entries
	// are still created, like a lookup against a lagging replica.
	HideLedgerEntries bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		subs:     map[int]models.Subscription{},
		rows:     map[int]models.SubscriptionProjectionEntry{},
		entries:  map[int]models.Entry{},
		payments: map[int]models.Payment{},
		FailOn:   map[string]error{},
		nextId:   100,
	}
}

func (s *MemStore) fail(method string) error {
	return s.FailOn[method]
}

func (s *MemStore) id() int {
	s.nextId++
	return s.nextId
}

// AddSubscription stores sub and returns it with an assigned id when zero.
func (s *MemStore) AddSubscription(sub models.Subscription) *models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = s.id()
	}
	if sub.BusinessId == "" {
		sub.BusinessId = BusinessId
	}
	s.subs[sub.ID] = sub
	out := sub
	return &out
}

// AddLegacyRow stores a projection row without its ledger entry, the way
// rows written before entries existed look.
func (s *MemStore) AddLegacyRow(row models.SubscriptionProjectionEntry) *models.SubscriptionProjectionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.ID == 0 {
		row.ID = s.id()
	}
	row.BusinessId = BusinessId
	s.rows[row.ID] = row
	out := row
	return &out
}

func (s *MemStore) Events() []models.OccurrenceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OccurrenceEvent(nil), s.events...)
}

func (s *MemStore) Rows(subscriptionId int) []models.SubscriptionProjectionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubscriptionProjectionEntry
	for _, r := range s.rows {
		if r.SubscriptionId == subscriptionId {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func (s *MemStore) Entries() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		subs:     make(map[int]models.Subscription, len(s.subs)),
		rows:     make(map[int]models.SubscriptionProjectionEntry, len(s.rows)),
		entries:  make(map[int]models.Entry, len(s.entries)),
		payments: make(map[int]models.Payment, len(s.payments)),
		events:   append([]models.OccurrenceEvent(nil), s.events...),
		nextId:   s.nextId,
	}
	for k, v := range s.subs {
		snap.subs[k] = v
	}
	for k, v := range s.rows {
		snap.rows[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	return snap
}

func (s *MemStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs, s.rows, s.entries, s.payments = snap.subs, snap.rows, snap.entries, snap.payments
	s.events, s.nextId = snap.events, snap.nextId
}

func (s *MemStore) GetSubscription(ctx context.Context, id int) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetSubscription"); err != nil {
		return nil, err
	}
	sub, ok := s.subs[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return &sub, nil
}

func (s *MemStore) ListActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range s.subs {
		if sub.Active() {
			sub := sub
			out = append(out, &sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListProjectionEntries(ctx context.Context, subscriptionId int, fromMonth, toMonth string) ([]*models.SubscriptionProjectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SubscriptionProjectionEntry
	for _, r := range s.rows {
		if r.SubscriptionId != subscriptionId {
			continue
		}
		if fromMonth != "" && r.Month < fromMonth {
			continue
		}
		if toMonth != "" && r.Month > toMonth {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *MemStore) FindProjectionEntry(ctx context.Context, subscriptionId int, month string) (*models.SubscriptionProjectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.rowFor(subscriptionId, month); row != nil {
		out := *row
		return &out, nil
	}
	return nil, nil
}

func (s *MemStore) rowFor(subscriptionId int, month string) *models.SubscriptionProjectionEntry {
	for _, r := range s.rows {
		if r.SubscriptionId == subscriptionId && r.Month == month {
			r := r
			return &r
		}
	}
	return nil
}

func (s *MemStore) UpsertProjectionEntry(ctx context.Context, subscriptionId int, input *models.NewSubscriptionProjectionEntry) (*models.SubscriptionProjectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertProjectionEntry"); err != nil {
		return nil, err
	}
	sub, ok := s.subs[subscriptionId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	row := s.rowFor(subscriptionId, input.Month)
	created := row == nil
	if created {
		row = &models.SubscriptionProjectionEntry{
			ID:             s.id(),
			BusinessId:     BusinessId,
			SubscriptionId: subscriptionId,
			Month:          input.Month,
			CreatedAt:      time.Now(),
		}
	}
	row.Amount = input.Amount
	row.IsProjected = input.IsProjected
	row.IsPaid = input.IsPaid
	row.PaidDate = input.PaidDate
	row.ActualAmount = input.ActualAmount
	row.Notes = input.Notes
	s.rows[row.ID] = *row
	if created {
		s.createEntryLocked(models.LedgerEntryForProjection(&sub, row))
	}
	out := *row
	return &out, nil
}

func (s *MemStore) UpdateProjectionEntry(ctx context.Context, subscriptionId, id int, update *models.SubscriptionProjectionEntryUpdate) (*models.SubscriptionProjectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateProjectionEntry"); err != nil {
		return nil, err
	}
	row, ok := s.rows[id]
	if !ok || row.SubscriptionId != subscriptionId {
		return nil, utils.ErrorRecordNotFound
	}
	row.IsPaid = update.IsPaid
	row.PaidDate = update.PaidDate
	row.ActualAmount = update.ActualAmount
	if update.Notes != nil {
		notes := *update.Notes
		row.Notes = &notes
	}
	s.rows[id] = row
	out := row
	return &out, nil
}

func (s *MemStore) DeleteProjectionEntry(ctx context.Context, subscriptionId, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.SubscriptionId != subscriptionId {
		return utils.ErrorRecordNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *MemStore) FindLedgerEntry(ctx context.Context, lookup models.LedgerEntryLookup) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindLedgerEntryCalls++
	if err := s.fail("FindLedgerEntry"); err != nil {
		return nil, err
	}
	if s.HideLedgerEntries {
		return nil, nil
	}
	if e := s.findEntryLocked(lookup); e != nil {
		out := *e
		return &out, nil
	}
	return nil, nil
}

func (s *MemStore) findEntryLocked(lookup models.LedgerEntryLookup) *models.Entry {
	var found *models.Entry
	for _, e := range s.entries {
		if e.EntryType == lookup.EntryType && e.ReferenceId == lookup.ReferenceId && e.ScheduleEntryId == lookup.ScheduleEntryId {
			if found == nil || e.ID < found.ID {
				e := e
				found = &e
			}
		}
	}
	return found
}

func (s *MemStore) CreateLedgerEntry(ctx context.Context, input *models.NewEntry) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateLedgerEntry"); err != nil {
		return nil, err
	}
	e := s.createEntryLocked(input)
	return &e, nil
}

func (s *MemStore) createEntryLocked(input *models.NewEntry) models.Entry {
	if existing := s.findEntryLocked(models.LedgerEntryLookup{
		EntryType:       input.EntryType,
		ReferenceId:     input.ReferenceId,
		ScheduleEntryId: input.ScheduleEntryId,
	}); existing != nil {
		return *existing
	}
	e := models.Entry{
		ID:              s.id(),
		BusinessId:      BusinessId,
		Direction:       input.Direction,
		EntryType:       input.EntryType,
		Name:            input.Name,
		Amount:          input.Amount,
		Description:     input.Description,
		Category:        input.Category,
		Vendor:          input.Vendor,
		EntryDate:       input.EntryDate,
		DueDate:         input.DueDate,
		ReferenceId:     input.ReferenceId,
		ScheduleEntryId: input.ScheduleEntryId,
		IsActive:        utils.NewTrue(),
	}
	s.entries[e.ID] = e
	return e
}

func (s *MemStore) DeleteLedgerEntry(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemStore) CreatePayment(ctx context.Context, input *models.NewPayment) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreatePayment"); err != nil {
		return nil, err
	}
	paidDate := input.PaymentDate
	p := models.Payment{
		ID:            s.id(),
		BusinessId:    BusinessId,
		EntryId:       input.EntryId,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		IsPaid:        utils.NewTrue(),
		PaidDate:      &paidDate,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
	}
	s.payments[p.ID] = p
	out := p
	return &out, nil
}

// AddPayment writes a ledger payment directly, bypassing the engine.
func (s *MemStore) AddPayment(p models.Payment) *models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	p.BusinessId = BusinessId
	s.payments[p.ID] = p
	out := p
	return &out
}

func (s *MemStore) DeletePayment(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeletePayment"); err != nil {
		return err
	}
	if _, ok := s.payments[id]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *MemStore) ListPaymentsByEntry(ctx context.Context, entryId int) ([]*models.Payment, error) {
	return s.ListPaymentsByEntries(ctx, []int{entryId})
}

func (s *MemStore) ListPaymentsByEntries(ctx context.Context, entryIds []int) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int]bool, len(entryIds))
	for _, id := range entryIds {
		want[id] = true
	}
	var out []*models.Payment
	for _, p := range s.payments {
		if want[p.EntryId] {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) PublishOccurrenceEvent(ctx context.Context, event *models.OccurrenceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("PublishOccurrenceEvent"); err != nil {
		return err
	}
	s.events = append(s.events, *event)
	return nil
}
