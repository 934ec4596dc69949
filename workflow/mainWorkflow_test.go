package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/shopspring/decimal"
)

// DB-free checks of the consumer decisions. The MySQL paths are covered by
// the INTEGRATION_TESTS suite in models.

func validMessage(t *testing.T) config.PubSubMessage {
	t.Helper()
	payload, err := json.Marshal(models.OccurrenceSnapshot{
		EntryId:          7,
		SubscriptionName: "Figma",
		Category:         "design",
		Amount:           decimal.NewFromInt(45),
		TotalPaid:        decimal.NewFromInt(45),
	})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return config.PubSubMessage{
		ID:                11,
		BusinessId:        "biz-1",
		EventType:         string(models.OccurrenceEventPaid),
		SubscriptionId:    3,
		Month:             "2025-04",
		ProjectionEntryId: 21,
		OccurredAt:        time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC),
		Payload:           payload,
	}
}

func TestEventFromMessage(t *testing.T) {
	m := validMessage(t)
	event, err := EventFromMessage(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != models.OccurrenceEventPaid || event.Month != "2025-04" || event.ProjectionEntryId != 21 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Snapshot.SubscriptionName != "Figma" || !event.Snapshot.TotalPaid.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("unexpected snapshot: %+v", event.Snapshot)
	}
}

func TestEventFromMessage_Poison(t *testing.T) {
	cases := map[string]func(m *config.PubSubMessage){
		"unknown type":     func(m *config.PubSubMessage) { m.EventType = "INVOICE_CREATED" },
		"missing business": func(m *config.PubSubMessage) { m.BusinessId = "" },
		"missing entry":    func(m *config.PubSubMessage) { m.ProjectionEntryId = 0 },
		"empty payload":    func(m *config.PubSubMessage) { m.Payload = nil },
		"broken payload":   func(m *config.PubSubMessage) { m.Payload = []byte("{") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := validMessage(t)
			mutate(&m)
			_, err := EventFromMessage(m)
			if !errors.Is(err, ErrPoisonMessage) {
				t.Fatalf("expected ErrPoisonMessage, got %v", err)
			}
		})
	}
}

func TestDecideExpenseAction(t *testing.T) {
	paid := &models.SubscriptionProjectionEntry{ID: 1, IsPaid: true}
	unpaid := &models.SubscriptionProjectionEntry{ID: 1}

	cases := []struct {
		name  string
		event models.OccurrenceEventType
		row   *models.SubscriptionProjectionEntry
		want  expenseAction
	}{
		{"paid event on paid row", models.OccurrenceEventPaid, paid, expenseActionBook},
		{"paid event after later unpaid", models.OccurrenceEventPaid, unpaid, expenseActionRemove},
		{"unpaid event on unpaid row", models.OccurrenceEventUnpaid, unpaid, expenseActionRemove},
		{"unpaid event after later paid", models.OccurrenceEventUnpaid, paid, expenseActionNone},
		{"row deleted", models.OccurrenceEventPaid, nil, expenseActionRemove},
	}
	for _, tc := range cases {
		if got := decideExpenseAction(tc.event, tc.row); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestOutboxDispatcherBackoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second, MaxBackoff: time.Minute}
	cases := map[int]time.Duration{
		0: 5 * time.Second,
		1: 5 * time.Second,
		2: 10 * time.Second,
		3: 20 * time.Second,
		4: 40 * time.Second,
		5: time.Minute,
		9: time.Minute,
	}
	for attempt, want := range cases {
		if got := d.backoff(attempt); got != want {
			t.Fatalf("attempt %d: got %v want %v", attempt, got, want)
		}
	}
}

// fakeProcessor mirrors ProcessMessage's guarantees: one handler run per
// (business, handler, record) and per-business serialization.
type fakeProcessor struct {
	muByBiz map[string]*sync.Mutex
	mu      sync.Mutex
	seen    map[string]bool
	calls   int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{muByBiz: map[string]*sync.Mutex{}, seen: map[string]bool{}}
}

func (p *fakeProcessor) process(businessID, messageID string, fn func()) {
	p.mu.Lock()
	bm := p.muByBiz[businessID]
	if bm == nil {
		bm = &sync.Mutex{}
		p.muByBiz[businessID] = bm
	}
	p.mu.Unlock()

	bm.Lock()
	defer bm.Unlock()

	key := businessID + "|" + expenseHandlerName + "|" + messageID
	p.mu.Lock()
	if p.seen[key] {
		p.mu.Unlock()
		return
	}
	p.seen[key] = true
	p.mu.Unlock()

	fn()

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func TestDuplicateDelivery_BooksOnce(t *testing.T) {
	p := newFakeProcessor()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.process("biz-1", "11", func() {})
		}()
	}
	wg.Wait()
	if p.calls != 1 {
		t.Fatalf("expected exactly 1 processing call, got %d", p.calls)
	}
}

func TestExpenseLockName(t *testing.T) {
	if got := expenseLockName("biz-1", 3); got != "expense:biz-1:3" {
		t.Fatalf("unexpected lock name %q", got)
	}
}

func TestProcessRetryPolicy(t *testing.T) {
	cfg := ProcessRetryConfig{MaxAttempts: 4, BaseBackoff: 5 * time.Second, MaxBackoff: 30 * time.Second}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for attempt, want := range map[int]time.Duration{0: 5 * time.Second, 1: 5 * time.Second, 2: 10 * time.Second, 3: 20 * time.Second, 4: 30 * time.Second, 60: 30 * time.Second} {
		if got := cfg.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %s, want %s", attempt, got, want)
		}
	}

	status, next := cfg.failureStatus(1, errors.New("db down"), now)
	if status != models.OutboxProcessStatusFailed || next == nil || !next.Equal(now.Add(5*time.Second)) {
		t.Fatalf("first failure should retry after base backoff, got %s %v", status, next)
	}
	status, next = cfg.failureStatus(4, errors.New("db down"), now)
	if status != models.OutboxProcessStatusDead || next != nil {
		t.Fatalf("exhausted attempts should be DEAD, got %s", status)
	}
	status, _ = cfg.failureStatus(1, fmt.Errorf("%w: bad payload", ErrPoisonMessage), now)
	if status != models.OutboxProcessStatusDead {
		t.Fatalf("poison message should be DEAD on first attempt, got %s", status)
	}
}
