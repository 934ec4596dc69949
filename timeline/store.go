package timeline

import (
	"context"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
)

// Clock supplies "now" for projection and past-due checks.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

type SubscriptionSource interface {
	GetSubscription(ctx context.Context, id int) (*models.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error)
}

// ProjectionStore persists one row per (subscription, month). Months are
// "YYYY-MM"; blank bounds are open. Find returns nil, nil when absent.
// Creating a row also materializes its ledger entry.
type ProjectionStore interface {
	ListProjectionEntries(ctx context.Context, subscriptionId int, fromMonth, toMonth string) ([]*models.SubscriptionProjectionEntry, error)
	FindProjectionEntry(ctx context.Context, subscriptionId int, month string) (*models.SubscriptionProjectionEntry, error)
	UpsertProjectionEntry(ctx context.Context, subscriptionId int, input *models.NewSubscriptionProjectionEntry) (*models.SubscriptionProjectionEntry, error)
	UpdateProjectionEntry(ctx context.Context, subscriptionId, id int, update *models.SubscriptionProjectionEntryUpdate) (*models.SubscriptionProjectionEntry, error)
	DeleteProjectionEntry(ctx context.Context, subscriptionId, id int) error
}

// LedgerEntryStore finds entries by owning schedule. Find returns nil, nil
// when absent.
type LedgerEntryStore interface {
	FindLedgerEntry(ctx context.Context, lookup models.LedgerEntryLookup) (*models.Entry, error)
	CreateLedgerEntry(ctx context.Context, input *models.NewEntry) (*models.Entry, error)
	DeleteLedgerEntry(ctx context.Context, id int) error
}

type PaymentLedger interface {
	CreatePayment(ctx context.Context, input *models.NewPayment) (*models.Payment, error)
	DeletePayment(ctx context.Context, id int) error
	ListPaymentsByEntry(ctx context.Context, entryId int) ([]*models.Payment, error)
	ListPaymentsByEntries(ctx context.Context, entryIds []int) ([]*models.Payment, error)
}

// EventPublisher records occurrence events; implementations write inside
// the running transaction.
type EventPublisher interface {
	PublishOccurrenceEvent(ctx context.Context, event *models.OccurrenceEvent) error
}

// TxRunner runs fn in one transaction carried by the context passed to fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OccurrenceLocker serializes writers of one occurrence. release must be
// safe to call once.
type OccurrenceLocker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

type Store interface {
	SubscriptionSource
	ProjectionStore
	LedgerEntryStore
	PaymentLedger
	EventPublisher
	TxRunner
}
