package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OccurrenceEvent announces that an occurrence crossed the paid boundary.
// Expense bookkeeping subscribes to it.
type OccurrenceEvent struct {
	Type              OccurrenceEventType `json:"type"`
	SubscriptionId    int                 `json:"subscription_id"`
	Month             string              `json:"month"`
	ProjectionEntryId int                 `json:"projection_entry_id"`
	OccurredAt        time.Time           `json:"occurred_at"`
	Snapshot          OccurrenceSnapshot  `json:"snapshot"`
}

// OccurrenceSnapshot carries what a consumer needs without reading back
// the subscription.
type OccurrenceSnapshot struct {
	EntryId          int             `json:"entry_id"`
	SubscriptionName string          `json:"subscription_name"`
	Category         string          `json:"category"`
	Vendor           string          `json:"vendor"`
	Amount           decimal.Decimal `json:"amount"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	PaidDate         *time.Time      `json:"paid_date"`
}

// PublishOccurrenceEvent writes the event to the outbox using db, which
// should be the caller's transaction.
func PublishOccurrenceEvent(ctx context.Context, db *gorm.DB, businessId string, event *OccurrenceEvent) error {
	if event == nil || !event.Type.IsValid() {
		return errors.New("invalid occurrence event")
	}
	payload, err := json.Marshal(event.Snapshot)
	if err != nil {
		return err
	}
	record := PubSubMessageRecord{
		BusinessId:        businessId,
		EventType:         event.Type,
		SubscriptionId:    event.SubscriptionId,
		Month:             event.Month,
		ProjectionEntryId: event.ProjectionEntryId,
		OccurredAt:        event.OccurredAt,
		Payload:           payload,
		PublishStatus:     OutboxPublishStatusPending,
		ProcessingStatus:  OutboxProcessStatusPending,
		CorrelationId:     correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

// DecodeOccurrenceSnapshot is the consumer-side inverse of the payload.
func DecodeOccurrenceSnapshot(payload []byte) (OccurrenceSnapshot, error) {
	var snap OccurrenceSnapshot
	if len(payload) == 0 {
		return snap, errors.New("empty occurrence payload")
	}
	err := json.Unmarshal(payload, &snap)
	return snap, err
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		return cid
	}
	return uuid.NewString()
}
