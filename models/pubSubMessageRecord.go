package models

import (
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
)

// Publish side: PubSubMessageRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Consumer side: PubSubMessageRecord.ProcessingStatus.
const (
	OutboxProcessStatusPending    = "PENDING"
	OutboxProcessStatusProcessing = "PROCESSING"
	OutboxProcessStatusSucceeded  = "SUCCEEDED"
	OutboxProcessStatusFailed     = "FAILED"
	OutboxProcessStatusDead       = "DEAD"
)

// PubSubMessageRecord is the transactional outbox row for occurrence events.
// It is written in the same transaction as the state change it announces;
// the dispatcher publishes it after commit.
type PubSubMessageRecord struct {
	ID                int                 `gorm:"primary_key;index:idx_outbox_dispatch,priority:3;index:idx_outbox_reconcile,priority:3" json:"id"`
	BusinessId        string              `gorm:"size:64;not null;index;index:idx_outbox_reconcile,priority:1" json:"business_id"`
	EventType         OccurrenceEventType `gorm:"type:enum('OCCURRENCE_PAID','OCCURRENCE_UNPAID');not null" json:"event_type"`
	SubscriptionId    int                 `gorm:"not null;index" json:"subscription_id"`
	Month             string              `gorm:"size:7;not null" json:"month"`
	ProjectionEntryId int                 `gorm:"not null" json:"projection_entry_id"`
	OccurredAt        time.Time           `gorm:"index;not null" json:"occurred_at"`
	Payload           []byte              `gorm:"type:blob" json:"payload"`
	IsProcessed       bool                `gorm:"index;not null;index:idx_outbox_reconcile,priority:2" json:"is_processed"`
	// Publish metadata (dispatcher side).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	// Processing metadata (consumer side).
	ProcessingStatus     string     `gorm:"size:20;not null;default:'PENDING';index" json:"processing_status"`
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt          *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record PubSubMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                record.ID,
		BusinessId:        record.BusinessId,
		EventType:         string(record.EventType),
		SubscriptionId:    record.SubscriptionId,
		Month:             record.Month,
		ProjectionEntryId: record.ProjectionEntryId,
		OccurredAt:        record.OccurredAt,
		Payload:           record.Payload,
		CorrelationId:     record.CorrelationId,
	}
}
