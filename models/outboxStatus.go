package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"gorm.io/gorm"
)

// OutboxPostingStatus is the consumer-side status of an occurrence event.
// Publish states such as SENT are reported separately.
type OutboxPostingStatus string

const (
	OutboxPostingStatusPending    OutboxPostingStatus = "PENDING"
	OutboxPostingStatusProcessing OutboxPostingStatus = "PROCESSING"
	OutboxPostingStatusFailed     OutboxPostingStatus = "FAILED"
	OutboxPostingStatusDead       OutboxPostingStatus = "DEAD"
	OutboxPostingStatusSucceeded  OutboxPostingStatus = "SUCCEEDED"
)

// OutboxStatus is the latest outbox row for an occurrence.
type OutboxStatus struct {
	RecordId         int                 `json:"record_id"`
	EventType        OccurrenceEventType `json:"event_type"`
	SubscriptionId   int                 `json:"subscription_id"`
	Month            string              `json:"month"`
	PublishStatus    string              `json:"publish_status"`
	ProcessingStatus OutboxPostingStatus `json:"processing_status"`
	IsProcessed      bool                `json:"is_processed"`
	PublishAttempts  int                 `json:"publish_attempts"`
	ProcessAttempts  int                 `json:"process_attempts"`
	NextAttemptAt    *time.Time          `json:"next_attempt_at"`
	LastPublishError *string             `json:"last_publish_error"`
	LastProcessError *string             `json:"last_process_error"`
	CreatedAt        time.Time           `json:"created_at"`
	PublishedAt      *time.Time          `json:"published_at"`
	ProcessedAt      *time.Time          `json:"processed_at"`
}

func postingStatusOf(rec *PubSubMessageRecord) OutboxPostingStatus {
	switch rec.ProcessingStatus {
	case OutboxProcessStatusProcessing:
		return OutboxPostingStatusProcessing
	case OutboxProcessStatusFailed:
		return OutboxPostingStatusFailed
	case OutboxProcessStatusDead:
		return OutboxPostingStatusDead
	case OutboxProcessStatusSucceeded:
		return OutboxPostingStatusSucceeded
	}
	if rec.IsProcessed {
		return OutboxPostingStatusSucceeded
	}
	return OutboxPostingStatusPending
}

func outboxStatusOf(rec *PubSubMessageRecord) *OutboxStatus {
	return &OutboxStatus{
		RecordId:         rec.ID,
		EventType:        rec.EventType,
		SubscriptionId:   rec.SubscriptionId,
		Month:            rec.Month,
		PublishStatus:    rec.PublishStatus,
		ProcessingStatus: postingStatusOf(rec),
		IsProcessed:      rec.IsProcessed,
		PublishAttempts:  rec.PublishAttempts,
		ProcessAttempts:  rec.ProcessAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		LastProcessError: rec.LastProcessError,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
		ProcessedAt:      rec.ProcessedAt,
	}
}

// GetOccurrenceOutboxStatus reports the newest event written for the month.
func GetOccurrenceOutboxStatus(ctx context.Context, subscriptionId int, month string) (*OutboxStatus, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var rec PubSubMessageRecord
	err = config.GetDB().WithContext(ctx).
		Where("business_id = ? AND subscription_id = ? AND month = ?", businessId, subscriptionId, month).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return outboxStatusOf(&rec), nil
}

// ReplayOutboxRecord puts a FAILED or DEAD record back in the dispatch
// queue. The consumer settles to the current row state, so replaying an
// old event is harmless.
func ReplayOutboxRecord(ctx context.Context, recordId int) (*OutboxStatus, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	db := config.GetDB().WithContext(ctx)

	res := db.Model(&PubSubMessageRecord{}).
		Where("id = ? AND business_id = ?", recordId, businessId).
		Where("(publish_status IN ? OR processing_status IN ?)",
			[]string{OutboxPublishStatusFailed, OutboxPublishStatusDead},
			[]string{OutboxProcessStatusFailed, OutboxProcessStatusDead}).
		Updates(map[string]interface{}{
			"is_processed":            false,
			"locked_at":               nil,
			"locked_by":               nil,
			"publish_status":          OutboxPublishStatusPending,
			"publish_attempts":        0,
			"next_attempt_at":         &now,
			"last_publish_error":      nil,
			"processing_status":       OutboxProcessStatusPending,
			"process_attempts":        0,
			"next_process_attempt_at": nil,
			"last_process_error":      nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	var rec PubSubMessageRecord
	if err := db.Where("id = ?", recordId).First(&rec).Error; err != nil {
		return nil, err
	}
	return outboxStatusOf(&rec), nil
}
