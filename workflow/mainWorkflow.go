package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const expenseHandlerName = "SUBSCRIPTION_EXPENSE"

// ErrPoisonMessage marks messages that can never be processed. Transports
// should ack them instead of redelivering.
var ErrPoisonMessage = errors.New("poison message")

// EventFromMessage rebuilds the occurrence event carried by a message.
func EventFromMessage(m config.PubSubMessage) (*models.OccurrenceEvent, error) {
	eventType := models.OccurrenceEventType(m.EventType)
	if !eventType.IsValid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrPoisonMessage, m.EventType)
	}
	if m.BusinessId == "" || m.SubscriptionId <= 0 || m.ProjectionEntryId <= 0 || m.Month == "" {
		return nil, fmt.Errorf("%w: incomplete occurrence message %d", ErrPoisonMessage, m.ID)
	}
	snapshot, err := models.DecodeOccurrenceSnapshot(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	return &models.OccurrenceEvent{
		Type:              eventType,
		SubscriptionId:    m.SubscriptionId,
		Month:             m.Month,
		ProjectionEntryId: m.ProjectionEntryId,
		OccurredAt:        m.OccurredAt,
		Snapshot:          snapshot,
	}, nil
}

// ProcessMessage applies one outbox message exactly once per record id and
// marks the record processed in the same transaction.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	event, err := EventFromMessage(m)
	if err != nil {
		config.LogError(logger, "mainWorkflow.go", "ProcessMessage", "EventFromMessage", m.ID, err)
		return err
	}
	ctx = utils.SetBusinessIdInContext(ctx, m.BusinessId)
	if m.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, m.CorrelationId)
	}
	messageId := strconv.Itoa(m.ID)

	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireExpenseLock(tx, m.BusinessId, m.SubscriptionId); err != nil {
			return err
		}
		defer ReleaseExpenseLock(tx, m.BusinessId, m.SubscriptionId)

		skip, err := BeginIdempotency(tx, m.BusinessId, expenseHandlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			logger.WithFields(logrus.Fields{
				"field":       "ProcessMessage",
				"business_id": m.BusinessId,
				"record_id":   m.ID,
			}).Info("duplicate delivery skipped")
			return markRecordProcessed(tx, m.ID)
		}
		if err := ProcessExpenseWorkflow(ctx, tx, logger, m.ID, m.BusinessId, event); err != nil {
			return err
		}
		if err := MarkIdempotencySucceeded(tx, m.BusinessId, expenseHandlerName, messageId); err != nil {
			return err
		}
		return markRecordProcessed(tx, m.ID)
	})
}

func markRecordProcessed(tx *gorm.DB, recordId int) error {
	now := time.Now().UTC()
	return tx.Model(&models.PubSubMessageRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"is_processed":            true,
			"processing_status":       models.OutboxProcessStatusSucceeded,
			"processed_at":            &now,
			"next_process_attempt_at": nil,
			"last_process_error":      nil,
		}).Error
}
