package workflow

import (
	"context"
	"errors"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProcessRetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func ProcessRetryConfigFromEnv() ProcessRetryConfig {
	cfg := ProcessRetryConfig{
		MaxAttempts: 10,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  10 * time.Minute,
	}

	if v := os.Getenv("OUTBOX_PROCESS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAttempts = n
		}
	}
	if v := os.Getenv("OUTBOX_PROCESS_BASE_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BaseBackoff = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("OUTBOX_PROCESS_MAX_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxBackoff = time.Duration(n) * time.Second
		}
	}
	return cfg
}

// Backoff is base * 2^(attempt-1), capped at MaxBackoff.
func (cfg ProcessRetryConfig) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return cfg.BaseBackoff
	}
	delay := time.Duration(float64(cfg.BaseBackoff) * math.Pow(2, float64(attempt-1)))
	if delay > cfg.MaxBackoff || delay <= 0 {
		return cfg.MaxBackoff
	}
	return delay
}

// failureStatus decides what a failed attempt leaves behind. Poison
// messages go DEAD at once; others go DEAD after MaxAttempts.
func (cfg ProcessRetryConfig) failureStatus(attempts int, procErr error, now time.Time) (string, *time.Time) {
	if errors.Is(procErr, ErrPoisonMessage) || attempts >= cfg.MaxAttempts {
		return models.OutboxProcessStatusDead, nil
	}
	next := now.Add(cfg.Backoff(attempts))
	return models.OutboxProcessStatusFailed, &next
}

func MarkRecordProcessing(ctx context.Context, db *gorm.DB, recordId int) {
	if recordId <= 0 {
		return
	}
	_ = db.WithContext(ctx).
		Model(&models.PubSubMessageRecord{}).
		Where("id = ? AND processing_status <> ?", recordId, models.OutboxProcessStatusDead).
		Updates(map[string]interface{}{
			"processing_status": models.OutboxProcessStatusProcessing,
		}).Error
}

// MarkRecordFailed records a failed attempt outside the rolled back handler
// transaction and reports whether the record is now DEAD. DEAD records are
// also flagged processed so no worker picks them up again.
func MarkRecordFailed(ctx context.Context, db *gorm.DB, logger *logrus.Logger, recordId int, procErr error) bool {
	if recordId <= 0 {
		return false
	}
	cfg := ProcessRetryConfigFromEnv()
	now := time.Now().UTC()
	errMsg := procErr.Error()

	var rec models.PubSubMessageRecord
	if err := db.WithContext(ctx).
		Select("id,business_id,subscription_id,month,process_attempts").
		Where("id = ?", recordId).
		First(&rec).Error; err != nil {
		_ = db.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
			Where("id = ?", recordId).
			Updates(map[string]interface{}{
				"last_process_error": &errMsg,
				"locked_at":          nil,
				"locked_by":          nil,
				"processing_status":  models.OutboxProcessStatusFailed,
			}).Error
		return false
	}

	attempts := rec.ProcessAttempts + 1
	status, nextAttemptAt := cfg.failureStatus(attempts, procErr, now)
	_ = db.WithContext(ctx).Model(&models.PubSubMessageRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"last_process_error":      &errMsg,
			"process_attempts":        attempts,
			"next_process_attempt_at": nextAttemptAt,
			"processing_status":       status,
			"is_processed":            status == models.OutboxProcessStatusDead,
			"locked_at":               nil,
			"locked_by":               nil,
		}).Error

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":             "OutboxProcessing",
			"business_id":       rec.BusinessId,
			"subscription_id":   rec.SubscriptionId,
			"month":             rec.Month,
			"record_id":         rec.ID,
			"processing_status": status,
			"process_attempts":  attempts,
		}).Error("outbox processing failed: " + errMsg)
	}
	return status == models.OutboxProcessStatusDead
}
