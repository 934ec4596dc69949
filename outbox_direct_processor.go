package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor applies unprocessed occurrence events without a
// Pub/Sub round trip. It runs when Pub/Sub is not configured, or alongside
// it when OUTBOX_DIRECT_PROCESSING=true. Idempotency keys make the overlap
// with push delivery safe.
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + uuid.NewString(),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *OutboxDirectProcessor) claim(ctx context.Context, now time.Time) ([]models.PubSubMessageRecord, error) {
	staleBefore := now.Add(-p.LockTTL)
	var claimed []models.PubSubMessageRecord
	// Claims span every business.
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = 0").
			Where("processing_status <> ?", models.OutboxProcessStatusDead).
			Where("(next_process_attempt_at IS NULL OR next_process_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]int, 0, len(claimed))
		for _, rec := range claimed {
			ids = append(ids, rec.ID)
		}
		return tx.Model(&models.PubSubMessageRecord{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"locked_at": &now,
				"locked_by": p.WorkerID,
			}).Error
	})
	return claimed, err
}

func (p *OutboxDirectProcessor) processOnce(ctx context.Context) {
	now := time.Now().UTC()
	claimed, err := p.claim(ctx, now)
	if err != nil {
		p.Logger.WithFields(logrus.Fields{
			"field":     "OutboxDirectProcessor",
			"worker_id": p.WorkerID,
		}).Warn("claim failed: " + err.Error())
		return
	}

	for _, rec := range claimed {
		msg := models.ConvertToPubSubMessage(rec)
		procCtx := eventContext(ctx, msg, "")
		if err := processEvent(procCtx, p.Logger, msg); err != nil {
			p.Logger.WithFields(logrus.Fields{
				"field":           "OutboxDirectProcessor",
				"business_id":     rec.BusinessId,
				"subscription_id": rec.SubscriptionId,
				"month":           rec.Month,
				"record_id":       rec.ID,
			}).Error("direct processing failed: " + err.Error())
		}
		_ = p.DB.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
			Model(&models.PubSubMessageRecord{}).
			Where("id = ? AND locked_by = ?", rec.ID, p.WorkerID).
			Updates(map[string]interface{}{
				"locked_at": nil,
				"locked_by": nil,
			}).Error
	}
}
