package models

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimelineRepository is the MySQL-backed store behind the timeline engine.
// Every method joins the transaction carried by ctx, if any.
type TimelineRepository struct{}

func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{}
}

func (r *TimelineRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, fn)
}

func (r *TimelineRepository) GetSubscription(ctx context.Context, id int) (*Subscription, error) {
	return GetSubscription(ctx, id)
}

func (r *TimelineRepository) ListActiveSubscriptions(ctx context.Context) ([]*Subscription, error) {
	return ListSubscriptions(ctx, SubscriptionFilter{IsActive: utils.NewTrue()})
}

func (r *TimelineRepository) ListProjectionEntries(ctx context.Context, subscriptionId int, fromMonth, toMonth string) ([]*SubscriptionProjectionEntry, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	q := dbFromContext(ctx).Where("business_id = ? AND subscription_id = ?", businessId, subscriptionId)
	if fromMonth != "" {
		q = q.Where("month >= ?", fromMonth)
	}
	if toMonth != "" {
		q = q.Where("month <= ?", toMonth)
	}
	var rows []*SubscriptionProjectionEntry
	err = q.Order("month").Find(&rows).Error
	return rows, err
}

func (r *TimelineRepository) FindProjectionEntry(ctx context.Context, subscriptionId int, month string) (*SubscriptionProjectionEntry, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var row SubscriptionProjectionEntry
	err = dbFromContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND subscription_id = ? AND month = ?", businessId, subscriptionId, month).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertProjectionEntry creates the (subscription, month) row with its ledger
// entry, or updates the existing row in place. A concurrent insert of the
// same pair falls back to the update.
func (r *TimelineRepository) UpsertProjectionEntry(ctx context.Context, subscriptionId int, input *NewSubscriptionProjectionEntry) (*SubscriptionProjectionEntry, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := fetchModel[Subscription](ctx, businessId, subscriptionId)
	if err != nil {
		return nil, err
	}

	existing, err := r.FindProjectionEntry(ctx, subscriptionId, input.Month)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		row := SubscriptionProjectionEntry{
			BusinessId:     businessId,
			SubscriptionId: subscriptionId,
			Month:          input.Month,
			Amount:         input.Amount,
			IsProjected:    input.IsProjected,
			IsPaid:         input.IsPaid,
			PaidDate:       input.PaidDate,
			ActualAmount:   input.ActualAmount,
			Notes:          input.Notes,
		}
		err = dbFromContext(ctx).Create(&row).Error
		if err == nil {
			if _, err := r.CreateLedgerEntry(ctx, LedgerEntryForProjection(sub, &row)); err != nil {
				return nil, err
			}
			return &row, nil
		}
		if !isDuplicateKeyError(err) {
			return nil, err
		}
		if existing, err = r.FindProjectionEntry(ctx, subscriptionId, input.Month); err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, utils.ErrorRecordNotFound
		}
	}

	err = dbFromContext(ctx).Model(existing).
		Select("amount", "is_projected", "is_paid", "paid_date", "actual_amount", "notes").
		Updates(SubscriptionProjectionEntry{
			Amount:       input.Amount,
			IsProjected:  input.IsProjected,
			IsPaid:       input.IsPaid,
			PaidDate:     input.PaidDate,
			ActualAmount: input.ActualAmount,
			Notes:        input.Notes,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.projectionEntryById(ctx, businessId, subscriptionId, existing.ID)
}

func (r *TimelineRepository) UpdateProjectionEntry(ctx context.Context, subscriptionId, id int, update *SubscriptionProjectionEntryUpdate) (*SubscriptionProjectionEntry, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"is_paid":       update.IsPaid,
		"paid_date":     update.PaidDate,
		"actual_amount": update.ActualAmount,
	}
	if update.Notes != nil {
		fields["notes"] = *update.Notes
	}
	res := dbFromContext(ctx).Model(&SubscriptionProjectionEntry{}).
		Where("business_id = ? AND subscription_id = ? AND id = ?", businessId, subscriptionId, id).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	return r.projectionEntryById(ctx, businessId, subscriptionId, id)
}

func (r *TimelineRepository) DeleteProjectionEntry(ctx context.Context, subscriptionId, id int) error {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return err
	}
	res := dbFromContext(ctx).
		Where("business_id = ? AND subscription_id = ? AND id = ?", businessId, subscriptionId, id).
		Delete(&SubscriptionProjectionEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func (r *TimelineRepository) projectionEntryById(ctx context.Context, businessId string, subscriptionId, id int) (*SubscriptionProjectionEntry, error) {
	var row SubscriptionProjectionEntry
	err := dbFromContext(ctx).
		Where("business_id = ? AND subscription_id = ? AND id = ?", businessId, subscriptionId, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *TimelineRepository) FindLedgerEntry(ctx context.Context, lookup LedgerEntryLookup) (*Entry, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var entry Entry
	err = dbFromContext(ctx).
		Where("business_id = ? AND entry_type = ? AND reference_id = ? AND schedule_entry_id = ?",
			businessId, lookup.EntryType, lookup.ReferenceId, lookup.ScheduleEntryId).
		Order("id").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateLedgerEntry is idempotent per (entry_type, reference_id,
// schedule_entry_id): a duplicate returns the stored entry.
func (r *TimelineRepository) CreateLedgerEntry(ctx context.Context, input *NewEntry) (*Entry, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	entry := Entry{
		BusinessId:      businessId,
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
	err = dbFromContext(ctx).Create(&entry).Error
	if err == nil {
		return &entry, nil
	}
	if !isDuplicateKeyError(err) {
		return nil, err
	}
	existing, ferr := r.FindLedgerEntry(ctx, LedgerEntryLookup{
		EntryType:       input.EntryType,
		ReferenceId:     input.ReferenceId,
		ScheduleEntryId: input.ScheduleEntryId,
	})
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, err
	}
	return existing, nil
}

func (r *TimelineRepository) DeleteLedgerEntry(ctx context.Context, id int) error {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return err
	}
	return dbFromContext(ctx).Where("business_id = ? AND id = ?", businessId, id).Delete(&Entry{}).Error
}

func (r *TimelineRepository) CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	createdBy, _ := utils.GetUserNameFromContext(ctx)
	paidDate := input.PaymentDate
	payment := Payment{
		BusinessId:    businessId,
		EntryId:       input.EntryId,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		IsPaid:        utils.NewTrue(),
		PaidDate:      &paidDate,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
		CreatedBy:     createdBy,
	}
	if err := dbFromContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *TimelineRepository) DeletePayment(ctx context.Context, id int) error {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return err
	}
	res := dbFromContext(ctx).Where("business_id = ? AND id = ?", businessId, id).Delete(&Payment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func (r *TimelineRepository) ListPaymentsByEntry(ctx context.Context, entryId int) ([]*Payment, error) {
	return r.ListPaymentsByEntries(ctx, []int{entryId})
}

func (r *TimelineRepository) ListPaymentsByEntries(ctx context.Context, entryIds []int) ([]*Payment, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var payments []*Payment
	if len(entryIds) == 0 {
		return payments, nil
	}
	err = dbFromContext(ctx).
		Where("business_id = ? AND entry_id IN ?", businessId, entryIds).
		Order("payment_date").Order("id").
		Find(&payments).Error
	return payments, err
}

func (r *TimelineRepository) PublishOccurrenceEvent(ctx context.Context, event *OccurrenceEvent) error {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return err
	}
	return PublishOccurrenceEvent(ctx, dbFromContext(ctx), businessId, event)
}

// LedgerEntryForProjection describes the ledger entry owned by a projection
// row, dated on the first of the row's month.
func LedgerEntryForProjection(sub *Subscription, row *SubscriptionProjectionEntry) *NewEntry {
	entryDate := sub.StartDate
	if t, err := time.Parse("2006-01", row.Month); err == nil {
		entryDate = t
	}
	dueDate := entryDate
	return &NewEntry{
		Direction:       EntryDirectionOutput,
		EntryType:       EntryTypeSubscriptionPayment,
		Name:            sub.Name,
		Amount:          row.Amount,
		Description:     sub.Description,
		Category:        sub.Category,
		Vendor:          sub.Vendor,
		EntryDate:       entryDate,
		DueDate:         &dueDate,
		ReferenceId:     sub.ID,
		ScheduleEntryId: row.ID,
	}
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
