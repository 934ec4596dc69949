package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is a booked cost. Subscription expenses are linked by
// (subscription_id, month); manual expenses leave both NULL.
type Expense struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"size:64;index;not null" json:"business_id"`
	SubscriptionId *int            `gorm:"index:uniq_subscription_expense,unique,priority:1" json:"subscription_id"`
	Month          *string         `gorm:"size:7;index:uniq_subscription_expense,unique,priority:2" json:"month"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Category       string          `gorm:"size:100;index" json:"category"`
	Vendor         string          `gorm:"size:255" json:"vendor"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	ExpenseDate    time.Time       `gorm:"type:date;not null;index" json:"expense_date"`
	Recurrence     Recurrence      `gorm:"size:20;not null;default:'one_time'" json:"recurrence"`
	Description    string          `gorm:"type:text" json:"description"`
	SourceEventId  int             `gorm:"index" json:"source_event_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e Expense) GetBusinessId() string {
	return e.BusinessId
}

// UpsertSubscriptionExpense books the expense for a paid occurrence. A
// redelivered event refreshes the existing row instead of adding one.
func UpsertSubscriptionExpense(ctx context.Context, tx *gorm.DB, businessId string, eventId int, event *OccurrenceEvent) (*Expense, error) {
	expenseDate := event.OccurredAt
	if event.Snapshot.PaidDate != nil {
		expenseDate = *event.Snapshot.PaidDate
	}
	amount := event.Snapshot.TotalPaid
	if amount.IsZero() {
		amount = event.Snapshot.Amount
	}

	var existing Expense
	err := tx.WithContext(ctx).
		Where("business_id = ? AND subscription_id = ? AND month = ?", businessId, event.SubscriptionId, event.Month).
		Take(&existing).Error
	if err == nil {
		err = tx.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"amount":          amount,
			"expense_date":    expenseDate,
			"source_event_id": eventId,
		}).Error
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	subscriptionId := event.SubscriptionId
	month := event.Month
	expense := Expense{
		BusinessId:     businessId,
		SubscriptionId: &subscriptionId,
		Month:          &month,
		Name:           fmt.Sprintf("%s - %s", event.Snapshot.SubscriptionName, event.Month),
		Category:       event.Snapshot.Category,
		Vendor:         event.Snapshot.Vendor,
		Amount:         amount,
		ExpenseDate:    expenseDate,
		Recurrence:     RecurrenceOneTime,
		Description:    fmt.Sprintf("Subscription payment for %s", event.Month),
		SourceEventId:  eventId,
	}
	if err := tx.WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

// DeleteSubscriptionExpense removes the expense booked for an occurrence.
// Missing rows are not an error.
func DeleteSubscriptionExpense(ctx context.Context, tx *gorm.DB, businessId string, subscriptionId int, month string) (int64, error) {
	res := tx.WithContext(ctx).
		Where("business_id = ? AND subscription_id = ? AND month = ?", businessId, subscriptionId, month).
		Delete(&Expense{})
	return res.RowsAffected, res.Error
}

func ListSubscriptionExpenses(ctx context.Context, subscriptionId int) ([]*Expense, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Subscription](ctx, businessId, subscriptionId); err != nil {
		return nil, err
	}
	var results []*Expense
	err = dbFromContext(ctx).
		Where("business_id = ? AND subscription_id = ?", businessId, subscriptionId).
		Order("month").Find(&results).Error
	return results, err
}
