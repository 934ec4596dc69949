package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type expenseAction int

const (
	expenseActionNone expenseAction = iota
	expenseActionBook
	expenseActionRemove
)

// decideExpenseAction converges the expense to the row's current state, so
// events delivered out of order still leave the right result. row is nil
// when the occurrence no longer exists.
func decideExpenseAction(eventType models.OccurrenceEventType, row *models.SubscriptionProjectionEntry) expenseAction {
	if row == nil || !row.IsPaid {
		return expenseActionRemove
	}
	if eventType == models.OccurrenceEventPaid {
		return expenseActionBook
	}
	// An UNPAID event for a row that was paid again later: the later PAID
	// event books the expense.
	return expenseActionNone
}

// ProcessExpenseWorkflow books or removes the subscription expense for one
// occurrence event. tx must be the handler's transaction.
func ProcessExpenseWorkflow(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, recordId int, businessId string, event *models.OccurrenceEvent) error {
	row, err := currentProjectionEntry(ctx, tx, businessId, event.ProjectionEntryId)
	if err != nil {
		config.LogError(logger, "expenseWorkflow.go", "ProcessExpenseWorkflow", "currentProjectionEntry", event, err)
		return err
	}

	switch decideExpenseAction(event.Type, row) {
	case expenseActionBook:
		booked := *event
		booked.Snapshot.PaidDate = row.PaidDate
		if row.ActualAmount != nil {
			booked.Snapshot.TotalPaid = *row.ActualAmount
		}
		expense, err := models.UpsertSubscriptionExpense(ctx, tx, businessId, recordId, &booked)
		if err != nil {
			config.LogError(logger, "expenseWorkflow.go", "ProcessExpenseWorkflow > Paid", "UpsertSubscriptionExpense", event, err)
			return err
		}
		logger.WithFields(logrus.Fields{
			"field":           "ProcessExpenseWorkflow",
			"business_id":     businessId,
			"subscription_id": event.SubscriptionId,
			"month":           event.Month,
			"expense_id":      expense.ID,
		}).Info("subscription expense booked")
	case expenseActionRemove:
		n, err := models.DeleteSubscriptionExpense(ctx, tx, businessId, event.SubscriptionId, event.Month)
		if err != nil {
			config.LogError(logger, "expenseWorkflow.go", "ProcessExpenseWorkflow > Unpaid", "DeleteSubscriptionExpense", event, err)
			return err
		}
		logger.WithFields(logrus.Fields{
			"field":           "ProcessExpenseWorkflow",
			"business_id":     businessId,
			"subscription_id": event.SubscriptionId,
			"month":           event.Month,
			"removed":         n,
		}).Info("subscription expense removed")
	}
	return nil
}

func currentProjectionEntry(ctx context.Context, tx *gorm.DB, businessId string, id int) (*models.SubscriptionProjectionEntry, error) {
	var row models.SubscriptionProjectionEntry
	err := tx.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
