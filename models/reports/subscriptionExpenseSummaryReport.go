package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
)

type SubscriptionExpenseSummary struct {
	FromMonth    string                               `json:"from_month"`
	ToMonth      string                               `json:"to_month"`
	TotalAmount  decimal.Decimal                      `json:"total_amount"`
	ExpenseCount int                                  `json:"expense_count"`
	Categories   []SubscriptionExpenseSummaryCategory `json:"categories"`
}

type SubscriptionExpenseSummaryCategory struct {
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	ExpenseCount int             `json:"expense_count"`
}

// GetSubscriptionExpenseSummary totals the expenses booked for paid
// occurrences in [fromMonth, toMonth], grouped by category.
func GetSubscriptionExpenseSummary(ctx context.Context, fromMonth, toMonth string) (*SubscriptionExpenseSummary, error) {
	businessId, err := utils.RequireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	defer logSlowReport(ctx, "SubscriptionExpenseSummary", started, map[string]any{"from": fromMonth, "to": toMonth})

	cacheKey := fmt.Sprintf("SubscriptionExpenseSummary:%s:%s:%s", businessId, fromMonth, toMonth)
	if reportCacheEnabled() {
		var cached SubscriptionExpenseSummary
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	var rows []SubscriptionExpenseSummaryCategory
	err = config.GetDB().WithContext(ctx).Model(&models.Expense{}).
		Select("category, SUM(amount) AS amount, COUNT(*) AS expense_count").
		Where("business_id = ? AND subscription_id IS NOT NULL AND month >= ? AND month <= ?", businessId, fromMonth, toMonth).
		Group("category").
		Order("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := summarizeExpenseCategories(fromMonth, toMonth, rows)
	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, summary, reportCacheTTL())
	}
	return summary, nil
}

func summarizeExpenseCategories(fromMonth, toMonth string, rows []SubscriptionExpenseSummaryCategory) *SubscriptionExpenseSummary {
	summary := &SubscriptionExpenseSummary{
		FromMonth:   fromMonth,
		ToMonth:     toMonth,
		TotalAmount: decimal.Zero,
		Categories:  []SubscriptionExpenseSummaryCategory{},
	}
	for _, r := range rows {
		if r.Category == "" {
			r.Category = "Uncategorized"
		}
		summary.TotalAmount = summary.TotalAmount.Add(r.Amount)
		summary.ExpenseCount += r.ExpenseCount
		summary.Categories = append(summary.Categories, r)
	}
	return summary
}
