package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionProjectionEntry is the stored state of one occurrence
// (subscription, month). At most one row exists per pair within a business.
type SubscriptionProjectionEntry struct {
	ID             int              `gorm:"primary_key" json:"id"`
	BusinessId     string           `gorm:"size:64;not null;index:uniq_business_subscription_month,unique,priority:1" json:"business_id"`
	SubscriptionId int              `gorm:"not null;index:uniq_business_subscription_month,unique,priority:2" json:"subscription_id"`
	Month          string           `gorm:"size:7;not null;index:uniq_business_subscription_month,unique,priority:3" json:"month"`
	Amount         decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	IsProjected    bool             `gorm:"not null" json:"is_projected"`
	IsPaid         bool             `gorm:"not null;index" json:"is_paid"`
	PaidDate       *time.Time       `gorm:"type:date" json:"paid_date"`
	ActualAmount   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"actual_amount"`
	Notes          *string          `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSubscriptionProjectionEntry struct {
	Month        string
	Amount       decimal.Decimal
	IsProjected  bool
	IsPaid       bool
	PaidDate     *time.Time
	ActualAmount *decimal.Decimal
	Notes        *string
}

// SubscriptionProjectionEntryUpdate rewrites the paid fields of a row.
// Notes is only written when non-nil.
type SubscriptionProjectionEntryUpdate struct {
	IsPaid       bool
	PaidDate     *time.Time
	ActualAmount *decimal.Decimal
	Notes        *string
}

func (p SubscriptionProjectionEntry) GetBusinessId() string {
	return p.BusinessId
}
