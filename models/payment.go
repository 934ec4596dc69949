package models

import (
	"time"

	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"size:64;index;not null" json:"business_id"`
	EntryId       int             `gorm:"not null;index" json:"entry_id"`
	PaymentDate   time.Time       `gorm:"type:date;not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	IsPaid        *bool           `gorm:"not null;default:true" json:"is_paid"`
	PaidDate      *time.Time      `gorm:"type:date" json:"paid_date"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedBy     string          `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	EntryId       int
	PaymentDate   time.Time
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
}

func (p Payment) GetBusinessId() string {
	return p.BusinessId
}

// Counted reports whether the payment contributes to totals.
func (p Payment) Counted() bool {
	return utils.BoolOr(p.IsPaid, true)
}

// EffectiveDate is the paid date, or the payment date when unset.
func (p Payment) EffectiveDate() time.Time {
	if p.PaidDate != nil {
		return *p.PaidDate
	}
	return p.PaymentDate
}
