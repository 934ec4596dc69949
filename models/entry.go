package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a cash-flow ledger line. Subscription occurrences own one entry of
// type subscription_payment with reference_id = subscription id and
// schedule_entry_id = projection row id.
type Entry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;index;not null" json:"business_id"`
	Direction       EntryDirection  `gorm:"type:enum('input','output');not null" json:"direction"`
	EntryType       EntryType       `gorm:"size:50;not null;index:uniq_entry_schedule,unique,priority:1" json:"entry_type"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description     string          `gorm:"type:text" json:"description"`
	Category        string          `gorm:"size:100" json:"category"`
	Vendor          string          `gorm:"size:255" json:"vendor"`
	EntryDate       time.Time       `gorm:"type:date;not null;index" json:"entry_date"`
	DueDate         *time.Time      `gorm:"type:date" json:"due_date"`
	ReferenceId     int             `gorm:"not null;index:uniq_entry_schedule,unique,priority:2" json:"reference_id"`
	ScheduleEntryId int             `gorm:"not null;index:uniq_entry_schedule,unique,priority:3" json:"schedule_entry_id"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEntry struct {
	Direction       EntryDirection
	EntryType       EntryType
	Name            string
	Amount          decimal.Decimal
	Description     string
	Category        string
	Vendor          string
	EntryDate       time.Time
	DueDate         *time.Time
	ReferenceId     int
	ScheduleEntryId int
}

// LedgerEntryLookup identifies an entry by its owning schedule.
type LedgerEntryLookup struct {
	EntryType       EntryType
	ReferenceId     int
	ScheduleEntryId int
}

func (e Entry) GetBusinessId() string {
	return e.BusinessId
}
