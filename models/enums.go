package models

import (
	"errors"
	"strings"
)

type Recurrence string

const (
	RecurrenceOneTime   Recurrence = "one_time"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
	RecurrenceYearly    Recurrence = "yearly"
	RecurrenceCustom    Recurrence = "custom"
)

func (r Recurrence) IsValid() bool {
	switch r {
	case RecurrenceOneTime, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly, RecurrenceCustom:
		return true
	}
	return false
}

// ParseRecurrence accepts the stored values plus "one-time" and any casing.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.IsValid() {
		return "", errors.New("invalid recurrence")
	}
	return r, nil
}

type EntryDirection string

const (
	EntryDirectionInput  EntryDirection = "input"
	EntryDirectionOutput EntryDirection = "output"
)

type EntryType string

const (
	EntryTypeSubscriptionPayment EntryType = "subscription_payment"
	EntryTypeExpense             EntryType = "expense"
	EntryTypeIncome              EntryType = "income"
)

type OccurrenceEventType string

const (
	OccurrenceEventPaid   OccurrenceEventType = "OCCURRENCE_PAID"
	OccurrenceEventUnpaid OccurrenceEventType = "OCCURRENCE_UNPAID"
)

func (t OccurrenceEventType) IsValid() bool {
	return t == OccurrenceEventPaid || t == OccurrenceEventUnpaid
}
