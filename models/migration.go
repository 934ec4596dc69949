package models

import (
	"log"

	"github.com/mmdatafocus/cashflow_backend/config"
)

func MigrateTable() {
	if err := AutoMigrate(); err != nil {
		log.Fatal(err)
	}
}

func AutoMigrate() error {
	return config.GetDB().AutoMigrate(
		&Subscription{}, &SubscriptionProjectionEntry{},
		&Entry{}, &Payment{}, &Expense{},
		&PubSubMessageRecord{}, &IdempotencyKey{},
	)
}
