package models

import (
	"sync"
	"testing"

	"gorm.io/gorm/schema"
)

func TestProjectionEntryUniqueIndexLeadsWithBusiness(t *testing.T) {
	sch, err := schema.Parse(&SubscriptionProjectionEntry{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	idx, ok := sch.ParseIndexes()["uniq_business_subscription_month"]
	if !ok {
		t.Fatalf("unique index missing")
	}
	if idx.Class != "UNIQUE" {
		t.Fatalf("index class=%q, want UNIQUE", idx.Class)
	}
	want := []string{"business_id", "subscription_id", "month"}
	if len(idx.Fields) != len(want) {
		t.Fatalf("index has %d columns, want %d", len(idx.Fields), len(want))
	}
	for i, col := range want {
		if idx.Fields[i].DBName != col {
			t.Fatalf("column %d=%q, want %q", i, idx.Fields[i].DBName, col)
		}
	}
}
