package timeline_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/timeline"
)

func TestEntryResolver_CachesAndForgets(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.GenerateProjections(f.ctx, f.sub.ID, month(t, "2025-01"), month(t, "2025-01")); err != nil {
		t.Fatalf("GenerateProjections: %v", err)
	}
	row := f.store.Rows(f.sub.ID)[0]
	resolver := timeline.NewEntryResolver(f.store)
	calls := f.store.FindLedgerEntryCalls

	first, err := resolver.Resolve(f.ctx, f.sub.ID, &row)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := resolver.Resolve(f.ctx, f.sub.ID, &row)
	if err != nil || second != first {
		t.Fatalf("cached resolve returned %d, %v", second, err)
	}
	if f.store.FindLedgerEntryCalls != calls+1 {
		t.Fatalf("second resolve should hit the cache")
	}

	resolver.Forget(row.ID)
	if _, err := resolver.Resolve(f.ctx, f.sub.ID, &row); err != nil {
		t.Fatalf("Resolve after Forget: %v", err)
	}
	if f.store.FindLedgerEntryCalls != calls+2 {
		t.Fatalf("Forget should drop the cached mapping")
	}
}

func TestEntryResolver_Missing(t *testing.T) {
	f := newFixture(t)
	resolver := timeline.NewEntryResolver(f.store)

	if _, err := resolver.Resolve(f.ctx, f.sub.ID, nil); !errors.Is(err, timeline.ErrEntryNotFound) {
		t.Fatalf("nil row: expected ErrEntryNotFound, got %v", err)
	}
	if _, err := resolver.Resolve(f.ctx, f.sub.ID, &models.SubscriptionProjectionEntry{Month: "2025-01"}); !errors.Is(err, timeline.ErrEntryNotFound) {
		t.Fatalf("unsaved row: expected ErrEntryNotFound, got %v", err)
	}
	legacy := f.store.AddLegacyRow(models.SubscriptionProjectionEntry{SubscriptionId: f.sub.ID, Month: "2025-01", Amount: dec(100)})
	if _, err := resolver.Resolve(f.ctx, f.sub.ID, legacy); !errors.Is(err, timeline.ErrEntryNotFound) {
		t.Fatalf("legacy row: expected ErrEntryNotFound, got %v", err)
	}
}
