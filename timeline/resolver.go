package timeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmdatafocus/cashflow_backend/models"
)

// EntryResolver maps a projection row to its ledger entry id and remembers
// the answer.
type EntryResolver struct {
	store LedgerEntryStore

	mu    sync.Mutex
	cache map[int]int
}

func NewEntryResolver(store LedgerEntryStore) *EntryResolver {
	return &EntryResolver{store: store, cache: make(map[int]int)}
}

// Resolve returns the entry id for row. A row that is not persisted yet, or
// whose entry has not been materialized, yields ErrEntryNotFound; the caller
// creates the row (and with it the entry) and resolves again.
func (r *EntryResolver) Resolve(ctx context.Context, subscriptionId int, row *models.SubscriptionProjectionEntry) (int, error) {
	if row == nil || row.ID == 0 {
		return 0, fmt.Errorf("%w: projection entry is not persisted", ErrEntryNotFound)
	}

	r.mu.Lock()
	id, ok := r.cache[row.ID]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	entry, err := r.store.FindLedgerEntry(ctx, models.LedgerEntryLookup{
		EntryType:       models.EntryTypeSubscriptionPayment,
		ReferenceId:     subscriptionId,
		ScheduleEntryId: row.ID,
	})
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, fmt.Errorf("%w: subscription %d month %s", ErrEntryNotFound, subscriptionId, row.Month)
	}

	r.mu.Lock()
	r.cache[row.ID] = entry.ID
	r.mu.Unlock()
	return entry.ID, nil
}

// Forget drops a cached mapping, e.g. after the transaction that created it
// rolled back.
func (r *EntryResolver) Forget(projectionEntryId int) {
	r.mu.Lock()
	delete(r.cache, projectionEntryId)
	r.mu.Unlock()
}
