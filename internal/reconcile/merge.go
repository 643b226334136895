package reconcile

import (
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

// Merge combines the local and remote snapshots. Remote wins on ID conflicts
// and every remote record comes out synced. Inputs are not modified.
//
// A remote fetch failure is the caller's concern: pass a nil remote slice and
// the result is the local snapshot in canonical order.
func Merge(local, remote []models.Record) []models.Record {
	index := make(map[string]int, len(local)+len(remote))
	merged := make([]models.Record, 0, len(local)+len(remote))

	put := func(r models.Record) {
		if i, ok := index[r.ID]; ok {
			merged[i] = r
			return
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	for _, r := range local {
		put(r.Clone())
	}
	for _, r := range remote {
		c := r.Clone()
		c.Synced = true
		put(c)
	}

	Sort(merged)
	return merged
}

// CheckUnique fails with common.ErrDuplicateID if any ID repeats.
func CheckUnique(records []models.Record) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %s", common.ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
