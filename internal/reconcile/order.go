package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// ParseDate parses a transaction date. ok is false for empty or malformed
// input.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type sortKey struct {
	t   time.Time
	ok  bool
	raw string
}

func keyOf(r models.Record) sortKey {
	t, ok := ParseDate(r.TransactionDate)
	return sortKey{t: t, ok: ok, raw: strings.TrimSpace(r.TransactionDate)}
}

// newer reports whether a sorts strictly before b.
func newer(a, b sortKey) bool {
	switch {
	case a.ok && b.ok:
		return a.t.After(b.t)
	case a.ok != b.ok:
		return a.ok
	default:
		return a.raw > b.raw
	}
}

// Sort orders records newest first in place. The sort is stable.
func Sort(records []models.Record) {
	keys := make([]sortKey, len(records))
	for i := range records {
		keys[i] = keyOf(records[i])
	}
	sort.Stable(byDate{records: records, keys: keys})
}

// IsSorted reports whether records are in canonical order.
func IsSorted(records []models.Record) bool {
	for i := 1; i < len(records); i++ {
		if newer(keyOf(records[i]), keyOf(records[i-1])) {
			return false
		}
	}
	return true
}

type byDate struct {
	records []models.Record
	keys    []sortKey
}

func (b byDate) Len() int           { return len(b.records) }
func (b byDate) Less(i, j int) bool { return newer(b.keys[i], b.keys[j]) }
func (b byDate) Swap(i, j int) {
	b.records[i], b.records[j] = b.records[j], b.records[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
