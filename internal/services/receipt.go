package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/archive"
	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/export"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/reconcile"
	"github.com/dmitrijs2005/receiptkeeper/internal/remote"
	"github.com/dmitrijs2005/receiptkeeper/internal/store"
	"github.com/dmitrijs2005/receiptkeeper/internal/syncer"
	"github.com/shopspring/decimal"
)

// Ingester turns an uploaded image into a new unsynced record.
type Ingester interface {
	Process(ctx context.Context, image []byte, filename string) (models.Record, error)
}

// Summary reports a sync run.
type Summary struct {
	Synced    int
	Attempted int
	Failed    int
	// Pending is the number of local-only records after the run.
	Pending     int
	Interrupted bool
}

func (s Summary) String() string {
	return fmt.Sprintf("%d of %d synced", s.Synced, s.Attempted)
}

// ScanResult is the outcome of a successful scan.
type ScanResult struct {
	Record models.Record
	// ArchiveKey is the object key of the stored image, if archived.
	ArchiveKey string
	// Notice is set when the record was kept locally because the immediate
	// remote push failed.
	Notice string
}

// Status describes the current state for display.
type Status struct {
	Mode            remote.Mode
	RemoteReachable bool
	Total           int
	Pending         int

	// Spent holds the sum of totals per currency; ByCategory splits it
	// further. Both are sorted by currency, then category.
	Spent      []Spend
	ByCategory []Spend
}

// Spend is an amount in one currency, optionally for one category.
type Spend struct {
	Currency string
	Category string
	Amount   decimal.Decimal
}

// Option configures a ReceiptService.
type Option func(*ReceiptService)

// WithAutoSync pushes each scanned record to the remote tier immediately.
func WithAutoSync(on bool) Option {
	return func(s *ReceiptService) { s.autoSync = on }
}

// WithArchiver stores each scanned image; the default discards it.
func WithArchiver(a archive.Archiver) Option {
	return func(s *ReceiptService) { s.archiver = a }
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *ReceiptService) { s.log = l }
}

// ReceiptService owns the canonical record set. One mutex covers every
// read-modify-write of the set and its persistence.
type ReceiptService struct {
	mu sync.Mutex

	store    store.Store
	tier     remote.Tier
	coord    *syncer.Coordinator
	ingest   Ingester
	archiver archive.Archiver
	log      logging.Logger
	autoSync bool
	now      func() time.Time

	records         []models.Record
	remoteReachable bool
}

// NewReceiptService creates a service with an empty set; call Load to fill it.
func NewReceiptService(st store.Store, tier remote.Tier, coord *syncer.Coordinator, in Ingester, opts ...Option) *ReceiptService {
	s := &ReceiptService{
		store:    st,
		tier:     tier,
		coord:    coord,
		ingest:   in,
		archiver: archive.NopArchiver{},
		log:      logging.Nop{},
		now:      time.Now,
		records:  []models.Record{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load builds the canonical set from the local snapshot and, when the remote
// tier is configured, the remote snapshot. A failed remote fetch degrades to
// local-only. The merged set is written back to the local store.
func (s *ReceiptService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load local snapshot: %w", err)
	}

	var fetched []models.Record
	s.remoteReachable = false
	if s.tier.Mode() == remote.ModeConfigured {
		fetched, err = s.tier.Adapter().FetchAll(ctx)
		if err != nil {
			s.log.Warn(ctx, "remote unavailable, using local snapshot", "error", err)
			fetched = nil
		} else {
			s.remoteReachable = true
		}
	}

	merged := reconcile.Merge(local, fetched)
	if err := reconcile.CheckUnique(merged); err != nil {
		return err
	}
	if err := s.store.Save(ctx, merged); err != nil {
		return fmt.Errorf("save merged snapshot: %w", err)
	}

	s.records = merged
	s.log.Info(ctx, "receipts loaded", "local", len(local), "remote", len(fetched), "total", len(merged))
	return nil
}

// Scan ingests one image and adds the resulting record to the set.
func (s *ReceiptService) Scan(ctx context.Context, image []byte, filename string) (ScanResult, error) {
	rec, err := s.ingest.Process(ctx, image, filename)
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{Record: rec}
	key, err := s.archiver.Put(ctx, rec.ID, image)
	if err != nil {
		s.log.Warn(ctx, "image archive failed", "id", rec.ID, "error", err)
	} else {
		res.ArchiveKey = key
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.Record, 0, len(s.records)+1)
	next = append(next, rec)
	next = append(next, models.CloneAll(s.records)...)
	reconcile.Sort(next)
	if err := reconcile.CheckUnique(next); err != nil {
		return ScanResult{}, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return ScanResult{}, fmt.Errorf("save snapshot: %w", err)
	}
	s.records = next

	if !s.autoSync || s.tier.Mode() != remote.ModeConfigured {
		return res, nil
	}

	// The lock stays held through the push so the synced flag is written back
	// against the same set the record was added to.
	sr, err := s.coord.SyncAll(ctx, []models.Record{rec})
	if err != nil || sr.Synced != 1 {
		reason := "cancelled"
		if len(sr.Failures) > 0 {
			reason = sr.Failures[0].Err.Error()
		}
		res.Notice = "saved locally; remote sync failed: " + reason
		return res, nil
	}

	updated := models.CloneAll(s.records)
	for i := range updated {
		if updated[i].ID == rec.ID {
			updated[i].Synced = true
		}
	}
	if err := s.store.Save(ctx, updated); err != nil {
		res.Notice = "synced remotely; local flag not saved: " + err.Error()
		return res, nil
	}
	s.records = updated
	res.Record.Synced = true
	return res, nil
}

// Sync pushes every local-only record. The updated flags are saved even when
// ctx is cancelled part way; the cancellation is then returned.
func (s *ReceiptService) Sync(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, syncErr := s.coord.SyncAll(ctx, s.records)

	if res.Synced > 0 {
		if err := s.store.Save(context.WithoutCancel(ctx), res.Records); err != nil {
			return Summary{}, fmt.Errorf("save snapshot: %w", err)
		}
		s.records = res.Records
	}

	sum := Summary{
		Synced:      res.Synced,
		Attempted:   res.Attempted,
		Failed:      len(res.Failures),
		Pending:     countPending(s.records),
		Interrupted: res.Interrupted,
	}
	return sum, syncErr
}

// Records returns a copy of the canonical set in canonical order.
func (s *ReceiptService) Records() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.records)
}

// Get returns the record with id, or common.ErrNotFound.
func (s *ReceiptService) Get(id string) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return models.Record{}, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
}

// PendingCount returns how many records are not yet on the remote tier.
func (s *ReceiptService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countPending(s.records)
}

// Mode reports whether a remote tier is configured.
func (s *ReceiptService) Mode() remote.Mode {
	return s.tier.Mode()
}

// Status summarizes the set for the status command and the REPL prompt.
func (s *ReceiptService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Mode:            s.tier.Mode(),
		RemoteReachable: s.remoteReachable,
		Total:           len(s.records),
		Pending:         countPending(s.records),
		Spent:           spending(s.records, false),
		ByCategory:      spending(s.records, true),
	}
}

// Export writes the canonical set as CSV.
func (s *ReceiptService) Export(w io.Writer) error {
	return export.WriteCSV(w, s.Records())
}

// ExportFile writes the CSV export into dir and returns its path.
func (s *ReceiptService) ExportFile(dir string) (string, error) {
	return export.WriteFile(dir, s.Records(), s.now())
}

// spending sums record totals per currency and, when byCategory is set, per
// category. Empty categories are reported as "Uncategorized".
func spending(rs []models.Record, byCategory bool) []Spend {
	type key struct{ currency, category string }
	sums := make(map[key]decimal.Decimal)
	for _, r := range rs {
		k := key{currency: r.Currency}
		if byCategory {
			k.category = r.Category
			if k.category == "" {
				k.category = "Uncategorized"
			}
		}
		sums[k] = sums[k].Add(r.TotalAmount)
	}

	out := make([]Spend, 0, len(sums))
	for k, v := range sums {
		out = append(out, Spend{Currency: k.currency, Category: k.category, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func countPending(rs []models.Record) int {
	n := 0
	for _, r := range rs {
		if !r.Synced {
			n++
		}
	}
	return n
}
