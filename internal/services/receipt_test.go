package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/remote"
	"github.com/dmitrijs2005/receiptkeeper/internal/store"
	"github.com/dmitrijs2005/receiptkeeper/internal/syncer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	records []models.Record
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return models.CloneAll(m.records), nil
}

func (m *memStore) Save(_ context.Context, rs []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.records = models.CloneAll(rs)
	return nil
}

func (m *memStore) Close() error { return nil }

type fakeRemote struct {
	mu       sync.Mutex
	rows     []models.Record
	fetchErr error
	failOn   map[string]bool
}

func (f *fakeRemote) FetchAll(context.Context) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return models.CloneAll(f.rows), nil
}

func (f *fakeRemote) Exists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRemote) Insert(_ context.Context, r models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[r.ID] {
		return fmt.Errorf("%w: rejected", common.ErrRemote)
	}
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeRemote) Close() error { return nil }

type fakeIngester struct {
	rec models.Record
	err error
}

func (f *fakeIngester) Process(context.Context, []byte, string) (models.Record, error) {
	return f.rec, f.err
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) Put(_ context.Context, id string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := "receipts/2024/01/01/" + id
	f.keys = append(f.keys, key)
	return key, nil
}

func rec(id, date string, synced bool) models.Record {
	return models.Record{ID: id, MerchantName: "m-" + id, TransactionDate: date, Synced: synced, TotalAmount: decimal.NewFromInt(1)}
}

func newService(st store.Store, tier remote.Tier, in Ingester, opts ...Option) *ReceiptService {
	return NewReceiptService(st, tier, syncer.New(tier), in, opts...)
}

func ids(rs []models.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestLoad_MergesAndPersists(t *testing.T) {
	st := &memStore{records: []models.Record{rec("1", "2024-01-01", false)}}
	fr := &fakeRemote{rows: []models.Record{rec("2", "2024-02-01", false)}}
	s := newService(st, remote.Configured(fr), &fakeIngester{})

	require.NoError(t, s.Load(context.Background()))

	got := s.Records()
	assert.Equal(t, []string{"2", "1"}, ids(got))
	assert.True(t, got[0].Synced)
	assert.False(t, got[1].Synced)
	assert.Equal(t, []string{"2", "1"}, ids(st.records), "merged set is written back")

	status := s.Status()
	assert.Equal(t, remote.ModeConfigured, status.Mode)
	assert.True(t, status.RemoteReachable)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 1, status.Pending)
}

func TestLoad_RemoteUnavailableFallsBackToLocal(t *testing.T) {
	st := &memStore{records: []models.Record{rec("1", "2024-01-01", false), rec("3", "2024-03-01", false)}}
	fr := &fakeRemote{fetchErr: fmt.Errorf("%w: dial tcp", common.ErrRemoteUnavailable)}
	s := newService(st, remote.Configured(fr), &fakeIngester{})

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, []string{"3", "1"}, ids(s.Records()))
	assert.False(t, s.Status().RemoteReachable)
}

func TestLoad_Unconfigured(t *testing.T) {
	st := &memStore{records: []models.Record{rec("1", "2024-01-01", false)}}
	s := newService(st, remote.Unconfigured(), &fakeIngester{})

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, []string{"1"}, ids(s.Records()))
	assert.Equal(t, remote.ModeUnconfigured, s.Mode())
}

func TestLoad_LocalErrors(t *testing.T) {
	s := newService(&memStore{loadErr: errors.New("disk")}, remote.Unconfigured(), &fakeIngester{})
	require.Error(t, s.Load(context.Background()))

	s = newService(&memStore{saveErr: errors.New("read-only")}, remote.Unconfigured(), &fakeIngester{})
	require.Error(t, s.Load(context.Background()))
}

func TestScan_LocalOnly(t *testing.T) {
	st := &memStore{records: []models.Record{rec("old", "2024-01-01", true)}}
	arch := &fakeArchiver{}
	s := newService(st, remote.Unconfigured(), &fakeIngester{rec: rec("new", "2024-05-01", false)},
		WithArchiver(arch), WithAutoSync(true))
	require.NoError(t, s.Load(context.Background()))

	res, err := s.Scan(context.Background(), []byte("img"), "r.jpg")
	require.NoError(t, err)

	assert.Equal(t, "new", res.Record.ID)
	assert.False(t, res.Record.Synced)
	assert.Equal(t, "receipts/2024/01/01/new", res.ArchiveKey)
	assert.Empty(t, res.Notice)
	assert.Equal(t, []string{"new", "old"}, ids(s.Records()))
	assert.Equal(t, []string{"new", "old"}, ids(st.records))
	assert.Equal(t, 1, s.PendingCount())
}

func TestScan_AutoSync(t *testing.T) {
	st := &memStore{}
	fr := &fakeRemote{}
	s := newService(st, remote.Configured(fr), &fakeIngester{rec: rec("new", "2024-05-01", false)}, WithAutoSync(true))
	require.NoError(t, s.Load(context.Background()))

	res, err := s.Scan(context.Background(), []byte("img"), "r.jpg")
	require.NoError(t, err)

	assert.True(t, res.Record.Synced)
	assert.Zero(t, s.PendingCount())
	assert.True(t, st.records[0].Synced)
	assert.Len(t, fr.rows, 1)
}

func TestScan_AutoSyncFailureKeepsLocal(t *testing.T) {
	st := &memStore{}
	fr := &fakeRemote{failOn: map[string]bool{"new": true}}
	s := newService(st, remote.Configured(fr), &fakeIngester{rec: rec("new", "2024-05-01", false)}, WithAutoSync(true))
	require.NoError(t, s.Load(context.Background()))

	res, err := s.Scan(context.Background(), []byte("img"), "r.jpg")
	require.NoError(t, err)

	assert.False(t, res.Record.Synced)
	assert.Contains(t, res.Notice, "saved locally")
	assert.Equal(t, 1, s.PendingCount())
	require.Len(t, st.records, 1)
	assert.False(t, st.records[0].Synced)
}

func TestScan_AutoSyncDisabled(t *testing.T) {
	fr := &fakeRemote{}
	s := newService(&memStore{}, remote.Configured(fr), &fakeIngester{rec: rec("new", "2024-05-01", false)})
	require.NoError(t, s.Load(context.Background()))

	res, err := s.Scan(context.Background(), []byte("img"), "r.jpg")
	require.NoError(t, err)
	assert.False(t, res.Record.Synced)
	assert.Empty(t, fr.rows)
}

func TestScan_IngestErrorAddsNothing(t *testing.T) {
	st := &memStore{}
	s := newService(st, remote.Unconfigured(), &fakeIngester{err: fmt.Errorf("%w: no readable text found on receipt", common.ErrOCR)})
	require.NoError(t, s.Load(context.Background()))
	saves := st.saves

	_, err := s.Scan(context.Background(), []byte("img"), "r.jpg")
	require.ErrorIs(t, err, common.ErrOCR)
	assert.Empty(t, s.Records())
	assert.Equal(t, saves, st.saves)
}

func TestScan_ArchiveFailureIsNotFatal(t *testing.T) {
	s := newService(&memStore{}, remote.Unconfigured(), &fakeIngester{rec: rec("new", "2024-05-01", false)},
		WithArchiver(&fakeArchiver{err: errors.New("bucket missing")}))
	require.NoError(t, s.Load(context.Background()))

	res, err := s.Scan(context.Background(), []byte("img"), "r.jpg")
	require.NoError(t, err)
	assert.Empty(t, res.ArchiveKey)
	assert.Len(t, s.Records(), 1)
}

func TestSync_Scenario(t *testing.T) {
	st := &memStore{records: []models.Record{rec("1", "2024-01-02", false), rec("2", "2024-01-01", true)}}
	s := newService(st, remote.Configured(&fakeRemote{}), &fakeIngester{})
	require.NoError(t, s.Load(context.Background()))

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Synced)
	assert.Equal(t, 1, sum.Attempted)
	assert.Zero(t, sum.Pending)
	assert.Equal(t, "1 of 1 synced", sum.String())
	assert.True(t, st.records[0].Synced)
	assert.True(t, st.records[1].Synced)
}

func TestSync_PartialFailure(t *testing.T) {
	st := &memStore{records: []models.Record{
		rec("A", "2024-01-03", false), rec("B", "2024-01-02", false), rec("C", "2024-01-01", false),
	}}
	fr := &fakeRemote{failOn: map[string]bool{"B": true}}
	s := newService(st, remote.Configured(fr), &fakeIngester{})
	fr.fetchErr = errors.New("offline at startup")
	require.NoError(t, s.Load(context.Background()))
	fr.fetchErr = nil

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Synced)
	assert.Equal(t, 3, sum.Attempted)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, "2 of 3 synced", sum.String())

	got, err := s.Get("B")
	require.NoError(t, err)
	assert.Equal(t, "Local", got.Status())
}

func TestSync_Unconfigured(t *testing.T) {
	st := &memStore{records: []models.Record{rec("1", "2024-01-01", false)}}
	s := newService(st, remote.Unconfigured(), &fakeIngester{})
	require.NoError(t, s.Load(context.Background()))
	saves := st.saves

	sum, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Synced)
	assert.Equal(t, "0 of 0 synced", sum.String())
	assert.Equal(t, saves, st.saves)
}

func TestGet_NotFound(t *testing.T) {
	s := newService(&memStore{}, remote.Unconfigured(), &fakeIngester{})
	_, err := s.Get("missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecords_ReturnsCopy(t *testing.T) {
	s := newService(&memStore{records: []models.Record{rec("1", "2024-01-01", false)}}, remote.Unconfigured(), &fakeIngester{})
	require.NoError(t, s.Load(context.Background()))

	got := s.Records()
	got[0].MerchantName = "changed"
	assert.Equal(t, "m-1", s.Records()[0].MerchantName)
}

func TestExport(t *testing.T) {
	s := newService(&memStore{records: []models.Record{rec("1", "2024-01-01", true)}}, remote.Unconfigured(), &fakeIngester{})
	require.NoError(t, s.Load(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1,2024-01-01,m-1,1,,,Synced,0", lines[1])

	s.now = func() time.Time { return time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC) }
	path, err := s.ExportFile(t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "receipts_export_2024-03-02.csv"))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestService_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer st.Close()

	fr := &fakeRemote{}
	s := newService(st, remote.Configured(fr), &fakeIngester{rec: rec("n1", "2024-04-01", false)})
	require.NoError(t, s.Load(ctx))

	_, err = s.Scan(ctx, []byte("img"), "r.jpg")
	require.NoError(t, err)

	sum, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Synced)

	reloaded, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.True(t, reloaded[0].Synced)
}

func TestStatus_Spending(t *testing.T) {
	withSpend := func(id, currency, category, total string) models.Record {
		r := rec(id, "2024-03-01", false)
		r.Currency, r.Category, r.TotalAmount = currency, category, decimal.RequireFromString(total)
		return r
	}
	st := &memStore{records: []models.Record{
		withSpend("1", "EUR", "Groceries", "12.40"),
		withSpend("2", "EUR", "Fuel", "50"),
		withSpend("3", "EUR", "Groceries", "7.60"),
		withSpend("4", "USD", "", "3"),
	}}
	s := newService(st, remote.Unconfigured(), &fakeIngester{})
	require.NoError(t, s.Load(context.Background()))

	status := s.Status()

	type row struct{ currency, category, amount string }
	flatten := func(sp []Spend) []row {
		out := make([]row, 0, len(sp))
		for _, x := range sp {
			out = append(out, row{x.Currency, x.Category, x.Amount.StringFixed(2)})
		}
		return out
	}
	assert.Equal(t, []row{{"EUR", "", "70.00"}, {"USD", "", "3.00"}}, flatten(status.Spent))
	assert.Equal(t, []row{
		{"EUR", "Fuel", "50.00"},
		{"EUR", "Groceries", "20.00"},
		{"USD", "Uncategorized", "3.00"},
	}, flatten(status.ByCategory))
}

func TestStatus_EmptySetHasNoSpending(t *testing.T) {
	s := newService(&memStore{}, remote.Unconfigured(), &fakeIngester{})
	require.NoError(t, s.Load(context.Background()))

	assert.Empty(t, s.Status().Spent)
	assert.Empty(t, s.Status().ByCategory)
}
