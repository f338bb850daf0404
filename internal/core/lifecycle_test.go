package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeReader struct {
	cols []string
	rows []csv.Row
	err  error
}

func (f *fakeReader) ReadAll(context.Context, string) ([]string, []csv.Row, error) {
	return f.cols, f.rows, f.err
}

type fakeProvisioner struct {
	calls     []string
	dropErr   error
	recreated []ColumnSpec
}

func (f *fakeProvisioner) EnsureNamespace(_ context.Context, ns string) error {
	f.calls = append(f.calls, "ensure "+ns)
	return nil
}

func (f *fakeProvisioner) RecreateTable(_ context.Context, ns, table string, specs []ColumnSpec) error {
	f.calls = append(f.calls, "recreate "+ns+"."+table)
	f.recreated = specs
	return nil
}

func (f *fakeProvisioner) ApplyAccessPolicy(_ context.Context, ns, table string) error {
	f.calls = append(f.calls, "policy "+ns+"."+table)
	return nil
}

func (f *fakeProvisioner) DropTable(_ context.Context, ns, table string) error {
	f.calls = append(f.calls, "drop "+ns+"."+table)
	return f.dropErr
}

func (f *fakeProvisioner) DropNamespace(_ context.Context, ns string) error {
	f.calls = append(f.calls, "dropns "+ns)
	return nil
}

type fakeLoader struct {
	inserted []csv.Row
	specs    []ColumnSpec
	err      error
}

func (f *fakeLoader) InsertRows(_ context.Context, _, _ string, specs []ColumnSpec, rows []csv.Row) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.specs = specs
	f.inserted = rows
	return len(rows), nil
}

type fakeLedger struct {
	records []UploadRecord
	found   *UploadRecord
	deleted []string
	count   int
}

func (f *fakeLedger) Record(_ context.Context, rec UploadRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) FindByTable(context.Context, string) (*UploadRecord, error) {
	if f.found == nil {
		return nil, ErrNotFound
	}
	return f.found, nil
}

func (f *fakeLedger) DeleteByTable(_ context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeLedger) CountByNamespace(context.Context, string) (int, error) {
	return f.count, nil
}

type fakeTrash struct {
	entries   map[string]TrashEntry
	insertErr error
	order     []string
}

func newFakeTrash() *fakeTrash {
	return &fakeTrash{entries: map[string]TrashEntry{}}
}

func (f *fakeTrash) Insert(_ context.Context, e TrashEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries[e.ID] = e
	f.order = append(f.order, e.ID)
	return nil
}

func (f *fakeTrash) Get(_ context.Context, id string) (*TrashEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (f *fakeTrash) List(context.Context) ([]TrashEntry, error) {
	out := make([]TrashEntry, 0, len(f.entries))
	for _, id := range f.order {
		if e, ok := f.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTrash) Delete(_ context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeTrash) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	for id, e := range f.entries {
		if !e.ExpiresAt.After(now) {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

func snapshotRows() []csv.Row {
	r1 := csv.NewRow()
	r1.Set("id", csv.Number(1))
	r1.Set("date", csv.Text("2025-12-06"))
	r1.Set("amount", csv.Number(1200))
	r2 := csv.NewRow()
	r2.Set("id", csv.Number(2))
	r2.Set("date", csv.Text("2025-12-07"))
	r2.Set("amount", csv.Absent)
	return []csv.Row{r1, r2}
}

func newTestLifecycle(reader *fakeReader, prov *fakeProvisioner, loader *fakeLoader,
	ledger *fakeLedger, trash *fakeTrash) *Lifecycle {
	lc := NewLifecycle(reader, prov, loader, ledger, trash, 30*24*time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	lc.now = func() time.Time { return time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC) }
	return lc
}

// ============================================================================
// Soft delete
// ============================================================================

func TestSoftDelete(t *testing.T) {
	reader := &fakeReader{cols: []string{"id", "date", "amount"}, rows: snapshotRows()}
	prov := &fakeProvisioner{}
	ledger := &fakeLedger{found: &UploadRecord{
		CompanyName: "모찌고", FileName: "모찌고251206.csv", FileDate: "251206",
	}}
	trash := newFakeTrash()
	lc := newTestLifecycle(reader, prov, &fakeLoader{}, ledger, trash)

	entry, err := lc.SoftDelete(context.Background(), "mojjigo.sales_251206_120000")
	if err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	if entry.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", entry.RowCount)
	}
	if entry.CompanyName != "모찌고" {
		t.Errorf("CompanyName = %q, want ledger metadata", entry.CompanyName)
	}
	if entry.TableID != "mojjigo.sales_251206_120000" {
		t.Errorf("TableID = %q", entry.TableID)
	}
	wantExpiry := entry.DeletedAt.Add(30 * 24 * time.Hour)
	if !entry.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, wantExpiry)
	}
	if len(trash.entries) != 1 {
		t.Errorf("trash holds %d entries, want 1", len(trash.entries))
	}
	if len(prov.calls) == 0 || prov.calls[0] != "drop mojjigo.sales_251206_120000" {
		t.Errorf("table not dropped: %v", prov.calls)
	}
	if len(ledger.deleted) != 1 {
		t.Errorf("ledger rows not removed: %v", ledger.deleted)
	}
}

func TestSoftDelete_TrashFailureKeepsTable(t *testing.T) {
	reader := &fakeReader{cols: []string{"id"}, rows: snapshotRows()}
	prov := &fakeProvisioner{}
	trash := newFakeTrash()
	trash.insertErr = errors.New("disk full")
	lc := newTestLifecycle(reader, prov, &fakeLoader{}, &fakeLedger{}, trash)

	_, err := lc.SoftDelete(context.Background(), "mojjigo.sales_251206_120000")
	var le *LifecycleError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want LifecycleError", err)
	}
	for _, call := range prov.calls {
		if call == "drop mojjigo.sales_251206_120000" {
			t.Fatal("table must not be dropped when the trash write fails")
		}
	}
}

func TestSoftDelete_CollectsEmptyNamespace(t *testing.T) {
	reader := &fakeReader{cols: []string{"id"}, rows: snapshotRows()}
	prov := &fakeProvisioner{}
	ledger := &fakeLedger{count: 0}
	lc := newTestLifecycle(reader, prov, &fakeLoader{}, ledger, newFakeTrash())

	if _, err := lc.SoftDelete(context.Background(), "mojjigo.sales_251206_120000"); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	found := false
	for _, call := range prov.calls {
		if call == "dropns mojjigo" {
			found = true
		}
	}
	if !found {
		t.Errorf("empty namespace should be collected: %v", prov.calls)
	}
}

func TestSoftDelete_KeepsBusyNamespace(t *testing.T) {
	reader := &fakeReader{cols: []string{"id"}, rows: snapshotRows()}
	prov := &fakeProvisioner{}
	ledger := &fakeLedger{count: 2}
	lc := newTestLifecycle(reader, prov, &fakeLoader{}, ledger, newFakeTrash())

	if _, err := lc.SoftDelete(context.Background(), "mojjigo.sales_251206_120000"); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	for _, call := range prov.calls {
		if call == "dropns mojjigo" {
			t.Fatal("namespace with live tables must not be dropped")
		}
	}
}

func TestSoftDelete_RejectsBadRef(t *testing.T) {
	lc := newTestLifecycle(&fakeReader{}, &fakeProvisioner{}, &fakeLoader{}, &fakeLedger{}, newFakeTrash())

	_, err := lc.SoftDelete(context.Background(), "a.b.c")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

// ============================================================================
// Restore
// ============================================================================

func TestRestore(t *testing.T) {
	prov := &fakeProvisioner{}
	loader := &fakeLoader{}
	ledger := &fakeLedger{}
	trash := newFakeTrash()
	entry := TrashEntry{
		ID:          "e1",
		TableID:     "mojjigo.sales_251206_120000",
		CompanyName: "모찌고",
		FileName:    "모찌고251206.csv",
		FileDate:    "251206",
		Columns:     []string{"id", "date", "amount"},
		Snapshot:    snapshotRows(),
	}
	trash.entries["e1"] = entry
	trash.order = []string{"e1"}
	lc := newTestLifecycle(&fakeReader{}, prov, loader, ledger, trash)

	rec, err := lc.Restore(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	// Surrogate id is excluded, types come from the first snapshot row.
	if len(prov.recreated) != 2 {
		t.Fatalf("got %d specs, want 2 (id excluded)", len(prov.recreated))
	}
	if prov.recreated[0].Name != "date" || prov.recreated[0].Numeric {
		t.Errorf("specs[0] = %+v, want text date", prov.recreated[0])
	}
	if prov.recreated[1].Name != "amount" || !prov.recreated[1].Numeric {
		t.Errorf("specs[1] = %+v, want numeric amount", prov.recreated[1])
	}

	if len(loader.inserted) != 2 {
		t.Errorf("inserted %d rows, want 2", len(loader.inserted))
	}
	if rec.RowCount != 2 || rec.CompanyName != "모찌고" || rec.TableID != "mojjigo.sales_251206_120000" {
		t.Errorf("ledger record = %+v", rec)
	}
	if len(ledger.records) != 1 {
		t.Errorf("restore must append exactly one ledger row, got %d", len(ledger.records))
	}
	if _, ok := trash.entries["e1"]; ok {
		t.Error("trash entry should be removed after restore")
	}
}

func TestSoftDeleteThenRestore_RowCountRoundTrip(t *testing.T) {
	reader := &fakeReader{cols: []string{"id", "date", "amount"}, rows: snapshotRows()}
	prov := &fakeProvisioner{}
	loader := &fakeLoader{}
	ledger := &fakeLedger{}
	trash := newFakeTrash()
	lc := newTestLifecycle(reader, prov, loader, ledger, trash)

	entry, err := lc.SoftDelete(context.Background(), "mojjigo.sales_251206_120000")
	if err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	rec, err := lc.Restore(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if rec.RowCount != len(reader.rows) {
		t.Errorf("restored RowCount = %d, want %d", rec.RowCount, len(reader.rows))
	}
	if len(loader.inserted) != len(reader.rows) {
		t.Errorf("reinserted %d rows, want %d", len(loader.inserted), len(reader.rows))
	}
}

func TestRestore_NotFound(t *testing.T) {
	lc := newTestLifecycle(&fakeReader{}, &fakeProvisioner{}, &fakeLoader{}, &fakeLedger{}, newFakeTrash())

	_, err := lc.Restore(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRestore_LoadFailureKeepsEntry(t *testing.T) {
	trash := newFakeTrash()
	trash.entries["e1"] = TrashEntry{ID: "e1", TableID: "mojjigo.t", Snapshot: snapshotRows()}
	trash.order = []string{"e1"}
	loader := &fakeLoader{err: errors.New("insert failed")}
	lc := newTestLifecycle(&fakeReader{}, &fakeProvisioner{}, loader, &fakeLedger{}, trash)

	_, err := lc.Restore(context.Background(), "e1")
	var le *LifecycleError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want LifecycleError", err)
	}
	if _, ok := trash.entries["e1"]; !ok {
		t.Error("failed restore must leave the trash entry intact")
	}
}

// ============================================================================
// Purge, listing, expiry
// ============================================================================

func TestPurge(t *testing.T) {
	trash := newFakeTrash()
	trash.entries["e1"] = TrashEntry{ID: "e1"}
	trash.order = []string{"e1"}
	lc := newTestLifecycle(&fakeReader{}, &fakeProvisioner{}, &fakeLoader{}, &fakeLedger{}, trash)

	if err := lc.Purge(context.Background(), "e1"); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if err := lc.Purge(context.Background(), "e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second purge error = %v, want ErrNotFound", err)
	}
}

func TestList_DaysLeft(t *testing.T) {
	trash := newFakeTrash()
	lc := newTestLifecycle(&fakeReader{}, &fakeProvisioner{}, &fakeLoader{}, &fakeLedger{}, trash)
	now := lc.now()

	trash.entries["fresh"] = TrashEntry{ID: "fresh", ExpiresAt: now.Add(30 * 24 * time.Hour)}
	trash.entries["partial"] = TrashEntry{ID: "partial", ExpiresAt: now.Add(36 * time.Hour)}
	trash.entries["expired"] = TrashEntry{ID: "expired", ExpiresAt: now.Add(-time.Hour)}
	trash.order = []string{"fresh", "partial", "expired"}

	views, err := lc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := map[string]int{"fresh": 30, "partial": 2, "expired": 0}
	for _, v := range views {
		if v.DaysLeft != want[v.ID] {
			t.Errorf("DaysLeft(%s) = %d, want %d", v.ID, v.DaysLeft, want[v.ID])
		}
	}
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want int
	}{
		{"exactly 30 days", now.Add(30 * 24 * time.Hour), 30},
		{"partial day rounds up", now.Add(25 * time.Hour), 2},
		{"under a day", now.Add(time.Minute), 1},
		{"expired", now.Add(-time.Hour), 0},
		{"expiring now", now, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysLeft(tt.exp, now); got != tt.want {
				t.Errorf("DaysLeft() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSweepExpired(t *testing.T) {
	trash := newFakeTrash()
	lc := newTestLifecycle(&fakeReader{}, &fakeProvisioner{}, &fakeLoader{}, &fakeLedger{}, trash)
	now := lc.now()

	trash.entries["old"] = TrashEntry{ID: "old", ExpiresAt: now.Add(-time.Hour)}
	trash.entries["new"] = TrashEntry{ID: "new", ExpiresAt: now.Add(time.Hour)}
	trash.order = []string{"old", "new"}

	n, err := lc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d entries, want 1", n)
	}
	if _, ok := trash.entries["new"]; !ok {
		t.Error("unexpired entry must survive the sweep")
	}
}
