package core

// lifecycle.go orchestrates soft delete, restore and purge. The ordering
// inside SoftDelete is the safety property: the snapshot lands in trash
// before the live table is dropped, so a failure at any step leaves the
// data recoverable from one place or the other. Restore is the reverse
// trip and leaves the trash entry intact until the table is rebuilt and
// reloaded.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

// DefaultRetention is how long trash entries survive before expiry.
const DefaultRetention = 30 * 24 * time.Hour

// surrogateColumn is excluded from reinsertion on restore; the recreated
// table generates its own.
const surrogateColumn = "id"

type snapshotReader interface {
	ReadAll(ctx context.Context, tableRef string) ([]string, []csv.Row, error)
}

type tableProvisioner interface {
	EnsureNamespace(ctx context.Context, namespaceID string) error
	RecreateTable(ctx context.Context, namespaceID, tableID string, specs []ColumnSpec) error
	ApplyAccessPolicy(ctx context.Context, namespaceID, tableID string) error
	DropTable(ctx context.Context, namespaceID, tableID string) error
	DropNamespace(ctx context.Context, namespaceID string) error
}

type rowLoader interface {
	InsertRows(ctx context.Context, namespaceID, tableID string, specs []ColumnSpec, rows []csv.Row) (int, error)
}

type uploadHistory interface {
	Record(ctx context.Context, rec UploadRecord) error
	FindByTable(ctx context.Context, tableRef string) (*UploadRecord, error)
	DeleteByTable(ctx context.Context, tableRef string) error
	CountByNamespace(ctx context.Context, namespaceID string) (int, error)
}

type trashRepository interface {
	Insert(ctx context.Context, e TrashEntry) error
	Get(ctx context.Context, id string) (*TrashEntry, error)
	List(ctx context.Context) ([]TrashEntry, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Lifecycle moves tables between live, trash and gone.
type Lifecycle struct {
	reader    snapshotReader
	prov      tableProvisioner
	loader    rowLoader
	ledger    uploadHistory
	trash     trashRepository
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewLifecycle wires a Lifecycle. Non-positive retention falls back to
// DefaultRetention.
func NewLifecycle(reader snapshotReader, prov tableProvisioner, loader rowLoader,
	ledger uploadHistory, trash trashRepository, retention time.Duration, log *slog.Logger) *Lifecycle {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{
		reader:    reader,
		prov:      prov,
		loader:    loader,
		ledger:    ledger,
		trash:     trash,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

// SoftDelete snapshots tableRef into trash, drops the live table and
// removes its ledger rows. The trash entry is written before the drop;
// if the drop itself fails the table survives alongside the entry and
// the call can be retried.
func (lc *Lifecycle) SoftDelete(ctx context.Context, tableRef string) (*TrashEntry, error) {
	if err := store.ValidateTableRef(tableRef); err != nil {
		return nil, NewValidationError("%v", err)
	}
	ns, table := store.SplitTableRef(tableRef)
	canonical := ns + "." + table

	entry := TrashEntry{
		ID:          uuid.NewString(),
		TableID:     canonical,
		CompanyName: ns,
		NamespaceID: ns,
	}
	if rec, err := lc.ledger.FindByTable(ctx, canonical); err == nil {
		entry.CompanyName = rec.CompanyName
		entry.FileName = rec.FileName
		entry.FileDate = rec.FileDate
	}

	cols, rows, err := lc.reader.ReadAll(ctx, canonical)
	if err != nil {
		return nil, &LifecycleError{Op: "soft delete", Err: err}
	}
	entry.Columns = cols
	entry.Snapshot = rows
	entry.RowCount = len(rows)
	now := lc.now()
	entry.DeletedAt = now
	entry.ExpiresAt = now.Add(lc.retention)

	if err := lc.trash.Insert(ctx, entry); err != nil {
		return nil, &LifecycleError{Op: "soft delete", Err: err}
	}
	if err := lc.prov.DropTable(ctx, ns, table); err != nil {
		return nil, &LifecycleError{Op: "soft delete", Err: err}
	}
	if err := lc.ledger.DeleteByTable(ctx, canonical); err != nil {
		lc.log.Warn("ledger cleanup failed after soft delete",
			"table", canonical, "error", err)
	}

	lc.collectNamespace(ctx, ns)

	return &entry, nil
}

// collectNamespace drops a tenant schema once its last table is gone.
// Best effort: a failure only logs, the schema stays until the next
// delete in it.
func (lc *Lifecycle) collectNamespace(ctx context.Context, namespaceID string) {
	if namespaceID == store.DefaultNamespace {
		return
	}
	n, err := lc.ledger.CountByNamespace(ctx, namespaceID)
	if err != nil {
		lc.log.Warn("namespace table count failed", "namespace", namespaceID, "error", err)
		return
	}
	if n > 0 {
		return
	}
	if err := lc.prov.DropNamespace(ctx, namespaceID); err != nil {
		lc.log.Warn("namespace cleanup failed", "namespace", namespaceID, "error", err)
	}
}

// Restore rebuilds a trashed table from its snapshot, appends a fresh
// ledger row and removes the trash entry. Any failure before the trash
// removal leaves the entry untouched so restore can be retried.
func (lc *Lifecycle) Restore(ctx context.Context, id string) (*UploadRecord, error) {
	entry, err := lc.trash.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ns, table := store.SplitTableRef(entry.TableID)
	specs := inferColumnSpecs(entry)

	if err := lc.prov.EnsureNamespace(ctx, ns); err != nil {
		return nil, &LifecycleError{Op: "restore", Err: err}
	}
	if err := lc.prov.RecreateTable(ctx, ns, table, specs); err != nil {
		return nil, &LifecycleError{Op: "restore", Err: err}
	}
	if err := lc.prov.ApplyAccessPolicy(ctx, ns, table); err != nil {
		return nil, &LifecycleError{Op: "restore", Err: err}
	}
	if _, err := lc.loader.InsertRows(ctx, ns, table, specs, entry.Snapshot); err != nil {
		return nil, &LifecycleError{Op: "restore", Err: err}
	}

	rec := UploadRecord{
		CompanyName: entry.CompanyName,
		NamespaceID: ns,
		TableID:     entry.TableID,
		FileName:    entry.FileName,
		FileDate:    entry.FileDate,
		RowCount:    len(entry.Snapshot),
		UploadedAt:  lc.now(),
	}
	if err := lc.ledger.Record(ctx, rec); err != nil {
		lc.log.Warn("ledger write failed after restore", "table", entry.TableID, "error", err)
	}
	if err := lc.trash.Delete(ctx, id); err != nil {
		lc.log.Warn("trash cleanup failed after restore", "id", id, "error", err)
	}
	return &rec, nil
}

// Purge removes a trash entry immediately. The snapshot is gone for
// good; there is no undo past this point.
func (lc *Lifecycle) Purge(ctx context.Context, id string) error {
	if err := lc.trash.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return &LifecycleError{Op: "purge", Err: err}
	}
	return nil
}

// TrashView is a trash entry as shown in listings, with the remaining
// retention in whole days.
type TrashView struct {
	TrashEntry
	DaysLeft int `json:"daysLeft"`
}

// List returns all trash entries with their remaining days.
func (lc *Lifecycle) List(ctx context.Context) ([]TrashView, error) {
	entries, err := lc.trash.List(ctx)
	if err != nil {
		return nil, err
	}
	now := lc.now()
	out := make([]TrashView, 0, len(entries))
	for _, e := range entries {
		out = append(out, TrashView{TrashEntry: e, DaysLeft: DaysLeft(e.ExpiresAt, now)})
	}
	return out, nil
}

// SweepExpired removes entries past their retention window. Intended
// for a periodic background run; returns how many were purged.
func (lc *Lifecycle) SweepExpired(ctx context.Context) (int, error) {
	return lc.trash.DeleteExpired(ctx, lc.now())
}

// DaysLeft reports the whole days until expiry, rounded up, never
// negative. An expired entry shows zero until the sweeper removes it.
func DaysLeft(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// inferColumnSpecs rebuilds column specs from a snapshot. Order comes
// from the stored column list, types from the first row only: a number
// there makes the column numeric, anything else text. The surrogate id
// is skipped; the recreated table generates a new one.
func inferColumnSpecs(entry *TrashEntry) []ColumnSpec {
	cols := entry.Columns
	if len(cols) == 0 && len(entry.Snapshot) > 0 {
		cols = entry.Snapshot[0].Keys
	}

	var first csv.Row
	if len(entry.Snapshot) > 0 {
		first = entry.Snapshot[0]
	}

	specs := make([]ColumnSpec, 0, len(cols))
	for _, col := range cols {
		if col == surrogateColumn {
			continue
		}
		specs = append(specs, ColumnSpec{
			Name:    col,
			Source:  col,
			Numeric: first.Get(col).IsNumber(),
		})
	}
	return specs
}
