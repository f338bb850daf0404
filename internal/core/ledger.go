package core

// ledger.go maintains public.upload_records, the append-only history of
// ingestions. The ledger is bookkeeping, not source of truth: provisioned
// tables exist independently of it, and a failed ledger append never
// fails the upload that produced the table.
//
// Ledger statements are the parameterized exception to the statement
// channel. They run against a fixed table with typed arguments, so they
// use pgx placeholders instead of string assembly.

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

// UploadRecord is one ledger row. TableID is the namespace-qualified
// reference of the provisioned table.
type UploadRecord struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"companyName"`
	NamespaceID string    `json:"namespaceId"`
	TableID     string    `json:"tableId"`
	FileName    string    `json:"fileName"`
	FileDate    string    `json:"fileDate"`
	RowCount    int       `json:"rowCount"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Ledger reads and appends upload history.
type Ledger struct {
	db *store.Store
}

// NewLedger creates a Ledger over the given store.
func NewLedger(db *store.Store) *Ledger {
	return &Ledger{db: db}
}

// EnsureSchema creates the ledger table if it does not exist. Called
// once at startup.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS public.upload_records (
		id bigint generated always as identity primary key,
		company_name text not null,
		namespace_id text not null,
		table_id text not null,
		file_name text not null,
		file_date text not null,
		row_count integer not null,
		uploaded_at timestamptz not null default now()
	)`
	return l.db.Run(ctx, stmt)
}

// Record appends one upload to the history. The caller decides whether
// a failure is fatal; during ingestion it is logged and swallowed.
func (l *Ledger) Record(ctx context.Context, rec UploadRecord) error {
	_, err := l.db.Exec(ctx,
		`INSERT INTO public.upload_records
			(company_name, namespace_id, table_id, file_name, file_date, row_count, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.CompanyName, rec.NamespaceID, rec.TableID, rec.FileName,
		rec.FileDate, rec.RowCount, rec.UploadedAt)
	if err != nil {
		return &LedgerWriteError{Err: err}
	}
	return nil
}

// List returns the full history, newest first.
func (l *Ledger) List(ctx context.Context) ([]UploadRecord, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id, company_name, namespace_id, table_id, file_name, file_date, row_count, uploaded_at
		 FROM public.upload_records
		 ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		if err := rows.Scan(&rec.ID, &rec.CompanyName, &rec.NamespaceID, &rec.TableID,
			&rec.FileName, &rec.FileDate, &rec.RowCount, &rec.UploadedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// FindByTable returns the newest ledger row for a qualified table
// reference, or ErrNotFound.
func (l *Ledger) FindByTable(ctx context.Context, tableRef string) (*UploadRecord, error) {
	var rec UploadRecord
	err := l.db.QueryRow(ctx,
		`SELECT id, company_name, namespace_id, table_id, file_name, file_date, row_count, uploaded_at
		 FROM public.upload_records
		 WHERE table_id = $1
		 ORDER BY uploaded_at DESC, id DESC
		 LIMIT 1`,
		tableRef).Scan(&rec.ID, &rec.CompanyName, &rec.NamespaceID, &rec.TableID,
		&rec.FileName, &rec.FileDate, &rec.RowCount, &rec.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteByTable removes every ledger row for a qualified table
// reference. History removal is part of soft delete; the trash entry
// carries the metadata from here on.
func (l *Ledger) DeleteByTable(ctx context.Context, tableRef string) error {
	_, err := l.db.Exec(ctx,
		`DELETE FROM public.upload_records WHERE table_id = $1`, tableRef)
	return err
}

// CountByNamespace reports how many ledger rows reference tables in the
// given namespace. Zero means the schema holds no live uploads and is a
// candidate for cleanup.
func (l *Ledger) CountByNamespace(ctx context.Context, namespaceID string) (int, error) {
	var n int
	err := l.db.QueryRow(ctx,
		`SELECT count(*) FROM public.upload_records WHERE namespace_id = $1`,
		namespaceID).Scan(&n)
	return n, err
}

// TenantSummary aggregates a tenant's uploads for the tenant listing.
type TenantSummary struct {
	CompanyName string    `json:"companyName"`
	NamespaceID string    `json:"namespaceId"`
	FileCount   int       `json:"fileCount"`
	TotalRows   int       `json:"totalRows"`
	LastUpload  time.Time `json:"lastUpload"`
	Tables      []string  `json:"tables"`
}

// SummarizeByTenant groups ledger rows by company name. Sorted by
// company name so the listing is stable across calls.
func SummarizeByTenant(recs []UploadRecord) []TenantSummary {
	byName := make(map[string]*TenantSummary)
	for _, rec := range recs {
		s, ok := byName[rec.CompanyName]
		if !ok {
			s = &TenantSummary{CompanyName: rec.CompanyName, NamespaceID: rec.NamespaceID}
			byName[rec.CompanyName] = s
		}
		s.FileCount++
		s.TotalRows += rec.RowCount
		if rec.UploadedAt.After(s.LastUpload) {
			s.LastUpload = rec.UploadedAt
		}
		s.Tables = append(s.Tables, rec.TableID)
	}

	out := make([]TenantSummary, 0, len(byName))
	for _, s := range byName {
		sort.Strings(s.Tables)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyName < out[j].CompanyName })
	return out
}
