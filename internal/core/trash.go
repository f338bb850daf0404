package core

// trash.go persists soft-deleted tables in public.trash_entries. Each
// entry carries the table's full data snapshot as JSONB plus the ledger
// metadata captured at deletion time, which is everything restore needs
// after the live table and its history rows are gone.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

// TrashEntry is one soft-deleted table awaiting restore or expiry.
type TrashEntry struct {
	ID          string    `json:"id"`
	TableID     string    `json:"tableId"`
	CompanyName string    `json:"companyName"`
	NamespaceID string    `json:"namespaceId"`
	FileName    string    `json:"fileName"`
	FileDate    string    `json:"fileDate"`
	RowCount    int       `json:"rowCount"`
	Columns     []string  `json:"columns"`
	Snapshot    []csv.Row `json:"snapshot,omitempty"`
	DeletedAt   time.Time `json:"deletedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TrashStore reads and writes trash entries.
type TrashStore struct {
	db *store.Store
}

// NewTrashStore creates a TrashStore over the given store.
func NewTrashStore(db *store.Store) *TrashStore {
	return &TrashStore{db: db}
}

// EnsureSchema creates the trash table if it does not exist. Called once
// at startup.
func (t *TrashStore) EnsureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS public.trash_entries (
		id uuid primary key,
		table_id text not null,
		company_name text not null,
		namespace_id text not null,
		file_name text not null,
		file_date text not null,
		row_count integer not null,
		columns jsonb not null,
		snapshot jsonb not null,
		deleted_at timestamptz not null,
		expires_at timestamptz not null
	)`
	return t.db.Run(ctx, stmt)
}

// Insert stores a new trash entry.
func (t *TrashStore) Insert(ctx context.Context, e TrashEntry) error {
	cols, err := json.Marshal(e.Columns)
	if err != nil {
		return err
	}
	snap, err := json.Marshal(e.Snapshot)
	if err != nil {
		return err
	}
	_, err = t.db.Exec(ctx,
		`INSERT INTO public.trash_entries
			(id, table_id, company_name, namespace_id, file_name, file_date,
			 row_count, columns, snapshot, deleted_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.TableID, e.CompanyName, e.NamespaceID, e.FileName, e.FileDate,
		e.RowCount, string(cols), string(snap), e.DeletedAt, e.ExpiresAt)
	return err
}

// Get loads one entry with its snapshot, or ErrNotFound.
func (t *TrashStore) Get(ctx context.Context, id string) (*TrashEntry, error) {
	var (
		e    TrashEntry
		cols []byte
		snap []byte
	)
	err := t.db.QueryRow(ctx,
		`SELECT id, table_id, company_name, namespace_id, file_name, file_date,
			row_count, columns, snapshot, deleted_at, expires_at
		 FROM public.trash_entries WHERE id = $1`, id).
		Scan(&e.ID, &e.TableID, &e.CompanyName, &e.NamespaceID, &e.FileName,
			&e.FileDate, &e.RowCount, &cols, &snap, &e.DeletedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cols, &e.Columns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snap, &e.Snapshot); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns every entry without snapshots, newest deletion first.
func (t *TrashStore) List(ctx context.Context) ([]TrashEntry, error) {
	rows, err := t.db.Query(ctx,
		`SELECT id, table_id, company_name, namespace_id, file_name, file_date,
			row_count, columns, deleted_at, expires_at
		 FROM public.trash_entries
		 ORDER BY deleted_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrashEntry
	for rows.Next() {
		var (
			e    TrashEntry
			cols []byte
		)
		if err := rows.Scan(&e.ID, &e.TableID, &e.CompanyName, &e.NamespaceID,
			&e.FileName, &e.FileDate, &e.RowCount, &cols, &e.DeletedAt, &e.ExpiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cols, &e.Columns); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes one entry permanently, or ErrNotFound if it does not
// exist.
func (t *TrashStore) Delete(ctx context.Context, id string) error {
	tag, err := t.db.Exec(ctx,
		`DELETE FROM public.trash_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes every entry whose retention window has passed
// and reports how many were removed.
func (t *TrashStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := t.db.Exec(ctx,
		`DELETE FROM public.trash_entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
