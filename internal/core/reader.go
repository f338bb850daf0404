package core

// reader.go serves table reads. Every entry point validates the table
// reference against the identifier grammar before any store access, so
// a hostile reference never reaches statement assembly. Reads order by
// the surrogate id column, which every provisioned table carries.

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

const (
	// DefaultPageSize applies when a read request names no page size.
	DefaultPageSize = 50
	// MaxPageSize caps a single read request.
	MaxPageSize = 500
)

// PageResult is one page of a provisioned table.
type PageResult struct {
	TableID    string    `json:"tableId"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalRows  int       `json:"totalRows"`
	TotalPages int       `json:"totalPages"`
	Columns    []string  `json:"columns"`
	Rows       []csv.Row `json:"rows"`
}

// Reader pages through provisioned tables.
type Reader struct {
	db *store.Store
}

// NewReader creates a Reader over the given store.
func NewReader(db *store.Store) *Reader {
	return &Reader{db: db}
}

// NormalizePage clamps page and pageSize to usable values.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// TotalPages computes the page count for totalRows at pageSize. Zero
// rows means zero pages.
func TotalPages(totalRows, pageSize int) int {
	if totalRows <= 0 || pageSize <= 0 {
		return 0
	}
	return (totalRows + pageSize - 1) / pageSize
}

// Page reads one page of tableRef ordered by the surrogate id. A page
// past the end returns an empty row set with the same totals.
func (r *Reader) Page(ctx context.Context, tableRef string, page, pageSize int) (*PageResult, error) {
	if err := store.ValidateTableRef(tableRef); err != nil {
		return nil, NewValidationError("%v", err)
	}
	page, pageSize = NormalizePage(page, pageSize)

	ns, table := store.SplitTableRef(tableRef)
	ref := store.QualifyTable(ns, table)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM "+ref).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", tableRef, err)
	}

	res := &PageResult{
		TableID:    tableRef,
		Page:       page,
		PageSize:   pageSize,
		TotalRows:  total,
		TotalPages: TotalPages(total, pageSize),
		Columns:    []string{},
		Rows:       []csv.Row{},
	}

	offset := (page - 1) * pageSize
	if total == 0 || offset >= total {
		return res, nil
	}

	stmt := fmt.Sprintf("SELECT * FROM %s ORDER BY id LIMIT %d OFFSET %d", ref, pageSize, offset)
	cols, rows, err := r.scan(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tableRef, err)
	}
	res.Columns = cols
	res.Rows = rows
	return res, nil
}

// ReadAll returns every row of tableRef in id order, plus the column
// names. Soft delete snapshots tables through it.
func (r *Reader) ReadAll(ctx context.Context, tableRef string) ([]string, []csv.Row, error) {
	if err := store.ValidateTableRef(tableRef); err != nil {
		return nil, nil, NewValidationError("%v", err)
	}
	ns, table := store.SplitTableRef(tableRef)
	ref := store.QualifyTable(ns, table)

	cols, rows, err := r.scan(ctx, "SELECT * FROM "+ref+" ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", tableRef, err)
	}
	return cols, rows, nil
}

func (r *Reader) scan(ctx context.Context, stmt string) ([]string, []csv.Row, error) {
	rows, err := r.db.Query(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}

	var out []csv.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := csv.NewRow()
		for i, col := range cols {
			if i < len(vals) {
				row.Set(col, toValue(vals[i]))
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

// toValue maps a scanned database value onto the tagged value type.
// Provisioned tables only hold text, numeric and the bigint id, but the
// fallback keeps unexpected types readable instead of failing the page.
func toValue(v any) csv.Value {
	switch x := v.(type) {
	case nil:
		return csv.Absent
	case string:
		return csv.Text(x)
	case int64:
		return csv.Number(float64(x))
	case int32:
		return csv.Number(float64(x))
	case float64:
		return csv.Number(x)
	case float32:
		return csv.Number(float64(x))
	case pgtype.Numeric:
		if f, err := x.Float64Value(); err == nil && f.Valid {
			return csv.Number(f.Float64)
		}
		return csv.Absent
	default:
		return csv.Text(fmt.Sprint(x))
	}
}
