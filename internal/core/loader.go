package core

// loader.go turns decoded rows into INSERT statements. Rows are
// partitioned into fixed-size batches, one multi-row INSERT per batch,
// executed sequentially in order. Batches are independent statements:
// when one fails, the earlier ones stay committed and BatchInsertError
// reports how many rows made it in.

import (
	"context"
	"strings"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 100

// Loader bulk-inserts rows through the statement channel.
type Loader struct {
	db        StatementRunner
	batchSize int
}

// NewLoader creates a Loader. Non-positive batchSize falls back to
// DefaultBatchSize.
func NewLoader(db StatementRunner, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{db: db, batchSize: batchSize}
}

// InsertRows loads rows into namespace.table in input order, looking
// each column's value up by its spec Source. Absent fields become NULL.
// It returns the number of rows applied; on a batch failure that count
// covers only the batches committed before the failing one.
func (l *Loader) InsertRows(ctx context.Context, namespaceID, tableID string, specs []ColumnSpec, rows []csv.Row) (int, error) {
	if len(rows) == 0 || len(specs) == 0 {
		return 0, nil
	}
	if err := store.ValidateIdent(namespaceID); err != nil {
		return 0, NewValidationError("invalid identifier %q: %v", namespaceID, err)
	}
	if err := store.ValidateIdent(tableID); err != nil {
		return 0, NewValidationError("invalid identifier %q: %v", tableID, err)
	}

	prefix := insertPrefix(namespaceID, tableID, specs)

	applied := 0
	batch := 0
	for start := 0; start < len(rows); start += l.batchSize {
		batch++
		end := start + l.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		stmt := prefix + valuesClause(specs, rows[start:end])
		if err := l.db.Run(ctx, stmt); err != nil {
			return applied, &BatchInsertError{RowsApplied: applied, Batch: batch, Err: err}
		}
		applied += end - start
	}
	return applied, nil
}

// BatchSize reports the configured rows-per-statement limit.
func (l *Loader) BatchSize() int { return l.batchSize }

func insertPrefix(namespaceID, tableID string, specs []ColumnSpec) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(store.QualifyTable(namespaceID, tableID))
	b.WriteString(" (")
	for i, spec := range specs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(store.QuoteIdent(spec.Name))
	}
	b.WriteString(") VALUES ")
	return b.String()
}

func valuesClause(specs []ColumnSpec, rows []csv.Row) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, spec := range specs {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(store.LiteralValue(row.Get(spec.Source)))
		}
		b.WriteByte(')')
	}
	return b.String()
}
