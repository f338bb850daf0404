// Package core implements the ingestion and lifecycle logic for
// tenant-uploaded CSV files, independent of any transport layer.
//
// # Pipeline
//
// An upload flows through a fixed pipeline owned by [Service]:
//
//   - the file name yields the tenant and file date (internal/naming)
//   - the content yields a header and rows (internal/csv)
//   - [Provisioner] creates the tenant schema and a fresh table
//   - [Loader] bulk-inserts rows in fixed-size batches
//   - [Ledger] appends the upload to public.upload_records
//
// Tables are created from whatever header arrives: all columns text,
// no type or shape validation. Re-uploading a file replaces the table;
// it never merges.
//
// # Lifecycle
//
// [Lifecycle] handles the rest of a table's life. Soft delete snapshots
// the table into public.trash_entries before dropping it, restore
// rebuilds the table from the snapshot, and entries expire after the
// configured retention.
//
// # Statements
//
// DDL and row loading go through a single-statement channel
// (store.Store.Run) with string-built SQL; identifiers are validated
// and quoted, literals escaped, before any string reaches it. The
// bookkeeping tables (ledger, trash) use parameterized queries since
// their shape is fixed.
package core
