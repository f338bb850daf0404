// Package store is the execution channel to the shared relational store.
//
// Every DDL/DML path in the service runs through one primitive: Run, which
// submits an opaque statement string. There is no parameter binding on
// that channel, so this package also centralizes the two defenses every
// caller must use when building statements:
//
//   - QuoteLiteral / LiteralValue for data values (doubling embedded quotes)
//   - ValidateIdent / ValidateTableRef for identifiers on read paths
//
// Typed, parameterized helpers (ledger rows, trash entries, paginated
// reads) go through the underlying DBTX directly via Query/QueryRow/Exec.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store wraps a database handle. It is constructed once in main and
// injected into every component; nothing in the repository holds a
// process-wide handle.
type Store struct {
	db DBTX
}

// New creates a Store over db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Run submits one statement string. This is the sole primitive for DDL
// and string-built DML; callers are responsible for having escaped every
// embedded value and validated every embedded identifier.
func (s *Store) Run(ctx context.Context, stmt string) error {
	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("statement failed: %w", err)
	}
	return nil
}

// Exec runs a parameterized statement (typed helper side of the channel).
func (s *Store) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return s.db.Exec(ctx, sql, args...)
}

// Query runs a parameterized query.
func (s *Store) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return s.db.Query(ctx, sql, args...)
}

// QueryRow runs a parameterized single-row query.
func (s *Store) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return s.db.QueryRow(ctx, sql, args...)
}

// ============================================================================
// Identifier handling
// ============================================================================

// identPattern is the conservative grammar an identifier must satisfy on
// any path that interpolates it into a statement: letters, digits and
// underscore, not digit-leading.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdent rejects any identifier outside the conservative grammar.
// In particular anything containing a quote, a semicolon or whitespace
// fails before it can reach the store.
func ValidateIdent(name string) error {
	if name == "" {
		return fmt.Errorf("invalid identifier: empty")
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// ValidateTableRef validates a table reference that may optionally be
// namespace-qualified ("table" or "namespace.table").
func ValidateTableRef(ref string) error {
	parts := strings.Split(ref, ".")
	if len(parts) > 2 {
		return fmt.Errorf("invalid table reference %q", ref)
	}
	for _, p := range parts {
		if err := ValidateIdent(p); err != nil {
			return fmt.Errorf("invalid table reference %q: %w", ref, err)
		}
	}
	return nil
}

// DefaultNamespace is the shared schema used when a table reference
// carries no namespace. It always exists and is never dropped.
const DefaultNamespace = "public"

// SplitTableRef splits an optionally qualified reference into namespace
// and table, defaulting the namespace to DefaultNamespace. The reference
// must already have passed ValidateTableRef.
func SplitTableRef(ref string) (namespace, table string) {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return DefaultNamespace, ref
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
// Valid identifiers never contain quotes; the doubling is the backstop
// for values that bypassed validation.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifyTable renders namespace.table with both parts quoted.
func QualifyTable(namespace, table string) string {
	return QuoteIdent(namespace) + "." + QuoteIdent(table)
}

// ============================================================================
// Literal handling
// ============================================================================

// QuoteLiteral renders s as a single-quoted SQL string literal, doubling
// every embedded quote. This is the sole injection defense for data
// values on the statement channel.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// LiteralValue renders a tagged cell value for a statement: numbers bare,
// text quoted, absent as NULL.
func LiteralValue(v csv.Value) string {
	switch v.Kind {
	case csv.KindNumber:
		return v.String()
	case csv.KindText:
		return QuoteLiteral(v.Text)
	default:
		return "NULL"
	}
}
