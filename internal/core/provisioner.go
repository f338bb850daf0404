package core

// provisioner.go creates namespaces and per-upload tables on demand. A
// tenant's first upload creates its schema; every upload recreates the
// target table from the CSV header, so re-ingesting a file replaces the
// table wholesale rather than merging.
//
// Provisioned tables are permissive: every CSV column is
// text (numeric only when a restore snapshot says so) and row level
// security carries allow-all policies. The only surrogate is a generated
// bigint id used as the stable read order.

import (
	"context"
	"strconv"
	"strings"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/naming"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

// StatementRunner executes a single SQL statement. *store.Store
// implements it.
type StatementRunner interface {
	Run(ctx context.Context, stmt string) error
}

// ColumnSpec describes one provisioned column.
type ColumnSpec struct {
	// Name is the sanitized column identifier.
	Name string
	// Source is the header field the column was derived from. Loading
	// looks rows up by Source, so renames stay transparent.
	Source string
	// Numeric selects a numeric column instead of text. Only restore
	// snapshots set it; header-derived columns are always text.
	Numeric bool
}

// SanitizeColumnName turns a raw CSV header field into a column
// identifier. Letters, digits and Hangul syllables are kept; any run of
// other characters, whitespace and underscores included, becomes a
// single underscore between kept characters. The result never has a
// leading, trailing or doubled underscore. An empty result falls back
// to "col".
func SanitizeColumnName(field string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(field) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', naming.IsHangulSyllable(r):
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		default:
			pendingSep = b.Len() > 0
		}
	}
	if b.Len() == 0 {
		return "col"
	}
	return b.String()
}

// BuildColumnSpecs derives text column specs from a CSV header. Fields
// that sanitize to a name already taken get a numeric suffix so the
// CREATE TABLE never collides.
func BuildColumnSpecs(header []string) []ColumnSpec {
	specs := make([]ColumnSpec, 0, len(header))
	seen := make(map[string]int, len(header))
	for _, field := range header {
		name := SanitizeColumnName(field)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}
		specs = append(specs, ColumnSpec{Name: name, Source: field})
	}
	return specs
}

// Provisioner issues namespace and table DDL through the statement
// channel.
type Provisioner struct {
	db StatementRunner
}

// NewProvisioner creates a Provisioner over the given statement runner.
func NewProvisioner(db StatementRunner) *Provisioner {
	return &Provisioner{db: db}
}

// EnsureNamespace creates the tenant schema if it does not exist. The
// call is idempotent and safe under concurrent uploads for the same
// tenant.
func (p *Provisioner) EnsureNamespace(ctx context.Context, namespaceID string) error {
	if err := store.ValidateIdent(namespaceID); err != nil {
		return NewValidationError("invalid identifier %q: %v", namespaceID, err)
	}
	stmt := "CREATE SCHEMA IF NOT EXISTS " + store.QuoteIdent(namespaceID)
	if err := p.db.Run(ctx, stmt); err != nil {
		return &ProvisioningError{Op: "ensure namespace", Err: err}
	}
	return nil
}

// RecreateTable drops any previous table of the same name and creates a
// fresh one: a generated bigint primary key named id, then one column
// per spec in header order.
func (p *Provisioner) RecreateTable(ctx context.Context, namespaceID, tableID string, specs []ColumnSpec) error {
	if err := store.ValidateIdent(namespaceID); err != nil {
		return NewValidationError("invalid identifier %q: %v", namespaceID, err)
	}
	if err := store.ValidateIdent(tableID); err != nil {
		return NewValidationError("invalid identifier %q: %v", tableID, err)
	}

	ref := store.QualifyTable(namespaceID, tableID)
	if err := p.db.Run(ctx, "DROP TABLE IF EXISTS "+ref); err != nil {
		return &ProvisioningError{Op: "recreate table", Err: err}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(ref)
	b.WriteString(" (id bigint generated always as identity primary key")
	for _, spec := range specs {
		b.WriteString(", ")
		b.WriteString(store.QuoteIdent(spec.Name))
		if spec.Numeric {
			b.WriteString(" numeric")
		} else {
			b.WriteString(" text")
		}
	}
	b.WriteString(")")
	if err := p.db.Run(ctx, b.String()); err != nil {
		return &ProvisioningError{Op: "recreate table", Err: err}
	}
	return nil
}

// ApplyAccessPolicy enables row level security on the table and attaches
// permissive read and insert policies. The policies allow everything
// today; the hook exists so real tenant predicates can replace them
// without touching ingestion.
func (p *Provisioner) ApplyAccessPolicy(ctx context.Context, namespaceID, tableID string) error {
	if err := store.ValidateIdent(namespaceID); err != nil {
		return NewValidationError("invalid identifier %q: %v", namespaceID, err)
	}
	if err := store.ValidateIdent(tableID); err != nil {
		return NewValidationError("invalid identifier %q: %v", tableID, err)
	}

	ref := store.QualifyTable(namespaceID, tableID)
	stmts := []string{
		"ALTER TABLE " + ref + " ENABLE ROW LEVEL SECURITY",
		"CREATE POLICY allow_read ON " + ref + " FOR SELECT USING (true)",
		"CREATE POLICY allow_insert ON " + ref + " FOR INSERT WITH CHECK (true)",
	}
	for _, stmt := range stmts {
		if err := p.db.Run(ctx, stmt); err != nil {
			return &ProvisioningError{Op: "access policy", Err: err}
		}
	}
	return nil
}

// DropTable removes a provisioned table. Missing tables are not an
// error.
func (p *Provisioner) DropTable(ctx context.Context, namespaceID, tableID string) error {
	if err := store.ValidateIdent(namespaceID); err != nil {
		return NewValidationError("invalid identifier %q: %v", namespaceID, err)
	}
	if err := store.ValidateIdent(tableID); err != nil {
		return NewValidationError("invalid identifier %q: %v", tableID, err)
	}
	stmt := "DROP TABLE IF EXISTS " + store.QualifyTable(namespaceID, tableID)
	if err := p.db.Run(ctx, stmt); err != nil {
		return &ProvisioningError{Op: "drop table", Err: err}
	}
	return nil
}

// DropNamespace removes an empty tenant schema. The shared namespace is
// never dropped.
func (p *Provisioner) DropNamespace(ctx context.Context, namespaceID string) error {
	if namespaceID == store.DefaultNamespace {
		return nil
	}
	if err := store.ValidateIdent(namespaceID); err != nil {
		return NewValidationError("invalid identifier %q: %v", namespaceID, err)
	}
	stmt := "DROP SCHEMA IF EXISTS " + store.QuoteIdent(namespaceID)
	if err := p.db.Run(ctx, stmt); err != nil {
		return &ProvisioningError{Op: "drop namespace", Err: err}
	}
	return nil
}
