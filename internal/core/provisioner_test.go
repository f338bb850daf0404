package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ============================================================================
// Test helpers
// ============================================================================

// fakeRunner records statements and optionally fails the nth call.
type fakeRunner struct {
	stmts   []string
	failAt  int // 1-based; 0 means never fail
	failErr error
}

func (f *fakeRunner) Run(_ context.Context, stmt string) error {
	f.stmts = append(f.stmts, stmt)
	if f.failAt > 0 && len(f.stmts) == f.failAt {
		if f.failErr != nil {
			return f.failErr
		}
		return errors.New("forced failure")
	}
	return nil
}

// ============================================================================
// Column name sanitization
// ============================================================================

func TestSanitizeColumnName(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"plain", "amount", "amount"},
		{"keeps digits and underscore", "col_1", "col_1"},
		{"keeps hangul", "매출액", "매출액"},
		{"mixed hangul ascii", "매출 total", "매출_total"},
		{"whitespace run to single underscore", "unit   price", "unit_price"},
		{"tab separated", "unit\tprice", "unit_price"},
		{"hyphen to underscore", "unit-price", "unit_price"},
		{"dot to underscore", "a.b", "a_b"},
		{"quote to underscore", `name"drop`, "name_drop"},
		{"punctuation run collapses", "unit -. price", "unit_price"},
		{"doubled underscore collapses", "col__1", "col_1"},
		{"trailing punctuation stripped", "price($)", "price"},
		{"edge underscores stripped", "_price_", "price"},
		{"strips leading trailing space", "  price  ", "price"},
		{"only punctuation falls back", "($)", "col"},
		{"empty falls back", "", "col"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeColumnName(tt.field); got != tt.want {
				t.Errorf("SanitizeColumnName(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestBuildColumnSpecs(t *testing.T) {
	specs := BuildColumnSpecs([]string{"date", "unit price", "매출액"})
	if len(specs) != 3 {
		t.Fatalf("got %d specs, want 3", len(specs))
	}
	wantNames := []string{"date", "unit_price", "매출액"}
	for i, spec := range specs {
		if spec.Name != wantNames[i] {
			t.Errorf("specs[%d].Name = %q, want %q", i, spec.Name, wantNames[i])
		}
		if spec.Numeric {
			t.Errorf("specs[%d] should be text", i)
		}
	}
	// Source keeps the raw header field for row lookup
	if specs[1].Source != "unit price" {
		t.Errorf("specs[1].Source = %q, want %q", specs[1].Source, "unit price")
	}
}

func TestBuildColumnSpecs_Collisions(t *testing.T) {
	// Both fields sanitize to "price"
	specs := BuildColumnSpecs([]string{"price($)", "price(%)"})
	if specs[0].Name != "price" {
		t.Errorf("specs[0].Name = %q, want %q", specs[0].Name, "price")
	}
	if specs[1].Name != "price_2" {
		t.Errorf("specs[1].Name = %q, want %q", specs[1].Name, "price_2")
	}
}

// ============================================================================
// DDL
// ============================================================================

func TestProvisioner_EnsureNamespace(t *testing.T) {
	f := &fakeRunner{}
	p := NewProvisioner(f)

	if err := p.EnsureNamespace(context.Background(), "mojjigo"); err != nil {
		t.Fatalf("EnsureNamespace() error = %v", err)
	}
	if len(f.stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(f.stmts))
	}
	want := `CREATE SCHEMA IF NOT EXISTS "mojjigo"`
	if f.stmts[0] != want {
		t.Errorf("stmt = %q, want %q", f.stmts[0], want)
	}
}

func TestProvisioner_EnsureNamespace_RejectsBadIdent(t *testing.T) {
	f := &fakeRunner{}
	p := NewProvisioner(f)

	err := p.EnsureNamespace(context.Background(), "mojjigo; drop schema public")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(f.stmts) != 0 {
		t.Error("no statement should reach the store for an invalid identifier")
	}
}

func TestProvisioner_RecreateTable(t *testing.T) {
	f := &fakeRunner{}
	p := NewProvisioner(f)

	specs := []ColumnSpec{
		{Name: "date", Source: "date"},
		{Name: "amount", Source: "amount", Numeric: true},
	}
	if err := p.RecreateTable(context.Background(), "mojjigo", "sales_251206_120000", specs); err != nil {
		t.Fatalf("RecreateTable() error = %v", err)
	}
	if len(f.stmts) != 2 {
		t.Fatalf("got %d statements, want drop then create", len(f.stmts))
	}
	if f.stmts[0] != `DROP TABLE IF EXISTS "mojjigo"."sales_251206_120000"` {
		t.Errorf("drop stmt = %q", f.stmts[0])
	}
	create := f.stmts[1]
	for _, frag := range []string{
		`CREATE TABLE "mojjigo"."sales_251206_120000"`,
		"id bigint generated always as identity primary key",
		`"date" text`,
		`"amount" numeric`,
	} {
		if !strings.Contains(create, frag) {
			t.Errorf("create stmt missing %q:\n%s", frag, create)
		}
	}
}

func TestProvisioner_ApplyAccessPolicy(t *testing.T) {
	f := &fakeRunner{}
	p := NewProvisioner(f)

	if err := p.ApplyAccessPolicy(context.Background(), "mojjigo", "sales_251206_120000"); err != nil {
		t.Fatalf("ApplyAccessPolicy() error = %v", err)
	}
	if len(f.stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(f.stmts))
	}
	if !strings.Contains(f.stmts[0], "ENABLE ROW LEVEL SECURITY") {
		t.Errorf("first stmt should enable RLS: %q", f.stmts[0])
	}
	if !strings.Contains(f.stmts[1], "FOR SELECT USING (true)") {
		t.Errorf("second stmt should create the read policy: %q", f.stmts[1])
	}
	if !strings.Contains(f.stmts[2], "FOR INSERT WITH CHECK (true)") {
		t.Errorf("third stmt should create the insert policy: %q", f.stmts[2])
	}
}

func TestProvisioner_DropNamespace_NeverDropsShared(t *testing.T) {
	f := &fakeRunner{}
	p := NewProvisioner(f)

	if err := p.DropNamespace(context.Background(), "public"); err != nil {
		t.Fatalf("DropNamespace(public) error = %v", err)
	}
	if len(f.stmts) != 0 {
		t.Error("the shared namespace must never be dropped")
	}
}

func TestProvisioner_DDLFailure(t *testing.T) {
	f := &fakeRunner{failAt: 1}
	p := NewProvisioner(f)

	err := p.EnsureNamespace(context.Background(), "mojjigo")
	var pe *ProvisioningError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProvisioningError", err)
	}
	if pe.Op != "ensure namespace" {
		t.Errorf("Op = %q, want %q", pe.Op, "ensure namespace")
	}
}
