package store

import (
	"testing"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
)

// ============================================================================
// Identifier validation
// ============================================================================

func TestValidateIdent(t *testing.T) {
	valid := []string{"sales_251206_094103", "mojjigo", "a", "_private", "T1"}
	for _, id := range valid {
		if err := ValidateIdent(id); err != nil {
			t.Errorf("ValidateIdent(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"1abc",
		"a b",
		"a\tb",
		"a;b",
		`a"b`,
		"a'b",
		"a-b",
		"tbl; DROP TABLE x",
		"한글",
	}
	for _, id := range invalid {
		if err := ValidateIdent(id); err == nil {
			t.Errorf("ValidateIdent(%q) = nil, want error", id)
		}
	}
}

func TestValidateTableRef(t *testing.T) {
	valid := []string{"sales_251206_094103", "mojjigo.sales_251206_094103", "public.upload_records"}
	for _, ref := range valid {
		if err := ValidateTableRef(ref); err != nil {
			t.Errorf("ValidateTableRef(%q) = %v, want nil", ref, err)
		}
	}

	invalid := []string{
		"",
		"a.b.c",
		"ns.",
		".tbl",
		`ns."tbl"`,
		"ns.tbl; DROP SCHEMA ns",
		"ns.tbl --",
		"ns .tbl",
	}
	for _, ref := range invalid {
		if err := ValidateTableRef(ref); err == nil {
			t.Errorf("ValidateTableRef(%q) = nil, want error", ref)
		}
	}
}

func TestSplitTableRef(t *testing.T) {
	tests := []struct {
		ref     string
		wantNS  string
		wantTbl string
	}{
		{"mojjigo.sales_251206_094103", "mojjigo", "sales_251206_094103"},
		{"upload_records", "public", "upload_records"},
	}
	for _, tt := range tests {
		ns, tbl := SplitTableRef(tt.ref)
		if ns != tt.wantNS || tbl != tt.wantTbl {
			t.Errorf("SplitTableRef(%q) = (%q, %q), want (%q, %q)",
				tt.ref, ns, tbl, tt.wantNS, tt.wantTbl)
		}
	}
}

// ============================================================================
// Quoting
// ============================================================================

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"users", `"users"`},
		{`user"name`, `"user""name"`},
		{"sales_251206", `"sales_251206"`},
	}
	for _, tt := range tests {
		if got := QuoteIdent(tt.input); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestQualifyTable(t *testing.T) {
	got := QualifyTable("mojjigo", "sales_251206_094103")
	want := `"mojjigo"."sales_251206_094103"`
	if got != want {
		t.Errorf("QualifyTable = %q, want %q", got, want)
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "seoul", "'seoul'"},
		{"embedded quote doubled", "o'brien", "'o''brien'"},
		{"injection attempt neutralized", "x'); DROP TABLE t; --", "'x''); DROP TABLE t; --'"},
		{"empty", "", "''"},
		{"multiple quotes", "''", "''''''"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteLiteral(tt.input); got != tt.want {
				t.Errorf("QuoteLiteral(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLiteralValue(t *testing.T) {
	tests := []struct {
		name  string
		input csv.Value
		want  string
	}{
		{"text quoted", csv.Text("a'b"), "'a''b'"},
		{"number bare", csv.Number(12.5), "12.5"},
		{"integer number bare", csv.Number(7), "7"},
		{"absent is NULL", csv.Absent, "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LiteralValue(tt.input); got != tt.want {
				t.Errorf("LiteralValue = %q, want %q", got, tt.want)
			}
		})
	}
}
