package core

import (
	"testing"
	"time"
)

func TestSummarizeByTenant(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, 12, d, 12, 0, 0, 0, time.UTC)
	}
	recs := []UploadRecord{
		{CompanyName: "모찌고", NamespaceID: "mojjigo", TableID: "mojjigo.sales_251208_100000", RowCount: 30, UploadedAt: day(8)},
		{CompanyName: "모찌고", NamespaceID: "mojjigo", TableID: "mojjigo.sales_251206_100000", RowCount: 20, UploadedAt: day(6)},
		{CompanyName: "한국상사", NamespaceID: "hangugsangsa", TableID: "hangugsangsa.sales_251207_100000", RowCount: 5, UploadedAt: day(7)},
	}

	sums := SummarizeByTenant(recs)
	if len(sums) != 2 {
		t.Fatalf("got %d tenants, want 2", len(sums))
	}

	// Sorted by company name
	mojjigo := sums[0]
	if mojjigo.CompanyName != "모찌고" {
		t.Fatalf("sums[0].CompanyName = %q, want 모찌고", mojjigo.CompanyName)
	}
	if mojjigo.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", mojjigo.FileCount)
	}
	if mojjigo.TotalRows != 50 {
		t.Errorf("TotalRows = %d, want 50", mojjigo.TotalRows)
	}
	if !mojjigo.LastUpload.Equal(day(8)) {
		t.Errorf("LastUpload = %v, want %v", mojjigo.LastUpload, day(8))
	}
	if len(mojjigo.Tables) != 2 || mojjigo.Tables[0] != "mojjigo.sales_251206_100000" {
		t.Errorf("Tables = %v", mojjigo.Tables)
	}

	other := sums[1]
	if other.CompanyName != "한국상사" || other.FileCount != 1 || other.TotalRows != 5 {
		t.Errorf("sums[1] = %+v", other)
	}
}

func TestSummarizeByTenant_Empty(t *testing.T) {
	if sums := SummarizeByTenant(nil); len(sums) != 0 {
		t.Errorf("got %d tenants for empty ledger, want 0", len(sums))
	}
}
