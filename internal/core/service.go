package core

// service.go is the entry point the web layer talks to. Ingest runs the
// whole upload pipeline under one limiter slot:
//
//	parse file name -> decode CSV -> ensure namespace -> recreate table
//	-> access policy -> batch insert -> ledger append
//
// The ledger append is best effort. Everything before it is fatal to
// the upload, in pipeline order, so a failed upload never leaves a
// half-provisioned table behind without reporting it.

import (
	"context"
	"log/slog"
	"time"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/config"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/naming"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/store"
)

// IngestResult reports a completed upload.
type IngestResult struct {
	CompanyName string   `json:"companyName"`
	NamespaceID string   `json:"namespaceId"`
	TableID     string   `json:"tableId"`
	FileDate    string   `json:"fileDate"`
	RowCount    int      `json:"rowCount"`
	Columns     []string `json:"columns"`
}

// PreviewResult is the header and first rows of a CSV without any
// store access.
type PreviewResult struct {
	CompanyName string    `json:"companyName"`
	NamespaceID string    `json:"namespaceId"`
	FileDate    string    `json:"fileDate"`
	Columns     []string  `json:"columns"`
	Rows        []csv.Row `json:"rows"`
}

// Service owns the ingestion pipeline and fronts the lifecycle, ledger
// and reader for the web layer.
type Service struct {
	db        *store.Store
	prov      *Provisioner
	loader    *Loader
	ledger    *Ledger
	trash     *TrashStore
	reader    *Reader
	lifecycle *Lifecycle
	limiter   *IngestLimiter

	previewRows int
	uploadTO    time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewService wires the full pipeline over one store.
func NewService(db *store.Store, cfg *config.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	prov := NewProvisioner(db)
	loader := NewLoader(db, cfg.Upload.BatchSize)
	ledger := NewLedger(db)
	trash := NewTrashStore(db)
	reader := NewReader(db)
	lifecycle := NewLifecycle(reader, prov, loader, ledger, trash, cfg.Trash.Retention(), log)

	previewRows := cfg.Upload.PreviewRows
	if previewRows <= 0 {
		previewRows = 5
	}

	return &Service{
		db:          db,
		prov:        prov,
		loader:      loader,
		ledger:      ledger,
		trash:       trash,
		reader:      reader,
		lifecycle:   lifecycle,
		limiter:     NewIngestLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		previewRows: previewRows,
		uploadTO:    cfg.Upload.Timeout,
		now:         time.Now,
		log:         log,
	}
}

// EnsureSchema creates the ledger and trash tables. Called once at
// startup before the server accepts traffic.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if err := s.ledger.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.trash.EnsureSchema(ctx)
}

// Ingest processes one uploaded CSV end to end and reports the
// provisioned table. The file name decides tenant and date; the content
// decides columns and rows.
func (s *Service) Ingest(ctx context.Context, fileName string, content []byte) (*IngestResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.uploadTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTO)
		defer cancel()
	}

	parsed, err := naming.ParseFileName(fileName)
	if err != nil {
		return nil, NewValidationError("invalid file name %q: %v", fileName, err)
	}

	header, rows := csv.Decode(string(content))
	if len(header) == 0 || len(rows) == 0 {
		return nil, NewValidationError("empty csv: %q has no data rows", fileName)
	}
	specs := BuildColumnSpecs(header)

	nsID := naming.NamespaceID(parsed.CompanyName)
	tableID := naming.TableID(parsed.FileDate, s.now())

	if err := s.prov.EnsureNamespace(ctx, nsID); err != nil {
		return nil, err
	}
	if err := s.prov.RecreateTable(ctx, nsID, tableID, specs); err != nil {
		return nil, err
	}
	if err := s.prov.ApplyAccessPolicy(ctx, nsID, tableID); err != nil {
		return nil, err
	}
	s.log.Info("permissive access policies applied", "table", nsID+"."+tableID)

	applied, err := s.loader.InsertRows(ctx, nsID, tableID, specs, rows)
	if err != nil {
		return nil, err
	}

	canonical := nsID + "." + tableID
	rec := UploadRecord{
		CompanyName: parsed.CompanyName,
		NamespaceID: nsID,
		TableID:     canonical,
		FileName:    fileName,
		FileDate:    parsed.FileDate,
		RowCount:    applied,
		UploadedAt:  s.now(),
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		s.log.Warn("ledger write failed, upload kept",
			"table", canonical, "file", fileName, "error", err)
	}

	cols := make([]string, len(specs))
	for i, spec := range specs {
		cols[i] = spec.Name
	}
	s.log.Info("csv ingested",
		"company", parsed.CompanyName, "table", canonical, "rows", applied)

	return &IngestResult{
		CompanyName: parsed.CompanyName,
		NamespaceID: nsID,
		TableID:     canonical,
		FileDate:    parsed.FileDate,
		RowCount:    applied,
		Columns:     cols,
	}, nil
}

// Preview parses a file name and returns the header plus the first
// preview rows without touching the store.
func (s *Service) Preview(fileName string, content []byte) (*PreviewResult, error) {
	parsed, err := naming.ParseFileName(fileName)
	if err != nil {
		return nil, NewValidationError("invalid file name %q: %v", fileName, err)
	}
	header, rows := csv.Preview(string(content), s.previewRows)
	if rows == nil {
		rows = []csv.Row{}
	}
	return &PreviewResult{
		CompanyName: parsed.CompanyName,
		NamespaceID: naming.NamespaceID(parsed.CompanyName),
		FileDate:    parsed.FileDate,
		Columns:     header,
		Rows:        rows,
	}, nil
}

// Page reads one page of a provisioned table.
func (s *Service) Page(ctx context.Context, tableRef string, page, pageSize int) (*PageResult, error) {
	return s.reader.Page(ctx, tableRef, page, pageSize)
}

// ReadAll returns every row of a provisioned table in id order.
func (s *Service) ReadAll(ctx context.Context, tableRef string) ([]string, []csv.Row, error) {
	return s.reader.ReadAll(ctx, tableRef)
}

// SoftDelete moves a table to trash.
func (s *Service) SoftDelete(ctx context.Context, tableRef string) (*TrashEntry, error) {
	return s.lifecycle.SoftDelete(ctx, tableRef)
}

// Restore rebuilds a trashed table.
func (s *Service) Restore(ctx context.Context, trashID string) (*UploadRecord, error) {
	return s.lifecycle.Restore(ctx, trashID)
}

// Purge discards a trash entry permanently.
func (s *Service) Purge(ctx context.Context, trashID string) error {
	return s.lifecycle.Purge(ctx, trashID)
}

// TrashList returns all trash entries with remaining days.
func (s *Service) TrashList(ctx context.Context) ([]TrashView, error) {
	return s.lifecycle.List(ctx)
}

// SweepExpired purges entries past retention. Run periodically.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.lifecycle.SweepExpired(ctx)
}

// Uploads returns the full ledger, newest first.
func (s *Service) Uploads(ctx context.Context) ([]UploadRecord, error) {
	return s.ledger.List(ctx)
}

// Tenants aggregates the ledger per company.
func (s *Service) Tenants(ctx context.Context) ([]TenantSummary, error) {
	recs, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	return SummarizeByTenant(recs), nil
}

// Limiter exposes the ingest limiter for shutdown draining.
func (s *Service) Limiter() *IngestLimiter {
	return s.limiter
}
