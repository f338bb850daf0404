package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/analysis"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/core"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/csv"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/logging"
)

// ============================================================================
// Health
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeUploads":  s.service.Limiter().ActiveCount(),
		"availableSlots": s.service.Limiter().Available(),
	})
}

// ============================================================================
// Ingestion
// ============================================================================

// readUploadedFile pulls the "file" part out of a multipart request,
// bounded by the configured max file size.
func (s *Server) readUploadedFile(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, core.NewValidationError("invalid file name: missing multipart field %q", "file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, content, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	fileName, content, err := s.readUploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.ForUpload(r.Context(), fileName).Info("upload received", "bytes", len(content))

	res, err := s.service.Ingest(r.Context(), fileName, content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	fileName, content, err := s.readUploadedFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Preview(fileName, content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ============================================================================
// Reads
// ============================================================================

func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 0)

	res, err := s.service.Page(r.Context(), table, page, pageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.Uploads(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []core.UploadRecord{}
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleTenants(w http.ResponseWriter, r *http.Request) {
	sums, err := s.service.Tenants(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sums)
}

// ============================================================================
// Lifecycle
// ============================================================================

func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	entry, err := s.service.SoftDelete(r.Context(), table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	// The snapshot stays server-side; the response only confirms the move.
	entry.Snapshot = nil
	respondJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Table %s moved to trash. It can be restored for %d days.",
			entry.TableID, s.cfg.Trash.RetentionDays),
		"entry": entry,
	})
}

func (s *Server) handleTrashList(w http.ResponseWriter, r *http.Request) {
	views, err := s.service.TrashList(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if views == nil {
		views = []core.TrashView{}
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.service.Restore(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Table %s restored from trash.", rec.TableID),
		"record":  rec,
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.service.Purge(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Trash entry permanently deleted.",
	})
}

// ============================================================================
// External analysis
// ============================================================================

type analysisRequest struct {
	Table           string   `json:"table"`
	DependentVar    string   `json:"dependentVar"`
	IndependentVars []string `json:"independentVars"`
	Method          string   `json:"method"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analysis == nil || !s.analysis.Enabled() {
		respondErrorJSON(w, core.UserMessage{
			Message: "Analysis is not available",
			Action:  "The analysis engine is not configured on this deployment",
			Code:    "ANA001",
		}, http.StatusServiceUnavailable)
		return
	}

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, core.NewValidationError("invalid analysis request: %v", err))
		return
	}
	if req.Table == "" {
		s.respondError(w, r, core.NewValidationError("invalid analysis request: table is required"))
		return
	}

	_, rows, err := s.service.ReadAll(r.Context(), req.Table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.analysis.Analyze(r.Context(), analysis.Request{
		Data:            rowsToMaps(rows),
		DependentVar:    req.DependentVar,
		IndependentVars: req.IndependentVars,
		Method:          req.Method,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(res)
}

// rowsToMaps flattens rows for the engine: numbers stay numbers, text
// stays text, absent cells are omitted.
func rowsToMaps(rows []csv.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]any, row.Len())
		for _, key := range row.Keys {
			v := row.Get(key)
			switch {
			case v.IsNumber():
				m[key] = v.Number
			case v.Kind == csv.KindText:
				m[key] = v.Text
			}
		}
		out = append(out, m)
	}
	return out
}

// queryInt reads an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
