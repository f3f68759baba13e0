// Package handler exposes the generation pipeline over HTTP as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/joedanields/Automated-CO-PO/internal/i18n"
	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/pipeline"
	"github.com/joedanields/Automated-CO-PO/internal/schema"
	"github.com/joedanields/Automated-CO-PO/internal/sheet"
	"github.com/joedanields/Automated-CO-PO/internal/store"
	"github.com/joedanields/Automated-CO-PO/internal/validate"
)

// Config holds the handler's runtime settings.
type Config struct {
	OutputDir      string
	MaxUploadBytes int64
	// APIPasswordHash is a bcrypt hash; empty disables the password guard.
	APIPasswordHash string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	gen    *pipeline.Generator
	store  *store.Store
	config Config
}

// New creates a new Handler.
func New(gen *pipeline.Generator, s *store.Store, cfg Config) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}
	return &Handler{gen: gen, store: s, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.requirePassword)
	r.Get("/api/regulations", h.handleRegulations)
	r.Get("/api/categories/{regulation}", h.handleCategories)
	r.Get("/api/dept_types/{regulation}/{category}", h.handleDeptTypes)
	r.Get("/api/required_inputs/{regulation}/{category}", h.handleRequiredInputs)
	r.Post("/api/validate", h.handleValidate)
	r.Post("/generate", h.handleGenerate)
	r.Get("/download/{filename}", h.handleDownload)
	r.Get("/history", h.handleHistory)
}

func (h *Handler) handleRegulations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regulations": schema.Regulations()})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	reg := model.Regulation(chi.URLParam(r, "regulation"))
	writeJSON(w, http.StatusOK, map[string]any{"categories": schema.Categories(reg)})
}

func (h *Handler) handleDeptTypes(w http.ResponseWriter, r *http.Request) {
	reg := model.Regulation(chi.URLParam(r, "regulation"))
	cat := model.Category(chi.URLParam(r, "category"))
	writeJSON(w, http.StatusOK, map[string]any{"dept_types": schema.DeptTypes(reg, cat)})
}

func (h *Handler) handleRequiredInputs(w http.ResponseWriter, r *http.Request) {
	reg := model.Regulation(chi.URLParam(r, "regulation"))
	cat := model.Category(chi.URLParam(r, "category"))
	kinds, err := schema.RequiredInputs(reg, cat)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inputs": kinds})
}

// handleGenerate accepts the multipart upload of one course's evaluation
// sheets and runs the full pipeline. Files are streamed straight into the
// pipeline as handles; nothing is spooled under a shared path.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, closers, err := h.buildRequest(r)
	defer closeAll(closers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.gen.Generate(r.Context(), *req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": appI18n.Td(r.Context(), "generate.success", map[string]any{
			"CourseCode": res.CourseCode,
			"Students":   res.StudentCount,
		}),
		"file":          filepath.Base(res.OutputPath),
		"course_code":   res.CourseCode,
		"course_name":   res.CourseName,
		"student_count": res.StudentCount,
		"warnings":      res.Warnings,
	})
}

// handleValidate runs the parse and consistency stages only, so the UI can
// check a file set before committing to generation.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, closers, err := h.buildRequest(r)
	defer closeAll(closers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	kinds, err := schema.RequiredInputs(req.Regulation, req.Category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Report every missing kind at once; a partial upload is the normal
	// input here, not an exceptional one.
	var missing []string
	for _, kind := range kinds {
		if f, ok := req.Files[kind]; !ok || f == nil {
			missing = append(missing, fmt.Sprintf("no file supplied for %s", kind))
		}
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":  false,
			"errors": missing,
		})
		return
	}

	var sheets []*model.EvaluationSheet
	var warnings []string
	for _, kind := range kinds {
		s, err := sheet.Read(req.Files[kind], kind, req.Regulation, req.Category, req.DeptType)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"valid":  false,
				"errors": model.DetailsOf(err),
			})
			return
		}
		sheets = append(sheets, s)
	}

	report := validate.Validate(sheets, req.Regulation)
	var errs []string
	errs = append(errs, report.Messages()...)
	for _, s := range sheets {
		e, warns := validate.MarksRange(s)
		errs = append(errs, e...)
		warnings = append(warnings, warns...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    len(errs) == 0,
		"errors":   errs,
		"warnings": warnings,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	path := filepath.Join(h.config.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": appI18n.T(r.Context(), "download.not_found"),
		})
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, store.HistoryExport{})
		return
	}
	export, err := h.store.ExportHistory()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// fileFields maps the multipart field name of each input kind.
var fileFields = map[string]model.InputKind{
	"file_ia1":        model.KindIA1,
	"file_ia2":        model.KindIA2,
	"file_model":      model.KindModel,
	"file_integrated": model.KindIntegrated,
	"file_lab":        model.KindLab,
	"file_review1":    model.KindReview1,
	"file_review2":    model.KindReview2,
	"file_review3":    model.KindReview3,
}

func (h *Handler) buildRequest(r *http.Request) (*pipeline.Request, []io.Closer, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		return nil, nil, model.Errorf(model.KindMissingInput, "parse upload: %v", err)
	}

	req := &pipeline.Request{
		Regulation: model.Regulation(r.FormValue("regulation")),
		Category:   model.Category(r.FormValue("category")),
		DeptType:   model.DeptType(r.FormValue("dept_type")),
		Files:      make(map[model.InputKind]io.Reader),
	}

	var closers []io.Closer
	for field, kind := range fileFields {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		if !allowedUpload(fh.Filename) {
			return req, closers, model.Errorf(model.KindMissingInput,
				"%s: only .xlsx uploads are accepted", kind)
		}
		f, err := fh.Open()
		if err != nil {
			return req, closers, model.Errorf(model.KindMissingInput, "%s: open upload: %v", kind, err)
		}
		closers = append(closers, f)
		req.Files[kind] = f
	}
	return req, closers, nil
}

func allowedUpload(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

// writeError maps a pipeline error to an HTTP response carrying the error
// kind, a localized summary, and the exhaustive detail list. Configuration
// defects are flagged so operators can tell them from bad uploads.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := http.StatusBadRequest
	msgID := "error." + string(kind)
	switch {
	case kind == "":
		status = http.StatusInternalServerError
		msgID = "error.internal"
		slog.Error("unclassified error", "error", err)
	case kind == model.KindSchemaViolation:
		status = http.StatusInternalServerError
		slog.Error("schema violation", "error", err)
	case kind.ConfigDefect():
		slog.Warn("unsupported combination", "error", err)
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":          string(kind),
			"message":       appI18n.T(r.Context(), msgID),
			"details":       model.DetailsOf(err),
			"config_defect": kind.ConfigDefect(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Error("encode response", "error", err)
	}
}
