package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"scheduling-api/internal/auth"
	"scheduling-api/internal/models"
	"scheduling-api/internal/scheduling"
	"scheduling-api/internal/store"
	"scheduling-api/pkg/spreadsheet"
)

// TaskCreator is the part of the scheduling service an import needs
type TaskCreator interface {
	Project(ctx context.Context, company, name string) (*models.Project, error)
	CreateTask(ctx context.Context, company, projectName string, in scheduling.TaskInput) (*models.Task, error)
}

// ImportsHandler handles Excel task imports into a project
type ImportsHandler struct {
	Tasks    TaskCreator
	MaxBytes int64
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(tasks TaskCreator, maxBytes int64) *ImportsHandler {
	if maxBytes <= 0 {
		maxBytes = 20 << 20 // 20 MB
	}
	return &ImportsHandler{Tasks: tasks, MaxBytes: maxBytes}
}

// ProjectSink creates each imported row as a task of one project
type ProjectSink struct {
	Tasks   TaskCreator
	Company string
	Project string
}

func (s ProjectSink) ImportTask(ctx context.Context, row spreadsheet.TaskRow) error {
	_, err := s.Tasks.CreateTask(ctx, s.Company, s.Project, scheduling.TaskInput{
		Name:             row.Name,
		StartTime:        row.StartTime,
		ExpectedDuration: row.ExpectedDuration,
		Priority:         row.Priority,
		Members:          row.Members,
		Description:      row.Description,
		EstimatedCost:    row.EstimatedCost,
		Dependencies:     row.Dependencies,
	})
	return err
}

// UploadExcel imports the rows of an uploaded workbook as tasks of the
// project named in the URL, in sheet order.
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		http.Error(w, "content-type must be multipart/form-data", http.StatusBadRequest)
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	company := auth.CompanyFromContext(r.Context())
	projectName := chi.URLParam(r, "project")
	if company == "" || projectName == "" {
		http.Error(w, "company and project are required", http.StatusBadRequest)
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	mapping := spreadsheet.DefaultMapping()
	if v := r.FormValue("mapping"); v != "" {
		m, err := spreadsheet.ParseMapping([]byte(v))
		if err != nil {
			http.Error(w, "invalid mapping: "+err.Error(), http.StatusBadRequest)
			return
		}
		mapping = m
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		http.Error(w, "only .xlsx files are accepted", http.StatusBadRequest)
		return
	}

	p, err := h.Tasks.Project(r.Context(), company, projectName)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sink := ProjectSink{Tasks: h.Tasks, Company: company, Project: p.Name}
	sum, impErr := spreadsheet.ImportTasks(r.Context(), file, sink, spreadsheet.ImportOptions{
		Mapping:   mapping,
		Location:  p.Location(),
		DryRun:    dryRun,
		MaxErrors: maxErrors,
	})
	if impErr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "IMPORT_FAILED",
			"details": impErr.Error(),
			"data":    sum, // might include partial
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"project":   p.Name,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
