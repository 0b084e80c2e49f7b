package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/outreachly/platform/pkg/common/logger"
	"github.com/outreachly/platform/pkg/contact"
)

// SubmitFunc hands a job payload to the queue transport and returns the
// queue job id.
type SubmitFunc func(ctx context.Context, payload JobPayload) (string, error)

// StatusFunc polls the queue transport for live job progress.
type StatusFunc func(ctx context.Context, queueJobID string) (JobStatusView, error)

// JobStatusView is the polling response shape: status, progress, error.
type JobStatusView struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

type HTTPHandler struct {
	repo   *Repository
	submit SubmitFunc
	status StatusFunc
}

func NewHTTPHandler(repo *Repository, submit SubmitFunc, status StatusFunc) *HTTPHandler {
	return &HTTPHandler{repo: repo, submit: submit, status: status}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/exports", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/exports", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/exports/status/{id}", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/exports/{id}/download", h.handleDownload).Methods(http.MethodGet)
	router.HandleFunc("/exports/{id}", h.handleGet).Methods(http.MethodGet)
}

type submitRequest struct {
	Name           string           `json:"name"`
	Format         string           `json:"format"`
	Filters        []contact.Filter `json:"filters"`
	MatchType      string           `json:"matchType"`
	SelectedFields []string         `json:"selectedFields"`
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Format {
	case FormatCSV, FormatJSON, FormatTXT:
	default:
		http.Error(w, fmt.Sprintf("unsupported export format %q", req.Format), http.StatusBadRequest)
		return
	}
	if req.MatchType == "" {
		req.MatchType = contact.MatchAll
	}
	// Reject bad filters at submission instead of failing the job later.
	if _, err := contact.Compile(req.Filters, req.MatchType); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.SelectedFields) == 0 {
		for _, field := range contact.SystemFields() {
			req.SelectedFields = append(req.SelectedFields, field.ID)
		}
	}

	job := &ExportJob{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Format:         req.Format,
		Filters:        req.Filters,
		MatchType:      req.MatchType,
		SelectedFields: req.SelectedFields,
		Status:         StatusPending,
	}
	if err := h.repo.Create(r.Context(), job); err != nil {
		logger.Log.WithError(err).Error("Failed to create export job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	queueJobID, err := h.submit(r.Context(), JobPayload{ExportID: job.ID})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to enqueue export job")
		_ = h.repo.MarkFailed(r.Context(), job.ID, "failed to enqueue job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	_ = h.repo.SetQueueJobID(r.Context(), job.ID, queueJobID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"id":         job.ID,
		"queueJobId": queueJobID,
		"status":     StatusPending,
	})
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	jobs, total, err := h.repo.List(r.Context(), page, pageSize)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list export jobs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"exports": jobs,
		"total":   total,
	})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := h.fetch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.fetch(w, r)
	if !ok {
		return
	}

	view := JobStatusView{Status: job.Status, Progress: job.Progress, Error: job.Error}
	if job.Status == StatusCompleted {
		view.Progress = 100
	}
	if job.QueueJobID != "" && h.status != nil {
		if live, err := h.status(r.Context(), job.QueueJobID); err == nil {
			if live.Progress > view.Progress {
				view.Progress = live.Progress
			}
			if view.Error == "" {
				view.Error = live.Error
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func (h *HTTPHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := h.fetch(w, r)
	if !ok {
		return
	}
	if job.Status != StatusCompleted || job.FilePath == "" {
		http.Error(w, "export is not ready", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(job.FilePath)))
	http.ServeFile(w, r, job.FilePath)
}

func (h *HTTPHandler) fetch(w http.ResponseWriter, r *http.Request) (*ExportJob, bool) {
	id := mux.Vars(r)["id"]
	job, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "export not found", http.StatusNotFound)
			return nil, false
		}
		logger.Log.WithError(err).Error("Failed to fetch export job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}
