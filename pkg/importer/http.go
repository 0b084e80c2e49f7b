package importer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

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

type HTTPHandler struct {
	repo      *Repository
	submit    SubmitFunc
	status    StatusFunc
	maxBody   int64
	uploadDir string
}

// JobStatusView is the polling response shape: status, progress, error.
type JobStatusView struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

func NewHTTPHandler(repo *Repository, submit SubmitFunc, status StatusFunc, maxBody int64, uploadDir string) *HTTPHandler {
	return &HTTPHandler{repo: repo, submit: submit, status: status, maxBody: maxBody, uploadDir: uploadDir}
}

// resolveUploadPath confines a client-supplied file path to the upload
// directory. An empty upload directory disables the check.
func resolveUploadPath(uploadDir, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("filePath is required")
	}
	if uploadDir == "" {
		return filepath.Clean(raw), nil
	}

	base, err := filepath.Abs(uploadDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", errors.New("filePath is outside the upload directory")
	}
	return abs, nil
}

func newID() string {
	return uuid.New().String()
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/imports", h.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/imports", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/imports/preview", h.handlePreview).Methods(http.MethodPost)
	router.HandleFunc("/imports/status/{id}", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/imports/{id}", h.handleGet).Methods(http.MethodGet)
}

type submitRequest struct {
	FileName     string          `json:"fileName"`
	FilePath     string          `json:"filePath"`
	FileSize     int64           `json:"fileSize"`
	FileType     string          `json:"fileType"`
	FieldMapping contact.Mapping `json:"fieldMapping,omitempty"`
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	filePath, err := resolveUploadPath(h.uploadDir, req.FilePath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(filePath); err != nil {
		http.Error(w, "import file is not readable", http.StatusBadRequest)
		return
	}

	job := &ImportJob{
		ID:           newID(),
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		FileType:     req.FileType,
		StoredAs:     filePath,
		Status:       StatusPending,
		FieldMapping: req.FieldMapping,
	}
	if job.FileName == "" {
		job.FileName = filepath.Base(filePath)
	}
	if err := h.repo.Create(r.Context(), job); err != nil {
		logger.Log.WithError(err).Error("Failed to create import job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	queueJobID, err := h.submit(r.Context(), JobPayload{
		ImportID:     job.ID,
		FilePath:     filePath,
		FieldMapping: req.FieldMapping,
	})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to enqueue import job")
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

type previewRequest struct {
	FilePath string `json:"filePath"`
	Rows     int    `json:"rows"`
}

// handlePreview parses the head of an uploaded file and proposes a column
// mapping without enqueuing anything.
func (h *HTTPHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Rows <= 0 || req.Rows > 50 {
		req.Rows = 10
	}

	filePath, err := resolveUploadPath(h.uploadDir, req.FilePath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		http.Error(w, "import file is not readable", http.StatusBadRequest)
		return
	}

	headers, rows, err := ParseFile(content, filepath.Ext(filePath))
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("Failed to parse preview file")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if len(rows) > req.Rows {
		rows = rows[:req.Rows]
	}
	preview := make([]map[string]string, len(rows))
	for i, row := range rows {
		rendered := make(map[string]string, len(row))
		for column, value := range row {
			rendered[column] = value.Text()
		}
		preview[i] = rendered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"headers":          headers,
		"rows":             preview,
		"proposedMapping":  contact.ProposeMapping(headers),
		"totalPreviewRows": len(preview),
	})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch import status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	view := JobStatusView{Status: job.Status, Error: job.Error}
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

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "import not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch import job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	jobs, total, err := h.repo.List(r.Context(), page, pageSize)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list import jobs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"imports": jobs,
		"total":   total,
	})
}
