package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/outreachly/platform/pkg/common/logger"
)

// ImportStats exposes the import job summary used by the stats endpoint.
type ImportStats interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type HTTPHandler struct {
	repo        *Repository
	catalog     SynonymCatalog
	importStats ImportStats
}

func NewHTTPHandler(repo *Repository, catalog SynonymCatalog, importStats ImportStats) *HTTPHandler {
	return &HTTPHandler{repo: repo, catalog: catalog, importStats: importStats}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/contacts", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/contacts", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/contacts/search", h.handleSearch).Methods(http.MethodPost)
	router.HandleFunc("/contacts/fields", h.handleFields).Methods(http.MethodGet)
	router.HandleFunc("/contacts/stats", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/contacts/{id}", h.handleGet).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var c Contact
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.Create(r.Context(), &c); err != nil {
		if strings.Contains(err.Error(), "invalid email") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("Failed to create contact")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	h.respondPage(w, r, ListOptions{
		Page:     page,
		PageSize: pageSize,
		Search:   r.URL.Query().Get("search"),
		Catalog:  h.catalog,
	})
}

type searchRequest struct {
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Search   string   `json:"search"`
	Filters  []Filter `json:"filters"`
}

// handleSearch is the filtered variant of the listing: explicit filters in
// the body, combined with the free-text search term.
func (h *HTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.respondPage(w, r, ListOptions{
		Page:     req.Page,
		PageSize: req.PageSize,
		Search:   req.Search,
		Filters:  req.Filters,
		Catalog:  h.catalog,
	})
}

func (h *HTTPHandler) respondPage(w http.ResponseWriter, r *http.Request, opts ListOptions) {
	contacts, total, err := h.repo.List(r.Context(), opts)
	if err != nil {
		var compileErr *FilterError
		if errors.As(err, &compileErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("Failed to list contacts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"contacts": contacts,
		"total":    total,
	})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch contact")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// handleFields lists the system field catalog so clients can build mapping
// and filter pickers.
func (h *HTTPHandler) handleFields(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"fields": SystemFields(),
	})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := h.repo.Count(r.Context(), Condition{})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to count contacts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	recent, err := h.repo.CountSince(r.Context(), time.Now().AddDate(0, 0, -7))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to count recent contacts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	stats := map[string]interface{}{
		"totalContacts":  total,
		"addedLast7Days": recent,
	}
	if h.importStats != nil {
		if counts, err := h.importStats.CountByStatus(r.Context()); err == nil {
			stats["importsByStatus"] = counts
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
