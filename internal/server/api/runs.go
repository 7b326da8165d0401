package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/handorbit/internal/store"
)

// Run listing limits.
const (
	DefaultRunLimit = 20
	MaxRunLimit     = 500
)

// RunsHandler serves the detection run audit.
type RunsHandler struct {
	store *store.Store
}

// NewRunsHandler creates a new RunsHandler with the given store.
func NewRunsHandler(s *store.Store) *RunsHandler {
	return &RunsHandler{store: s}
}

type listRunsResponse struct {
	Runs  []*store.Run `json:"runs"`
	Count int          `json:"count"`
}

// ServeHTTP routes /api/runs and /api/runs/{id}.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/runs"), "/")
	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, id)
}

// list handles GET /api/runs?limit=N, newest first.
func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxRunLimit)
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, Count: len(runs)})
}

// get handles GET /api/runs/{id}.
func (h *RunsHandler) get(w http.ResponseWriter, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
