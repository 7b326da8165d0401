package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/logger"
)

// TuningService reads and replaces the interpreter tuning.
type TuningService interface {
	Tuning() gesture.Tuning
	ApplyTuning(gesture.Tuning) error
}

// TuningHandler serves GET and PUT /api/settings/tuning.
type TuningHandler struct {
	svc TuningService
}

// NewTuningHandler creates a TuningHandler backed by svc.
func NewTuningHandler(svc TuningService) *TuningHandler {
	return &TuningHandler{svc: svc}
}

// ServeHTTP implements the http.Handler interface.
func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.svc.Tuning())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update applies a full or partial tuning. Fields missing from the body keep
// their current value.
func (h *TuningHandler) update(w http.ResponseWriter, r *http.Request) {
	t := h.svc.Tuning()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.ApplyTuning(t); err != nil {
		logger.Error("API", "Failed to apply tuning: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save tuning")
		return
	}

	writeJSON(w, http.StatusOK, h.svc.Tuning())
}
