package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/heatline/core/internal/store"
)

// PropertyHandler exposes read access to the golden record and its
// append-only history.
type PropertyHandler struct {
	store store.Store
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(s store.Store) *PropertyHandler {
	return &PropertyHandler{store: s}
}

// HandleGet handles GET /properties/{id}: the property row plus its
// latest score, latest prediction, and distress history.
func (h *PropertyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	property, err := h.store.GetProperty(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "property not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}

	out := map[string]any{"property": property}
	if scoring, ok, err := h.store.LatestScoringRecord(r.Context(), id); err == nil && ok {
		out["scoring"] = scoring
	}
	if prediction, ok, err := h.store.LatestPrediction(r.Context(), id); err == nil && ok {
		out["prediction"] = prediction
	}
	if events, err := h.store.ListDistressEvents(r.Context(), id); err == nil {
		out["distress_events"] = events
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleHistory handles GET /properties/{id}/audit: the append-only
// EventLog rows for this property, newest first.
func (h *PropertyHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page := parsePagination(r)

	entries, err := h.store.ListEventLog(r.Context(), "property", id, page.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
