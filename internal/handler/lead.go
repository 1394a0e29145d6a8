package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/heatline/core/internal/leadquery"
	"github.com/heatline/core/internal/lifecycle"
	"github.com/heatline/core/internal/store"
	"github.com/heatline/core/internal/types"
)

// LeadHandler exposes the Lifecycle Manager over HTTP.
type LeadHandler struct {
	store     store.Store
	lifecycle *lifecycle.Manager
}

// NewLeadHandler creates a new LeadHandler.
func NewLeadHandler(s store.Store, lm *lifecycle.Manager) *LeadHandler {
	return &LeadHandler{store: s, lifecycle: lm}
}

// HandleList handles GET /leads, filtering by status/assignment/score
// via query params and — when a "q" param is present — applying a
// leadquery filter expression as a second pass over the result page.
func (h *LeadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := parsePagination(r)
	opts := store.LeadQueryOptions{Limit: page.Limit, Offset: page.Offset, OrderByScoreDesc: true}

	q := r.URL.Query()
	for _, s := range q["status"] {
		opts.Statuses = append(opts.Statuses, types.LeadStatus(s))
	}
	if v := q.Get("assigned_to"); v != "" {
		opts.AssignedTo = &v
	}
	if v := q.Get("unclaimed"); v == "true" {
		opts.Unclaimed = true
	}
	if v := q.Get("expired"); v == "true" {
		opts.Expired = true
	}

	leads, total, err := h.store.ListLeads(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	if filter := q.Get("q"); filter != "" {
		expr, errs := leadquery.Parse(filter)
		if len(errs) > 0 {
			writeError(w, http.StatusBadRequest, "bad_filter", errs[0].Error())
			return
		}
		filtered := leads[:0]
		for _, l := range leads {
			if leadquery.Eval(expr, l) {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leads": leads,
		"total": total,
	})
}

// HandleGet handles GET /leads/{id}.
func (h *LeadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, ok, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type claimRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// HandleClaim handles POST /leads/{id}/claim.
func (h *LeadHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil || req.AssignedTo == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "assigned_to is required")
		return
	}
	actor := parseAuditContext(r).Actor

	lead, err := h.lifecycle.Claim(r.Context(), id, req.AssignedTo, actor)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// HandleRelease handles POST /leads/{id}/release.
func (h *LeadHandler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor := parseAuditContext(r).Actor

	lead, err := h.lifecycle.Release(r.Context(), id, actor)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type statusRequest struct {
	Status types.LeadStatus `json:"status"`
}

// HandleChangeStatus handles POST /leads/{id}/status.
func (h *LeadHandler) HandleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "status is required")
		return
	}
	actor := parseAuditContext(r).Actor

	lead, err := h.lifecycle.ChangeStatus(r.Context(), id, req.Status, actor)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// HandleSweepExpiredClaims handles POST /leads/sweep-expired, releasing
// every lead whose claim has passed ClaimDuration. It is the manual
// counterpart of the hourly sweep that internal/server runs.
func (h *LeadHandler) HandleSweepExpiredClaims(w http.ResponseWriter, r *http.Request) {
	released, err := h.lifecycle.SweepExpiredClaims(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "lead not found")
	case errors.Is(err, lifecycle.ErrCASExhausted):
		writeError(w, http.StatusConflict, "conflict", "lead is being concurrently modified, retry")
	default:
		writeError(w, http.StatusBadRequest, "transition_rejected", err.Error())
	}
}
