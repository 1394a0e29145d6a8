package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/heatline/core/internal/orchestrator"
	"github.com/heatline/core/internal/types"
	"github.com/heatline/core/internal/vendor"
)

// RoleResolver maps a caller-supplied user id to a role. The user
// directory is outside the core; cmd/server wires whatever it has and
// tests wire a fake.
type RoleResolver interface {
	Role(ctx context.Context, userID string) (string, error)
}

// DenyAllRoles is the default RoleResolver: no user directory, no roles.
type DenyAllRoles struct{}

func (DenyAllRoles) Role(context.Context, string) (string, error) { return "", nil }

// IngestHandler exposes the Ingestion Orchestrator over HTTP, gating
// each route on the configured secret or an admin caller.
type IngestHandler struct {
	orch          *orchestrator.Orchestrator
	webhookSecret string
	cronSecret    string
	roles         RoleResolver
}

// NewIngestHandler creates a new IngestHandler. roles may be nil, in
// which case only the shared secrets authorize requests.
func NewIngestHandler(orch *orchestrator.Orchestrator, webhookSecret, cronSecret string, roles RoleResolver) *IngestHandler {
	if roles == nil {
		roles = DenyAllRoles{}
	}
	return &IngestHandler{orch: orch, webhookSecret: webhookSecret, cronSecret: cronSecret, roles: roles}
}

type webhookRequest struct {
	Source  string                       `json:"source"`
	Records []orchestrator.WebhookRecord `json:"records"`
}

type webhookResponse struct {
	Success   bool                               `json:"success"`
	Source    string                             `json:"source"`
	Received  int                                `json:"received"`
	Upserted  int                                `json:"upserted"`
	Deduped   int                                `json:"deduped"`
	Errors    int                                `json:"errors"`
	Records   []orchestrator.WebhookRecordResult `json:"records"`
	Timestamp int64                              `json:"timestamp"`
}

// HandleWebhook handles POST /ingest: the vendor-agnostic batch
// webhook, authenticated by the x-webhook-secret header.
func (h *IngestHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" || r.Header.Get("x-webhook-secret") != h.webhookSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bad webhook secret")
		return
	}

	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil || req.Source == "" || len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "source and records are required")
		return
	}

	summary := h.orch.IngestWebhook(r.Context(), req.Source, req.Records)
	writeJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		Source:    summary.Source,
		Received:  summary.Received,
		Upserted:  summary.Upserted,
		Deduped:   summary.Deduped,
		Errors:    summary.Errors,
		Records:   summary.Records,
		Timestamp: time.Now().UTC().UnixMilli(),
	})
}

type signalSummary struct {
	Type     types.EventType `json:"type"`
	Severity int             `json:"severity"`
}

type scoringSummary struct {
	Composite  int    `json:"composite"`
	Motivation int    `json:"motivation"`
	Deal       int    `json:"deal"`
	Model      string `json:"model"`
}

type singleIngestResponse struct {
	Success        bool            `json:"success"`
	APN            string          `json:"apn"`
	HeatScore      int             `json:"heatScore"`
	Label          string          `json:"label"`
	PropertyID     string          `json:"property_id"`
	LeadID         string          `json:"lead_id,omitempty"`
	Signals        []signalSummary `json:"signals"`
	Scoring        scoringSummary  `json:"scoring"`
	EventsInserted int             `json:"events_inserted"`
	EventsDeduped  int             `json:"events_deduped"`
	ElapsedMS      int64           `json:"elapsed_ms"`
}

// HandlePropertyRadar handles POST /ingest/propertyradar: resolve one
// property at the vendor and run the full pipeline. Authenticated by
// the cron bearer secret.
func (h *IngestHandler) HandlePropertyRadar(w http.ResponseWriter, r *http.Request) {
	if !h.bearerOK(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bad bearer token")
		return
	}

	var q orchestrator.SingleQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	result, err := h.orch.ResolveAndIngest(r.Context(), q, "propertyradar")
	if err != nil {
		writeIngestError(w, err)
		return
	}

	resp := singleIngestResponse{
		Success:    true,
		APN:        result.Property.APN,
		HeatScore:  result.LeadScore,
		Label:      result.Label,
		PropertyID: result.Property.ID,
		LeadID:     result.LeadID,
		Scoring: scoringSummary{
			Composite:  result.Scoring.CompositeScore,
			Motivation: result.Scoring.MotivationScore,
			Deal:       result.Scoring.DealScore,
			Model:      result.Scoring.ModelVersion,
		},
		EventsInserted: result.InsertedEvents,
		EventsDeduped:  result.DuplicateEvents,
		ElapsedMS:      result.ElapsedMS,
	}
	for _, s := range result.Signals {
		resp.Signals = append(resp.Signals, signalSummary{Type: s.EventType, Severity: s.Severity})
	}
	writeJSON(w, http.StatusOK, resp)
}

type bulkSeedRequest struct {
	Limit    int      `json:"limit"`
	Counties []string `json:"counties"`
	UserID   string   `json:"userId"`
}

type bulkSeedResponse struct {
	Success bool `json:"success"`
	orchestrator.BulkResult
}

// HandleBulkSeed handles POST /ingest/propertyradar/bulk-seed.
// Authorized by the cron bearer secret or a userId resolving to the
// admin role.
func (h *IngestHandler) HandleBulkSeed(w http.ResponseWriter, r *http.Request) {
	var req bulkSeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	if !h.bearerOK(r) {
		role, err := h.roles.Role(r.Context(), req.UserID)
		if err != nil || req.UserID == "" || role != "admin" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "cron secret or admin user required")
			return
		}
	}

	result, err := h.orch.BulkSeed(r.Context(), req.Limit, req.Counties, "propertyradar")
	if err != nil {
		writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkSeedResponse{Success: true, BulkResult: result})
}

func (h *IngestHandler) bearerOK(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == h.cronSecret
}

// writeIngestError maps orchestrator and vendor failures onto the HTTP
// status ladder: missing identity 422, unresolvable query 400, vendor
// empty 404, vendor down 502, anything else 500.
func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrBadQuery):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, orchestrator.ErrMissingIdentity):
		writeError(w, http.StatusUnprocessableEntity, "missing_identity", "vendor record has no APN")
	case errors.Is(err, vendor.ErrNoResult):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "no matching property",
			"code":  "no_result",
			"hints": []string{
				"check the APN against county records",
				"add city/state/zip to an address query",
				"try the radarId if known",
			},
		})
	case errors.Is(err, vendor.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "vendor_unavailable", "vendor API unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
	}
}
