// Package event provides domain event recording for the ingestion and
// lifecycle subsystems. Events are written as append-only EventLog rows
// through the LogWriter interface, then published to the in-process
// event bus for downstream consumers.
package event

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/heatline/core/internal/types"
)

// DomainEvent carries the canonical shape of every event fanned out by
// the ingestion, scoring, and lifecycle subsystems.
type DomainEvent struct {
	ID         string
	EventType  string
	OccurredAt time.Time
	EntityType string
	EntityID   string
	Summary    string
	Category   string // "ingestion", "scoring", "lifecycle"
	Weight     string // "critical", "major", "minor", "info"
	Payload    json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// PropertyIngestedPayload carries event-specific data for PropertyIngested.
type PropertyIngestedPayload struct {
	PropertyID     string `json:"property_id"`
	APN            string `json:"apn"`
	County         string `json:"county"`
	SignalCount    int    `json:"signal_count"`
	DuplicateCount int    `json:"duplicate_count"`
	Source         string `json:"source"`
}

// NewPropertyIngested reports a single vendor record having been
// normalized, deduplicated, and merged into the golden record.
func NewPropertyIngested(p PropertyIngestedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "property.ingested",
		OccurredAt: time.Now(),
		EntityType: "property",
		EntityID:   p.PropertyID,
		Summary:    "property " + p.APN + "/" + p.County + " ingested from " + p.Source,
		Category:   "ingestion",
		Weight:     "minor",
		Payload:    mustJSON(p),
	}
}

// DistressSignalDetectedPayload carries event-specific data for a single
// newly-inserted DistressEvent.
type DistressSignalDetectedPayload struct {
	PropertyID string          `json:"property_id"`
	EventType  types.EventType `json:"event_type"`
	Severity   int             `json:"severity"`
	Source     string          `json:"source"`
}

func NewDistressSignalDetected(p DistressSignalDetectedPayload) DomainEvent {
	weight := "minor"
	if p.Severity >= 8 {
		weight = "critical"
	} else if p.Severity >= 5 {
		weight = "major"
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  "signal.detected",
		OccurredAt: time.Now(),
		EntityType: "property",
		EntityID:   p.PropertyID,
		Summary:    string(p.EventType) + " detected (severity " + itoa(p.Severity) + ")",
		Category:   "ingestion",
		Weight:     weight,
		Payload:    mustJSON(p),
	}
}

// PropertyScoredPayload carries event-specific data for a new retrospective
// scoring run.
type PropertyScoredPayload struct {
	PropertyID     string `json:"property_id"`
	CompositeScore int    `json:"composite_score"`
	Label          string `json:"label"`
	ModelVersion   string `json:"model_version"`
}

func NewPropertyScored(p PropertyScoredPayload) DomainEvent {
	weight := "minor"
	if p.Label == "fire" {
		weight = "critical"
	} else if p.Label == "hot" {
		weight = "major"
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  "property.scored",
		OccurredAt: time.Now(),
		EntityType: "property",
		EntityID:   p.PropertyID,
		Summary:    "scored " + itoa(p.CompositeScore) + " (" + p.Label + ") by " + p.ModelVersion,
		Category:   "scoring",
		Weight:     weight,
		Payload:    mustJSON(p),
	}
}

// PropertyPredictedPayload carries event-specific data for a new predictive
// scoring run.
type PropertyPredictedPayload struct {
	PropertyID        string `json:"property_id"`
	PredictiveScore   int    `json:"predictive_score"`
	DaysUntilDistress int    `json:"days_until_distress"`
	Label             string `json:"label"`
}

func NewPropertyPredicted(p PropertyPredictedPayload) DomainEvent {
	weight := "minor"
	if p.Label == "imminent" {
		weight = "critical"
	} else if p.Label == "likely" {
		weight = "major"
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  "property.predicted",
		OccurredAt: time.Now(),
		EntityType: "property",
		EntityID:   p.PropertyID,
		Summary:    "predicted " + p.Label + ", ~" + itoa(p.DaysUntilDistress) + "d out",
		Category:   "scoring",
		Weight:     weight,
		Payload:    mustJSON(p),
	}
}

// LeadPromotedPayload carries event-specific data for a Property being
// promoted into the Lead workflow.
type LeadPromotedPayload struct {
	LeadID     string   `json:"lead_id"`
	PropertyID string   `json:"property_id"`
	Priority   int      `json:"priority"`
	Source     string   `json:"source"`
	Tags       []string `json:"tags,omitempty"`
}

func NewLeadPromoted(p LeadPromotedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "lead.promoted",
		OccurredAt: time.Now(),
		EntityType: "lead",
		EntityID:   p.LeadID,
		Summary:    "lead promoted at priority " + itoa(p.Priority) + " from " + p.Source,
		Category:   "lifecycle",
		Weight:     "major",
		Payload:    mustJSON(p),
	}
}

// LeadStatusChangedPayload carries event-specific data for a lifecycle
// state transition.
type LeadStatusChangedPayload struct {
	LeadID string           `json:"lead_id"`
	From   types.LeadStatus `json:"from"`
	To     types.LeadStatus `json:"to"`
}

func NewLeadStatusChanged(p LeadStatusChangedPayload) DomainEvent {
	weight := "minor"
	if p.To.IsTerminal() {
		weight = "major"
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  "lead.status_changed",
		OccurredAt: time.Now(),
		EntityType: "lead",
		EntityID:   p.LeadID,
		Summary:    string(p.From) + " -> " + string(p.To),
		Category:   "lifecycle",
		Weight:     weight,
		Payload:    mustJSON(p),
	}
}

// LeadClaimedPayload carries event-specific data for a claim on a lead.
type LeadClaimedPayload struct {
	LeadID     string `json:"lead_id"`
	AssignedTo string `json:"assigned_to"`
}

func NewLeadClaimed(p LeadClaimedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "lead.claimed",
		OccurredAt: time.Now(),
		EntityType: "lead",
		EntityID:   p.LeadID,
		Summary:    "lead claimed by " + p.AssignedTo,
		Category:   "lifecycle",
		Weight:     "minor",
		Payload:    mustJSON(p),
	}
}

// IngestBatchPayload is the full-result summary appended once per
// ingest run — the batch audit entry, action "<source>.ingest".
type IngestBatchPayload struct {
	Source         string `json:"source"`
	EntityType     string `json:"entity_type"`
	EntityID       string `json:"entity_id"`
	Received       int    `json:"received"`
	Inserted       int    `json:"inserted"`
	Updated        int    `json:"updated"`
	Errored        int    `json:"errored"`
	EventsInserted int    `json:"events_inserted"`
	EventsDeduped  int    `json:"events_deduped"`
	TotalFetched   int    `json:"total_fetched,omitempty"`
	TotalScored    int    `json:"total_scored,omitempty"`
	AboveCutoff    int    `json:"above_cutoff,omitempty"`
	TopScore       int    `json:"top_score,omitempty"`
	TopAddress     string `json:"top_address,omitempty"`
	ElapsedMS      int64  `json:"elapsed_ms"`
}

// NewIngestBatch reports one completed ingest run. The action is the
// originating route's tag plus ".ingest" (e.g. "propertyradar.ingest").
func NewIngestBatch(p IngestBatchPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  p.Source + ".ingest",
		OccurredAt: time.Now(),
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		Summary:    "ingest batch from " + p.Source + ": " + itoa(p.Inserted) + " inserted, " + itoa(p.Updated) + " updated, " + itoa(p.Errored) + " errored",
		Category:   "ingestion",
		Weight:     "info",
		Payload:    mustJSON(p),
	}
}

// IngestErrorPayload carries the sanitized detail of an ingest run that
// died on an unexpected error or panic.
type IngestErrorPayload struct {
	Source string `json:"source"`
	Detail string `json:"detail"`
}

// NewIngestError records an unexpected failure caught at the
// orchestrator boundary.
func NewIngestError(p IngestErrorPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "ingest.error",
		OccurredAt: time.Now(),
		EntityType: "ingest",
		EntityID:   p.Source,
		Summary:    "ingest from " + p.Source + " failed: " + p.Detail,
		Category:   "ingestion",
		Weight:     "critical",
		Payload:    mustJSON(p),
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
