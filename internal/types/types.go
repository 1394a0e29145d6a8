// Package types provides the canonical domain shapes shared across the
// ingestion, scoring, and lifecycle subsystems. These are plain Go
// structs — no ORM tags — because the persistence layer (internal/store)
// maps them to SQL by hand.
package types

import (
	"encoding/json"
	"time"
)

// EventType enumerates the distress signals the normalizer can detect.
type EventType string

const (
	EventProbate        EventType = "probate"
	EventPreForeclosure EventType = "pre_foreclosure"
	EventTaxLien        EventType = "tax_lien"
	EventCodeViolation  EventType = "code_violation"
	EventVacant         EventType = "vacant"
	EventDivorce        EventType = "divorce"
	EventBankruptcy     EventType = "bankruptcy"
	EventFSBO           EventType = "fsbo"
	EventAbsentee       EventType = "absentee"
	EventInherited      EventType = "inherited"
	EventWaterShutoff   EventType = "water_shutoff"
)

// LeadStatus enumerates the fixed lifecycle states for a Lead.
type LeadStatus string

const (
	StatusProspect    LeadStatus = "prospect"
	StatusLead        LeadStatus = "lead"
	StatusMyLead      LeadStatus = "my_lead"
	StatusNegotiation LeadStatus = "negotiation"
	StatusDisposition LeadStatus = "disposition"
	StatusNurture     LeadStatus = "nurture"
	StatusDead        LeadStatus = "dead"
	StatusClosed      LeadStatus = "closed"
)

// ActiveLeadStatuses are the statuses that count toward the "at most one
// active lead per property" invariant.
var ActiveLeadStatuses = []LeadStatus{StatusProspect, StatusLead, StatusNegotiation}

// IsActive reports whether s is one of the statuses counted as "active".
func (s LeadStatus) IsActive() bool {
	for _, a := range ActiveLeadStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a terminal lifecycle state.
func (s LeadStatus) IsTerminal() bool {
	return s == StatusDead || s == StatusClosed
}

// Property is the golden record. Identity = (APN, County).
type Property struct {
	ID             string
	APN            string
	County         string
	Street         string
	City           string
	State          string
	Zip            string
	OwnerName      string
	OwnerPhone     *string
	OwnerEmail     *string
	EstimatedValue *int64
	EquityPercent  *float64
	Bedrooms       *int
	Bathrooms      *float64
	SqFt           *int
	YearBuilt      *int
	LotSize        *int
	PropertyType   *string
	OwnerFlags     map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Factor is one attributed contributor to a composite or predictive score.
type Factor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// DistressEvent is the persisted, append-only form of a detected
// DistressSignal.
type DistressEvent struct {
	ID          string
	PropertyID  string
	EventType   EventType
	Source      string
	Severity    int
	Fingerprint string
	RawData     json.RawMessage
	Confidence  *float64
	CreatedAt   time.Time
}

// DetectedSignal is the in-flight (not-yet-persisted) shape produced by
// the normalizer and consumed directly by the scorers, carrying the
// recency information the persisted DistressEvent does not need to keep.
type DetectedSignal struct {
	EventType      EventType
	Severity       int
	DaysSinceEvent int
	Source         string
	RawData        json.RawMessage
	Confidence     *float64
}

// ScoringRecord is the append-only retrospective scoring result.
type ScoringRecord struct {
	ID                 string
	PropertyID         string
	ModelVersion       string
	CompositeScore     int
	MotivationScore    int
	DealScore          int
	SeverityMultiplier float64
	RecencyDecay       float64
	StackingBonus      float64
	OwnerFactorScore   float64
	EquityFactorScore  float64
	AIBoost            float64
	Label              string
	Factors            []Factor
	CreatedAt          time.Time
}

// Prediction is the append-only predictive scoring result.
type Prediction struct {
	ID                   string
	PropertyID           string
	ModelVersion         string
	PredictiveScore      int
	DaysUntilDistress    int
	Confidence           int
	Label                string
	OwnerAgeInference    *int
	EquityBurnRate       *float64
	AbsenteeDurationDays *int
	TaxDelinquencyTrend  *float64
	LifeEventProbability *float64
	Features             map[string]float64
	Factors              []Factor
	CreatedAt            time.Time
}

// Lead is the mutable workflow envelope.
type Lead struct {
	ID             string
	PropertyID     string
	Status         LeadStatus
	AssignedTo     *string
	Priority       int
	Source         string
	Tags           []string
	Notes          *string
	ClaimedAt      *time.Time
	ClaimExpiresAt *time.Time
	PromotedAt     time.Time
	LastContactAt  *time.Time
	FollowUpDate   *time.Time
	LockVersion    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SystemActor is the zero-UUID actor used for system-originated EventLog rows.
const SystemActor = "00000000-0000-0000-0000-000000000000"

// EventLog is the append-only audit trail.
type EventLog struct {
	ID         string
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	CreatedAt  time.Time
}

// OwnerFlags captures the owner-characteristic inputs to the retrospective
// scorer.
type OwnerFlags struct {
	Absentee   bool
	Corporate  bool
	Inherited  bool
	Elderly    bool
	OutOfState bool
}
