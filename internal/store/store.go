// Package store persists the domain types across the ingestion,
// scoring, and lifecycle subsystems: a narrow Store interface, a
// SQL-backed implementation on raw database/sql, and an in-memory
// double for tests.
package store

import (
	"context"
	"errors"

	"github.com/heatline/core/internal/types"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrLockConflict is returned by UpdateLead when the caller's
// expectedLockVersion no longer matches the stored row.
var ErrLockConflict = errors.New("store: lock version conflict")

// ErrActiveLeadExists is returned by CreateLead when the property already
// has an active lead.
var ErrActiveLeadExists = errors.New("store: property already has an active lead")

// LeadQueryOptions filters and paginates ListLeads.
type LeadQueryOptions struct {
	Statuses         []types.LeadStatus
	AssignedTo       *string
	MinScore         *int
	Unclaimed        bool // only leads with no AssignedTo
	Expired          bool // only leads whose ClaimExpiresAt has passed
	OrderByScoreDesc bool
	Limit            int
	Offset           int
}

// Store is the persistence boundary for every subsystem. A single
// implementation backs both the ingestion orchestrator and the lifecycle
// manager so that Property/Lead invariants (golden-record upsert,
// at-most-one-active-lead, optimistic locking) are enforced in one place.
type Store interface {
	// Property
	UpsertProperty(ctx context.Context, p types.Property) (types.Property, bool, error)
	GetProperty(ctx context.Context, id string) (types.Property, error)
	FindPropertyByAPNCounty(ctx context.Context, apn, county string) (types.Property, bool, error)

	// DistressEvent
	InsertDistressEvent(ctx context.Context, e types.DistressEvent) (inserted bool, err error)
	ListDistressEvents(ctx context.Context, propertyID string) ([]types.DistressEvent, error)

	// Scoring
	InsertScoringRecord(ctx context.Context, r types.ScoringRecord) error
	LatestScoringRecord(ctx context.Context, propertyID string) (types.ScoringRecord, bool, error)
	HistoricalScores(ctx context.Context, propertyID string, limit int) ([]int, error)
	InsertPrediction(ctx context.Context, p types.Prediction) error
	LatestPrediction(ctx context.Context, propertyID string) (types.Prediction, bool, error)

	// Lead
	CreateLead(ctx context.Context, l types.Lead) (types.Lead, error)
	GetLead(ctx context.Context, id string) (types.Lead, bool, error)
	FindActiveLeadByProperty(ctx context.Context, propertyID string) (types.Lead, bool, error)
	UpdateLead(ctx context.Context, l types.Lead, expectedLockVersion int) (types.Lead, error)
	ListLeads(ctx context.Context, opts LeadQueryOptions) ([]types.Lead, int, error)

	// EventLog
	WriteEventLog(ctx context.Context, entry types.EventLog) error
	ListEventLog(ctx context.Context, entityType, entityID string, limit int) ([]types.EventLog, error)
}
