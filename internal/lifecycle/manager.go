package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/store"
	"github.com/heatline/core/internal/types"
)

// ClaimDuration is how long a claim on a Lead holds before it becomes
// advisory-only.
const ClaimDuration = 24 * time.Hour

// maxCASRetries bounds the optimistic-locking retry loop against
// concurrent writers racing the same Lead row.
const maxCASRetries = 3

var ErrCASExhausted = errors.New("lifecycle: exceeded optimistic-lock retries")

// Manager implements the lifecycle operations against a store.Store,
// recording every transition through the audit recorder.
type Manager struct {
	store    store.Store
	recorder event.Recorder
}

// NewManager creates a new lifecycle Manager.
func NewManager(s store.Store, recorder event.Recorder) *Manager {
	return &Manager{store: s, recorder: recorder}
}

// Promote creates or refreshes the Lead for a freshly-ingested property.
// With no active lead, a new one is created at prospect with the blended
// priority, the ingest source, and the signal types just detected as
// tags. With an existing active lead, only priority and tags change —
// status is untouched. Returns the lead and whether it was created.
func (m *Manager) Promote(ctx context.Context, propertyID string, priority int, source string, tags []string) (types.Lead, bool, error) {
	if existing, ok, err := m.store.FindActiveLeadByProperty(ctx, propertyID); err != nil {
		return types.Lead{}, false, err
	} else if ok {
		updated, err := m.retryCAS(ctx, existing.ID, func(l types.Lead) (types.Lead, error) {
			l.Priority = priority
			l.Tags = tags
			l.UpdatedAt = time.Now().UTC()
			return l, nil
		}, nil)
		if err != nil {
			return types.Lead{}, false, err
		}
		return updated, false, nil
	}

	now := time.Now().UTC()
	lead := types.Lead{
		ID:          uuid.New().String(),
		PropertyID:  propertyID,
		Status:      types.StatusProspect,
		Priority:    priority,
		Source:      source,
		Tags:        tags,
		PromotedAt:  now,
		LockVersion: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := m.store.CreateLead(ctx, lead)
	if err != nil {
		if errors.Is(err, store.ErrActiveLeadExists) {
			// Lost the race to a concurrent ingest of the same property;
			// fall back to the update path.
			if existing, ok, ferr := m.store.FindActiveLeadByProperty(ctx, propertyID); ferr == nil && ok {
				return m.Promote(ctx, existing.PropertyID, priority, source, tags)
			}
		}
		return types.Lead{}, false, err
	}

	if m.recorder != nil {
		_ = m.recorder.Record(ctx, types.SystemActor, event.NewLeadPromoted(event.LeadPromotedPayload{
			LeadID: created.ID, PropertyID: propertyID, Priority: priority, Source: source, Tags: tags,
		}))
	}
	return created, true, nil
}

// Claim assigns an unclaimed (or expired-claim) Lead to assignedTo,
// setting a fresh ClaimDuration expiry.
func (m *Manager) Claim(ctx context.Context, leadID, assignedTo, actor string) (types.Lead, error) {
	lead, err := m.retryCAS(ctx, leadID, func(l types.Lead) (types.Lead, error) {
		if l.AssignedTo != nil && *l.AssignedTo != assignedTo && !claimExpired(l) {
			return types.Lead{}, fmt.Errorf("lifecycle: lead %s already claimed by %s", leadID, *l.AssignedTo)
		}
		now := time.Now().UTC()
		expires := now.Add(ClaimDuration)
		l.AssignedTo = &assignedTo
		l.ClaimedAt = &now
		l.ClaimExpiresAt = &expires
		l.UpdatedAt = now
		return l, nil
	}, nil)
	if err != nil {
		return types.Lead{}, err
	}
	if m.recorder != nil {
		_ = m.recorder.Record(ctx, actor, event.NewLeadClaimed(event.LeadClaimedPayload{LeadID: lead.ID, AssignedTo: assignedTo}))
	}
	return lead, nil
}

// Release clears a Lead's claim, returning it to the unclaimed pool.
// Used both for manual release and for sweeping expired claims.
func (m *Manager) Release(ctx context.Context, leadID, actor string) (types.Lead, error) {
	return m.retryCAS(ctx, leadID, func(l types.Lead) (types.Lead, error) {
		l.AssignedTo = nil
		l.ClaimedAt = nil
		l.ClaimExpiresAt = nil
		l.UpdatedAt = time.Now().UTC()
		return l, nil
	}, nil)
}

// ChangeStatus validates and applies a lifecycle transition. Moving into
// my_lead while the lead is unclaimed is an implicit claim by the actor:
// assigned_to, claimed_at, and claim_expires_at are set in the same
// write. A my_lead move on an already-claimed lead is a plain status
// move and leaves the claim alone.
func (m *Manager) ChangeStatus(ctx context.Context, leadID string, target types.LeadStatus, actor string) (types.Lead, error) {
	var from types.LeadStatus
	var claimed bool
	lead, err := m.retryCAS(ctx, leadID, func(l types.Lead) (types.Lead, error) {
		if err := ValidateTransition(l.Status, target); err != nil {
			return types.Lead{}, err
		}
		from = l.Status
		claimed = false
		now := time.Now().UTC()
		l.Status = target
		l.UpdatedAt = now
		if target == types.StatusMyLead && l.AssignedTo == nil && actor != "" {
			expires := now.Add(ClaimDuration)
			l.AssignedTo = &actor
			l.ClaimedAt = &now
			l.ClaimExpiresAt = &expires
			claimed = true
		}
		if target.IsTerminal() {
			l.AssignedTo = nil
			l.ClaimedAt = nil
			l.ClaimExpiresAt = nil
		}
		return l, nil
	}, nil)
	if err != nil {
		return types.Lead{}, err
	}

	if m.recorder != nil {
		if from != target {
			_ = m.recorder.Record(ctx, actor, event.NewLeadStatusChanged(event.LeadStatusChangedPayload{
				LeadID: lead.ID, From: from, To: target,
			}))
		}
		if claimed {
			_ = m.recorder.Record(ctx, actor, event.NewLeadClaimed(event.LeadClaimedPayload{LeadID: lead.ID, AssignedTo: actor}))
		}
	}
	return lead, nil
}

// SweepExpiredClaims releases every lead whose claim has expired.
// internal/server runs it on an hourly ticker.
func (m *Manager) SweepExpiredClaims(ctx context.Context) (int, error) {
	leads, _, err := m.store.ListLeads(ctx, store.LeadQueryOptions{Expired: true, Limit: 500})
	if err != nil {
		return 0, err
	}
	var released int
	for _, l := range leads {
		if _, err := m.Release(ctx, l.ID, types.SystemActor); err != nil && !errors.Is(err, store.ErrLockConflict) {
			return released, err
		}
		released++
	}
	return released, nil
}

func claimExpired(l types.Lead) bool {
	return l.ClaimExpiresAt != nil && l.ClaimExpiresAt.Before(time.Now().UTC())
}

// retryCAS reads the current Lead, applies mutate, and writes it back
// with UpdateLead's compare-and-swap on lock_version, making at most
// maxCASRetries attempts in all before surfacing ErrCASExhausted.
func (m *Manager) retryCAS(ctx context.Context, leadID string, mutate func(types.Lead) (types.Lead, error), onCommit func(types.Lead)) (types.Lead, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		current, ok, err := m.store.GetLead(ctx, leadID)
		if err != nil {
			return types.Lead{}, err
		}
		if !ok {
			return types.Lead{}, store.ErrNotFound
		}

		mutated, err := mutate(current)
		if err != nil {
			return types.Lead{}, err
		}

		updated, err := m.store.UpdateLead(ctx, mutated, current.LockVersion)
		if err == nil {
			if onCommit != nil {
				onCommit(updated)
			}
			return updated, nil
		}
		if !errors.Is(err, store.ErrLockConflict) {
			return types.Lead{}, err
		}
	}
	return types.Lead{}, ErrCASExhausted
}
