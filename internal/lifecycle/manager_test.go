package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/store"
	"github.com/heatline/core/internal/types"
)

func newManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewManager(s, event.NewAuditRecorder(s)), s
}

func TestPromote_CreatesProspect(t *testing.T) {
	ctx := context.Background()
	m, s := newManager(t)

	lead, created, err := m.Promote(ctx, "prop-1", 82, "propertyradar", []string{"probate", "vacant"})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected a new lead")
	}
	if lead.Status != types.StatusProspect {
		t.Errorf("status = %s, want prospect", lead.Status)
	}
	if lead.Priority != 82 {
		t.Errorf("priority = %d, want 82", lead.Priority)
	}
	if len(lead.Tags) != 2 || lead.Tags[0] != "probate" {
		t.Errorf("tags = %v", lead.Tags)
	}
	if lead.PromotedAt.IsZero() {
		t.Error("promoted_at not set")
	}

	entries, err := s.ListEventLog(ctx, "lead", lead.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != "lead.promoted" {
		t.Errorf("audit entries = %v, want one lead.promoted", entries)
	}
}

func TestPromote_RefreshesExistingActiveLead(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	first, _, err := m.Promote(ctx, "prop-1", 60, "propertyradar", []string{"tax_lien"})
	if err != nil {
		t.Fatal(err)
	}

	// Move it along the pipeline; a re-ingest must not reset the status.
	if _, err := m.ChangeStatus(ctx, first.ID, types.StatusLead, "agent-1"); err != nil {
		t.Fatal(err)
	}

	refreshed, created, err := m.Promote(ctx, "prop-1", 88, "propertyradar", []string{"tax_lien", "probate"})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("re-promotion created a second lead")
	}
	if refreshed.ID != first.ID {
		t.Errorf("re-promotion switched leads: %s vs %s", refreshed.ID, first.ID)
	}
	if refreshed.Status != types.StatusLead {
		t.Errorf("status = %s, want untouched lead", refreshed.Status)
	}
	if refreshed.Priority != 88 {
		t.Errorf("priority = %d, want refreshed to 88", refreshed.Priority)
	}
	if len(refreshed.Tags) != 2 {
		t.Errorf("tags = %v, want refreshed", refreshed.Tags)
	}
}

func TestChangeStatus_ImplicitClaimOnMyLead(t *testing.T) {
	ctx := context.Background()
	m, s := newManager(t)

	lead, _, err := m.Promote(ctx, "prop-1", 75, "propertyradar", nil)
	if err != nil {
		t.Fatal(err)
	}

	before := time.Now().UTC()
	claimed, err := m.ChangeStatus(ctx, lead.ID, types.StatusMyLead, "agent-a")
	if err != nil {
		t.Fatal(err)
	}
	if claimed.AssignedTo == nil || *claimed.AssignedTo != "agent-a" {
		t.Fatalf("assigned_to = %v, want agent-a", claimed.AssignedTo)
	}
	if claimed.ClaimedAt == nil || claimed.ClaimedAt.Before(before.Add(-time.Second)) {
		t.Errorf("claimed_at = %v", claimed.ClaimedAt)
	}
	if claimed.ClaimExpiresAt == nil {
		t.Fatal("claim_expires_at not set")
	}
	if got := claimed.ClaimExpiresAt.Sub(*claimed.ClaimedAt); got != ClaimDuration {
		t.Errorf("claim window = %v, want %v", got, ClaimDuration)
	}

	entries, err := s.ListEventLog(ctx, "lead", lead.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	var sawClaim bool
	for _, e := range entries {
		if e.Action == "lead.claimed" {
			sawClaim = true
		}
	}
	if !sawClaim {
		t.Error("no lead.claimed audit entry")
	}

	// A second my_lead move by someone else is a status move, not a
	// re-claim: the claim stays with agent-a.
	again, err := m.ChangeStatus(ctx, lead.ID, types.StatusMyLead, "agent-b")
	if err != nil {
		t.Fatal(err)
	}
	if again.AssignedTo == nil || *again.AssignedTo != "agent-a" {
		t.Errorf("assigned_to = %v, want agent-a preserved", again.AssignedTo)
	}
}

func TestChangeStatus_AuditsFromTo(t *testing.T) {
	ctx := context.Background()
	m, s := newManager(t)

	lead, _, err := m.Promote(ctx, "prop-1", 50, "webhook", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ChangeStatus(ctx, lead.ID, types.StatusNurture, "agent-a"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListEventLog(ctx, "lead", lead.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, e := range entries {
		if e.Action == "lead.status_changed" {
			found = true
			if e.Details["from"] != "prospect" || e.Details["to"] != "nurture" {
				t.Errorf("details = %v, want from/to", e.Details)
			}
			if e.UserID != "agent-a" {
				t.Errorf("actor = %q, want agent-a", e.UserID)
			}
		}
	}
	if !found {
		t.Error("no lead.status_changed audit entry")
	}
}

func TestChangeStatus_TerminalStatesAreSticky(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	lead, _, err := m.Promote(ctx, "prop-1", 50, "webhook", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ChangeStatus(ctx, lead.ID, types.StatusDead, "agent-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ChangeStatus(ctx, lead.ID, types.StatusLead, "agent-a"); err == nil {
		t.Error("transition out of dead should be rejected")
	}
}

func TestChangeStatus_AnyNonTerminalMove(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	lead, _, err := m.Promote(ctx, "prop-1", 50, "webhook", nil)
	if err != nil {
		t.Fatal(err)
	}
	// prospect -> disposition skips the usual pipeline order and is
	// still legal.
	if _, err := m.ChangeStatus(ctx, lead.ID, types.StatusDisposition, "agent-a"); err != nil {
		t.Errorf("prospect -> disposition rejected: %v", err)
	}
}

func TestClaim_RejectsSecondClaimant(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	lead, _, err := m.Promote(ctx, "prop-1", 50, "webhook", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Claim(ctx, lead.ID, "agent-a", "agent-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Claim(ctx, lead.ID, "agent-b", "agent-b"); err == nil {
		t.Error("live claim should reject a second claimant")
	}
	// Same agent refreshing their own claim is fine.
	if _, err := m.Claim(ctx, lead.ID, "agent-a", "agent-a"); err != nil {
		t.Errorf("claim refresh rejected: %v", err)
	}
}

func TestRelease_ClearsClaim(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	lead, _, err := m.Promote(ctx, "prop-1", 50, "webhook", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Claim(ctx, lead.ID, "agent-a", "agent-a"); err != nil {
		t.Fatal(err)
	}
	released, err := m.Release(ctx, lead.ID, "agent-a")
	if err != nil {
		t.Fatal(err)
	}
	if released.AssignedTo != nil || released.ClaimedAt != nil || released.ClaimExpiresAt != nil {
		t.Errorf("claim fields survived release: %+v", released)
	}
}

// conflictStore forces UpdateLead to lose its CAS every time.
type conflictStore struct {
	store.Store
}

func (c conflictStore) UpdateLead(context.Context, types.Lead, int) (types.Lead, error) {
	return types.Lead{}, store.ErrLockConflict
}

func TestRetryCAS_SurfacesConflictAfterRetries(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	if _, err := mem.CreateLead(ctx, types.Lead{ID: "l1", PropertyID: "p1", Status: types.StatusProspect}); err != nil {
		t.Fatal(err)
	}

	m := NewManager(conflictStore{Store: mem}, nil)
	_, err := m.ChangeStatus(ctx, "l1", types.StatusLead, "agent-a")
	if !errors.Is(err, ErrCASExhausted) {
		t.Errorf("err = %v, want ErrCASExhausted", err)
	}
}
