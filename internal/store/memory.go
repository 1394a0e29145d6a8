package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/heatline/core/internal/types"
)

// MemoryStore implements Store with in-memory maps. Intended for
// package tests — no sqlite driver required.
type MemoryStore struct {
	mu sync.RWMutex

	properties map[string]types.Property
	apnIndex   map[string]string // apn|county -> property id

	distressEvents  []types.DistressEvent
	fingerprintSeen map[string]bool
	scoringRecords  []types.ScoringRecord
	predictions     []types.Prediction
	leads           map[string]types.Lead
	eventLog        []types.EventLog
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		properties:      map[string]types.Property{},
		apnIndex:        map[string]string{},
		fingerprintSeen: map[string]bool{},
		leads:           map[string]types.Lead{},
	}
}

func apnKey(apn, county string) string { return apn + "|" + county }

func (s *MemoryStore) UpsertProperty(_ context.Context, p types.Property) (types.Property, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := apnKey(p.APN, p.County)
	if id, ok := s.apnIndex[key]; ok {
		merged := mergeProperty(s.properties[id], p)
		merged.UpdatedAt = now
		s.properties[id] = merged
		return merged, false, nil
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	s.properties[p.ID] = p
	s.apnIndex[key] = p.ID
	return p, true, nil
}

func (s *MemoryStore) GetProperty(_ context.Context, id string) (types.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return types.Property{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindPropertyByAPNCounty(_ context.Context, apn, county string) (types.Property, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.apnIndex[apnKey(apn, county)]
	if !ok {
		return types.Property{}, false, nil
	}
	return s.properties[id], true, nil
}

func (s *MemoryStore) InsertDistressEvent(_ context.Context, e types.DistressEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fingerprintSeen[e.Fingerprint] {
		return false, nil
	}
	s.fingerprintSeen[e.Fingerprint] = true
	s.distressEvents = append(s.distressEvents, e)
	return true, nil
}

func (s *MemoryStore) ListDistressEvents(_ context.Context, propertyID string) ([]types.DistressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.DistressEvent
	for _, e := range s.distressEvents {
		if e.PropertyID == propertyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertScoringRecord(_ context.Context, r types.ScoringRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoringRecords = append(s.scoringRecords, r)
	return nil
}

func (s *MemoryStore) LatestScoringRecord(_ context.Context, propertyID string) (types.ScoringRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest types.ScoringRecord
	var found bool
	for _, r := range s.scoringRecords {
		if r.PropertyID != propertyID {
			continue
		}
		if !found || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) HistoricalScores(_ context.Context, propertyID string, limit int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []types.ScoringRecord
	for _, r := range s.scoringRecords {
		if r.PropertyID == propertyID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]int, len(matched))
	for i, r := range matched {
		out[i] = r.CompositeScore
	}
	return out, nil
}

func (s *MemoryStore) InsertPrediction(_ context.Context, p types.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions = append(s.predictions, p)
	return nil
}

func (s *MemoryStore) LatestPrediction(_ context.Context, propertyID string) (types.Prediction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest types.Prediction
	var found bool
	for _, p := range s.predictions {
		if p.PropertyID != propertyID {
			continue
		}
		if !found || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) CreateLead(_ context.Context, l types.Lead) (types.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.leads {
		if existing.PropertyID == l.PropertyID && existing.Status.IsActive() {
			return types.Lead{}, ErrActiveLeadExists
		}
	}
	s.leads[l.ID] = l
	return l, nil
}

func (s *MemoryStore) GetLead(_ context.Context, id string) (types.Lead, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	return l, ok, nil
}

func (s *MemoryStore) FindActiveLeadByProperty(_ context.Context, propertyID string) (types.Lead, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leads {
		if l.PropertyID == propertyID && l.Status.IsActive() {
			return l, true, nil
		}
	}
	return types.Lead{}, false, nil
}

func (s *MemoryStore) UpdateLead(_ context.Context, l types.Lead, expectedLockVersion int) (types.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.leads[l.ID]
	if !ok {
		return types.Lead{}, ErrNotFound
	}
	if existing.LockVersion != expectedLockVersion {
		return types.Lead{}, ErrLockConflict
	}
	l.LockVersion = expectedLockVersion + 1
	s.leads[l.ID] = l
	return l, nil
}

func (s *MemoryStore) ListLeads(_ context.Context, opts LeadQueryOptions) ([]types.Lead, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []types.Lead
	for _, l := range s.leads {
		if len(opts.Statuses) > 0 && !statusIn(l.Status, opts.Statuses) {
			continue
		}
		if opts.AssignedTo != nil && (l.AssignedTo == nil || *l.AssignedTo != *opts.AssignedTo) {
			continue
		}
		if opts.Unclaimed && l.AssignedTo != nil {
			continue
		}
		if opts.Expired && (l.ClaimExpiresAt == nil || !l.ClaimExpiresAt.Before(time.Now().UTC())) {
			continue
		}
		if opts.MinScore != nil && l.Priority < *opts.MinScore {
			continue
		}
		matched = append(matched, l)
	}

	if opts.OrderByScoreDesc {
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Priority != matched[j].Priority {
				return matched[i].Priority > matched[j].Priority
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	} else {
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	}

	total := len(matched)
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func statusIn(s types.LeadStatus, list []types.LeadStatus) bool {
	for _, st := range list {
		if st == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) WriteEventLog(_ context.Context, entry types.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventLog = append(s.eventLog, entry)
	return nil
}

func (s *MemoryStore) ListEventLog(_ context.Context, entityType, entityID string, limit int) ([]types.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []types.EventLog
	for _, e := range s.eventLog {
		if e.EntityType == entityType && e.EntityID == entityID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
