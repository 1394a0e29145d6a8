package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/heatline/core/internal/types"
)

// SQLiteStore implements Store against a modernc.org/sqlite database.
// Schema lives in migrations/ and is applied with Atlas before the store
// is ever used (see cmd/server/main.go) — CreateSchema below is a
// fallback for tests that don't want to shell out to the atlas CLI.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-open *sql.DB.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// dbTimeout bounds every store operation.
const dbTimeout = 10 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, dbTimeout)
}

// CreateSchema creates every table used by SQLiteStore if it doesn't
// already exist. Production startup applies migrations/ via Atlas
// instead; this exists so package tests can stand up a store without an
// external binary.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS properties (
	id TEXT PRIMARY KEY,
	apn TEXT NOT NULL,
	county TEXT NOT NULL,
	street TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zip TEXT NOT NULL DEFAULT '',
	owner_name TEXT NOT NULL DEFAULT '',
	owner_phone TEXT,
	owner_email TEXT,
	estimated_value INTEGER,
	equity_percent REAL,
	bedrooms INTEGER,
	bathrooms REAL,
	sqft INTEGER,
	year_built INTEGER,
	lot_size INTEGER,
	property_type TEXT,
	owner_flags TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (apn, county)
);

CREATE TABLE IF NOT EXISTS distress_events (
	id TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	event_type TEXT NOT NULL,
	source TEXT NOT NULL,
	severity INTEGER NOT NULL,
	fingerprint TEXT NOT NULL UNIQUE,
	raw_data TEXT NOT NULL DEFAULT '{}',
	confidence REAL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_distress_events_property ON distress_events(property_id, created_at DESC);

CREATE TABLE IF NOT EXISTS scoring_records (
	id TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	model_version TEXT NOT NULL,
	composite_score INTEGER NOT NULL,
	motivation_score INTEGER NOT NULL,
	deal_score INTEGER NOT NULL,
	severity_multiplier REAL NOT NULL,
	recency_decay REAL NOT NULL,
	stacking_bonus REAL NOT NULL,
	owner_factor_score REAL NOT NULL,
	equity_factor_score REAL NOT NULL,
	ai_boost REAL NOT NULL,
	label TEXT NOT NULL,
	factors TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scoring_records_property ON scoring_records(property_id, created_at DESC);

CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	model_version TEXT NOT NULL,
	predictive_score INTEGER NOT NULL,
	days_until_distress INTEGER NOT NULL,
	confidence INTEGER NOT NULL,
	label TEXT NOT NULL,
	owner_age_inference INTEGER,
	equity_burn_rate REAL,
	absentee_duration_days INTEGER,
	tax_delinquency_trend REAL,
	life_event_probability REAL,
	features TEXT NOT NULL DEFAULT '{}',
	factors TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_property ON predictions(property_id, created_at DESC);

CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	status TEXT NOT NULL,
	assigned_to TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	notes TEXT,
	claimed_at DATETIME,
	claim_expires_at DATETIME,
	promoted_at DATETIME NOT NULL,
	last_contact_at DATETIME,
	follow_up_date DATETIME,
	lock_version INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_property_status ON leads(property_id, status);
CREATE UNIQUE INDEX IF NOT EXISTS uq_leads_active_property ON leads(property_id)
	WHERE status IN ('prospect', 'lead', 'negotiation');

CREATE TABLE IF NOT EXISTS event_log (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	details TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_entity ON event_log(entity_type, entity_id, created_at DESC);
`

// UpsertProperty implements the golden-record merge: lookup by
// (apn, county); on a hit, non-zero incoming fields overwrite
// the stored row and zero-value fields preserve it; on a miss, insert.
func (s *SQLiteStore) UpsertProperty(ctx context.Context, p types.Property) (types.Property, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	existing, ok, err := s.FindPropertyByAPNCounty(ctx, p.APN, p.County)
	if err != nil {
		return types.Property{}, false, err
	}

	now := time.Now().UTC()
	if !ok {
		if p.ID == "" {
			return types.Property{}, false, fmt.Errorf("store: new property missing id")
		}
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := s.insertProperty(ctx, p); err != nil {
			return types.Property{}, false, err
		}
		return p, true, nil
	}

	merged := mergeProperty(existing, p)
	merged.UpdatedAt = now
	if err := s.updateProperty(ctx, merged); err != nil {
		return types.Property{}, false, err
	}
	return merged, false, nil
}

func mergeProperty(existing, incoming types.Property) types.Property {
	out := existing
	if incoming.Street != "" {
		out.Street = incoming.Street
	}
	if incoming.City != "" {
		out.City = incoming.City
	}
	if incoming.State != "" {
		out.State = incoming.State
	}
	if incoming.Zip != "" {
		out.Zip = incoming.Zip
	}
	if incoming.OwnerName != "" {
		out.OwnerName = incoming.OwnerName
	}
	if incoming.OwnerPhone != nil {
		out.OwnerPhone = incoming.OwnerPhone
	}
	if incoming.OwnerEmail != nil {
		out.OwnerEmail = incoming.OwnerEmail
	}
	if incoming.EstimatedValue != nil {
		out.EstimatedValue = incoming.EstimatedValue
	}
	if incoming.EquityPercent != nil {
		out.EquityPercent = incoming.EquityPercent
	}
	if incoming.Bedrooms != nil {
		out.Bedrooms = incoming.Bedrooms
	}
	if incoming.Bathrooms != nil {
		out.Bathrooms = incoming.Bathrooms
	}
	if incoming.SqFt != nil {
		out.SqFt = incoming.SqFt
	}
	if incoming.YearBuilt != nil {
		out.YearBuilt = incoming.YearBuilt
	}
	if incoming.LotSize != nil {
		out.LotSize = incoming.LotSize
	}
	if incoming.PropertyType != nil {
		out.PropertyType = incoming.PropertyType
	}
	for k, v := range incoming.OwnerFlags {
		if out.OwnerFlags == nil {
			out.OwnerFlags = map[string]any{}
		}
		out.OwnerFlags[k] = v
	}
	return out
}

func (s *SQLiteStore) insertProperty(ctx context.Context, p types.Property) error {
	flags, _ := json.Marshal(p.OwnerFlags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (
			id, apn, county, street, city, state, zip, owner_name, owner_phone, owner_email,
			estimated_value, equity_percent, bedrooms, bathrooms, sqft, year_built, lot_size,
			property_type, owner_flags, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.APN, p.County, p.Street, p.City, p.State, p.Zip, p.OwnerName, p.OwnerPhone, p.OwnerEmail,
		p.EstimatedValue, p.EquityPercent, p.Bedrooms, p.Bathrooms, p.SqFt, p.YearBuilt, p.LotSize,
		p.PropertyType, string(flags), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) updateProperty(ctx context.Context, p types.Property) error {
	flags, _ := json.Marshal(p.OwnerFlags)
	_, err := s.db.ExecContext(ctx, `
		UPDATE properties SET
			street=?, city=?, state=?, zip=?, owner_name=?, owner_phone=?, owner_email=?,
			estimated_value=?, equity_percent=?, bedrooms=?, bathrooms=?, sqft=?, year_built=?,
			lot_size=?, property_type=?, owner_flags=?, updated_at=?
		WHERE id=?`,
		p.Street, p.City, p.State, p.Zip, p.OwnerName, p.OwnerPhone, p.OwnerEmail,
		p.EstimatedValue, p.EquityPercent, p.Bedrooms, p.Bathrooms, p.SqFt, p.YearBuilt,
		p.LotSize, p.PropertyType, string(flags), p.UpdatedAt, p.ID,
	)
	return err
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id string) (types.Property, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, propertySelect+" WHERE id=?", id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Property{}, ErrNotFound
	}
	return p, err
}

func (s *SQLiteStore) FindPropertyByAPNCounty(ctx context.Context, apn, county string) (types.Property, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, propertySelect+" WHERE apn=? AND county=?", apn, county)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Property{}, false, nil
	}
	if err != nil {
		return types.Property{}, false, err
	}
	return p, true, nil
}

const propertySelect = `SELECT id, apn, county, street, city, state, zip, owner_name, owner_phone, owner_email,
	estimated_value, equity_percent, bedrooms, bathrooms, sqft, year_built, lot_size,
	property_type, owner_flags, created_at, updated_at FROM properties`

func scanProperty(row *sql.Row) (types.Property, error) {
	var p types.Property
	var flags string
	if err := row.Scan(
		&p.ID, &p.APN, &p.County, &p.Street, &p.City, &p.State, &p.Zip, &p.OwnerName, &p.OwnerPhone, &p.OwnerEmail,
		&p.EstimatedValue, &p.EquityPercent, &p.Bedrooms, &p.Bathrooms, &p.SqFt, &p.YearBuilt, &p.LotSize,
		&p.PropertyType, &flags, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return types.Property{}, err
	}
	_ = json.Unmarshal([]byte(flags), &p.OwnerFlags)
	return p, nil
}

// InsertDistressEvent inserts a DistressEvent, reporting false (and no
// error) when the fingerprint already exists.
func (s *SQLiteStore) InsertDistressEvent(ctx context.Context, e types.DistressEvent) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM distress_events WHERE fingerprint=?`, e.Fingerprint).Scan(&exists); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO distress_events (id, property_id, event_type, source, severity, fingerprint, raw_data, confidence, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.PropertyID, e.EventType, e.Source, e.Severity, e.Fingerprint, string(e.RawData), e.Confidence, e.CreatedAt,
	)
	if err != nil {
		// A UNIQUE race lost to a concurrent insert of the same
		// fingerprint is a duplicate, not a failure.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) ListDistressEvents(ctx context.Context, propertyID string) ([]types.DistressEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, event_type, source, severity, fingerprint, raw_data, confidence, created_at
		FROM distress_events WHERE property_id=? ORDER BY created_at DESC`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.DistressEvent
	for rows.Next() {
		var e types.DistressEvent
		var raw string
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.EventType, &e.Source, &e.Severity, &e.Fingerprint, &raw, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RawData = json.RawMessage(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertScoringRecord(ctx context.Context, r types.ScoringRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	factors, _ := json.Marshal(r.Factors)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoring_records (
			id, property_id, model_version, composite_score, motivation_score, deal_score,
			severity_multiplier, recency_decay, stacking_bonus, owner_factor_score, equity_factor_score,
			ai_boost, label, factors, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.PropertyID, r.ModelVersion, r.CompositeScore, r.MotivationScore, r.DealScore,
		r.SeverityMultiplier, r.RecencyDecay, r.StackingBonus, r.OwnerFactorScore, r.EquityFactorScore,
		r.AIBoost, r.Label, string(factors), r.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) LatestScoringRecord(ctx context.Context, propertyID string) (types.ScoringRecord, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, model_version, composite_score, motivation_score, deal_score,
			severity_multiplier, recency_decay, stacking_bonus, owner_factor_score, equity_factor_score,
			ai_boost, label, factors, created_at
		FROM scoring_records WHERE property_id=? ORDER BY created_at DESC LIMIT 1`, propertyID)

	var r types.ScoringRecord
	var factors string
	err := row.Scan(&r.ID, &r.PropertyID, &r.ModelVersion, &r.CompositeScore, &r.MotivationScore, &r.DealScore,
		&r.SeverityMultiplier, &r.RecencyDecay, &r.StackingBonus, &r.OwnerFactorScore, &r.EquityFactorScore,
		&r.AIBoost, &r.Label, &factors, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ScoringRecord{}, false, nil
	}
	if err != nil {
		return types.ScoringRecord{}, false, err
	}
	_ = json.Unmarshal([]byte(factors), &r.Factors)
	return r, true, nil
}

func (s *SQLiteStore) HistoricalScores(ctx context.Context, propertyID string, limit int) ([]int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT composite_score FROM scoring_records WHERE property_id=? ORDER BY created_at ASC LIMIT ?`, propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertPrediction(ctx context.Context, p types.Prediction) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	features, _ := json.Marshal(p.Features)
	factors, _ := json.Marshal(p.Factors)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, property_id, model_version, predictive_score, days_until_distress, confidence, label,
			owner_age_inference, equity_burn_rate, absentee_duration_days, tax_delinquency_trend,
			life_event_probability, features, factors, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.PropertyID, p.ModelVersion, p.PredictiveScore, p.DaysUntilDistress, p.Confidence, p.Label,
		p.OwnerAgeInference, p.EquityBurnRate, p.AbsenteeDurationDays, p.TaxDelinquencyTrend,
		p.LifeEventProbability, string(features), string(factors), p.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) LatestPrediction(ctx context.Context, propertyID string) (types.Prediction, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, property_id, model_version, predictive_score, days_until_distress, confidence, label,
			owner_age_inference, equity_burn_rate, absentee_duration_days, tax_delinquency_trend,
			life_event_probability, features, factors, created_at
		FROM predictions WHERE property_id=? ORDER BY created_at DESC LIMIT 1`, propertyID)

	var p types.Prediction
	var features, factors string
	err := row.Scan(&p.ID, &p.PropertyID, &p.ModelVersion, &p.PredictiveScore, &p.DaysUntilDistress, &p.Confidence, &p.Label,
		&p.OwnerAgeInference, &p.EquityBurnRate, &p.AbsenteeDurationDays, &p.TaxDelinquencyTrend,
		&p.LifeEventProbability, &features, &factors, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Prediction{}, false, nil
	}
	if err != nil {
		return types.Prediction{}, false, err
	}
	_ = json.Unmarshal([]byte(features), &p.Features)
	_ = json.Unmarshal([]byte(factors), &p.Factors)
	return p, true, nil
}

// CreateLead enforces the one-active-lead-per-property invariant inside
// a transaction: check-then-insert under the same lock, with the partial
// unique index as the backstop for racing writers.
func (s *SQLiteStore) CreateLead(ctx context.Context, l types.Lead) (types.Lead, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Lead{}, err
	}
	defer tx.Rollback()

	var existing int
	row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE property_id=? AND status IN (?,?,?)`,
		l.PropertyID, types.StatusProspect, types.StatusLead, types.StatusNegotiation)
	if err := row.Scan(&existing); err != nil {
		return types.Lead{}, err
	}
	if existing > 0 {
		return types.Lead{}, ErrActiveLeadExists
	}

	tags, _ := json.Marshal(l.Tags)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (
			id, property_id, status, assigned_to, priority, source, tags, notes, claimed_at,
			claim_expires_at, promoted_at, last_contact_at, follow_up_date, lock_version, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.PropertyID, l.Status, l.AssignedTo, l.Priority, l.Source, string(tags), l.Notes, l.ClaimedAt,
		l.ClaimExpiresAt, l.PromotedAt, l.LastContactAt, l.FollowUpDate, l.LockVersion, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Lead{}, ErrActiveLeadExists
		}
		return types.Lead{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Lead{}, err
	}
	return l, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (types.Lead, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, leadSelect+" WHERE id=?", id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Lead{}, false, nil
	}
	if err != nil {
		return types.Lead{}, false, err
	}
	return l, true, nil
}

func (s *SQLiteStore) FindActiveLeadByProperty(ctx context.Context, propertyID string) (types.Lead, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, leadSelect+` WHERE property_id=? AND status IN (?,?,?) LIMIT 1`,
		propertyID, types.StatusProspect, types.StatusLead, types.StatusNegotiation)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Lead{}, false, nil
	}
	if err != nil {
		return types.Lead{}, false, err
	}
	return l, true, nil
}

const leadSelect = `SELECT id, property_id, status, assigned_to, priority, source, tags, notes, claimed_at,
	claim_expires_at, promoted_at, last_contact_at, follow_up_date, lock_version, created_at, updated_at FROM leads`

func scanLead(row *sql.Row) (types.Lead, error) {
	var l types.Lead
	var tags string
	if err := row.Scan(&l.ID, &l.PropertyID, &l.Status, &l.AssignedTo, &l.Priority, &l.Source, &tags, &l.Notes,
		&l.ClaimedAt, &l.ClaimExpiresAt, &l.PromotedAt, &l.LastContactAt, &l.FollowUpDate, &l.LockVersion,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		return types.Lead{}, err
	}
	_ = json.Unmarshal([]byte(tags), &l.Tags)
	return l, nil
}

// UpdateLead applies l with an optimistic-concurrency CAS on
// lock_version: the write only lands if the stored row's lock_version
// still equals expectedLockVersion, and the new row's lock_version is
// expectedLockVersion+1.
func (s *SQLiteStore) UpdateLead(ctx context.Context, l types.Lead, expectedLockVersion int) (types.Lead, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tags, _ := json.Marshal(l.Tags)
	newVersion := expectedLockVersion + 1

	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET
			status=?, assigned_to=?, priority=?, tags=?, notes=?, claimed_at=?, claim_expires_at=?,
			last_contact_at=?, follow_up_date=?, lock_version=?, updated_at=?
		WHERE id=? AND lock_version=?`,
		l.Status, l.AssignedTo, l.Priority, string(tags), l.Notes, l.ClaimedAt, l.ClaimExpiresAt,
		l.LastContactAt, l.FollowUpDate, newVersion, l.UpdatedAt, l.ID, expectedLockVersion,
	)
	if err != nil {
		return types.Lead{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Lead{}, err
	}
	if n == 0 {
		return types.Lead{}, ErrLockConflict
	}
	l.LockVersion = newVersion
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, opts LeadQueryOptions) ([]types.Lead, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var where []string
	var args []any

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if opts.AssignedTo != nil {
		where = append(where, "assigned_to = ?")
		args = append(args, *opts.AssignedTo)
	}
	if opts.Unclaimed {
		where = append(where, "assigned_to IS NULL")
	}
	if opts.Expired {
		where = append(where, "claim_expires_at IS NOT NULL AND claim_expires_at < ?")
		args = append(args, time.Now().UTC())
	}
	if opts.MinScore != nil {
		where = append(where, "priority >= ?")
		args = append(args, *opts.MinScore)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	order := "ORDER BY created_at DESC"
	if opts.OrderByScoreDesc {
		order = "ORDER BY priority DESC, created_at DESC"
	}

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf("%s %s %s LIMIT ? OFFSET ?", leadSelect, whereClause, order)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []types.Lead
	for rows.Next() {
		var l types.Lead
		var tags string
		if err := rows.Scan(&l.ID, &l.PropertyID, &l.Status, &l.AssignedTo, &l.Priority, &l.Source, &tags, &l.Notes,
			&l.ClaimedAt, &l.ClaimExpiresAt, &l.PromotedAt, &l.LastContactAt, &l.FollowUpDate, &l.LockVersion,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tags), &l.Tags)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads %s", whereClause)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (s *SQLiteStore) WriteEventLog(ctx context.Context, entry types.EventLog) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	details, _ := json.Marshal(entry.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_log (id, user_id, action, entity_type, entity_id, details, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, string(details), entry.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListEventLog(ctx context.Context, entityType, entityID string, limit int) ([]types.EventLog, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, details, created_at
		FROM event_log WHERE entity_type=? AND entity_id=? ORDER BY created_at DESC LIMIT ?`,
		entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.EventLog
	for rows.Next() {
		var e types.EventLog
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
