// Package orchestrator drives the ingestion pipeline: the
// single-record path (normalize -> dedup -> persist -> score -> predict
// -> promote -> audit), the webhook batch path, and the bulk-seed path,
// which fans pure scoring out across a CPU-sized worker pool and
// serializes persistence per record.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/heatline/core/internal/dedup"
	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/lifecycle"
	"github.com/heatline/core/internal/normalize"
	"github.com/heatline/core/internal/scoring"
	"github.com/heatline/core/internal/store"
	"github.com/heatline/core/internal/types"
	"github.com/heatline/core/internal/vendor"
)

// ErrMissingIdentity is returned when a resolved vendor record carries
// no APN — without one there is no golden-record key to upsert against.
var ErrMissingIdentity = errors.New("orchestrator: vendor record has no APN")

// ErrBadQuery is returned when a single-property ingest request names
// neither an address, an APN, nor a radar ID.
var ErrBadQuery = errors.New("orchestrator: request needs address, apn, or radarId")

// ErrNoVendor is returned from vendor-backed paths when the
// orchestrator was built without a vendor client.
var ErrNoVendor = errors.New("orchestrator: no vendor client configured")

// Result summarizes what IngestOne did to a single vendor record.
type Result struct {
	Property        types.Property              `json:"property"`
	Created         bool                        `json:"created"`
	InsertedEvents  int                         `json:"events_inserted"`
	DuplicateEvents int                         `json:"events_deduped"`
	ErroredEvents   int                         `json:"events_errored"`
	Signals         []types.DetectedSignal      `json:"signals"`
	Scoring         scoring.RetrospectiveOutput `json:"scoring"`
	Prediction      *scoring.PredictiveOutput   `json:"prediction,omitempty"`
	LeadScore       int                         `json:"lead_score"`
	Label           string                      `json:"label"`
	Promoted        bool                        `json:"promoted"`
	LeadID          string                      `json:"lead_id,omitempty"`
	ElapsedMS       int64                       `json:"elapsed_ms"`
}

// Orchestrator wires the normalizer, dedup layer, scorers, blender, and
// lifecycle manager against a store.Store. The vendor client is only
// needed by the resolve and bulk-seed paths and may be nil elsewhere.
type Orchestrator struct {
	store     store.Store
	recorder  event.Recorder
	lifecycle *lifecycle.Manager
	vendor    *vendor.Client
}

// New creates a new Orchestrator. vc may be nil when only the webhook
// and direct-record paths are needed (tests, offline replay).
func New(s store.Store, recorder event.Recorder, lm *lifecycle.Manager, vc *vendor.Client) *Orchestrator {
	return &Orchestrator{store: s, recorder: recorder, lifecycle: lm, vendor: vc}
}

// SingleQuery identifies one property for the vendor-resolve path. The
// first non-empty identifier wins: RadarID, then APN, then Address.
type SingleQuery struct {
	RadarID string `json:"radarId"`
	APN     string `json:"apn"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// ResolveAndIngest looks the property up at the vendor and runs the
// full single-record pipeline on the result.
func (o *Orchestrator) ResolveAndIngest(ctx context.Context, q SingleQuery, source string) (Result, error) {
	if o.vendor == nil {
		return Result{}, ErrNoVendor
	}

	var rec vendor.Record
	var err error
	switch {
	case q.RadarID != "":
		rec, err = o.vendor.QueryByRadarID(ctx, q.RadarID)
	case q.APN != "":
		rec, err = o.vendor.QueryByAPN(ctx, q.APN)
	case q.Address != "":
		rec, err = o.vendor.QueryByAddress(ctx, q.Address, q.City, q.State, q.Zip)
	default:
		return Result{}, ErrBadQuery
	}
	if err != nil {
		return Result{}, err
	}
	return o.IngestOne(ctx, rec, source)
}

// IngestOne runs the full single-record pipeline for one vendor record:
// normalize, golden-record upsert, per-signal dedup insert,
// retrospective + predictive scoring, blend, promotion, and the batch
// audit entry. Property upsert failure aborts the record; scoring and
// prediction insert failures are logged and skipped so a storage blip
// never loses an ingest.
func (o *Orchestrator) IngestOne(ctx context.Context, rec vendor.Record, source string) (Result, error) {
	started := time.Now()
	asOf := started.UTC()

	norm := normalize.Normalize(rec, source)
	if norm.Property.APN == "" {
		return Result{}, ErrMissingIdentity
	}

	norm.Property.ID = uuid.New().String()
	property, created, err := o.store.UpsertProperty(ctx, norm.Property)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: upserting property: %w", err)
	}

	inserted, duplicates, errored := o.insertSignals(ctx, property, norm.Signals)

	retroOut := o.scoreRetrospective(ctx, property, norm.Signals, rec, asOf)
	predOut := o.scorePredictive(ctx, property, norm.Signals, rec, asOf)

	blend := scoring.Blend(scoring.BlendInput{Retrospective: retroOut, Predictive: predOut})

	result := Result{
		Property: property, Created: created,
		InsertedEvents: inserted, DuplicateEvents: duplicates, ErroredEvents: errored,
		Signals: norm.Signals, Scoring: retroOut, Prediction: predOut,
		LeadScore: blend.LeadScore, Label: blend.Label,
	}

	if o.lifecycle != nil {
		lead, promoted, err := o.lifecycle.Promote(ctx, property.ID, blend.LeadScore, source, signalTags(norm.Signals))
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: promoting lead: %w", err)
		}
		result.Promoted = promoted
		result.LeadID = lead.ID
	}

	result.ElapsedMS = time.Since(started).Milliseconds()

	o.record(ctx, event.NewIngestBatch(event.IngestBatchPayload{
		Source: source, EntityType: "property", EntityID: property.ID,
		Received: 1, Inserted: boolToInt(created), Updated: boolToInt(!created),
		Errored: errored, EventsInserted: inserted, EventsDeduped: duplicates,
		ElapsedMS: result.ElapsedMS,
	}))

	return result, nil
}

// insertSignals fingerprints and persists each detected signal,
// counting inserts, duplicates, and store errors. A non-duplicate
// failure on one signal doesn't stop the rest.
func (o *Orchestrator) insertSignals(ctx context.Context, property types.Property, signals []types.DetectedSignal) (inserted, duplicates, errored int) {
	for _, sig := range signals {
		fp := dedup.Fingerprint(property.APN, property.County, sig.EventType, sig.Source)
		de := types.DistressEvent{
			ID:          uuid.New().String(),
			PropertyID:  property.ID,
			EventType:   sig.EventType,
			Source:      sig.Source,
			Severity:    sig.Severity,
			Fingerprint: fp,
			RawData:     sig.RawData,
			Confidence:  sig.Confidence,
			CreatedAt:   time.Now().UTC(),
		}
		ok, err := o.store.InsertDistressEvent(ctx, de)
		switch {
		case err != nil:
			log.Printf("orchestrator: distress event insert failed for %s: %v", property.APN, err)
			errored++
		case ok:
			inserted++
			o.record(ctx, event.NewDistressSignalDetected(event.DistressSignalDetectedPayload{
				PropertyID: property.ID, EventType: sig.EventType, Severity: sig.Severity, Source: sig.Source,
			}))
		default:
			duplicates++
		}
	}
	return inserted, duplicates, errored
}

func (o *Orchestrator) scoreRetrospective(ctx context.Context, property types.Property, signals []types.DetectedSignal, rec vendor.Record, asOf time.Time) scoring.RetrospectiveOutput {
	facts := normalize.ExtractFacts(rec, asOf)
	out := scoring.Retrospective(scoring.RetrospectiveInput{
		Signals:       signals,
		OwnerFlags:    ownerFlagsFrom(property, signals),
		EquityPercent: derefF(property.EquityPercent),
		CompRatio:     derefF(facts.CompRatio),
	})

	record := types.ScoringRecord{
		ID: uuid.New().String(), PropertyID: property.ID, ModelVersion: out.ModelVersion,
		CompositeScore: out.CompositeScore, MotivationScore: out.MotivationScore, DealScore: out.DealScore,
		SeverityMultiplier: out.SeverityMultiplier, RecencyDecay: out.RecencyDecay, StackingBonus: out.StackingBonus,
		OwnerFactorScore: out.OwnerFactorScore, EquityFactorScore: out.EquityFactorScore, AIBoost: out.AIBoost,
		Label: out.Label, Factors: out.Factors, CreatedAt: time.Now().UTC(),
	}
	if err := o.store.InsertScoringRecord(ctx, record); err != nil {
		log.Printf("orchestrator: scoring record insert failed for %s: %v", property.APN, err)
	} else {
		o.record(ctx, event.NewPropertyScored(event.PropertyScoredPayload{
			PropertyID: property.ID, CompositeScore: out.CompositeScore, Label: out.Label, ModelVersion: out.ModelVersion,
		}))
	}
	return out
}

func (o *Orchestrator) scorePredictive(ctx context.Context, property types.Property, signals []types.DetectedSignal, rec vendor.Record, asOf time.Time) *scoring.PredictiveOutput {
	historicalScores, err := o.store.HistoricalScores(ctx, property.ID, 10)
	if err != nil {
		log.Printf("orchestrator: loading historical scores for %s: %v", property.APN, err)
	}

	out := scoring.Predictive(buildPredictiveInput(property, signals, normalize.ExtractFacts(rec, asOf), historicalScores, asOf))

	prediction := types.Prediction{
		ID: uuid.New().String(), PropertyID: property.ID, ModelVersion: out.ModelVersion,
		PredictiveScore: out.PredictiveScore, DaysUntilDistress: out.DaysUntilDistress, Confidence: out.Confidence,
		Label: out.Label, OwnerAgeInference: out.OwnerAgeInference, EquityBurnRate: out.EquityBurnRate,
		AbsenteeDurationDays: out.AbsenteeDurationDays, TaxDelinquencyTrend: out.TaxDelinquencyTrend,
		LifeEventProbability: out.LifeEventProbability, Features: out.Features, Factors: out.Factors,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.InsertPrediction(ctx, prediction); err != nil {
		log.Printf("orchestrator: prediction insert failed for %s: %v", property.APN, err)
	} else {
		o.record(ctx, event.NewPropertyPredicted(event.PropertyPredictedPayload{
			PropertyID: property.ID, PredictiveScore: out.PredictiveScore, DaysUntilDistress: out.DaysUntilDistress, Label: out.Label,
		}))
	}
	return &out
}

func (o *Orchestrator) record(ctx context.Context, evt event.DomainEvent) {
	if o.recorder == nil {
		return
	}
	_ = o.recorder.Record(ctx, types.SystemActor, evt)
}

// signalTags collects the distinct signal types of one detection pass,
// in detection order — these become the Lead's tags.
func signalTags(signals []types.DetectedSignal) []string {
	seen := make(map[types.EventType]bool, len(signals))
	var out []string
	for _, s := range signals {
		if !seen[s.EventType] {
			seen[s.EventType] = true
			out = append(out, string(s.EventType))
		}
	}
	return out
}

func ownerFlagsFrom(p types.Property, signals []types.DetectedSignal) types.OwnerFlags {
	flags := types.OwnerFlags{}
	boolFlag := func(key string) bool {
		v, ok := p.OwnerFlags[key].(bool)
		return ok && v
	}
	flags.Absentee = boolFlag("absentee")
	flags.Corporate = boolFlag("corporate")
	flags.Inherited = boolFlag("inherited")
	flags.Elderly = boolFlag("elderly")
	flags.OutOfState = boolFlag("out_of_state")
	for _, s := range signals {
		switch s.EventType {
		case types.EventAbsentee:
			flags.Absentee = true
		case types.EventInherited:
			flags.Inherited = true
		}
	}
	return flags
}

func buildPredictiveInput(p types.Property, signals []types.DetectedSignal, facts normalize.Facts, historicalScores []int, asOf time.Time) scoring.PredictiveInput {
	flags := ownerFlagsFrom(p, signals)
	in := scoring.PredictiveInput{
		Signals:                 signals,
		AsOf:                    asOf,
		OwnerAgeKnown:           facts.OwnerAge,
		OwnershipYears:          facts.OwnershipYears,
		IsCorporateOwner:        flags.Corporate,
		CurrentEquityPercent:    p.EquityPercent,
		LoanBalance:             facts.LoanBalance,
		EstimatedValue:          floatFromInt64(p.EstimatedValue),
		LastSaleDate:            facts.LastSaleDate,
		LastSalePrice:           facts.LastSalePrice,
		IsAbsentee:              flags.Absentee,
		CurrentDelinquentAmount: facts.DelinquentAmount,
		TaxAssessedValue:        facts.TaxAssessedValue,
		ForeclosureStage:        foreclosureStage(facts.ForeclosureStage),
		DefaultAmount:           facts.DefaultAmount,
		HistoricalScores:        historicalScores,
	}
	if v, ok := p.OwnerFlags["vacant"].(bool); ok {
		in.IsVacant = v
	}
	for _, s := range signals {
		if s.EventType == types.EventVacant {
			in.IsVacant = true
		}
	}
	return in
}

// foreclosureStage maps the vendor's free-form stage string onto the
// model's three-stage ladder.
func foreclosureStage(raw string) scoring.ForeclosureStage {
	s := strings.ToLower(raw)
	switch {
	case s == "":
		return scoring.ForeclosureStageNone
	case strings.Contains(s, "auction") || strings.Contains(s, "sale"):
		return scoring.ForeclosureStageAuction
	case strings.Contains(s, "notice") || strings.Contains(s, "nod") || strings.Contains(s, "lis"):
		return scoring.ForeclosureStageNotice
	default:
		return scoring.ForeclosureStageNotice
	}
}

func floatFromInt64(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func derefF(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
