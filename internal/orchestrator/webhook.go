package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/heatline/core/internal/dedup"
	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/normalize"
	"github.com/heatline/core/internal/types"
)

// WebhookRecord is one pre-classified property signal delivered to the
// vendor-agnostic webhook: the sender already knows which distress type
// it observed, so there is no decision table to run.
type WebhookRecord struct {
	APN          string          `json:"apn"`
	County       string          `json:"county"`
	Address      string          `json:"address"`
	OwnerName    string          `json:"owner_name"`
	DistressType string          `json:"distress_type"`
	RawData      json.RawMessage `json:"raw_data"`
}

// Webhook record statuses.
const (
	StatusIngested     = "ingested"
	StatusDuplicate    = "duplicate"
	StatusUpsertFailed = "upsert_failed"
	StatusEventFailed  = "event_failed"
	StatusInvalid      = "invalid"
)

// WebhookRecordResult reports one record's outcome.
type WebhookRecordResult struct {
	APN         string `json:"apn"`
	County      string `json:"county"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// WebhookSummary aggregates a webhook batch. One bad record never
// aborts the batch — it's tagged in Records and counted in Errors.
type WebhookSummary struct {
	Source   string                `json:"source"`
	Received int                   `json:"received"`
	Upserted int                   `json:"upserted"`
	Deduped  int                   `json:"deduped"`
	Errors   int                   `json:"errors"`
	Records  []WebhookRecordResult `json:"records"`
}

// IngestWebhook upserts each record's property and appends its distress
// event, then writes the batch audit entry under "<source>.ingest".
func (o *Orchestrator) IngestWebhook(ctx context.Context, source string, records []WebhookRecord) WebhookSummary {
	started := time.Now()
	summary := WebhookSummary{Source: source, Received: len(records)}

	var eventsInserted, eventsDeduped int
	for _, rec := range records {
		res := o.ingestWebhookRecord(ctx, source, rec)
		summary.Records = append(summary.Records, res)
		switch res.Status {
		case StatusIngested:
			summary.Upserted++
			eventsInserted++
		case StatusDuplicate:
			summary.Deduped++
			eventsDeduped++
		default:
			summary.Errors++
		}
	}

	o.record(ctx, event.NewIngestBatch(event.IngestBatchPayload{
		Source: source, EntityType: "ingest", EntityID: source,
		Received: summary.Received, Inserted: summary.Upserted, Errored: summary.Errors,
		EventsInserted: eventsInserted, EventsDeduped: eventsDeduped,
		ElapsedMS: time.Since(started).Milliseconds(),
	}))

	return summary
}

func (o *Orchestrator) ingestWebhookRecord(ctx context.Context, source string, rec WebhookRecord) WebhookRecordResult {
	apn := normalize.NormalizeAPN(rec.APN)
	county := normalize.NormalizeCounty(rec.County)
	out := WebhookRecordResult{APN: apn, County: county}

	severity, known := normalize.DefaultSeverity(rec.DistressType)
	if apn == "" || county == "" || !known {
		out.Status = StatusInvalid
		return out
	}

	property := types.Property{
		ID:         uuid.New().String(),
		APN:        apn,
		County:     county,
		Street:     rec.Address,
		OwnerName:  rec.OwnerName,
		OwnerFlags: map[string]any{},
	}
	stored, _, err := o.store.UpsertProperty(ctx, property)
	if err != nil {
		log.Printf("orchestrator: webhook upsert failed for %s/%s: %v", apn, county, err)
		out.Status = StatusUpsertFailed
		return out
	}

	eventType := types.EventType(rec.DistressType)
	fp := dedup.Fingerprint(apn, county, eventType, source)
	out.Fingerprint = fp

	raw := rec.RawData
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	inserted, err := o.store.InsertDistressEvent(ctx, types.DistressEvent{
		ID:          uuid.New().String(),
		PropertyID:  stored.ID,
		EventType:   eventType,
		Source:      source,
		Severity:    severity,
		Fingerprint: fp,
		RawData:     raw,
		CreatedAt:   time.Now().UTC(),
	})
	switch {
	case err != nil:
		log.Printf("orchestrator: webhook event insert failed for %s/%s: %v", apn, county, err)
		out.Status = StatusEventFailed
	case inserted:
		out.Status = StatusIngested
	default:
		out.Status = StatusDuplicate
	}
	return out
}
