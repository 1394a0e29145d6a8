package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/normalize"
	"github.com/heatline/core/internal/scoring"
	"github.com/heatline/core/internal/vendor"
	"github.com/heatline/core/internal/workerpool"
)

const (
	// EliteCutoff is the retrospective composite below which a
	// bulk-seeded record is discarded without persistence or promotion.
	EliteCutoff = 75

	// bulkPageSize caps each vendor fetch page.
	bulkPageSize = 200

	// bulkRecordBudget bounds one elite record's persist-and-score
	// pass; an overrun aborts that record and the batch moves on.
	bulkRecordBudget = 5 * time.Second

	// maxBulkLimit caps a single bulk-seed request.
	maxBulkLimit = 1000
)

// BulkResult aggregates one bulk-seed run.
type BulkResult struct {
	Inserted       int    `json:"inserted"`
	Updated        int    `json:"updated"`
	Errored        int    `json:"errored"`
	TotalFetched   int    `json:"totalFetched"`
	TotalScored    int    `json:"totalScored"`
	AboveCutoff    int    `json:"aboveCutoff"`
	EventsInserted int    `json:"eventsInserted"`
	EventsDeduped  int    `json:"eventsDeduped"`
	TopScore       int    `json:"topScore"`
	TopAddress     string `json:"topAddress"`
	ElapsedMS      int64  `json:"elapsed_ms"`
}

type bulkScored struct {
	rec       vendor.Record
	composite int
	street    string
}

// BulkSeed pulls up to limit records from the vendor in pages, scores
// every fetched record in memory (pure, fanned across the worker pool),
// and runs the full persist pipeline only for those at or above
// EliteCutoff. Persistence is sequential so each property's artifacts
// land in order; cancelling mid-run leaves completed records fully
// persisted and the rest untouched.
func (o *Orchestrator) BulkSeed(ctx context.Context, limit int, counties []string, source string) (BulkResult, error) {
	if o.vendor == nil {
		return BulkResult{}, ErrNoVendor
	}
	started := time.Now()
	if limit <= 0 || limit > maxBulkLimit {
		limit = maxBulkLimit
	}

	var result BulkResult
	var fetched []vendor.Record
	for start := 0; len(fetched) < limit; {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pageSize := limit - len(fetched)
		if pageSize > bulkPageSize {
			pageSize = bulkPageSize
		}
		page, err := o.vendor.QueryPage(ctx, pageSize, start, counties)
		if err != nil {
			return result, err
		}
		if len(page.Results) == 0 {
			break
		}
		fetched = append(fetched, page.Results...)
		start += len(page.Results)
		if start >= page.TotalResultCount {
			break
		}
	}
	result.TotalFetched = len(fetched)

	// Pure scoring pass: no I/O, no shared state, safe to fan out.
	scored, err := workerpool.RunCollect(ctx, fetched, func(_ context.Context, rec vendor.Record) (bulkScored, error) {
		norm := normalize.Normalize(rec, source)
		out := scoring.Retrospective(scoring.RetrospectiveInput{
			Signals:       norm.Signals,
			OwnerFlags:    ownerFlagsFrom(norm.Property, norm.Signals),
			EquityPercent: derefF(norm.Property.EquityPercent),
			CompRatio:     derefF(normalize.ExtractFacts(rec, started.UTC()).CompRatio),
		})
		return bulkScored{rec: rec, composite: out.CompositeScore, street: norm.Property.Street}, nil
	})
	if err != nil {
		return result, err
	}
	result.TotalScored = len(scored)

	var elites []bulkScored
	for _, s := range scored {
		if s.composite >= EliteCutoff {
			elites = append(elites, s)
		}
		if s.composite > result.TopScore {
			result.TopScore = s.composite
			result.TopAddress = s.street
		}
	}
	result.AboveCutoff = len(elites)

	for _, e := range elites {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		recCtx, cancel := context.WithTimeout(ctx, bulkRecordBudget)
		res, err := o.IngestOne(recCtx, e.rec, source)
		cancel()
		if err != nil {
			log.Printf("orchestrator: bulk record errored: %v", err)
			result.Errored++
			continue
		}
		if res.Created {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.EventsInserted += res.InsertedEvents
		result.EventsDeduped += res.DuplicateEvents
	}

	result.ElapsedMS = time.Since(started).Milliseconds()

	o.record(ctx, event.NewIngestBatch(event.IngestBatchPayload{
		Source: source, EntityType: "ingest", EntityID: source,
		Received: result.TotalFetched, Inserted: result.Inserted, Updated: result.Updated,
		Errored: result.Errored, EventsInserted: result.EventsInserted, EventsDeduped: result.EventsDeduped,
		TotalFetched: result.TotalFetched, TotalScored: result.TotalScored, AboveCutoff: result.AboveCutoff,
		TopScore: result.TopScore, TopAddress: result.TopAddress,
		ElapsedMS: result.ElapsedMS,
	}))

	return result, nil
}
