// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/eventbus"
	"github.com/heatline/core/internal/handler"
	"github.com/heatline/core/internal/lifecycle"
	"github.com/heatline/core/internal/orchestrator"
	"github.com/heatline/core/internal/store"
	"github.com/heatline/core/internal/vendor"
)

// Config holds server configuration.
type Config struct {
	Port          int
	Store         store.Store
	VendorClient  *vendor.Client // optional; vendor-backed routes 502 without it
	WebhookSecret string
	CronSecret    string
	Roles         handler.RoleResolver // optional
}

// claimSweepInterval is how often expired claims are released back to
// the pool.
const claimSweepInterval = time.Hour

// Run starts the HTTP server with all routes registered and blocks
// until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	r := chi.NewRouter()
	r.Use(handler.CORS, handler.Logging, handler.Recovery)

	bus := eventbus.New(256)
	bus.Subscribe("log", eventbus.NewLogConsumer())
	bus.Subscribe("alerts", eventbus.NewAlertConsumer())
	stream := eventbus.NewStreamConsumer()
	bus.Subscribe("stream", stream)

	recorder := event.NewAuditRecorder(cfg.Store)
	recorder.SetPublisher(bus)
	handler.SetRecorder(recorder)

	bus.Start(ctx)
	log.Printf("event bus started with 3 consumers")

	manager := lifecycle.NewManager(cfg.Store, recorder)
	orch := orchestrator.New(cfg.Store, recorder, manager, cfg.VendorClient)

	ingest := handler.NewIngestHandler(orch, cfg.WebhookSecret, cfg.CronSecret, cfg.Roles)
	leads := handler.NewLeadHandler(cfg.Store, manager)
	streamHandler := handler.NewStreamHandler(stream)

	r.Post("/ingest", ingest.HandleWebhook)
	r.Post("/ingest/propertyradar", ingest.HandlePropertyRadar)
	r.Post("/ingest/propertyradar/bulk-seed", ingest.HandleBulkSeed)
	r.Get("/ingest/stream", streamHandler.ServeHTTP)

	properties := handler.NewPropertyHandler(cfg.Store)
	r.Route("/properties", func(r chi.Router) {
		r.Get("/{id}", properties.HandleGet)
		r.Get("/{id}/audit", properties.HandleHistory)
	})

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", leads.HandleList)
		r.Post("/sweep-expired", leads.HandleSweepExpiredClaims)
		r.Get("/{id}", leads.HandleGet)
		r.Post("/{id}/claim", leads.HandleClaim)
		r.Post("/{id}/release", leads.HandleRelease)
		r.Post("/{id}/status", leads.HandleChangeStatus)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Periodic release of expired claims.
	go func() {
		ticker := time.NewTicker(claimSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				released, err := manager.SweepExpiredClaims(ctx)
				if err != nil {
					log.Printf("claim sweep: %v", err)
				} else if released > 0 {
					log.Printf("claim sweep: released %d expired claims", released)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	bus.Stop()
	return nil
}
