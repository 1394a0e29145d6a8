// Package handler implements the HTTP surface over the ingestion,
// scoring, and lifecycle subsystems: shared JSON helpers, header-based
// audit context, and a package-level recorder set at server startup.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/heatline/core/internal/event"
)

// recorder is the package-level audit recorder, set once at server
// startup. Nil is fine — recording is then a no-op.
var recorder event.Recorder

// SetRecorder wires the audit recorder used by handlers and middleware.
func SetRecorder(r event.Recorder) {
	recorder = r
}

func recordEvent(ctx context.Context, actor string, evt event.DomainEvent) {
	if recorder == nil {
		return
	}
	_ = recorder.Record(ctx, actor, evt)
}

// CORS allows cross-origin calls; operator tooling runs off-origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor, X-Source, X-Webhook-Secret")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging logs each request with its duration.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

// Recovery converts a handler panic into a 500 and an ingest.error
// audit row instead of killing the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				recordEvent(r.Context(), "", event.NewIngestError(event.IngestErrorPayload{
					Source: r.URL.Path, Detail: "internal error",
				}))
				writeError(w, http.StatusInternalServerError, "internal", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts page_size and offset from query params.
func parsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// AuditInfo holds audit metadata extracted from request headers.
type AuditInfo struct {
	Actor  string
	Source string
}

// parseAuditContext extracts audit metadata from request headers. A
// missing X-Actor leaves Actor empty rather than rejecting the request;
// the audit recorder logs an empty actor as the system actor.
func parseAuditContext(r *http.Request) AuditInfo {
	actor := r.Header.Get("X-Actor")
	source := r.Header.Get("X-Source")
	if source == "" {
		source = "api"
	}
	return AuditInfo{Actor: actor, Source: source}
}
