package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heatline/core/internal/event"
	"github.com/heatline/core/internal/lifecycle"
	"github.com/heatline/core/internal/orchestrator"
	"github.com/heatline/core/internal/store"
)

func newIngestHandler(t *testing.T) *IngestHandler {
	t.Helper()
	s := store.NewMemoryStore()
	recorder := event.NewAuditRecorder(s)
	manager := lifecycle.NewManager(s, recorder)
	orch := orchestrator.New(s, recorder, manager, nil)
	return NewIngestHandler(orch, "webhook-secret", "cron-secret", nil)
}

func webhookBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"source": "county-feed",
		"records": []map[string]any{
			{"apn": "123-456", "county": "Cook County", "address": "1 Elm St", "owner_name": "A Owner", "distress_type": "tax_lien"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(body)
}

func TestHandleWebhook_RejectsBadSecret(t *testing.T) {
	h := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest", webhookBody(t))
	req.Header.Set("x-webhook-secret", "wrong")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleWebhook_RejectsMalformedBody(t *testing.T) {
	h := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString("{"))
	req.Header.Set("x-webhook-secret", "webhook-secret")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleWebhook_IngestThenDuplicate(t *testing.T) {
	h := newIngestHandler(t)

	do := func() webhookResponse {
		req := httptest.NewRequest(http.MethodPost, "/ingest", webhookBody(t))
		req.Header.Set("x-webhook-secret", "webhook-secret")
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp webhookResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		return resp
	}

	first := do()
	if !first.Success || first.Received != 1 || first.Upserted != 1 {
		t.Fatalf("first response = %+v", first)
	}
	if first.Records[0].Status != "ingested" || first.Records[0].Fingerprint == "" {
		t.Fatalf("first record = %+v", first.Records[0])
	}

	second := do()
	if second.Deduped != 1 || second.Records[0].Status != "duplicate" {
		t.Fatalf("second response = %+v", second)
	}
	if second.Records[0].Fingerprint != first.Records[0].Fingerprint {
		t.Error("fingerprint changed between identical payloads")
	}
	if second.Timestamp == 0 {
		t.Error("timestamp missing")
	}
}

func TestHandlePropertyRadar_RequiresBearer(t *testing.T) {
	h := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/propertyradar", bytes.NewBufferString(`{"apn":"1"}`))
	rec := httptest.NewRecorder()
	h.HandlePropertyRadar(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/ingest/propertyradar", bytes.NewBufferString(`{"apn":"1"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.HandlePropertyRadar(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a bad token", rec.Code)
	}
}

// roleMap is a fixed user-id -> role table standing in for the real
// directory.
type roleMap map[string]string

func (r roleMap) Role(_ context.Context, userID string) (string, error) {
	return r[userID], nil
}

func TestHandleBulkSeed_Auth(t *testing.T) {
	s := store.NewMemoryStore()
	recorder := event.NewAuditRecorder(s)
	manager := lifecycle.NewManager(s, recorder)
	orch := orchestrator.New(s, recorder, manager, nil)
	h := NewIngestHandler(orch, "webhook-secret", "cron-secret", roleMap{"u-admin": "admin"})

	// No credentials at all.
	req := httptest.NewRequest(http.MethodPost, "/ingest/propertyradar/bulk-seed", bytes.NewBufferString(`{"limit":10}`))
	rec := httptest.NewRecorder()
	h.HandleBulkSeed(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// Non-admin user.
	req = httptest.NewRequest(http.MethodPost, "/ingest/propertyradar/bulk-seed", bytes.NewBufferString(`{"limit":10,"userId":"u-nobody"}`))
	rec = httptest.NewRecorder()
	h.HandleBulkSeed(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for non-admin", rec.Code)
	}

	// Admin user passes the gate; with no vendor client the request
	// then fails downstream, which is not an auth failure.
	req = httptest.NewRequest(http.MethodPost, "/ingest/propertyradar/bulk-seed", bytes.NewBufferString(`{"limit":10,"userId":"u-admin"}`))
	rec = httptest.NewRecorder()
	h.HandleBulkSeed(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Errorf("admin user was rejected")
	}
}
