package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/automation"
	"github.com/hearth-home/hearth-core/internal/device"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
)

// mockFirer records Fire calls.
type mockFirer struct {
	mu    sync.Mutex
	calls []firerCall
}

type firerCall struct {
	automationID string
	trigger      string
}

func (m *mockFirer) Fire(automationID, trigger string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, firerCall{automationID, trigger})
}

func (m *mockFirer) lastCall(t *testing.T) firerCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("no Fire calls recorded")
	}
	return m.calls[len(m.calls)-1]
}

// mockRepo serves canned firing history.
type mockRepo struct {
	firings []automation.FiringRecord
	err     error
}

func (m *mockRepo) SaveFiring(context.Context, automation.FiringRecord) error {
	return nil
}

func (m *mockRepo) ListFirings(_ context.Context, automationID string, limit int) ([]automation.FiringRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []automation.FiringRecord
	for _, f := range m.firings {
		if f.AutomationID == automationID {
			out = append(out, f)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type testFixture struct {
	server *Server
	store  *automation.Store
	firer  *mockFirer
	repo   *mockRepo
	http   *httptest.Server
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json"}, "test")

	store, err := automation.NewStore(filepath.Join(t.TempDir(), "automations.json"), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	registry := device.NewRegistry(nil)
	if err := registry.Add(device.Device{
		ID:   "lamp-1",
		Name: "Lamp",
		Room: "lounge",
		Entities: map[string]device.Entity{
			"main": {Name: "Main", Properties: map[string]string{"power": "state"}},
		},
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	firer := &mockFirer{}
	repo := &mockRepo{}

	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:       config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10},
		Logger:   logger,
		Store:    store,
		Registry: registry,
		Engine:   firer,
		Repo:     repo,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.hub = NewHub(srv.wsCfg, logger)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testFixture{server: srv, store: store, firer: firer, repo: repo, http: ts}
}

func (f *testFixture) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.http.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := f.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func testAutomationBody(id string) map[string]any {
	return map[string]any{
		"id":      id,
		"name":    "Test " + id,
		"enabled": true,
		"triggers": []map[string]any{
			{"type": "interval", "every": 300},
		},
		"actions": []map[string]any{
			{"type": "device_set", "device": "lamp-1", "entity": "main", "payload": map[string]any{"power": "ON"}},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	f := newTestFixture(t)

	resp := f.request(t, http.MethodGet, "/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestAutomationCRUD(t *testing.T) {
	f := newTestFixture(t)

	// Empty list.
	resp := f.request(t, http.MethodGet, "/api/v1/automations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}

	// Create.
	resp = f.request(t, http.MethodPost, "/api/v1/automations", testAutomationBody("morning"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	// Duplicate create conflicts.
	resp = f.request(t, http.MethodPost, "/api/v1/automations", testAutomationBody("morning"))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", resp.StatusCode)
	}

	// Get.
	resp = f.request(t, http.MethodGet, "/api/v1/automations/morning", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["name"] != "Test morning" {
		t.Errorf("name = %v", body["name"])
	}

	// Patch name only.
	resp = f.request(t, http.MethodPatch, "/api/v1/automations/morning", map[string]any{"name": "Renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["name"] != "Renamed" {
		t.Errorf("patched name = %v, want Renamed", body["name"])
	}

	// Delete.
	resp = f.request(t, http.MethodDelete, "/api/v1/automations/morning", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	// Second delete is a 404.
	resp = f.request(t, http.MethodDelete, "/api/v1/automations/morning", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateAutomation_GeneratesID(t *testing.T) {
	f := newTestFixture(t)

	body := testAutomationBody("")
	delete(body, "id")

	resp := f.request(t, http.MethodPost, "/api/v1/automations", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	created := decodeBody(t, resp)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("created automation has no generated ID")
	}
	if _, err := f.store.Get(id); err != nil {
		t.Errorf("generated ID not retrievable: %v", err)
	}
}

func TestCreateAutomation_Invalid(t *testing.T) {
	f := newTestFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{"no triggers", map[string]any{
			"id": "bad", "name": "Bad", "enabled": true,
			"actions": []map[string]any{
				{"type": "device_set", "device": "lamp-1", "payload": map[string]any{"power": "ON"}},
			},
		}},
		{"unknown trigger type", map[string]any{
			"id": "bad", "name": "Bad", "enabled": true,
			"triggers": []map[string]any{{"type": "telepathy"}},
			"actions": []map[string]any{
				{"type": "device_set", "device": "lamp-1", "payload": map[string]any{"power": "ON"}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.request(t, http.MethodPost, "/api/v1/automations", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetAutomation_NotFound(t *testing.T) {
	f := newTestFixture(t)

	resp := f.request(t, http.MethodGet, "/api/v1/automations/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFireAutomation(t *testing.T) {
	f := newTestFixture(t)

	resp := f.request(t, http.MethodPost, "/api/v1/automations", testAutomationBody("evening"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	resp = f.request(t, http.MethodPost, "/api/v1/automations/evening/fire", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("fire status = %d, want 202", resp.StatusCode)
	}

	call := f.firer.lastCall(t)
	if call.automationID != "evening" {
		t.Errorf("fired automation = %q, want evening", call.automationID)
	}
	if call.trigger != "manual:api" {
		t.Errorf("trigger = %q, want manual:api", call.trigger)
	}
}

func TestFireAutomation_NotFound(t *testing.T) {
	f := newTestFixture(t)

	resp := f.request(t, http.MethodPost, "/api/v1/automations/ghost/fire", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFireAutomation_Disabled(t *testing.T) {
	f := newTestFixture(t)

	body := testAutomationBody("off")
	body["enabled"] = false
	resp := f.request(t, http.MethodPost, "/api/v1/automations", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	resp = f.request(t, http.MethodPost, "/api/v1/automations/off/fire", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	f.firer.mu.Lock()
	defer f.firer.mu.Unlock()
	if len(f.firer.calls) != 0 {
		t.Error("disabled automation was fired")
	}
}

func TestListFirings(t *testing.T) {
	f := newTestFixture(t)

	resp := f.request(t, http.MethodPost, "/api/v1/automations", testAutomationBody("tracked"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	now := time.Now().UTC()
	f.repo.firings = []automation.FiringRecord{
		{ID: "f2", AutomationID: "tracked", Trigger: "interval:300s", StartedAt: now, CompletedAt: now, ConditionsMet: true},
		{ID: "f1", AutomationID: "tracked", Trigger: "manual:api", StartedAt: now.Add(-time.Minute), CompletedAt: now.Add(-time.Minute), ConditionsMet: true},
	}

	resp = f.request(t, http.MethodGet, "/api/v1/automations/tracked/firings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	// Limit applies.
	resp = f.request(t, http.MethodGet, "/api/v1/automations/tracked/firings?limit=1", nil)
	if body := decodeBody(t, resp); body["count"] != float64(1) {
		t.Errorf("limited count = %v, want 1", body["count"])
	}

	// Bad limit rejected.
	resp = f.request(t, http.MethodGet, "/api/v1/automations/tracked/firings?limit=zero", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	f := newTestFixture(t)

	resp := f.request(t, http.MethodGet, "/api/v1/devices", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	resp = f.request(t, http.MethodGet, "/api/v1/devices/lamp-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["id"] != "lamp-1" {
		t.Errorf("id = %v", body["id"])
	}

	resp = f.request(t, http.MethodGet, "/api/v1/devices/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", resp.StatusCode)
	}
}
