package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"undercity/internal/config"
	"undercity/internal/sim"
)

const testAdminKey = "admin-test-key"

// newTestApp wires a router around a fresh in-memory world with arrests
// disabled so tick-driven side effects stay predictable.
func newTestApp(t *testing.T) (http.Handler, *sim.World, *sim.Runner) {
	t.Helper()
	tuning := config.DefaultTuning()
	tuning.ArrestBaseProb = 0
	tuning.ArrestHeatSlope = 0
	world := sim.NewWorld(tuning, 42, nil)
	runner := sim.NewRunner(world, time.Hour)
	router := newRouter(world, runner, nil, config.ServerConfig{AdminAPIKey: testAdminKey})
	return router, world, runner
}

func doJSON(t *testing.T, router http.Handler, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type registeredAgent struct {
	AgentID string
	APIKey  string
}

func registerTestAgent(t *testing.T, router http.Handler, name string) registeredAgent {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/agents/register", "", map[string]any{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s expected 201, got %d: %s", name, w.Code, w.Body.String())
	}
	var resp struct {
		Agent struct {
			AgentID string `json:"agent_id"`
		} `json:"agent"`
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if resp.Agent.AgentID == "" || resp.APIKey == "" {
		t.Fatal("register returned empty agent_id or api_key")
	}
	return registeredAgent{AgentID: resp.Agent.AgentID, APIKey: resp.APIKey}
}

func actBody(requestID, action string, args any) map[string]any {
	body := map[string]any{
		"request_id": requestID,
		"action":     action,
		"reflection": "testing the waters before anything real happens",
	}
	if args != nil {
		body["args"] = args
	}
	return body
}
