package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
)

func TestPublicEndpoints(t *testing.T) {
	router, _, _ := newTestApp(t)
	agent := registerTestAgent(t, router, "Lark")

	w := doJSON(t, router, http.MethodGet, "/api/public/leaderboard", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leaderboard expected 200, got %d", w.Code)
	}
	var lb struct {
		Leaderboard []struct {
			AgentID string `json:"agent_id"`
		} `json:"leaderboard"`
	}
	if err := json.NewDecoder(w.Body).Decode(&lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Leaderboard) != 1 || lb.Leaderboard[0].AgentID != agent.AgentID {
		t.Fatalf("leaderboard = %+v", lb.Leaderboard)
	}

	w = doJSON(t, router, http.MethodGet, "/api/public/zones", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("zones expected 200, got %d", w.Code)
	}
	var zones struct {
		Zones []struct {
			ZoneID string `json:"zone_id"`
		} `json:"zones"`
	}
	if err := json.NewDecoder(w.Body).Decode(&zones); err != nil {
		t.Fatalf("decode zones: %v", err)
	}
	if len(zones.Zones) == 0 {
		t.Fatal("expected non-empty zones")
	}

	w = doJSON(t, router, http.MethodGet, "/api/public/market", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("market without zone_id expected 400, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/public/market?zone_id=nowhere", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("market unknown zone expected 404, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/public/market?zone_id=downtown", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("market expected 200, got %d", w.Code)
	}
	var market struct {
		Market []struct {
			ItemID string `json:"item_id"`
			Price  int64  `json:"price"`
		} `json:"market"`
	}
	if err := json.NewDecoder(w.Body).Decode(&market); err != nil {
		t.Fatalf("decode market: %v", err)
	}
	if len(market.Market) == 0 {
		t.Fatal("expected non-empty market")
	}

	w = doJSON(t, router, http.MethodGet, "/api/public/world", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("world expected 200, got %d", w.Code)
	}
	var info struct {
		Tick       uint64 `json:"tick"`
		AgentCount int    `json:"agent_count"`
		Paused     bool   `json:"paused"`
	}
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decode world: %v", err)
	}
	if info.AgentCount != 1 || info.Paused {
		t.Fatalf("world info = %+v", info)
	}
}

func TestPublicEventsQuery(t *testing.T) {
	router, _, _ := newTestApp(t)
	agent := registerTestAgent(t, router, "Quill")

	w := doJSON(t, router, http.MethodPost, "/api/agent/act", agent.APIKey,
		actBody("ev-1", "BUY", map[string]any{"item_id": "scrap", "qty": 1}))
	if w.Code != http.StatusOK {
		t.Fatalf("act expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/public/events?agent_id="+agent.AgentID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events expected 200, got %d", w.Code)
	}
	var resp struct {
		Events []struct {
			Seq     int64  `json:"seq"`
			Type    string `json:"type"`
			AgentID string `json:"agent_id"`
		} `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(resp.Events) == 0 {
		t.Fatal("expected events for agent")
	}
	for _, ev := range resp.Events {
		if ev.AgentID != agent.AgentID {
			t.Fatalf("event for wrong agent: %+v", ev)
		}
	}

	// since_seq filters out everything at or before the given seq.
	last := resp.Events[len(resp.Events)-1].Seq
	w = doJSON(t, router, http.MethodGet, "/api/public/events?since_seq="+strconv.FormatInt(last, 10), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events since_seq expected 200, got %d", w.Code)
	}
	var after struct {
		Events []struct {
			Seq int64 `json:"seq"`
		} `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	for _, ev := range after.Events {
		if ev.Seq <= last {
			t.Fatalf("since_seq leaked seq %d (boundary %d)", ev.Seq, last)
		}
	}
}
