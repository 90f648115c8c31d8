package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// streamFor runs the SSE endpoint with a deadline and returns whatever was
// written before the client context expired.
func streamFor(t *testing.T, router http.Handler, lastEventID string, d time.Duration) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/public/events/stream", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()
	select {
	case <-done:
	case <-time.After(d + 2*time.Second):
		t.Fatal("stream handler did not return after context cancel")
	}
	return w
}

func TestEventStreamReplaysBacklog(t *testing.T) {
	router, _, _ := newTestApp(t)
	agent := registerTestAgent(t, router, "Wren")

	w := doJSON(t, router, http.MethodPost, "/api/agent/act", agent.APIKey,
		actBody("sse-1", "BUY", map[string]any{"item_id": "scrap", "qty": 1}))
	if w.Code != http.StatusOK {
		t.Fatalf("act expected 200, got %d", w.Code)
	}

	rec := streamFor(t, router, "", 100*time.Millisecond)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "id: 1\n") {
		t.Fatalf("expected backlog replay starting at seq 1, got:\n%s", body)
	}
	if !strings.Contains(body, "event: AGENT_REGISTERED\n") {
		t.Fatalf("expected AGENT_REGISTERED in stream, got:\n%s", body)
	}
}

func TestEventStreamHonorsLastEventID(t *testing.T) {
	router, _, _ := newTestApp(t)
	agent := registerTestAgent(t, router, "Sable")

	for i, reqID := range []string{"lei-1", "lei-2"} {
		w := doJSON(t, router, http.MethodPost, "/api/agent/act", agent.APIKey,
			actBody(reqID, "BUY", map[string]any{"item_id": "scrap", "qty": 1}))
		if w.Code != http.StatusOK {
			t.Fatalf("act %d expected 200, got %d", i, w.Code)
		}
	}

	// Resuming from seq 1 must skip the first event and replay the rest.
	rec := streamFor(t, router, "1", 100*time.Millisecond)
	body := rec.Body.String()
	if strings.Contains(body, "id: 1\n") {
		t.Fatalf("seq 1 replayed despite Last-Event-ID, got:\n%s", body)
	}
	if !strings.Contains(body, "id: 2\n") {
		t.Fatalf("expected replay from seq 2, got:\n%s", body)
	}
}
