package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"undercity/internal/sim"
)

var ssePingInterval = 15 * time.Second

func publicEventsHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events := world.Events.Query(sim.EventFilter{
			Type:      r.URL.Query().Get("type"),
			AgentID:   r.URL.Query().Get("agent_id"),
			ZoneID:    r.URL.Query().Get("zone_id"),
			SinceTick: uint64(queryInt64(r, "since_tick")),
			SinceSeq:  queryInt64(r, "since_seq"),
			Limit:     parsePagination(r),
		})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "events": events})
	}
}

// publicEventsStreamHandler is the live SSE feed. The SSE id is the event
// Seq; reconnecting with Last-Event-ID replays everything the client missed
// that is still in the log window.
func publicEventsStreamHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		var sinceSeq int64
		if v := r.Header.Get("Last-Event-ID"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				sinceSeq = n
			}
		}

		// Subscribe before replaying so nothing falls in the gap; the seq
		// check below drops any overlap.
		ch := world.Events.Subscribe()
		defer world.Events.Unsubscribe(ch)

		lastSeq := sinceSeq
		for _, ev := range world.Events.Query(sim.EventFilter{SinceSeq: sinceSeq}) {
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			lastSeq = ev.Seq
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-ch:
				if !open {
					return
				}
				if ev.Seq <= lastSeq {
					continue
				}
				if err := writeSSEEvent(w, ev); err != nil {
					return
				}
				lastSeq = ev.Seq
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprintf(w, "event: ping\ndata: {\"ts\":%d}\n\n", time.Now().UnixMilli()); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev sim.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func publicLeaderboardHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":          true,
			"leaderboard": world.Leaderboard(parsePagination(r)),
		})
	}
}

func publicZonesHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "zones": world.Zones()})
	}
}

func publicMarketHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zoneID := r.URL.Query().Get("zone_id")
		if zoneID == "" {
			writeHTTPError(w, http.StatusBadRequest, "missing_zone_id")
			return
		}
		quotes := world.MarketQuotes(zoneID)
		if len(quotes) == 0 {
			writeHTTPError(w, http.StatusNotFound, "unknown_zone")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "market": quotes})
	}
}

func publicWorldHandler(world *sim.World, runner *sim.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		info := world.Info()
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":          true,
			"tick":        info.Tick,
			"seed":        info.Seed,
			"agent_count": info.AgentCount,
			"gang_count":  info.GangCount,
			"paused":      runner.Paused(),
		})
	}
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
