package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"undercity/internal/sim"
	"undercity/internal/store"
)

type banRequest struct {
	Reason string `json:"reason"`
}

func adminBanHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req banRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if err := world.BanAgent(chi.URLParam(r, "agent_id"), req.Reason); err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func adminUnbanHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := world.UnbanAgent(chi.URLParam(r, "agent_id")); err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func adminDisbandGangHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := world.DisbandGang(chi.URLParam(r, "gang_id")); err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func adminReinstateGangHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := world.ReinstateGang(chi.URLParam(r, "gang_id")); err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func adminPauseHandler(runner *sim.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		runner.Pause()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "paused": true})
	}
}

func adminResumeHandler(runner *sim.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		runner.Resume()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "paused": false})
	}
}

// History handlers read the durable audit trail, not in-memory state. They
// return 503 when the server runs without a database.

func adminEventHistoryHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeHTTPError(w, http.StatusServiceUnavailable, "persistence_disabled")
			return
		}
		rows, err := st.ListEvents(r.Context(), r.URL.Query().Get("agent_id"), queryInt64(r, "since_tick"), parsePagination(r))
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "query_failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "events": rows})
	}
}

func adminLedgerHistoryHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeHTTPError(w, http.StatusServiceUnavailable, "persistence_disabled")
			return
		}
		rows, err := st.ListLedgerEntries(r.Context(), r.URL.Query().Get("account_id"), parsePagination(r))
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "query_failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "entries": rows})
	}
}

func adminActionHistoryHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeHTTPError(w, http.StatusServiceUnavailable, "persistence_disabled")
			return
		}
		rows, err := st.ListActionRequests(r.Context(), r.URL.Query().Get("agent_id"), parsePagination(r))
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "query_failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "requests": rows})
	}
}
