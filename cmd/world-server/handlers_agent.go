package main

import (
	"encoding/json"
	"net/http"

	"undercity/internal/sim"
)

type registerRequest struct {
	Name string `json:"name"`
}

type registerResponse struct {
	OK     bool             `json:"ok"`
	Agent  sim.AgentSummary `json:"agent"`
	APIKey string           `json:"api_key"`
}

// registerAgentHandler mints a new agent. The api key is returned exactly
// once; only its hash is kept.
func registerAgentHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		summary, apiKey, err := world.RegisterAgent(req.Name)
		if err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, registerResponse{OK: true, Agent: *summary, APIKey: apiKey})
	}
}

func agentStateHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := agentFromContext(r)
		view, err := world.AgentState(a.ID)
		if err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type actRequest struct {
	RequestID  string          `json:"request_id"`
	Action     string          `json:"action"`
	Args       json.RawMessage `json:"args,omitempty"`
	Reflection string          `json:"reflection"`
	Mood       string          `json:"mood,omitempty"`
}

func agentActHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := agentFromContext(r)
		var req actRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := world.Submit(sim.SubmitInput{
			AgentID:    a.ID,
			RequestID:  req.RequestID,
			Action:     req.Action,
			Args:       req.Args,
			Reflection: req.Reflection,
			Mood:       req.Mood,
		})
		if err != nil {
			writeSimError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// agentJournalHandler returns the caller's own journal entries, newest
// window last, straight from the event log.
func agentJournalHandler(world *sim.World) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := agentFromContext(r)
		events := world.Events.Query(sim.EventFilter{
			Type:      sim.EvJournal,
			AgentID:   a.ID,
			SinceTick: uint64(queryInt64(r, "since_tick")),
			Limit:     parsePagination(r),
		})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "journal": events})
	}
}
