package sim

import (
	"encoding/json"
	"testing"

	"undercity/internal/config"
)

// newTestWorld builds a world with default tuning, arrests disabled so
// probabilistic policing never fires mid-test, and no persistence.
func newTestWorld(t *testing.T) *World {
	t.Helper()
	return newTestWorldTuned(t, nil)
}

func newTestWorldTuned(t *testing.T, mut func(*config.Tuning)) *World {
	t.Helper()
	tn := config.DefaultTuning()
	tn.ArrestBaseProb = 0
	tn.ArrestHeatSlope = 0
	if mut != nil {
		mut(&tn)
	}
	return NewWorld(tn, 42, nil)
}

func mustRegister(t *testing.T, w *World, name string) *Agent {
	t.Helper()
	sum, key, err := w.RegisterAgent(name)
	if err != nil {
		t.Fatalf("RegisterAgent(%q): %v", name, err)
	}
	if key == "" {
		t.Fatalf("RegisterAgent(%q) returned empty api key", name)
	}
	a := w.agent(sum.AgentID)
	if a == nil {
		t.Fatalf("registered agent %q not resolvable", name)
	}
	return a
}

func submit(t *testing.T, w *World, agentID, requestID, action string, args any) (*ActionResult, error) {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("marshal args: %v", err)
		}
		raw = b
	}
	return w.Submit(SubmitInput{
		AgentID:    agentID,
		RequestID:  requestID,
		Action:     action,
		Args:       raw,
		Reflection: "weighing the odds before committing to this",
		Mood:       "focused",
	})
}

func mustSubmit(t *testing.T, w *World, agentID, requestID, action string, args any) *ActionResult {
	t.Helper()
	res, err := submit(t, w, agentID, requestID, action, args)
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return res
}

func TestRegisterAgentSeedsStartingState(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "vex")

	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash {
		t.Fatalf("starting cash = %d, want %d", got, w.tuning.StartingCash)
	}
	if a.ZoneID != w.tuning.StartingZone {
		t.Fatalf("starting zone = %q, want %q", a.ZoneID, w.tuning.StartingZone)
	}
	if a.Status != StatusIdle {
		t.Fatalf("status = %q, want idle", a.Status)
	}
	evs := w.Events.Query(EventFilter{Type: EvAgentRegistered, AgentID: a.ID})
	if len(evs) != 1 {
		t.Fatalf("registered events = %d, want 1", len(evs))
	}
}

func TestRegisterAgentNameTaken(t *testing.T) {
	w := newTestWorld(t)
	mustRegister(t, w, "vex")
	if _, _, err := w.RegisterAgent("vex"); KindOf(err) != KindConflict {
		t.Fatalf("duplicate name kind = %v, want conflict", KindOf(err))
	}
}

func TestAgentByAPIKey(t *testing.T) {
	w := newTestWorld(t)
	sum, key, err := w.RegisterAgent("vex")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	a, ok := w.AgentByAPIKey(key)
	if !ok || a.ID != sum.AgentID {
		t.Fatalf("AgentByAPIKey did not resolve the registered agent")
	}
	if _, ok := w.AgentByAPIKey("uc_bogus"); ok {
		t.Fatal("bogus key resolved")
	}
}

func TestBanClearsBusyAndBlocksActions(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "vex")
	mustSubmit(t, w, a.ID, "r-work", ActWork, map[string]any{"job_id": "courier"})

	if err := w.BanAgent(a.ID, "tos"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if a.Status != StatusBanned || a.BusyAction != "" {
		t.Fatalf("status=%q busy=%q after ban, want banned/cleared", a.Status, a.BusyAction)
	}
	if _, err := submit(t, w, a.ID, "r-after", ActRest, nil); KindOf(err) != KindInvalidState {
		t.Fatalf("banned agent action kind = %v, want invalid_state", KindOf(err))
	}
	if err := w.UnbanAgent(a.ID); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if a.Status != StatusIdle {
		t.Fatalf("status after unban = %q, want idle", a.Status)
	}
}

func TestLeaderboardOrdersByCash(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "rich")
	b := mustRegister(t, w, "poor")
	if _, err := w.Ledger.Credit(0, a.ID, 1000, "test_grant", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}

	rows := w.Leaderboard(10)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].AgentID != a.ID || rows[1].AgentID != b.ID {
		t.Fatalf("leaderboard order wrong: %q then %q", rows[0].Name, rows[1].Name)
	}
}

func TestDisbandGangPaysEqualShares(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) { tn.StartingCash = 5000 })
	a := mustRegister(t, w, "leader")
	b := mustRegister(t, w, "member")

	res := mustSubmit(t, w, a.ID, "r-create", ActCreateGang, map[string]any{"gang_name": "The Sparks"})
	gangID := res.Payload.(GangPayload).GangID
	mustSubmit(t, w, b.ID, "r-join", ActJoinGang, map[string]any{"gang_id": gangID})
	mustSubmit(t, w, a.ID, "r-fund", ActContribute, map[string]any{"gang_id": gangID, "amount": 1000})

	if err := w.DisbandGang(gangID); err != nil {
		t.Fatalf("disband: %v", err)
	}
	// 5000 - 1000 fee - 1000 contribution + 500 share
	if got := w.Ledger.Balance(a.ID); got != 3500 {
		t.Fatalf("leader balance = %d, want 3500", got)
	}
	if got := w.Ledger.Balance(b.ID); got != 5500 {
		t.Fatalf("member balance = %d, want 5500", got)
	}
	if a.GangID != "" || b.GangID != "" {
		t.Fatal("members still attached to disbanded gang")
	}
}
