package sim

import (
	"strconv"
	"sync"
	"testing"

	"undercity/internal/config"
)

func startCoop(t *testing.T, w *World, initiatorID string, required int) string {
	t.Helper()
	res := mustSubmit(t, w, initiatorID, "start-coop", ActStartCoop, map[string]any{
		"crime_type": "burglary", "required": required,
	})
	return res.Payload.(CoopPayload).CoopID
}

func TestLastCoopSlotGoesToExactlyOne(t *testing.T) {
	w := newTestWorld(t)
	init := mustRegister(t, w, "planner")
	coopID := startCoop(t, w, init.ID, 2)

	contenders := make([]*Agent, 3)
	for i := range contenders {
		contenders[i] = mustRegister(t, w, "contender-"+strconv.Itoa(i))
	}

	var wg sync.WaitGroup
	results := make([]error, len(contenders))
	for i, c := range contenders {
		wg.Add(1)
		go func(i int, agentID string) {
			defer wg.Done()
			_, results[i] = submit(t, w, agentID, "join-"+strconv.Itoa(i), ActJoinCoop, map[string]any{"coop_id": coopID})
		}(i, c.ID)
	}
	wg.Wait()

	joined := 0
	for i, err := range results {
		if err == nil {
			joined++
			continue
		}
		if KindOf(err) != KindConflict {
			t.Fatalf("contender %d: kind = %v, want conflict", i, KindOf(err))
		}
	}
	if joined != 1 {
		t.Fatalf("joined = %d, want exactly 1", joined)
	}

	// Losers kept their stake.
	staked := 0
	for _, c := range contenders {
		switch w.Ledger.Balance(c.ID) {
		case w.tuning.StartingCash:
		case w.tuning.StartingCash - w.tuning.CoopStake:
			staked++
		default:
			t.Fatalf("unexpected balance %d", w.Ledger.Balance(c.ID))
		}
	}
	if staked != 1 {
		t.Fatalf("staked contenders = %d, want 1", staked)
	}
}

func TestCoopResolutionSettlesEscrow(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "planner")
	b := mustRegister(t, w, "muscle")
	coopID := startCoop(t, w, a.ID, 2)
	mustSubmit(t, w, b.ID, "join-b", ActJoinCoop, map[string]any{"coop_id": coopID})

	w.AdvanceTick()

	resolved := w.Events.Query(EventFilter{Type: EvCoopResolved})
	if len(resolved) != 1 {
		t.Fatalf("resolved events = %d, want 1", len(resolved))
	}
	outcome := resolved[0].Payload.(CoopPayload)

	if got := w.Ledger.Balance("coop:" + coopID); got != 0 {
		t.Fatalf("escrow balance = %d after resolution, want 0", got)
	}
	share := w.tuning.CoopPayout / 2
	want := w.tuning.StartingCash - w.tuning.CoopStake
	if outcome.Success {
		want += w.tuning.CoopStake + share
	}
	for _, agent := range []*Agent{a, b} {
		if got := w.Ledger.Balance(agent.ID); got != want {
			t.Fatalf("%s balance = %d, want %d (success=%v)", agent.Name, got, want, outcome.Success)
		}
		if agent.Heat < w.tuning.CoopHeat {
			t.Fatalf("%s heat = %d, want >= %d", agent.Name, agent.Heat, w.tuning.CoopHeat)
		}
	}

	w.mu.RLock()
	status := w.coops[coopID].Status
	w.mu.RUnlock()
	if status != CoopResolved {
		t.Fatalf("coop status = %q, want resolved", status)
	}
}

func TestCoopDeadlineRefundsStakes(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) { tn.CoopDeadlineTicks = 2 })
	a := mustRegister(t, w, "planner")
	coopID := startCoop(t, w, a.ID, 4)

	for i := 0; i < 3; i++ {
		w.AdvanceTick()
	}
	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash {
		t.Fatalf("balance = %d, want stake refunded", got)
	}
	if got := w.Events.Query(EventFilter{Type: EvCoopExpired}); len(got) != 1 {
		t.Fatalf("expired events = %d, want 1", len(got))
	}
	// Expired coops accept no joins.
	b := mustRegister(t, w, "late")
	if _, err := submit(t, w, b.ID, "join-late", ActJoinCoop, map[string]any{"coop_id": coopID}); KindOf(err) != KindConflict {
		t.Fatalf("join expired kind = %v, want conflict", KindOf(err))
	}
}

func TestJoinCoopTwiceRejected(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "planner")
	coopID := startCoop(t, w, a.ID, 3)
	if _, err := submit(t, w, a.ID, "rejoin", ActJoinCoop, map[string]any{"coop_id": coopID}); KindOf(err) != KindInvalidState {
		t.Fatalf("double join kind = %v, want invalid_state", KindOf(err))
	}
}

func TestCoopStrengthensCrewFriendships(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "planner")
	b := mustRegister(t, w, "muscle")

	mustSubmit(t, w, a.ID, "fr", ActFriendRequest, map[string]any{"target_agent_id": b.ID})
	mustSubmit(t, w, b.ID, "acc", ActFriendAccept, map[string]any{"target_agent_id": a.ID})

	w.friendsMu.Lock()
	before := w.friends[friendKey(a.ID, b.ID)].Strength
	w.friendsMu.Unlock()

	coopID := startCoop(t, w, a.ID, 2)
	mustSubmit(t, w, b.ID, "join-b", ActJoinCoop, map[string]any{"coop_id": coopID})
	w.AdvanceTick()

	w.friendsMu.Lock()
	after := w.friends[friendKey(a.ID, b.ID)].Strength
	w.friendsMu.Unlock()
	if after != before+w.tuning.CoopFriendStep {
		t.Fatalf("strength = %d, want %d", after, before+w.tuning.CoopFriendStep)
	}
}
