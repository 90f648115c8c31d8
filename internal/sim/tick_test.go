package sim

import (
	"testing"

	"undercity/internal/config"
)

func TestHeatDecaysWhileIdle(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "hot")
	a.Heat = 65

	for i := 0; i < 10; i++ {
		w.AdvanceTick()
	}
	if a.Heat != 55 {
		t.Fatalf("heat after 10 idle ticks = %d, want 55", a.Heat)
	}
}

func TestWorkPayoutArrivesAtCompletion(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "worker")

	mustSubmit(t, w, a.ID, "work-1", ActWork, map[string]any{"job_id": "courier"})
	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash {
		t.Fatalf("wage paid early: balance %d", got)
	}

	for i := 0; i < 5; i++ {
		w.AdvanceTick()
	}
	if a.Status != StatusIdle {
		t.Fatalf("status = %q after shift, want idle", a.Status)
	}
	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash+60 {
		t.Fatalf("balance = %d, want wage 60 credited", got)
	}
	if got := w.Events.Query(EventFilter{Type: EvJobCompleted, AgentID: a.ID}); len(got) != 1 {
		t.Fatalf("job completed events = %d, want 1", len(got))
	}
}

func TestArrestInterruptsBusyAndForfeitsPayout(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) {
		tn.ArrestBaseProb = 0.6
		tn.ArrestHeatSlope = 0.004
		tn.HeatDecayIdle = 0
		tn.HeatDecayBusy = 0
	})
	a := mustRegister(t, w, "wanted")
	a.Heat = 100
	a.beginBusy(ActWork, 1_000_000)
	a.PendingPayout = 999
	a.PendingReason = "wage"

	arrested := false
	for i := 0; i < 400 && !arrested; i++ {
		w.AdvanceTick()
		arrested = a.Status == StatusJailed
	}
	if !arrested {
		t.Fatal("agent at heat 100 never arrested in 400 ticks")
	}
	if a.BusyAction != "" || a.PendingPayout != 0 {
		t.Fatalf("arrest left busy state: action=%q payout=%d", a.BusyAction, a.PendingPayout)
	}
	if a.Heat != 0 || a.Arrests != 1 {
		t.Fatalf("booking state wrong: heat=%d arrests=%d", a.Heat, a.Arrests)
	}
	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash {
		t.Fatalf("forfeited payout leaked: balance %d", got)
	}

	release := a.JailedUntilTick
	if release <= w.Tick() {
		t.Fatalf("jailed_until %d not in the future of tick %d", release, w.Tick())
	}
	for w.Tick() < release {
		w.AdvanceTick()
	}
	if a.Status != StatusIdle {
		t.Fatalf("status = %q after sentence, want idle", a.Status)
	}
	if got := w.Events.Query(EventFilter{Type: EvAgentReleased, AgentID: a.ID}); len(got) != 1 {
		t.Fatalf("release events = %d, want 1", len(got))
	}
}

func TestRestRestoresStats(t *testing.T) {
	w := newTestWorld(t)
	a := mustRegister(t, w, "tired")
	a.Stamina = 30
	a.Health = 60

	mustSubmit(t, w, a.ID, "rest-1", ActRest, nil)
	for i := 0; i < int(w.tuning.RestTicks); i++ {
		w.AdvanceTick()
	}
	if a.Status != StatusIdle {
		t.Fatalf("status = %q after rest, want idle", a.Status)
	}
	if a.Stamina != 70 || a.Health != 80 {
		t.Fatalf("stamina=%d health=%d after rest, want 70/80", a.Stamina, a.Health)
	}
}

func TestDisguiseExpires(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) { tn.DisguiseTicks = 3 })
	a := mustRegister(t, w, "masked")

	mustSubmit(t, w, a.ID, "mask-1", ActBuyDisguise, nil)
	if a.DisguiseUntilTick == 0 {
		t.Fatal("disguise not applied")
	}
	for i := 0; i < 4; i++ {
		w.AdvanceTick()
	}
	if a.DisguiseUntilTick != 0 {
		t.Fatalf("disguise still active at tick %d", w.Tick())
	}
	if got := w.Events.Query(EventFilter{Type: EvDisguiseExpired, AgentID: a.ID}); len(got) != 1 {
		t.Fatalf("expiry events = %d, want 1", len(got))
	}
}

func TestBountyExpiryRefundsHalf(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) { tn.BountyTTLTicks = 2 })
	a := mustRegister(t, w, "placer")
	b := mustRegister(t, w, "marked")

	mustSubmit(t, w, a.ID, "bounty-1", ActPlaceBounty, map[string]any{"target_agent_id": b.ID, "amount": 200})
	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash-200 {
		t.Fatalf("escrow not debited: %d", got)
	}

	for i := 0; i < 3; i++ {
		w.AdvanceTick()
	}
	if got := w.Ledger.Balance(a.ID); got != w.tuning.StartingCash-100 {
		t.Fatalf("balance = %d, want half refunded", got)
	}
	w.mu.RLock()
	open := len(w.bounties)
	w.mu.RUnlock()
	if open != 0 {
		t.Fatalf("bounties still open: %d", open)
	}
}

func TestPropertyIncomeAndUpkeep(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) {
		tn.StartingCash = 2000
		tn.UpkeepEveryTicks = 1
		tn.TerritoryEveryTicks = 0
		tn.SnapshotEveryTicks = 0
	})
	a := mustRegister(t, w, "landlord")

	mustSubmit(t, w, a.ID, "buy-flat", ActBuyProperty, map[string]any{"property_id": "flat_downtown"})
	w.AdvanceTick()
	// flat_downtown: income 20, upkeep 10
	if got := w.Ledger.Balance(a.ID); got != 2000-1500+20-10 {
		t.Fatalf("balance = %d, want 510", got)
	}
}

func TestMissedUpkeepCostsReputation(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) {
		tn.StartingCash = 1500
		tn.UpkeepEveryTicks = 1
		tn.Properties = []config.PropertyTuning{
			{ID: "flat_downtown", ZoneID: "downtown", Price: 1500, Income: 0, Upkeep: 100},
		}
	})
	a := mustRegister(t, w, "deadbeat")

	mustSubmit(t, w, a.ID, "buy-flat", ActBuyProperty, map[string]any{"property_id": "flat_downtown"})
	w.AdvanceTick()
	if a.Reputation != -w.tuning.UpkeepPenaltyRep {
		t.Fatalf("reputation = %d, want %d", a.Reputation, -w.tuning.UpkeepPenaltyRep)
	}
	if got := w.Events.Query(EventFilter{Type: EvUpkeepMissed, AgentID: a.ID}); len(got) != 1 {
		t.Fatalf("upkeep missed events = %d, want 1", len(got))
	}
	// The property is kept; upkeep never repossesses.
	if !a.Properties["flat_downtown"] {
		t.Fatal("property repossessed on missed upkeep")
	}
}

func TestTerritoryIncomeFlowsToTreasury(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) {
		tn.StartingCash = 10000
		tn.TerritoryEveryTicks = 1
		tn.UpkeepEveryTicks = 0
	})
	a := mustRegister(t, w, "boss")

	res := mustSubmit(t, w, a.ID, "create", ActCreateGang, map[string]any{"gang_name": "Dock Rats"})
	gangID := res.Payload.(GangPayload).GangID
	mustSubmit(t, w, a.ID, "fund", ActContribute, map[string]any{"gang_id": gangID, "amount": 3000})
	mustSubmit(t, w, a.ID, "claim", ActClaimTurf, map[string]any{"zone_id": "downtown"})

	treasury := w.Ledger.Balance("gang:" + gangID)
	w.AdvanceTick()
	if got := w.Ledger.Balance("gang:" + gangID); got != treasury+w.tuning.TerritoryIncome {
		t.Fatalf("treasury = %d, want %d", got, treasury+w.tuning.TerritoryIncome)
	}
}

func TestIdempotencyCacheExpiresByAge(t *testing.T) {
	w := newTestWorldTuned(t, func(tn *config.Tuning) { tn.IdempotencyMaxTicks = 2 })
	a := mustRegister(t, w, "forgetful")
	b := mustRegister(t, w, "friend")

	mustSubmit(t, w, a.ID, "gift-1", ActGift, map[string]any{"target_agent_id": b.ID, "amount": 10})
	for i := 0; i < 3; i++ {
		w.AdvanceTick()
	}
	// Past the retention window the same id executes fresh.
	res := mustSubmit(t, w, a.ID, "gift-1", ActGift, map[string]any{"target_agent_id": b.ID, "amount": 10})
	if res.Replayed {
		t.Fatal("expired request id still replayed")
	}
	if got := w.Ledger.Balance(b.ID); got != w.tuning.StartingCash+20 {
		t.Fatalf("friend balance = %d, want two gifts", got)
	}
}
