package store_test

import (
	"context"
	"testing"
	"time"

	"undercity/internal/ledger"
	"undercity/internal/sim"
	"undercity/internal/store"
	"undercity/internal/testutil"
)

func TestPersisterWriteThrough(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	p := store.NewPersister(st)

	ev := sim.Event{
		ID: sim.NewID(), Seq: 1, Tick: 4, Timestamp: time.Now().UTC(),
		Type: sim.EvMarketBuy, AgentID: "agent-1", ZoneID: "downtown",
		RequestID: "req-1",
		Payload:   sim.TradePayload{ItemID: "meds", Qty: 2, UnitCost: 40, Total: 80, NewPrice: 41},
	}
	p.SaveEvent(ev)

	entry := ledger.Entry{
		ID: sim.NewID(), Tick: 4, AccountID: "agent-1", Type: ledger.Debit,
		Amount: 80, Reason: "market_buy", ResultingBalance: 420,
		CreatedAt: time.Now().UTC(),
	}
	p.SaveLedgerEntry(entry)

	p.SaveActionRequest(sim.ActionRecord{
		AgentID: "agent-1", RequestID: "req-1", Action: sim.ActBuy,
		Tick: 4, Accepted: true, Reflection: "stocking up before the docks run",
		CreatedAt: time.Now().UTC(),
	})
	p.Close()

	ctx := context.Background()
	events, err := st.ListEvents(ctx, "agent-1", 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != sim.EvMarketBuy {
		t.Fatalf("events = %+v, want one MARKET_BUY", events)
	}

	entries, err := st.ListLedgerEntries(ctx, "agent-1", 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].ResultingBalance != 420 {
		t.Fatalf("ledger rows = %+v, want one with balance 420", entries)
	}

	actions, err := st.ListActionRequests(ctx, "agent-1", 10)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 1 || !actions[0].Accepted {
		t.Fatalf("action rows = %+v, want one accepted", actions)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	if _, err := st.LatestSnapshot(context.Background()); err == nil {
		t.Fatal("fresh database returned a snapshot")
	}

	p := store.NewPersister(st)
	p.SaveSnapshot(sim.Snapshot{
		Tick: 10, Seed: 42, TakenAt: time.Now().UTC(),
		Balances:    map[string]int64{"agent-1": 500},
		Territories: map[string]string{"docks": "gang-1"},
	})
	p.SaveSnapshot(sim.Snapshot{
		Tick: 20, Seed: 42, TakenAt: time.Now().UTC(),
		Balances: map[string]int64{"agent-1": 760},
	})
	p.Close()

	snap, err := st.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.Tick != 20 || snap.Balances["agent-1"] != 760 {
		t.Fatalf("snapshot = %+v, want tick 20 with balance 760", snap)
	}
}

func TestIdempotentEventInsert(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	ev := sim.Event{
		ID: sim.NewID(), Seq: 1, Tick: 1, Timestamp: time.Now().UTC(),
		Type: sim.EvAgentRegistered, AgentID: "agent-1",
	}
	p := store.NewPersister(st)
	p.SaveEvent(ev)
	p.SaveEvent(ev)
	p.Close()

	events, err := st.ListEvents(context.Background(), "agent-1", 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want duplicate id collapsed to 1", len(events))
	}
}
