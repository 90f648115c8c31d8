package sim

import "time"

// Snapshot is a periodic full-state capture handed to the persister. On
// restart the store hydrates a world from the latest snapshot plus the
// ledger journal; the event log is history, not state, and is not replayed.
type Snapshot struct {
	Tick    uint64    `json:"tick"`
	Seed    int64     `json:"seed"`
	TakenAt time.Time `json:"taken_at"`

	Agents      []AgentRecord     `json:"agents"`
	Gangs       []GangRecord      `json:"gangs"`
	Friendships []Friendship      `json:"friendships"`
	Coops       []CoopRecord      `json:"coops"`
	Bounties    []Bounty          `json:"bounties"`
	Territories map[string]string `json:"territories"`
	PropOwners  map[string]string `json:"prop_owners"`
	Balances    map[string]int64  `json:"balances"`
	Markets     []MarketQuote     `json:"markets"`
}

// AgentRecord is the serializable form of an Agent. The idempotency cache
// is deliberately excluded: replays do not survive a restart.
type AgentRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"api_key_hash"`
	CreatedAt  time.Time `json:"created_at"`

	Status     Status `json:"status"`
	Health     int    `json:"health"`
	Stamina    int    `json:"stamina"`
	Heat       int    `json:"heat"`
	Reputation int    `json:"reputation"`
	ZoneID     string `json:"zone_id"`
	GangID     string `json:"gang_id,omitempty"`

	Inventory  map[string]int64 `json:"inventory,omitempty"`
	Properties []string         `json:"properties,omitempty"`

	BusyAction    string `json:"busy_action,omitempty"`
	BusyUntilTick uint64 `json:"busy_until_tick,omitempty"`
	PendingPayout int64  `json:"pending_payout,omitempty"`
	PendingReason string `json:"pending_reason,omitempty"`
	PendingEvent  string `json:"pending_event,omitempty"`
	PendingZone   string `json:"pending_zone,omitempty"`
	PendingHeat   int    `json:"pending_heat,omitempty"`

	JailedUntilTick   uint64 `json:"jailed_until_tick,omitempty"`
	GangBanUntilTick  uint64 `json:"gang_ban_until_tick,omitempty"`
	DisguiseUntilTick uint64 `json:"disguise_until_tick,omitempty"`

	LifetimeEarnings int64 `json:"lifetime_earnings"`
	CrimesCommitted  int64 `json:"crimes_committed"`
	Arrests          int64 `json:"arrests"`
	FriendCount      int64 `json:"friend_count"`
	Betrayals        int64 `json:"betrayals"`
	GiftsSent        int64 `json:"gifts_sent"`
}

type GangRecord struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	LeaderID    string              `json:"leader_id"`
	Members     map[string]GangRole `json:"members"`
	Territories []string            `json:"territories,omitempty"`
	Disbanded   bool                `json:"disbanded,omitempty"`
	CreatedTick uint64              `json:"created_tick"`
}

type CoopRecord struct {
	ID           string     `json:"id"`
	CrimeType    string     `json:"crime_type"`
	InitiatorID  string     `json:"initiator_id"`
	Required     int        `json:"required"`
	Participants []string   `json:"participants"`
	Status       CoopStatus `json:"status"`
	DeadlineTick uint64     `json:"deadline_tick"`
	Stake        int64      `json:"stake"`
	CreatedTick  uint64     `json:"created_tick"`
}

// TakeSnapshot captures the full world state. Called from the tick loop, so
// agent locks are uncontended in practice but still taken.
func (w *World) TakeSnapshot() Snapshot {
	snap := Snapshot{
		Tick:        w.Tick(),
		Seed:        w.seed,
		TakenAt:     time.Now().UTC(),
		Territories: make(map[string]string),
		PropOwners:  make(map[string]string),
		Balances:    make(map[string]int64),
	}

	w.mu.RLock()
	agents := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		agents = append(agents, a)
	}
	gangs := make([]*Gang, 0, len(w.gangs))
	for _, g := range w.gangs {
		gangs = append(gangs, g)
	}
	coops := make([]*Coop, 0, len(w.coops))
	for _, c := range w.coops {
		coops = append(coops, c)
	}
	for _, b := range w.bounties {
		snap.Bounties = append(snap.Bounties, *b)
	}
	for z, g := range w.territories {
		snap.Territories[z] = g
	}
	for p, owner := range w.propOwners {
		snap.PropOwners[p] = owner
	}
	w.mu.RUnlock()

	for _, a := range agents {
		a.mu.Lock()
		snap.Agents = append(snap.Agents, agentRecordLocked(a))
		a.mu.Unlock()
	}
	for _, g := range gangs {
		g.mu.Lock()
		rec := GangRecord{
			ID:          g.ID,
			Name:        g.Name,
			LeaderID:    g.LeaderID,
			Members:     make(map[string]GangRole, len(g.Members)),
			Disbanded:   g.Disbanded,
			CreatedTick: g.CreatedTick,
		}
		for id, role := range g.Members {
			rec.Members[id] = role
		}
		for z := range g.Territories {
			rec.Territories = append(rec.Territories, z)
		}
		g.mu.Unlock()
		snap.Gangs = append(snap.Gangs, rec)
	}
	for _, c := range coops {
		c.mu.Lock()
		snap.Coops = append(snap.Coops, CoopRecord{
			ID:           c.ID,
			CrimeType:    c.CrimeType,
			InitiatorID:  c.InitiatorID,
			Required:     c.Required,
			Participants: append([]string(nil), c.Participants...),
			Status:       c.Status,
			DeadlineTick: c.DeadlineTick,
			Stake:        c.Stake,
			CreatedTick:  c.CreatedTick,
		})
		c.mu.Unlock()
	}

	w.friendsMu.Lock()
	for _, f := range w.friends {
		snap.Friendships = append(snap.Friendships, *f)
	}
	w.friendsMu.Unlock()

	for acct, bal := range w.Ledger.Accounts() {
		snap.Balances[acct] = bal
	}
	for _, m := range w.markets {
		snap.Markets = append(snap.Markets, m.snapshot())
	}
	return snap
}

func agentRecordLocked(a *Agent) AgentRecord {
	inv := make(map[string]int64, len(a.Inventory))
	for k, v := range a.Inventory {
		if v != 0 {
			inv[k] = v
		}
	}
	props := make([]string, 0, len(a.Properties))
	for id := range a.Properties {
		props = append(props, id)
	}
	return AgentRecord{
		ID:                a.ID,
		Name:              a.Name,
		APIKeyHash:        a.APIKeyHash,
		CreatedAt:         a.CreatedAt,
		Status:            a.Status,
		Health:            a.Health,
		Stamina:           a.Stamina,
		Heat:              a.Heat,
		Reputation:        a.Reputation,
		ZoneID:            a.ZoneID,
		GangID:            a.GangID,
		Inventory:         inv,
		Properties:        props,
		BusyAction:        a.BusyAction,
		BusyUntilTick:     a.BusyUntilTick,
		PendingPayout:     a.PendingPayout,
		PendingReason:     a.PendingReason,
		PendingEvent:      a.PendingEvent,
		PendingZone:       a.PendingZone,
		PendingHeat:       a.PendingHeat,
		JailedUntilTick:   a.JailedUntilTick,
		GangBanUntilTick:  a.GangBanUntilTick,
		DisguiseUntilTick: a.DisguiseUntilTick,
		LifetimeEarnings:  a.LifetimeEarnings,
		CrimesCommitted:   a.CrimesCommitted,
		Arrests:           a.Arrests,
		FriendCount:       a.FriendCount,
		Betrayals:         a.Betrayals,
		GiftsSent:         a.GiftsSent,
	}
}

// RestoreSnapshot hydrates an empty world from a snapshot. Markets rebuilt
// from tuning keep their tuned base price; only pressure and price carry
// over. Ledger balances are seeded without journaling.
func (w *World) RestoreSnapshot(snap Snapshot) {
	w.tick.Store(snap.Tick)

	w.mu.Lock()
	for i := range snap.Agents {
		rec := snap.Agents[i]
		a := &Agent{
			ID:                rec.ID,
			Name:              rec.Name,
			APIKeyHash:        rec.APIKeyHash,
			CreatedAt:         rec.CreatedAt,
			Status:            rec.Status,
			Health:            rec.Health,
			Stamina:           rec.Stamina,
			Heat:              rec.Heat,
			Reputation:        rec.Reputation,
			ZoneID:            rec.ZoneID,
			GangID:            rec.GangID,
			Inventory:         make(map[string]int64, len(rec.Inventory)),
			Properties:        make(map[string]bool, len(rec.Properties)),
			BusyAction:        rec.BusyAction,
			BusyUntilTick:     rec.BusyUntilTick,
			PendingPayout:     rec.PendingPayout,
			PendingReason:     rec.PendingReason,
			PendingEvent:      rec.PendingEvent,
			PendingZone:       rec.PendingZone,
			PendingHeat:       rec.PendingHeat,
			JailedUntilTick:   rec.JailedUntilTick,
			GangBanUntilTick:  rec.GangBanUntilTick,
			DisguiseUntilTick: rec.DisguiseUntilTick,
			LifetimeEarnings:  rec.LifetimeEarnings,
			CrimesCommitted:   rec.CrimesCommitted,
			Arrests:           rec.Arrests,
			FriendCount:       rec.FriendCount,
			Betrayals:         rec.Betrayals,
			GiftsSent:         rec.GiftsSent,
		}
		for k, v := range rec.Inventory {
			a.Inventory[k] = v
		}
		for _, p := range rec.Properties {
			a.Properties[p] = true
		}
		w.agents[a.ID] = a
		w.agentsByKey[a.APIKeyHash] = a.ID
		w.agentsByName[a.Name] = a.ID
	}
	for i := range snap.Gangs {
		rec := snap.Gangs[i]
		g := &Gang{
			ID:          rec.ID,
			Name:        rec.Name,
			LeaderID:    rec.LeaderID,
			Members:     make(map[string]GangRole, len(rec.Members)),
			Territories: make(map[string]bool, len(rec.Territories)),
			Disbanded:   rec.Disbanded,
			CreatedTick: rec.CreatedTick,
		}
		for id, role := range rec.Members {
			g.Members[id] = role
		}
		for _, z := range rec.Territories {
			g.Territories[z] = true
		}
		w.gangs[g.ID] = g
	}
	for i := range snap.Coops {
		rec := snap.Coops[i]
		w.coops[rec.ID] = &Coop{
			ID:           rec.ID,
			CrimeType:    rec.CrimeType,
			InitiatorID:  rec.InitiatorID,
			Required:     rec.Required,
			Participants: append([]string(nil), rec.Participants...),
			Status:       rec.Status,
			DeadlineTick: rec.DeadlineTick,
			Stake:        rec.Stake,
			CreatedTick:  rec.CreatedTick,
		}
	}
	for i := range snap.Bounties {
		b := snap.Bounties[i]
		w.bounties[b.ID] = &b
	}
	for z, g := range snap.Territories {
		w.territories[z] = g
	}
	for p, owner := range snap.PropOwners {
		w.propOwners[p] = owner
	}
	w.mu.Unlock()

	w.friendsMu.Lock()
	for i := range snap.Friendships {
		f := snap.Friendships[i]
		w.friends[friendKey(f.AgentA, f.AgentB)] = &f
	}
	w.friendsMu.Unlock()

	for acct, bal := range snap.Balances {
		w.Ledger.Restore(acct, bal)
	}
	for _, mq := range snap.Markets {
		if m := w.markets[marketKey(mq.ZoneID, mq.ItemID)]; m != nil {
			m.mu.Lock()
			m.Price = mq.Price
			m.Supply = mq.Supply
			m.Demand = mq.Demand
			m.mu.Unlock()
		}
	}
}
