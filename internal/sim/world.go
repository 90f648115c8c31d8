// Package sim is the simulation core: the world state, the per-agent state
// machine, the action resolver, and the tick processor. All mutation goes
// through per-entity locks; the ledger and event log are the only shared
// sinks and are acquired last.
package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"undercity/internal/config"
	"undercity/internal/ledger"
)

// Persister receives write-through copies of everything worth keeping
// across restarts. Implementations must be safe for concurrent use and must
// never block the simulation on failure; errors are logged, not surfaced.
type Persister interface {
	SaveEvent(Event)
	SaveLedgerEntry(ledger.Entry)
	SaveActionRequest(ActionRecord)
	SaveSnapshot(Snapshot)
}

// ActionRecord is the audit row for every resolved submission.
type ActionRecord struct {
	AgentID    string
	RequestID  string
	Action     string
	Tick       uint64
	Accepted   bool
	ErrorCode  string
	Reflection string
	Mood       string
	CreatedAt  time.Time
}

type World struct {
	tuning config.Tuning
	seed   int64

	tick atomic.Uint64

	mu           sync.RWMutex
	agents       map[string]*Agent
	agentsByKey  map[string]string // api key hash -> agent id
	agentsByName map[string]string
	gangs        map[string]*Gang
	territories  map[string]string // zone id -> gang id
	coops        map[string]*Coop
	bounties     map[string]*Bounty
	propOwners   map[string]string // property id -> agent id

	zones   map[string]*Zone
	markets map[string]*Market
	jobs    map[string]config.JobTuning
	crimes  map[string]config.CrimeTuning
	props   map[string]config.PropertyTuning

	friendsMu sync.Mutex
	friends   map[string]*Friendship

	Ledger  *ledger.Ledger
	Events  *EventLog
	persist Persister
}

func NewWorld(tuning config.Tuning, seed int64, persist Persister) *World {
	w := &World{
		tuning:       tuning,
		seed:         seed,
		agents:       make(map[string]*Agent),
		agentsByKey:  make(map[string]string),
		agentsByName: make(map[string]string),
		gangs:        make(map[string]*Gang),
		territories:  make(map[string]string),
		coops:        make(map[string]*Coop),
		bounties:     make(map[string]*Bounty),
		propOwners:   make(map[string]string),
		zones:        make(map[string]*Zone),
		markets:      make(map[string]*Market),
		jobs:         make(map[string]config.JobTuning),
		crimes:       make(map[string]config.CrimeTuning),
		props:        make(map[string]config.PropertyTuning),
		friends:      make(map[string]*Friendship),
		persist:      persist,
	}
	w.Ledger = ledger.New(NewID, func(e ledger.Entry) {
		if persist != nil {
			persist.SaveLedgerEntry(e)
		}
	})
	w.Events = NewEventLog(0, func(ev Event) {
		if persist != nil {
			persist.SaveEvent(ev)
		}
	})

	for _, z := range tuning.Zones {
		w.zones[z.ID] = &Zone{ID: z.ID, Name: z.Name}
	}
	for _, e := range tuning.Edges {
		if z := w.zones[e.From]; z != nil {
			z.Edges = append(z.Edges, ZoneEdge{
				ToZoneID:      e.To,
				TimeCostTicks: e.TimeCostTicks,
				CashCost:      e.CashCost,
				HeatRisk:      e.HeatRisk,
			})
		}
	}
	for _, z := range tuning.Zones {
		for _, it := range tuning.Items {
			w.markets[marketKey(z.ID, it.ID)] = &Market{
				ZoneID:    z.ID,
				ItemID:    it.ID,
				BasePrice: it.BasePrice,
				Price:     it.BasePrice,
			}
		}
	}
	for _, j := range tuning.Jobs {
		w.jobs[j.ID] = j
	}
	for _, c := range tuning.Crimes {
		w.crimes[c.Type] = c
	}
	for _, p := range tuning.Properties {
		w.props[p.ID] = p
	}
	return w
}

func (w *World) Tick() uint64 { return w.tick.Load() }

func (w *World) Tuning() config.Tuning { return w.tuning }

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// RegisterAgent creates an agent at the starting zone with starting cash,
// journals the grant, and returns the bearer key exactly once.
func (w *World) RegisterAgent(name string) (*AgentSummary, string, error) {
	if name == "" || len(name) > 64 {
		return nil, "", validationErr("invalid_name")
	}
	apiKey := "uc_" + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" + NewID()
	hash := HashAPIKey(apiKey)
	tick := w.Tick()

	a := &Agent{
		ID:         NewID(),
		Name:       name,
		APIKeyHash: hash,
		CreatedAt:  time.Now().UTC(),
		Status:     StatusIdle,
		Health:     100,
		Stamina:    100,
		ZoneID:     w.tuning.StartingZone,
		Inventory:  make(map[string]int64),
		Properties: make(map[string]bool),
	}

	w.mu.Lock()
	if _, taken := w.agentsByName[name]; taken {
		w.mu.Unlock()
		return nil, "", conflictErr("name_taken")
	}
	w.agents[a.ID] = a
	w.agentsByKey[hash] = a.ID
	w.agentsByName[name] = a.ID
	w.mu.Unlock()

	if _, err := w.Ledger.Credit(tick, a.ID, w.tuning.StartingCash, "starting_cash", ""); err != nil {
		return nil, "", internalErr("ledger_seed_failed")
	}
	w.Events.Append(Event{
		Tick:    tick,
		Type:    EvAgentRegistered,
		AgentID: a.ID,
		ZoneID:  a.ZoneID,
		Payload: CashPayload{Amount: w.tuning.StartingCash, Balance: w.tuning.StartingCash, Reason: "starting_cash"},
	})

	a.mu.Lock()
	summary := w.summaryLocked(a)
	a.mu.Unlock()
	return &summary, apiKey, nil
}

// AgentByAPIKey resolves a bearer key to an agent, for the auth middleware.
func (w *World) AgentByAPIKey(apiKey string) (*Agent, bool) {
	hash := HashAPIKey(apiKey)
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.agentsByKey[hash]
	if !ok {
		return nil, false
	}
	return w.agents[id], true
}

func (w *World) agent(id string) *Agent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.agents[id]
}

// lockPair locks two agents in sorted ID order, the repo-wide rule that
// keeps pairwise actions deadlock-free.
func lockPair(a, b *Agent) func() {
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if second.ID < first.ID {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

// sortedAgentIDs snapshots the registry for deterministic tick iteration.
func (w *World) sortedAgentIDs() []string {
	w.mu.RLock()
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	w.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// StateView is the response of GET /agent/state: the agent snapshot plus
// nearby opportunities (travel edges, local market, jobs, open coops).
type StateView struct {
	Tick      uint64        `json:"tick"`
	Agent     AgentSummary  `json:"agent"`
	ZoneName  string        `json:"zone_name"`
	Edges     []EdgeView    `json:"edges"`
	Market    []MarketQuote `json:"market"`
	Jobs      []JobView     `json:"jobs"`
	OpenCoops []CoopSummary `json:"open_coops"`
	Gang      *GangSummary  `json:"gang,omitempty"`
}

type EdgeView struct {
	ToZoneID      string `json:"to_zone_id"`
	TimeCostTicks uint64 `json:"time_cost_ticks"`
	CashCost      int64  `json:"cash_cost"`
	HeatRisk      int    `json:"heat_risk"`
}

type JobView struct {
	JobID         string `json:"job_id"`
	Wage          int64  `json:"wage"`
	DurationTicks uint64 `json:"duration_ticks"`
	StaminaCost   int    `json:"stamina_cost"`
}

func (w *World) AgentState(agentID string) (*StateView, error) {
	a := w.agent(agentID)
	if a == nil {
		return nil, validationErr("agent_not_found")
	}
	a.mu.Lock()
	summary := w.summaryLocked(a)
	gangID := a.GangID
	a.mu.Unlock()

	view := &StateView{Tick: w.Tick(), Agent: summary}
	if z := w.zones[summary.ZoneID]; z != nil {
		view.ZoneName = z.Name
		for _, e := range z.Edges {
			view.Edges = append(view.Edges, EdgeView{
				ToZoneID:      e.ToZoneID,
				TimeCostTicks: e.TimeCostTicks,
				CashCost:      e.CashCost,
				HeatRisk:      e.HeatRisk,
			})
		}
	}
	view.Market = w.MarketQuotes(summary.ZoneID)
	for _, j := range w.tuning.Jobs {
		if j.ZoneID == summary.ZoneID {
			view.Jobs = append(view.Jobs, JobView{
				JobID:         j.ID,
				Wage:          j.Wage,
				DurationTicks: j.DurationTicks,
				StaminaCost:   j.StaminaCost,
			})
		}
	}
	w.mu.RLock()
	for _, c := range w.coops {
		if s := c.summary(); s.Status == CoopRecruiting {
			view.OpenCoops = append(view.OpenCoops, s)
		}
	}
	g := w.gangs[gangID]
	w.mu.RUnlock()
	if g != nil {
		gs := w.gangSummary(g)
		view.Gang = &gs
	}
	return view, nil
}

func (w *World) MarketQuotes(zoneID string) []MarketQuote {
	out := []MarketQuote{}
	for _, it := range w.tuning.Items {
		if m := w.markets[marketKey(zoneID, it.ID)]; m != nil {
			out = append(out, m.snapshot())
		}
	}
	return out
}

// ZoneView is the public topology read-model.
type ZoneView struct {
	ZoneID       string     `json:"zone_id"`
	Name         string     `json:"name"`
	Edges        []EdgeView `json:"edges"`
	ControlledBy string     `json:"controlled_by,omitempty"`
}

func (w *World) Zones() []ZoneView {
	w.mu.RLock()
	territories := make(map[string]string, len(w.territories))
	for z, g := range w.territories {
		territories[z] = g
	}
	w.mu.RUnlock()

	out := []ZoneView{}
	for _, zt := range w.tuning.Zones {
		z := w.zones[zt.ID]
		if z == nil {
			continue
		}
		zv := ZoneView{ZoneID: z.ID, Name: z.Name, ControlledBy: territories[z.ID]}
		for _, e := range z.Edges {
			zv.Edges = append(zv.Edges, EdgeView{
				ToZoneID:      e.ToZoneID,
				TimeCostTicks: e.TimeCostTicks,
				CashCost:      e.CashCost,
				HeatRisk:      e.HeatRisk,
			})
		}
		out = append(out, zv)
	}
	return out
}

// LeaderboardRow ranks agents by cash plus lifetime earnings.
type LeaderboardRow struct {
	AgentID          string `json:"agent_id"`
	Name             string `json:"name"`
	Cash             int64  `json:"cash"`
	LifetimeEarnings int64  `json:"lifetime_earnings"`
	Reputation       int    `json:"reputation"`
}

func (w *World) Leaderboard(limit int) []LeaderboardRow {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	w.mu.RLock()
	agents := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		agents = append(agents, a)
	}
	w.mu.RUnlock()

	rows := make([]LeaderboardRow, 0, len(agents))
	for _, a := range agents {
		a.mu.Lock()
		rows = append(rows, LeaderboardRow{
			AgentID:          a.ID,
			Name:             a.Name,
			Cash:             w.Ledger.Balance(a.ID),
			LifetimeEarnings: a.LifetimeEarnings,
			Reputation:       a.Reputation,
		})
		a.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Cash != rows[j].Cash {
			return rows[i].Cash > rows[j].Cash
		}
		return rows[i].LifetimeEarnings > rows[j].LifetimeEarnings
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Info is the public world header.
type Info struct {
	Tick       uint64 `json:"tick"`
	Seed       int64  `json:"seed"`
	AgentCount int    `json:"agent_count"`
	GangCount  int    `json:"gang_count"`
}

func (w *World) Info() Info {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Info{
		Tick:       w.Tick(),
		Seed:       w.seed,
		AgentCount: len(w.agents),
		GangCount:  len(w.gangs),
	}
}

// BanAgent is the admin moderation path. It goes through the same state
// machine as everything else: busy state is cleared, the event is journaled.
func (w *World) BanAgent(agentID, reason string) error {
	a := w.agent(agentID)
	if a == nil {
		return validationErr("agent_not_found")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Status == StatusBanned {
		return invalidStateErr("already_banned")
	}
	a.Status = StatusBanned
	a.clearBusy()
	w.Events.Append(Event{
		Tick:    w.Tick(),
		Type:    EvAgentBanned,
		AgentID: a.ID,
		Payload: ErrorPayload{Stage: "moderation", Detail: reason},
	})
	return nil
}

func (w *World) UnbanAgent(agentID string) error {
	a := w.agent(agentID)
	if a == nil {
		return validationErr("agent_not_found")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Status != StatusBanned {
		return invalidStateErr("not_banned")
	}
	a.Status = StatusIdle
	w.Events.Append(Event{Tick: w.Tick(), Type: EvAgentUnbanned, AgentID: a.ID})
	return nil
}

// DisbandGang pays the treasury out to members in equal shares through the
// ledger, then marks the gang disbanded and frees its territories.
func (w *World) DisbandGang(gangID string) error {
	w.mu.Lock()
	g := w.gangs[gangID]
	w.mu.Unlock()
	if g == nil {
		return validationErr("gang_not_found")
	}
	tick := w.Tick()

	g.mu.Lock()
	if g.Disbanded {
		g.mu.Unlock()
		return invalidStateErr("already_disbanded")
	}
	members := make([]string, 0, len(g.Members))
	for id := range g.Members {
		members = append(members, id)
	}
	sort.Strings(members)
	g.Disbanded = true
	g.Members = make(map[string]GangRole)
	territories := g.Territories
	g.Territories = make(map[string]bool)
	g.mu.Unlock()

	treasury := w.Ledger.Balance(g.treasuryAccount())
	if treasury > 0 && len(members) > 0 {
		share := treasury / int64(len(members))
		for _, id := range members {
			if share <= 0 {
				break
			}
			if err := w.Ledger.Transfer(tick, g.treasuryAccount(), id, share, "gang_disband_share", ""); err != nil {
				log.Error().Err(err).Str("gang_id", g.ID).Msg("disband payout failed")
				break
			}
		}
	}
	w.mu.Lock()
	for z := range territories {
		if w.territories[z] == g.ID {
			delete(w.territories, z)
		}
	}
	memberAgents := make([]*Agent, 0, len(members))
	for _, id := range members {
		if a := w.agents[id]; a != nil {
			memberAgents = append(memberAgents, a)
		}
	}
	w.mu.Unlock()

	// Agent locks come before w.mu everywhere else, so take them only after
	// releasing it.
	for _, a := range memberAgents {
		a.mu.Lock()
		if a.GangID == g.ID {
			a.GangID = ""
		}
		a.mu.Unlock()
	}

	w.Events.Append(Event{
		Tick:     tick,
		Type:     EvGangDisbanded,
		EntityID: g.ID,
		Payload:  GangPayload{GangID: g.ID, Name: g.Name, Treasury: treasury},
	})
	return nil
}

func (w *World) ReinstateGang(gangID string) error {
	w.mu.Lock()
	g := w.gangs[gangID]
	w.mu.Unlock()
	if g == nil {
		return validationErr("gang_not_found")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.Disbanded {
		return invalidStateErr("not_disbanded")
	}
	g.Disbanded = false
	w.Events.Append(Event{
		Tick:     w.Tick(),
		Type:     EvGangReinstated,
		EntityID: g.ID,
		Payload:  GangPayload{GangID: g.ID, Name: g.Name},
	})
	return nil
}

func (w *World) recordAction(rec ActionRecord) {
	if w.persist != nil {
		w.persist.SaveActionRequest(rec)
	}
}
