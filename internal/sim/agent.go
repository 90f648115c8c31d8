package sim

import (
	"sync"
	"time"
)

type Status string

const (
	StatusIdle         Status = "idle"
	StatusBusy         Status = "busy"
	StatusJailed       Status = "jailed"
	StatusHospitalized Status = "hospitalized"
	StatusBanned       Status = "banned"
)

// Agent is the mutable per-agent record. Every field below mu is guarded by
// it; cash is deliberately absent — balances live in the ledger only.
type Agent struct {
	mu sync.Mutex

	ID         string
	Name       string
	APIKeyHash string
	CreatedAt  time.Time

	Status     Status
	Health     int
	Stamina    int
	Heat       int
	Reputation int

	ZoneID string
	GangID string

	Inventory  map[string]int64
	Properties map[string]bool

	// Busy bookkeeping. A busy action may carry a deferred payout and a
	// destination zone, both applied by the tick processor at completion.
	BusyAction    string
	BusyUntilTick uint64
	PendingPayout int64
	PendingReason string
	PendingEvent  string
	PendingZone   string
	PendingHeat   int

	JailedUntilTick   uint64
	GangBanUntilTick  uint64
	DisguiseUntilTick uint64

	LifetimeEarnings int64
	CrimesCommitted  int64
	Arrests          int64
	FriendCount      int64
	Betrayals        int64
	GiftsSent        int64

	// Idempotency cache: requestID -> stored result, bounded by count and
	// age (tuning); maintenance runs at tick boundaries.
	results     map[string]*storedResult
	resultOrder []string
}

type storedResult struct {
	res  *ActionResult
	tick uint64
}

func (a *Agent) clampStats() {
	if a.Health < 0 {
		a.Health = 0
	}
	if a.Health > 100 {
		a.Health = 100
	}
	if a.Stamina < 0 {
		a.Stamina = 0
	}
	if a.Stamina > 100 {
		a.Stamina = 100
	}
	if a.Heat < 0 {
		a.Heat = 0
	}
	if a.Heat > 100 {
		a.Heat = 100
	}
}

// beginBusy moves an idle agent into busy with a completion tick. Deferred
// effects are carried on the Pending* fields.
func (a *Agent) beginBusy(action string, until uint64) {
	a.Status = StatusBusy
	a.BusyAction = action
	a.BusyUntilTick = until
}

// clearBusy drops busy state and any deferred effects. Used on arrest and
// hospitalization: an interrupted action forfeits its payout.
func (a *Agent) clearBusy() {
	a.BusyAction = ""
	a.BusyUntilTick = 0
	a.PendingPayout = 0
	a.PendingReason = ""
	a.PendingEvent = ""
	a.PendingZone = ""
	a.PendingHeat = 0
}

func (a *Agent) storeResult(requestID string, res *ActionResult, tick uint64, maxEntries int) {
	if a.results == nil {
		a.results = make(map[string]*storedResult)
	}
	if _, ok := a.results[requestID]; ok {
		return
	}
	a.results[requestID] = &storedResult{res: res, tick: tick}
	a.resultOrder = append(a.resultOrder, requestID)
	for maxEntries > 0 && len(a.resultOrder) > maxEntries {
		evict := a.resultOrder[0]
		a.resultOrder = a.resultOrder[1:]
		delete(a.results, evict)
	}
}

func (a *Agent) replayResult(requestID string) (*ActionResult, bool) {
	sr, ok := a.results[requestID]
	if !ok {
		return nil, false
	}
	return sr.res, true
}

// evictStaleResults drops cached results older than maxTicks. Called under
// the agent lock by tick maintenance.
func (a *Agent) evictStaleResults(nowTick, maxTicks uint64) {
	if maxTicks == 0 || len(a.resultOrder) == 0 {
		return
	}
	keep := a.resultOrder[:0]
	for _, id := range a.resultOrder {
		sr := a.results[id]
		if sr != nil && sr.tick+maxTicks >= nowTick {
			keep = append(keep, id)
			continue
		}
		delete(a.results, id)
	}
	a.resultOrder = keep
}

// AgentSummary is the caller-facing snapshot returned with every action
// result and from the state endpoint.
type AgentSummary struct {
	AgentID          string `json:"agent_id"`
	Name             string `json:"name"`
	Status           Status `json:"status"`
	Cash             int64  `json:"cash"`
	Health           int    `json:"health"`
	Stamina          int    `json:"stamina"`
	Heat             int    `json:"heat"`
	Reputation       int    `json:"reputation"`
	ZoneID           string `json:"zone_id"`
	GangID           string `json:"gang_id,omitempty"`
	BusyAction       string `json:"busy_action,omitempty"`
	BusyUntilTick    uint64 `json:"busy_until_tick,omitempty"`
	JailedUntilTick  uint64 `json:"jailed_until_tick,omitempty"`
	GangBanUntilTick uint64 `json:"gang_ban_until_tick,omitempty"`

	Inventory  map[string]int64 `json:"inventory,omitempty"`
	Properties []string         `json:"properties,omitempty"`

	LifetimeEarnings int64 `json:"lifetime_earnings"`
	CrimesCommitted  int64 `json:"crimes_committed"`
	Arrests          int64 `json:"arrests"`
	Betrayals        int64 `json:"betrayals"`
}

// summaryLocked builds a summary; callers hold a.mu.
func (w *World) summaryLocked(a *Agent) AgentSummary {
	inv := make(map[string]int64, len(a.Inventory))
	for k, v := range a.Inventory {
		if v > 0 {
			inv[k] = v
		}
	}
	props := make([]string, 0, len(a.Properties))
	for id := range a.Properties {
		props = append(props, id)
	}
	return AgentSummary{
		AgentID:          a.ID,
		Name:             a.Name,
		Status:           a.Status,
		Cash:             w.Ledger.Balance(a.ID),
		Health:           a.Health,
		Stamina:          a.Stamina,
		Heat:             a.Heat,
		Reputation:       a.Reputation,
		ZoneID:           a.ZoneID,
		GangID:           a.GangID,
		BusyAction:       a.BusyAction,
		BusyUntilTick:    a.BusyUntilTick,
		JailedUntilTick:  a.JailedUntilTick,
		GangBanUntilTick: a.GangBanUntilTick,
		Inventory:        inv,
		Properties:       props,
		LifetimeEarnings: a.LifetimeEarnings,
		CrimesCommitted:  a.CrimesCommitted,
		Arrests:          a.Arrests,
		Betrayals:        a.Betrayals,
	}
}
