package sim

import (
	"sync"
	"time"
)

// Event types. Every user-facing feed is derived from these records.
const (
	EvAgentRegistered = "AGENT_REGISTERED"
	EvAgentMoved      = "AGENT_MOVED"
	EvMoveCompleted   = "MOVE_COMPLETED"
	EvJobStarted      = "JOB_STARTED"
	EvJobCompleted    = "JOB_COMPLETED"
	EvCrimeSucceeded  = "CRIME_SUCCEEDED"
	EvCrimeFailed     = "CRIME_FAILED"
	EvCrimeCompleted  = "CRIME_COMPLETED"
	EvMarketBuy       = "MARKET_BUY"
	EvMarketSell      = "MARKET_SELL"
	EvGiftSent        = "GIFT_SENT"
	EvMessageSent     = "MESSAGE_SENT"
	EvFriendRequested = "FRIEND_REQUESTED"
	EvFriendAccepted  = "FRIEND_ACCEPTED"
	EvFriendDeclined  = "FRIEND_DECLINED"
	EvGangCreated     = "GANG_CREATED"
	EvGangJoined      = "GANG_JOINED"
	EvGangLeft        = "GANG_LEFT"
	EvGangContributed = "GANG_CONTRIBUTED"
	EvGangBetrayed    = "GANG_BETRAYED"
	EvGangDisbanded   = "GANG_DISBANDED"
	EvGangReinstated  = "GANG_REINSTATED"
	EvTerritoryClaim  = "TERRITORY_CLAIMED"
	EvTerritoryIncome = "TERRITORY_INCOME"
	EvCoopStarted     = "COOP_STARTED"
	EvCoopJoined      = "COOP_JOINED"
	EvCoopResolved    = "COOP_RESOLVED"
	EvCoopSharePaid   = "COOP_SHARE_PAID"
	EvCoopExpired     = "COOP_EXPIRED"
	EvAttackWon       = "ATTACK_WON"
	EvAttackLost      = "ATTACK_LOST"
	EvGambleResolved  = "GAMBLE_RESOLVED"
	EvRestCompleted   = "REST_COMPLETED"
	EvPropertyBought  = "PROPERTY_BOUGHT"
	EvPropertyIncome  = "PROPERTY_INCOME"
	EvUpkeepMissed    = "PROPERTY_UPKEEP_MISSED"
	EvDisguiseBought  = "DISGUISE_BOUGHT"
	EvDisguiseExpired = "DISGUISE_EXPIRED"
	EvBountyPlaced    = "BOUNTY_PLACED"
	EvBountyClaimed   = "BOUNTY_CLAIMED"
	EvBountyExpired   = "BOUNTY_EXPIRED"
	EvAgentArrested   = "AGENT_ARRESTED"
	EvAgentReleased   = "AGENT_RELEASED"
	EvAgentRecovered  = "AGENT_RECOVERED"
	EvJailbreakOK     = "JAILBREAK_SUCCEEDED"
	EvJailbreakFail   = "JAILBREAK_FAILED"
	EvBribeResolved   = "BRIBE_RESOLVED"
	EvAgentBanned     = "AGENT_BANNED"
	EvAgentUnbanned   = "AGENT_UNBANNED"
	EvAgentTickError  = "AGENT_TICK_ERROR"
	EvJournal         = "JOURNAL"
)

// Event is the append-only system of record for "what happened". Payload
// holds one of the typed payload structs below, keyed by Type.
type Event struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	AgentID   string    `json:"agent_id,omitempty"`
	ZoneID    string    `json:"zone_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Typed event payloads. The wire shape is JSON either way; declaring them
// as structs keeps producers honest about field names.
type CashPayload struct {
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
	Reason  string `json:"reason,omitempty"`
}

type MovePayload struct {
	FromZoneID string `json:"from_zone_id"`
	ToZoneID   string `json:"to_zone_id"`
	CashCost   int64  `json:"cash_cost,omitempty"`
	HeatRisk   int    `json:"heat_risk,omitempty"`
}

type CrimePayload struct {
	CrimeType string  `json:"crime_type"`
	Chance    float64 `json:"chance"`
	Payout    int64   `json:"payout,omitempty"`
	HeatAdded int     `json:"heat_added,omitempty"`
	Injured   bool    `json:"injured,omitempty"`
}

type TradePayload struct {
	ItemID   string `json:"item_id"`
	Qty      int64  `json:"qty"`
	UnitCost int64  `json:"unit_cost"`
	Total    int64  `json:"total"`
	NewPrice int64  `json:"new_price"`
}

type SocialPayload struct {
	OtherAgentID string `json:"other_agent_id"`
	Amount       int64  `json:"amount,omitempty"`
	Text         string `json:"text,omitempty"`
	Strength     int    `json:"strength,omitempty"`
}

type GangPayload struct {
	GangID   string `json:"gang_id"`
	Name     string `json:"name,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
	Treasury int64  `json:"treasury,omitempty"`
	ZoneID   string `json:"zone_id,omitempty"`
}

type CoopPayload struct {
	CoopID       string   `json:"coop_id"`
	CrimeType    string   `json:"crime_type"`
	Participants []string `json:"participants,omitempty"`
	Required     int      `json:"required,omitempty"`
	Success      bool     `json:"success,omitempty"`
	Share        int64    `json:"share,omitempty"`
	DeadlineTick uint64   `json:"deadline_tick,omitempty"`
}

type FightPayload struct {
	TargetAgentID string  `json:"target_agent_id"`
	Chance        float64 `json:"chance"`
	Damage        int     `json:"damage,omitempty"`
	Loot          int64   `json:"loot,omitempty"`
	BountyPaid    int64   `json:"bounty_paid,omitempty"`
}

type JailPayload struct {
	JailedUntilTick uint64 `json:"jailed_until_tick,omitempty"`
	Heat            int    `json:"heat,omitempty"`
	TicksReduced    uint64 `json:"ticks_reduced,omitempty"`
	Success         bool   `json:"success,omitempty"`
}

type JournalPayload struct {
	Reflection string `json:"reflection"`
	Mood       string `json:"mood,omitempty"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
}

type ErrorPayload struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// EventLog is an in-memory append-only log with a bounded SSE fan-out.
// Appends assign a strictly increasing Seq; queries are ordered by it.
type EventLog struct {
	mu       sync.Mutex
	nextSeq  int64
	events   []Event
	maxKeep  int
	watchers map[chan Event]struct{}
	sink     func(Event)
}

func NewEventLog(maxKeep int, sink func(Event)) *EventLog {
	if maxKeep <= 0 {
		maxKeep = 100000
	}
	return &EventLog{
		maxKeep:  maxKeep,
		watchers: make(map[chan Event]struct{}),
		sink:     sink,
	}
}

func (l *EventLog) Append(ev Event) Event {
	l.mu.Lock()
	l.nextSeq++
	ev.Seq = l.nextSeq
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	l.events = append(l.events, ev)
	if len(l.events) > l.maxKeep {
		l.events = l.events[len(l.events)-l.maxKeep:]
	}
	for ch := range l.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
	return ev
}

// EventFilter narrows a query; zero values match everything.
type EventFilter struct {
	Type      string
	AgentID   string
	ZoneID    string
	SinceTick uint64
	SinceSeq  int64
	Limit     int
}

func (l *EventLog) Query(f EventFilter) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Event{}
	for _, ev := range l.events {
		if f.Type != "" && ev.Type != f.Type {
			continue
		}
		if f.AgentID != "" && ev.AgentID != f.AgentID {
			continue
		}
		if f.ZoneID != "" && ev.ZoneID != f.ZoneID {
			continue
		}
		if f.SinceTick > 0 && ev.Tick < f.SinceTick {
			continue
		}
		if f.SinceSeq > 0 && ev.Seq <= f.SinceSeq {
			continue
		}
		out = append(out, ev)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

func (l *EventLog) Subscribe() chan Event {
	ch := make(chan Event, 64)
	l.mu.Lock()
	l.watchers[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

func (l *EventLog) Unsubscribe(ch chan Event) {
	l.mu.Lock()
	if _, ok := l.watchers[ch]; ok {
		delete(l.watchers, ch)
		close(ch)
	}
	l.mu.Unlock()
}
