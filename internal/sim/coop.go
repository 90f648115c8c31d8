package sim

import "sync"

type CoopStatus string

const (
	CoopRecruiting CoopStatus = "recruiting"
	CoopExecuting  CoopStatus = "executing"
	CoopResolved   CoopStatus = "resolved"
	CoopExpired    CoopStatus = "expired"
)

// Coop is a short-lived multi-agent crime. Participants escrow a stake into
// the coop's ledger account while recruiting; quorum flips it to executing
// and the tick processor resolves it at the next boundary.
type Coop struct {
	mu sync.Mutex

	ID           string
	CrimeType    string
	InitiatorID  string
	Required     int
	Participants []string
	Status       CoopStatus
	DeadlineTick uint64
	Stake        int64
	CreatedTick  uint64
}

func (c *Coop) escrowAccount() string {
	return "coop:" + c.ID
}

func (c *Coop) hasParticipant(agentID string) bool {
	for _, id := range c.Participants {
		if id == agentID {
			return true
		}
	}
	return false
}

// CoopSummary is the read-model for state queries.
type CoopSummary struct {
	CoopID       string     `json:"coop_id"`
	CrimeType    string     `json:"crime_type"`
	InitiatorID  string     `json:"initiator_id"`
	Required     int        `json:"required"`
	Joined       int        `json:"joined"`
	Status       CoopStatus `json:"status"`
	DeadlineTick uint64     `json:"deadline_tick"`
	Stake        int64      `json:"stake"`
}

func (c *Coop) summary() CoopSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CoopSummary{
		CoopID:       c.ID,
		CrimeType:    c.CrimeType,
		InitiatorID:  c.InitiatorID,
		Required:     c.Required,
		Joined:       len(c.Participants),
		Status:       c.Status,
		DeadlineTick: c.DeadlineTick,
		Stake:        c.Stake,
	}
}

// Bounty escrows cash against another agent's head. Claimed by a winning
// attack; expired bounties refund half to the placer.
type Bounty struct {
	ID          string
	PlacerID    string
	TargetID    string
	Amount      int64
	ExpiresTick uint64
}

func (b *Bounty) escrowAccount() string {
	return "bounty:" + b.ID
}
