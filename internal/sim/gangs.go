package sim

import "sync"

type GangRole string

const (
	GangLeader GangRole = "leader"
	GangMember GangRole = "member"
)

// Gang holds membership and territory. The treasury is not a field here —
// it is a ledger account so gang money obeys the same journal invariants as
// agent cash.
type Gang struct {
	mu sync.Mutex

	ID          string
	Name        string
	LeaderID    string
	Members     map[string]GangRole
	Territories map[string]bool // zone IDs
	Disbanded   bool
	CreatedTick uint64
}

// treasuryAccount namespaces gang balances inside the shared ledger.
func (g *Gang) treasuryAccount() string {
	return "gang:" + g.ID
}

// GangSummary is the read-model for state queries.
type GangSummary struct {
	GangID      string   `json:"gang_id"`
	Name        string   `json:"name"`
	LeaderID    string   `json:"leader_id"`
	Members     int      `json:"members"`
	Treasury    int64    `json:"treasury"`
	Territories []string `json:"territories,omitempty"`
	Disbanded   bool     `json:"disbanded,omitempty"`
}

func (w *World) gangSummary(g *Gang) GangSummary {
	g.mu.Lock()
	defer g.mu.Unlock()
	zones := make([]string, 0, len(g.Territories))
	for z := range g.Territories {
		zones = append(zones, z)
	}
	return GangSummary{
		GangID:      g.ID,
		Name:        g.Name,
		LeaderID:    g.LeaderID,
		Members:     len(g.Members),
		Treasury:    w.Ledger.Balance(g.treasuryAccount()),
		Territories: zones,
		Disbanded:   g.Disbanded,
	}
}
