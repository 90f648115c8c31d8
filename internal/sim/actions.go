package sim

import "encoding/json"

// Action types accepted by Submit.
const (
	ActMove          = "MOVE"
	ActWork          = "WORK"
	ActCrime         = "CRIME"
	ActBuy           = "BUY"
	ActSell          = "SELL"
	ActGift          = "GIFT"
	ActMessage       = "MESSAGE"
	ActFriendRequest = "FRIEND_REQUEST"
	ActFriendAccept  = "FRIEND_ACCEPT"
	ActFriendDecline = "FRIEND_DECLINE"
	ActCreateGang    = "CREATE_GANG"
	ActJoinGang      = "JOIN_GANG"
	ActLeaveGang     = "LEAVE_GANG"
	ActContribute    = "CONTRIBUTE_GANG"
	ActBetrayGang    = "BETRAY_GANG"
	ActClaimTurf     = "CLAIM_TERRITORY"
	ActStartCoop     = "START_COOP"
	ActJoinCoop      = "JOIN_COOP"
	ActAttack        = "ATTACK"
	ActGamble        = "GAMBLE"
	ActRest          = "REST"
	ActBuyProperty   = "BUY_PROPERTY"
	ActBuyDisguise   = "BUY_DISGUISE"
	ActPlaceBounty   = "PLACE_BOUNTY"
	ActJailbreak     = "JAILBREAK"
	ActBribe         = "BRIBE"
)

// exclusiveActions require status == idle; the rest have their own status
// preconditions (e.g. JAILBREAK requires jailed).
var exclusiveActions = map[string]bool{
	ActMove: true, ActWork: true, ActCrime: true, ActBuy: true, ActSell: true,
	ActGift: true, ActCreateGang: true, ActJoinGang: true, ActLeaveGang: true,
	ActContribute: true, ActBetrayGang: true, ActClaimTurf: true,
	ActStartCoop: true, ActJoinCoop: true, ActAttack: true, ActGamble: true,
	ActRest: true, ActBuyProperty: true, ActBuyDisguise: true, ActPlaceBounty: true,
}

var knownActions = func() map[string]bool {
	m := map[string]bool{
		ActMessage: true, ActFriendRequest: true, ActFriendAccept: true,
		ActFriendDecline: true, ActJailbreak: true, ActBribe: true,
	}
	for k := range exclusiveActions {
		m[k] = true
	}
	return m
}()

// SubmitInput is the resolver contract for clients: every state change
// arrives with a request id and a written rationale.
type SubmitInput struct {
	AgentID    string
	RequestID  string
	Action     string
	Args       json.RawMessage
	Reflection string
	Mood       string
}

// actionArgs is the union of all per-action argument fields; each handler
// validates the subset it needs.
type actionArgs struct {
	ToZoneID      string `json:"to_zone_id"`
	JobID         string `json:"job_id"`
	CrimeType     string `json:"crime_type"`
	ItemID        string `json:"item_id"`
	Qty           int64  `json:"qty"`
	Amount        int64  `json:"amount"`
	TargetAgentID string `json:"target_agent_id"`
	Text          string `json:"text"`
	GangID        string `json:"gang_id"`
	GangName      string `json:"gang_name"`
	ZoneID        string `json:"zone_id"`
	CoopID        string `json:"coop_id"`
	Required      int    `json:"required"`
	PropertyID    string `json:"property_id"`
}

// ActionResult is what the caller gets back for an accepted submission,
// including failed probabilistic outcomes (failure is a result, not an
// error: partial costs were applied).
type ActionResult struct {
	OK        bool         `json:"ok"`
	RequestID string       `json:"request_id"`
	Action    string       `json:"action"`
	Tick      uint64       `json:"tick"`
	Outcome   string       `json:"outcome"`
	Payload   any          `json:"payload,omitempty"`
	Agent     AgentSummary `json:"agent"`
	Replayed  bool         `json:"replayed,omitempty"`
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStarted = "started"
)
