package sim

type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
	FriendDeclined FriendStatus = "declined"
)

// Friendship is symmetric, keyed by the ordered pair of agent IDs.
// RequesterID records which side sent the pending request.
type Friendship struct {
	AgentA              string
	AgentB              string
	RequesterID         string
	Status              FriendStatus
	Strength            int
	Loyalty             int
	LastInteractionTick uint64
}

func friendKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// touchFriend bumps strength on an accepted pair and stamps the interaction
// tick. No-op when the pair has no accepted friendship. Caller holds
// w.friendsMu.
func (w *World) touchFriendLocked(a, b string, step int, tick uint64) int {
	f := w.friends[friendKey(a, b)]
	if f == nil || f.Status != FriendAccepted {
		return 0
	}
	f.Strength += step
	if f.Strength > 100 {
		f.Strength = 100
	}
	if f.Strength < 0 {
		f.Strength = 0
	}
	f.LastInteractionTick = tick
	return f.Strength
}
