package sim

// Social, gang, and cooperative-crime actions. Gang mutations take the gang
// lock after the agent lock(s); coop joins serialize on the coop lock so the
// last open slot goes to exactly one caller.

func (w *World) doMessage(a, target *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Text == "" || len(args.Text) > 500 {
		return nil, validationErr("invalid_text")
	}
	if target.Status == StatusBanned {
		return nil, invalidStateErr("target_banned")
	}
	w.friendsMu.Lock()
	strength := w.touchFriendLocked(a.ID, target.ID, w.tuning.MessageFriendStep, tick)
	w.friendsMu.Unlock()

	payload := SocialPayload{OtherAgentID: target.ID, Text: args.Text, Strength: strength}
	w.Events.Append(Event{
		Tick: tick, Type: EvMessageSent, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doFriendRequest(a, target *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	w.friendsMu.Lock()
	key := friendKey(a.ID, target.ID)
	if f := w.friends[key]; f != nil {
		switch f.Status {
		case FriendAccepted:
			w.friendsMu.Unlock()
			return nil, invalidStateErr("already_friends")
		case FriendPending:
			w.friendsMu.Unlock()
			return nil, conflictErr("request_pending")
		}
		// Declined pairs can ask again; the lock stays held for the rewrite.
	}
	first, second := a.ID, target.ID
	if second < first {
		first, second = second, first
	}
	w.friends[key] = &Friendship{
		AgentA:              first,
		AgentB:              second,
		RequesterID:         a.ID,
		Status:              FriendPending,
		LastInteractionTick: tick,
	}
	w.friendsMu.Unlock()

	payload := SocialPayload{OtherAgentID: target.ID}
	w.Events.Append(Event{
		Tick: tick, Type: EvFriendRequested, AgentID: a.ID,
		RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doFriendAccept(a, target *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	w.friendsMu.Lock()
	f := w.friends[friendKey(a.ID, target.ID)]
	if f == nil || f.Status != FriendPending || f.RequesterID == a.ID {
		w.friendsMu.Unlock()
		return nil, invalidStateErr("no_pending_request")
	}
	f.Status = FriendAccepted
	f.Strength = 10
	f.Loyalty = 10
	f.LastInteractionTick = tick
	w.friendsMu.Unlock()

	a.FriendCount++
	target.FriendCount++
	payload := SocialPayload{OtherAgentID: target.ID, Strength: 10}
	w.Events.Append(Event{
		Tick: tick, Type: EvFriendAccepted, AgentID: a.ID,
		RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doFriendDecline(a, target *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	w.friendsMu.Lock()
	f := w.friends[friendKey(a.ID, target.ID)]
	if f == nil || f.Status != FriendPending || f.RequesterID == a.ID {
		w.friendsMu.Unlock()
		return nil, invalidStateErr("no_pending_request")
	}
	f.Status = FriendDeclined
	f.LastInteractionTick = tick
	w.friendsMu.Unlock()

	payload := SocialPayload{OtherAgentID: target.ID}
	w.Events.Append(Event{
		Tick: tick, Type: EvFriendDeclined, AgentID: a.ID,
		RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doCreateGang(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.GangName == "" || len(args.GangName) > 64 {
		return nil, validationErr("invalid_gang_name")
	}
	if a.GangID != "" {
		return nil, invalidStateErr("already_in_gang")
	}
	if a.GangBanUntilTick > tick {
		return nil, invalidStateErr("gang_banned")
	}
	if _, err := w.Ledger.Debit(tick, a.ID, w.tuning.GangCreateFee, "gang_create_fee", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	g := &Gang{
		ID:          NewID(),
		Name:        args.GangName,
		LeaderID:    a.ID,
		Members:     map[string]GangRole{a.ID: GangLeader},
		Territories: make(map[string]bool),
		CreatedTick: tick,
	}
	w.mu.Lock()
	w.gangs[g.ID] = g
	w.mu.Unlock()
	a.GangID = g.ID

	payload := GangPayload{GangID: g.ID, Name: g.Name}
	w.Events.Append(Event{
		Tick: tick, Type: EvGangCreated, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: g.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doJoinGang(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if a.GangID != "" {
		return nil, invalidStateErr("already_in_gang")
	}
	if a.GangBanUntilTick > tick {
		return nil, invalidStateErr("gang_banned")
	}
	w.mu.RLock()
	g := w.gangs[args.GangID]
	w.mu.RUnlock()
	if g == nil {
		return nil, validationErr("gang_not_found")
	}
	g.mu.Lock()
	if g.Disbanded {
		g.mu.Unlock()
		return nil, invalidStateErr("gang_disbanded")
	}
	g.Members[a.ID] = GangMember
	g.mu.Unlock()
	a.GangID = g.ID

	payload := GangPayload{GangID: g.ID, Name: g.Name}
	w.Events.Append(Event{
		Tick: tick, Type: EvGangJoined, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: g.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doLeaveGang(a *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	g := w.agentGang(a)
	if g == nil {
		return nil, invalidStateErr("not_in_gang")
	}
	g.mu.Lock()
	delete(g.Members, a.ID)
	if g.LeaderID == a.ID {
		g.LeaderID = anyMember(g.Members)
	}
	g.mu.Unlock()
	a.GangID = ""

	payload := GangPayload{GangID: g.ID, Name: g.Name}
	w.Events.Append(Event{
		Tick: tick, Type: EvGangLeft, AgentID: a.ID,
		RequestID: in.RequestID, EntityID: g.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doContribute(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Amount <= 0 {
		return nil, validationErr("invalid_amount")
	}
	g := w.agentGang(a)
	if g == nil {
		return nil, invalidStateErr("not_in_gang")
	}
	if err := w.Ledger.Transfer(tick, a.ID, g.treasuryAccount(), args.Amount, "gang_contribution", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}

	payload := GangPayload{GangID: g.ID, Amount: args.Amount, Treasury: w.Ledger.Balance(g.treasuryAccount())}
	w.Events.Append(Event{
		Tick: tick, Type: EvGangContributed, AgentID: a.ID,
		RequestID: in.RequestID, EntityID: g.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

// doBetrayGang is irreversible: the betrayer walks off with a cut of the
// treasury and cannot join another gang until the ban elapses.
func (w *World) doBetrayGang(a *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	g := w.agentGang(a)
	if g == nil {
		return nil, invalidStateErr("not_in_gang")
	}
	g.mu.Lock()
	delete(g.Members, a.ID)
	if g.LeaderID == a.ID {
		g.LeaderID = anyMember(g.Members)
	}
	g.mu.Unlock()

	cut := int64(float64(w.Ledger.Balance(g.treasuryAccount())) * w.tuning.GangBetrayalCut)
	if cut > 0 {
		if err := w.Ledger.Transfer(tick, g.treasuryAccount(), a.ID, cut, "gang_betrayal_cut", ""); err != nil {
			cut = 0
		} else {
			a.LifetimeEarnings += cut
		}
	}
	a.GangID = ""
	a.Betrayals++
	a.Reputation -= 10
	a.GangBanUntilTick = tick + w.tuning.GangBanTicks

	payload := GangPayload{GangID: g.ID, Name: g.Name, Amount: cut, Treasury: w.Ledger.Balance(g.treasuryAccount())}
	w.Events.Append(Event{
		Tick: tick, Type: EvGangBetrayed, AgentID: a.ID,
		RequestID: in.RequestID, EntityID: g.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doClaimTerritory(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	g := w.agentGang(a)
	if g == nil {
		return nil, invalidStateErr("not_in_gang")
	}
	if w.zones[args.ZoneID] == nil {
		return nil, validationErr("unknown_zone")
	}
	w.mu.Lock()
	if holder := w.territories[args.ZoneID]; holder != "" {
		w.mu.Unlock()
		if holder == g.ID {
			return nil, invalidStateErr("already_held")
		}
		return nil, conflictErr("territory_contested")
	}
	w.territories[args.ZoneID] = g.ID
	w.mu.Unlock()

	if _, err := w.Ledger.Debit(tick, g.treasuryAccount(), w.tuning.TerritoryClaimCost, "territory_claim", ""); err != nil {
		w.mu.Lock()
		delete(w.territories, args.ZoneID)
		w.mu.Unlock()
		return nil, insufficientErr("insufficient_treasury")
	}
	g.mu.Lock()
	g.Territories[args.ZoneID] = true
	g.mu.Unlock()

	payload := GangPayload{GangID: g.ID, ZoneID: args.ZoneID, Treasury: w.Ledger.Balance(g.treasuryAccount())}
	w.Events.Append(Event{
		Tick: tick, Type: EvTerritoryClaim, AgentID: a.ID, ZoneID: args.ZoneID,
		RequestID: in.RequestID, EntityID: g.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doStartCoop(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	crime, ok := w.crimes[args.CrimeType]
	if !ok {
		return nil, validationErr("unknown_crime")
	}
	if args.Required < 2 || args.Required > 8 {
		return nil, validationErr("invalid_required")
	}
	c := &Coop{
		ID:           NewID(),
		CrimeType:    crime.Type,
		InitiatorID:  a.ID,
		Required:     args.Required,
		Participants: []string{a.ID},
		Status:       CoopRecruiting,
		DeadlineTick: tick + w.tuning.CoopDeadlineTicks,
		Stake:        w.tuning.CoopStake,
		CreatedTick:  tick,
	}
	if err := w.Ledger.Transfer(tick, a.ID, c.escrowAccount(), c.Stake, "coop_stake", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	w.mu.Lock()
	w.coops[c.ID] = c
	w.mu.Unlock()

	payload := CoopPayload{CoopID: c.ID, CrimeType: c.CrimeType, Required: c.Required, DeadlineTick: c.DeadlineTick}
	w.Events.Append(Event{
		Tick: tick, Type: EvCoopStarted, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: c.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeStarted, Payload: payload}, nil
}

func (w *World) doJoinCoop(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	w.mu.RLock()
	c := w.coops[args.CoopID]
	w.mu.RUnlock()
	if c == nil {
		return nil, validationErr("coop_not_found")
	}

	c.mu.Lock()
	if c.Status != CoopRecruiting {
		c.mu.Unlock()
		return nil, conflictErr("coop_closed")
	}
	if c.hasParticipant(a.ID) {
		c.mu.Unlock()
		return nil, invalidStateErr("already_joined")
	}
	if len(c.Participants) >= c.Required {
		c.mu.Unlock()
		return nil, conflictErr("coop_full")
	}
	if err := w.Ledger.Transfer(tick, a.ID, c.escrowAccount(), c.Stake, "coop_stake", ""); err != nil {
		c.mu.Unlock()
		return nil, insufficientErr("insufficient_cash")
	}
	c.Participants = append(c.Participants, a.ID)
	filled := len(c.Participants) >= c.Required
	if filled {
		// Quorum reached; the tick processor resolves it at the next boundary.
		c.Status = CoopExecuting
	}
	participants := append([]string(nil), c.Participants...)
	c.mu.Unlock()

	payload := CoopPayload{CoopID: c.ID, CrimeType: c.CrimeType, Participants: participants, Required: c.Required}
	w.Events.Append(Event{
		Tick: tick, Type: EvCoopJoined, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: c.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeStarted, Payload: payload}, nil
}

// agentGang resolves the caller's gang; caller holds the agent lock.
func (w *World) agentGang(a *Agent) *Gang {
	if a.GangID == "" {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gangs[a.GangID]
}

func anyMember(members map[string]GangRole) string {
	for id := range members {
		return id
	}
	return ""
}
