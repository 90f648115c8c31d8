package sim

// Movement, jobs, trade, and the rest of the money-touching actions. All
// handlers run under the actor lock; the ledger serializes balance changes
// internally and is always the last lock taken.

func (w *World) doMove(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	z := w.zones[a.ZoneID]
	if z == nil {
		return nil, internalErr("zone_missing")
	}
	edge, ok := z.edgeTo(args.ToZoneID)
	if !ok {
		return nil, validationErr("no_route")
	}
	if edge.CashCost > 0 {
		if _, err := w.Ledger.Debit(tick, a.ID, edge.CashCost, "travel_fare", ""); err != nil {
			return nil, insufficientErr("insufficient_cash")
		}
	}
	a.beginBusy(ActMove, tick+edge.TimeCostTicks)
	a.PendingZone = args.ToZoneID
	a.PendingHeat = edge.HeatRisk
	a.PendingEvent = EvMoveCompleted

	payload := MovePayload{
		FromZoneID: a.ZoneID,
		ToZoneID:   args.ToZoneID,
		CashCost:   edge.CashCost,
		HeatRisk:   edge.HeatRisk,
	}
	w.Events.Append(Event{
		Tick: tick, Type: EvAgentMoved, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeStarted, Payload: payload}, nil
}

func (w *World) doWork(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	job, ok := w.jobs[args.JobID]
	if !ok {
		return nil, validationErr("unknown_job")
	}
	if job.ZoneID != a.ZoneID {
		return nil, validationErr("job_not_here")
	}
	if a.Stamina < job.StaminaCost {
		return nil, insufficientErr("insufficient_stamina")
	}
	a.Stamina -= job.StaminaCost
	a.beginBusy(ActWork, tick+job.DurationTicks)
	a.PendingPayout = job.Wage
	a.PendingReason = "wage"
	a.PendingEvent = EvJobCompleted

	w.Events.Append(Event{
		Tick: tick, Type: EvJobStarted, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: job.ID,
		Payload: CashPayload{Amount: job.Wage, Reason: "wage_pending"},
	})
	return &ActionResult{OK: true, Outcome: OutcomeStarted, Payload: map[string]any{
		"job_id": job.ID, "busy_until_tick": a.BusyUntilTick, "wage": job.Wage,
	}}, nil
}

func (w *World) doBuy(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Qty <= 0 {
		return nil, validationErr("invalid_qty")
	}
	m := w.markets[marketKey(a.ZoneID, args.ItemID)]
	if m == nil {
		return nil, validationErr("unknown_item")
	}
	unit := m.Quote()
	total := unit * args.Qty
	if _, err := w.Ledger.Debit(tick, a.ID, total, "market_buy", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	a.Inventory[args.ItemID] += args.Qty
	m.applyBuy(args.Qty, tick, w.tuning.MarketPriceFloorPct, w.tuning.MarketPriceCeilPct, w.tuning.MarketPressureDiv)

	payload := TradePayload{ItemID: args.ItemID, Qty: args.Qty, UnitCost: unit, Total: total, NewPrice: m.Quote()}
	w.Events.Append(Event{
		Tick: tick, Type: EvMarketBuy, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: args.ItemID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doSell(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Qty <= 0 {
		return nil, validationErr("invalid_qty")
	}
	m := w.markets[marketKey(a.ZoneID, args.ItemID)]
	if m == nil {
		return nil, validationErr("unknown_item")
	}
	if a.Inventory[args.ItemID] < args.Qty {
		return nil, insufficientErr("insufficient_items")
	}
	unit := m.Quote()
	total := unit * args.Qty
	a.Inventory[args.ItemID] -= args.Qty
	if _, err := w.Ledger.Credit(tick, a.ID, total, "market_sell", ""); err != nil {
		a.Inventory[args.ItemID] += args.Qty
		return nil, internalErr("ledger_credit_failed")
	}
	a.LifetimeEarnings += total
	m.applySell(args.Qty, tick, w.tuning.MarketPriceFloorPct, w.tuning.MarketPriceCeilPct, w.tuning.MarketPressureDiv)

	payload := TradePayload{ItemID: args.ItemID, Qty: args.Qty, UnitCost: unit, Total: total, NewPrice: m.Quote()}
	w.Events.Append(Event{
		Tick: tick, Type: EvMarketSell, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: args.ItemID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doGift(a, target *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Amount <= 0 {
		return nil, validationErr("invalid_amount")
	}
	if target.Status == StatusBanned {
		return nil, invalidStateErr("target_banned")
	}
	if err := w.Ledger.Transfer(tick, a.ID, target.ID, args.Amount, "gift", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	a.GiftsSent++
	target.LifetimeEarnings += args.Amount

	w.friendsMu.Lock()
	strength := w.touchFriendLocked(a.ID, target.ID, w.tuning.GiftFriendStep, tick)
	w.friendsMu.Unlock()

	payload := SocialPayload{OtherAgentID: target.ID, Amount: args.Amount, Strength: strength}
	w.Events.Append(Event{
		Tick: tick, Type: EvGiftSent, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doGamble(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Amount <= 0 {
		return nil, validationErr("invalid_amount")
	}
	if _, err := w.Ledger.Debit(tick, a.ID, args.Amount, "gamble_stake", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	win := roll(w.seed, tick, in.RequestID) < w.tuning.GambleWinProb
	outcome := OutcomeFailure
	var paid int64
	if win {
		paid = args.Amount * w.tuning.GambleMultiplier
		if _, err := w.Ledger.Credit(tick, a.ID, paid, "gamble_win", ""); err != nil {
			return nil, internalErr("ledger_credit_failed")
		}
		a.LifetimeEarnings += paid - args.Amount
		outcome = OutcomeSuccess
	}
	payload := CashPayload{Amount: paid, Balance: w.Ledger.Balance(a.ID), Reason: "gamble"}
	w.Events.Append(Event{
		Tick: tick, Type: EvGambleResolved, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: outcome, Payload: payload}, nil
}

func (w *World) doRest(a *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	a.beginBusy(ActRest, tick+w.tuning.RestTicks)
	a.PendingEvent = EvRestCompleted
	return &ActionResult{OK: true, Outcome: OutcomeStarted, Payload: map[string]any{
		"busy_until_tick": a.BusyUntilTick,
	}}, nil
}

func (w *World) doBuyProperty(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	p, ok := w.props[args.PropertyID]
	if !ok {
		return nil, validationErr("unknown_property")
	}
	if p.ZoneID != a.ZoneID {
		return nil, validationErr("property_not_here")
	}
	w.mu.Lock()
	if w.propOwners[p.ID] != "" {
		w.mu.Unlock()
		return nil, conflictErr("property_taken")
	}
	w.propOwners[p.ID] = a.ID
	w.mu.Unlock()

	if _, err := w.Ledger.Debit(tick, a.ID, p.Price, "property_buy", ""); err != nil {
		w.mu.Lock()
		delete(w.propOwners, p.ID)
		w.mu.Unlock()
		return nil, insufficientErr("insufficient_cash")
	}
	a.Properties[p.ID] = true

	payload := CashPayload{Amount: p.Price, Balance: w.Ledger.Balance(a.ID), Reason: "property_buy"}
	w.Events.Append(Event{
		Tick: tick, Type: EvPropertyBought, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: p.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

func (w *World) doBuyDisguise(a *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	if a.DisguiseUntilTick > tick {
		return nil, invalidStateErr("disguise_active")
	}
	if _, err := w.Ledger.Debit(tick, a.ID, w.tuning.DisguisePrice, "disguise_buy", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	a.DisguiseUntilTick = tick + w.tuning.DisguiseTicks

	w.Events.Append(Event{
		Tick: tick, Type: EvDisguiseBought, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID,
		Payload:   CashPayload{Amount: w.tuning.DisguisePrice, Balance: w.Ledger.Balance(a.ID), Reason: "disguise_buy"},
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: map[string]any{
		"disguise_until_tick": a.DisguiseUntilTick,
	}}, nil
}

func (w *World) doPlaceBounty(a, target *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if args.Amount < w.tuning.BountyMinAmount {
		return nil, validationErr("bounty_too_small")
	}
	b := &Bounty{
		ID:          NewID(),
		PlacerID:    a.ID,
		TargetID:    target.ID,
		Amount:      args.Amount,
		ExpiresTick: tick + w.tuning.BountyTTLTicks,
	}
	if err := w.Ledger.Transfer(tick, a.ID, b.escrowAccount(), args.Amount, "bounty_escrow", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	w.mu.Lock()
	w.bounties[b.ID] = b
	w.mu.Unlock()

	payload := FightPayload{TargetAgentID: target.ID, BountyPaid: args.Amount}
	w.Events.Append(Event{
		Tick: tick, Type: EvBountyPlaced, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: b.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: map[string]any{
		"bounty_id": b.ID, "expires_tick": b.ExpiresTick,
	}}, nil
}
