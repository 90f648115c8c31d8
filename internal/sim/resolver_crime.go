package sim

// Probabilistic actions. Each draws exactly one primary sample seeded from
// (worldSeed, tick, requestID); secondary rolls (injury) append a suffix to
// the key so outcomes stay replayable in a fixed order.

func (w *World) doCrime(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	crime, ok := w.crimes[args.CrimeType]
	if !ok {
		return nil, validationErr("unknown_crime")
	}
	if a.Stamina < crime.StaminaCost {
		return nil, insufficientErr("insufficient_stamina")
	}

	// Reputation helps, active heat hurts.
	chance := crime.BaseProb + float64(a.Reputation)/500 - float64(a.Heat)/400
	chance = clampProb(chance, 0.05, 0.95)

	a.Stamina -= crime.StaminaCost
	a.CrimesCommitted++

	if roll(w.seed, tick, in.RequestID) < chance {
		a.Heat += crime.HeatOnSuccess
		a.clampStats()
		a.beginBusy(ActCrime, tick+crime.LayLowTicks)
		a.PendingPayout = crime.Payout
		a.PendingReason = "crime_payout"
		a.PendingEvent = EvCrimeCompleted

		payload := CrimePayload{CrimeType: crime.Type, Chance: chance, Payout: crime.Payout, HeatAdded: crime.HeatOnSuccess}
		w.Events.Append(Event{
			Tick: tick, Type: EvCrimeSucceeded, AgentID: a.ID, ZoneID: a.ZoneID,
			RequestID: in.RequestID, Payload: payload,
		})
		return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
	}

	// Failure is not free: stamina is gone, heat rises, and a bad fall can
	// put the agent in the hospital.
	a.Heat += crime.HeatOnFail
	injured := roll(w.seed, tick, in.RequestID+"/injury") < crime.InjuryProb
	if injured {
		a.Health -= w.tuning.AttackDamage
		a.clampStats()
		if a.Health <= w.tuning.HospitalThreshold {
			a.Status = StatusHospitalized
			a.clearBusy()
			a.BusyUntilTick = tick + w.tuning.HospitalTicks
		}
	}
	a.clampStats()

	payload := CrimePayload{CrimeType: crime.Type, Chance: chance, HeatAdded: crime.HeatOnFail, Injured: injured}
	w.Events.Append(Event{
		Tick: tick, Type: EvCrimeFailed, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeFailure, Payload: payload}, nil
}

func (w *World) doAttack(a, target *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	if target.ZoneID != a.ZoneID {
		return nil, validationErr("target_not_here")
	}
	switch target.Status {
	case StatusJailed, StatusHospitalized, StatusBanned:
		return nil, invalidStateErr("target_unavailable")
	}
	if a.Stamina < w.tuning.AttackStamina {
		return nil, insufficientErr("insufficient_stamina")
	}

	chance := w.tuning.AttackBaseProb +
		float64(a.Stamina-target.Stamina)/400 +
		float64(a.Health-target.Health)/400
	chance = clampProb(chance, 0.05, 0.95)

	a.Stamina -= w.tuning.AttackStamina
	won := roll(w.seed, tick, in.RequestID) < chance

	if !won {
		a.Health -= w.tuning.AttackDamage / 2
		a.Heat += w.tuning.AttackHeat / 2
		a.clampStats()
		if a.Health <= w.tuning.HospitalThreshold {
			a.Status = StatusHospitalized
			a.clearBusy()
			a.BusyUntilTick = tick + w.tuning.HospitalTicks
		}
		payload := FightPayload{TargetAgentID: target.ID, Chance: chance, Damage: w.tuning.AttackDamage / 2}
		w.Events.Append(Event{
			Tick: tick, Type: EvAttackLost, AgentID: a.ID, ZoneID: a.ZoneID,
			RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
		})
		return &ActionResult{OK: true, Outcome: OutcomeFailure, Payload: payload}, nil
	}

	target.Health -= w.tuning.AttackDamage
	target.clampStats()
	if target.Health <= w.tuning.HospitalThreshold {
		target.Status = StatusHospitalized
		target.clearBusy()
		target.BusyUntilTick = tick + w.tuning.HospitalTicks
	}
	a.Heat += w.tuning.AttackHeat
	a.clampStats()

	loot := w.Ledger.Balance(target.ID) * int64(w.tuning.AttackLootPct) / 100
	if loot > 0 {
		if err := w.Ledger.Transfer(tick, target.ID, a.ID, loot, "attack_loot", ""); err != nil {
			loot = 0
		} else {
			a.LifetimeEarnings += loot
		}
	}

	bountyPaid := w.claimBounties(target.ID, a.ID, tick)
	payload := FightPayload{
		TargetAgentID: target.ID,
		Chance:        chance,
		Damage:        w.tuning.AttackDamage,
		Loot:          loot,
		BountyPaid:    bountyPaid,
	}
	w.Events.Append(Event{
		Tick: tick, Type: EvAttackWon, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, EntityID: target.ID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}

// claimBounties pays every open bounty on target to the claimer and removes
// them. Caller holds both agent locks; the registry lock nests inside.
func (w *World) claimBounties(targetID, claimerID string, tick uint64) int64 {
	w.mu.Lock()
	claimed := []*Bounty{}
	for id, b := range w.bounties {
		if b.TargetID == targetID {
			claimed = append(claimed, b)
			delete(w.bounties, id)
		}
	}
	w.mu.Unlock()

	var total int64
	for _, b := range claimed {
		if err := w.Ledger.Transfer(tick, b.escrowAccount(), claimerID, b.Amount, "bounty_claim", ""); err != nil {
			continue
		}
		total += b.Amount
		w.Events.Append(Event{
			Tick: tick, Type: EvBountyClaimed, AgentID: claimerID, EntityID: b.ID,
			Payload: FightPayload{TargetAgentID: targetID, BountyPaid: b.Amount},
		})
	}
	return total
}

func (w *World) doJailbreak(a *Agent, tick uint64, in SubmitInput) (*ActionResult, *Error) {
	if a.Status != StatusJailed {
		return nil, invalidStateErr("not_jailed")
	}
	if roll(w.seed, tick, in.RequestID) < w.tuning.JailbreakProb {
		a.Status = StatusIdle
		a.JailedUntilTick = 0
		a.Heat += w.tuning.JailbreakHeat
		a.clampStats()
		payload := JailPayload{Success: true, Heat: a.Heat}
		w.Events.Append(Event{
			Tick: tick, Type: EvJailbreakOK, AgentID: a.ID, ZoneID: a.ZoneID,
			RequestID: in.RequestID, Payload: payload,
		})
		return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
	}
	a.JailedUntilTick += w.tuning.JailbreakPenalty
	payload := JailPayload{Success: false, JailedUntilTick: a.JailedUntilTick}
	w.Events.Append(Event{
		Tick: tick, Type: EvJailbreakFail, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeFailure, Payload: payload}, nil
}

func (w *World) doBribe(a *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	if a.Status != StatusJailed {
		return nil, invalidStateErr("not_jailed")
	}
	if args.Amount <= 0 {
		return nil, validationErr("invalid_amount")
	}
	if _, err := w.Ledger.Debit(tick, a.ID, args.Amount, "bribe", ""); err != nil {
		return nil, insufficientErr("insufficient_cash")
	}
	if roll(w.seed, tick, in.RequestID) >= w.tuning.BribeProb {
		// Money gone, guard unmoved.
		payload := JailPayload{Success: false, JailedUntilTick: a.JailedUntilTick}
		w.Events.Append(Event{
			Tick: tick, Type: EvBribeResolved, AgentID: a.ID, ZoneID: a.ZoneID,
			RequestID: in.RequestID, Payload: payload,
		})
		return &ActionResult{OK: true, Outcome: OutcomeFailure, Payload: payload}, nil
	}
	perTick := w.tuning.BribePerTick
	if perTick <= 0 {
		perTick = 1
	}
	reduced := uint64(args.Amount / perTick)
	if a.JailedUntilTick > tick+reduced {
		a.JailedUntilTick -= reduced
	} else {
		a.Status = StatusIdle
		a.JailedUntilTick = 0
	}
	payload := JailPayload{Success: true, JailedUntilTick: a.JailedUntilTick, TicksReduced: reduced}
	w.Events.Append(Event{
		Tick: tick, Type: EvBribeResolved, AgentID: a.ID, ZoneID: a.ZoneID,
		RequestID: in.RequestID, Payload: payload,
	})
	return &ActionResult{OK: true, Outcome: OutcomeSuccess, Payload: payload}, nil
}
