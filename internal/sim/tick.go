package sim

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// AdvanceTick runs one simulation step. Phases run in a fixed order so the
// same inputs always produce the same world:
//
//  1. per-agent upkeep (busy completions, recoveries, heat decay, arrest
//     checks, jail releases, result-cache eviction)
//  2. bounty expiry
//  3. coop deadlines and resolution
//  4. territory income
//  5. property income and upkeep
//  6. friendship decay
//  7. market pressure bleed
//  8. snapshot
//
// Agents are visited in sorted ID order. A panic in one agent's upkeep is
// contained and journaled; the tick carries on.
func (w *World) AdvanceTick() uint64 {
	tick := w.tick.Add(1)

	for _, id := range w.sortedAgentIDs() {
		a := w.agent(id)
		if a == nil {
			continue
		}
		w.tickAgent(a, tick)
	}

	w.expireBounties(tick)
	w.tickCoops(tick)

	if every(tick, w.tuning.TerritoryEveryTicks) {
		w.payTerritoryIncome(tick)
	}
	if every(tick, w.tuning.UpkeepEveryTicks) {
		w.settleProperties(tick)
	}
	if every(tick, w.tuning.FriendDecayEveryTicks) {
		w.decayFriendships()
	}
	if every(tick, w.tuning.MarketBleedEveryTicks) {
		for _, m := range w.markets {
			m.bleed(tick, w.tuning.MarketPriceFloorPct, w.tuning.MarketPriceCeilPct, w.tuning.MarketPressureDiv)
		}
	}
	if every(tick, w.tuning.SnapshotEveryTicks) && w.persist != nil {
		w.persist.SaveSnapshot(w.TakeSnapshot())
	}
	return tick
}

func every(tick, n uint64) bool {
	return n > 0 && tick%n == 0
}

// tickAgent runs the per-agent phases under the agent lock. The ledger and
// event log are internally synchronized and safe to call while holding it.
func (w *World) tickAgent(a *Agent, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("agent_id", a.ID).Uint64("tick", tick).
				Interface("panic", r).Msg("agent tick panicked")
			w.Events.Append(Event{
				Tick: tick, Type: EvAgentTickError, AgentID: a.ID,
				Payload: ErrorPayload{Stage: "tick", Detail: fmt.Sprint(r)},
			})
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()

	w.completeBusyLocked(a, tick)
	w.recoverLocked(a, tick)
	w.decayHeatLocked(a, tick)
	w.checkArrestLocked(a, tick)
	w.releaseJailLocked(a, tick)
	a.evictStaleResults(tick, w.tuning.IdempotencyMaxTicks)
}

// completeBusyLocked finishes a busy action whose deadline has passed:
// applies the destination zone, travel heat, and the deferred payout, then
// journals the completion event the action registered.
func (w *World) completeBusyLocked(a *Agent, tick uint64) {
	if a.Status != StatusBusy || tick < a.BusyUntilTick {
		return
	}
	action := a.BusyAction
	payout := a.PendingPayout
	reason := a.PendingReason
	evType := a.PendingEvent
	fromZone := a.ZoneID

	if a.PendingZone != "" {
		a.ZoneID = a.PendingZone
	}
	if a.PendingHeat != 0 {
		a.Heat += a.PendingHeat
	}
	if action == ActRest {
		a.Stamina += w.tuning.RestStamina
		a.Health += w.tuning.RestHealth
	}
	a.clampStats()
	a.Status = StatusIdle
	a.clearBusy()

	var balance int64
	if payout > 0 {
		b, err := w.Ledger.Credit(tick, a.ID, payout, reason, "")
		if err != nil {
			log.Error().Err(err).Str("agent_id", a.ID).Msg("deferred payout failed")
			payout = 0
		} else {
			balance = b
			a.LifetimeEarnings += payout
		}
	}

	if evType == "" {
		return
	}
	ev := Event{Tick: tick, Type: evType, AgentID: a.ID, ZoneID: a.ZoneID}
	switch evType {
	case EvMoveCompleted:
		ev.Payload = MovePayload{FromZoneID: fromZone, ToZoneID: a.ZoneID}
	default:
		ev.Payload = CashPayload{Amount: payout, Balance: balance, Reason: reason}
	}
	w.Events.Append(ev)
}

func (w *World) recoverLocked(a *Agent, tick uint64) {
	if a.Status != StatusHospitalized || tick < a.BusyUntilTick {
		return
	}
	a.Status = StatusIdle
	a.BusyUntilTick = 0
	if a.Health < 50 {
		a.Health = 50
	}
	w.Events.Append(Event{Tick: tick, Type: EvAgentRecovered, AgentID: a.ID, ZoneID: a.ZoneID})
}

func (w *World) releaseJailLocked(a *Agent, tick uint64) {
	if a.Status != StatusJailed || tick < a.JailedUntilTick {
		return
	}
	a.Status = StatusIdle
	a.JailedUntilTick = 0
	w.Events.Append(Event{Tick: tick, Type: EvAgentReleased, AgentID: a.ID, ZoneID: a.ZoneID})
}

// decayHeatLocked cools an agent off. Idle agents cool faster than busy
// ones, and an active disguise adds on top. Disguise expiry is handled
// here too so the decay for the expiry tick still includes it.
func (w *World) decayHeatLocked(a *Agent, tick uint64) {
	decay := w.tuning.HeatDecayBusy
	if a.Status == StatusIdle {
		decay = w.tuning.HeatDecayIdle
	}
	if a.DisguiseUntilTick > tick {
		decay += w.tuning.DisguiseDecay
	} else if a.DisguiseUntilTick > 0 {
		a.DisguiseUntilTick = 0
		w.Events.Append(Event{Tick: tick, Type: EvDisguiseExpired, AgentID: a.ID, ZoneID: a.ZoneID})
	}
	if decay > 0 && a.Heat > 0 {
		a.Heat -= decay
		a.clampStats()
	}
}

// checkArrestLocked rolls for arrest on hot agents. Arrest interrupts a
// busy action and forfeits its deferred payout; heat resets on booking.
func (w *World) checkArrestLocked(a *Agent, tick uint64) {
	switch a.Status {
	case StatusJailed, StatusHospitalized, StatusBanned:
		return
	}
	if a.Heat < w.tuning.ArrestThreshold {
		return
	}
	p := w.tuning.ArrestBaseProb + w.tuning.ArrestHeatSlope*float64(a.Heat-w.tuning.ArrestThreshold)
	p = clampProb(p, 0, 0.95)
	if roll(w.seed, tick, "arrest/"+a.ID) >= p {
		return
	}
	sentence := w.tuning.JailBaseTicks + uint64(a.Heat)*w.tuning.JailHeatTicks
	a.Status = StatusJailed
	a.clearBusy()
	a.JailedUntilTick = tick + sentence
	a.Heat = 0
	a.Arrests++
	w.Events.Append(Event{
		Tick: tick, Type: EvAgentArrested, AgentID: a.ID, ZoneID: a.ZoneID,
		Payload: JailPayload{JailedUntilTick: a.JailedUntilTick},
	})
}

// expireBounties refunds half the escrow to the placer and forfeits the
// rest once a bounty outlives its TTL.
func (w *World) expireBounties(tick uint64) {
	w.mu.Lock()
	var expired []*Bounty
	for id, b := range w.bounties {
		if tick >= b.ExpiresTick {
			expired = append(expired, b)
			delete(w.bounties, id)
		}
	}
	w.mu.Unlock()
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })

	for _, b := range expired {
		refund := b.Amount / 2
		if refund > 0 {
			if err := w.Ledger.Transfer(tick, b.escrowAccount(), b.PlacerID, refund, "bounty_refund", ""); err != nil {
				log.Error().Err(err).Str("bounty_id", b.ID).Msg("bounty refund failed")
			}
		}
		if rest := w.Ledger.Balance(b.escrowAccount()); rest > 0 {
			if _, err := w.Ledger.Debit(tick, b.escrowAccount(), rest, "bounty_forfeit", ""); err != nil {
				log.Error().Err(err).Str("bounty_id", b.ID).Msg("bounty forfeit failed")
			}
		}
		w.Events.Append(Event{
			Tick: tick, Type: EvBountyExpired, AgentID: b.PlacerID, EntityID: b.ID,
			Payload: FightPayload{TargetAgentID: b.TargetID, BountyPaid: refund},
		})
	}
}

// tickCoops expires stale recruiting coops and resolves executing ones.
func (w *World) tickCoops(tick uint64) {
	w.mu.RLock()
	coops := make([]*Coop, 0, len(w.coops))
	for _, c := range w.coops {
		coops = append(coops, c)
	}
	w.mu.RUnlock()
	sort.Slice(coops, func(i, j int) bool { return coops[i].ID < coops[j].ID })

	for _, c := range coops {
		c.mu.Lock()
		switch {
		case c.Status == CoopRecruiting && tick >= c.DeadlineTick:
			c.Status = CoopExpired
			participants := append([]string(nil), c.Participants...)
			stake := c.Stake
			c.mu.Unlock()
			w.expireCoop(c, participants, stake, tick)
		case c.Status == CoopExecuting:
			participants := append([]string(nil), c.Participants...)
			c.Status = CoopResolved
			c.mu.Unlock()
			w.resolveCoop(c, participants, tick)
		default:
			c.mu.Unlock()
		}
	}
}

func (w *World) expireCoop(c *Coop, participants []string, stake int64, tick uint64) {
	for _, id := range participants {
		if err := w.Ledger.Transfer(tick, c.escrowAccount(), id, stake, "coop_stake_refund", ""); err != nil {
			log.Error().Err(err).Str("coop_id", c.ID).Str("agent_id", id).Msg("coop refund failed")
		}
	}
	w.Events.Append(Event{
		Tick: tick, Type: EvCoopExpired, AgentID: c.InitiatorID, EntityID: c.ID,
		Payload: CoopPayload{CoopID: c.ID, CrimeType: c.CrimeType, Participants: participants, Required: c.Required},
	})
}

// resolveCoop rolls once for the whole crew. Success pays equal shares of
// the pot plus each stake back; failure forfeits the escrow. Either way
// every participant picks up heat, and accepted friendships among the crew
// strengthen.
func (w *World) resolveCoop(c *Coop, participants []string, tick uint64) {
	n := len(participants)
	if n == 0 {
		return
	}
	chance := clampProb(w.tuning.CoopBaseProb+w.tuning.CoopPerMemberProb*float64(n), 0.05, 0.95)
	success := roll(w.seed, tick, "coop/"+c.ID) < chance

	if success {
		share := w.tuning.CoopPayout / int64(n)
		for _, id := range participants {
			if err := w.Ledger.Transfer(tick, c.escrowAccount(), id, c.Stake, "coop_stake_refund", ""); err != nil {
				log.Error().Err(err).Str("coop_id", c.ID).Str("agent_id", id).Msg("coop stake return failed")
			}
			if share > 0 {
				if _, err := w.Ledger.Credit(tick, id, share, "coop_share", ""); err == nil {
					w.Events.Append(Event{
						Tick: tick, Type: EvCoopSharePaid, AgentID: id, EntityID: c.ID,
						Payload: CoopPayload{CoopID: c.ID, CrimeType: c.CrimeType, Share: share, Success: true},
					})
				}
			}
		}
	} else if rest := w.Ledger.Balance(c.escrowAccount()); rest > 0 {
		if _, err := w.Ledger.Debit(tick, c.escrowAccount(), rest, "coop_failed_forfeit", ""); err != nil {
			log.Error().Err(err).Str("coop_id", c.ID).Msg("coop forfeit failed")
		}
	}

	for _, id := range participants {
		a := w.agent(id)
		if a == nil {
			continue
		}
		a.mu.Lock()
		a.Heat += w.tuning.CoopHeat
		if success {
			a.LifetimeEarnings += w.tuning.CoopPayout / int64(n)
			a.CrimesCommitted++
		}
		a.clampStats()
		a.mu.Unlock()
	}

	w.friendsMu.Lock()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w.touchFriendLocked(participants[i], participants[j], w.tuning.CoopFriendStep, tick)
		}
	}
	w.friendsMu.Unlock()

	w.Events.Append(Event{
		Tick: tick, Type: EvCoopResolved, AgentID: c.InitiatorID, EntityID: c.ID,
		Payload: CoopPayload{
			CoopID: c.ID, CrimeType: c.CrimeType, Participants: participants,
			Required: c.Required, Success: success,
		},
	})
}

// payTerritoryIncome credits each controlling gang's treasury.
func (w *World) payTerritoryIncome(tick uint64) {
	w.mu.RLock()
	type claim struct{ zoneID, gangID string }
	claims := make([]claim, 0, len(w.territories))
	for z, g := range w.territories {
		claims = append(claims, claim{z, g})
	}
	w.mu.RUnlock()
	sort.Slice(claims, func(i, j int) bool { return claims[i].zoneID < claims[j].zoneID })

	for _, cl := range claims {
		if _, err := w.Ledger.Credit(tick, "gang:"+cl.gangID, w.tuning.TerritoryIncome, "territory_income", ""); err != nil {
			continue
		}
		w.Events.Append(Event{
			Tick: tick, Type: EvTerritoryIncome, ZoneID: cl.zoneID, EntityID: cl.gangID,
			Payload: GangPayload{GangID: cl.gangID, ZoneID: cl.zoneID, Amount: w.tuning.TerritoryIncome},
		})
	}
}

// settleProperties pays income and charges upkeep per owned property.
// Income lands first so a property can fund its own upkeep; a missed
// upkeep costs reputation but never blocks or repossesses.
func (w *World) settleProperties(tick uint64) {
	w.mu.RLock()
	type holding struct{ propID, ownerID string }
	holdings := make([]holding, 0, len(w.propOwners))
	for p, owner := range w.propOwners {
		holdings = append(holdings, holding{p, owner})
	}
	w.mu.RUnlock()
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].propID < holdings[j].propID })

	for _, h := range holdings {
		p, ok := w.props[h.propID]
		if !ok {
			continue
		}
		a := w.agent(h.ownerID)
		if a == nil {
			continue
		}

		if p.Income > 0 {
			if _, err := w.Ledger.Credit(tick, h.ownerID, p.Income, "property_income", ""); err == nil {
				a.mu.Lock()
				a.LifetimeEarnings += p.Income
				a.mu.Unlock()
				w.Events.Append(Event{
					Tick: tick, Type: EvPropertyIncome, AgentID: h.ownerID, EntityID: h.propID,
					Payload: CashPayload{Amount: p.Income, Reason: "property_income"},
				})
			}
		}
		if p.Upkeep > 0 {
			if _, err := w.Ledger.Debit(tick, h.ownerID, p.Upkeep, "property_upkeep", ""); err != nil {
				a.mu.Lock()
				a.Reputation -= w.tuning.UpkeepPenaltyRep
				a.mu.Unlock()
				w.Events.Append(Event{
					Tick: tick, Type: EvUpkeepMissed, AgentID: h.ownerID, EntityID: h.propID,
					Payload: CashPayload{Amount: p.Upkeep, Reason: "upkeep_missed"},
				})
			}
		}
	}
}

// decayFriendships erodes accepted friendships that nobody is feeding.
func (w *World) decayFriendships() {
	step := w.tuning.FriendDecayStep
	if step <= 0 {
		return
	}
	w.friendsMu.Lock()
	defer w.friendsMu.Unlock()
	for _, f := range w.friends {
		if f.Status != FriendAccepted {
			continue
		}
		f.Strength -= step
		if f.Strength < 0 {
			f.Strength = 0
		}
		if f.Loyalty > 0 {
			f.Loyalty--
		}
	}
}
