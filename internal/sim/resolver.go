package sim

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Submit validates and executes one action against current world state.
// Uniform preconditions run before any mutation; a previously seen
// (agentID, requestID) replays the stored result without re-executing.
// Results are cached only once state was touched — mutation-free
// rejections never consume the request id.
func (w *World) Submit(in SubmitInput) (*ActionResult, error) {
	if len(in.RequestID) < 1 || len(in.RequestID) > 64 {
		return nil, validationErr("invalid_request_id")
	}
	if n := len(in.Reflection); n < 10 || n > 1000 {
		return nil, validationErr("invalid_reflection")
	}
	if !knownActions[in.Action] {
		return nil, validationErr("unknown_action")
	}
	var args actionArgs
	if len(in.Args) > 0 {
		if err := json.Unmarshal(in.Args, &args); err != nil {
			return nil, validationErr("invalid_args")
		}
	}

	a := w.agent(in.AgentID)
	if a == nil {
		return nil, validationErr("agent_not_found")
	}

	// Pairwise actions lock both agents in sorted ID order up front.
	var target *Agent
	switch in.Action {
	case ActGift, ActAttack, ActMessage, ActFriendRequest, ActFriendAccept,
		ActFriendDecline, ActPlaceBounty:
		if args.TargetAgentID == "" || args.TargetAgentID == a.ID {
			return nil, validationErr("invalid_target")
		}
		target = w.agent(args.TargetAgentID)
		if target == nil {
			return nil, validationErr("target_not_found")
		}
	}

	var unlock func()
	if target != nil {
		unlock = lockPair(a, target)
	} else {
		a.mu.Lock()
		unlock = a.mu.Unlock
	}
	defer unlock()

	if res, ok := a.replayResult(in.RequestID); ok {
		replay := *res
		replay.Replayed = true
		return &replay, nil
	}

	tick := w.Tick()
	if a.Status == StatusBanned {
		return nil, invalidStateErr("agent_banned")
	}
	if exclusiveActions[in.Action] && a.Status != StatusIdle {
		return nil, invalidStateErr("agent_not_idle")
	}

	res, rerr := w.dispatch(a, target, tick, in, args)
	if rerr != nil {
		w.recordAction(ActionRecord{
			AgentID: a.ID, RequestID: in.RequestID, Action: in.Action,
			Tick: tick, Accepted: false, ErrorCode: rerr.Code,
			Reflection: in.Reflection, Mood: in.Mood, CreatedAt: time.Now().UTC(),
		})
		return nil, rerr
	}

	res.RequestID = in.RequestID
	res.Action = in.Action
	res.Tick = tick
	res.Agent = w.summaryLocked(a)
	a.storeResult(in.RequestID, res, tick, w.tuning.IdempotencyMaxEntries)

	w.Events.Append(Event{
		Tick:      tick,
		Type:      EvJournal,
		AgentID:   a.ID,
		ZoneID:    res.Agent.ZoneID,
		RequestID: in.RequestID,
		Payload: JournalPayload{
			Reflection: in.Reflection,
			Mood:       in.Mood,
			Action:     in.Action,
			Outcome:    res.Outcome,
		},
	})
	w.recordAction(ActionRecord{
		AgentID: a.ID, RequestID: in.RequestID, Action: in.Action,
		Tick: tick, Accepted: true,
		Reflection: in.Reflection, Mood: in.Mood, CreatedAt: time.Now().UTC(),
	})
	log.Debug().
		Str("agent_id", a.ID).
		Str("action", in.Action).
		Str("outcome", res.Outcome).
		Uint64("tick", tick).
		Msg("action resolved")
	return res, nil
}

// dispatch runs with the actor lock held (and the target lock for pairwise
// actions). Handlers may additionally take gang, coop, or market locks —
// always after the agent locks, never before.
func (w *World) dispatch(a, target *Agent, tick uint64, in SubmitInput, args actionArgs) (*ActionResult, *Error) {
	switch in.Action {
	case ActMove:
		return w.doMove(a, tick, in, args)
	case ActWork:
		return w.doWork(a, tick, in, args)
	case ActCrime:
		return w.doCrime(a, tick, in, args)
	case ActBuy:
		return w.doBuy(a, tick, in, args)
	case ActSell:
		return w.doSell(a, tick, in, args)
	case ActGift:
		return w.doGift(a, target, tick, in, args)
	case ActMessage:
		return w.doMessage(a, target, tick, in, args)
	case ActFriendRequest:
		return w.doFriendRequest(a, target, tick, in)
	case ActFriendAccept:
		return w.doFriendAccept(a, target, tick, in)
	case ActFriendDecline:
		return w.doFriendDecline(a, target, tick, in)
	case ActCreateGang:
		return w.doCreateGang(a, tick, in, args)
	case ActJoinGang:
		return w.doJoinGang(a, tick, in, args)
	case ActLeaveGang:
		return w.doLeaveGang(a, tick, in)
	case ActContribute:
		return w.doContribute(a, tick, in, args)
	case ActBetrayGang:
		return w.doBetrayGang(a, tick, in)
	case ActClaimTurf:
		return w.doClaimTerritory(a, tick, in, args)
	case ActStartCoop:
		return w.doStartCoop(a, tick, in, args)
	case ActJoinCoop:
		return w.doJoinCoop(a, tick, in, args)
	case ActAttack:
		return w.doAttack(a, target, tick, in)
	case ActGamble:
		return w.doGamble(a, tick, in, args)
	case ActRest:
		return w.doRest(a, tick, in)
	case ActBuyProperty:
		return w.doBuyProperty(a, tick, in, args)
	case ActBuyDisguise:
		return w.doBuyDisguise(a, tick, in)
	case ActPlaceBounty:
		return w.doPlaceBounty(a, target, tick, in, args)
	case ActJailbreak:
		return w.doJailbreak(a, tick, in)
	case ActBribe:
		return w.doBribe(a, tick, in, args)
	}
	return nil, validationErr("unknown_action")
}
