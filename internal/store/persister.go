package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"undercity/internal/ledger"
	"undercity/internal/sim"
)

// Persister implements sim.Persister on top of a Store. Writes go through a
// single ordered queue drained by one goroutine so the simulation never
// blocks on the database; when the queue is full the write is dropped and
// counted, which trades audit completeness for liveness.
type Persister struct {
	store *Store
	queue chan func(context.Context)
	done  chan struct{}
}

func NewPersister(s *Store) *Persister {
	p := &Persister{
		store: s,
		queue: make(chan func(context.Context), 4096),
		done:  make(chan struct{}),
	}
	go p.drain()
	return p
}

func (p *Persister) drain() {
	defer close(p.done)
	for op := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		op(ctx)
		cancel()
	}
}

// Close drains outstanding writes and stops the worker.
func (p *Persister) Close() {
	close(p.queue)
	<-p.done
}

func (p *Persister) enqueue(kind string, op func(context.Context)) {
	select {
	case p.queue <- op:
	default:
		log.Warn().Str("kind", kind).Msg("persist queue full, write dropped")
	}
}

func (p *Persister) SaveEvent(ev sim.Event) {
	p.enqueue("event", func(ctx context.Context) {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			payload = nil
		}
		_, err = p.store.DB.ExecContext(ctx, `
			INSERT INTO events (id, seq, tick, ts, type, agent_id, zone_id, entity_id, request_id, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			ev.ID, ev.Seq, int64(ev.Tick), ev.Timestamp, ev.Type,
			ev.AgentID, ev.ZoneID, ev.EntityID, ev.RequestID, payload)
		if err != nil {
			log.Error().Err(err).Str("event_id", ev.ID).Msg("persist event failed")
		}
	})
}

func (p *Persister) SaveLedgerEntry(e ledger.Entry) {
	p.enqueue("ledger", func(ctx context.Context) {
		_, err := p.store.DB.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, tick, account_id, type, amount, reason, resulting_balance, ref_event_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, int64(e.Tick), e.AccountID, string(e.Type), e.Amount,
			e.Reason, e.ResultingBalance, e.RefEventID, e.CreatedAt)
		if err != nil {
			log.Error().Err(err).Str("entry_id", e.ID).Msg("persist ledger entry failed")
		}
	})
}

func (p *Persister) SaveActionRequest(rec sim.ActionRecord) {
	id := sim.NewID()
	p.enqueue("action", func(ctx context.Context) {
		_, err := p.store.DB.ExecContext(ctx, `
			INSERT INTO action_requests (id, agent_id, request_id, action, tick, accepted, error_code, reflection, mood, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, rec.AgentID, rec.RequestID, rec.Action, int64(rec.Tick),
			rec.Accepted, rec.ErrorCode, rec.Reflection, rec.Mood, rec.CreatedAt)
		if err != nil {
			log.Error().Err(err).Str("request_id", rec.RequestID).Msg("persist action request failed")
		}
	})
}

func (p *Persister) SaveSnapshot(snap sim.Snapshot) {
	p.enqueue("snapshot", func(ctx context.Context) {
		data, err := json.Marshal(snap)
		if err != nil {
			log.Error().Err(err).Uint64("tick", snap.Tick).Msg("marshal snapshot failed")
			return
		}
		_, err = p.store.DB.ExecContext(ctx, `
			INSERT INTO snapshots (tick, taken_at, data)
			VALUES ($1, $2, $3)
			ON CONFLICT (tick) DO UPDATE SET taken_at = EXCLUDED.taken_at, data = EXCLUDED.data`,
			int64(snap.Tick), snap.TakenAt, data)
		if err != nil {
			log.Error().Err(err).Uint64("tick", snap.Tick).Msg("persist snapshot failed")
		}
	})
}
