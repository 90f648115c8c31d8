package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"undercity/internal/sim"
)

// LatestSnapshot returns the newest snapshot, or ErrNotFound for a fresh
// database.
func (s *Store) LatestSnapshot(ctx context.Context) (sim.Snapshot, error) {
	var raw []byte
	err := s.DB.GetContext(ctx, &raw, `SELECT data FROM snapshots ORDER BY tick DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return sim.Snapshot{}, err
	}
	var snap sim.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return sim.Snapshot{}, err
	}
	return snap, nil
}

// EventRow mirrors the events table for audit queries.
type EventRow struct {
	ID        string          `db:"id"`
	Seq       int64           `db:"seq"`
	Tick      int64           `db:"tick"`
	TS        time.Time       `db:"ts"`
	Type      string          `db:"type"`
	AgentID   string          `db:"agent_id"`
	ZoneID    string          `db:"zone_id"`
	EntityID  string          `db:"entity_id"`
	RequestID string          `db:"request_id"`
	Payload   json.RawMessage `db:"payload"`
}

func (s *Store) ListEvents(ctx context.Context, agentID string, sinceTick int64, limit int) ([]EventRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []EventRow
	err := s.DB.SelectContext(ctx, &rows, `
		SELECT id, seq, tick, ts, type, agent_id, zone_id, entity_id, request_id, payload
		FROM events
		WHERE ($1 = '' OR agent_id = $1) AND tick >= $2
		ORDER BY seq
		LIMIT $3`,
		agentID, sinceTick, limit)
	return rows, err
}

// LedgerRow mirrors the ledger_entries table.
type LedgerRow struct {
	ID               string    `db:"id"`
	Tick             int64     `db:"tick"`
	AccountID        string    `db:"account_id"`
	Type             string    `db:"type"`
	Amount           int64     `db:"amount"`
	Reason           string    `db:"reason"`
	ResultingBalance int64     `db:"resulting_balance"`
	RefEventID       string    `db:"ref_event_id"`
	CreatedAt        time.Time `db:"created_at"`
}

func (s *Store) ListLedgerEntries(ctx context.Context, accountID string, limit int) ([]LedgerRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []LedgerRow
	err := s.DB.SelectContext(ctx, &rows, `
		SELECT id, tick, account_id, type, amount, reason, resulting_balance, ref_event_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		accountID, limit)
	return rows, err
}

// ActionRequestRow mirrors the action_requests audit table.
type ActionRequestRow struct {
	ID         string    `db:"id"`
	AgentID    string    `db:"agent_id"`
	RequestID  string    `db:"request_id"`
	Action     string    `db:"action"`
	Tick       int64     `db:"tick"`
	Accepted   bool      `db:"accepted"`
	ErrorCode  string    `db:"error_code"`
	Reflection string    `db:"reflection"`
	Mood       string    `db:"mood"`
	CreatedAt  time.Time `db:"created_at"`
}

func (s *Store) ListActionRequests(ctx context.Context, agentID string, limit int) ([]ActionRequestRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []ActionRequestRow
	err := s.DB.SelectContext(ctx, &rows, `
		SELECT id, agent_id, request_id, action, tick, accepted, error_code, reflection, mood, created_at
		FROM action_requests
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		agentID, limit)
	return rows, err
}
