// Package ledger is the append-only financial journal backing every cash
// balance in the world: agent wallets and gang treasuries alike. Balances
// change only by appending entries; a debit that would go negative fails
// closed before any mutation.
package ledger

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

type EntryType string

const (
	Credit EntryType = "credit"
	Debit  EntryType = "debit"
)

// Entry is one immutable line of the journal. ResultingBalance is stored
// redundantly so replay divergence is detectable during audits.
type Entry struct {
	ID               string    `json:"id"`
	Tick             uint64    `json:"tick"`
	AccountID        string    `json:"account_id"`
	Type             EntryType `json:"type"`
	Amount           int64     `json:"amount"`
	Reason           string    `json:"reason"`
	ResultingBalance int64     `json:"resulting_balance"`
	RefEventID       string    `json:"ref_event_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Sink receives every appended entry, e.g. for write-through persistence.
// Calls happen while the ledger lock is held; implementations must not call
// back into the ledger.
type Sink func(Entry)

type Ledger struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []Entry
	newID    func() string
	sink     Sink
}

func New(newID func() string, sink Sink) *Ledger {
	return &Ledger{
		balances: make(map[string]int64),
		newID:    newID,
		sink:     sink,
	}
}

// Credit appends a credit entry and returns the resulting balance.
func (l *Ledger) Credit(tick uint64, accountID string, amount int64, reason, refEventID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(tick, accountID, Credit, amount, reason, refEventID), nil
}

// Debit appends a debit entry, failing closed if the account cannot cover it.
func (l *Ledger) Debit(tick uint64, accountID string, amount int64, reason, refEventID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[accountID] < amount {
		return l.balances[accountID], ErrInsufficientBalance
	}
	return l.appendLocked(tick, accountID, Debit, amount, reason, refEventID), nil
}

// Transfer debits from and credits to under one lock acquisition, so no
// interleaved debit can observe the money in two places or neither.
func (l *Ledger) Transfer(tick uint64, from, to string, amount int64, reason, refEventID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.appendLocked(tick, from, Debit, amount, reason, refEventID)
	l.appendLocked(tick, to, Credit, amount, reason, refEventID)
	return nil
}

func (l *Ledger) appendLocked(tick uint64, accountID string, typ EntryType, amount int64, reason, refEventID string) int64 {
	bal := l.balances[accountID]
	if typ == Debit {
		bal -= amount
	} else {
		bal += amount
	}
	l.balances[accountID] = bal
	e := Entry{
		ID:               l.newID(),
		Tick:             tick,
		AccountID:        accountID,
		Type:             typ,
		Amount:           amount,
		Reason:           reason,
		ResultingBalance: bal,
		RefEventID:       refEventID,
		CreatedAt:        time.Now().UTC(),
	}
	l.entries = append(l.entries, e)
	if l.sink != nil {
		l.sink(e)
	}
	return bal
}

func (l *Ledger) Balance(accountID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}

// Entries returns a copy of the account's journal in append order, capped
// at limit when limit > 0.
func (l *Ledger) Entries(accountID string, limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, 16)
	for _, e := range l.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Replay recomputes the balance from the journal alone. It must equal
// Balance for every account; a mismatch means the journal was bypassed.
func (l *Ledger) Replay(accountID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var bal int64
	for _, e := range l.entries {
		if e.AccountID != accountID {
			continue
		}
		if e.Type == Debit {
			bal -= e.Amount
		} else {
			bal += e.Amount
		}
	}
	return bal
}

// Accounts returns all account IDs with their current balances.
func (l *Ledger) Accounts() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64, len(l.balances))
	for id, bal := range l.balances {
		out[id] = bal
	}
	return out
}

// Restore seeds an account balance from a snapshot without journaling.
// Only valid before the world starts accepting actions.
func (l *Ledger) Restore(accountID string, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountID] = balance
}
