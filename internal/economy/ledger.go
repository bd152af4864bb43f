package economy

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LedgerEntry records one settled payment. It only exists for a valid settlement.
type LedgerEntry struct {
	ID            string    `json:"id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Amount        float64   `json:"amount"`
	Category      Category  `json:"category"`
	Timestamp     time.Time `json:"timestamp"`
	SettlementRef string    `json:"settlement_ref"`
	MirrorRef     *string   `json:"mirror_ref,omitempty"`
}

// Ledger is the append-only history of settled payments. Entries are kept in
// completion order; Trim drops the oldest.
type Ledger struct {
	mu      sync.Mutex
	entries []LedgerEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a settled payment and returns the stored entry.
func (l *Ledger) Append(from, to string, amount float64, cat Category, ref string, now time.Time) LedgerEntry {
	e := LedgerEntry{
		ID:            uuid.NewString(),
		From:          from,
		To:            to,
		Amount:        amount,
		Category:      cat,
		Timestamp:     now,
		SettlementRef: ref,
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return e
}

// SetMirrorRef attaches an external mirror reference to an entry, if still held.
func (l *Ledger) SetMirrorRef(id, ref string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].ID == id {
			r := ref
			l.entries[i].MirrorRef = &r
			return true
		}
	}
	return false
}

// Trim keeps only the most recent max entries. Returns how many were dropped.
func (l *Ledger) Trim(max int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if max < 0 || len(l.entries) <= max {
		return 0
	}
	dropped := len(l.entries) - max
	kept := make([]LedgerEntry, max)
	copy(kept, l.entries[dropped:])
	l.entries = kept
	return dropped
}

// Recent returns up to n most recent entries, newest last.
func (l *Ledger) Recent(n int) []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]LedgerEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
