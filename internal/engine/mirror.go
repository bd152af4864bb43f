package engine

import (
	"time"

	"github.com/talgya/swarm-arena/internal/economy"
)

// Mirror is an optional external ledger. Calls are fire-and-forget: they
// return a reference when the record was accepted, never block the cycle,
// and never fail it.
type Mirror interface {
	LogTransaction(entry economy.LedgerEntry) (ref string, ok bool)
	LogDeath(rec DeathRecord) (ref string, ok bool)
	UpdateStats(stats Stats)
}

// DeathRecord describes a finalized actor and where its residual went.
type DeathRecord struct {
	ActorID   string             `json:"actor_id"`
	Name      string             `json:"name"`
	Category  economy.Category   `json:"category"`
	Cycle     uint64             `json:"cycle"`
	Time      time.Time          `json:"time"`
	Completed int                `json:"completed"`
	Scams     int                `json:"scams"`
	Earned    float64            `json:"earned"`
	Spent     float64            `json:"spent"`
	Residual  float64            `json:"residual"`
	Winner    string             `json:"winner,omitempty"`
	Shares    map[string]float64 `json:"shares,omitempty"`
	MirrorRef string             `json:"mirror_ref,omitempty"`
}

type nopMirror struct{}

func (nopMirror) LogTransaction(economy.LedgerEntry) (string, bool) { return "", false }
func (nopMirror) LogDeath(DeathRecord) (string, bool)               { return "", false }
func (nopMirror) UpdateStats(Stats)                                 {}
