// Actor spawning: creates the initial population with names, balances,
// and a spread of starting reputations.
package agents

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/entropy"
)

// Namer hands out unique display names. Stems are category-specific, so a
// name also hints at what the actor does.
type Namer struct {
	mu     sync.Mutex
	counts map[economy.Category]int
}

// NewNamer creates an empty namer.
func NewNamer() *Namer {
	return &Namer{counts: make(map[economy.Category]int)}
}

// Next returns the next unused name for the category, e.g. "Sentinel-03".
func (n *Namer) Next(cat economy.Category) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	stems := ProfileFor(cat).NameStems
	i := n.counts[cat]
	n.counts[cat]++
	stem := stems[i%len(stems)]
	if !cat.Valid() {
		stem = fmt.Sprintf("%s-%s", stem, cat)
	}
	return fmt.Sprintf("%s-%02d", stem, i/len(stems)+1)
}

// Spawner creates actors for the arena.
type Spawner struct {
	src        entropy.Source
	namer      *Namer
	thresholds Thresholds
	balance    float64
	repCenter  float64
	repSpread  float64
	now        func() time.Time
}

// NewSpawner creates a spawner from the economy settings.
func NewSpawner(cfg config.EconomyConfig, src entropy.Source, namer *Namer) *Spawner {
	if namer == nil {
		namer = NewNamer()
	}
	return &Spawner{
		src:        src,
		namer:      namer,
		thresholds: Thresholds{Critical: cfg.CriticalThreshold, Exhausted: cfg.ExhaustedThreshold},
		balance:    cfg.InitialBalance,
		repCenter:  cfg.InitialReputation,
		repSpread:  cfg.ReputationSpread,
		now:        time.Now,
	}
}

// SetClock sets the time source for new actors.
func (s *Spawner) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SpawnPopulation creates perCategory actors for every category.
func (s *Spawner) SpawnPopulation(perCategory int) []*Actor {
	actors := make([]*Actor, 0, perCategory*len(economy.Categories))
	for _, cat := range economy.Categories {
		for i := 0; i < perCategory; i++ {
			actors = append(actors, s.Spawn(cat))
		}
	}
	return actors
}

// Spawn creates one actor in the category.
func (s *Spawner) Spawn(cat economy.Category) *Actor {
	rep := s.repCenter
	if s.repSpread > 0 {
		rep += entropy.Between(s.src, -s.repSpread, s.repSpread)
	}
	a := NewActor(uuid.NewString(), s.namer.Next(cat), cat, s.balance, rep, s.thresholds, s.now())
	a.SetClock(s.now)
	return a
}
