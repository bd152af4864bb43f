// Simulation ties together all arena systems and runs them once per cycle.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/entropy"
	"github.com/talgya/swarm-arena/internal/llm"
	"github.com/talgya/swarm-arena/internal/payment"
	"github.com/talgya/swarm-arena/internal/social"
)

// Options carries the collaborators of a Simulation. Zero values are filled
// with defaults: no reasoning, no mirror, a seeded source, the wall clock.
type Options struct {
	Reasoner *llm.Reasoner
	Mirror   Mirror
	Source   entropy.Source
	Now      func() time.Time

	// Actors replaces the spawned population when non-nil.
	Actors []*agents.Actor
}

// Simulation holds the complete arena state. It exclusively owns actors, the
// work queue, the cartel and alliance registries, and the ledger; readers get
// copies.
type Simulation struct {
	cfg      config.Config
	mind     *llm.Reasoner
	mirror   Mirror
	src      entropy.Source
	now      func() time.Time
	payments *payment.Protocol

	// Fixed after construction; actors guard their own state.
	actors []*agents.Actor
	index  map[string]*agents.Actor

	queue     []*economy.WorkItem // slice guarded by mu; items mutated only by the matcher
	ledger    *economy.Ledger
	market    *economy.Market
	cartels   *social.CartelRegistry
	alliances *social.AllianceRegistry
	metrics   *Metrics
	bus       *Bus

	mu      sync.Mutex // guards queue and everything below
	cycle   uint64
	events  []Event
	totals  Totals
	adaptAt int // transaction count at the last strategy round
}

// Totals are running counters since the arena started.
type Totals struct {
	Transactions int     `json:"transactions"`
	Failed       int     `json:"failed"`
	Scams        int     `json:"scams"`
	Deaths       int     `json:"deaths"`
	Volume       float64 `json:"volume"`    // settled payments
	Inflow       float64 `json:"inflow"`    // all value entering actor balances from clients
	Upkeep       float64 `json:"upkeep"`    // value charged as upkeep
	Destroyed    float64 `json:"destroyed"` // residuals with no survivors to inherit
	Referrals    float64 `json:"referrals"`
}

// Stats is the aggregate arena projection.
type Stats struct {
	Cycle            uint64    `json:"cycle"`
	State            string    `json:"state,omitempty"`
	Actors           int       `json:"actors"`
	Active           int       `json:"active"`
	Critical         int       `json:"critical"`
	Exhausted        int       `json:"exhausted"`
	TotalBalance     float64   `json:"total_balance"`
	AverageBalance   float64   `json:"average_balance"`
	Gini             float64   `json:"gini"`
	Cartels          int       `json:"cartels"`
	Alliances        int       `json:"alliances"`
	PendingWork      int       `json:"pending_work"`
	LedgerSize       int       `json:"ledger_size"`
	ReasoningEnabled bool      `json:"reasoning_enabled"`
	BreakerOpen      bool      `json:"breaker_open"`
	ReasonFailures   int       `json:"reasoning_failures"` // consecutive, resets on success
	Totals           Totals    `json:"totals"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewSimulation creates a Simulation and spawns its population.
func NewSimulation(cfg config.Config, opts Options) *Simulation {
	if opts.Mirror == nil {
		opts.Mirror = nopMirror{}
	}
	if opts.Source == nil {
		opts.Source = entropy.NewSeeded(cfg.Seed)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	payments := payment.NewProtocol()
	payments.Now = opts.Now

	s := &Simulation{
		cfg:       cfg,
		mind:      opts.Reasoner,
		mirror:    opts.Mirror,
		src:       opts.Source,
		now:       opts.Now,
		payments:  payments,
		ledger:    economy.NewLedger(),
		market:    economy.NewMarket(cfg.Seed, cfg.Economy.PriceDrift),
		cartels:   social.NewCartelRegistry(),
		alliances: social.NewAllianceRegistry(),
		metrics:   NewMetrics(cfg.Metrics.HistorySize, cfg.Metrics.VolumeWindow, cfg.Metrics.TopN),
		bus:       NewBus(),
	}

	actors := opts.Actors
	if actors == nil {
		spawner := agents.NewSpawner(cfg.Economy, s.src, nil)
		spawner.SetClock(opts.Now)
		actors = spawner.SpawnPopulation(cfg.Economy.ActorsPerCategory)
	}
	s.actors = actors
	s.index = make(map[string]*agents.Actor, len(actors))
	for _, a := range actors {
		a.SetClock(opts.Now)
		s.index[a.ID] = a
	}

	slog.Info("arena initialized",
		"actors", len(actors),
		"categories", len(economy.Categories),
		"reasoning", s.mind.Enabled(),
	)
	return s
}

// RunCycle advances the arena by one cycle in fixed step order. The cycle is
// detached from ctx cancellation so a stop request lets it finish.
func (s *Simulation) RunCycle(ctx context.Context) Stats {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	s.mu.Lock()
	s.cycle++
	cycle := s.cycle
	s.mu.Unlock()

	s.market.Advance(cycle)
	generated := s.generateWork()
	s.matchWork(ctx, cycle)
	s.pruneQueue()
	s.chargeUpkeep()
	deaths := s.processDeaths(cycle)
	s.maintainCartels(cycle)
	s.maybeFormCartel(ctx, cycle)
	s.maybeManageAlliance(cycle)
	s.maybeAdaptStrategies(ctx, cycle)
	s.ledger.Trim(s.cfg.Engine.LedgerCap)

	now := s.now()
	snap := s.metrics.Record(cycle, now, s.Agents())
	stats := s.Stats()
	s.mirror.UpdateStats(stats)

	s.publish(Event{Kind: EventStats, Cycle: cycle, Time: now, Data: stats})
	s.publish(Event{Kind: EventAgents, Cycle: cycle, Time: now, Data: s.Agents()})
	s.publish(Event{Kind: EventHistory, Cycle: cycle, Time: now, Data: snap})

	slog.Info("cycle complete",
		"cycle", cycle,
		"generated", generated,
		"transactions", stats.Totals.Transactions,
		"active", stats.Active,
		"critical", stats.Critical,
		"deaths", len(deaths),
		"gini", fmt.Sprintf("%.3f", stats.Gini),
		"cartels", stats.Cartels,
		"alliances", stats.Alliances,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return stats
}

// publish records e in the event ring (unless it is a snapshot kind) and
// broadcasts it.
func (s *Simulation) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	if !e.Kind.snapshotKind() {
		s.mu.Lock()
		s.events = append(s.events, e)
		if limit := s.cfg.Engine.EventRingSize; limit > 0 && len(s.events) > limit {
			s.events = s.events[len(s.events)-limit:]
		}
		s.mu.Unlock()
	}
	s.bus.Publish(e)
}

func (s *Simulation) emitReasoning(cycle uint64, r agents.Reasoning) {
	s.publish(Event{
		Kind:        EventReasoning,
		Cycle:       cycle,
		Description: fmt.Sprintf("%s %s: %s", r.ActorName, r.Kind, r.Decision),
		Data:        r,
	})
}

// Cycle returns the number of completed or in-progress cycles.
func (s *Simulation) Cycle() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// ActorCount returns the population size, dead actors included.
func (s *Simulation) ActorCount() int {
	return len(s.actors)
}

// Stats computes the aggregate projection.
func (s *Simulation) Stats() Stats {
	st := Stats{
		Actors:           len(s.actors),
		Cartels:          s.cartels.Len(),
		Alliances:        s.alliances.Len(),
		LedgerSize:       s.ledger.Len(),
		ReasoningEnabled: s.mind.Enabled(),
		Timestamp:        s.now(),
	}
	if b := s.mind.Breaker(); b != nil {
		st.BreakerOpen = b.Open()
		st.ReasonFailures = b.Failures()
	}
	var balances []float64
	for _, a := range s.actors {
		snap := a.Snapshot()
		switch snap.Status {
		case agents.StatusExhausted:
			st.Exhausted++
			continue
		case agents.StatusCritical:
			st.Critical++
		default:
			st.Active++
		}
		balances = append(balances, snap.Balance)
		st.TotalBalance += snap.Balance
	}
	if n := len(balances); n > 0 {
		st.AverageBalance = st.TotalBalance / float64(n)
	}
	st.Gini = Gini(balances)

	s.mu.Lock()
	st.Cycle = s.cycle
	st.Totals = s.totals
	st.PendingWork = len(s.queue)
	s.mu.Unlock()
	return st
}

// Agents returns snapshots of every actor, richest first.
func (s *Simulation) Agents() []agents.Snapshot {
	out := make([]agents.Snapshot, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a.Snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Agent returns one actor's snapshot.
func (s *Simulation) Agent(id string) (agents.Snapshot, bool) {
	a, ok := s.index[id]
	if !ok {
		return agents.Snapshot{}, false
	}
	return a.Snapshot(), true
}

// History returns the retained balance snapshots, oldest first.
func (s *Simulation) History() []BalanceSnapshot {
	return s.metrics.History()
}

// LatestSnapshot returns the most recent balance snapshot, if any cycle ran.
func (s *Simulation) LatestSnapshot() (BalanceSnapshot, bool) {
	return s.metrics.Latest()
}

// Ledger returns up to n most recent ledger entries, oldest first.
func (s *Simulation) Ledger(n int) []economy.LedgerEntry {
	return s.ledger.Recent(n)
}

// Events returns up to n most recent ring events, oldest first.
func (s *Simulation) Events(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}

// Cartels returns the live cartels.
func (s *Simulation) Cartels() []social.Cartel {
	return s.cartels.All()
}

// Alliances returns the live alliances.
func (s *Simulation) Alliances() []social.Alliance {
	return s.alliances.All()
}

// Market returns the current market entries.
func (s *Simulation) Market() []economy.MarketEntry {
	return s.market.Entries()
}

// Subscribe registers an event subscriber; see Bus.Subscribe.
func (s *Simulation) Subscribe(buffer int) (int, <-chan Event) {
	return s.bus.Subscribe(buffer)
}

// Unsubscribe removes an event subscriber.
func (s *Simulation) Unsubscribe(id int) {
	s.bus.Unsubscribe(id)
}

// living returns actors that are not finalized and not exhausted.
func (s *Simulation) living() []*agents.Actor {
	out := make([]*agents.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		if a.Alive() && a.Status() != agents.StatusExhausted {
			out = append(out, a)
		}
	}
	return out
}

func (s *Simulation) addTotals(f func(t *Totals)) {
	s.mu.Lock()
	f(&s.totals)
	s.mu.Unlock()
}
