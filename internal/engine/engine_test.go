package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/entropy"
	"github.com/talgya/swarm-arena/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var thresholds = agents.Thresholds{Critical: 0.10, Exhausted: 0.01}

func quietConfig() config.Config {
	cfg := config.Default()
	cfg.Economy.WorkPerCycle = 0
	cfg.Economy.PriceDrift = 0
	cfg.Cartel.FormChance = 0
	cfg.Alliance.ManageChance = 0
	return cfg
}

func actor(id string, cat economy.Category, balance, rep float64) *agents.Actor {
	return agents.NewActor(id, "Actor-"+id, cat, balance, rep, thresholds, time.Now())
}

type recordingMirror struct {
	mu     sync.Mutex
	txs    []economy.LedgerEntry
	deaths []DeathRecord
	stats  int
}

func (m *recordingMirror) LogTransaction(e economy.LedgerEntry) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, e)
	return "mirror-" + e.ID, true
}

func (m *recordingMirror) LogDeath(r DeathRecord) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deaths = append(m.deaths, r)
	return "", false
}

func (m *recordingMirror) UpdateStats(Stats) {
	m.mu.Lock()
	m.stats++
	m.mu.Unlock()
}

func TestGiniProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("gini within [0, 1]", prop.ForAll(
		func(bs []float64) bool {
			g := Gini(bs)
			return g >= 0 && g <= 1
		},
		gen.SliceOf(gen.Float64Range(0, 1000)),
	))

	properties.Property("equal balances give zero", prop.ForAll(
		func(v float64, n int) bool {
			bs := make([]float64, n)
			for i := range bs {
				bs[i] = v
			}
			return math.Abs(Gini(bs)) < 1e-9
		},
		gen.Float64Range(0.01, 100),
		gen.IntRange(1, 50),
	))

	properties.Property("monopoly gives (n-1)/n", prop.ForAll(
		func(v float64, n int) bool {
			bs := make([]float64, n)
			bs[n-1] = v
			return math.Abs(Gini(bs)-float64(n-1)/float64(n)) < 1e-9
		},
		gen.Float64Range(0.01, 100),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)

	assert.Equal(t, 0.0, Gini(nil))
	assert.Equal(t, 0.0, Gini([]float64{0, 0, 0}))
}

func TestRedistributeHalfToWinnerHalfShared(t *testing.T) {
	survivors := []*agents.Actor{
		actor("s1", economy.CategoryResearch, 1, 50),
		actor("s2", economy.CategoryResearch, 1, 50),
		actor("s3", economy.CategoryTranslation, 1, 50),
		actor("s4", economy.CategoryCodeReview, 1, 50),
	}
	d := Redistribute(1.0, survivors, &entropy.Fixed{Values: []float64{0.3}})
	require.Equal(t, "s2", d.Winner)
	assert.InDelta(t, 0.625, d.Shares["s2"], 1e-12)
	for _, id := range []string{"s1", "s3", "s4"} {
		assert.InDelta(t, 0.125, d.Shares[id], 1e-12)
	}
	assert.InDelta(t, 1.0, d.Total(), 1e-12)

	assert.Empty(t, Redistribute(0, survivors, entropy.NewSeeded(1)).Shares)
	assert.Empty(t, Redistribute(1, nil, entropy.NewSeeded(1)).Shares)
}

func TestDeathFinalizedOnceAndResidualConserved(t *testing.T) {
	cfg := quietConfig()
	cfg.Economy.Upkeep = 0
	doomed := actor("d", economy.CategoryResearch, 0.10, 50)
	heirs := []*agents.Actor{
		actor("h1", economy.CategoryResearch, 1, 50),
		actor("h2", economy.CategoryTranslation, 1, 50),
	}
	mirror := &recordingMirror{}
	sim := NewSimulation(cfg, Options{
		Actors: append([]*agents.Actor{doomed}, heirs...),
		Mirror: mirror,
		Source: entropy.NewSeeded(7),
	})

	assert.Equal(t, agents.StatusCritical, doomed.Status())
	doomed.Debit(0.095)
	assert.Equal(t, agents.StatusExhausted, doomed.Status())

	before := heirs[0].BalanceNow() + heirs[1].BalanceNow()
	recs := sim.processDeaths(1)
	require.Len(t, recs, 1)
	assert.InDelta(t, 0.005, recs[0].Residual, 1e-12)
	assert.Empty(t, sim.processDeaths(2), "second scan finds nothing")

	after := heirs[0].BalanceNow() + heirs[1].BalanceNow()
	assert.InDelta(t, before+0.005, after, 1e-12)
	assert.Equal(t, 0.0, doomed.BalanceNow())
	assert.Len(t, mirror.deaths, 1)
	assert.Equal(t, 1, sim.Stats().Totals.Deaths)
}

func TestCartelScenario(t *testing.T) {
	cat := economy.CategoryTranslation
	var calls atomic.Int32
	answers := []string{
		`{"join": true, "multiplier": 1.4, "reason": "strong"}`,
		`{"join": true, "multiplier": 1.3, "reason": "fair"}`,
		`{"join": true, "multiplier": 1.2, "reason": "cautious"}`,
	}
	provider := llm.ProviderFunc(func(ctx context.Context, _ []llm.Message, _ string) (string, error) {
		return answers[int(calls.Add(1)-1)%len(answers)], nil
	})
	members := []*agents.Actor{
		actor("c70", cat, 1, 70),
		actor("c75", cat, 1, 75),
		actor("c80", cat, 1, 80),
	}
	sim := NewSimulation(quietConfig(), Options{
		Actors:   members,
		Reasoner: llm.NewReasoner(provider, llm.NewBreaker(3), time.Second),
	})
	sim.market.SetPrice(cat, 0.02)

	c, ok := sim.negotiateCartel(context.Background(), 1, cat)
	require.True(t, ok)
	assert.Len(t, c.Members, 3)
	assert.InDelta(t, 0.02*1.3, c.Price, 1e-9)
	for _, a := range members {
		assert.True(t, a.InCartel())
		assert.Equal(t, agents.PricingPremium, a.Snapshot().Strategy.Pricing)
	}

	_, ok = sim.negotiateCartel(context.Background(), 2, cat)
	assert.False(t, ok, "one cartel per category")

	// A member defects; the cartel falls below quorum and dissolves.
	members[0].LeaveCartel()
	sim.maintainCartels(3)
	assert.Equal(t, 0, sim.cartels.Len())
	for _, a := range members {
		assert.False(t, a.InCartel())
	}
	assert.Equal(t, EventCartelDissolved, sim.Events(1)[0].Kind)
}

func TestRegisteredCartelMembersSkipNegotiation(t *testing.T) {
	cat := economy.CategoryTranslation
	var calls atomic.Int32
	provider := llm.ProviderFunc(func(ctx context.Context, _ []llm.Message, _ string) (string, error) {
		calls.Add(1)
		return `{"join": true, "multiplier": 1.3, "reason": "fair"}`, nil
	})
	sim := NewSimulation(quietConfig(), Options{
		Actors: []*agents.Actor{
			actor("c70", cat, 1, 70),
			actor("c75", cat, 1, 75),
			actor("c80", cat, 1, 80),
		},
		Reasoner: llm.NewReasoner(provider, llm.NewBreaker(3), time.Second),
	})
	_, err := sim.cartels.Form(economy.CategoryResearch, []string{"c80", "r1", "r2"}, 0.1, time.Now())
	require.NoError(t, err)

	_, ok := sim.negotiateCartel(context.Background(), 1, cat)
	assert.False(t, ok, "two free actors are below quorum")
	assert.Equal(t, int32(0), calls.Load())
	_, formed := sim.cartels.Get(cat)
	assert.False(t, formed)
}

func TestCartelNeedsQuorumOfJoiners(t *testing.T) {
	cat := economy.CategoryResearch
	sim := NewSimulation(quietConfig(), Options{
		Actors: []*agents.Actor{
			actor("a", cat, 1, 70),
			actor("b", cat, 1, 70),
			actor("c", cat, 0.2, 70), // too poor to join on heuristics
		},
		Source: entropy.NewSeeded(3),
	})
	_, ok := sim.negotiateCartel(context.Background(), 1, cat)
	assert.False(t, ok)
	assert.Equal(t, 0, sim.cartels.Len())
}

func TestHonestTransactionSettles(t *testing.T) {
	cfg := quietConfig()
	cat := economy.CategoryResearch
	a := actor("p", cat, 1, 50)
	mirror := &recordingMirror{}
	sim := NewSimulation(cfg, Options{
		Actors: []*agents.Actor{a},
		Mirror: mirror,
		Source: &entropy.Fixed{Values: []float64{0.99}},
	})
	id, ch := sim.Subscribe(64)
	defer sim.Unsubscribe(id)

	item := economy.NewWorkItem("client-01", cat, economy.BasePrice(cat), "literature review", time.Now())
	sim.Submit(item)
	stats := sim.RunCycle(context.Background())

	assert.Equal(t, economy.WorkCompleted, item.Status)
	assert.False(t, item.Scam)
	assert.Equal(t, 1, stats.Totals.Transactions)
	assert.Equal(t, 0, stats.PendingWork, "terminal items are pruned")

	entries := sim.Ledger(10)
	require.Len(t, entries, 1)
	assert.Equal(t, item.Payment, entries[0].Amount)
	assert.Equal(t, "p", entries[0].To)
	assert.True(t, strings.HasPrefix(entries[0].SettlementRef, "stl_"))
	require.NotNil(t, entries[0].MirrorRef)
	assert.Len(t, mirror.txs, 1)
	assert.Equal(t, 1, mirror.stats)

	assert.InDelta(t, 1+item.Payment-cfg.Economy.Upkeep, a.BalanceNow(), 1e-12)

	kinds := map[EventKind]int{}
	for len(ch) > 0 {
		kinds[(<-ch).Kind]++
	}
	assert.Equal(t, 1, kinds[EventTransaction])
	assert.Equal(t, 1, kinds[EventStats])
	assert.Equal(t, 1, kinds[EventAgents])
	assert.Equal(t, 1, kinds[EventHistory])
	assert.GreaterOrEqual(t, kinds[EventReasoning], 2)
}

func TestScamSkipsLedger(t *testing.T) {
	cfg := quietConfig()
	cat := economy.CategoryResearch
	a := actor("s", cat, 0.05, 30)
	sim := NewSimulation(cfg, Options{
		Actors: []*agents.Actor{a},
		Source: &entropy.Fixed{Values: []float64{0}},
	})
	item := economy.NewWorkItem("client-02", cat, 0.04, "market scan", time.Now())
	sim.Submit(item)
	stats := sim.RunCycle(context.Background())

	assert.True(t, item.Scam)
	assert.Equal(t, economy.WorkCompleted, item.Status)
	assert.Empty(t, sim.Ledger(10))
	assert.Equal(t, 1, stats.Totals.Scams)
	assert.Equal(t, 0, stats.Totals.Transactions)

	snap := a.Snapshot()
	assert.Equal(t, 1, snap.Scams)
	assert.Equal(t, 1, snap.Completed)
	assert.InDelta(t, 0.0, snap.Reputation, 1e-12)
	assert.InDelta(t, 0.05+0.04-cfg.Economy.Upkeep, snap.Balance, 1e-12)

	var found bool
	for _, e := range sim.Events(0) {
		found = found || e.Kind == EventScamDetected
	}
	assert.True(t, found)
}

func TestSettlesAtOfferedPayment(t *testing.T) {
	cat := economy.CategoryTranslation
	base := economy.BasePrice(cat)

	cartel := actor("x", cat, 1, 50)
	cartel.JoinCartel(base * 2.5)
	premium := actor("p", economy.CategoryResearch, 1, 80)
	premium.Strategy.Pricing = agents.PricingPremium
	aggressive := actor("g", economy.CategoryCodeReview, 1, 50)
	aggressive.Strategy.Pricing = agents.PricingAggressive

	sim := NewSimulation(quietConfig(), Options{
		Actors: []*agents.Actor{cartel, premium, aggressive},
		Source: &entropy.Fixed{Values: []float64{0.99}},
	})
	offers := map[*agents.Actor]*economy.WorkItem{
		cartel:     economy.NewWorkItem("client-03", cat, base, "menu", time.Now()),
		premium:    economy.NewWorkItem("client-04", economy.CategoryResearch, 0.9*economy.BasePrice(economy.CategoryResearch), "survey", time.Now()),
		aggressive: economy.NewWorkItem("client-05", economy.CategoryCodeReview, 0.04, "review", time.Now()),
	}
	offered := make(map[string]float64)
	for _, item := range offers {
		offered[item.ID] = item.Payment
		sim.Submit(item)
	}
	sim.RunCycle(context.Background())

	ledger := sim.Ledger(10)
	require.Len(t, ledger, 3)
	for a, item := range offers {
		assert.Equal(t, economy.WorkCompleted, item.Status, a.ID)
		assert.Equal(t, offered[item.ID], item.Payment, "offer is never rewritten")
		assert.Greater(t, item.Quote, 0.0)
	}
	for _, e := range ledger {
		assert.Equal(t, offered[findItem(t, offers, e.To).ID], e.Amount)
	}
	assert.InDelta(t, base*2.5, offers[cartel].Quote, 1e-12)
}

func findItem(t *testing.T, offers map[*agents.Actor]*economy.WorkItem, actorID string) *economy.WorkItem {
	t.Helper()
	for a, item := range offers {
		if a.ID == actorID {
			return item
		}
	}
	t.Fatalf("no item for %s", actorID)
	return nil
}

func TestRankingReactsWithinCycle(t *testing.T) {
	cat := economy.CategoryResearch
	a := actor("a", cat, 1, 60)
	b := actor("b", cat, 1, 50)
	sim := NewSimulation(quietConfig(), Options{
		Actors: []*agents.Actor{a, b},
		Source: &entropy.Fixed{Values: []float64{0}},
	})
	first := economy.NewWorkItem("client-01", cat, 0.04, "one", time.Now())
	second := economy.NewWorkItem("client-02", cat, 0.04, "two", time.Now())
	sim.Submit(first)
	sim.Submit(second)
	sim.RunCycle(context.Background())

	assert.Equal(t, "a", first.AssignedTo)
	assert.True(t, first.Scam)
	assert.InDelta(t, 30, a.ReputationNow(), 1e-9)
	assert.Equal(t, "b", second.AssignedTo, "a scam drops the actor below its rival for the next item")
}

func TestNoProviderFailsItem(t *testing.T) {
	sim := NewSimulation(quietConfig(), Options{
		Actors: []*agents.Actor{actor("only", economy.CategoryResearch, 1, 50)},
	})
	item := economy.NewWorkItem("client-04", economy.CategorySecurityAudit, 0.08, "pentest", time.Now())
	sim.Submit(item)
	st := sim.RunCycle(context.Background())
	assert.Equal(t, economy.WorkFailed, item.Status)
	assert.Equal(t, 1, st.Totals.Failed)
}

func TestManyItemsForOneActorAreSerialized(t *testing.T) {
	cfg := quietConfig()
	cfg.Engine.MatchWorkers = 8
	cat := economy.CategoryDataAnalysis
	a := actor("busy", cat, 1, 50)
	b := actor("other", economy.CategoryResearch, 1, 50)
	sim := NewSimulation(cfg, Options{
		Actors: []*agents.Actor{a, b},
		Source: entropy.NewSeeded(11),
	})
	const n = 40
	for i := 0; i < n; i++ {
		sim.Submit(economy.NewWorkItem("client-05", cat, economy.BasePrice(cat), "job", time.Now()))
		sim.Submit(economy.NewWorkItem("client-06", economy.CategoryResearch, economy.BasePrice(economy.CategoryResearch), "job", time.Now()))
	}
	st := sim.RunCycle(context.Background())

	done := a.Snapshot().Completed + b.Snapshot().Completed
	assert.Equal(t, st.Totals.Transactions+st.Totals.Scams, done)
	assert.Equal(t, 2*n, done+st.Totals.Failed)
}

func TestConservation(t *testing.T) {
	cfg := config.Default()
	cfg.Economy.ActorsPerCategory = 2
	cfg.Economy.Upkeep = 0.04
	cfg.Cartel.FormChance = 0.5
	cfg.Alliance.ManageChance = 1
	sim := NewSimulation(cfg, Options{Source: entropy.NewSeeded(99)})

	initial := float64(sim.ActorCount()) * cfg.Economy.InitialBalance
	for i := 0; i < 40; i++ {
		sim.RunCycle(context.Background())
	}

	var total float64
	finalized := 0
	for _, s := range sim.Agents() {
		total += s.Balance
		if s.FinalizedAt != nil {
			finalized++
		}
	}
	st := sim.Stats()
	expected := initial + st.Totals.Inflow - st.Totals.Upkeep - st.Totals.Destroyed
	assert.InDelta(t, expected, total, 1e-6)
	assert.Equal(t, finalized, st.Totals.Deaths)
	assert.LessOrEqual(t, len(sim.History()), cfg.Metrics.HistorySize)
	assert.GreaterOrEqual(t, st.Gini, 0.0)
	assert.LessOrEqual(t, st.Gini, 1.0)
	for _, c := range sim.Cartels() {
		assert.GreaterOrEqual(t, len(c.Members), 3)
	}
	for _, al := range sim.Alliances() {
		assert.NotEqual(t, al.A.Category, al.B.Category)
	}
}

func TestBreakerTripsEngineWide(t *testing.T) {
	cfg := quietConfig()
	cat := economy.CategoryResearch
	failing := llm.ProviderFunc(func(ctx context.Context, _ []llm.Message, _ string) (string, error) {
		return "", errors.New("overloaded")
	})
	breaker := llm.NewBreaker(3)
	sim := NewSimulation(cfg, Options{
		Actors:   []*agents.Actor{actor("a", cat, 1, 50), actor("b", cat, 1, 55)},
		Reasoner: llm.NewReasoner(failing, breaker, time.Second),
		Source:   &entropy.Fixed{Values: []float64{0.99}},
	})
	for i := 0; i < 3; i++ {
		sim.Submit(economy.NewWorkItem("client-07", cat, economy.BasePrice(cat), "job", time.Now()))
	}
	st := sim.RunCycle(context.Background())
	assert.True(t, st.BreakerOpen)
	assert.Equal(t, 3, st.ReasonFailures)
	assert.False(t, st.ReasoningEnabled)
	assert.Equal(t, 3, st.Totals.Transactions, "heuristics keep the economy running")
}

func TestMetricsRingAndWindow(t *testing.T) {
	m := NewMetrics(3, 2, 2)
	pop := []agents.Snapshot{
		{Name: "a", Balance: 3, Status: agents.StatusActive},
		{Name: "b", Balance: 1, Status: agents.StatusActive},
		{Name: "c", Balance: 0.05, Status: agents.StatusCritical},
		{Name: "d", Balance: 0, Status: agents.StatusExhausted},
	}
	for cycle := uint64(1); cycle <= 5; cycle++ {
		m.CountCompletion(economy.CategoryResearch)
		m.Record(cycle, time.Now(), pop)
	}
	h := m.History()
	require.Len(t, h, 3)
	assert.Equal(t, uint64(3), h[0].Cycle)
	assert.Equal(t, uint64(5), h[2].Cycle)

	last, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, last.CategoryVolume[economy.CategoryResearch], "trailing window of two cycles")
	assert.Equal(t, []NamedBalance{{"a", 3}, {"b", 1}}, last.TopBalances)
	assert.Equal(t, 2, last.Active)
	assert.Equal(t, 1, last.Critical)
	assert.Equal(t, 1, last.Exhausted)
}

func TestBusNeverBlocks(t *testing.T) {
	b := NewBus()
	id, ch := b.Subscribe(1)
	b.Publish(Event{Kind: EventStats})
	b.Publish(Event{Kind: EventAgents})
	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, EventStats, (<-ch).Kind)

	b.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())
}

func TestEngineLifecycle(t *testing.T) {
	cfg := quietConfig()
	cfg.Economy.WorkPerCycle = 2
	sim := NewSimulation(cfg, Options{Source: entropy.NewSeeded(5)})
	e := NewEngine(sim, 10*time.Millisecond)
	ctx := context.Background()

	st := e.RunTick(ctx)
	assert.Equal(t, uint64(1), st.Cycle, "runTick works before start")
	assert.Equal(t, string(StateNotStarted), st.State)

	require.NoError(t, e.Start(ctx))
	assert.ErrorIs(t, e.Start(ctx), ErrRunning)
	require.Eventually(t, func() bool { return sim.Cycle() >= 3 }, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	assert.Equal(t, StateStopped, e.State())
	c := sim.Cycle()
	st = e.RunTick(ctx)
	assert.Equal(t, c, st.Cycle, "stopped engines do not advance")
	assert.Equal(t, string(StateStopped), st.State)
}

func TestRunTickWithoutActors(t *testing.T) {
	cfg := quietConfig()
	cfg.Economy.ActorsPerCategory = 0
	e := NewEngine(NewSimulation(cfg, Options{}), time.Second)
	st := e.RunTick(context.Background())
	assert.Equal(t, uint64(0), st.Cycle)
	assert.Equal(t, 0, st.Actors)
}

func TestRunTickWithoutSimulation(t *testing.T) {
	var zero Engine
	st := zero.RunTick(context.Background())
	assert.Equal(t, string(StateNotStarted), st.State)
	assert.Equal(t, uint64(0), st.Cycle)
	assert.Equal(t, StateNotStarted, zero.State())
	assert.Equal(t, string(StateNotStarted), zero.Stats().State)

	e := NewEngine(nil, time.Second)
	assert.NotPanics(t, func() { e.RunTick(context.Background()) })

	var missing *Engine
	assert.Equal(t, string(StateNotStarted), missing.RunTick(context.Background()).State)
}

func TestCancelledParentStopsEngine(t *testing.T) {
	sim := NewSimulation(quietConfig(), Options{Source: entropy.NewSeeded(9)})
	e := NewEngine(sim, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return e.State() == StateStopped }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Start(context.Background()), "a loop ended by its context can be restarted")
	assert.Equal(t, StateRunning, e.State())
	e.Stop()
	assert.Equal(t, StateStopped, e.State())
}

func TestActorTimestampsUseSimulationClock(t *testing.T) {
	cfg := quietConfig()
	cat := economy.CategoryResearch
	fixed := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	a := actor("p", cat, 1, 50)
	sim := NewSimulation(cfg, Options{
		Actors: []*agents.Actor{a},
		Source: &entropy.Fixed{Values: []float64{0.99}},
		Now:    func() time.Time { return fixed },
	})
	id, ch := sim.Subscribe(64)
	defer sim.Unsubscribe(id)

	sim.Submit(economy.NewWorkItem("client-01", cat, economy.BasePrice(cat), "literature review", fixed))
	sim.RunCycle(context.Background())

	entries := sim.Ledger(1)
	require.Len(t, entries, 1)
	assert.Equal(t, fixed, entries[0].Timestamp)

	snap, ok := sim.Agent("p")
	require.True(t, ok)
	require.NotEmpty(t, snap.Events)
	for _, ev := range snap.Events {
		assert.Equal(t, fixed, ev.Time, ev.Kind)
	}

	reasoned := 0
	for len(ch) > 0 {
		ev := <-ch
		if r, ok := ev.Data.(agents.Reasoning); ok {
			assert.Equal(t, fixed, r.Timestamp, r.Kind)
			reasoned++
		}
	}
	assert.GreaterOrEqual(t, reasoned, 2)

	spawned := NewSimulation(cfg, Options{Source: entropy.NewSeeded(1), Now: func() time.Time { return fixed }})
	for _, s := range spawned.Agents() {
		assert.Equal(t, fixed, s.CreatedAt)
	}
}
