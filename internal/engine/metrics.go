// Metrics: inequality, balance snapshots, and work volume over a trailing
// window. Observability only; nothing here feeds back into the economy.
package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/economy"
)

// Gini returns the Gini coefficient of the balances: 0 when perfectly equal,
// (n-1)/n when one holder has everything. Zero for an empty or all-zero set.
func Gini(balances []float64) float64 {
	n := len(balances)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, balances)
	sort.Float64s(sorted)

	var sum, weighted float64
	for i, b := range sorted {
		sum += b
		weighted += float64(2*(i+1)-n-1) * b
	}
	if sum == 0 {
		return 0
	}
	g := weighted / (float64(n) * sum)
	if g < 0 {
		return 0
	}
	return g
}

// NamedBalance is one entry of a top-N table.
type NamedBalance struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// BalanceSnapshot is the per-cycle metrics record.
type BalanceSnapshot struct {
	Cycle          uint64                   `json:"cycle"`
	Timestamp      time.Time                `json:"timestamp"`
	TopBalances    []NamedBalance           `json:"top_balances"`
	Gini           float64                  `json:"gini"`
	Active         int                      `json:"active"`
	Critical       int                      `json:"critical"`
	Exhausted      int                      `json:"exhausted"`
	CategoryVolume map[economy.Category]int `json:"category_volume"`
}

// Metrics keeps a fixed-capacity snapshot ring and the volume window.
type Metrics struct {
	mu sync.Mutex

	ring  []BalanceSnapshot
	head  int // next write position
	count int

	window  []map[economy.Category]int
	current map[economy.Category]int
	topN    int
}

// NewMetrics creates the metrics engine.
func NewMetrics(historySize, volumeWindow, topN int) *Metrics {
	if historySize < 1 {
		historySize = 1
	}
	if volumeWindow < 1 {
		volumeWindow = 1
	}
	return &Metrics{
		ring:    make([]BalanceSnapshot, historySize),
		window:  make([]map[economy.Category]int, 0, volumeWindow),
		current: make(map[economy.Category]int),
		topN:    topN,
	}
}

// CountCompletion adds one completed item to the current cycle's volume.
func (m *Metrics) CountCompletion(cat economy.Category) {
	m.mu.Lock()
	m.current[cat]++
	m.mu.Unlock()
}

// Record closes the current cycle and stores a snapshot of the population.
func (m *Metrics) Record(cycle uint64, now time.Time, pop []agents.Snapshot) BalanceSnapshot {
	snap := BalanceSnapshot{Cycle: cycle, Timestamp: now}

	live := make([]agents.Snapshot, 0, len(pop))
	balances := make([]float64, 0, len(pop))
	for _, a := range pop {
		switch a.Status {
		case agents.StatusExhausted:
			snap.Exhausted++
			continue
		case agents.StatusCritical:
			snap.Critical++
		default:
			snap.Active++
		}
		live = append(live, a)
		balances = append(balances, a.Balance)
	}
	snap.Gini = Gini(balances)

	sort.Slice(live, func(i, j int) bool { return live[i].Balance > live[j].Balance })
	for i := 0; i < len(live) && i < m.topN; i++ {
		snap.TopBalances = append(snap.TopBalances, NamedBalance{Name: live[i].Name, Balance: live[i].Balance})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.window) == cap(m.window) {
		copy(m.window, m.window[1:])
		m.window = m.window[:len(m.window)-1]
	}
	m.window = append(m.window, m.current)
	m.current = make(map[economy.Category]int)

	snap.CategoryVolume = make(map[economy.Category]int, len(economy.Categories))
	for _, cat := range economy.Categories {
		snap.CategoryVolume[cat] = 0
	}
	for _, w := range m.window {
		for cat, n := range w {
			snap.CategoryVolume[cat] += n
		}
	}

	m.ring[m.head] = snap
	m.head = (m.head + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
	return snap
}

// History returns the retained snapshots, oldest first.
func (m *Metrics) History() []BalanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BalanceSnapshot, 0, m.count)
	start := (m.head - m.count + len(m.ring)) % len(m.ring)
	for i := 0; i < m.count; i++ {
		out = append(out, m.ring[(start+i)%len(m.ring)])
	}
	return out
}

// Latest returns the most recent snapshot.
func (m *Metrics) Latest() (BalanceSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return BalanceSnapshot{}, false
	}
	return m.ring[(m.head-1+len(m.ring))%len(m.ring)], true
}
