// Market pricing: per-category reference prices that drift with smooth noise
// and track what actually settles.
package economy

import (
	"sync"

	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	observeAlpha   = 0.2  // EMA weight of a newly settled price
	noiseFrequency = 0.07 // noise steps per cycle
	minDemand      = 0.2
)

// MarketEntry is the pricing state of one category.
type MarketEntry struct {
	Category  Category `json:"category"`
	BasePrice float64  `json:"base_price"`
	Reference float64  `json:"reference"` // EMA of settled prices, seeded with the base
	Price     float64  `json:"price"`     // reference × current drift
	Demand    float64  `json:"demand"`    // relative work volume weight
	Settled   int      `json:"settled"`
}

// Market holds the recent price for every category.
type Market struct {
	mu      sync.RWMutex
	entries map[Category]*MarketEntry
	price   opensimplex.Noise
	demand  opensimplex.Noise
	drift   float64
	cycle   uint64
}

// NewMarket creates a market with base prices for all categories.
func NewMarket(seed int64, drift float64) *Market {
	m := &Market{
		entries: make(map[Category]*MarketEntry, len(Categories)),
		price:   opensimplex.NewNormalized(seed),
		demand:  opensimplex.NewNormalized(seed + 1),
		drift:   drift,
	}
	for _, c := range Categories {
		base := BasePrice(c)
		m.entries[c] = &MarketEntry{
			Category:  c,
			BasePrice: base,
			Reference: base,
			Price:     base,
			Demand:    1,
		}
	}
	return m
}

// Advance moves the noise field to a new cycle and recomputes prices and demand.
func (m *Market) Advance(cycle uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle = cycle
	t := float64(cycle) * noiseFrequency
	for i, c := range Categories {
		e := m.entries[c]
		y := float64(i) * 3.7
		// Normalized noise is in [0,1]; map to [-1,1] for a symmetric drift.
		n := m.price.Eval2(t, y)*2 - 1
		e.Price = e.Reference * (1 + m.drift*n)
		if e.Price < e.BasePrice*0.25 {
			e.Price = e.BasePrice * 0.25
		}
		e.Demand = minDemand + m.demand.Eval2(t, y)
	}
}

// Observe folds a settled price into the category reference.
func (m *Market) Observe(c Category, price float64) {
	if price <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[c]
	if !ok {
		return
	}
	e.Reference = e.Reference*(1-observeAlpha) + price*observeAlpha
	e.Settled++
}

// Price returns the current market price of a category.
func (m *Market) Price(c Category) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[c]; ok {
		return e.Price
	}
	return 0
}

// Demand returns the current demand weight of a category.
func (m *Market) Demand(c Category) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[c]; ok {
		return e.Demand
	}
	return 0
}

// SetPrice pins the price and reference of a category (used when seeding scenarios).
func (m *Market) SetPrice(c Category, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[c]; ok {
		e.Price = price
		e.Reference = price
	}
}

// Entries returns a copy of all entries in category order.
func (m *Market) Entries() []MarketEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MarketEntry, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, *m.entries[c])
	}
	return out
}

// PickCategory chooses a category weighted by demand; r must be in [0,1).
func (m *Market) PickCategory(r float64) Category {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, c := range Categories {
		total += m.entries[c].Demand
	}
	target := r * total
	for _, c := range Categories {
		target -= m.entries[c].Demand
		if target < 0 {
			return c
		}
	}
	return Categories[len(Categories)-1]
}
