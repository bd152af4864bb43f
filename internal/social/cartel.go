// Cartels: quorum-based price-fixing groups among same-category actors.
// One cartel per category at most; a cartel below quorum does not exist.
package social

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/talgya/swarm-arena/internal/economy"
)

// Quorum is the minimum cartel membership.
const Quorum = 3

var (
	// ErrQuorum is returned when a cartel would have fewer than Quorum members.
	ErrQuorum = errors.New("cartel below quorum")
	// ErrCartelExists is returned when the category already has a cartel.
	ErrCartelExists = errors.New("category already has a cartel")
)

// Cartel fixes the price of one category.
type Cartel struct {
	Category economy.Category `json:"category"`
	Members  []string         `json:"members"`
	Price    float64          `json:"price"`
	FormedAt time.Time        `json:"formed_at"`
}

func (c *Cartel) clone() Cartel {
	out := *c
	out.Members = slices.Clone(c.Members)
	return out
}

// CartelRegistry holds the live cartels. Safe for concurrent use.
type CartelRegistry struct {
	mu    sync.RWMutex
	byCat map[economy.Category]*Cartel
}

// NewCartelRegistry creates an empty registry.
func NewCartelRegistry() *CartelRegistry {
	return &CartelRegistry{byCat: make(map[economy.Category]*Cartel)}
}

// Form registers a cartel for cat.
func (r *CartelRegistry) Form(cat economy.Category, members []string, price float64, now time.Time) (Cartel, error) {
	if !cat.Valid() {
		return Cartel{}, fmt.Errorf("form cartel: unknown category %q", cat)
	}
	if len(members) < Quorum {
		return Cartel{}, fmt.Errorf("form %s cartel with %d members: %w", cat, len(members), ErrQuorum)
	}
	if price <= 0 {
		return Cartel{}, fmt.Errorf("form %s cartel: non-positive price %.4f", cat, price)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCat[cat]; ok {
		return Cartel{}, fmt.Errorf("form %s cartel: %w", cat, ErrCartelExists)
	}
	c := &Cartel{Category: cat, Members: slices.Clone(members), Price: price, FormedAt: now}
	r.byCat[cat] = c
	return c.clone(), nil
}

// Get returns the cartel for cat, if any.
func (r *CartelRegistry) Get(cat economy.Category) (Cartel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byCat[cat]
	if !ok {
		return Cartel{}, false
	}
	return c.clone(), true
}

// MemberOf reports which cartel, if any, an actor belongs to.
func (r *CartelRegistry) MemberOf(actorID string) (economy.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for cat, c := range r.byCat {
		if slices.Contains(c.Members, actorID) {
			return cat, true
		}
	}
	return "", false
}

// MaintainResult lists what a maintenance pass changed.
type MaintainResult struct {
	Dropped   []string // members removed from surviving or dissolved cartels
	Dissolved []Cartel // cartels that fell below quorum, with their remaining members
}

// Maintain removes members for which keep returns false and dissolves any
// cartel left below quorum.
func (r *CartelRegistry) Maintain(keep func(actorID string) bool) MaintainResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res MaintainResult
	for _, cat := range economy.Categories {
		c, ok := r.byCat[cat]
		if !ok {
			continue
		}
		kept := c.Members[:0]
		for _, id := range c.Members {
			if keep(id) {
				kept = append(kept, id)
			} else {
				res.Dropped = append(res.Dropped, id)
			}
		}
		c.Members = kept
		if len(c.Members) < Quorum {
			res.Dissolved = append(res.Dissolved, c.clone())
			delete(r.byCat, cat)
		}
	}
	return res
}

// All returns every cartel in category order.
func (r *CartelRegistry) All() []Cartel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Cartel, 0, len(r.byCat))
	for _, cat := range economy.Categories {
		if c, ok := r.byCat[cat]; ok {
			out = append(out, c.clone())
		}
	}
	return out
}

// Len returns the number of live cartels.
func (r *CartelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCat)
}
