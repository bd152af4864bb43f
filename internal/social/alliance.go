// Alliances: referral relationships between actors of different categories.
// An alliance is an unordered pair; it exists or it does not.
package social

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/talgya/swarm-arena/internal/economy"
)

var (
	// ErrSameCategory is returned when both sides share a category.
	ErrSameCategory = errors.New("alliance requires different categories")
	// ErrAllied is returned when the pair is already allied.
	ErrAllied = errors.New("already allied")
)

// Party is one side of an alliance.
type Party struct {
	ID       string           `json:"id"`
	Category economy.Category `json:"category"`
}

// Alliance is an unordered pair; A.ID < B.ID.
type Alliance struct {
	A        Party     `json:"a"`
	B        Party     `json:"b"`
	FormedAt time.Time `json:"formed_at"`
}

type pairKey struct{ lo, hi string }

func keyOf(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// AllianceRegistry holds the alliance set. Safe for concurrent use.
type AllianceRegistry struct {
	mu    sync.RWMutex
	pairs map[pairKey]Alliance
}

// NewAllianceRegistry creates an empty registry.
func NewAllianceRegistry() *AllianceRegistry {
	return &AllianceRegistry{pairs: make(map[pairKey]Alliance)}
}

// Form allies two actors of different categories.
func (r *AllianceRegistry) Form(a, b Party, now time.Time) (Alliance, error) {
	if a.Category == b.Category {
		return Alliance{}, fmt.Errorf("ally %s and %s: %w", a.ID, b.ID, ErrSameCategory)
	}
	if b.ID < a.ID {
		a, b = b, a
	}
	k := keyOf(a.ID, b.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[k]; ok {
		return Alliance{}, fmt.Errorf("ally %s and %s: %w", a.ID, b.ID, ErrAllied)
	}
	al := Alliance{A: a, B: b, FormedAt: now}
	r.pairs[k] = al
	return al, nil
}

// Break removes the alliance between a and b. Returns false if none existed.
func (r *AllianceRegistry) Break(a, b string) bool {
	k := keyOf(a, b)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pairs[k]; !ok {
		return false
	}
	delete(r.pairs, k)
	return true
}

// Has reports whether a and b are allied.
func (r *AllianceRegistry) Has(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pairs[keyOf(a, b)]
	return ok
}

// PartnersOf returns the sorted IDs allied with id.
func (r *AllianceRegistry) PartnersOf(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.pairs {
		switch id {
		case k.lo:
			out = append(out, k.hi)
		case k.hi:
			out = append(out, k.lo)
		}
	}
	slices.Sort(out)
	return out
}

// RemoveActor drops every alliance involving id and returns them.
func (r *AllianceRegistry) RemoveActor(id string) []Alliance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []Alliance
	for k, al := range r.pairs {
		if k.lo == id || k.hi == id {
			removed = append(removed, al)
			delete(r.pairs, k)
		}
	}
	sortAlliances(removed)
	return removed
}

// All returns every alliance, ordered by pair.
func (r *AllianceRegistry) All() []Alliance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Alliance, 0, len(r.pairs))
	for _, al := range r.pairs {
		out = append(out, al)
	}
	sortAlliances(out)
	return out
}

// Len returns the number of alliances.
func (r *AllianceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

func sortAlliances(as []Alliance) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].A.ID != as[j].A.ID {
			return as[i].A.ID < as[j].A.ID
		}
		return as[i].B.ID < as[j].B.ID
	})
}
