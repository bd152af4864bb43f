package engine

import (
	"fmt"

	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/entropy"
)

// generateWork posts this cycle's work items from the external client pool.
// Categories follow market demand; payments scatter around the market price.
func (s *Simulation) generateWork() int {
	now := s.now()
	n := s.cfg.Economy.WorkPerCycle
	items := make([]*economy.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		cat := s.market.PickCategory(s.src.Float64())
		payment := s.market.Price(cat) * entropy.Between(s.src, 0.7, 1.3)
		requester := fmt.Sprintf("client-%02d", s.src.Intn(s.cfg.Economy.ExternalClients)+1)
		desc := economy.Description(cat, s.src.Intn(1<<16))
		items = append(items, economy.NewWorkItem(requester, cat, payment, desc, now))
	}

	s.mu.Lock()
	s.queue = append(s.queue, items...)
	s.mu.Unlock()
	return len(items)
}

// Submit queues an externally created work item for the next cycle.
func (s *Simulation) Submit(item *economy.WorkItem) {
	s.mu.Lock()
	s.queue = append(s.queue, item)
	s.mu.Unlock()
}

// pruneQueue drops completed and failed items so the queue stays bounded.
func (s *Simulation) pruneQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	for _, it := range s.queue {
		if !it.Terminal() {
			kept = append(kept, it)
		}
	}
	pruned := len(s.queue) - len(kept)
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = kept
	return pruned
}

// pending returns the items still waiting for a provider.
func (s *Simulation) pending() []*economy.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*economy.WorkItem, 0, len(s.queue))
	for _, it := range s.queue {
		if it.Status == economy.WorkPending {
			out = append(out, it)
		}
	}
	return out
}
