package engine

import (
	"context"
	"fmt"

	"github.com/talgya/swarm-arena/internal/agents"
)

// maybeAdaptStrategies runs a strategy round on a small random sample every
// Strategy.EveryTransactions settled transactions.
func (s *Simulation) maybeAdaptStrategies(ctx context.Context, cycle uint64) {
	every := s.cfg.Strategy.EveryTransactions
	if every <= 0 {
		return
	}
	s.mu.Lock()
	due := s.totals.Transactions-s.adaptAt >= every
	if due {
		s.adaptAt = s.totals.Transactions
	}
	s.mu.Unlock()
	if !due {
		return
	}
	s.adaptStrategies(ctx, cycle, s.sample(s.living(), s.cfg.Strategy.SampleSize))
}

func (s *Simulation) adaptStrategies(ctx context.Context, cycle uint64, actors []*agents.Actor) []agents.StrategyChange {
	var changes []agents.StrategyChange
	for _, a := range actors {
		ch := a.AdaptStrategy(ctx, s.mind, s.cfg.Strategy, s.market.Price(a.Category))
		s.emitReasoning(cycle, ch.Reasoning)
		if !ch.Changed {
			continue
		}
		changes = append(changes, ch)
		s.publish(Event{
			Kind:        EventStrategyChanged,
			Cycle:       cycle,
			Description: fmt.Sprintf("%s switched from %s to %s pricing", ch.ActorName, ch.From, ch.To),
			Data:        ch,
		})
	}
	return changes
}

// sample picks up to n distinct actors uniformly at random.
func (s *Simulation) sample(pool []*agents.Actor, n int) []*agents.Actor {
	if n >= len(pool) {
		return pool
	}
	out := make([]*agents.Actor, len(pool))
	copy(out, pool)
	for i := 0; i < n; i++ {
		j := i + s.src.Intn(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:n]
}
