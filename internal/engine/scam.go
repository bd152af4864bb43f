package engine

import (
	"fmt"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/economy"
)

// ScamEvent is the payload of a scam-detected event.
type ScamEvent struct {
	Item    economy.WorkItem `json:"item"`
	Outcome agents.Outcome   `json:"outcome"`
}

// executeScam takes the client's payment without delivering. No settlement
// runs and no ledger entry is written.
func (s *Simulation) executeScam(cycle uint64, a *agents.Actor, item *economy.WorkItem) {
	out := a.CommitScam(item, s.cfg.Scam.Penalty)
	now := s.now()
	item.Complete(now, true)
	s.metrics.CountCompletion(item.Category)
	s.addTotals(func(t *Totals) {
		t.Scams++
		t.Inflow += item.Payment
	})
	s.publish(Event{
		Kind:        EventScamDetected,
		Cycle:       cycle,
		Time:        now,
		Description: fmt.Sprintf("%s kept %.4f from %s without delivering", a.Name, item.Payment, item.RequesterID),
		Data:        ScamEvent{Item: *item, Outcome: out},
	})
}
