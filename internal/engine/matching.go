// Matching: assigns pending work to the best-ranked actor of each category
// and drives accept, fraud check, pricing, settlement, and delivery.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/economy"
)

// TransactionEvent is the payload of a transaction event.
type TransactionEvent struct {
	Entry   economy.LedgerEntry `json:"entry"`
	Item    economy.WorkItem    `json:"item"`
	Outcome agents.Outcome      `json:"outcome"`
}

// matchWork resolves every pending item. Items are grouped by category and
// each group runs sequentially in its own goroutine. An actor belongs to one
// category, so one actor's state is never mutated by two matches at once,
// while distinct categories proceed in parallel. The provider is ranked per
// item at the moment it is matched, so reputation lost earlier in the cycle
// counts against later items.
func (s *Simulation) matchWork(ctx context.Context, cycle uint64) {
	groups := make(map[economy.Category][]*economy.WorkItem)
	for _, item := range s.pending() {
		groups[item.Category] = append(groups[item.Category], item)
	}

	workers := s.cfg.Engine.MatchWorkers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, cat := range economy.Categories {
		items, ok := groups[cat]
		if !ok {
			continue
		}
		g.Go(func() error {
			for _, item := range items {
				a := s.topCandidate(cat)
				if a == nil {
					s.failItem(item, "no provider available")
					continue
				}
				s.matchOne(ctx, cycle, a, item)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("matching failed", "cycle", cycle, "error", err)
	}
}

// topCandidate returns the highest-reputation live actor of the category,
// breaking ties by ID.
func (s *Simulation) topCandidate(cat economy.Category) *agents.Actor {
	type ranked struct {
		a   *agents.Actor
		rep float64
	}
	var cands []ranked
	for _, a := range s.actors {
		if a.Category != cat || !a.Alive() || a.Status() == agents.StatusExhausted {
			continue
		}
		cands = append(cands, ranked{a, a.ReputationNow()})
	}
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].rep != cands[j].rep {
			return cands[i].rep > cands[j].rep
		}
		return cands[i].a.ID < cands[j].a.ID
	})
	return cands[0].a
}

// matchOne runs one item through decide, fraud check, settlement, and
// delivery against a single actor. Settlement is always at the offered
// payment; the actor's own quote is recorded on the item for observers.
func (s *Simulation) matchOne(ctx context.Context, cycle uint64, a *agents.Actor, item *economy.WorkItem) {
	if err := item.Assign(a.ID); err != nil {
		slog.Warn("assign work", "item", item.ID, "error", err)
		return
	}

	d := a.Decide(ctx, s.mind, item, s.cfg.Economy.DecideAcceptFactor)
	s.emitReasoning(cycle, d.Reasoning)
	if !d.Accept {
		s.failItem(item, "rejected: "+d.Reasoning.Rationale)
		return
	}

	v := a.ConsiderScam(ctx, s.mind, item, s.cfg.Scam, s.src)
	if v.Eligible {
		s.emitReasoning(cycle, v.Reasoning)
	}
	if v.Scam {
		s.executeScam(cycle, a, item)
		return
	}

	item.Quote = a.Price(item.Category, s.market.Price(item.Category))

	st, err := s.payments.Pay(item.RequesterID, a.ID, string(item.Category), item.Payment, item.ID)
	if err != nil || !st.Success {
		reason := st.Reason
		if err != nil {
			reason = err.Error()
		}
		slog.Warn("settlement failed", "item", item.ID, "actor", a.Name, "reason", reason)
		s.failItem(item, "settlement failed: "+reason)
		return
	}

	out := a.Execute(ctx, s.mind, item, s.cfg.Reasoning.Narrate)
	now := s.now()
	entry := s.ledger.Append(item.RequesterID, a.ID, item.Payment, item.Category, st.Reference, now)
	if ref, ok := s.mirror.LogTransaction(entry); ok {
		s.ledger.SetMirrorRef(entry.ID, ref)
		entry.MirrorRef = &ref
	}
	s.market.Observe(item.Category, item.Payment)
	s.metrics.CountCompletion(item.Category)
	item.Complete(now, false)

	referrals := s.payReferrals(a, item)
	s.addTotals(func(t *Totals) {
		t.Transactions++
		t.Volume += item.Payment
		t.Inflow += item.Payment + referrals
		t.Referrals += referrals
	})

	desc := fmt.Sprintf("%s earned %.4f for %s", a.Name, item.Payment, item.Category)
	if out.Narrative != "" {
		desc = out.Narrative
	}
	s.publish(Event{
		Kind:        EventTransaction,
		Cycle:       cycle,
		Time:        now,
		Description: desc,
		Data:        TransactionEvent{Entry: entry, Item: *item, Outcome: out},
	})
}

// payReferrals credits each live ally of the provider with the referral
// commission. Returns the total paid.
func (s *Simulation) payReferrals(a *agents.Actor, item *economy.WorkItem) float64 {
	commission := s.cfg.Alliance.ReferralCommission
	if commission <= 0 {
		return 0
	}
	var total float64
	for _, id := range s.alliances.PartnersOf(a.ID) {
		ally, ok := s.index[id]
		if !ok || !ally.Alive() {
			continue
		}
		ally.Credit(commission)
		ally.AddEvent("referral", fmt.Sprintf("Referral commission from %s's %s job", a.Name, item.Category))
		total += commission
	}
	return total
}

func (s *Simulation) failItem(item *economy.WorkItem, reason string) {
	item.Fail(s.now(), reason)
	s.addTotals(func(t *Totals) { t.Failed++ })
	slog.Debug("work failed", "item", item.ID, "category", item.Category, "reason", reason)
}
