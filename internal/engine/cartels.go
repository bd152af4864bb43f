// Cartel negotiation and maintenance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/entropy"
	"github.com/talgya/swarm-arena/internal/social"
)

// CartelEvent is the payload of cartel-formed and cartel-dissolved events.
type CartelEvent struct {
	Cartel  social.Cartel         `json:"cartel"`
	Answers []agents.CartelAnswer `json:"answers,omitempty"`
}

// maintainCartels drops members that died, went broke, or stopped charging
// the cartel price, and dissolves cartels that fall below quorum.
func (s *Simulation) maintainCartels(cycle uint64) {
	res := s.cartels.Maintain(func(id string) bool {
		a, ok := s.index[id]
		return ok && a.Alive() && a.Status() != agents.StatusExhausted && a.InCartel()
	})
	for _, id := range res.Dropped {
		if a, ok := s.index[id]; ok {
			a.LeaveCartel()
		}
	}
	for _, c := range res.Dissolved {
		for _, id := range c.Members {
			if a, ok := s.index[id]; ok {
				a.LeaveCartel()
			}
		}
		slog.Info("cartel dissolved", "category", c.Category, "remaining", len(c.Members))
		s.publish(Event{
			Kind:        EventCartelDissolved,
			Cycle:       cycle,
			Description: fmt.Sprintf("The %s cartel collapsed with %d members left", c.Category, len(c.Members)),
			Data:        CartelEvent{Cartel: c},
		})
	}
}

// maybeFormCartel attempts a negotiation in one random category with the
// configured probability.
func (s *Simulation) maybeFormCartel(ctx context.Context, cycle uint64) {
	if !entropy.Chance(s.src, s.cfg.Cartel.FormChance) {
		return
	}
	cat := economy.Categories[s.src.Intn(len(economy.Categories))]
	s.negotiateCartel(ctx, cycle, cat)
}

// negotiateCartel asks the strongest eligible actors of cat whether to fix a
// price. With a quorum of joiners, the cartel price is the mean proposed
// multiplier times the market price.
func (s *Simulation) negotiateCartel(ctx context.Context, cycle uint64, cat economy.Category) (social.Cartel, bool) {
	if _, exists := s.cartels.Get(cat); exists {
		return social.Cartel{}, false
	}

	type cand struct {
		a   *agents.Actor
		rep float64
	}
	var eligible []cand
	for _, a := range s.actors {
		if a.Category != cat || !a.Alive() || a.Status() == agents.StatusExhausted {
			continue
		}
		if _, member := s.cartels.MemberOf(a.ID); member {
			continue
		}
		if rep := a.ReputationNow(); rep >= s.cfg.Cartel.MinReputation {
			eligible = append(eligible, cand{a, rep})
		}
	}
	if len(eligible) < social.Quorum {
		return social.Cartel{}, false
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].rep != eligible[j].rep {
			return eligible[i].rep > eligible[j].rep
		}
		return eligible[i].a.ID < eligible[j].a.ID
	})
	if limit := s.cfg.Cartel.MaxNegotiators; limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	market := s.market.Price(cat)
	var (
		answers []agents.CartelAnswer
		joiners []*agents.Actor
		sum     float64
	)
	for _, c := range eligible {
		peers := make([]string, 0, len(eligible)-1)
		for _, o := range eligible {
			if o.a != c.a {
				peers = append(peers, o.a.Name)
			}
		}
		ans := c.a.ProposeCartel(ctx, s.mind, s.cfg.Cartel, market, peers, s.src)
		s.emitReasoning(cycle, ans.Reasoning)
		answers = append(answers, ans)
		if ans.Join {
			joiners = append(joiners, c.a)
			sum += ans.Multiplier
		}
	}
	if len(joiners) < social.Quorum {
		slog.Debug("cartel negotiation failed", "category", cat, "joiners", len(joiners))
		return social.Cartel{}, false
	}

	price := sum / float64(len(joiners)) * market
	ids := make([]string, len(joiners))
	for i, a := range joiners {
		ids[i] = a.ID
	}
	cartel, err := s.cartels.Form(cat, ids, price, s.now())
	if err != nil {
		if errors.Is(err, social.ErrQuorum) {
			slog.Error("cartel invariant violated", "error", err)
		} else {
			slog.Warn("cartel not formed", "error", err)
		}
		return social.Cartel{}, false
	}
	for _, a := range joiners {
		a.JoinCartel(price)
	}

	slog.Info("cartel formed", "category", cat, "members", len(ids), "price", fmt.Sprintf("%.4f", price))
	s.publish(Event{
		Kind:        EventCartelFormed,
		Cycle:       cycle,
		Description: fmt.Sprintf("%d %s agents fixed their price at %.4f", len(ids), cat, price),
		Data:        CartelEvent{Cartel: cartel, Answers: answers},
	})
	return cartel, true
}
