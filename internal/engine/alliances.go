package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/entropy"
	"github.com/talgya/swarm-arena/internal/social"
)

// maybeManageAlliance revisits one random cross-category pair with the
// configured probability.
func (s *Simulation) maybeManageAlliance(cycle uint64) {
	if !entropy.Chance(s.src, s.cfg.Alliance.ManageChance) {
		return
	}
	s.manageAlliance(cycle)
}

// manageAlliance picks a random pair of live actors in different categories.
// An existing alliance breaks when either side no longer meets the other's
// reputation threshold, or by chance; otherwise a pair that meets both
// thresholds may ally.
func (s *Simulation) manageAlliance(cycle uint64) {
	live := s.living()
	if len(live) < 2 {
		return
	}
	a := live[s.src.Intn(len(live))]
	var others []*agents.Actor
	for _, o := range live {
		if o.Category != a.Category {
			others = append(others, o)
		}
	}
	if len(others) == 0 {
		return
	}
	b := others[s.src.Intn(len(others))]
	s.reviewPair(cycle, a, b)
}

func (s *Simulation) reviewPair(cycle uint64, a, b *agents.Actor) {
	sa, sb := a.Snapshot(), b.Snapshot()
	qualified := sa.Reputation >= sb.Strategy.AllianceThreshold && sb.Reputation >= sa.Strategy.AllianceThreshold

	if s.alliances.Has(a.ID, b.ID) {
		if qualified && !entropy.Chance(s.src, s.cfg.Alliance.BreakChance) {
			return
		}
		s.alliances.Break(a.ID, b.ID)
		a.AddEvent("alliance", "Alliance with "+b.Name+" ended")
		b.AddEvent("alliance", "Alliance with "+a.Name+" ended")
		s.publish(Event{
			Kind:        EventAllianceBroken,
			Cycle:       cycle,
			Description: fmt.Sprintf("%s and %s ended their alliance", a.Name, b.Name),
			Data:        social.Alliance{A: social.Party{ID: a.ID, Category: a.Category}, B: social.Party{ID: b.ID, Category: b.Category}},
		})
		return
	}

	if !qualified || !entropy.Chance(s.src, s.cfg.Alliance.FormChance) {
		return
	}
	al, err := s.alliances.Form(social.Party{ID: a.ID, Category: a.Category}, social.Party{ID: b.ID, Category: b.Category}, s.now())
	if err != nil {
		slog.Error("alliance rejected", "error", err)
		return
	}
	a.AddEvent("alliance", "Allied with "+b.Name)
	b.AddEvent("alliance", "Allied with "+a.Name)
	s.publish(Event{
		Kind:        EventAllianceFormed,
		Cycle:       cycle,
		Description: fmt.Sprintf("%s (%s) and %s (%s) formed an alliance", a.Name, a.Category, b.Name, b.Category),
		Data:        al,
	})
}
