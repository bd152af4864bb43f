// Upkeep, insolvency, and redistribution of what the dead leave behind.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/entropy"
)

// chargeUpkeep debits the per-cycle running cost from every live actor.
func (s *Simulation) chargeUpkeep() {
	upkeep := s.cfg.Economy.Upkeep
	if upkeep <= 0 {
		return
	}
	var total float64
	for _, a := range s.living() {
		total += a.Debit(upkeep)
	}
	s.addTotals(func(t *Totals) { t.Upkeep += total })
}

// processDeaths finalizes every exhausted actor exactly once and hands its
// residual balance to the survivors.
func (s *Simulation) processDeaths(cycle uint64) []DeathRecord {
	var records []DeathRecord
	for _, a := range s.actors {
		if a.Status() != agents.StatusExhausted {
			continue
		}
		now := s.now()
		if !a.Finalize(now) {
			continue
		}
		residual := a.Liquidate()
		snap := a.Snapshot()
		rec := DeathRecord{
			ActorID:   a.ID,
			Name:      a.Name,
			Category:  a.Category,
			Cycle:     cycle,
			Time:      now,
			Completed: snap.Completed,
			Scams:     snap.Scams,
			Earned:    snap.Earned,
			Spent:     snap.Spent,
			Residual:  residual,
		}

		survivors := s.living()
		dist := Redistribute(residual, survivors, s.src)
		for _, sv := range survivors {
			if amt := dist.Shares[sv.ID]; amt > 0 {
				sv.Credit(amt)
				sv.AddEvent("inheritance", fmt.Sprintf("Inherited %.4f from %s", amt, a.Name))
			}
		}
		rec.Winner, rec.Shares = dist.Winner, dist.Shares
		destroyed := residual - dist.Total()

		for _, al := range s.alliances.RemoveActor(a.ID) {
			s.publish(Event{
				Kind:        EventAllianceBroken,
				Cycle:       cycle,
				Description: fmt.Sprintf("%s's alliances ended with its death", a.Name),
				Data:        al,
			})
		}

		if ref, ok := s.mirror.LogDeath(rec); ok {
			rec.MirrorRef = ref
		}
		s.addTotals(func(t *Totals) {
			t.Deaths++
			t.Destroyed += destroyed
		})
		slog.Info("actor died", "name", a.Name, "category", a.Category, "residual", fmt.Sprintf("%.4f", residual), "survivors", len(survivors))
		s.publish(Event{
			Kind:        EventDeath,
			Cycle:       cycle,
			Time:        now,
			Description: fmt.Sprintf("%s (%s) ran out of funds after %d jobs", a.Name, a.Category, snap.Completed),
			Data:        rec,
		})
		records = append(records, rec)
	}
	return records
}

// Distribution is how a residual balance is split.
type Distribution struct {
	Winner string
	Shares map[string]float64
}

// Total returns the sum of all shares.
func (d Distribution) Total() float64 {
	var t float64
	for _, v := range d.Shares {
		t += v
	}
	return t
}

// Redistribute splits residual among survivors: half to one uniformly random
// survivor, the other half equally among all of them. Nothing is distributed
// when the residual is not positive or there are no survivors.
func Redistribute(residual float64, survivors []*agents.Actor, src entropy.Source) Distribution {
	if residual <= 0 || len(survivors) == 0 {
		return Distribution{}
	}
	half := residual / 2
	each := half / float64(len(survivors))
	winner := survivors[src.Intn(len(survivors))]

	shares := make(map[string]float64, len(survivors))
	for _, sv := range survivors {
		shares[sv.ID] = each
	}
	shares[winner.ID] += half
	return Distribution{Winner: winner.ID, Shares: shares}
}
