// Emergent behavior: fraud and cartel membership. Both consult the reasoner
// and degrade to fixed tables when it is unavailable.
package agents

import (
	"context"
	"fmt"

	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/entropy"
	"github.com/talgya/swarm-arena/internal/llm"
)

// ScamVerdict is the result of ConsiderScam.
type ScamVerdict struct {
	Eligible    bool      `json:"eligible"`
	Scam        bool      `json:"scam"`
	Probability float64   `json:"probability"`
	Reasoning   Reasoning `json:"reasoning"`
}

// ScamProbability returns the chance of defrauding a client. Advice, when
// present, weights the chance; otherwise the fallback table applies.
func ScamProbability(cfg config.ScamConfig, status Status, reputation float64, advice *llm.ScamAdvice) float64 {
	if advice != nil {
		if !advice.Scam {
			return cfg.ProbRecommendHonest
		}
		if status == StatusCritical {
			return cfg.ProbRecommendScamCritical
		}
		return cfg.ProbRecommendScam
	}
	switch {
	case status == StatusCritical:
		return cfg.FallbackCritical
	case reputation < cfg.LowReputationCutoff:
		return cfg.FallbackLowReputation
	case reputation < cfg.MidReputationCutoff:
		return cfg.FallbackMidReputation
	default:
		return cfg.FallbackHighReputation
	}
}

// ConsiderScam decides whether to take the payment for item without
// delivering. Exhausted actors and actors above the trust ceiling never scam.
func (a *Actor) ConsiderScam(ctx context.Context, mind *llm.Reasoner, item *economy.WorkItem, cfg config.ScamConfig, src entropy.Source) ScamVerdict {
	a.mu.Lock()
	status := a.thresholds.StatusFor(a.Balance)
	rep := a.Reputation
	actx := a.context()
	a.mu.Unlock()

	r := a.reasoning("scam")
	r.Factors = []string{
		fmt.Sprintf("status=%s", status),
		fmt.Sprintf("reputation=%.0f", rep),
		fmt.Sprintf("payment=%.4f", item.Payment),
	}

	if status == StatusExhausted || rep > cfg.HighTrustCeiling {
		r.Decision = "honest"
		r.Confidence = 1
		r.Rationale = "too much to lose"
		r.Heuristic = true
		return ScamVerdict{Reasoning: r}
	}

	advice, err := llm.GenerateScamAdvice(ctx, mind, actx, item.Payment)
	if err != nil {
		advice = nil
	}
	p := ScamProbability(cfg, status, rep, advice)
	scam := entropy.Chance(src, p)

	r.Factors = append(r.Factors, fmt.Sprintf("probability=%.2f", p))
	r.Heuristic = advice == nil
	r.Decision = "honest"
	if scam {
		r.Decision = "scam"
	}
	r.Confidence = p
	if !scam {
		r.Confidence = 1 - p
	}
	switch {
	case advice != nil:
		r.Rationale = advice.Reason
	case scam:
		r.Rationale = "the odds favored taking the money"
	default:
		r.Rationale = "delivered honestly"
	}
	return ScamVerdict{Eligible: true, Scam: scam, Probability: p, Reasoning: r}
}

// CommitScam keeps the payment without delivering: the balance is credited,
// reputation takes the penalty, and the job counts as completed.
func (a *Actor) CommitScam(item *economy.WorkItem, penalty float64) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	before := a.Reputation
	a.Balance += item.Payment
	a.Earned += item.Payment
	a.Reputation = clampReputation(a.Reputation - penalty)
	a.Completed++
	a.Scams++
	a.addEventLocked("scam", fmt.Sprintf("Kept %.4f for %q without delivering", item.Payment, item.Description))
	return Outcome{
		ActorID:         a.ID,
		ItemID:          item.ID,
		Payment:         item.Payment,
		ReputationDelta: a.Reputation - before,
		Balance:         a.Balance,
		Scam:            true,
	}
}

// CartelAnswer is one actor's reply in a cartel negotiation.
type CartelAnswer struct {
	ActorID    string    `json:"actor_id"`
	Join       bool      `json:"join"`
	Multiplier float64   `json:"multiplier"`
	Reasoning  Reasoning `json:"reasoning"`
}

// ProposeCartel answers a price-fixing proposal. Without reasoning, the actor
// joins when reputation and balance clear the fallback thresholds, proposing a
// multiplier drawn from the configured band.
func (a *Actor) ProposeCartel(ctx context.Context, mind *llm.Reasoner, cfg config.CartelConfig, market float64, peers []string, src entropy.Source) CartelAnswer {
	a.mu.Lock()
	rep, bal := a.Reputation, a.Balance
	actx := a.context()
	a.mu.Unlock()

	r := a.reasoning("cartel")
	r.Factors = []string{
		fmt.Sprintf("reputation=%.0f", rep),
		fmt.Sprintf("balance=%.4f", bal),
		fmt.Sprintf("market=%.4f", market),
	}
	ans := CartelAnswer{ActorID: a.ID}

	if p, err := llm.GenerateCartelProposal(ctx, mind, actx, market, peers); err == nil {
		ans.Join, ans.Multiplier = p.Join, p.Multiplier
		r.Rationale = p.Reason
		r.Confidence = 0.7
	} else {
		r.Heuristic = true
		r.Confidence = 0.5
		if rep >= cfg.FallbackReputation && bal >= cfg.FallbackBalance {
			ans.Join = true
			ans.Multiplier = entropy.Between(src, cfg.MultiplierLow, cfg.MultiplierHigh)
			r.Rationale = "strong position, higher prices pay"
		} else {
			r.Rationale = "position too weak to hold a fixed price"
		}
	}
	r.Decision = "decline"
	if ans.Join {
		r.Decision = fmt.Sprintf("join at %.2fx", ans.Multiplier)
	}
	ans.Reasoning = r
	return ans
}

// JoinCartel switches the actor to premium pricing at the cartel price.
func (a *Actor) JoinCartel(price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Strategy.Pricing = PricingPremium
	a.CartelPrice = price
	a.addEventLocked("cartel", fmt.Sprintf("Joined a cartel fixing %s at %.4f", a.Category, price))
}

// LeaveCartel clears the cartel price and reverts to balanced pricing.
func (a *Actor) LeaveCartel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.CartelPrice == 0 && a.Strategy.Pricing != PricingPremium {
		return
	}
	a.CartelPrice = 0
	a.Strategy.Pricing = PricingBalanced
	a.addEventLocked("cartel", "Cartel dissolved")
}
