// Actor behavior: accept/reject, pricing, delivery, and strategy adaptation.
// Reasoning is consulted where available; every path has a heuristic fallback,
// and deterministic overrides always win over reasoning.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/llm"
)

// Decision is an actor's answer to a work offer.
type Decision struct {
	Accept    bool      `json:"accept"`
	Reasoning Reasoning `json:"reasoning"`
}

// Outcome describes a delivered (or scammed) job.
type Outcome struct {
	ActorID         string  `json:"actor_id"`
	ItemID          string  `json:"item_id"`
	Payment         float64 `json:"payment"`
	ReputationDelta float64 `json:"reputation_delta"`
	Balance         float64 `json:"balance"`
	Narrative       string  `json:"narrative,omitempty"`
	Scam            bool    `json:"scam,omitempty"`
}

// StrategyChange reports the result of AdaptStrategy.
type StrategyChange struct {
	ActorID   string      `json:"actor_id"`
	ActorName string      `json:"actor_name"`
	From      PricingMode `json:"from"`
	To        PricingMode `json:"to"`
	Changed   bool        `json:"changed"`
	Reason    string      `json:"reason"`
	Heuristic bool        `json:"heuristic"`
	Reasoning Reasoning   `json:"reasoning"`
}

func (a *Actor) reasoning(kind string) Reasoning {
	return Reasoning{ActorID: a.ID, ActorName: a.Name, Kind: kind, Timestamp: a.now()}
}

// Decide answers a work offer. Exhausted actors and offers below the minimum
// price are rejected outright; critical actors take anything at or above the
// minimum. Otherwise the reasoner decides, falling back to
// payment ≥ acceptFactor × base price.
func (a *Actor) Decide(ctx context.Context, mind *llm.Reasoner, item *economy.WorkItem, acceptFactor float64) Decision {
	a.mu.Lock()
	a.Requested++
	status := a.thresholds.StatusFor(a.Balance)
	strat := a.Strategy
	actx := a.context()
	a.mu.Unlock()

	r := a.reasoning("decide")
	r.Factors = []string{
		fmt.Sprintf("status=%s", status),
		fmt.Sprintf("payment=%.4f", item.Payment),
		fmt.Sprintf("min=%.4f", strat.MinPrice),
	}

	switch {
	case status == StatusExhausted:
		return heuristicDecision(r, false, 1, "exhausted actors take no work")
	case item.Payment < strat.MinPrice:
		return heuristicDecision(r, false, 1, "offer below minimum price")
	case status == StatusCritical:
		return heuristicDecision(r, true, 0.9, "desperate for income")
	}

	d, err := llm.GenerateAcceptDecision(ctx, mind, actx, item.Payment, item.Description)
	if err == nil {
		r.Decision = acceptWord(d.Accept)
		r.Confidence = 0.8
		r.Rationale = d.Reason
		return Decision{Accept: d.Accept, Reasoning: r}
	}

	threshold := acceptFactor * strat.BasePrice
	r.Factors = append(r.Factors, fmt.Sprintf("threshold=%.4f", threshold))
	accept := item.Payment >= threshold
	reason := "offer below acceptable rate"
	if accept {
		reason = "offer meets acceptable rate"
	}
	return heuristicDecision(r, accept, 0.6, reason)
}

func heuristicDecision(r Reasoning, accept bool, confidence float64, reason string) Decision {
	r.Decision = acceptWord(accept)
	r.Confidence = confidence
	r.Rationale = reason
	r.Heuristic = true
	return Decision{Accept: accept, Reasoning: r}
}

func acceptWord(accept bool) string {
	if accept {
		return "accept"
	}
	return "reject"
}

// Price quotes for work in cat given the current market price. Cartel members
// quote the fixed cartel price. The result is clamped to [MinPrice, MaxPrice].
func (a *Actor) Price(cat economy.Category, market float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if market <= 0 {
		market = economy.BasePrice(cat)
	}
	s := a.Strategy
	var p float64
	switch {
	case a.CartelPrice > 0 && s.Pricing == PricingPremium:
		p = a.CartelPrice
	case s.Pricing == PricingAggressive:
		p = 0.8 * market
	case s.Pricing == PricingPremium && a.Reputation > 70:
		p = 1.5 * market
	default:
		p = market
	}
	if p < s.MinPrice {
		p = s.MinPrice
	}
	if p > s.MaxPrice {
		p = s.MaxPrice
	}
	return p
}

// Execute delivers a settled job: counts it, credits the payment, and applies
// the category's reputation rule. Narration is cosmetic and optional.
func (a *Actor) Execute(ctx context.Context, mind *llm.Reasoner, item *economy.WorkItem, narrate bool) Outcome {
	var narrative string
	if narrate && mind.Enabled() {
		if text, err := llm.NarrateService(ctx, mind, a.Name, string(a.Category), item.Description, item.Payment); err == nil {
			narrative = text
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p := ProfileFor(a.Category)
	before := a.Reputation
	a.Reputation = clampReputation(a.Reputation + p.ReputationDelta(item.Payment, a.Strategy.BasePrice))
	a.Completed++
	a.Balance += item.Payment
	a.Earned += item.Payment

	desc := narrative
	if desc == "" {
		desc = fmt.Sprintf("Delivered a %s for %q at %.4f", p.Deliverable, item.Description, item.Payment)
	}
	a.addEventLocked("delivered", desc)

	return Outcome{
		ActorID:         a.ID,
		ItemID:          item.ID,
		Payment:         item.Payment,
		ReputationDelta: a.Reputation - before,
		Balance:         a.Balance,
		Narrative:       narrative,
	}
}

// AdaptStrategy revisits the pricing mode. Critical status forces aggressive
// pricing with a lowered minimum (and abandons any cartel price); high balance
// with high reputation forces premium. Reasoning is consulted only past the
// minimum activity threshold and only a valid mode is applied.
func (a *Actor) AdaptStrategy(ctx context.Context, mind *llm.Reasoner, cfg config.StrategyConfig, market float64) StrategyChange {
	a.mu.Lock()
	status := a.thresholds.StatusFor(a.Balance)
	ch := StrategyChange{ActorID: a.ID, ActorName: a.Name, From: a.Strategy.Pricing, To: a.Strategy.Pricing, Heuristic: true}
	r := a.reasoning("strategy")
	r.Factors = []string{
		fmt.Sprintf("status=%s", status),
		fmt.Sprintf("balance=%.4f", a.Balance),
		fmt.Sprintf("reputation=%.0f", a.Reputation),
	}

	switch {
	case status == StatusExhausted:
		a.mu.Unlock()
		return finishChange(ch, r, "exhausted", 1)
	case status == StatusCritical:
		a.Strategy.Pricing = PricingAggressive
		a.Strategy.MinPrice = cfg.DesperationMinFactor * a.Strategy.BasePrice
		a.CartelPrice = 0
		ch.To = PricingAggressive
		a.addEventLocked("strategy", "Cut prices to survive")
		a.mu.Unlock()
		return finishChange(ch, r, "critical balance forces aggressive pricing", 1)
	case a.Balance >= cfg.HighBalance && a.Reputation >= cfg.HighReputation:
		a.Strategy.Pricing = PricingPremium
		ch.To = PricingPremium
		if ch.From != ch.To {
			a.addEventLocked("strategy", "Raised prices on the strength of reputation")
		}
		a.mu.Unlock()
		return finishChange(ch, r, "wealth and reputation support premium pricing", 1)
	}

	activity := a.Completed + a.Requested
	actx := a.context()
	recent := a.recentEventsLocked(5)
	a.mu.Unlock()

	if activity < cfg.MinActivity {
		return finishChange(ch, r, "not enough activity to reconsider", 0.5)
	}

	adv, err := llm.GenerateStrategyAdvice(ctx, mind, actx, market, recent)
	if err != nil {
		return finishChange(ch, r, "keeping current strategy", 0.5)
	}
	mode := PricingMode(adv.Pricing)
	if !mode.Valid() {
		return finishChange(ch, r, "keeping current strategy", 0.5)
	}

	a.mu.Lock()
	if a.CartelPrice > 0 && mode != PricingPremium {
		a.CartelPrice = 0
	}
	a.Strategy.Pricing = mode
	if ch.From != mode {
		a.addEventLocked("strategy", fmt.Sprintf("Switched to %s pricing: %s", mode, adv.Reason))
	}
	a.mu.Unlock()

	ch.To = mode
	ch.Heuristic = false
	r.Heuristic = false
	r.Decision = string(mode)
	r.Confidence = 0.7
	r.Rationale = adv.Reason
	ch.Changed = ch.From != ch.To
	ch.Reason = adv.Reason
	ch.Reasoning = r
	return ch
}

func finishChange(ch StrategyChange, r Reasoning, reason string, confidence float64) StrategyChange {
	ch.Changed = ch.From != ch.To
	ch.Reason = reason
	r.Decision = string(ch.To)
	r.Confidence = confidence
	r.Rationale = reason
	r.Heuristic = true
	ch.Reasoning = r
	return ch
}

// Debit removes up to amount from the balance and returns what was taken.
func (a *Actor) Debit(amount float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount <= 0 {
		return 0
	}
	if amount > a.Balance {
		amount = a.Balance
	}
	if amount < 0 {
		amount = 0
	}
	a.Balance -= amount
	a.Spent += amount
	return amount
}

// Credit adds to the balance without counting it as earned income.
func (a *Actor) Credit(amount float64) {
	if amount <= 0 {
		return
	}
	a.mu.Lock()
	a.Balance += amount
	a.mu.Unlock()
}

// Finalize marks the actor dead. Returns false if it was already finalized.
func (a *Actor) Finalize(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FinalizedAt != nil {
		return false
	}
	a.FinalizedAt = &now
	a.CartelPrice = 0
	a.addEventLocked("death", fmt.Sprintf("Ran out of funds after %d jobs", a.Completed))
	return true
}

// Liquidate zeroes the balance and returns the residual.
func (a *Actor) Liquidate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.Balance
	a.Balance = 0
	return r
}
