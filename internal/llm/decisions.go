// Actor decision prompts: accept/reject, fraud, cartel membership, pricing strategy.
// Each Generate* call returns a parsed, validated answer or an error; callers
// fall back to their heuristics on any error.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const arenaSystem = `You are an autonomous AI service agent competing in an open marketplace.
You earn currency by completing work and you die when your balance runs out.
Answer ONLY with a single JSON object, no prose before or after it.`

// ActorContext is the self-description every decision prompt starts from.
type ActorContext struct {
	Name       string
	Category   string
	Balance    float64
	Status     string
	Reputation float64
	Pricing    string
	BasePrice  float64
	MinPrice   float64
	Completed  int
}

func (a ActorContext) describe(b *strings.Builder) {
	fmt.Fprintf(b, "You are %s, a %s agent. Balance: %.4f (%s). Reputation: %.0f/100.\n",
		a.Name, a.Category, a.Balance, a.Status, a.Reputation)
	fmt.Fprintf(b, "Pricing: %s (base %.4f, minimum %.4f). Jobs completed: %d.\n\n",
		a.Pricing, a.BasePrice, a.MinPrice, a.Completed)
}

// ── Accept / reject ───────────────────────────────────────────────────

// AcceptDecision is the answer to a work offer.
type AcceptDecision struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

// GenerateAcceptDecision asks whether to take a work item.
func GenerateAcceptDecision(ctx context.Context, r *Reasoner, actor ActorContext, offer float64, description string) (*AcceptDecision, error) {
	var b strings.Builder
	actor.describe(&b)
	fmt.Fprintf(&b, "A client offers %.4f for: %q.\n", offer, description)
	b.WriteString(`Do you accept? Respond with {"accept": true|false, "reason": "<one sentence>"}.`)

	d, err := Query(ctx, r, arenaSystem, b.String(), parseAcceptResponse)
	if err != nil {
		return nil, fmt.Errorf("accept decision: %w", err)
	}
	return d, nil
}

func parseAcceptResponse(response string) (*AcceptDecision, error) {
	var raw struct {
		Accept *bool  `json:"accept"`
		Reason string `json:"reason"`
	}
	if err := decodeObject(response, &raw); err != nil {
		return nil, err
	}
	if raw.Accept == nil {
		return nil, fmt.Errorf("missing accept field")
	}
	return &AcceptDecision{Accept: *raw.Accept, Reason: raw.Reason}, nil
}

// ── Fraud ─────────────────────────────────────────────────────────────

// ScamAdvice is the provider's recommendation on defrauding a client. It weights
// the final coin flip rather than deciding it.
type ScamAdvice struct {
	Scam   bool   `json:"scam"`
	Reason string `json:"reason"`
}

// GenerateScamAdvice asks whether to take the payment without delivering.
func GenerateScamAdvice(ctx context.Context, r *Reasoner, actor ActorContext, payment float64) (*ScamAdvice, error) {
	var b strings.Builder
	actor.describe(&b)
	fmt.Fprintf(&b, "A client has agreed to pay %.4f up front. You could keep the money and not deliver.\n", payment)
	b.WriteString("Scamming costs a large amount of reputation if noticed.\n")
	b.WriteString(`Do you scam? Respond with {"scam": true|false, "reason": "<one sentence>"}.`)

	a, err := Query(ctx, r, arenaSystem, b.String(), parseScamResponse)
	if err != nil {
		return nil, fmt.Errorf("scam advice: %w", err)
	}
	return a, nil
}

func parseScamResponse(response string) (*ScamAdvice, error) {
	var raw struct {
		Scam   *bool  `json:"scam"`
		Reason string `json:"reason"`
	}
	if err := decodeObject(response, &raw); err != nil {
		return nil, err
	}
	if raw.Scam == nil {
		return nil, fmt.Errorf("missing scam field")
	}
	return &ScamAdvice{Scam: *raw.Scam, Reason: raw.Reason}, nil
}

// ── Cartel ────────────────────────────────────────────────────────────

// CartelProposal is one actor's answer in a price-fixing negotiation.
type CartelProposal struct {
	Join       bool    `json:"join"`
	Multiplier float64 `json:"multiplier"`
	Reason     string  `json:"reason"`
}

// MinMultiplier and MaxMultiplier bound proposed cartel price multipliers.
const (
	MinMultiplier = 1.0
	MaxMultiplier = 2.0
)

// GenerateCartelProposal asks whether to join a cartel and at what markup.
func GenerateCartelProposal(ctx context.Context, r *Reasoner, actor ActorContext, marketPrice float64, peers []string) (*CartelProposal, error) {
	var b strings.Builder
	actor.describe(&b)
	fmt.Fprintf(&b, "Other %s agents (%s) propose fixing a shared price. Market price is %.4f.\n",
		actor.Category, strings.Join(peers, ", "), marketPrice)
	b.WriteString("A cartel needs at least 3 members. Propose a price multiplier between 1.0 and 2.0.\n")
	b.WriteString(`Respond with {"join": true|false, "multiplier": <number>, "reason": "<one sentence>"}.`)

	p, err := Query(ctx, r, arenaSystem, b.String(), parseCartelResponse)
	if err != nil {
		return nil, fmt.Errorf("cartel proposal: %w", err)
	}
	return p, nil
}

func parseCartelResponse(response string) (*CartelProposal, error) {
	var raw struct {
		Join       *bool    `json:"join"`
		Multiplier *float64 `json:"multiplier"`
		Reason     string   `json:"reason"`
	}
	if err := decodeObject(response, &raw); err != nil {
		return nil, err
	}
	if raw.Join == nil {
		return nil, fmt.Errorf("missing join field")
	}
	p := &CartelProposal{Join: *raw.Join, Reason: raw.Reason, Multiplier: MinMultiplier}
	if p.Join {
		if raw.Multiplier == nil || *raw.Multiplier <= 0 {
			return nil, fmt.Errorf("join without a positive multiplier")
		}
		p.Multiplier = clamp(*raw.Multiplier, MinMultiplier, MaxMultiplier)
	}
	return p, nil
}

// ── Strategy ──────────────────────────────────────────────────────────

// PricingModes are the strategies a provider may recommend.
var PricingModes = []string{"aggressive", "balanced", "premium"}

// StrategyAdvice recommends a pricing mode.
type StrategyAdvice struct {
	Pricing string `json:"pricing"`
	Reason  string `json:"reason"`
}

// GenerateStrategyAdvice asks which pricing mode to run next.
func GenerateStrategyAdvice(ctx context.Context, r *Reasoner, actor ActorContext, marketPrice float64, recent []string) (*StrategyAdvice, error) {
	var b strings.Builder
	actor.describe(&b)
	fmt.Fprintf(&b, "Current market price for %s work: %.4f.\n", actor.Category, marketPrice)
	if len(recent) > 0 {
		b.WriteString("Recent experiences:\n")
		for _, e := range recent {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\nChoose one pricing mode from %s.\n", strings.Join(PricingModes, ", "))
	b.WriteString(`Respond with {"pricing": "<mode>", "reason": "<one sentence>"}.`)

	a, err := Query(ctx, r, arenaSystem, b.String(), parseStrategyResponse)
	if err != nil {
		return nil, fmt.Errorf("strategy advice: %w", err)
	}
	return a, nil
}

func parseStrategyResponse(response string) (*StrategyAdvice, error) {
	var a StrategyAdvice
	if err := decodeObject(response, &a); err != nil {
		return nil, err
	}
	a.Pricing = strings.ToLower(strings.TrimSpace(a.Pricing))
	for _, m := range PricingModes {
		if a.Pricing == m {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("invalid pricing mode: %q", a.Pricing)
}

// decodeObject finds the JSON object in a response (the model might include
// explanation text) and unmarshals it.
func decodeObject(response string, v any) error {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
