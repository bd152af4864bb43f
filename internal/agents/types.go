// Package agents provides the actor model: balance, derived status, reputation,
// pricing strategy, a bounded event log, and the decision hooks each actor runs.
package agents

import (
	"context"
	"sync"
	"time"

	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/llm"
)

// Status is derived from balance; it is never set directly.
type Status string

const (
	StatusActive    Status = "active"
	StatusCritical  Status = "critical"
	StatusExhausted Status = "exhausted"
)

// Thresholds are the balance cutoffs behind Status. Critical must exceed Exhausted.
type Thresholds struct {
	Critical  float64 `json:"critical"`
	Exhausted float64 `json:"exhausted"`
}

// StatusFor maps a balance to a status.
func (t Thresholds) StatusFor(balance float64) Status {
	switch {
	case balance <= t.Exhausted:
		return StatusExhausted
	case balance <= t.Critical:
		return StatusCritical
	default:
		return StatusActive
	}
}

// PricingMode is an actor's pricing strategy.
type PricingMode string

const (
	PricingAggressive PricingMode = "aggressive"
	PricingBalanced   PricingMode = "balanced"
	PricingPremium    PricingMode = "premium"
)

// Valid reports whether m is an allowed pricing mode.
func (m PricingMode) Valid() bool {
	switch m {
	case PricingAggressive, PricingBalanced, PricingPremium:
		return true
	}
	return false
}

// Strategy is an actor's pricing and cooperation policy.
type Strategy struct {
	Pricing           PricingMode `json:"pricing"`
	BasePrice         float64     `json:"base_price"`
	MinPrice          float64     `json:"min_price"`
	MaxPrice          float64     `json:"max_price"`
	QualityFocus      float64     `json:"quality_focus"`      // 0.0–1.0
	AllianceThreshold float64     `json:"alliance_threshold"` // minimum partner reputation
	RiskTolerance     float64     `json:"risk_tolerance"`     // 0.0–1.0
}

// MinReputation and MaxReputation bound reputation after every update.
const (
	MinReputation = 0.0
	MaxReputation = 100.0
)

// Actor is one economic participant. All mutation goes through methods that
// hold mu, so one actor never sees two concurrent mutations.
type Actor struct {
	mu sync.Mutex

	ID       string           `json:"id"`
	Category economy.Category `json:"category"`
	Name     string           `json:"name"`

	// Economic
	Balance    float64 `json:"balance"`
	Reputation float64 `json:"reputation"` // 0–100
	Completed  int     `json:"completed"`
	Requested  int     `json:"requested"`
	Earned     float64 `json:"earned"`
	Spent      float64 `json:"spent"`
	Scams      int     `json:"scams"`

	Strategy    Strategy `json:"strategy"`
	CartelPrice float64  `json:"cartel_price,omitempty"` // non-zero while in a cartel

	// Event stream, most recent last
	Events []Event `json:"events,omitempty"`

	// Metadata
	CreatedAt   time.Time  `json:"created_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`

	thresholds Thresholds
	clock      func() time.Time
}

// Capability is the behavior every category variant shares. Category-specific
// differences come from the profile table, not from separate types.
type Capability interface {
	Decide(ctx context.Context, mind *llm.Reasoner, item *economy.WorkItem, acceptFactor float64) Decision
	Price(cat economy.Category, market float64) float64
	Execute(ctx context.Context, mind *llm.Reasoner, item *economy.WorkItem, narrate bool) Outcome
	AdaptStrategy(ctx context.Context, mind *llm.Reasoner, cfg config.StrategyConfig, market float64) StrategyChange
}

var _ Capability = (*Actor)(nil)

// Reasoning records why an actor decided something, whichever path decided it.
type Reasoning struct {
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	Kind       string    `json:"kind"` // decide, scam, cartel, strategy
	Decision   string    `json:"decision"`
	Factors    []string  `json:"factors"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	Heuristic  bool      `json:"heuristic"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot is a copy of an actor's state for readers outside the engine.
type Snapshot struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    economy.Category `json:"category"`
	Balance     float64          `json:"balance"`
	Status      Status           `json:"status"`
	Reputation  float64          `json:"reputation"`
	Completed   int              `json:"completed"`
	Requested   int              `json:"requested"`
	Earned      float64          `json:"earned"`
	Spent       float64          `json:"spent"`
	Scams       int              `json:"scams"`
	Strategy    Strategy         `json:"strategy"`
	CartelPrice float64          `json:"cartel_price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	FinalizedAt *time.Time       `json:"finalized_at,omitempty"`
	Events      []Event          `json:"events,omitempty"`
}

// NewActor creates an actor with a category-default strategy.
func NewActor(id, name string, cat economy.Category, balance, reputation float64, t Thresholds, now time.Time) *Actor {
	p := ProfileFor(cat)
	base := economy.BasePrice(cat)
	return &Actor{
		ID:         id,
		Category:   cat,
		Name:       name,
		Balance:    balance,
		Reputation: clampReputation(reputation),
		Strategy: Strategy{
			Pricing:           PricingBalanced,
			BasePrice:         base,
			MinPrice:          base * 0.5,
			MaxPrice:          base * 3,
			QualityFocus:      p.QualityFocus,
			AllianceThreshold: p.AllianceThreshold,
			RiskTolerance:     p.RiskTolerance,
		},
		CreatedAt:  now,
		thresholds: t,
		clock:      time.Now,
	}
}

// SetClock replaces the time source for reasoning and event timestamps.
// Call it before the actor is shared.
func (a *Actor) SetClock(now func() time.Time) {
	if now != nil {
		a.clock = now
	}
}

func (a *Actor) now() time.Time {
	if a.clock == nil {
		return time.Now()
	}
	return a.clock()
}

// Status returns the status derived from the current balance.
func (a *Actor) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.thresholds.StatusFor(a.Balance)
}

// Alive reports whether the actor has not been finalized.
func (a *Actor) Alive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.FinalizedAt == nil
}

// BalanceNow returns the current balance.
func (a *Actor) BalanceNow() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Balance
}

// ReputationNow returns the current reputation.
func (a *Actor) ReputationNow() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Reputation
}

// InCartel reports whether the actor currently prices at a cartel price.
func (a *Actor) InCartel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.CartelPrice > 0
}

// Snapshot copies the actor's state.
func (a *Actor) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := make([]Event, len(a.Events))
	copy(events, a.Events)
	var fin *time.Time
	if a.FinalizedAt != nil {
		t := *a.FinalizedAt
		fin = &t
	}
	return Snapshot{
		ID:          a.ID,
		Name:        a.Name,
		Category:    a.Category,
		Balance:     a.Balance,
		Status:      a.thresholds.StatusFor(a.Balance),
		Reputation:  a.Reputation,
		Completed:   a.Completed,
		Requested:   a.Requested,
		Earned:      a.Earned,
		Spent:       a.Spent,
		Scams:       a.Scams,
		Strategy:    a.Strategy,
		CartelPrice: a.CartelPrice,
		CreatedAt:   a.CreatedAt,
		FinalizedAt: fin,
		Events:      events,
	}
}

func (a *Actor) context() llm.ActorContext {
	return llm.ActorContext{
		Name:       a.Name,
		Category:   string(a.Category),
		Balance:    a.Balance,
		Status:     string(a.thresholds.StatusFor(a.Balance)),
		Reputation: a.Reputation,
		Pricing:    string(a.Strategy.Pricing),
		BasePrice:  a.Strategy.BasePrice,
		MinPrice:   a.Strategy.MinPrice,
		Completed:  a.Completed,
	}
}

func clampReputation(r float64) float64 {
	if r < MinReputation {
		return MinReputation
	}
	if r > MaxReputation {
		return MaxReputation
	}
	return r
}
