package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBreakerOpen is returned once repeated failures have disabled reasoning.
var ErrBreakerOpen = errors.New("reasoning circuit breaker open")

// DefaultTimeout bounds a single reasoning call.
const DefaultTimeout = 5 * time.Second

// Reasoner is the engine-wide gateway to the provider. Every call carries a
// timeout; timeouts, provider errors, and unparsable answers all count as
// failures on the shared breaker.
type Reasoner struct {
	provider Provider
	breaker  *Breaker
	timeout  time.Duration
}

// NewReasoner wraps a provider. A nil or disabled provider yields a Reasoner that
// always reports ErrDisabled without touching the breaker.
func NewReasoner(p Provider, breaker *Breaker, timeout time.Duration) *Reasoner {
	if e, ok := p.(interface{ Enabled() bool }); ok && !e.Enabled() {
		p = nil
	}
	if breaker == nil {
		breaker = NewBreaker(3)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reasoner{provider: p, breaker: breaker, timeout: timeout}
}

// Enabled reports whether a call would reach the provider.
func (r *Reasoner) Enabled() bool {
	return r != nil && r.provider != nil && r.breaker.Allow()
}

// Breaker exposes the shared circuit breaker.
func (r *Reasoner) Breaker() *Breaker {
	if r == nil {
		return nil
	}
	return r.breaker
}

// Complete sends a single-turn prompt and returns the raw text.
func (r *Reasoner) Complete(ctx context.Context, system, user string) (string, error) {
	if r == nil || r.provider == nil {
		return "", ErrDisabled
	}
	if !r.breaker.Allow() {
		return "", ErrBreakerOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := r.provider.Chat(callCtx, []Message{{Role: "user", Content: user}}, system)
		done <- result{text, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.breaker.Failure()
			return "", fmt.Errorf("reasoning call: %w", res.err)
		}
		return res.text, nil
	case <-callCtx.Done():
		r.breaker.Failure()
		return "", fmt.Errorf("reasoning call: %w", callCtx.Err())
	}
}

// Query sends a prompt and parses the answer. A parse failure counts against the
// breaker exactly like a provider failure; a parsed answer resets it.
func Query[T any](ctx context.Context, r *Reasoner, system, user string, parse func(string) (T, error)) (T, error) {
	var zero T
	text, err := r.Complete(ctx, system, user)
	if err != nil {
		return zero, err
	}
	v, err := parse(text)
	if err != nil {
		r.breaker.Failure()
		return zero, fmt.Errorf("malformed reasoning response: %w", err)
	}
	r.breaker.Success()
	return v, nil
}
