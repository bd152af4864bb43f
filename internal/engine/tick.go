// Package engine provides the arena orchestrator and its cycle loop.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the engine lifecycle state.
type State string

const (
	StateNotStarted State = "not-started"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
)

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("engine already running")

// Engine drives the simulation forward, one cycle per interval while running.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration

	// OnCycle, if set, is called after every cycle with its stats.
	OnCycle func(Stats)

	cycleMu sync.Mutex // one cycle at a time, loop or RunTick

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an engine around a simulation.
func NewEngine(sim *Simulation, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Engine{Sim: sim, Interval: interval, state: StateNotStarted}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	if e == nil {
		return StateNotStarted
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == "" {
		return StateNotStarted
	}
	return e.state
}

// Start launches the cycle loop. A stopped engine may be started again.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		return ErrRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = StateRunning
	go e.run(loopCtx, e.done)

	slog.Info("arena engine started", "cycle", e.Sim.Cycle(), "interval", e.Interval)
	return nil
}

// Stop halts the loop and waits for any in-flight cycle to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning {
		if e.state == StateNotStarted {
			e.state = StateStopped
		}
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	slog.Info("arena engine stopped", "cycle", e.Sim.Cycle())
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer e.exited(done)
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stop may have landed while we waited.
			if ctx.Err() != nil {
				return
			}
			e.step(ctx)
		}
	}
}

// exited marks the engine stopped when the loop ends on its own, for
// instance because the context passed to Start was cancelled.
func (e *Engine) exited(done chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == done && e.state == StateRunning {
		e.state = StateStopped
		slog.Info("arena engine loop exited", "cycle", e.Sim.Cycle())
	}
}

// RunTick advances one cycle on demand. It is safe to call repeatedly and
// before Start. A stopped engine, or one with no actors, returns the current
// stats without advancing, and so does one without a simulation.
func (e *Engine) RunTick(ctx context.Context) Stats {
	if e == nil || e.Sim == nil {
		return Stats{State: string(e.State())}
	}
	if e.State() == StateStopped || e.Sim.ActorCount() == 0 {
		return e.Stats()
	}
	return e.step(ctx)
}

func (e *Engine) step(ctx context.Context) Stats {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	stats := e.Sim.RunCycle(ctx)
	stats.State = string(e.State())
	if e.OnCycle != nil {
		e.OnCycle(stats)
	}
	return stats
}

// Stats returns the simulation stats tagged with the engine state.
func (e *Engine) Stats() Stats {
	if e == nil || e.Sim == nil {
		return Stats{State: string(e.State())}
	}
	st := e.Sim.Stats()
	st.State = string(e.State())
	return st
}
