package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind names an observable arena event.
type EventKind string

const (
	EventTransaction     EventKind = "transaction"
	EventDeath           EventKind = "death"
	EventScamDetected    EventKind = "scam-detected"
	EventCartelFormed    EventKind = "cartel-formed"
	EventCartelDissolved EventKind = "cartel-dissolved"
	EventAllianceFormed  EventKind = "alliance-formed"
	EventAllianceBroken  EventKind = "alliance-broken"
	EventStrategyChanged EventKind = "strategy-changed"
	EventReasoning       EventKind = "reasoning"
	EventStats           EventKind = "stats"
	EventAgents          EventKind = "agents"
	EventHistory         EventKind = "history"
)

// Event is a notable occurrence in the arena.
type Event struct {
	Kind        EventKind `json:"kind"`
	Cycle       uint64    `json:"cycle"`
	Time        time.Time `json:"time"`
	Description string    `json:"description,omitempty"`
	Data        any       `json:"data,omitempty"`
}

// snapshotKind reports kinds that carry whole-arena projections. They are
// broadcast but not kept in the event ring.
func (k EventKind) snapshotKind() bool {
	return k == EventStats || k == EventAgents || k == EventHistory
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	dropped atomic.Uint64
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size.
func (b *Bus) Subscribe(buffer int) (int, <-chan Event) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers e to every subscriber that has room.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
