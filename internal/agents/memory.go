// Actor event log: the most recent notable things that happened to an actor.
// Feeds strategy prompts and the agent detail view.
package agents

import "time"

// MaxEvents bounds each actor's event log.
const MaxEvents = 20

// Event is one entry in an actor's log.
type Event struct {
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
}

// addEventLocked appends an event, dropping the oldest when full. Caller holds mu.
func (a *Actor) addEventLocked(kind, desc string) {
	e := Event{Time: a.now(), Kind: kind, Description: desc}
	if len(a.Events) < MaxEvents {
		a.Events = append(a.Events, e)
		return
	}
	copy(a.Events, a.Events[1:])
	a.Events[len(a.Events)-1] = e
}

// AddEvent appends an event to the actor's log.
func (a *Actor) AddEvent(kind, desc string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addEventLocked(kind, desc)
}

// RecentEvents returns up to count most recent event descriptions, newest first.
func (a *Actor) RecentEvents(count int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recentEventsLocked(count)
}

func (a *Actor) recentEventsLocked(count int) []string {
	if count > len(a.Events) {
		count = len(a.Events)
	}
	out := make([]string, 0, count)
	for i := len(a.Events) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, a.Events[i].Description)
	}
	return out
}
