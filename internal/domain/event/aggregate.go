package event

import "fmt"

// Handler applies a single event of a given type to aggregate state.
type Handler func(Event) error

// Aggregate is the embeddable base for event-sourced entities. All externally
// observable state changes are side effects of applying exactly one event;
// live mutation and history replay go through the same Apply path so a
// replayed aggregate is identical to one fed the same events live.
type Aggregate struct {
	id          string
	version     int
	uncommitted []Event
	handlers    map[string]Handler
}

// NewAggregate creates an aggregate base with the given identity.
func NewAggregate(id string) Aggregate {
	return Aggregate{
		id:       id,
		handlers: make(map[string]Handler),
	}
}

// On registers the handler for an event type. Registration happens once,
// in the concrete aggregate's constructor.
func (a *Aggregate) On(eventType string, h Handler) {
	a.handlers[eventType] = h
}

func (a *Aggregate) ID() string {
	return a.id
}

func (a *Aggregate) Version() int {
	return a.version
}

// Apply dispatches ev to its registered handler and increments the version.
func (a *Aggregate) Apply(ev Event) error {
	h, ok := a.handlers[ev.Type]
	if !ok {
		return fmt.Errorf("aggregate %s has no handler for event type %q", a.id, ev.Type)
	}
	if err := h(ev); err != nil {
		return fmt.Errorf("failed to apply event %q: %w", ev.Type, err)
	}

	a.version++
	return nil
}

// Raise builds a new event for this aggregate, applies it, and queues it
// for persistence.
func (a *Aggregate) Raise(eventType string, payload any) error {
	ev, err := New(a.id, eventType, payload)
	if err != nil {
		return err
	}
	if err := a.Apply(ev); err != nil {
		return err
	}

	a.uncommitted = append(a.uncommitted, ev)
	return nil
}

// LoadFromHistory replays events in order through Apply without adding them
// to the uncommitted queue.
func (a *Aggregate) LoadFromHistory(events []Event) error {
	for _, ev := range events {
		if err := a.Apply(ev); err != nil {
			return err
		}
	}
	return nil
}

// UncommittedEvents returns the events raised since the last commit, in order.
func (a *Aggregate) UncommittedEvents() []Event {
	out := make([]Event, len(a.uncommitted))
	copy(out, a.uncommitted)
	return out
}

// MarkEventsCommitted clears the uncommitted queue after a collaborator
// event store has persisted the events (at-least-once).
func (a *Aggregate) MarkEventsCommitted() {
	a.uncommitted = nil
}
