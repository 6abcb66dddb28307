package events

import "lendcore/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. the HTTP API, the
// event index).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Fanout forwards every event to each emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, em := range f {
		if em != nil {
			em.Emit(evt)
		}
	}
}

// Flatten converts evt to its attribute form. Events that do not provide
// their own encoding only carry the type.
func Flatten(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if enc, ok := evt.(interface{ Event() *types.Event }); ok {
		if out := enc.Event(); out != nil {
			return out
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
