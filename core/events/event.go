package events

// Envelope is the generic representation of a structured subsystem event. It
// is the shape handed to downstream sinks (outbox, indexers, webhooks).
type Envelope struct {
	Type       string            `json:"type"`
	Subnet     string            `json:"subnet,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// Event represents a structured state change emitted by the governance
// subsystem.
type Event interface {
	EventType() string
	Event() *Envelope
}

// Emitter broadcasts events to downstream subscribers (e.g. the outbox or an
// embedding process).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
