package outbox

import (
	"log/slog"

	"subnetgov/core/events"
)

// Emitter adapts the journal to the engines' fire-and-forget emitter
// interface. Journal failures are logged, never surfaced to the emitting
// engine.
type Emitter struct {
	box *Outbox
	log *slog.Logger
}

// NewEmitter wraps the journal. A nil logger falls back to the process
// default.
func NewEmitter(box *Outbox, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{box: box, log: log}
}

var _ events.Emitter = (*Emitter)(nil)

// Emit journals the event.
func (e *Emitter) Emit(evt events.Event) {
	env := evt.Event()
	if env == nil {
		return
	}
	if _, err := e.box.Append(env); err != nil {
		e.log.Error("journal event", "type", env.Type, "subnet", env.Subnet, "error", err)
	}
}
