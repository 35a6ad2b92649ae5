package slashing

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"subnetgov/core/events"
	"subnetgov/native/common"
	"subnetgov/native/registry"
	"subnetgov/observability"
)

// Ledger records misbehavior evidence against validators and applies the
// mapped reputation penalty through the registry. Penalties only ever
// decrease reputation; recovery happens exclusively through the registry's
// maintenance job.
type Ledger struct {
	mu        sync.Mutex
	events    map[string][]*Event
	registry  *registry.Registry
	emitter   events.Emitter
	nowFn     func() time.Time
	penalties map[Severity]int
}

// NewLedger constructs a ledger applying penalties through the registry.
func NewLedger(reg *registry.Registry) *Ledger {
	return &Ledger{
		events:    make(map[string][]*Event),
		registry:  reg,
		emitter:   events.NoopEmitter{},
		nowFn:     func() time.Time { return time.Now().UTC() },
		penalties: DefaultPenalties(),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		l.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	l.nowFn = now
}

// SetPenalties overrides the severity-to-penalty mapping, e.g. from the
// configuration source.
func (l *Ledger) SetPenalties(penalties map[Severity]int) {
	if len(penalties) == 0 {
		return
	}
	merged := DefaultPenalties()
	for sev, points := range penalties {
		if sev.Valid() && points > 0 {
			merged[sev] = points
		}
	}
	l.penalties = merged
}

// Record appends a slashing event, deducts the mapped penalty from the
// validator's reputation, and flips its status to compromised when the
// reputation drops below the bar.
func (l *Ledger) Record(validatorID string, reason Reason, severity Severity, evidence, reportedBy string) (*Event, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("slashing: unknown reason %q: %w", reason, common.ErrValidation)
	}
	if !severity.Valid() {
		return nil, fmt.Errorf("slashing: unknown severity %q: %w", severity, common.ErrValidation)
	}
	if l.registry == nil {
		return nil, fmt.Errorf("slashing: registry not configured")
	}
	subnet, _, ok := l.registry.Lookup(validatorID)
	if !ok {
		return nil, fmt.Errorf("slashing: validator %s: %w", validatorID, common.ErrNotFound)
	}
	penalty := l.penalties[severity]
	newRep, _, err := l.registry.Penalize(validatorID, penalty)
	if err != nil {
		return nil, err
	}

	event := &Event{
		ID:            uuid.NewString(),
		ValidatorID:   validatorID,
		Reason:        reason,
		Severity:      severity,
		Penalty:       penalty,
		Evidence:      evidence,
		ReportedBy:    reportedBy,
		RecordedAt:    l.nowFn(),
		NewReputation: newRep,
	}
	l.mu.Lock()
	l.events[validatorID] = append(l.events[validatorID], event)
	l.mu.Unlock()

	observability.Governance().RecordSlash(string(severity))
	l.emitter.Emit(events.ValidatorSlashed{
		Subnet:        subnet,
		ValidatorID:   validatorID,
		Reason:        string(reason),
		Severity:      string(severity),
		Penalty:       penalty,
		NewReputation: newRep,
	})
	return event, nil
}

// History returns the slashing events recorded against a validator, oldest
// first.
func (l *Ledger) History(validatorID string) []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := l.events[validatorID]
	out := make([]*Event, len(history))
	for i, evt := range history {
		clone := *evt
		out[i] = &clone
	}
	return out
}

// Resolve marks an event as acknowledged by an operator. The applied penalty
// stands.
func (l *Ledger) Resolve(eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, history := range l.events {
		for _, evt := range history {
			if evt.ID == eventID {
				evt.Resolved = true
				return nil
			}
		}
	}
	return fmt.Errorf("slashing: event %s: %w", eventID, common.ErrNotFound)
}
