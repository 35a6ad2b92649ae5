package critical

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subnetgov/core/events"
	"subnetgov/native/common"
	"subnetgov/native/registry"
	"subnetgov/native/threshold"
)

// Status enumerates a critical operation's lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSigned   Status = "signed"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
	StatusExpired  Status = "expired"
)

// Operation wraps an action requiring BFT approval. It owns exactly one
// signature request; its status mirrors the request until signed, after
// which the caller drives it to executed.
type Operation struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Subnet      string    `json:"subnet"`
	Payload     []byte    `json:"payload"`
	Required    int       `json:"required"`
	Collected   int       `json:"collected"`
	Status      Status    `json:"status"`
	InitiatedBy string    `json:"initiatedBy"`
	Deadline    time.Time `json:"deadline"`
	RequestID   string    `json:"requestId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Manager creates critical operations and mirrors their linked signature
// request's terminal transitions.
type Manager struct {
	registry *registry.Registry
	coord    *threshold.Coordinator
	emitter  events.Emitter
	nowFn    func() time.Time

	mu        sync.Mutex
	ops       map[string]*Operation
	byRequest map[string]string
}

// NewManager constructs a manager and subscribes it to the coordinator's
// terminal request transitions.
func NewManager(reg *registry.Registry, coord *threshold.Coordinator) *Manager {
	m := &Manager{
		registry:  reg,
		coord:     coord,
		emitter:   events.NoopEmitter{},
		nowFn:     func() time.Time { return time.Now().UTC() },
		ops:       make(map[string]*Operation),
		byRequest: make(map[string]string),
	}
	coord.Subscribe(m.onRequestTransition)
	return m
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (m *Manager) SetNowFunc(now func() time.Time) {
	if now == nil {
		m.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	m.nowFn = now
}

// Create opens a critical operation. The signature requirement is 2f+1 for
// f = floor((n-1)/3) over the subnet's current validator count n.
func (m *Manager) Create(opType, subnet string, payload []byte, initiatedBy string, deadline time.Time) (string, error) {
	opType = strings.TrimSpace(opType)
	if opType == "" {
		return "", fmt.Errorf("critical: operation type required: %w", common.ErrValidation)
	}
	set, ok := m.registry.Set(subnet)
	if !ok {
		return "", fmt.Errorf("critical: subnet %s has no validator set: %w", subnet, common.ErrNotFound)
	}
	now := m.nowFn()
	if !deadline.After(now) {
		return "", fmt.Errorf("critical: deadline must be in the future: %w", common.ErrValidation)
	}

	f := registry.FaultTolerance(set.Scheme.Total)
	required := 2*f + 1

	opID := uuid.NewString()
	requestID, err := m.coord.RequestRequiring(subnet, payload, "critical:"+opType, map[string]string{
		"operationId": opID,
		"initiator":   initiatedBy,
		"critical":    "true",
	}, deadline.Sub(now), required)
	if err != nil {
		return "", err
	}

	op := &Operation{
		ID:          opID,
		Type:        opType,
		Subnet:      subnet,
		Payload:     append([]byte(nil), payload...),
		Required:    required,
		Status:      StatusPending,
		InitiatedBy: initiatedBy,
		Deadline:    deadline,
		RequestID:   requestID,
		CreatedAt:   now,
	}
	m.mu.Lock()
	m.ops[opID] = op
	m.byRequest[requestID] = opID
	m.mu.Unlock()

	m.emitter.Emit(events.CriticalOperationCreated{
		OperationID:        opID,
		Subnet:             subnet,
		Type:               opType,
		RequiredSignatures: required,
	})
	return opID, nil
}

// Status returns a copy of the operation.
func (m *Manager) Status(operationID string) (*Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[operationID]
	if !ok {
		return nil, false
	}
	clone := *op
	clone.Payload = append([]byte(nil), op.Payload...)
	return &clone, true
}

// MarkExecuted transitions a signed operation to executed. Callers invoke it
// after applying the operation's side effect.
func (m *Manager) MarkExecuted(operationID string) error {
	m.mu.Lock()
	op, ok := m.ops[operationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("critical: operation %s: %w", operationID, common.ErrNotFound)
	}
	if op.Status != StatusSigned {
		status := op.Status
		m.mu.Unlock()
		return fmt.Errorf("critical: operation %s is %s, not signed: %w", operationID, status, common.ErrValidation)
	}
	op.Status = StatusExecuted
	subnet, opType := op.Subnet, op.Type
	m.mu.Unlock()

	m.emitter.Emit(events.CriticalOperationExecuted{
		OperationID: operationID,
		Subnet:      subnet,
		Type:        opType,
	})
	return nil
}

// onRequestTransition mirrors the linked signature request's terminal state
// into the wrapping operation.
func (m *Manager) onRequestTransition(req *threshold.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opID, ok := m.byRequest[req.ID]
	if !ok {
		return
	}
	op := m.ops[opID]
	op.Collected = req.Collected
	if op.Status != StatusPending {
		return
	}
	switch req.Status {
	case threshold.StatusComplete:
		op.Status = StatusSigned
	case threshold.StatusExpired:
		op.Status = StatusExpired
	case threshold.StatusFailed:
		op.Status = StatusFailed
	}
}
