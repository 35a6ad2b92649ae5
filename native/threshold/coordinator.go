package threshold

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subnetgov/core/events"
	"subnetgov/crypto"
	"subnetgov/native/common"
	"subnetgov/native/registry"
	"subnetgov/native/slashing"
	"subnetgov/observability"
)

// DefaultTTL bounds signature collection when the caller passes no explicit
// window.
const DefaultTTL = 10 * time.Minute

// Observer is notified after a request reaches a terminal status. Callbacks
// receive a snapshot and run outside the subnet lock.
type Observer func(*Request)

// Coordinator manages signing requests: it collects and validates shares,
// aggregates once the threshold is met, and expires stale requests via the
// background sweep.
type Coordinator struct {
	registry *registry.Registry
	ledger   *slashing.Ledger
	emitter  events.Emitter
	nowFn    func() time.Time

	mu        sync.RWMutex
	requests  map[string]*Request
	observers []Observer
}

// NewCoordinator constructs a coordinator bound to the registry and slashing
// ledger. Share acceptance serialises on the registry's per-subnet locks.
func NewCoordinator(reg *registry.Registry, ledger *slashing.Ledger) *Coordinator {
	return &Coordinator{
		registry: reg,
		ledger:   ledger,
		emitter:  events.NoopEmitter{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		requests: make(map[string]*Request),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (c *Coordinator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (c *Coordinator) SetNowFunc(now func() time.Time) {
	if now == nil {
		c.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	c.nowFn = now
}

// Subscribe registers an observer for terminal request transitions.
func (c *Coordinator) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Coordinator) notify(snap *Request) {
	c.mu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// Request opens a signing request using the subnet scheme's threshold.
func (c *Coordinator) Request(subnet string, message []byte, purpose string, metadata map[string]string, ttl time.Duration) (string, error) {
	return c.RequestRequiring(subnet, message, purpose, metadata, ttl, 0)
}

// RequestRequiring opens a signing request with an explicit required share
// count; zero means the subnet scheme's threshold. Fails when the subnet has
// no validator set or the requirement exceeds the set size.
func (c *Coordinator) RequestRequiring(subnet string, message []byte, purpose string, metadata map[string]string, ttl time.Duration, required int) (string, error) {
	set, ok := c.registry.Set(subnet)
	if !ok {
		return "", fmt.Errorf("threshold: subnet %s has no validator set: %w", subnet, common.ErrNotFound)
	}
	if required == 0 {
		required = set.Scheme.Threshold
	}
	if required <= 0 || required > set.Scheme.Total {
		return "", fmt.Errorf("threshold: required %d out of range for set of %d: %w", required, set.Scheme.Total, common.ErrValidation)
	}
	if len(message) == 0 {
		return "", fmt.Errorf("threshold: message required: %w", common.ErrValidation)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := c.nowFn()
	req := &Request{
		ID:        uuid.NewString(),
		Subnet:    subnet,
		Message:   append([]byte(nil), message...),
		Digest:    crypto.Digest(message),
		Algorithm: set.Scheme.Algorithm,
		Required:  required,
		Status:    StatusCollecting,
		Purpose:   strings.TrimSpace(purpose),
		Metadata:  cloneMetadata(metadata),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		shares:    make(map[string]*Share),
	}
	c.mu.Lock()
	c.requests[req.ID] = req
	c.mu.Unlock()

	c.emitter.Emit(events.SignatureRequested{
		RequestID:      req.ID,
		Subnet:         subnet,
		Purpose:        req.Purpose,
		RequiredShares: required,
		ExpiresAt:      req.ExpiresAt,
	})
	return req.ID, nil
}

func cloneMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func (c *Coordinator) request(id string) (*Request, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	req, ok := c.requests[id]
	return req, ok
}

// SubmitShare validates and records one validator's share. Invalid
// signatures never abort the request: they are rejected, recorded as a
// slashing offense, and collection continues. A share arriving after
// completion is kept for record-keeping without re-triggering aggregation.
func (c *Coordinator) SubmitShare(requestID, validatorID string, signature []byte) (bool, error) {
	req, ok := c.request(requestID)
	if !ok {
		return false, fmt.Errorf("threshold: request %s: %w", requestID, common.ErrNotFound)
	}

	unlock := c.registry.Locks().Lock(req.Subnet)
	now := c.nowFn()

	if req.Status == StatusCollecting && now.After(req.ExpiresAt) {
		c.expireLocked(req)
		snap := req.snapshot()
		unlock()
		c.notify(snap)
		observability.Governance().RecordShare("expired")
		return false, fmt.Errorf("threshold: request %s past deadline: %w", requestID, common.ErrExpired)
	}
	if req.Status == StatusExpired || req.Status == StatusFailed {
		unlock()
		observability.Governance().RecordShare("expired")
		return false, fmt.Errorf("threshold: request %s is %s: %w", requestID, req.Status, common.ErrExpired)
	}

	set, ok := c.registry.View(req.Subnet)
	if !ok {
		unlock()
		return false, fmt.Errorf("threshold: subnet %s has no validator set: %w", req.Subnet, common.ErrNotFound)
	}
	v, found := set.Validator(validatorID)
	if !found {
		unlock()
		observability.Governance().RecordShare("ineligible")
		return false, fmt.Errorf("threshold: validator %s: %w", validatorID, common.ErrNotFound)
	}
	if !v.Eligible() {
		unlock()
		observability.Governance().RecordShare("ineligible")
		return false, fmt.Errorf("threshold: validator %s is %s: %w", validatorID, v.Status, common.ErrPermission)
	}
	if _, dup := req.shares[validatorID]; dup {
		unlock()
		observability.Governance().RecordShare("duplicate")
		return false, fmt.Errorf("threshold: validator %s already submitted: %w", validatorID, common.ErrDuplicate)
	}

	scheme, err := crypto.ByAlgorithm(req.Algorithm)
	if err != nil {
		unlock()
		return false, fmt.Errorf("threshold: %w", err)
	}
	if !scheme.Verify(v.PublicKey, req.Digest[:], signature) {
		unlock()
		observability.Governance().RecordShare("invalid")
		if c.ledger != nil {
			evidence := fmt.Sprintf("invalid share for request %s", req.ID)
			if _, err := c.ledger.Record(validatorID, slashing.ReasonMaliciousBehavior, slashing.SeverityMinor, evidence, "threshold-coordinator"); err != nil {
				return false, fmt.Errorf("threshold: record offense: %w", err)
			}
		}
		return false, fmt.Errorf("threshold: signature verification failed for %s: %w", validatorID, common.ErrValidation)
	}

	share := &Share{
		ValidatorID: validatorID,
		Signature:   append([]byte(nil), signature...),
		Digest:      req.Digest,
		SubmittedAt: now,
	}
	req.shares[validatorID] = share
	req.order = append(req.order, validatorID)
	req.Collected = len(req.shares)
	v.LastActive = now
	observability.Governance().RecordShare("accepted")

	c.emitter.Emit(events.SignatureShareSubmitted{
		RequestID:       req.ID,
		Subnet:          req.Subnet,
		ValidatorID:     validatorID,
		CollectedShares: req.Collected,
		RequiredShares:  req.Required,
	})

	// Aggregation fires exactly once, on the share that reaches the
	// threshold while the request is still collecting.
	var snap *Request
	if req.Status == StatusCollecting && req.Collected >= req.Required {
		c.aggregateLocked(req, scheme, now)
		snap = req.snapshot()
	}
	unlock()
	if snap != nil {
		c.notify(snap)
	}
	return true, nil
}

func (c *Coordinator) aggregateLocked(req *Request, scheme crypto.Scheme, now time.Time) {
	sigs := make([][]byte, 0, req.Required)
	for _, id := range req.order {
		sigs = append(sigs, req.shares[id].Signature)
		if len(sigs) == req.Required {
			break
		}
	}
	aggregated, err := scheme.Aggregate(sigs)
	if err != nil {
		req.Status = StatusFailed
		c.emitter.Emit(events.SignatureFailed{
			RequestID: req.ID,
			Subnet:    req.Subnet,
			Reason:    err.Error(),
		})
		return
	}
	req.Aggregated = aggregated
	req.Status = StatusComplete
	observability.Governance().RecordSignatureDuration(now.Sub(req.CreatedAt))
	c.emitter.Emit(events.SignatureCompleted{
		RequestID:           req.ID,
		Subnet:              req.Subnet,
		AggregatedSignature: aggregated,
	})
}

func (c *Coordinator) expireLocked(req *Request) {
	req.Status = StatusExpired
	c.emitter.Emit(events.SignatureExpired{
		RequestID: req.ID,
		Subnet:    req.Subnet,
	})
}

// Get returns a snapshot of the request.
func (c *Coordinator) Get(requestID string) (*Request, bool) {
	req, ok := c.request(requestID)
	if !ok {
		return nil, false
	}
	unlock := c.registry.Locks().Lock(req.Subnet)
	defer unlock()
	return req.snapshot(), true
}

// ExpireStale transitions every collecting request past its deadline to
// expired and returns how many were transitioned. Intended for the periodic
// sweep; safe to run concurrently with foreground submissions.
func (c *Coordinator) ExpireStale(now time.Time) int {
	c.mu.RLock()
	candidates := make([]*Request, 0)
	for _, req := range c.requests {
		candidates = append(candidates, req)
	}
	c.mu.RUnlock()

	expired := 0
	for _, req := range candidates {
		unlock := c.registry.Locks().Lock(req.Subnet)
		if req.Status == StatusCollecting && now.After(req.ExpiresAt) {
			c.expireLocked(req)
			expired++
			snap := req.snapshot()
			unlock()
			c.notify(snap)
			continue
		}
		unlock()
	}
	return expired
}
