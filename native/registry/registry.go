package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"subnetgov/core/events"
	"subnetgov/core/identity"
	"subnetgov/crypto"
	"subnetgov/native/common"
)

const (
	defaultInitialReputation = 100
	defaultMinValidators     = 1
	defaultMaxValidators     = 100
)

// MaintenancePolicy tunes the daily reputation upkeep job.
type MaintenancePolicy struct {
	// InactivityGrace is how long a validator may stay idle before decay
	// starts.
	InactivityGrace time.Duration
	// InactiveAfter is how long a validator may stay idle before its
	// status flips to inactive.
	InactiveAfter time.Duration
	// DecayPoints is deducted per maintenance run once past the grace
	// window.
	DecayPoints int
	// BonusPoints is the participation bonus per maintenance run for
	// validators active inside the grace window, capped at 100.
	BonusPoints int
}

// DefaultMaintenancePolicy mirrors the operational defaults.
func DefaultMaintenancePolicy() MaintenancePolicy {
	return MaintenancePolicy{
		InactivityGrace: 72 * time.Hour,
		InactiveAfter:   7 * 24 * time.Hour,
		DecayPoints:     2,
		BonusPoints:     1,
	}
}

// Registry owns validator membership, weights, roles, status, and per-subnet
// key-scheme metadata. All read-modify-write sequences on one subnet run
// under that subnet's lock; the lock table is shared with the other engines
// via Locks.
type Registry struct {
	locks    *common.SubnetLocks
	resolver identity.Resolver
	emitter  events.Emitter
	nowFn    func() time.Time

	// mu guards the map headers below; per-record mutation additionally
	// holds the subnet lock.
	mu       sync.RWMutex
	sets     map[string]*ValidatorSet
	history  map[string][]*ValidatorSet
	index    map[string]string // validator id -> subnet
	rotation RotationPolicy
	upkeep   MaintenancePolicy
}

func (r *Registry) getSet(subnet string) (*ValidatorSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[subnet]
	return set, ok
}

func (r *Registry) subnetOf(validatorID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subnet, ok := r.index[validatorID]
	return subnet, ok
}

// New constructs a registry resolving validator identities through the given
// resolver. A nil resolver means every validator receives generated
// placeholder key material.
func New(resolver identity.Resolver) *Registry {
	return &Registry{
		locks:    common.NewSubnetLocks(),
		resolver: resolver,
		emitter:  events.NoopEmitter{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		sets:     make(map[string]*ValidatorSet),
		history:  make(map[string][]*ValidatorSet),
		index:    make(map[string]string),
		rotation: RotationPolicy{
			Interval:      24 * time.Hour,
			MaxAge:        30 * 24 * time.Hour,
			MinValidators: defaultMinValidators,
			MaxValidators: defaultMaxValidators,
		},
		upkeep: DefaultMaintenancePolicy(),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (r *Registry) SetNowFunc(now func() time.Time) {
	if now == nil {
		r.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	r.nowFn = now
}

// SetRotationPolicy replaces the default rotation policy applied to new sets.
func (r *Registry) SetRotationPolicy(policy RotationPolicy) {
	if policy.MinValidators <= 0 {
		policy.MinValidators = defaultMinValidators
	}
	if policy.MaxValidators <= 0 {
		policy.MaxValidators = defaultMaxValidators
	}
	r.rotation = policy
}

// SetMaintenancePolicy replaces the reputation upkeep knobs.
func (r *Registry) SetMaintenancePolicy(policy MaintenancePolicy) { r.upkeep = policy }

// Locks exposes the per-subnet lock table so sibling engines serialise with
// registry mutations on the same subnet.
func (r *Registry) Locks() *common.SubnetLocks { return r.locks }

func (r *Registry) now() time.Time { return r.nowFn() }

// InitializeSet registers the first validator set for a subnet. The
// threshold defaults to floor(2n/3)+1 when zero; overrides above n are
// rejected. Validators unknown to the identity resolver receive generated
// placeholder key material.
func (r *Registry) InitializeSet(subnet string, validatorIDs []string, alg crypto.Algorithm, threshold int) (*ValidatorSet, error) {
	subnet = strings.TrimSpace(subnet)
	if subnet == "" {
		return nil, fmt.Errorf("registry: subnet required: %w", common.ErrValidation)
	}
	if !alg.Valid() {
		return nil, fmt.Errorf("registry: unsupported algorithm %q: %w", alg, common.ErrValidation)
	}
	n := len(validatorIDs)
	if n < r.rotation.MinValidators {
		return nil, fmt.Errorf("registry: %d validators below minimum %d: %w", n, r.rotation.MinValidators, common.ErrValidation)
	}
	if n > r.rotation.MaxValidators {
		return nil, fmt.Errorf("registry: %d validators above maximum %d: %w", n, r.rotation.MaxValidators, common.ErrValidation)
	}
	if threshold > n {
		return nil, fmt.Errorf("registry: threshold %d exceeds validator count %d: %w", threshold, n, common.ErrValidation)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold(n)
	}

	unlock := r.locks.Lock(subnet)
	defer unlock()
	if _, exists := r.getSet(subnet); exists {
		return nil, fmt.Errorf("registry: subnet %s already initialised: %w", subnet, common.ErrValidation)
	}

	now := r.now()
	validators := make([]*Validator, 0, n)
	seen := make(map[string]struct{}, n)
	for _, raw := range validatorIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("registry: validator id must not be empty: %w", common.ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("registry: duplicate validator %s: %w", id, common.ErrDuplicate)
		}
		seen[id] = struct{}{}
		v, err := r.provision(id, alg, now)
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}

	set := &ValidatorSet{
		Subnet:     subnet,
		Validators: validators,
		Scheme: SchemeDescriptor{
			Algorithm: alg,
			Threshold: threshold,
			Total:     n,
		},
		Epoch:     1,
		Rotation:  r.rotation,
		CreatedAt: now,
	}
	r.mu.Lock()
	r.sets[subnet] = set
	for _, v := range validators {
		r.index[v.ID] = subnet
	}
	r.mu.Unlock()

	r.emitter.Emit(events.ValidatorsInitialized{
		Subnet:         subnet,
		ValidatorCount: n,
		Threshold:      threshold,
		Epoch:          set.Epoch,
	})
	return set, nil
}

func (r *Registry) provision(id string, alg crypto.Algorithm, now time.Time) (*Validator, error) {
	v := &Validator{
		ID:         id,
		Algorithm:  alg,
		Weight:     1,
		Role:       RolePrimary,
		Status:     StatusActive,
		Reputation: defaultInitialReputation,
		JoinedAt:   now,
		LastActive: now,
	}
	if r.resolver != nil {
		key, ok, err := r.resolver.Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("registry: resolve identity %s: %w", id, err)
		}
		if ok {
			v.PublicKey = append([]byte(nil), key.Bytes...)
			if key.Algorithm != "" {
				v.Algorithm = key.Algorithm
			}
			return v, nil
		}
	}
	scheme, err := crypto.ByAlgorithm(alg)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	pair, err := scheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("registry: provision key for %s: %w", id, err)
	}
	v.PublicKey = pair.Public
	v.privateKey = pair.Private
	return v, nil
}

// Set returns the active validator set for the subnet. Callers must treat the
// returned set as read-only; all mutation goes through registry methods.
func (r *Registry) Set(subnet string) (*ValidatorSet, bool) {
	unlock := r.locks.Lock(subnet)
	defer unlock()
	return r.getSet(subnet)
}

// View returns the live validator set without acquiring the subnet lock. The
// caller must already hold the subnet's lock obtained via Locks; sibling
// engines use this inside their own guarded sequences.
func (r *Registry) View(subnet string) (*ValidatorSet, bool) {
	return r.getSet(subnet)
}

// Validator returns the member record for the given subnet and id.
func (r *Registry) Validator(subnet, id string) (*Validator, bool) {
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return nil, false
	}
	return set.Validator(id)
}

// Lookup resolves a validator id to its subnet and record.
func (r *Registry) Lookup(validatorID string) (string, *Validator, bool) {
	subnet, ok := r.subnetOf(validatorID)
	if !ok {
		return "", nil, false
	}
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return "", nil, false
	}
	v, ok := set.Validator(validatorID)
	if !ok {
		return "", nil, false
	}
	return subnet, v, true
}

// SigningKey returns the placeholder private key generated for a validator,
// when the registry provisioned one. Used by local signers and tests.
func (r *Registry) SigningKey(subnet, id string) ([]byte, bool) {
	v, ok := r.Validator(subnet, id)
	if !ok || len(v.privateKey) == 0 {
		return nil, false
	}
	return append([]byte(nil), v.privateKey...), true
}

// AddValidator appends a validator to an existing set. The requesting
// validator must be an active primary member of the same set.
func (r *Registry) AddValidator(subnet string, v *Validator, requestedBy string) error {
	if v == nil || strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("registry: validator id required: %w", common.ErrValidation)
	}
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return fmt.Errorf("registry: subnet %s: %w", subnet, common.ErrNotFound)
	}
	requester, ok := set.Validator(requestedBy)
	if !ok || !requester.Eligible() || requester.Role != RolePrimary {
		return fmt.Errorf("registry: %s may not modify set %s: %w", requestedBy, subnet, common.ErrPermission)
	}
	return r.addLocked(set, v)
}

// GovernanceAdd appends a validator on behalf of an executed proposal,
// bypassing the requester permission check.
func (r *Registry) GovernanceAdd(subnet string, v *Validator) error {
	if v == nil || strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("registry: validator id required: %w", common.ErrValidation)
	}
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return fmt.Errorf("registry: subnet %s: %w", subnet, common.ErrNotFound)
	}
	return r.addLocked(set, v)
}

func (r *Registry) addLocked(set *ValidatorSet, v *Validator) error {
	if _, dup := set.Validator(v.ID); dup {
		return fmt.Errorf("registry: validator %s already in set %s: %w", v.ID, set.Subnet, common.ErrDuplicate)
	}
	if len(set.Validators)+1 > set.Rotation.MaxValidators {
		return fmt.Errorf("registry: set %s at maximum size %d: %w", set.Subnet, set.Rotation.MaxValidators, common.ErrValidation)
	}
	now := r.now()
	member := *v
	if member.Weight == 0 {
		member.Weight = 1
	}
	if !member.Role.Valid() {
		member.Role = RoleBackup
	}
	if member.Status == "" {
		member.Status = StatusActive
	}
	if member.Reputation == 0 {
		member.Reputation = defaultInitialReputation
	}
	if member.Algorithm == "" {
		member.Algorithm = set.Scheme.Algorithm
	}
	member.JoinedAt = now
	member.LastActive = now
	if len(member.PublicKey) == 0 {
		provisioned, err := r.provision(member.ID, member.Algorithm, now)
		if err != nil {
			return err
		}
		member.PublicKey = provisioned.PublicKey
		member.privateKey = provisioned.privateKey
	}
	set.Validators = append(set.Validators, &member)
	set.Scheme.Total = len(set.Validators)
	r.mu.Lock()
	r.index[member.ID] = set.Subnet
	r.mu.Unlock()

	r.emitter.Emit(events.ValidatorAdded{
		Subnet:      set.Subnet,
		ValidatorID: member.ID,
		Weight:      member.Weight,
		Epoch:       set.Epoch,
	})
	return nil
}

// GovernanceRemove drops a validator on behalf of an executed proposal.
func (r *Registry) GovernanceRemove(subnet, validatorID string) error {
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return fmt.Errorf("registry: subnet %s: %w", subnet, common.ErrNotFound)
	}
	for i, v := range set.Validators {
		if v.ID != validatorID {
			continue
		}
		if len(set.Validators)-1 < set.Rotation.MinValidators {
			return fmt.Errorf("registry: set %s at minimum size %d: %w", subnet, set.Rotation.MinValidators, common.ErrValidation)
		}
		set.Validators = append(set.Validators[:i], set.Validators[i+1:]...)
		set.Scheme.Total = len(set.Validators)
		if set.Scheme.Threshold > set.Scheme.Total {
			set.Scheme.Threshold = DefaultThreshold(set.Scheme.Total)
		}
		r.mu.Lock()
		delete(r.index, validatorID)
		r.mu.Unlock()
		r.emitter.Emit(events.ValidatorRemoved{
			Subnet:      subnet,
			ValidatorID: validatorID,
			Epoch:       set.Epoch,
		})
		return nil
	}
	return fmt.Errorf("registry: validator %s: %w", validatorID, common.ErrNotFound)
}

// Rotate supersedes the subnet's validator set with a new membership at
// epoch+1. Validators carried over keep their weight and reputation;
// compromised members rotated back in return to active status. The requesting
// validator must be an active primary member of the outgoing set.
func (r *Registry) Rotate(subnet string, newValidatorIDs []string, rotatedBy string) (*ValidatorSet, error) {
	unlock := r.locks.Lock(subnet)
	defer unlock()
	prev, ok := r.getSet(subnet)
	if !ok {
		return nil, fmt.Errorf("registry: subnet %s: %w", subnet, common.ErrNotFound)
	}
	requester, ok := prev.Validator(rotatedBy)
	if !ok || !requester.Eligible() || requester.Role != RolePrimary {
		return nil, fmt.Errorf("registry: %s may not rotate set %s: %w", rotatedBy, subnet, common.ErrPermission)
	}
	n := len(newValidatorIDs)
	if n < prev.Rotation.MinValidators {
		return nil, fmt.Errorf("registry: %d validators below minimum %d: %w", n, prev.Rotation.MinValidators, common.ErrValidation)
	}
	if n > prev.Rotation.MaxValidators {
		return nil, fmt.Errorf("registry: %d validators above maximum %d: %w", n, prev.Rotation.MaxValidators, common.ErrValidation)
	}

	now := r.now()
	validators := make([]*Validator, 0, n)
	seen := make(map[string]struct{}, n)
	for _, raw := range newValidatorIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("registry: validator id must not be empty: %w", common.ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("registry: duplicate validator %s: %w", id, common.ErrDuplicate)
		}
		seen[id] = struct{}{}
		if carried, ok := prev.Validator(id); ok {
			member := *carried
			member.Status = StatusActive
			member.LastActive = now
			validators = append(validators, &member)
			continue
		}
		v, err := r.provision(id, prev.Scheme.Algorithm, now)
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}

	prev.ActiveUntil = now
	r.mu.Lock()
	for _, old := range prev.Validators {
		if _, kept := seen[old.ID]; !kept {
			delete(r.index, old.ID)
		}
	}
	r.history[subnet] = append(r.history[subnet], prev)
	r.mu.Unlock()

	next := &ValidatorSet{
		Subnet:     subnet,
		Validators: validators,
		Scheme: SchemeDescriptor{
			Algorithm: prev.Scheme.Algorithm,
			Threshold: DefaultThreshold(n),
			Total:     n,
		},
		Epoch:     prev.Epoch + 1,
		Rotation:  prev.Rotation,
		CreatedAt: now,
	}
	r.mu.Lock()
	r.sets[subnet] = next
	for _, v := range validators {
		r.index[v.ID] = subnet
	}
	r.mu.Unlock()

	r.emitter.Emit(events.ValidatorsRotated{
		Subnet:        subnet,
		PreviousEpoch: prev.Epoch,
		NewEpoch:      next.Epoch,
		RotatedAt:     now,
	})
	return next, nil
}

// History returns the superseded validator sets for a subnet, oldest first.
func (r *Registry) History(subnet string) []*ValidatorSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ValidatorSet(nil), r.history[subnet]...)
}

// Penalize deducts reputation points from a validator, clamped at zero, and
// flips its status to compromised below the threshold. It returns the new
// reputation and status.
func (r *Registry) Penalize(validatorID string, points int) (int, Status, error) {
	subnet, ok := r.subnetOf(validatorID)
	if !ok {
		return 0, "", fmt.Errorf("registry: validator %s: %w", validatorID, common.ErrNotFound)
	}
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return 0, "", fmt.Errorf("registry: subnet %s: %w", subnet, common.ErrNotFound)
	}
	v, ok := set.Validator(validatorID)
	if !ok {
		return 0, "", fmt.Errorf("registry: validator %s: %w", validatorID, common.ErrNotFound)
	}
	v.Reputation -= points
	if v.Reputation < 0 {
		v.Reputation = 0
	}
	v.SlashingCount++
	if v.Reputation < CompromiseThreshold {
		v.Status = StatusCompromised
	}
	return v.Reputation, v.Status, nil
}

// Touch records validator activity for the reputation maintenance job.
func (r *Registry) Touch(validatorID string) {
	subnet, ok := r.subnetOf(validatorID)
	if !ok {
		return
	}
	unlock := r.locks.Lock(subnet)
	defer unlock()
	set, ok := r.getSet(subnet)
	if !ok {
		return
	}
	if v, ok := set.Validator(validatorID); ok {
		v.LastActive = r.now()
	}
}

// Maintain runs the daily reputation upkeep across every subnet: idle
// validators decay (and eventually flip inactive), participating validators
// earn the capped bonus. Compromised validators never earn the bonus. The job
// is idempotent for a given clock reading.
func (r *Registry) Maintain(now time.Time) {
	r.mu.RLock()
	subnets := make([]string, 0, len(r.sets))
	for subnet := range r.sets {
		subnets = append(subnets, subnet)
	}
	r.mu.RUnlock()
	for _, subnet := range subnets {
		unlock := r.locks.Lock(subnet)
		set, ok := r.getSet(subnet)
		if !ok {
			unlock()
			continue
		}
		for _, v := range set.Validators {
			idle := now.Sub(v.LastActive)
			switch {
			case idle > r.upkeep.InactiveAfter:
				if v.Status == StatusActive {
					v.Status = StatusInactive
				}
				fallthrough
			case idle > r.upkeep.InactivityGrace:
				v.Reputation -= r.upkeep.DecayPoints
				if v.Reputation < 0 {
					v.Reputation = 0
				}
			default:
				if v.Status == StatusActive {
					v.Reputation += r.upkeep.BonusPoints
					if v.Reputation > 100 {
						v.Reputation = 100
					}
				}
			}
		}
		unlock()
	}
}
