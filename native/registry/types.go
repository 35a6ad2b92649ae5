package registry

import (
	"time"

	"subnetgov/crypto"
)

// Role enumerates the duties a validator holds within its set. Primary
// validators carry administrative rights over set membership.
type Role string

const (
	RolePrimary  Role = "primary"
	RoleBackup   Role = "backup"
	RoleObserver Role = "observer"
)

// Valid reports whether the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RolePrimary, RoleBackup, RoleObserver:
		return true
	default:
		return false
	}
}

// Status enumerates a validator's operational state.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusCompromised Status = "compromised"
	StatusRotating    Status = "rotating"
)

// CompromiseThreshold is the reputation floor below which a validator is
// marked compromised and barred from shares and votes.
const CompromiseThreshold = 20

// Validator describes one signer in a subnet's validator set. Records are
// owned by the registry; other components mutate them only through registry
// methods.
type Validator struct {
	ID            string           `json:"id"`
	PublicKey     []byte           `json:"publicKey"`
	Algorithm     crypto.Algorithm `json:"algorithm"`
	Weight        uint64           `json:"weight"`
	Role          Role             `json:"role"`
	Status        Status           `json:"status"`
	Reputation    int              `json:"reputation"`
	SlashingCount int              `json:"slashingCount"`
	JoinedAt      time.Time        `json:"joinedAt"`
	LastActive    time.Time        `json:"lastActive"`

	privateKey []byte
}

// Eligible reports whether the validator may submit signature shares and cast
// governance votes.
func (v *Validator) Eligible() bool {
	return v != nil && v.Status == StatusActive
}

// SchemeDescriptor captures the signature scheme parameters for a validator
// set.
type SchemeDescriptor struct {
	Algorithm          crypto.Algorithm `json:"algorithm"`
	Threshold          int              `json:"threshold"`
	Total              int              `json:"total"`
	AggregatePublicKey []byte           `json:"aggregatePublicKey,omitempty"`
}

// RotationPolicy bounds the cadence and size of validator set rotation.
type RotationPolicy struct {
	Interval      time.Duration `json:"interval"`
	MaxAge        time.Duration `json:"maxAge"`
	MinValidators int           `json:"minValidators"`
	MaxValidators int           `json:"maxValidators"`
}

// ValidatorSet is the epoch-scoped membership for one subnet. Sets are
// superseded by rotation, never mutated in place: a rotation stamps
// ActiveUntil on the old set and installs a new set with Epoch+1.
type ValidatorSet struct {
	Subnet      string           `json:"subnet"`
	Validators  []*Validator     `json:"validators"`
	Scheme      SchemeDescriptor `json:"scheme"`
	Epoch       uint64           `json:"epoch"`
	Rotation    RotationPolicy   `json:"rotation"`
	CreatedAt   time.Time        `json:"createdAt"`
	ActiveUntil time.Time        `json:"activeUntil,omitempty"`
}

// Validator returns the member with the given id, if present.
func (s *ValidatorSet) Validator(id string) (*Validator, bool) {
	if s == nil {
		return nil, false
	}
	for _, v := range s.Validators {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// ActiveWeight sums the voting weight of active members.
func (s *ValidatorSet) ActiveWeight() uint64 {
	if s == nil {
		return 0
	}
	var total uint64
	for _, v := range s.Validators {
		if v.Status == StatusActive {
			total += v.Weight
		}
	}
	return total
}

// DefaultThreshold computes the default signing threshold floor(2n/3)+1.
func DefaultThreshold(n int) int {
	if n <= 0 {
		return 0
	}
	return (2*n)/3 + 1
}

// FaultTolerance computes f = floor((n-1)/3), the number of faulty
// validators a set of n tolerates.
func FaultTolerance(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / 3
}
