package threshold

import (
	"time"

	"subnetgov/crypto"
)

// Status enumerates a signature request's lifecycle. Transitions are
// monotonic: collecting is the only non-terminal state.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool { return s != StatusCollecting }

// Share is one validator's contribution to a signature request. Immutable
// once accepted.
type Share struct {
	ValidatorID string    `json:"validatorId"`
	Signature   []byte    `json:"signature"`
	Digest      [32]byte  `json:"digest"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Request tracks share collection for one message on one subnet.
type Request struct {
	ID         string            `json:"id"`
	Subnet     string            `json:"subnet"`
	Message    []byte            `json:"message"`
	Digest     [32]byte          `json:"digest"`
	Algorithm  crypto.Algorithm  `json:"algorithm"`
	Required   int               `json:"required"`
	Collected  int               `json:"collected"`
	Status     Status            `json:"status"`
	Purpose    string            `json:"purpose"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Aggregated []byte            `json:"aggregated,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`

	shares map[string]*Share
	order  []string
}

// Share returns the accepted share from the given validator, if any.
func (r *Request) Share(validatorID string) (*Share, bool) {
	s, ok := r.shares[validatorID]
	return s, ok
}

// snapshot returns a copy safe to hand outside the subnet lock.
func (r *Request) snapshot() *Request {
	clone := *r
	clone.Message = append([]byte(nil), r.Message...)
	clone.Aggregated = append([]byte(nil), r.Aggregated...)
	clone.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		clone.Metadata[k] = v
	}
	clone.shares = make(map[string]*Share, len(r.shares))
	for id, share := range r.shares {
		copied := *share
		clone.shares[id] = &copied
	}
	clone.order = append([]string(nil), r.order...)
	return &clone
}
