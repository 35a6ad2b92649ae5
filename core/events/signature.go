package events

import (
	"encoding/hex"
	"time"
)

const (
	TypeSignatureRequested        = "signature.requested"
	TypeSignatureShareSubmitted   = "signature.share.submitted"
	TypeSignatureCompleted        = "signature.completed"
	TypeSignatureFailed           = "signature.failed"
	TypeSignatureExpired          = "signature.expired"
	TypeCriticalOperationCreated  = "critical.operation.created"
	TypeCriticalOperationExecuted = "critical.operation.executed"
)

// SignatureRequested is emitted when a new threshold-signing request opens.
type SignatureRequested struct {
	RequestID      string
	Subnet         string
	Purpose        string
	RequiredShares int
	ExpiresAt      time.Time
}

func (SignatureRequested) EventType() string { return TypeSignatureRequested }

func (e SignatureRequested) Event() *Envelope {
	return &Envelope{
		Type:   TypeSignatureRequested,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"requestId":      e.RequestID,
			"purpose":        e.Purpose,
			"requiredShares": intToString(int64(e.RequiredShares)),
			"expiresAt":      timeToString(e.ExpiresAt),
		},
	}
}

// SignatureShareSubmitted is emitted for each accepted signature share.
type SignatureShareSubmitted struct {
	RequestID       string
	Subnet          string
	ValidatorID     string
	CollectedShares int
	RequiredShares  int
}

func (SignatureShareSubmitted) EventType() string { return TypeSignatureShareSubmitted }

func (e SignatureShareSubmitted) Event() *Envelope {
	return &Envelope{
		Type:   TypeSignatureShareSubmitted,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"requestId":       e.RequestID,
			"validatorId":     e.ValidatorID,
			"collectedShares": intToString(int64(e.CollectedShares)),
			"requiredShares":  intToString(int64(e.RequiredShares)),
		},
	}
}

// SignatureCompleted is emitted once a request aggregates the threshold
// number of valid shares.
type SignatureCompleted struct {
	RequestID           string
	Subnet              string
	AggregatedSignature []byte
}

func (SignatureCompleted) EventType() string { return TypeSignatureCompleted }

func (e SignatureCompleted) Event() *Envelope {
	return &Envelope{
		Type:   TypeSignatureCompleted,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"requestId":           e.RequestID,
			"aggregatedSignature": hex.EncodeToString(e.AggregatedSignature),
		},
	}
}

// SignatureFailed is emitted when aggregation of collected shares fails.
type SignatureFailed struct {
	RequestID string
	Subnet    string
	Reason    string
}

func (SignatureFailed) EventType() string { return TypeSignatureFailed }

func (e SignatureFailed) Event() *Envelope {
	return &Envelope{
		Type:   TypeSignatureFailed,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"requestId": e.RequestID,
			"reason":    e.Reason,
		},
	}
}

// SignatureExpired is emitted when a collecting request passes its deadline.
type SignatureExpired struct {
	RequestID string
	Subnet    string
}

func (SignatureExpired) EventType() string { return TypeSignatureExpired }

func (e SignatureExpired) Event() *Envelope {
	return &Envelope{
		Type:   TypeSignatureExpired,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"requestId": e.RequestID,
		},
	}
}

// CriticalOperationCreated is emitted when an operation requiring BFT
// approval opens its signing round.
type CriticalOperationCreated struct {
	OperationID        string
	Subnet             string
	Type               string
	RequiredSignatures int
}

func (CriticalOperationCreated) EventType() string { return TypeCriticalOperationCreated }

func (e CriticalOperationCreated) Event() *Envelope {
	return &Envelope{
		Type:   TypeCriticalOperationCreated,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"operationId":        e.OperationID,
			"operationType":      e.Type,
			"requiredSignatures": intToString(int64(e.RequiredSignatures)),
		},
	}
}

// CriticalOperationExecuted is emitted after the caller applies a signed
// operation's side effect.
type CriticalOperationExecuted struct {
	OperationID string
	Subnet      string
	Type        string
}

func (CriticalOperationExecuted) EventType() string { return TypeCriticalOperationExecuted }

func (e CriticalOperationExecuted) Event() *Envelope {
	return &Envelope{
		Type:   TypeCriticalOperationExecuted,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"operationId":   e.OperationID,
			"operationType": e.Type,
		},
	}
}
