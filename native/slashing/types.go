package slashing

import "time"

// Reason enumerates the provable misbehavior classes recorded against a
// validator.
type Reason string

const (
	ReasonDoubleSigning     Reason = "double_signing"
	ReasonUnavailability    Reason = "unavailability"
	ReasonMaliciousBehavior Reason = "malicious_behavior"
	ReasonKeyCompromise     Reason = "key_compromise"
)

// Valid reports whether the reason is a supported value.
func (r Reason) Valid() bool {
	switch r {
	case ReasonDoubleSigning, ReasonUnavailability, ReasonMaliciousBehavior, ReasonKeyCompromise:
		return true
	default:
		return false
	}
}

// Severity grades a slashing event; each severity maps to a penalty in
// reputation points.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is a supported value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityWarning, SeverityMinor, SeverityMajor, SeverityCritical:
		return true
	default:
		return false
	}
}

// DefaultPenalties maps severity to reputation penalty points.
func DefaultPenalties() map[Severity]int {
	return map[Severity]int{
		SeverityWarning:  1,
		SeverityMinor:    5,
		SeverityMajor:    15,
		SeverityCritical: 50,
	}
}

// Event is one misbehavior record. Events are append-only; Resolved marks
// operator acknowledgement, never reversal of the applied penalty.
type Event struct {
	ID            string    `json:"id"`
	ValidatorID   string    `json:"validatorId"`
	Reason        Reason    `json:"reason"`
	Severity      Severity  `json:"severity"`
	Penalty       int       `json:"penalty"`
	Evidence      string    `json:"evidence"`
	ReportedBy    string    `json:"reportedBy"`
	Resolved      bool      `json:"resolved"`
	RecordedAt    time.Time `json:"recordedAt"`
	NewReputation int       `json:"newReputation"`
}
