package events

import "time"

const (
	TypeValidatorsInitialized = "validators.initialized"
	TypeValidatorsRotated     = "validators.rotated"
	TypeValidatorAdded        = "validator.added"
	TypeValidatorRemoved      = "validator.removed"
	TypeValidatorSlashed      = "validator.slashed"
)

// ValidatorsInitialized is emitted when a subnet's first validator set is
// registered.
type ValidatorsInitialized struct {
	Subnet         string
	ValidatorCount int
	Threshold      int
	Epoch          uint64
}

func (ValidatorsInitialized) EventType() string { return TypeValidatorsInitialized }

func (e ValidatorsInitialized) Event() *Envelope {
	return &Envelope{
		Type:   TypeValidatorsInitialized,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"validatorCount": intToString(int64(e.ValidatorCount)),
			"threshold":      intToString(int64(e.Threshold)),
			"epoch":          uintToString(e.Epoch),
		},
	}
}

// ValidatorsRotated is emitted when a subnet's validator set is superseded by
// a new epoch.
type ValidatorsRotated struct {
	Subnet        string
	PreviousEpoch uint64
	NewEpoch      uint64
	RotatedAt     time.Time
}

func (ValidatorsRotated) EventType() string { return TypeValidatorsRotated }

func (e ValidatorsRotated) Event() *Envelope {
	return &Envelope{
		Type:   TypeValidatorsRotated,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"previousEpoch": uintToString(e.PreviousEpoch),
			"newEpoch":      uintToString(e.NewEpoch),
			"rotatedAt":     timeToString(e.RotatedAt),
		},
	}
}

// ValidatorAdded is emitted when a validator joins an existing set.
type ValidatorAdded struct {
	Subnet      string
	ValidatorID string
	Weight      uint64
	Epoch       uint64
}

func (ValidatorAdded) EventType() string { return TypeValidatorAdded }

func (e ValidatorAdded) Event() *Envelope {
	return &Envelope{
		Type:   TypeValidatorAdded,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"validatorId": e.ValidatorID,
			"weight":      uintToString(e.Weight),
			"epoch":       uintToString(e.Epoch),
		},
	}
}

// ValidatorRemoved is emitted when a validator is removed from a set by
// governance action.
type ValidatorRemoved struct {
	Subnet      string
	ValidatorID string
	Epoch       uint64
}

func (ValidatorRemoved) EventType() string { return TypeValidatorRemoved }

func (e ValidatorRemoved) Event() *Envelope {
	return &Envelope{
		Type:   TypeValidatorRemoved,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"validatorId": e.ValidatorID,
			"epoch":       uintToString(e.Epoch),
		},
	}
}

// ValidatorSlashed is emitted after a slashing event has been applied to a
// validator's reputation.
type ValidatorSlashed struct {
	Subnet        string
	ValidatorID   string
	Reason        string
	Severity      string
	Penalty       int
	NewReputation int
}

func (ValidatorSlashed) EventType() string { return TypeValidatorSlashed }

func (e ValidatorSlashed) Event() *Envelope {
	return &Envelope{
		Type:   TypeValidatorSlashed,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"validatorId":   e.ValidatorID,
			"reason":        e.Reason,
			"severity":      e.Severity,
			"penalty":       intToString(int64(e.Penalty)),
			"newReputation": intToString(int64(e.NewReputation)),
		},
	}
}
