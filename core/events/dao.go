package events

import "time"

const (
	TypeProposalCreated    = "dao.proposal.created"
	TypeVoteCast           = "dao.vote.cast"
	TypeProposalExecuted   = "dao.proposal.executed"
	TypeProposalRejected   = "dao.proposal.rejected"
	TypeResourcesAllocated = "dao.resources.allocated"
	TypeResourcesReleased  = "dao.resources.released"
)

// ProposalCreated is emitted when a governance proposal enters its voting
// window.
type ProposalCreated struct {
	ProposalID   string
	Subnet       string
	Type         string
	VotingEndsAt time.Time
}

func (ProposalCreated) EventType() string { return TypeProposalCreated }

func (e ProposalCreated) Event() *Envelope {
	return &Envelope{
		Type:   TypeProposalCreated,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"proposalId":   e.ProposalID,
			"proposalType": e.Type,
			"votingEndsAt": timeToString(e.VotingEndsAt),
		},
	}
}

// VoteCast is emitted for each accepted ballot.
type VoteCast struct {
	ProposalID string
	Subnet     string
	Vote       string
	Weight     uint64
}

func (VoteCast) EventType() string { return TypeVoteCast }

func (e VoteCast) Event() *Envelope {
	return &Envelope{
		Type:   TypeVoteCast,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"proposalId": e.ProposalID,
			"vote":       e.Vote,
			"weight":     uintToString(e.Weight),
		},
	}
}

// ProposalExecuted is emitted after an approved proposal's payload has been
// dispatched against the target component.
type ProposalExecuted struct {
	ProposalID string
	Subnet     string
	Type       string
}

func (ProposalExecuted) EventType() string { return TypeProposalExecuted }

func (e ProposalExecuted) Event() *Envelope {
	return &Envelope{
		Type:   TypeProposalExecuted,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"proposalId":   e.ProposalID,
			"proposalType": e.Type,
		},
	}
}

// ProposalRejected is emitted when a proposal is rejected, either by vote or
// by deadline expiry without quorum.
type ProposalRejected struct {
	ProposalID string
	Subnet     string
	Reason     string
}

func (ProposalRejected) EventType() string { return TypeProposalRejected }

func (e ProposalRejected) Event() *Envelope {
	return &Envelope{
		Type:   TypeProposalRejected,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"proposalId": e.ProposalID,
			"reason":     e.Reason,
		},
	}
}

// ResourcesAllocated is emitted after a successful all-or-nothing resource
// grant.
type ResourcesAllocated struct {
	Subnet           string
	CPUMillis        uint64
	MemoryMB         uint64
	StorageMB        uint64
	BandwidthMbps    uint64
	ActiveExecutions int
}

func (ResourcesAllocated) EventType() string { return TypeResourcesAllocated }

func (e ResourcesAllocated) Event() *Envelope {
	return &Envelope{
		Type:   TypeResourcesAllocated,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"cpuMillis":        uintToString(e.CPUMillis),
			"memoryMb":         uintToString(e.MemoryMB),
			"storageMb":        uintToString(e.StorageMB),
			"bandwidthMbps":    uintToString(e.BandwidthMbps),
			"activeExecutions": intToString(int64(e.ActiveExecutions)),
		},
	}
}

// ResourcesReleased is emitted after usage counters are returned to the pool.
type ResourcesReleased struct {
	Subnet           string
	CPUMillis        uint64
	MemoryMB         uint64
	StorageMB        uint64
	BandwidthMbps    uint64
	ActiveExecutions int
}

func (ResourcesReleased) EventType() string { return TypeResourcesReleased }

func (e ResourcesReleased) Event() *Envelope {
	return &Envelope{
		Type:   TypeResourcesReleased,
		Subnet: e.Subnet,
		Attributes: map[string]string{
			"cpuMillis":        uintToString(e.CPUMillis),
			"memoryMb":         uintToString(e.MemoryMB),
			"storageMb":        uintToString(e.StorageMB),
			"bandwidthMbps":    uintToString(e.BandwidthMbps),
			"activeExecutions": intToString(int64(e.ActiveExecutions)),
		},
	}
}
