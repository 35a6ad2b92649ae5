package dao

import (
	"encoding/json"
	"time"
)

// ProposalType selects the execution dispatch target for an approved
// proposal.
type ProposalType string

const (
	TypePolicyUpdate        ProposalType = "policy_update"
	TypeValidatorAdd        ProposalType = "validator_add"
	TypeValidatorRemove     ProposalType = "validator_remove"
	TypeResourceLimitUpdate ProposalType = "resource_limit_update"
)

// Valid reports whether the proposal type is supported.
func (t ProposalType) Valid() bool {
	switch t {
	case TypePolicyUpdate, TypeValidatorAdd, TypeValidatorRemove, TypeResourceLimitUpdate:
		return true
	default:
		return false
	}
}

// Status enumerates a proposal's lifecycle.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusVoting   Status = "voting"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
)

// Terminal reports whether the status accepts no further votes.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExecuted:
		return true
	default:
		return false
	}
}

// VoteChoice is a validator's ballot. Abstentions count toward quorum but not
// toward the approval majority.
type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// Valid reports whether the choice is supported.
func (c VoteChoice) Valid() bool {
	switch c {
	case VoteApprove, VoteReject, VoteAbstain:
		return true
	default:
		return false
	}
}

// Ballot is one validator's recorded vote. Weight is copied from the voter's
// current validator weight at cast time.
type Ballot struct {
	Voter  string     `json:"voter"`
	Choice VoteChoice `json:"choice"`
	Weight uint64     `json:"weight"`
	CastAt time.Time  `json:"castAt"`
}

// Draft carries the caller-supplied fields of a new proposal. Zero QuorumBps
// or MajorityBps fall back to the governor defaults; a zero VotingPeriod
// falls back to the default voting window.
type Draft struct {
	Type         ProposalType    `json:"type"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	QuorumBps    uint64          `json:"quorumBps,omitempty"`
	MajorityBps  uint64          `json:"majorityBps,omitempty"`
	VotingPeriod time.Duration   `json:"votingPeriod,omitempty"`
}

// Proposal is a governance proposal with its collected ballots.
type Proposal struct {
	ID          string             `json:"id"`
	Subnet      string             `json:"subnet"`
	Type        ProposalType       `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Payload     json.RawMessage    `json:"payload"`
	Proposer    string             `json:"proposer"`
	QuorumBps   uint64             `json:"quorumBps"`
	MajorityBps uint64             `json:"majorityBps"`
	Status      Status             `json:"status"`
	Votes       map[string]*Ballot `json:"votes"`
	Deadline    time.Time          `json:"deadline"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func (p *Proposal) snapshot() *Proposal {
	clone := *p
	clone.Payload = append(json.RawMessage(nil), p.Payload...)
	clone.Votes = make(map[string]*Ballot, len(p.Votes))
	for voter, ballot := range p.Votes {
		b := *ballot
		clone.Votes[voter] = &b
	}
	return &clone
}

// WeightStrategy maps a validator's registry weight to its voting weight.
type WeightStrategy func(uint64) uint64

// LinearWeight votes with the validator's registry weight unchanged.
func LinearWeight(w uint64) uint64 { return w }

// QuadraticWeight votes with the integer square root of the registry weight,
// dampening large stakes.
func QuadraticWeight(w uint64) uint64 {
	if w < 2 {
		return w
	}
	x := w
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + w/x) / 2
	}
	return x
}
