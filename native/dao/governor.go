package dao

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subnetgov/core/events"
	"subnetgov/native/common"
	"subnetgov/native/policy"
	"subnetgov/native/registry"
	"subnetgov/native/resources"
	"subnetgov/observability"
)

const (
	defaultQuorumBps    = 5000
	defaultMajorityBps  = 5000
	defaultVotingPeriod = 72 * time.Hour
)

// Governor runs weighted proposal voting and dispatches approved proposals
// against the registry, policy engine, and resource allocator. All vote
// processing for one subnet runs under that subnet's lock, shared with the
// sibling engines through the registry's lock table.
type Governor struct {
	registry  *registry.Registry
	policies  *policy.Engine
	allocator *resources.Allocator
	locks     *common.SubnetLocks
	emitter   events.Emitter
	nowFn     func() time.Time
	weight    WeightStrategy

	quorumBps    uint64
	majorityBps  uint64
	votingPeriod time.Duration

	mu        sync.RWMutex
	proposals map[string]*Proposal
}

// NewGovernor constructs a governor wired to the components approved
// proposals execute against.
func NewGovernor(reg *registry.Registry, policies *policy.Engine, allocator *resources.Allocator) *Governor {
	return &Governor{
		registry:     reg,
		policies:     policies,
		allocator:    allocator,
		locks:        reg.Locks(),
		emitter:      events.NoopEmitter{},
		nowFn:        func() time.Time { return time.Now().UTC() },
		weight:       LinearWeight,
		quorumBps:    defaultQuorumBps,
		majorityBps:  defaultMajorityBps,
		votingPeriod: defaultVotingPeriod,
		proposals:    make(map[string]*Proposal),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (g *Governor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (g *Governor) SetNowFunc(now func() time.Time) {
	if now == nil {
		g.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	g.nowFn = now
}

// SetWeightStrategy replaces the vote weighting function. Nil restores linear
// weighting.
func (g *Governor) SetWeightStrategy(strategy WeightStrategy) {
	if strategy == nil {
		g.weight = LinearWeight
		return
	}
	g.weight = strategy
}

// SetDefaults replaces the quorum and majority fractions, in basis points,
// applied to drafts that do not override them.
func (g *Governor) SetDefaults(quorumBps, majorityBps uint64) error {
	if quorumBps == 0 || quorumBps > 10000 || majorityBps == 0 || majorityBps > 10000 {
		return fmt.Errorf("dao: quorum and majority must be within (0, 10000] bps: %w", common.ErrValidation)
	}
	g.quorumBps = quorumBps
	g.majorityBps = majorityBps
	return nil
}

// SetVotingPeriod replaces the default voting window for new proposals.
func (g *Governor) SetVotingPeriod(d time.Duration) {
	if d > 0 {
		g.votingPeriod = d
	}
}

// Create opens a proposal in voting status. The proposer must be an active
// validator of the subnet.
func (g *Governor) Create(subnet string, draft Draft, proposedBy string) (string, error) {
	if !draft.Type.Valid() {
		return "", fmt.Errorf("dao: unknown proposal type %q: %w", draft.Type, common.ErrValidation)
	}
	if strings.TrimSpace(draft.Title) == "" {
		return "", fmt.Errorf("dao: proposal title required: %w", common.ErrValidation)
	}
	if len(draft.Payload) == 0 {
		return "", fmt.Errorf("dao: proposal payload required: %w", common.ErrValidation)
	}
	if draft.QuorumBps > 10000 || draft.MajorityBps > 10000 {
		return "", fmt.Errorf("dao: quorum and majority must not exceed 10000 bps: %w", common.ErrValidation)
	}
	proposer, ok := g.registry.Validator(subnet, proposedBy)
	if !ok {
		return "", fmt.Errorf("dao: proposer %s not in subnet %s: %w", proposedBy, subnet, common.ErrNotFound)
	}
	if !proposer.Eligible() {
		return "", fmt.Errorf("dao: proposer %s is %s: %w", proposedBy, proposer.Status, common.ErrPermission)
	}

	now := g.nowFn()
	p := &Proposal{
		ID:          uuid.NewString(),
		Subnet:      subnet,
		Type:        draft.Type,
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Payload:     append(json.RawMessage(nil), draft.Payload...),
		Proposer:    proposedBy,
		QuorumBps:   draft.QuorumBps,
		MajorityBps: draft.MajorityBps,
		Status:      StatusVoting,
		Votes:       make(map[string]*Ballot),
		Deadline:    now.Add(g.votingPeriod),
		CreatedAt:   now,
	}
	if p.QuorumBps == 0 {
		p.QuorumBps = g.quorumBps
	}
	if p.MajorityBps == 0 {
		p.MajorityBps = g.majorityBps
	}
	if draft.VotingPeriod > 0 {
		p.Deadline = now.Add(draft.VotingPeriod)
	}

	g.mu.Lock()
	g.proposals[p.ID] = p
	g.mu.Unlock()

	g.emitter.Emit(events.ProposalCreated{
		ProposalID:   p.ID,
		Subnet:       subnet,
		Type:         string(p.Type),
		VotingEndsAt: p.Deadline,
	})
	return p.ID, nil
}

// Vote records a ballot at the voter's current weight and resolves the
// proposal when quorum is reached: approved and executed when the majority
// holds, rejected when it does not. Votes against a resolved proposal return
// false without error.
func (g *Governor) Vote(proposalID, voterID string, choice VoteChoice) (bool, error) {
	if !choice.Valid() {
		return false, fmt.Errorf("dao: unknown vote choice %q: %w", choice, common.ErrValidation)
	}
	g.mu.RLock()
	p, ok := g.proposals[proposalID]
	g.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("dao: proposal %s: %w", proposalID, common.ErrNotFound)
	}

	unlock := g.locks.Lock(p.Subnet)
	now := g.nowFn()
	if p.Status != StatusVoting {
		unlock()
		return false, nil
	}
	if now.After(p.Deadline) {
		unlock()
		return false, fmt.Errorf("dao: proposal %s voting closed at %s: %w", proposalID, p.Deadline.Format(time.RFC3339), common.ErrExpired)
	}
	set, ok := g.registry.View(p.Subnet)
	if !ok {
		unlock()
		return false, fmt.Errorf("dao: subnet %s has no validator set: %w", p.Subnet, common.ErrNotFound)
	}
	voter, ok := set.Validator(voterID)
	if !ok {
		unlock()
		return false, fmt.Errorf("dao: voter %s not in subnet %s: %w", voterID, p.Subnet, common.ErrNotFound)
	}
	if !voter.Eligible() {
		unlock()
		return false, fmt.Errorf("dao: voter %s is %s: %w", voterID, voter.Status, common.ErrPermission)
	}
	if _, dup := p.Votes[voterID]; dup {
		unlock()
		return false, fmt.Errorf("dao: voter %s already voted on %s: %w", voterID, proposalID, common.ErrDuplicate)
	}

	weight := g.weight(voter.Weight)
	p.Votes[voterID] = &Ballot{Voter: voterID, Choice: choice, Weight: weight, CastAt: now}
	voter.LastActive = now

	g.emitter.Emit(events.VoteCast{
		ProposalID: proposalID,
		Subnet:     p.Subnet,
		Vote:       string(choice),
		Weight:     weight,
	})

	resolution := g.resolveLocked(p, set.ActiveWeight())
	unlock()

	switch resolution {
	case StatusApproved:
		if err := g.execute(p); err != nil {
			observability.Governance().RecordProposal("execution_failed")
			return true, fmt.Errorf("dao: execute proposal %s: %w", proposalID, err)
		}
	case StatusRejected:
		observability.Governance().RecordProposal("rejected")
		g.emitter.Emit(events.ProposalRejected{
			ProposalID: proposalID,
			Subnet:     p.Subnet,
			Reason:     "approval majority not reached",
		})
	}
	return true, nil
}

// resolveLocked checks quorum and majority after a ballot lands. The caller
// holds the subnet lock. It returns the status the proposal transitioned to,
// or voting when unresolved.
func (g *Governor) resolveLocked(p *Proposal, totalActiveWeight uint64) Status {
	if totalActiveWeight == 0 {
		return StatusVoting
	}
	var votedWeight, approveWeight uint64
	for _, ballot := range p.Votes {
		votedWeight += ballot.Weight
		if ballot.Choice == VoteApprove {
			approveWeight += ballot.Weight
		}
	}
	if votedWeight*10000 < p.QuorumBps*totalActiveWeight {
		return StatusVoting
	}
	if approveWeight*10000 >= p.MajorityBps*votedWeight {
		p.Status = StatusApproved
		return StatusApproved
	}
	p.Status = StatusRejected
	return StatusRejected
}

type policyUpdatePayload struct {
	Policy *policy.Policy `json:"policy"`
}

type validatorAddPayload struct {
	ValidatorID string        `json:"validatorId"`
	Weight      uint64        `json:"weight,omitempty"`
	Role        registry.Role `json:"role,omitempty"`
}

type validatorRemovePayload struct {
	ValidatorID string `json:"validatorId"`
}

type resourceLimitPayload struct {
	Limits resources.Limits `json:"limits"`
}

// execute dispatches an approved proposal's payload against its target
// component and marks the proposal executed. Called without the subnet lock
// held: every target acquires it on its own.
func (g *Governor) execute(p *Proposal) error {
	var err error
	switch p.Type {
	case TypePolicyUpdate:
		var payload policyUpdatePayload
		if err = json.Unmarshal(p.Payload, &payload); err == nil {
			err = g.policies.Apply(p.Subnet, payload.Policy)
		}
	case TypeValidatorAdd:
		var payload validatorAddPayload
		if err = json.Unmarshal(p.Payload, &payload); err == nil {
			err = g.registry.GovernanceAdd(p.Subnet, &registry.Validator{
				ID:     payload.ValidatorID,
				Weight: payload.Weight,
				Role:   payload.Role,
			})
		}
	case TypeValidatorRemove:
		var payload validatorRemovePayload
		if err = json.Unmarshal(p.Payload, &payload); err == nil {
			err = g.registry.GovernanceRemove(p.Subnet, payload.ValidatorID)
		}
	case TypeResourceLimitUpdate:
		var payload resourceLimitPayload
		if err = json.Unmarshal(p.Payload, &payload); err == nil {
			err = g.allocator.SetLimits(p.Subnet, payload.Limits)
		}
	default:
		err = fmt.Errorf("unknown proposal type %q", p.Type)
	}
	if err != nil {
		return err
	}

	unlock := g.locks.Lock(p.Subnet)
	p.Status = StatusExecuted
	unlock()

	observability.Governance().RecordProposal("executed")
	g.emitter.Emit(events.ProposalExecuted{
		ProposalID: p.ID,
		Subnet:     p.Subnet,
		Type:       string(p.Type),
	})
	return nil
}

// Get returns a deep copy of the proposal.
func (g *Governor) Get(proposalID string) (*Proposal, bool) {
	g.mu.RLock()
	p, ok := g.proposals[proposalID]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}
	unlock := g.locks.Lock(p.Subnet)
	defer unlock()
	return p.snapshot(), true
}

// List returns deep copies of the subnet's proposals in no particular order.
func (g *Governor) List(subnet string) []*Proposal {
	g.mu.RLock()
	matched := make([]*Proposal, 0)
	for _, p := range g.proposals {
		if p.Subnet == subnet {
			matched = append(matched, p)
		}
	}
	g.mu.RUnlock()

	unlock := g.locks.Lock(subnet)
	defer unlock()
	out := make([]*Proposal, 0, len(matched))
	for _, p := range matched {
		out = append(out, p.snapshot())
	}
	return out
}

// ExpireStale auto-rejects voting proposals whose deadline has passed without
// reaching quorum. It returns the number of proposals rejected.
func (g *Governor) ExpireStale(now time.Time) int {
	g.mu.RLock()
	candidates := make([]*Proposal, 0)
	for _, p := range g.proposals {
		if p.Status == StatusVoting && now.After(p.Deadline) {
			candidates = append(candidates, p)
		}
	}
	g.mu.RUnlock()

	rejected := 0
	for _, p := range candidates {
		unlock := g.locks.Lock(p.Subnet)
		if p.Status != StatusVoting || !now.After(p.Deadline) {
			unlock()
			continue
		}
		p.Status = StatusRejected
		unlock()
		rejected++
		observability.Governance().RecordProposal("expired")
		g.emitter.Emit(events.ProposalRejected{
			ProposalID: p.ID,
			Subnet:     p.Subnet,
			Reason:     "voting deadline passed without quorum",
		})
	}
	return rejected
}
