package policy

import (
	"fmt"
	"strings"
	"sync"

	"subnetgov/native/common"
)

// Engine stores versioned per-subnet policies and evaluates them against
// execution requests. Evaluation is pure and synchronous: no I/O, no
// mutation.
type Engine struct {
	mu       sync.RWMutex
	policies map[string][]*Policy
}

// NewEngine constructs an empty policy engine.
func NewEngine() *Engine {
	return &Engine{policies: make(map[string][]*Policy)}
}

// Register appends a policy to the subnet's ordered list.
func (e *Engine) Register(subnet string, p *Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.policies[subnet] {
		if existing.ID == p.ID {
			return fmt.Errorf("policy: policy %s already registered for %s: %w", p.ID, subnet, common.ErrDuplicate)
		}
	}
	clone := *p
	if clone.Version == 0 {
		clone.Version = 1
	}
	e.policies[subnet] = append(e.policies[subnet], &clone)
	return nil
}

// Apply installs a new version of an existing policy, or registers it when
// absent. Used by governance proposal execution.
func (e *Engine) Apply(subnet string, p *Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.policies[subnet] {
		if existing.ID == p.ID {
			clone := *p
			clone.Version = existing.Version + 1
			e.policies[subnet][i] = &clone
			return nil
		}
	}
	clone := *p
	if clone.Version == 0 {
		clone.Version = 1
	}
	e.policies[subnet] = append(e.policies[subnet], &clone)
	return nil
}

// Policies returns the subnet's policies in registration order.
func (e *Engine) Policies(subnet string) []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Policy, len(e.policies[subnet]))
	copy(out, e.policies[subnet])
	return out
}

func validatePolicy(p *Policy) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("policy: policy id required: %w", common.ErrValidation)
	}
	if !p.Enforcement.Valid() {
		return fmt.Errorf("policy: unknown enforcement mode %q: %w", p.Enforcement, common.ErrValidation)
	}
	for i, rule := range p.Rules {
		if !rule.Action.Valid() {
			return fmt.Errorf("policy: rule %d has unknown action %q: %w", i, rule.Action, common.ErrValidation)
		}
		if !rule.Condition.Op.Valid() {
			return fmt.Errorf("policy: rule %d has unknown operator %q: %w", i, rule.Condition.Op, common.ErrValidation)
		}
		if strings.TrimSpace(rule.Condition.Field) == "" {
			return fmt.Errorf("policy: rule %d has empty condition field: %w", i, common.ErrValidation)
		}
	}
	return nil
}

// Evaluate runs the subnet's policies against the execution context in
// registration order. Within a policy the first matching rule decides; no
// match is a pass. Under strict enforcement a deny verdict halts evaluation
// of the remaining policies and the caller must reject the whole request. An
// unknown subnet yields a single fail-closed deny.
func (e *Engine) Evaluate(subnet string, ctx ExecutionContext) []Validation {
	e.mu.RLock()
	policies := append([]*Policy(nil), e.policies[subnet]...)
	e.mu.RUnlock()

	if len(policies) == 0 {
		return []Validation{{
			Outcome: OutcomeFail,
			Action:  ActionDeny,
			Reason:  fmt.Sprintf("no policies registered for subnet %s", subnet),
		}}
	}

	results := make([]Validation, 0, len(policies))
	for _, p := range policies {
		if p.Enforcement == EnforcementDisabled {
			continue
		}
		v := evaluatePolicy(p, ctx)
		results = append(results, v)
		if p.Enforcement == EnforcementStrict && v.Outcome == OutcomeFail {
			return results
		}
	}
	return results
}

func evaluatePolicy(p *Policy, ctx ExecutionContext) Validation {
	for _, rule := range p.Rules {
		matched, err := rule.Condition.match(ctx)
		if err != nil {
			// Evaluation errors fail closed under strict enforcement.
			if p.Enforcement == EnforcementStrict {
				return Validation{
					PolicyID: p.ID,
					RuleID:   rule.ID,
					Outcome:  OutcomeFail,
					Action:   ActionDeny,
					Reason:   err.Error(),
				}
			}
			return Validation{
				PolicyID: p.ID,
				RuleID:   rule.ID,
				Outcome:  OutcomeWarn,
				Reason:   err.Error(),
			}
		}
		if !matched {
			continue
		}
		switch rule.Action {
		case ActionAllow:
			return Validation{PolicyID: p.ID, RuleID: rule.ID, Outcome: OutcomePass, Action: ActionAllow}
		case ActionDeny:
			return Validation{
				PolicyID: p.ID,
				RuleID:   rule.ID,
				Outcome:  OutcomeFail,
				Action:   ActionDeny,
				Reason:   rule.Description,
			}
		case ActionRequireApproval:
			return Validation{PolicyID: p.ID, RuleID: rule.ID, Outcome: OutcomePass, Action: ActionRequireApproval}
		case ActionThrottle:
			return Validation{PolicyID: p.ID, RuleID: rule.ID, Outcome: OutcomeWarn, Action: ActionThrottle}
		}
	}
	return Validation{PolicyID: p.ID, Outcome: OutcomePass}
}

func (c Condition) match(ctx ExecutionContext) (bool, error) {
	actual, ok := ctx[c.Field]
	if !ok {
		return false, nil
	}
	switch c.Op {
	case OpEqual:
		return equalValues(actual, c.Value), nil
	case OpNotEqual:
		return !equalValues(actual, c.Value), nil
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		a, aok := toFloat(actual)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false, fmt.Errorf("operator %s requires numeric operands for field %s", c.Op, c.Field)
		}
		switch c.Op {
		case OpGreaterThan:
			return a > b, nil
		case OpGreaterOrEqual:
			return a >= b, nil
		case OpLessThan:
			return a < b, nil
		default:
			return a <= b, nil
		}
	case OpContains:
		haystack, hok := actual.(string)
		needle, nok := c.Value.(string)
		if !hok || !nok {
			return false, fmt.Errorf("operator contains requires string operands for field %s", c.Field)
		}
		return strings.Contains(haystack, needle), nil
	case OpIn:
		options, ok := c.Value.([]interface{})
		if !ok {
			return false, fmt.Errorf("operator in requires a list value for field %s", c.Field)
		}
		for _, option := range options {
			if equalValues(actual, option) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown operator %q", c.Op)
	}
}

func equalValues(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
