package policy

// EnforcementMode controls how a policy's verdicts affect the request.
type EnforcementMode string

const (
	// EnforcementStrict fails closed: a deny verdict halts evaluation of
	// subsequent policies and the caller must reject the whole request.
	EnforcementStrict EnforcementMode = "strict"
	// EnforcementAdvisory evaluates and reports without blocking.
	EnforcementAdvisory EnforcementMode = "advisory"
	// EnforcementDisabled skips the policy entirely.
	EnforcementDisabled EnforcementMode = "disabled"
)

// Valid reports whether the mode is a supported value.
func (m EnforcementMode) Valid() bool {
	switch m {
	case EnforcementStrict, EnforcementAdvisory, EnforcementDisabled:
		return true
	default:
		return false
	}
}

// Action is what a matching rule decides for the request.
type Action string

const (
	ActionAllow           Action = "allow"
	ActionDeny            Action = "deny"
	ActionRequireApproval Action = "require_approval"
	ActionThrottle        Action = "throttle"
)

// Valid reports whether the action is a supported value.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionDeny, ActionRequireApproval, ActionThrottle:
		return true
	default:
		return false
	}
}

// Operator compares a context field against a rule's reference value.
type Operator string

const (
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "ne"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpContains       Operator = "contains"
	OpIn             Operator = "in"
)

// Valid reports whether the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpContains, OpIn:
		return true
	default:
		return false
	}
}

// Condition is a single-field predicate over the execution context.
type Condition struct {
	Field string      `json:"field" yaml:"field"`
	Op    Operator    `json:"op" yaml:"op"`
	Value interface{} `json:"value" yaml:"value"`
}

// Rule pairs a condition with the action taken when it matches. Within a
// policy the first matching rule decides the outcome.
type Rule struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Condition   Condition `json:"condition" yaml:"condition"`
	Action      Action    `json:"action" yaml:"action"`
}

// Policy is an ordered rule list with an enforcement mode. Policies evaluate
// in registration order per subnet.
type Policy struct {
	ID          string          `json:"id" yaml:"id"`
	Type        string          `json:"type" yaml:"type"`
	Rules       []Rule          `json:"rules" yaml:"rules"`
	Enforcement EnforcementMode `json:"enforcement" yaml:"enforcement"`
	Version     int             `json:"version" yaml:"version"`
	Approvers   []string        `json:"approvers,omitempty" yaml:"approvers,omitempty"`
	Signature   []byte          `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// ExecutionContext is the request attribute bag evaluated against policy
// rules.
type ExecutionContext map[string]interface{}

// Outcome classifies one policy's verdict for a request.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
	OutcomeWarn Outcome = "warn"
)

// Validation is one policy's evaluation result.
type Validation struct {
	PolicyID string  `json:"policyId"`
	RuleID   string  `json:"ruleId,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Action   Action  `json:"action,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}
