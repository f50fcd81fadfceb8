// Package protocol builds and encodes the documents a probe module writes to
// the diagnostics host: configuration manifests, instance directives, ready
// lists and test results.
package protocol

// Interval is how often the host runs a polled test.
type Interval string

const (
	IntervalFast   Interval = "fast"
	IntervalNormal Interval = "normal"
	IntervalSlow   Interval = "slow"
)

// Severity is the impact the host assigns to a failing rule.
type Severity string

const (
	SeverityCatastrophic Severity = "SWDIAG_SEVERITY_CATASTROPHIC"
	SeverityCritical     Severity = "SWDIAG_SEVERITY_CRITICAL"
	SeverityHigh         Severity = "SWDIAG_SEVERITY_HIGH"
	SeverityMedium       Severity = "SWDIAG_SEVERITY_MEDIUM"
	SeverityLow          Severity = "SWDIAG_SEVERITY_LOW"
	SeverityNone         Severity = "SWDIAG_SEVERITY_NONE"
	SeverityPositive     Severity = "SWDIAG_SEVERITY_POSITIVE"
)

// Operator is how a rule evaluates its input.
type Operator string

const (
	OperatorOnFail       Operator = "SWDIAG_RULE_ON_FAIL"
	OperatorDisable      Operator = "SWDIAG_RULE_DISABLE"
	OperatorEqualToN     Operator = "SWDIAG_RULE_EQUAL_TO_N"
	OperatorNotEqualToN  Operator = "SWDIAG_RULE_NOT_EQUAL_TO_N"
	OperatorLessThanN    Operator = "SWDIAG_RULE_LESS_THAN_N"
	OperatorGreaterThanN Operator = "SWDIAG_RULE_GREATER_THAN_N"
	OperatorNEver        Operator = "SWDIAG_RULE_N_EVER"
	OperatorNInRow       Operator = "SWDIAG_RULE_N_IN_ROW"
	OperatorNInM         Operator = "SWDIAG_RULE_N_IN_M"
	OperatorRangeNToM    Operator = "SWDIAG_RULE_RANGE_N_TO_M"
	OperatorNInTimeM     Operator = "SWDIAG_RULE_N_IN_TIME_M"
	OperatorFailForTimeN Operator = "SWDIAG_RULE_FAIL_FOR_TIME_N"
	OperatorOr           Operator = "SWDIAG_RULE_OR"
	OperatorAnd          Operator = "SWDIAG_RULE_AND"
)

// Kind names a statement in a document.
type Kind string

const (
	KindComp     Kind = "comp"
	KindTest     Kind = "test"
	KindRule     Kind = "rule"
	KindAction   Kind = "action"
	KindEmail    Kind = "email"
	KindInstance Kind = "instance"
	KindReady    Kind = "ready"
	KindResult   Kind = "result"
)

// Comp declares a component.
type Comp struct {
	Name   string `json:"name" yaml:"name"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Test declares a test. Polled tests are scheduled by the host; the others
// are fed by results from a polled test.
type Test struct {
	Name        string   `json:"name" yaml:"name"`
	Polled      bool     `json:"polled,omitempty" yaml:"polled,omitempty"`
	Interval    Interval `json:"interval,omitempty" yaml:"interval,omitempty"`
	Comp        string   `json:"comp,omitempty" yaml:"comp,omitempty"`
	Health      string   `json:"health,omitempty" yaml:"health,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Rule declares a rule over a test or another rule. Zero N and M leave the
// host defaults in place.
type Rule struct {
	Name        string   `json:"name" yaml:"name"`
	Input       string   `json:"input" yaml:"input"`
	Action      string   `json:"action,omitempty" yaml:"action,omitempty"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Operator    Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	N           int64    `json:"n,omitempty" yaml:"n,omitempty"`
	M           int64    `json:"m,omitempty" yaml:"m,omitempty"`
	Comp        string   `json:"comp,omitempty" yaml:"comp,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Action declares a recovery action implemented by the module itself.
type Action struct {
	Name string `json:"name" yaml:"name"`
}

// Email declares a notification action delivered by the host.
type Email struct {
	Name     string `json:"name" yaml:"name"`
	Subject  string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Instance string `json:"instance,omitempty" yaml:"instance,omitempty"`
	To       string `json:"to,omitempty" yaml:"to,omitempty"`
	Command  string `json:"command,omitempty" yaml:"command,omitempty"`
}

// Instance creates or deletes a named instance of a test or rule.
type Instance struct {
	Object string `json:"object" yaml:"object"`
	Name   string `json:"name" yaml:"name"`
	Delete bool   `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Result reports a test outcome: either a verdict or a numeric value.
type Result struct {
	Test     string `json:"test" yaml:"test"`
	Instance string `json:"instance,omitempty" yaml:"instance,omitempty"`
	Result   string `json:"result,omitempty" yaml:"result,omitempty"`
	Value    *int64 `json:"value,omitempty" yaml:"value,omitempty"`
}
