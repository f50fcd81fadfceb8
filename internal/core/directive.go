package core

// DirectiveAction is what the host must do with a per-instance object.
type DirectiveAction string

const (
	DirectiveCreate DirectiveAction = "create"
	DirectiveDelete DirectiveAction = "delete"
)

// Directive instructs the host to create or delete one per-instance object
// (a test or rule instance) for a single identity.
type Directive struct {
	Object   string
	Instance string
	PID      int
	Action   DirectiveAction
}

// IsDelete reports whether the directive tears down an instance.
func (d Directive) IsDelete() bool {
	return d.Action == DirectiveDelete
}

// Outcome is the verdict reported for a test.
type Outcome string

const (
	OutcomePass   Outcome = "pass"
	OutcomeFail   Outcome = "fail"
	OutcomeIgnore Outcome = "ignore"
	OutcomeValue  Outcome = "value"
)

// TestResult is either an aggregate value for a non-instanced test or a
// pass/fail verdict scoped to one instance.
type TestResult struct {
	Test     string
	Instance string
	Outcome  Outcome
	Value    int64
}

// ValueResult builds an aggregate numeric result.
func ValueResult(test string, value int64) TestResult {
	return TestResult{Test: test, Outcome: OutcomeValue, Value: value}
}

// VerdictResult builds a pass/fail result for one instance.
func VerdictResult(test, instance string, pass bool) TestResult {
	r := TestResult{Test: test, Instance: instance, Outcome: OutcomeFail}
	if pass {
		r.Outcome = OutcomePass
	}
	return r
}

// IgnoreResult builds the neutral outcome reported by polling tests.
func IgnoreResult(test string) TestResult {
	return TestResult{Test: test, Outcome: OutcomeIgnore}
}
