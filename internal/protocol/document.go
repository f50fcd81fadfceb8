package protocol

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
)

// Statement is one entry of a document: a single-key object whose key is
// the kind and whose value is the body.
type Statement struct {
	Kind Kind
	Body interface{}
}

// MarshalJSON renders the statement as {"<kind>": <body>}.
func (s Statement) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[Kind]interface{}{s.Kind: s.Body})
}

// MarshalYAML renders the statement as a one-entry mapping.
func (s Statement) MarshalYAML() (interface{}, error) {
	return map[Kind]interface{}{s.Kind: s.Body}, nil
}

// UnmarshalJSON decodes a single-key object back into a typed body.
func (s *Statement) UnmarshalJSON(data []byte) error {
	var raw map[Kind]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("statement must have exactly one key, got %d", len(raw))
	}
	for kind, body := range raw {
		target, err := newBody(kind)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("decoding %s: %w", kind, err)
		}
		s.Kind = kind
		s.Body = deref(target)
	}
	return nil
}

func newBody(kind Kind) (interface{}, error) {
	switch kind {
	case KindComp:
		return &Comp{}, nil
	case KindTest:
		return &Test{}, nil
	case KindRule:
		return &Rule{}, nil
	case KindAction:
		return &Action{}, nil
	case KindEmail:
		return &Email{}, nil
	case KindInstance:
		return &Instance{}, nil
	case KindReady:
		return &[]string{}, nil
	case KindResult:
		return &Result{}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
}

func deref(v interface{}) interface{} {
	switch b := v.(type) {
	case *Comp:
		return *b
	case *Test:
		return *b
	case *Rule:
		return *b
	case *Action:
		return *b
	case *Email:
		return *b
	case *Instance:
		return *b
	case *[]string:
		return *b
	case *Result:
		return *b
	}
	return v
}

// Document is an ordered list of statements. The zero value is empty and
// ready to use.
type Document struct {
	Statements []Statement
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Len returns the number of statements.
func (d *Document) Len() int {
	return len(d.Statements)
}

func (d *Document) add(kind Kind, body interface{}) *Document {
	d.Statements = append(d.Statements, Statement{Kind: kind, Body: body})
	return d
}

// Comp appends a component declaration.
func (d *Document) Comp(c Comp) *Document { return d.add(KindComp, c) }

// Test appends a test declaration.
func (d *Document) Test(t Test) *Document { return d.add(KindTest, t) }

// Rule appends a rule declaration.
func (d *Document) Rule(r Rule) *Document { return d.add(KindRule, r) }

// Action appends an action declaration.
func (d *Document) Action(name string) *Document { return d.add(KindAction, Action{Name: name}) }

// Email appends an email notification declaration.
func (d *Document) Email(e Email) *Document { return d.add(KindEmail, e) }

// Instance appends an instance directive.
func (d *Document) Instance(i Instance) *Document { return d.add(KindInstance, i) }

// Directives appends one instance statement per directive, in order.
func (d *Document) Directives(dirs []core.Directive) *Document {
	for _, dir := range dirs {
		d.Instance(Instance{Object: dir.Object, Name: dir.Instance, Delete: dir.IsDelete()})
	}
	return d
}

// Ready appends the list of tests the host may start running.
func (d *Document) Ready(tests ...string) *Document {
	list := make([]string, len(tests))
	copy(list, tests)
	return d.add(KindReady, list)
}

// Result appends a test result.
func (d *Document) Result(r core.TestResult) *Document {
	res := Result{Test: r.Test, Instance: r.Instance}
	if r.Outcome == core.OutcomeValue {
		v := r.Value
		res.Value = &v
	} else {
		res.Result = string(r.Outcome)
	}
	return d.add(KindResult, res)
}

// Results appends several results in order.
func (d *Document) Results(rs []core.TestResult) *Document {
	for _, r := range rs {
		d.Result(r)
	}
	return d
}

// Find returns the bodies of every statement of kind, in order.
func (d *Document) Find(kind Kind) []interface{} {
	var out []interface{}
	for _, s := range d.Statements {
		if s.Kind == kind {
			out = append(out, s.Body)
		}
	}
	return out
}

// Validate checks that every statement carries the fields the host needs
// to act on it.
func (d *Document) Validate() error {
	for i, s := range d.Statements {
		if err := validateStatement(s); err != nil {
			return core.ErrOutput(fmt.Sprintf("statement %d (%s): %s", i, s.Kind, err.Error()))
		}
	}
	return nil
}

func validateStatement(s Statement) error {
	switch b := s.Body.(type) {
	case Comp:
		return requireName(b.Name)
	case Test:
		if b.Interval != "" && b.Interval != IntervalFast && b.Interval != IntervalNormal && b.Interval != IntervalSlow {
			return fmt.Errorf("invalid interval %q", b.Interval)
		}
		return requireName(b.Name)
	case Rule:
		if b.Input == "" {
			return fmt.Errorf("rule %q has no input", b.Name)
		}
		return requireName(b.Name)
	case Action:
		return requireName(b.Name)
	case Email:
		return requireName(b.Name)
	case Instance:
		if b.Object == "" {
			return fmt.Errorf("instance %q has no object", b.Name)
		}
		return requireName(b.Name)
	case []string:
		return nil
	case Result:
		if b.Test == "" {
			return fmt.Errorf("result has no test")
		}
		if b.Value == nil && b.Result == "" {
			return fmt.Errorf("result for %q has neither value nor verdict", b.Test)
		}
		return nil
	default:
		return fmt.Errorf("unsupported body %T", s.Body)
	}
}

func requireName(name string) error {
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	return nil
}

// Parse decodes a JSON document.
func Parse(data []byte) (*Document, error) {
	var stmts []Statement
	if err := json.Unmarshal(data, &stmts); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{Statements: stmts}, nil
}

var (
	_ json.Marshaler   = Statement{}
	_ json.Unmarshaler = (*Statement)(nil)
	_ yaml.Marshaler   = Statement{}
)
