package matcher

import (
	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

const (
	OpEq    = "$eq"
	OpNe    = "$ne"
	OpGt    = "$gt"
	OpGe    = "$ge"
	OpLt    = "$lt"
	OpLe    = "$le"
	OpIn    = "$in"
	OpRange = "$range"
	OpRegex = "$regex"
)

var operatorLabels = map[string]string{
	OpEq:    "Equals",
	OpNe:    "Not equals",
	OpGt:    "Greater than",
	OpGe:    "Greater than or equal",
	OpLt:    "Less than",
	OpLe:    "Less than or equal",
	OpIn:    "In",
	OpRange: "Range",
	OpRegex: "Regex",
}

// MatchFn is an operator bound to its operand.
type MatchFn func(target engine.Value) (bool, error)

// ValidateFn checks an operand, already coerced to the operator's kind.
type ValidateFn func(operand engine.Value) error

// BindFn turns a validated operand into a MatchFn.
type BindFn func(operand engine.Value) MatchFn

// Operator is one comparison usable on fields of a single kind.
type Operator struct {
	Key   string
	Label string
	Kind  engine.Kind

	validate ValidateFn
	bind     BindFn
}

// NewFuncOperator builds a custom operator. validate may be nil.
func NewFuncOperator(kind engine.Kind, key, label string, validate ValidateFn, match func(operand, target engine.Value) (bool, error)) Operator {
	return Operator{
		Key:      key,
		Label:    label,
		Kind:     kind,
		validate: validate,
		bind: func(operand engine.Value) MatchFn {
			return func(target engine.Value) (bool, error) { return match(operand, target) }
		},
	}
}

// Validate reports an Invalid error for operands the operator cannot use.
func (o Operator) Validate(operand engine.Value) error {
	_, err := o.prepare(operand)
	return err
}

// Compile validates operand and binds it.
func (o Operator) Compile(operand engine.Value) (MatchFn, error) {
	_, fn, err := o.Prepare(operand)
	return fn, err
}

// Prepare is Compile that also returns the operand coerced to the
// operator's kind.
func (o Operator) Prepare(operand engine.Value) (engine.Value, MatchFn, error) {
	v, err := o.prepare(operand)
	if err != nil {
		return engine.Null(), nil, err
	}
	return v, o.bind(v), nil
}

// Match compiles operand and applies it to target once.
func (o Operator) Match(operand, target engine.Value) (bool, error) {
	fn, err := o.Compile(operand)
	if err != nil {
		return false, err
	}
	return fn(target)
}

func (o Operator) prepare(operand engine.Value) (engine.Value, error) {
	v, err := coerceOperand(o.Kind, o.Key, operand)
	if err != nil {
		return engine.Null(), err
	}
	if o.validate != nil {
		if err := o.validate(v); err != nil {
			return engine.Null(), toInvalid(o.Key, err)
		}
	}
	return v, nil
}

func toInvalid(key string, err error) error {
	if fe := engine.AsError(err); fe.Status == engine.StatusInvalid {
		return fe
	}
	return engine.Invalidf(key, "%s", err.Error())
}
