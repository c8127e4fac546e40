package matcher

import (
	"math"
	"slices"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// env carries what operators of one registry set share.
type env struct {
	epsilon   float64
	threshold int
	regex     *regexCache
}

func newEnv(cfg engine.EngineConfig) *env {
	threshold := cfg.StringSetThreshold
	if threshold < 1 {
		threshold = engine.DefaultStringSetThreshold
	}
	return &env{epsilon: cfg.DoubleEpsilon, threshold: threshold, regex: newRegexCache()}
}

// DefaultOperatorKeys lists the operators a kind supports, in display order.
// Ordering operators exist for Long, Double and Version only.
func DefaultOperatorKeys(kind engine.Kind) []string {
	switch kind {
	case engine.KindBool:
		return []string{OpEq, OpNe, OpIn}
	case engine.KindLong, engine.KindDouble, engine.KindVersion:
		return []string{OpEq, OpNe, OpGt, OpGe, OpLt, OpLe, OpIn, OpRange}
	case engine.KindString:
		return []string{OpEq, OpNe, OpIn, OpRegex}
	}
	return nil
}

// NewOperator returns a built-in operator for kind. Asking for an operator
// the kind does not support is an OptionError.
func NewOperator(kind engine.Kind, key string, cfg engine.EngineConfig) (Operator, error) {
	return newEnv(cfg).operator(kind, key)
}

func (e *env) operator(kind engine.Kind, key string) (Operator, error) {
	if !slices.Contains(DefaultOperatorKeys(kind), key) {
		return Operator{}, engine.OptionErrorf("operator %s is not defined for %s fields", key, kind)
	}
	op := Operator{Key: key, Label: operatorLabels[key], Kind: kind}
	switch key {
	case OpEq:
		op.validate = requireScalarOrNull(key)
		op.bind = func(operand engine.Value) MatchFn {
			return func(target engine.Value) (bool, error) { return e.equal(operand, target), nil }
		}
	case OpNe:
		op.validate = requireScalarOrNull(key)
		op.bind = func(operand engine.Value) MatchFn {
			return func(target engine.Value) (bool, error) { return !e.equal(operand, target), nil }
		}
	case OpGt:
		op.validate = requireScalar(key)
		op.bind = e.ordered(func(c int) bool { return c > 0 }, false)
	case OpGe:
		op.validate = requireScalar(key)
		op.bind = e.ordered(func(c int) bool { return c >= 0 }, true)
	case OpLt:
		op.validate = requireScalar(key)
		op.bind = e.ordered(func(c int) bool { return c < 0 }, false)
	case OpLe:
		op.validate = requireScalar(key)
		op.bind = e.ordered(func(c int) bool { return c <= 0 }, true)
	case OpIn:
		op.validate = validateIn
		op.bind = e.bindIn(kind)
	case OpRange:
		op.validate = validateRange
		op.bind = e.bindRange
	case OpRegex:
		op.validate = e.validateRegex
		op.bind = e.bindRegex
	}
	return op, nil
}

// equal compares with Double tolerance. Null equals only null.
func (e *env) equal(operand, target engine.Value) bool {
	if operand.IsNull() || target.IsNull() {
		return operand.IsNull() && target.IsNull()
	}
	if operand.Equal(target) {
		return true
	}
	if operand.Kind() == engine.KindDouble || target.Kind() == engine.KindDouble {
		a, okA := operand.Number()
		b, okB := target.Number()
		return okA && okB && math.Abs(a-b) < e.epsilon
	}
	return false
}

func (e *env) ordered(accept func(int) bool, inclusive bool) BindFn {
	return func(operand engine.Value) MatchFn {
		return func(target engine.Value) (bool, error) {
			return e.compare(target, operand, accept, inclusive), nil
		}
	}
}

func (e *env) compare(target, bound engine.Value, accept func(int) bool, inclusive bool) bool {
	if target.IsNull() {
		return false
	}
	if inclusive && e.equal(bound, target) {
		return true
	}
	c, ok := target.Compare(bound)
	return ok && accept(c)
}

func (e *env) bindIn(kind engine.Kind) BindFn {
	return func(operand engine.Value) MatchFn {
		items := operand.Items()
		if kind == engine.KindString && len(items) >= e.threshold {
			strs := make([]string, 0, len(items))
			for _, it := range items {
				s, _ := it.AsString()
				strs = append(strs, s)
			}
			set := newStringSet(strs)
			return func(target engine.Value) (bool, error) {
				s, ok := target.AsString()
				return ok && set.contains(s), nil
			}
		}
		return func(target engine.Value) (bool, error) {
			for _, it := range items {
				if e.equal(it, target) {
					return true, nil
				}
			}
			return false, nil
		}
	}
}

func (e *env) bindRange(operand engine.Value) MatchFn {
	items := operand.Items()
	low, high := items[0], items[1]
	atLeast := func(c int) bool { return c >= 0 }
	atMost := func(c int) bool { return c <= 0 }
	return func(target engine.Value) (bool, error) {
		return e.compare(target, low, atLeast, true) && e.compare(target, high, atMost, true), nil
	}
}

func (e *env) validateRegex(operand engine.Value) error {
	s, ok := operand.AsString()
	if !ok {
		return engine.Invalidf(OpRegex, "%s requires a string pattern, got %s", OpRegex, operand.Kind())
	}
	if _, err := e.regex.compile(s); err != nil {
		return engine.Invalidf(OpRegex, "invalid pattern %q: %v", s, err)
	}
	return nil
}

func (e *env) bindRegex(operand engine.Value) MatchFn {
	s, _ := operand.AsString()
	re, err := e.regex.compile(s)
	return func(target engine.Value) (bool, error) {
		if err != nil {
			return false, err
		}
		str, ok := target.AsString()
		return ok && re.MatchString(str), nil
	}
}

func requireScalar(key string) ValidateFn {
	return func(operand engine.Value) error {
		if !operand.Kind().IsScalar() {
			return engine.Invalidf(key, "%s requires a single value, got %s", key, operand.Kind())
		}
		return nil
	}
}

func requireScalarOrNull(key string) ValidateFn {
	return func(operand engine.Value) error {
		if operand.IsNull() {
			return nil
		}
		return requireScalar(key)(operand)
	}
}

func validateIn(operand engine.Value) error {
	if operand.Kind() != engine.KindArray || operand.Len() == 0 {
		return engine.Invalidf(OpIn, "%s requires a non-empty array", OpIn)
	}
	for i, it := range operand.Items() {
		if !it.Kind().IsScalar() {
			return engine.Invalidf(OpIn, "%s element %d must be a single value, got %s", OpIn, i, it.Kind())
		}
	}
	return nil
}

func validateRange(operand engine.Value) error {
	if operand.Kind() != engine.KindArray || operand.Len() != 2 {
		return engine.Invalidf(OpRange, "%s requires an array of exactly two elements", OpRange)
	}
	items := operand.Items()
	for i, it := range items {
		if !it.Kind().IsScalar() {
			return engine.Invalidf(OpRange, "%s element %d must be a single value, got %s", OpRange, i, it.Kind())
		}
	}
	c, ok := items[1].Compare(items[0])
	if !ok {
		return engine.Invalidf(OpRange, "%s bounds %s and %s are not comparable", OpRange, items[0], items[1])
	}
	if c < 0 {
		return engine.Invalidf(OpRange, "%s second element %s is not >= first element %s", OpRange, items[1], items[0])
	}
	return nil
}
