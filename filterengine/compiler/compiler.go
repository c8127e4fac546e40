package compiler

import (
	"strings"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/matcher"
)

// Schema is what the builder needs to know about registered filters.
type Schema interface {
	// Field returns the operator registry of the scene filter named key.
	Field(key string) (*matcher.Registry, bool)
	// Logic reports whether key names a combinator.
	Logic(key string) bool
	// Operators returns the registry used for path-addressed leaves of kind.
	Operators(kind engine.Kind) (*matcher.Registry, bool)
}

// Compiler turns filter text into validated expression trees.
type Compiler struct {
	schema Schema
}

func New(schema Schema) *Compiler {
	return &Compiler{schema: schema}
}

// Compile normalizes and validates text. Whitespace-only text compiles to
// an empty expression.
func (c *Compiler) Compile(text string) (*FilterExpression, error) {
	if strings.TrimSpace(text) == "" {
		return &FilterExpression{Text: text}, nil
	}
	v, err := Normalize(text)
	if err != nil {
		return nil, err
	}
	return c.compile(text, v)
}

// CompileValue compiles an already normalized filter.
func (c *Compiler) CompileValue(v engine.Value) (*FilterExpression, error) {
	return c.compile(v.String(), v)
}

func (c *Compiler) compile(text string, v engine.Value) (*FilterExpression, error) {
	m, ok := singleMember(v)
	if !ok {
		return nil, engine.Invalidf("", "filter must be an object with exactly one key")
	}
	root, err := c.build(m)
	if err != nil {
		return nil, err
	}
	return &FilterExpression{Text: text, Root: root}, nil
}

func singleMember(v engine.Value) (engine.Member, bool) {
	if v.Kind() != engine.KindObject || v.Len() != 1 {
		return engine.Member{}, false
	}
	return v.Members()[0], true
}

// leaf is a resolved operator leaf before its operand is bound.
type leaf struct {
	key     string
	path    bool
	op      matcher.Operator
	operand engine.Value
}

func (c *Compiler) isLogic(key string) bool {
	return engine.IsOperatorKey(key) && c.schema.Logic(key)
}

// build creates the node for m. Combinator children are validated now and
// built on first evaluation.
func (c *Compiler) build(m engine.Member) (*FilterObject, error) {
	if c.isLogic(m.Key) {
		arr, err := c.array(m)
		if err != nil {
			return nil, err
		}
		return &FilterObject{Key: m.Key, Combinator: arr}, nil
	}
	l, err := c.resolve(m)
	if err != nil {
		return nil, err
	}
	operand, fn, err := l.op.Prepare(l.operand)
	if err != nil {
		return nil, engine.AsError(err).Prepend(l.key)
	}
	return &FilterObject{
		Key:  l.key,
		Path: l.path,
		Operator: &FilterKv{
			OperatorKey: l.op.Key,
			Value:       operand,
			Kind:        l.op.Kind,
			match:       fn,
		},
	}, nil
}

// check validates m structurally without binding operands.
func (c *Compiler) check(m engine.Member) error {
	if c.isLogic(m.Key) {
		_, err := c.array(m)
		return err
	}
	l, err := c.resolve(m)
	if err != nil {
		return err
	}
	if err := l.op.Validate(l.operand); err != nil {
		return engine.AsError(err).Prepend(l.key)
	}
	return nil
}

func (c *Compiler) array(m engine.Member) (*FilterArray, error) {
	if m.Value.Kind() != engine.KindArray || m.Value.Len() == 0 {
		return nil, engine.Invalidf(m.Key, "%s requires a non-empty array of filters", m.Key)
	}
	members := make([]engine.Member, 0, m.Value.Len())
	for i, item := range m.Value.Items() {
		child, ok := singleMember(item)
		if !ok {
			return nil, engine.Invalidf(m.Key, "%s element %d must be an object with exactly one key", m.Key, i)
		}
		if err := c.check(child); err != nil {
			return nil, engine.AsError(err).Prepend(m.Key)
		}
		members = append(members, child)
	}
	return newFilterArray(members, c.build), nil
}

// resolve finds the operator of a leaf. A bare value on a registered field
// is shorthand for $eq, or $in for an array. Unregistered keys with a bare
// value are path-addressed the same way.
func (c *Compiler) resolve(m engine.Member) (leaf, error) {
	switch {
	case engine.IsPathKey(m.Key):
		return c.resolvePath(m)
	case engine.IsOperatorKey(m.Key):
		return leaf{}, engine.Invalidf(m.Key, "unknown combinator %s", m.Key)
	}

	reg, ok := c.schema.Field(m.Key)
	if !ok {
		if m.Value.Kind() != engine.KindObject {
			return c.resolvePath(m)
		}
		return leaf{}, engine.Invalidf(m.Key, "unknown field %s", m.Key)
	}
	opm, ok := shorthand(m.Value)
	if !ok {
		return leaf{}, engine.Invalidf(m.Key, "field %s expects exactly one operator, got %d", m.Key, m.Value.Len())
	}
	op, ok := reg.Lookup(opm.Key)
	if !ok {
		return leaf{}, engine.Invalidf(opm.Key, "operator %s is not supported by %s field %s", opm.Key, reg.Kind(), m.Key).Prepend(m.Key)
	}
	return leaf{key: m.Key, op: op, operand: opm.Value}, nil
}

// shorthand expands a leaf value into its operator member.
func shorthand(v engine.Value) (engine.Member, bool) {
	switch v.Kind() {
	case engine.KindObject:
		return singleMember(v)
	case engine.KindArray:
		return engine.Member{Key: matcher.OpIn, Value: v}, true
	}
	return engine.Member{Key: matcher.OpEq, Value: v}, true
}

func (c *Compiler) resolvePath(m engine.Member) (leaf, error) {
	opm, ok := shorthand(m.Value)
	if !ok || !engine.IsOperatorKey(opm.Key) {
		return leaf{}, engine.Invalidf(m.Key, "path %s expects exactly one operator", m.Key)
	}
	opKey, operand := opm.Key, opm.Value

	kind, err := inferKind(opKey, operand)
	if err != nil {
		return leaf{}, engine.Invalidf(opKey, "%v", err).Prepend(m.Key)
	}
	reg, ok := c.schema.Operators(kind)
	if !ok {
		return leaf{}, engine.Invalidf(m.Key, "path lookups are not enabled")
	}
	op, ok := reg.Lookup(opKey)
	if !ok {
		return leaf{}, engine.Invalidf(opKey, "operator %s is not supported for %s values", opKey, kind).Prepend(m.Key)
	}
	return leaf{key: m.Key, path: true, op: op, operand: operand}, nil
}
