package compiler

import (
	"strings"
	"sync"
	"sync/atomic"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/matcher"
)

// FilterExpression is a validated filter. Root is nil for an empty filter.
type FilterExpression struct {
	Text string
	Root *FilterObject
}

func (e *FilterExpression) Empty() bool { return e == nil || e.Root == nil }

func (e *FilterExpression) String() string {
	if e.Empty() {
		return ""
	}
	return e.Root.String()
}

// FilterObject is one single-key node. Exactly one of Operator and
// Combinator is set. Path marks leaves resolved by document path.
type FilterObject struct {
	Key        string
	Operator   *FilterKv
	Combinator *FilterArray
	Path       bool
}

func (o *FilterObject) String() string {
	var b strings.Builder
	b.WriteString("{")
	b.WriteString(engine.String(o.Key).String())
	b.WriteString(":")
	if o.Combinator != nil {
		b.WriteString(o.Combinator.String())
	} else {
		b.WriteString(o.Operator.String())
	}
	b.WriteString("}")
	return b.String()
}

// FilterKv is an operator with its resolved operand.
type FilterKv struct {
	OperatorKey string
	Value       engine.Value
	Kind        engine.Kind

	match matcher.MatchFn
}

func (kv *FilterKv) Match(target engine.Value) (bool, error) { return kv.match(target) }

func (kv *FilterKv) String() string {
	return engine.Object(engine.Member{Key: kv.OperatorKey, Value: kv.Value}).String()
}

// FilterArray is the validated child list of a combinator. Children are
// built on first access so unvisited $or branches cost nothing.
type FilterArray struct {
	members []engine.Member
	items   []lazyObject
	build   func(engine.Member) (*FilterObject, error)
	built   atomic.Int32
}

type lazyObject struct {
	once sync.Once
	obj  *FilterObject
	err  error
}

func newFilterArray(members []engine.Member, build func(engine.Member) (*FilterObject, error)) *FilterArray {
	return &FilterArray{members: members, items: make([]lazyObject, len(members)), build: build}
}

func (a *FilterArray) Len() int { return len(a.members) }

// At returns child i, building it on first use.
func (a *FilterArray) At(i int) (*FilterObject, error) {
	it := &a.items[i]
	it.once.Do(func() {
		it.obj, it.err = a.build(a.members[i])
		a.built.Add(1)
	})
	return it.obj, it.err
}

// Materialized is the number of children built so far.
func (a *FilterArray) Materialized() int { return int(a.built.Load()) }

func (a *FilterArray) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, m := range a.members {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(engine.Object(m).String())
	}
	b.WriteString("]")
	return b.String()
}
