package matcher

import (
	"sync"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// Registry holds the operators valid for one scalar kind.
type Registry struct {
	kind engine.Kind
	env  *env

	mu        sync.RWMutex
	operators map[string]Operator
	order     []string
}

// NewRegistry creates a registry for kind with the default operators.
func NewRegistry(kind engine.Kind, cfg engine.EngineConfig) (*Registry, error) {
	return newRegistry(kind, newEnv(cfg))
}

func newRegistry(kind engine.Kind, e *env) (*Registry, error) {
	if !kind.IsScalar() {
		return nil, engine.OptionErrorf("no operator registry for %s values", kind)
	}
	r := &Registry{kind: kind, env: e, operators: make(map[string]Operator)}
	for _, key := range DefaultOperatorKeys(kind) {
		op, err := e.operator(kind, key)
		if err != nil {
			return nil, err
		}
		r.add(op)
	}
	return r, nil
}

func (r *Registry) Kind() engine.Kind { return r.kind }

// Register adds or replaces an operator. Replacing keeps its display slot.
func (r *Registry) Register(op Operator) error {
	if op.Kind != r.kind {
		return engine.OptionErrorf("operator %s is declared for %s, registry holds %s", op.Key, op.Kind, r.kind)
	}
	if !engine.IsOperatorKey(op.Key) {
		return engine.OptionErrorf("operator key %q must start with %s", op.Key, engine.OperatorSigil)
	}
	if op.bind == nil {
		return engine.OptionErrorf("operator %s has no match function", op.Key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(op)
	return nil
}

func (r *Registry) add(op Operator) {
	if _, exists := r.operators[op.Key]; !exists {
		r.order = append(r.order, op.Key)
	}
	r.operators[op.Key] = op
}

func (r *Registry) Lookup(key string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[key]
	return op, ok
}

func (r *Registry) Has(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Operators returns the registered operators in display order.
func (r *Registry) Operators() []Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Operator, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.operators[k])
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.operators)
}

// Set bundles one registry per scalar kind over a shared regex cache.
type Set struct {
	env        *env
	registries map[engine.Kind]*Registry
}

var scalarKinds = []engine.Kind{
	engine.KindBool, engine.KindLong, engine.KindDouble, engine.KindString, engine.KindVersion,
}

func NewSet(cfg engine.EngineConfig) *Set {
	e := newEnv(cfg)
	s := &Set{env: e, registries: make(map[engine.Kind]*Registry, len(scalarKinds))}
	for _, k := range scalarKinds {
		r, _ := newRegistry(k, e)
		s.registries[k] = r
	}
	return s
}

func (s *Set) ForKind(kind engine.Kind) (*Registry, bool) {
	r, ok := s.registries[kind]
	return r, ok
}

// CompiledPatterns is the number of distinct regular expressions cached.
func (s *Set) CompiledPatterns() int { return s.env.regex.size() }
