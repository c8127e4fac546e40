package scene

import (
	"context"
	"sync"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/matcher"
)

// Registry maps field keys to scene filters for targets of type T. All
// kinds share one key space.
type Registry[T any] struct {
	mu     sync.RWMutex
	fields map[string]*Field[T]
	order  []string

	override  bool
	identity  func(T) string
	operators *matcher.Set
	paths     *PathResolver[T]
}

type Option[T any] func(*Registry[T])

// WithOverride lets a registration replace an existing key.
func WithOverride[T any](allow bool) Option[T] {
	return func(r *Registry[T]) { r.override = allow }
}

// WithIdentity names targets for result cache keys.
func WithIdentity[T any](fn func(T) string) Option[T] {
	return func(r *Registry[T]) { r.identity = fn }
}

// WithDocument sets how path-addressed leaves obtain a target's JSON.
func WithDocument[T any](fn DocumentFunc[T]) Option[T] {
	return func(r *Registry[T]) { r.paths = NewPathResolver(fn) }
}

func WithOperators[T any](set *matcher.Set) Option[T] {
	return func(r *Registry[T]) { r.operators = set }
}

func NewRegistry[T any](opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{fields: make(map[string]*Field[T])}
	for _, opt := range opts {
		opt(r)
	}
	if r.operators == nil {
		r.operators = matcher.NewSet(engine.DefaultEngineConfig())
	}
	if r.paths == nil {
		r.paths = NewPathResolver[T](nil)
	}
	return r
}

// Register adds fields atomically: on error nothing is registered.
func (r *Registry[T]) Register(fields ...Field[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := make(map[string]struct{}, len(fields))
	for i := range fields {
		f := &fields[i]
		if err := f.validate(); err != nil {
			return err
		}
		if f.Cache != nil && r.identity == nil {
			return engine.OptionErrorf("scene filter %s has a result cache but targets have no identity", f.Key)
		}
		_, dupBatch := batch[f.Key]
		_, dupExisting := r.fields[f.Key]
		if (dupBatch || dupExisting) && !r.override {
			return engine.OptionErrorf("scene filter %s is already registered", f.Key)
		}
		batch[f.Key] = struct{}{}
	}
	for _, f := range fields {
		f := f
		if _, exists := r.fields[f.Key]; !exists {
			r.order = append(r.order, f.Key)
		}
		r.fields[f.Key] = &f
	}
	return nil
}

func (r *Registry[T]) Lookup(key string) (*Field[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[key]
	return f, ok
}

// Keys lists registered keys in registration order.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fields)
}

// Field implements compiler.Schema.
func (r *Registry[T]) Field(key string) (*matcher.Registry, bool) {
	f, ok := r.Lookup(key)
	if !ok {
		return nil, false
	}
	return r.operators.ForKind(f.Kind)
}

// Logic implements compiler.Schema.
func (r *Registry[T]) Logic(key string) bool { return engine.IsLogicKey(key) }

// Operators implements compiler.Schema.
func (r *Registry[T]) Operators(kind engine.Kind) (*matcher.Registry, bool) {
	return r.operators.ForKind(kind)
}

func (r *Registry[T]) OperatorSet() *matcher.Set { return r.operators }

// Identity names target for result cache keys.
func (r *Registry[T]) Identity(target T) (string, bool) {
	if r.identity == nil {
		return "", false
	}
	return r.identity(target), true
}

func (r *Registry[T]) Paths() *PathResolver[T] { return r.paths }

// Document returns the JSON of target used by path-addressed leaves.
func (r *Registry[T]) Document(ctx context.Context, target T) ([]byte, error) {
	return r.paths.Document(ctx, target)
}
