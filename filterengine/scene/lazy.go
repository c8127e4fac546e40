package scene

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// LazyObjectGetter produces a target on demand from fixed arguments.
type LazyObjectGetter[T any] struct {
	args     any
	identity string
	fetch    func(ctx context.Context) (T, error)
}

// Lazy wraps fetch with its arguments. The identity used for result cache
// keys defaults to the printed arguments.
func Lazy[T, A any](args A, fetch func(ctx context.Context, args A) (T, error)) *LazyObjectGetter[T] {
	g := &LazyObjectGetter[T]{args: args, identity: fmt.Sprint(args)}
	if fetch != nil {
		g.fetch = func(ctx context.Context) (T, error) { return fetch(ctx, args) }
	}
	return g
}

// WithIdentity returns a copy using id as the target identity.
func (g *LazyObjectGetter[T]) WithIdentity(id string) *LazyObjectGetter[T] {
	cp := *g
	cp.identity = id
	return &cp
}

func (g *LazyObjectGetter[T]) Args() any { return g.args }
func (g *LazyObjectGetter[T]) Identity() string { return g.identity }

// LazyTarget memoizes one getter for the length of one match call.
type LazyTarget[T any] struct {
	getter *LazyObjectGetter[T]
	done   bool
	value  T
	err    error
}

func NewLazyTarget[T any](g *LazyObjectGetter[T]) *LazyTarget[T] {
	return &LazyTarget[T]{getter: g}
}

// Get fetches on first call and replays the outcome afterwards.
func (l *LazyTarget[T]) Get(ctx context.Context) (T, error) {
	if !l.done {
		l.done = true
		l.value, l.err = l.fetch(ctx)
	}
	return l.value, l.err
}

func (l *LazyTarget[T]) Identity() string { return l.getter.identity }

func (l *LazyTarget[T]) fetch(ctx context.Context) (T, error) {
	var zero T
	if l.getter.fetch == nil {
		return zero, engine.MatchErrorf("", "no accessor for target %v", l.getter.args)
	}
	v, err := l.getter.fetch(ctx)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, engine.ErrTargetNotFound) {
		return zero, engine.MatchErrorf("", "target not found for args %v", l.getter.args).WithCause(err)
	}
	return zero, engine.MatchErrorf("", "retrieving target for args %v failed", l.getter.args).WithCause(err)
}
