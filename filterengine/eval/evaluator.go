// Package eval walks compiled filters against targets.
package eval

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/compiler"
	"github.com/PhucNguyen204/scenefilter/filterengine/scene"
)

// Stats are cumulative counters of one evaluator.
type Stats struct {
	NodesEvaluated int64 `json:"nodes_evaluated"`
	LeafMatches    int64 `json:"leaf_matches"`
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	CacheErrors    int64 `json:"cache_errors"`
}

// Evaluator runs compiled filters over targets of type T in eager or lazy
// mode. It is safe for concurrent use; each call owns its own state.
type Evaluator[T any] struct {
	scenes *scene.Registry[T]
	logic  map[string]logicFilter[T]
	log    logrus.FieldLogger
	writes func(func())

	nodes       atomic.Int64
	leaves      atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheErrors atomic.Int64
}

type Option[T any] func(*Evaluator[T])

func WithLogger[T any](log logrus.FieldLogger) Option[T] {
	return func(e *Evaluator[T]) { e.log = log }
}

// WithCacheWriter decides where result cache writes run. The default runs
// them inline.
func WithCacheWriter[T any](schedule func(func())) Option[T] {
	return func(e *Evaluator[T]) { e.writes = schedule }
}

func New[T any](scenes *scene.Registry[T], opts ...Option[T]) *Evaluator[T] {
	e := &Evaluator[T]{
		scenes: scenes,
		log:    logrus.StandardLogger(),
		writes: func(f func()) { f() },
	}
	e.logic = map[string]logicFilter[T]{
		engine.AndKey: andFilter[T]{e: e},
		engine.OrKey:  orFilter[T]{e: e},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate matches a target that is already in hand. A nil error is a match.
func (e *Evaluator[T]) Evaluate(ctx context.Context, expr *compiler.FilterExpression, target T) error {
	return e.run(ctx, expr, eagerSource[T]{value: target, scenes: e.scenes})
}

// EvaluateLazy matches a target produced by getter. The getter runs at most
// once and not at all when every leaf is answered by a result cache.
func (e *Evaluator[T]) EvaluateLazy(ctx context.Context, expr *compiler.FilterExpression, getter *scene.LazyObjectGetter[T]) error {
	if getter == nil {
		return engine.MatchErrorf(engine.UnknownKey, "lazy getter is nil")
	}
	return e.run(ctx, expr, lazySource[T]{cell: scene.NewLazyTarget(getter)})
}

func (e *Evaluator[T]) Stats() Stats {
	return Stats{
		NodesEvaluated: e.nodes.Load(),
		LeafMatches:    e.leaves.Load(),
		CacheHits:      e.cacheHits.Load(),
		CacheMisses:    e.cacheMisses.Load(),
		CacheErrors:    e.cacheErrors.Load(),
	}
}

func (e *Evaluator[T]) run(ctx context.Context, expr *compiler.FilterExpression, src source[T]) error {
	if expr.Empty() {
		return nil
	}
	ev := &evaluation[T]{ctx: ctx, src: src}
	return e.eval(ev, expr.Root)
}

func (e *Evaluator[T]) eval(ev *evaluation[T], obj *compiler.FilterObject) error {
	e.nodes.Add(1)
	switch {
	case obj.Combinator != nil:
		l, ok := e.logic[obj.Key]
		if !ok {
			return engine.MatchErrorf(obj.Key, "no combinator registered for %s", obj.Key)
		}
		return l.evaluate(ev, obj.Key, obj.Combinator)
	case obj.Path:
		return e.evalPath(ev, obj)
	default:
		return e.evalScene(ev, obj)
	}
}
