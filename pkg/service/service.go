// Package service is the entry point for matching filter texts against
// application targets.
package service

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/compiler"
	"github.com/PhucNguyen204/scenefilter/filterengine/eval"
	"github.com/PhucNguyen204/scenefilter/filterengine/matcher"
	"github.com/PhucNguyen204/scenefilter/filterengine/scene"
)

// MatchResult is the value form of a match outcome.
type MatchResult struct {
	Status  engine.Status
	Failure *engine.Error
}

func (r MatchResult) OK() bool { return r.Status == engine.StatusOk }

// FailurePath flattens the failure trail, outermost key first.
func (r MatchResult) FailurePath() []string { return r.Failure.Keys() }

// Err is nil for a match and the classified failure otherwise.
func (r MatchResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func resultOf(err error) MatchResult {
	if err == nil {
		return MatchResult{Status: engine.StatusOk}
	}
	fe := engine.AsError(err)
	return MatchResult{Status: fe.Status, Failure: fe}
}

type compiled struct {
	expr *compiler.FilterExpression
	err  error
}

// Service owns a scene filter registry and evaluates filter texts against
// targets of type T.
type Service[T any] struct {
	cfg      engine.EngineConfig
	log      logrus.FieldLogger
	scenes   *scene.Registry[T]
	compiler *compiler.Compiler
	eval     *eval.Evaluator[T]

	// nil when the compiled cache is disabled
	compiled *xsync.MapOf[string, *compiled]
	writes   sync.WaitGroup
}

type options[T any] struct {
	cfg      engine.EngineConfig
	log      logrus.FieldLogger
	identity func(T) string
	document scene.DocumentFunc[T]
}

type Option[T any] func(*options[T])

func WithConfig[T any](cfg engine.EngineConfig) Option[T] {
	return func(o *options[T]) { o.cfg = cfg }
}

func WithLogger[T any](log logrus.FieldLogger) Option[T] {
	return func(o *options[T]) { o.log = log }
}

// WithIdentity names targets for result cache keys. Required when any field
// has a cache.
func WithIdentity[T any](fn func(T) string) Option[T] {
	return func(o *options[T]) { o.identity = fn }
}

// WithDocument sets how path-addressed leaves read a target.
func WithDocument[T any](fn scene.DocumentFunc[T]) Option[T] {
	return func(o *options[T]) { o.document = fn }
}

// New registers fields and builds the service. Misconfigured fields and
// duplicate keys (unless the config allows override) are OptionErrors.
func New[T any](fields []scene.Field[T], opts ...Option[T]) (*Service[T], error) {
	o := options[T]{cfg: engine.DefaultEngineConfig(), log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	sceneOpts := []scene.Option[T]{
		scene.WithOverride[T](o.cfg.AllowOverride),
		scene.WithOperators[T](matcher.NewSet(o.cfg)),
	}
	if o.identity != nil {
		sceneOpts = append(sceneOpts, scene.WithIdentity(o.identity))
	}
	if o.document != nil {
		sceneOpts = append(sceneOpts, scene.WithDocument(o.document))
	}
	scenes := scene.NewRegistry(sceneOpts...)
	if err := scenes.Register(fields...); err != nil {
		return nil, err
	}

	s := &Service[T]{
		cfg:      o.cfg,
		log:      o.log,
		scenes:   scenes,
		compiler: compiler.New(scenes),
	}
	evalOpts := []eval.Option[T]{eval.WithLogger[T](o.log)}
	if o.cfg.AsyncCacheWrites {
		evalOpts = append(evalOpts, eval.WithCacheWriter[T](s.background))
	}
	s.eval = eval.New(scenes, evalOpts...)
	if o.cfg.EnableCompiledCache {
		s.compiled = xsync.NewMapOf[string, *compiled]()
	}
	return s, nil
}

func (s *Service[T]) background(write func()) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		write()
	}()
}

// Flush waits for pending result cache writes.
func (s *Service[T]) Flush() { s.writes.Wait() }

// Compile returns the validated tree of text, at most once per distinct
// text while the compiled cache is enabled.
func (s *Service[T]) Compile(text string) (*compiler.FilterExpression, error) {
	if s.compiled == nil {
		return s.compile(text)
	}
	c, _ := s.compiled.LoadOrCompute(text, func() *compiled {
		expr, err := s.compile(text)
		return &compiled{expr: expr, err: err}
	})
	return c.expr, c.err
}

func (s *Service[T]) compile(text string) (*compiler.FilterExpression, error) {
	expr, err := s.compiler.Compile(text)
	log := s.log.WithFields(logrus.Fields{"filter": text, "cached": s.compiled != nil})
	if err != nil {
		log.WithError(err).Debug("filter rejected")
		return nil, err
	}
	log.Debug("filter compiled")
	return expr, nil
}

// CompiledCount is the number of distinct texts in the compiled cache.
func (s *Service[T]) CompiledCount() int {
	if s.compiled == nil {
		return 0
	}
	return s.compiled.Size()
}

func (s *Service[T]) prepare(text string) (*compiler.FilterExpression, error) {
	expr, err := s.Compile(text)
	if err != nil {
		return nil, err
	}
	if expr.Empty() && !s.cfg.EmptyFilterMatches {
		return nil, engine.NotMatchedf("", "empty filter matches nothing")
	}
	return expr, nil
}

// Match evaluates text against target.
func (s *Service[T]) Match(ctx context.Context, text string, target T) MatchResult {
	return resultOf(s.Check(ctx, text, target))
}

// Check is Match returning the failure as an error.
func (s *Service[T]) Check(ctx context.Context, text string, target T) error {
	expr, err := s.prepare(text)
	if err != nil {
		return err
	}
	return s.evaluate(ctx, expr, target)
}

// MatchLazy evaluates text against the target produced by getter.
func (s *Service[T]) MatchLazy(ctx context.Context, text string, getter *scene.LazyObjectGetter[T]) MatchResult {
	return resultOf(s.CheckLazy(ctx, text, getter))
}

// CheckLazy is MatchLazy returning the failure as an error.
func (s *Service[T]) CheckLazy(ctx context.Context, text string, getter *scene.LazyObjectGetter[T]) error {
	expr, err := s.prepare(text)
	if err != nil {
		return err
	}
	return s.evaluateLazy(ctx, expr, getter)
}

// FilterOut keeps the targets that match text. Only an Invalid filter is an
// error; targets failing with any other status are dropped.
func (s *Service[T]) FilterOut(ctx context.Context, text string, targets []T) ([]T, error) {
	expr, err := s.prepare(text)
	if err != nil {
		if engine.StatusOf(err) == engine.StatusNotMatched {
			return []T{}, nil
		}
		return nil, err
	}
	out := make([]T, 0, len(targets))
	for _, t := range targets {
		if s.evaluate(ctx, expr, t) == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

// TryFilterOut is FilterOut returning the outcome as a MatchResult.
func (s *Service[T]) TryFilterOut(ctx context.Context, text string, targets []T) ([]T, MatchResult) {
	out, err := s.FilterOut(ctx, text, targets)
	return out, resultOf(err)
}

// FilterOutLazy keeps the getters whose targets match text.
func (s *Service[T]) FilterOutLazy(ctx context.Context, text string, getters []*scene.LazyObjectGetter[T]) ([]*scene.LazyObjectGetter[T], error) {
	expr, err := s.prepare(text)
	if err != nil {
		if engine.StatusOf(err) == engine.StatusNotMatched {
			return []*scene.LazyObjectGetter[T]{}, nil
		}
		return nil, err
	}
	out := make([]*scene.LazyObjectGetter[T], 0, len(getters))
	for _, g := range getters {
		if s.evaluateLazy(ctx, expr, g) == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Service[T]) evaluate(ctx context.Context, expr *compiler.FilterExpression, target T) (err error) {
	defer s.recoverFault(&err)
	return s.eval.Evaluate(ctx, expr, target)
}

func (s *Service[T]) evaluateLazy(ctx context.Context, expr *compiler.FilterExpression, getter *scene.LazyObjectGetter[T]) (err error) {
	defer s.recoverFault(&err)
	return s.eval.EvaluateLazy(ctx, expr, getter)
}

func (s *Service[T]) recoverFault(err *error) {
	if r := recover(); r != nil {
		s.log.WithField("panic", r).Error("recovered from panic during evaluation")
		*err = engine.MatchErrorf(engine.UnknownKey, "%v", r)
	}
}

// Describe reports the registered schema for UI builders.
func (s *Service[T]) Describe() map[string]scene.FieldInfo { return s.scenes.Describe() }

func (s *Service[T]) Stats() eval.Stats { return s.eval.Stats() }

func (s *Service[T]) Registry() *scene.Registry[T] { return s.scenes }

func (s *Service[T]) Config() engine.EngineConfig { return s.cfg }
