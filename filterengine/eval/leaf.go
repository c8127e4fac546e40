package eval

import (
	"context"

	"github.com/sirupsen/logrus"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/compiler"
	"github.com/PhucNguyen204/scenefilter/filterengine/scene"
)

// evalScene runs one field leaf with the cache-aside protocol: a cache hit
// decides without reading the target, a miss evaluates and records.
func (e *Evaluator[T]) evalScene(ev *evaluation[T], obj *compiler.FilterObject) error {
	kv := obj.Operator
	field, ok := e.scenes.Lookup(obj.Key)
	if !ok {
		return engine.MatchErrorf(obj.Key, "scene filter %s is not registered", obj.Key)
	}

	var key engine.CacheKey
	cacheable := false
	if field.Cache != nil {
		if id, ok := ev.src.identity(); ok {
			cacheable = true
			key = engine.CacheKey{Target: id, Field: obj.Key, Operator: kv.OperatorKey, Operand: kv.Value.Key()}
			matched, found, err := field.Cache.Get(ev.ctx, key)
			switch {
			case err != nil:
				e.cacheErrors.Add(1)
				e.log.WithError(err).WithFields(logrus.Fields{
					"field":    obj.Key,
					"operator": kv.OperatorKey,
				}).Warn("result cache read failed")
			case found:
				e.cacheHits.Add(1)
				if matched {
					return nil
				}
				return notMatched(obj.Key, kv, " according to cache")
			default:
				e.cacheMisses.Add(1)
			}
		}
	}

	target, err := ev.src.target(ev.ctx)
	if err != nil {
		return engine.AsError(err).Prepend(obj.Key)
	}
	value, err := field.Value(ev.ctx, target)
	if err != nil {
		return engine.MatchErrorf(obj.Key, "reading %s failed", obj.Key).WithCause(err)
	}

	matched, err := e.apply(obj.Key, kv, value)
	if err != nil {
		return err
	}
	if cacheable {
		e.store(ev.ctx, field, key, matched)
	}
	if !matched {
		return notMatched(obj.Key, kv, "")
	}
	return nil
}

// evalPath runs a leaf addressed by document path.
func (e *Evaluator[T]) evalPath(ev *evaluation[T], obj *compiler.FilterObject) error {
	paths := e.scenes.Paths()
	doc, err := ev.document(paths)
	if err != nil {
		return engine.AsError(err).Prepend(obj.Key)
	}
	matched, err := e.apply(obj.Key, obj.Operator, paths.Lookup(doc, obj.Key))
	if err != nil {
		return err
	}
	if !matched {
		return notMatched(obj.Key, obj.Operator, "")
	}
	return nil
}

func (e *Evaluator[T]) apply(key string, kv *compiler.FilterKv, value engine.Value) (bool, error) {
	e.leaves.Add(1)
	matched, err := kv.Match(value)
	if err != nil {
		return false, engine.MatchErrorf(kv.OperatorKey, "%s on %s failed", kv.OperatorKey, key).
			WithOperand(kv.OperatorKey, kv.Value).
			WithCause(err).
			Prepend(key)
	}
	return matched, nil
}

func (e *Evaluator[T]) store(ctx context.Context, field *scene.Field[T], key engine.CacheKey, matched bool) {
	ctx = context.WithoutCancel(ctx)
	cache := field.Cache
	e.writes(func() {
		if err := cache.Set(ctx, key, matched); err != nil {
			e.cacheErrors.Add(1)
			e.log.WithError(err).WithFields(logrus.Fields{
				"field":    key.Field,
				"operator": key.Operator,
			}).Warn("result cache write failed")
		}
	})
}

func notMatched(field string, kv *compiler.FilterKv, suffix string) error {
	return engine.NotMatchedf(kv.OperatorKey, "%s %s %s not matched%s", field, kv.OperatorKey, kv.Value, suffix).
		WithOperand(kv.OperatorKey, kv.Value).
		Prepend(field)
}
