package eval

import (
	"github.com/hashicorp/go-multierror"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/compiler"
)

// logicFilter combines the children of a combinator node. Children are
// evaluated strictly in order.
type logicFilter[T any] interface {
	evaluate(ev *evaluation[T], key string, items *compiler.FilterArray) error
}

// andFilter stops at the first failing child.
type andFilter[T any] struct {
	e *Evaluator[T]
}

func (f andFilter[T]) evaluate(ev *evaluation[T], key string, items *compiler.FilterArray) error {
	for i := 0; i < items.Len(); i++ {
		if err := f.e.child(ev, items, i); err != nil {
			return engine.AsError(err).Prepend(key)
		}
	}
	return nil
}

// orFilter stops at the first matching child. When none matches, every
// branch's failure path is kept as a sibling under key.
type orFilter[T any] struct {
	e *Evaluator[T]
}

func (f orFilter[T]) evaluate(ev *evaluation[T], key string, items *compiler.FilterArray) error {
	var causes *multierror.Error
	paths := make([]*engine.FailurePath, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		err := f.e.child(ev, items, i)
		if err == nil {
			return nil
		}
		fe := engine.AsError(err)
		paths = append(paths, fe.Path)
		causes = multierror.Append(causes, fe)
	}
	out := engine.NotMatchedf("", "no filters match %s", key).WithCause(causes.ErrorOrNil())
	out.Path = engine.MergeFailurePaths(key, paths...)
	return out
}

func (e *Evaluator[T]) child(ev *evaluation[T], items *compiler.FilterArray, i int) error {
	obj, err := items.At(i)
	if err != nil {
		return engine.AsError(err)
	}
	return e.eval(ev, obj)
}
