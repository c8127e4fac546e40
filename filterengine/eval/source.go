package eval

import (
	"context"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/scene"
)

// source supplies the target of one match call.
type source[T any] interface {
	target(ctx context.Context) (T, error)
	identity() (string, bool)
}

type eagerSource[T any] struct {
	value  T
	scenes *scene.Registry[T]
}

func (s eagerSource[T]) target(context.Context) (T, error) { return s.value, nil }

func (s eagerSource[T]) identity() (string, bool) { return s.scenes.Identity(s.value) }

type lazySource[T any] struct {
	cell *scene.LazyTarget[T]
}

func (s lazySource[T]) target(ctx context.Context) (T, error) { return s.cell.Get(ctx) }

func (s lazySource[T]) identity() (string, bool) { return s.cell.Identity(), true }

// evaluation is the state of one match call.
type evaluation[T any] struct {
	ctx context.Context
	src source[T]

	docDone bool
	doc     []byte
	docErr  error
}

// document renders the target once per call for path-addressed leaves.
func (ev *evaluation[T]) document(paths *scene.PathResolver[T]) ([]byte, error) {
	if ev.docDone {
		return ev.doc, ev.docErr
	}
	ev.docDone = true
	target, err := ev.src.target(ev.ctx)
	if err != nil {
		ev.docErr = err
		return nil, err
	}
	ev.doc, err = paths.Document(ev.ctx, target)
	if err != nil {
		ev.docErr = engine.MatchErrorf("", "encoding target document failed").WithCause(err)
	}
	return ev.doc, ev.docErr
}
