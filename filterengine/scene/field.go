package scene

import (
	"context"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// Getter reads one field of a target. Returning engine.ErrNullValue marks
// the field as null.
type Getter[T, K any] func(ctx context.Context, target T) (K, error)

// Field is a scene filter: a typed, named accessor usable as a filter leaf.
type Field[T any] struct {
	Key   string
	Label string
	Kind  engine.Kind
	Get   func(ctx context.Context, target T) (engine.Value, error)
	// Cache, when set, memoizes operator outcomes per target identity.
	Cache engine.ResultCache
}

type fieldOptions struct {
	label string
	cache engine.ResultCache
}

type FieldOption func(*fieldOptions)

func WithLabel(label string) FieldOption {
	return func(o *fieldOptions) { o.label = label }
}

func WithCache(cache engine.ResultCache) FieldOption {
	return func(o *fieldOptions) { o.cache = cache }
}

func newField[T, K any](key string, kind engine.Kind, get Getter[T, K], wrap func(K) engine.Value, opts []FieldOption) Field[T] {
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}
	f := Field[T]{Key: key, Label: o.label, Kind: kind, Cache: o.cache}
	if get != nil {
		f.Get = func(ctx context.Context, target T) (engine.Value, error) {
			v, err := get(ctx, target)
			if err != nil {
				return engine.Null(), err
			}
			return wrap(v), nil
		}
	}
	return f
}

func BoolField[T any](key string, get Getter[T, bool], opts ...FieldOption) Field[T] {
	return newField(key, engine.KindBool, get, engine.Bool, opts)
}

func LongField[T any](key string, get Getter[T, int64], opts ...FieldOption) Field[T] {
	return newField(key, engine.KindLong, get, engine.Long, opts)
}

func DoubleField[T any](key string, get Getter[T, float64], opts ...FieldOption) Field[T] {
	return newField(key, engine.KindDouble, get, engine.Double, opts)
}

func StringField[T any](key string, get Getter[T, string], opts ...FieldOption) Field[T] {
	return newField(key, engine.KindString, get, engine.String, opts)
}

func VersionField[T any](key string, get Getter[T, *version.Version], opts ...FieldOption) Field[T] {
	return newField(key, engine.KindVersion, get, engine.Version, opts)
}

// ParsedVersion adapts a getter of version strings. An empty string is null.
func ParsedVersion[T any](get Getter[T, string]) Getter[T, *version.Version] {
	return func(ctx context.Context, target T) (*version.Version, error) {
		s, err := get(ctx, target)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, engine.ErrNullValue
		}
		v, err := engine.ParseVersion(s)
		if err != nil {
			return nil, err
		}
		ver, _ := v.AsVersion()
		return ver, nil
	}
}

// Value reads the field from target and checks it against the declared kind.
func (f *Field[T]) Value(ctx context.Context, target T) (engine.Value, error) {
	v, err := f.Get(ctx, target)
	if errors.Is(err, engine.ErrNullValue) {
		return engine.Null(), nil
	}
	if err != nil {
		return engine.Null(), err
	}
	if v.IsNull() || v.Kind() == f.Kind || (f.Kind.IsNumeric() && v.Kind().IsNumeric()) {
		return v, nil
	}
	return engine.Null(), errors.Errorf("field %s returned a %s value, declared %s", f.Key, v.Kind(), f.Kind)
}

func (f *Field[T]) validate() error {
	switch {
	case f.Key == "":
		return engine.OptionErrorf("scene filter key must not be empty")
	case engine.IsOperatorKey(f.Key):
		return engine.OptionErrorf("scene filter key %q must not start with %s", f.Key, engine.OperatorSigil)
	case !f.Kind.IsScalar():
		return engine.OptionErrorf("scene filter %s declares unsupported kind %s", f.Key, f.Kind)
	case f.Get == nil:
		return engine.OptionErrorf("scene filter %s declares %s but has no value getter", f.Key, f.Kind)
	}
	return nil
}
