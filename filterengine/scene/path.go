package scene

import (
	"context"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/gjson"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// DocumentFunc renders a target as JSON for path-addressed leaves.
type DocumentFunc[T any] func(ctx context.Context, target T) ([]byte, error)

// PathResolver reads path-addressed leaves from a target's JSON document.
// Translated paths live here, apart from the scene filter map.
type PathResolver[T any] struct {
	document DocumentFunc[T]
	paths    *xsync.MapOf[string, string]
}

// NewPathResolver uses doc, or JSON marshaling of the target when nil.
func NewPathResolver[T any](doc DocumentFunc[T]) *PathResolver[T] {
	if doc == nil {
		doc = func(_ context.Context, target T) ([]byte, error) {
			return json.Marshal(target)
		}
	}
	return &PathResolver[T]{document: doc, paths: xsync.NewMapOf[string, string]()}
}

func (p *PathResolver[T]) Document(ctx context.Context, target T) ([]byte, error) {
	return p.document(ctx, target)
}

// Lookup reads key from doc. Missing values are null.
func (p *PathResolver[T]) Lookup(doc []byte, key string) engine.Value {
	return engine.FromJSON(gjson.GetBytes(doc, p.Translate(key)))
}

// Translate turns "$.a.b[0]" into the gjson path "a.b.0".
func (p *PathResolver[T]) Translate(key string) string {
	if gp, ok := p.paths.Load(key); ok {
		return gp
	}
	gp := translatePath(key)
	p.paths.Store(key, gp)
	return gp
}

// Size is the number of distinct paths seen.
func (p *PathResolver[T]) Size() int { return p.paths.Size() }

func translatePath(key string) string {
	s := strings.TrimPrefix(key, engine.OperatorSigil)
	s = strings.TrimPrefix(s, ".")
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '[':
			if b.Len() > 0 {
				b.WriteByte('.')
			}
		case ']':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
