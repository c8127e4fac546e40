package filterengine

import "context"

// CacheKey addresses one memoized operator outcome for one target.
type CacheKey struct {
	Target   string
	Field    string
	Operator string
	Operand  string
}

// ResultCache stores match outcomes per scene filter. A missing entry is
// reported through found, never through err.
type ResultCache interface {
	Get(ctx context.Context, key CacheKey) (matched, found bool, err error)
	Set(ctx context.Context, key CacheKey, matched bool) error
}
