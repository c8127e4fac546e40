// Package resultcache provides engine.ResultCache implementations.
package resultcache

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// Memory keeps outcomes in process for the lifetime of the cache.
type Memory struct {
	entries *xsync.MapOf[engine.CacheKey, bool]
}

func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMapOf[engine.CacheKey, bool]()}
}

func (m *Memory) Get(_ context.Context, key engine.CacheKey) (bool, bool, error) {
	matched, found := m.entries.Load(key)
	return matched, found, nil
}

func (m *Memory) Set(_ context.Context, key engine.CacheKey, matched bool) error {
	m.entries.Store(key, matched)
	return nil
}

func (m *Memory) Len() int { return m.entries.Size() }

func (m *Memory) Clear() { m.entries.Clear() }
