package eval

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/compiler"
	"github.com/PhucNguyen204/scenefilter/filterengine/scene"
)

type player struct {
	PID         int64  `json:"pid"`
	UserName    string `json:"userName"`
	GameVersion string `json:"gameVersion"`
	Region      string `json:"region"`
}

var scott = player{PID: 1000, UserName: "Scott", GameVersion: "1.0.1", Region: "eu-west"}

type mapCache struct {
	mu      sync.Mutex
	entries map[engine.CacheKey]bool
	failGet bool
	failSet bool
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[engine.CacheKey]bool)} }

func (c *mapCache) Get(_ context.Context, key engine.CacheKey) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, false, errors.New("cache down")
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key engine.CacheKey, matched bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("cache down")
	}
	c.entries[key] = matched
	return nil
}

type fixture struct {
	scenes    *scene.Registry[player]
	compiler  *compiler.Compiler
	eval      *Evaluator[player]
	pidReads  int
	nameReads int
}

func newFixture(t *testing.T, cache engine.ResultCache) *fixture {
	t.Helper()
	f := &fixture{}
	f.scenes = scene.NewRegistry[player](scene.WithIdentity(func(p player) string { return p.UserName }))
	var pidOpts []scene.FieldOption
	if cache != nil {
		pidOpts = append(pidOpts, scene.WithCache(cache))
	}
	require.NoError(t, f.scenes.Register(
		scene.LongField[player]("pid", func(_ context.Context, p player) (int64, error) {
			f.pidReads++
			return p.PID, nil
		}, pidOpts...),
		scene.StringField[player]("userName", func(_ context.Context, p player) (string, error) {
			f.nameReads++
			return p.UserName, nil
		}),
		scene.VersionField[player]("gameVersion", scene.ParsedVersion[player](func(_ context.Context, p player) (string, error) {
			return p.GameVersion, nil
		})),
	))
	f.compiler = compiler.New(f.scenes)
	f.eval = New(f.scenes)
	return f
}

func (f *fixture) match(t *testing.T, text string, target player) error {
	t.Helper()
	expr, err := f.compiler.Compile(text)
	require.NoError(t, err)
	return f.eval.Evaluate(context.Background(), expr, target)
}

func TestEvaluateExamples(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		status engine.Status
		path   []string
	}{
		{"in", `{"pid": {"$in": [1000, 1001]}}`, engine.StatusOk, nil},
		{"and", `{"$and": [{"pid": {"$in": [1000,1001]}}, {"userName": {"$eq": "Scott"}}]}`, engine.StatusOk, nil},
		{"regex", `{"userName": {"$regex": "^A"}}`, engine.StatusNotMatched, []string{"userName", "$regex"}},
		{"or all fail", `{"$or": [{"pid": {"$ne": 1000}}, {"pid": {"$range": [0, 1]}}]}`, engine.StatusNotMatched, []string{"$or", "pid", "$ne", "pid", "$range"}},
		{"or second wins", `{"$or": [{"pid": {"$ne": 1000}}, {"userName": "Scott"}]}`, engine.StatusOk, nil},
		{"and stops at failure", `{"$and": [{"pid": 1000}, {"userName": {"$eq": "Bob"}}, {"pid": 1}]}`, engine.StatusNotMatched, []string{"$and", "userName", "$eq"}},
		{"version", `{"gameVersion": {"$ge": "1.0"}}`, engine.StatusOk, nil},
		{"version range", `{"gameVersion": {"$range": ["1.0.2", "2"]}}`, engine.StatusNotMatched, []string{"gameVersion", "$range"}},
		{"nested", `{"$and": [{"$or": [{"pid": 1}, {"pid": 2}]}, {"userName": "Scott"}]}`, engine.StatusNotMatched, []string{"$and", "$or", "pid", "$eq", "pid", "$eq"}},
		{"path leaf", `{"$.region": {"$regex": "^eu-"}}`, engine.StatusOk, nil},
		{"bare path value", `{"$or": [{"region": ["us-east", "eu-west"]}]}`, engine.StatusOk, nil},
		{"path miss", `{"$.missing": "x"}`, engine.StatusNotMatched, []string{"$.missing", "$eq"}},
		{"null path", `{"$.missing": null}`, engine.StatusOk, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			err := f.match(t, tt.text, scott)
			assert.Equal(t, tt.status, engine.StatusOf(err), "%v", err)
			if tt.path != nil {
				assert.Equal(t, tt.path, engine.AsError(err).Keys())
			}
		})
	}
}

func TestAndShortCircuits(t *testing.T) {
	f := newFixture(t, nil)
	err := f.match(t, `{"$and": [{"pid": 1}, {"userName": "Scott"}]}`, scott)
	require.Error(t, err)
	assert.Equal(t, 0, f.nameReads)
}

func TestOrShortCircuitsAndLeavesBranchesUnbuilt(t *testing.T) {
	f := newFixture(t, nil)
	expr, err := f.compiler.Compile(`{"$or": [{"pid": 1000}, {"userName": "Scott"}, {"userName": "Bob"}]}`)
	require.NoError(t, err)
	require.NoError(t, f.eval.Evaluate(context.Background(), expr, scott))
	assert.Equal(t, 0, f.nameReads)
	assert.Equal(t, 1, expr.Root.Combinator.Materialized())
}

func TestOrKeepsBranchErrors(t *testing.T) {
	f := newFixture(t, nil)
	err := f.match(t, `{"$or": [{"pid": 1}, {"userName": "Bob"}]}`, scott)
	fe := engine.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, "no filters match $or", fe.Message)

	var branch *engine.Error
	require.True(t, errors.As(errors.Unwrap(err), &branch))
	assert.Equal(t, engine.StatusNotMatched, branch.Status)
}

func TestShorthandEquivalence(t *testing.T) {
	targets := []player{scott, {PID: 7, UserName: ""}}
	for _, pair := range [][2]string{
		{`{"pid": 1000}`, `{"pid": {"$eq": 1000}}`},
		{`{"userName": "Scott"}`, `{"userName": {"$eq": "Scott"}}`},
		{`{"gameVersion": null}`, `{"gameVersion": {"$eq": null}}`},
		{`{"gameVersion": "1.0.1"}`, `{"gameVersion": {"$eq": "1.0.1"}}`},
	} {
		for _, target := range targets {
			f := newFixture(t, nil)
			short := f.match(t, pair[0], target)
			long := f.match(t, pair[1], target)
			assert.Equal(t, engine.StatusOf(long), engine.StatusOf(short), pair[0])
			assert.Equal(t, engine.AsError(long).Keys(), engine.AsError(short).Keys(), pair[0])
		}
	}
}

func TestCacheHitSkipsGetter(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, cache)

	require.NoError(t, f.match(t, `{"pid": {"$gt": 10}}`, scott))
	assert.Equal(t, 1, f.pidReads)
	require.Len(t, cache.entries, 1)

	require.NoError(t, f.match(t, `{"pid": {"$gt": 10}}`, scott))
	assert.Equal(t, 1, f.pidReads, "cached outcome must not read the field")

	err := f.match(t, `{"pid": {"$lt": 10}}`, scott)
	assert.Equal(t, engine.StatusNotMatched, engine.StatusOf(err))
	assert.Equal(t, 2, f.pidReads)

	err = f.match(t, `{"pid": {"$lt": 10}}`, scott)
	fe := engine.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, engine.StatusNotMatched, fe.Status)
	assert.Contains(t, fe.Message, "according to cache")
	assert.Equal(t, []string{"pid", "$lt"}, fe.Keys())
	assert.Equal(t, 2, f.pidReads)

	stats := f.eval.Stats()
	assert.Equal(t, int64(2), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
}

func TestCacheKeyIncludesTargetAndOperand(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, cache)

	require.NoError(t, f.match(t, `{"pid": {"$in": [1000, 1001]}}`, scott))
	key := engine.CacheKey{Target: "Scott", Field: "pid", Operator: "$in", Operand: "array:[1000,1001]"}
	matched, found, err := cache.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, matched)

	other := player{PID: 5, UserName: "Bob"}
	assert.Error(t, f.match(t, `{"pid": {"$in": [1000, 1001]}}`, other))
	assert.Equal(t, 2, f.pidReads)
}

func TestCacheFailuresDoNotChangeOutcome(t *testing.T) {
	cache := newMapCache()
	cache.failGet, cache.failSet = true, true
	f := newFixture(t, cache)

	require.NoError(t, f.match(t, `{"pid": 1000}`, scott))
	assert.Equal(t, engine.StatusNotMatched, engine.StatusOf(f.match(t, `{"pid": 1}`, scott)))
	assert.Equal(t, int64(4), f.eval.Stats().CacheErrors)
}

func TestCacheWriterIsPluggable(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, cache)
	var pending []func()
	f.eval = New(f.scenes, WithCacheWriter[player](func(w func()) { pending = append(pending, w) }))

	require.NoError(t, f.match(t, `{"pid": 1000}`, scott))
	assert.Empty(t, cache.entries)
	require.Len(t, pending, 1)
	pending[0]()
	assert.Len(t, cache.entries, 1)
}

func TestLazyGetterRunsOnce(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	getter := scene.Lazy("Scott", func(_ context.Context, name string) (player, error) {
		calls++
		return scott, nil
	})
	expr, err := f.compiler.Compile(`{"$and": [{"pid": 1000}, {"$or": [{"userName": "Bob"}, {"gameVersion": {"$gt": "1.0"}}]}, {"$.region": "eu-west"}]}`)
	require.NoError(t, err)
	require.NoError(t, f.eval.EvaluateLazy(context.Background(), expr, getter))
	assert.Equal(t, 1, calls)

	require.NoError(t, f.eval.EvaluateLazy(context.Background(), expr, getter))
	assert.Equal(t, 2, calls, "memoized per match call only")
}

func TestLazyFailureSurfacesAsMatchError(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	getter := scene.Lazy(404, func(_ context.Context, id int) (player, error) {
		calls++
		return player{}, engine.ErrTargetNotFound
	})
	expr, err := f.compiler.Compile(`{"$and": [{"pid": 1000}, {"userName": "Scott"}]}`)
	require.NoError(t, err)

	err = f.eval.EvaluateLazy(context.Background(), expr, getter)
	fe := engine.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, engine.StatusMatchError, fe.Status)
	assert.Contains(t, fe.Message, "404")
	assert.Equal(t, []string{"$and", "pid"}, fe.Keys())
	assert.Equal(t, 1, calls)
}

func TestLazyCacheHitNeverFetches(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, cache)
	calls := 0
	getter := scene.Lazy("Scott", func(_ context.Context, name string) (player, error) {
		calls++
		return scott, nil
	})
	expr, err := f.compiler.Compile(`{"pid": {"$ge": 1000}}`)
	require.NoError(t, err)

	require.NoError(t, f.eval.EvaluateLazy(context.Background(), expr, getter))
	assert.Equal(t, 1, calls)
	require.NoError(t, f.eval.EvaluateLazy(context.Background(), expr, getter))
	assert.Equal(t, 1, calls)
}

func TestGetterErrorIsMatchError(t *testing.T) {
	scenes := scene.NewRegistry[player]()
	require.NoError(t, scenes.Register(scene.LongField[player]("pid", func(context.Context, player) (int64, error) {
		return 0, errors.New("db timeout")
	})))
	expr, err := compiler.New(scenes).Compile(`{"$or": [{"pid": 1}]}`)
	require.NoError(t, err)

	err = New(scenes).Evaluate(context.Background(), expr, scott)
	fe := engine.AsError(err)
	assert.Equal(t, engine.StatusNotMatched, fe.Status)
	assert.Equal(t, []string{"$or", "pid"}, fe.Keys())

	var branch *engine.Error
	require.True(t, errors.As(errors.Unwrap(err), &branch))
	assert.Equal(t, engine.StatusMatchError, branch.Status)
}

func TestEmptyExpressionMatches(t *testing.T) {
	f := newFixture(t, nil)
	assert.NoError(t, f.eval.Evaluate(context.Background(), &compiler.FilterExpression{}, scott))
}

func TestDeterministicFailurePaths(t *testing.T) {
	f := newFixture(t, nil)
	text := `{"$or": [{"pid": {"$ne": 1000}}, {"$and": [{"userName": "Scott"}, {"gameVersion": {"$lt": "1"}}]}]}`
	first := engine.AsError(f.match(t, text, scott))
	second := engine.AsError(f.match(t, text, scott))
	require.NotNil(t, first)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Keys(), second.Keys())
	assert.Equal(t, []string{"$or", "pid", "$ne", "$and", "gameVersion", "$lt"}, first.Keys())
}
