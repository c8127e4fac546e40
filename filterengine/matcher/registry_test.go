package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

func operatorKeys(r *Registry) []string {
	var keys []string
	for _, op := range r.Operators() {
		keys = append(keys, op.Key)
	}
	return keys
}

func TestSetRegistriesPerKind(t *testing.T) {
	set := NewSet(engine.DefaultEngineConfig())

	boolReg, ok := set.ForKind(engine.KindBool)
	require.True(t, ok)
	assert.Equal(t, []string{OpEq, OpNe, OpIn}, operatorKeys(boolReg))

	strReg, ok := set.ForKind(engine.KindString)
	require.True(t, ok)
	assert.True(t, strReg.Has(OpRegex))
	assert.False(t, strReg.Has(OpGt))

	for _, k := range []engine.Kind{engine.KindLong, engine.KindDouble, engine.KindVersion} {
		r, ok := set.ForKind(k)
		require.True(t, ok)
		assert.Equal(t, 8, r.Count(), k.String())
		assert.False(t, r.Has(OpRegex))
	}

	_, ok = set.ForKind(engine.KindArray)
	assert.False(t, ok)
}

func TestNewRegistryRejectsCompositeKinds(t *testing.T) {
	_, err := NewRegistry(engine.KindObject, engine.DefaultEngineConfig())
	assert.Equal(t, engine.StatusOptionError, engine.StatusOf(err))
}

func TestRegisterCustomOperator(t *testing.T) {
	r, err := NewRegistry(engine.KindString, engine.DefaultEngineConfig())
	require.NoError(t, err)

	prefix := NewFuncOperator(engine.KindString, "$prefix", "Starts with", nil,
		func(operand, target engine.Value) (bool, error) {
			p, _ := operand.AsString()
			s, ok := target.AsString()
			return ok && strings.HasPrefix(s, p), nil
		})
	require.NoError(t, r.Register(prefix))
	assert.Equal(t, "$prefix", operatorKeys(r)[r.Count()-1])

	op, ok := r.Lookup("$prefix")
	require.True(t, ok)
	matched, err := op.Match(engine.String("Sc"), engine.String("Scott"))
	require.NoError(t, err)
	assert.True(t, matched)

	err = r.Register(NewFuncOperator(engine.KindLong, "$odd", "Odd", nil, nil))
	assert.Equal(t, engine.StatusOptionError, engine.StatusOf(err))

	err = r.Register(NewFuncOperator(engine.KindString, "prefix", "Bad", nil, nil))
	assert.Equal(t, engine.StatusOptionError, engine.StatusOf(err))
}

func TestRegexCacheShared(t *testing.T) {
	set := NewSet(engine.DefaultEngineConfig())
	r, _ := set.ForKind(engine.KindString)
	op, _ := r.Lookup(OpRegex)

	require.NoError(t, op.Validate(engine.String("^a+$")))
	_, err := op.Compile(engine.String("^a+$"))
	require.NoError(t, err)
	assert.Equal(t, 1, set.CompiledPatterns())
}
