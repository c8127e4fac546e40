package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

func mustVersion(t *testing.T, s string) engine.Value {
	t.Helper()
	v, err := engine.ParseVersion(s)
	require.NoError(t, err)
	return v
}

func match(t *testing.T, kind engine.Kind, key string, operand, target engine.Value) bool {
	t.Helper()
	op, err := NewOperator(kind, key, engine.DefaultEngineConfig())
	require.NoError(t, err)
	ok, err := op.Match(operand, target)
	require.NoError(t, err)
	return ok
}

func TestLongOperators(t *testing.T) {
	pid := engine.Long(1000)
	tests := []struct {
		key     string
		operand engine.Value
		want    bool
	}{
		{OpEq, engine.Long(1000), true},
		{OpEq, engine.Double(1000), true},
		{OpEq, engine.Double(1000.5), false},
		{OpNe, engine.Long(1000), false},
		{OpGt, engine.Long(999), true},
		{OpGt, engine.Double(999.5), true},
		{OpGe, engine.Long(1000), true},
		{OpLt, engine.Long(1000), false},
		{OpLe, engine.Double(1000), true},
		{OpIn, engine.Array(engine.Long(1000), engine.Long(1001)), true},
		{OpIn, engine.Array(engine.Long(1)), false},
		{OpRange, engine.Array(engine.Long(0), engine.Long(1000)), true},
		{OpRange, engine.Array(engine.Long(0), engine.Long(1)), false},
		{OpRange, engine.Array(engine.Double(999.5), engine.Double(1000.5)), true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.key, tt.operand), func(t *testing.T) {
			assert.Equal(t, tt.want, match(t, engine.KindLong, tt.key, tt.operand, pid))
		})
	}
}

func TestDoubleEpsilon(t *testing.T) {
	exact, err := NewOperator(engine.KindDouble, OpEq, engine.DefaultEngineConfig())
	require.NoError(t, err)
	ok, err := exact.Match(engine.Double(0.3), engine.Double(0.1+0.2))
	require.NoError(t, err)
	assert.False(t, ok)

	loose, err := NewOperator(engine.KindDouble, OpEq, engine.DefaultEngineConfig().WithDoubleEpsilon(1e-9))
	require.NoError(t, err)
	ok, err = loose.Match(engine.Double(0.3), engine.Double(0.1+0.2))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNullSemantics(t *testing.T) {
	assert.True(t, match(t, engine.KindString, OpEq, engine.Null(), engine.Null()))
	assert.False(t, match(t, engine.KindString, OpEq, engine.Null(), engine.String("Scott")))
	assert.False(t, match(t, engine.KindString, OpEq, engine.String("Scott"), engine.Null()))
	assert.True(t, match(t, engine.KindString, OpNe, engine.Null(), engine.String("Scott")))
	assert.False(t, match(t, engine.KindLong, OpGt, engine.Long(1), engine.Null()))
	assert.False(t, match(t, engine.KindLong, OpIn, engine.Array(engine.Long(1)), engine.Null()))
}

func TestVersionOperators(t *testing.T) {
	target := mustVersion(t, "1.0.1")
	assert.True(t, match(t, engine.KindVersion, OpEq, engine.String("1.0.1"), target))
	assert.True(t, match(t, engine.KindVersion, OpGt, engine.String("1.0"), target))
	assert.True(t, match(t, engine.KindVersion, OpLt, engine.String("1.0.10"), target))
	assert.True(t, match(t, engine.KindVersion, OpRange, engine.Array(engine.String("1.0"), engine.String("2")), target))

	op, err := NewOperator(engine.KindVersion, OpEq, engine.DefaultEngineConfig())
	require.NoError(t, err)
	err = op.Validate(engine.String("1.0-beta"))
	assert.Equal(t, engine.StatusInvalid, engine.StatusOf(err))
}

func TestStringOperators(t *testing.T) {
	name := engine.String("Scott")
	assert.True(t, match(t, engine.KindString, OpEq, engine.String("Scott"), name))
	assert.False(t, match(t, engine.KindString, OpEq, engine.String("scott"), name))
	assert.True(t, match(t, engine.KindString, OpRegex, engine.String("^S"), name))
	assert.False(t, match(t, engine.KindString, OpRegex, engine.String("^A"), name))
	assert.True(t, match(t, engine.KindString, OpIn, engine.Array(engine.String("Bob"), engine.String("Scott")), name))
}

func TestStringInUsesAutomatonAboveThreshold(t *testing.T) {
	cfg := engine.DefaultEngineConfig().WithStringSetThreshold(2)
	op, err := NewOperator(engine.KindString, OpIn, cfg)
	require.NoError(t, err)

	fn, err := op.Compile(engine.Array(
		engine.String("ab"), engine.String("abc"), engine.String(""), engine.String("xyz"),
	))
	require.NoError(t, err)

	for target, want := range map[string]bool{
		"ab": true, "abc": true, "": true, "xyz": true,
		"a": false, "abcd": false, "zab": false, "xy": false,
	} {
		got, err := fn(engine.String(target))
		require.NoError(t, err)
		assert.Equal(t, want, got, "target %q", target)
	}
}

func TestOperatorValidation(t *testing.T) {
	cfg := engine.DefaultEngineConfig()
	tests := []struct {
		name    string
		kind    engine.Kind
		key     string
		operand engine.Value
		msg     string
	}{
		{"empty in", engine.KindLong, OpIn, engine.Array(), "non-empty array"},
		{"in not array", engine.KindLong, OpIn, engine.Long(1), "non-empty array"},
		{"range arity", engine.KindLong, OpRange, engine.Array(engine.Long(1)), "exactly two"},
		{"range order", engine.KindLong, OpRange, engine.Array(engine.Long(1001), engine.Long(1000)), "not >= first element"},
		{"version range order", engine.KindVersion, OpRange, engine.Array(engine.String("2.0"), engine.String("1.0")), "not >= first element"},
		{"bad regex", engine.KindString, OpRegex, engine.String("("), "invalid pattern"},
		{"wrong kind", engine.KindString, OpEq, engine.Long(3), "expects a string operand"},
		{"gt null", engine.KindLong, OpGt, engine.Null(), "requires a single value"},
		{"bool from string", engine.KindBool, OpEq, engine.String("true"), "expects a boolean operand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := NewOperator(tt.kind, tt.key, cfg)
			require.NoError(t, err)
			err = op.Validate(tt.operand)
			require.Error(t, err)
			fe := engine.AsError(err)
			assert.Equal(t, engine.StatusInvalid, fe.Status)
			assert.Contains(t, fe.Message, tt.msg)
			assert.Equal(t, []string{tt.key}, fe.Keys())
		})
	}
}

func TestOrderingNotDefinedForBoolAndString(t *testing.T) {
	for _, kind := range []engine.Kind{engine.KindBool, engine.KindString} {
		for _, key := range []string{OpGt, OpGe, OpLt, OpLe, OpRange} {
			_, err := NewOperator(kind, key, engine.DefaultEngineConfig())
			assert.Equal(t, engine.StatusOptionError, engine.StatusOf(err), "%s %s", kind, key)
		}
	}
	_, err := NewOperator(engine.KindLong, OpRegex, engine.DefaultEngineConfig())
	assert.Equal(t, engine.StatusOptionError, engine.StatusOf(err))
}
