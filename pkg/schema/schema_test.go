package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/pkg/resultcache"
	"github.com/PhucNguyen204/scenefilter/pkg/service"
)

const players = `
name: players
id_path: profile.name
fields:
  - key: pid
    label: Player ID
    type: long
    path: profile.id
    cache: true
  - key: userName
    type: string
    path: profile.name
  - key: gameVersion
    type: version
    path: client.version
  - key: score
    type: double
  - key: online
    type: bool
`

const scottJSON = `{"profile": {"id": 1000, "name": "Scott"}, "client": {"version": "1.0.1"}, "score": 12, "online": true, "region": "eu-west"}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(players))
	require.NoError(t, err)
	assert.Equal(t, "players", s.Name)
	assert.Equal(t, "profile.name", s.IDPath)
	require.Len(t, s.Fields, 5)
	assert.Equal(t, FieldSpec{Key: "pid", Label: "Player ID", Type: "long", Path: "profile.id", Cache: true}, s.Fields[0])
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"no fields":    "name: empty\n",
		"missing key":  "fields:\n  - type: long\n",
		"bad type":     "fields:\n  - key: pid\n    type: uuid\n",
		"duplicate":    "fields:\n  - key: pid\n    type: long\n  - key: pid\n    type: string\n",
		"invalid yaml": "fields: [",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(text))
			assert.Error(t, err)
		})
	}
}

func TestCombine(t *testing.T) {
	a := &Schema{Name: "a", IDPath: "id", Fields: []FieldSpec{{Key: "pid", Type: "long"}}}
	b := &Schema{Name: "b", Fields: []FieldSpec{{Key: "userName", Type: "string"}}}

	out, err := Combine(a, b)
	require.NoError(t, err)
	assert.Equal(t, "id", out.IDPath)
	assert.Len(t, out.Fields, 2)

	_, err = Combine(a, &Schema{Name: "c", Fields: []FieldSpec{{Key: "pid", Type: "double"}}})
	assert.ErrorContains(t, err, "field pid is declared by schema")

	_, err = Combine(a, &Schema{Name: "d", IDPath: "uuid", Fields: []FieldSpec{{Key: "x", Type: "bool"}}})
	assert.ErrorContains(t, err, "conflicts")
}

func TestDocument(t *testing.T) {
	s, err := Parse([]byte(players))
	require.NoError(t, err)

	d, err := s.Document([]byte(scottJSON))
	require.NoError(t, err)
	assert.Equal(t, "Scott", d.ID)
	assert.Equal(t, "Scott", Identity(d))

	_, err = s.Document([]byte(`{"profile":`))
	assert.Error(t, err)
}

func TestSceneFieldValues(t *testing.T) {
	s, err := Parse([]byte(players))
	require.NoError(t, err)
	fields, err := s.SceneFields(nil)
	require.NoError(t, err)
	d, err := s.Document([]byte(scottJSON))
	require.NoError(t, err)

	ctx := context.Background()
	want := map[string]string{
		"pid":         "1000",
		"userName":    `"Scott"`,
		"gameVersion": `"1.0.1"`,
		"score":       "12.0",
		"online":      "true",
	}
	for i := range fields {
		f := &fields[i]
		assert.Nil(t, f.Cache, f.Key)
		v, err := f.Value(ctx, d)
		require.NoError(t, err, f.Key)
		assert.Equal(t, want[f.Key], v.String(), f.Key)
	}

	empty, err := s.Document([]byte(`{"profile": {"id": "abc"}}`))
	require.NoError(t, err)
	v, err := fields[2].Value(ctx, empty)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	_, err = fields[0].Value(ctx, empty)
	assert.ErrorContains(t, err, "returned a string value, declared long")
}

func TestServiceOverSchema(t *testing.T) {
	s, err := Parse([]byte(players))
	require.NoError(t, err)
	cache := resultcache.NewMemory()
	fields, err := s.SceneFields(cache)
	require.NoError(t, err)

	svc, err := service.New(fields,
		service.WithIdentity(Identity),
		service.WithDocument[Document](Raw),
		service.WithConfig[Document](engine.DefaultEngineConfig().WithAsyncCacheWrites(false)),
	)
	require.NoError(t, err)

	d, err := s.Document([]byte(scottJSON))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		text   string
		status engine.Status
	}{
		{`{"pid": {"$in": [1000, 1001]}}`, engine.StatusOk},
		{`{"$and": [{"userName": "Scott"}, {"gameVersion": {"$ge": "1.0"}}]}`, engine.StatusOk},
		{`{"score": {"$range": [10, 20]}}`, engine.StatusOk},
		{`{"online": false}`, engine.StatusNotMatched},
		{`{"$.region": {"$regex": "^eu-"}}`, engine.StatusOk},
		{`{"region": ["us-east", "eu-west"]}`, engine.StatusOk},
	}
	for _, tt := range tests {
		res := svc.Match(ctx, tt.text, d)
		assert.Equal(t, tt.status, res.Status, "%s: %v", tt.text, res.Err())
	}
	assert.Equal(t, 1, cache.Len())
}
