// Package schema declares scene filters over raw JSON documents in YAML, so a
// filter service can run without compiled-in getters.
//
//	name: players
//	id_path: profile.id
//	fields:
//	  - key: pid
//	    label: Player ID
//	    type: long
//	    path: profile.id
//	    cache: true
package schema

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/scene"
)

// Document is a JSON target. ID names it for result caches.
type Document struct {
	ID  string
	Raw []byte
}

type FieldSpec struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
	Type  string `yaml:"type" json:"type"`

	// gjson path into the document, the key when empty
	Path  string `yaml:"path" json:"path"`
	Cache bool   `yaml:"cache" json:"cache"`
}

type Schema struct {
	Name   string      `yaml:"name" json:"name"`
	IDPath string      `yaml:"id_path" json:"id_path"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

func Parse(b []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, "parse schema")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func Load(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", path)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return s, nil
}

func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return errors.Errorf("schema %q declares no fields", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Key == "" {
			return errors.Errorf("schema %q field %d has no key", s.Name, i)
		}
		if _, err := engine.ParseKind(f.Type); err != nil {
			return errors.Wrapf(err, "schema %q field %s", s.Name, f.Key)
		}
		if _, dup := seen[f.Key]; dup {
			return errors.Errorf("schema %q declares field %s twice", s.Name, f.Key)
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

// Combine merges schemas into one. Field keys must be unique across all of
// them and at most one distinct id_path may be declared.
func Combine(schemas ...*Schema) (*Schema, error) {
	out := &Schema{Name: "combined"}
	owner := make(map[string]string)
	for _, s := range schemas {
		if s.IDPath != "" {
			if out.IDPath != "" && out.IDPath != s.IDPath {
				return nil, errors.Errorf("schema %q id_path %s conflicts with %s", s.Name, s.IDPath, out.IDPath)
			}
			out.IDPath = s.IDPath
		}
		for _, f := range s.Fields {
			if prev, dup := owner[f.Key]; dup {
				return nil, errors.Errorf("field %s is declared by schema %q and %q", f.Key, prev, s.Name)
			}
			owner[f.Key] = s.Name
			out.Fields = append(out.Fields, f)
		}
	}
	if len(schemas) == 1 {
		out.Name = schemas[0].Name
	}
	return out, out.Validate()
}

// Document wraps raw JSON, reading its ID from id_path.
func (s *Schema) Document(raw []byte) (Document, error) {
	if !gjson.ValidBytes(raw) {
		return Document{}, errors.New("document is not valid JSON")
	}
	d := Document{Raw: raw}
	if s.IDPath != "" {
		d.ID = gjson.GetBytes(raw, s.IDPath).String()
	}
	return d, nil
}

// SceneFields builds one scene filter per declared field. Fields marked for
// caching share cache; with a nil cache nothing is cached.
func (s *Schema) SceneFields(cache engine.ResultCache) ([]scene.Field[Document], error) {
	out := make([]scene.Field[Document], 0, len(s.Fields))
	for _, def := range s.Fields {
		kind, err := engine.ParseKind(def.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", def.Key)
		}
		path := def.Path
		if path == "" {
			path = def.Key
		}
		f := scene.Field[Document]{
			Key:   def.Key,
			Label: def.Label,
			Kind:  kind,
			Get:   getter(kind, path),
		}
		if def.Cache {
			f.Cache = cache
		}
		out = append(out, f)
	}
	return out, nil
}

func getter(kind engine.Kind, path string) func(context.Context, Document) (engine.Value, error) {
	return func(_ context.Context, d Document) (engine.Value, error) {
		res := gjson.GetBytes(d.Raw, path)
		if !res.Exists() || res.Type == gjson.Null {
			return engine.Null(), engine.ErrNullValue
		}
		v := engine.FromJSON(res)
		switch {
		case kind == engine.KindVersion && v.Kind() == engine.KindString:
			return engine.ParseVersion(res.Str)
		case kind == engine.KindDouble && v.Kind() == engine.KindLong:
			return engine.Double(res.Float()), nil
		case kind == engine.KindString && v.Kind().IsScalar() && v.Kind() != engine.KindString:
			return engine.String(res.Raw), nil
		}
		return v, nil
	}
}

// Identity names documents for result cache keys.
func Identity(d Document) string { return d.ID }

// Raw exposes the document to path-addressed leaves.
func Raw(_ context.Context, d Document) ([]byte, error) { return d.Raw, nil }
