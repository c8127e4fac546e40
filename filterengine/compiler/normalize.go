package compiler

import (
	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/matcher"
)

// Normalize parses filter text and rewrites shorthand members into operator
// form: {"k": v} becomes {"k": {"$eq": v}} for scalar or null v. Keys that
// start with the operator sigil are left as they are.
func Normalize(text string) (engine.Value, error) {
	v, err := engine.ParseJSON(text)
	if err != nil {
		return engine.Null(), engine.Invalidf("", "filter is not valid JSON").WithCause(err)
	}
	if k := v.Kind(); k != engine.KindObject && k != engine.KindArray {
		return engine.Null(), engine.Invalidf("", "filter root must be an object or an array, got %s", k)
	}
	return normalizeValue(v), nil
}

// NormalizeString is Normalize rendered back to canonical JSON.
func NormalizeString(text string) (string, error) {
	v, err := Normalize(text)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func normalizeValue(v engine.Value) engine.Value {
	switch v.Kind() {
	case engine.KindArray:
		items := make([]engine.Value, 0, v.Len())
		for _, it := range v.Items() {
			items = append(items, normalizeValue(it))
		}
		return engine.Array(items...)
	case engine.KindObject:
		members := make([]engine.Member, 0, v.Len())
		for _, m := range v.Members() {
			val := m.Value
			switch {
			case engine.IsOperatorKey(m.Key), val.Kind() == engine.KindArray, val.Kind() == engine.KindObject:
				val = normalizeValue(val)
			default:
				val = engine.Object(engine.Member{Key: matcher.OpEq, Value: val})
			}
			members = append(members, engine.Member{Key: m.Key, Value: val})
		}
		return engine.Object(members...)
	}
	return v
}
