package matcher

import (
	engine "github.com/PhucNguyen204/scenefilter/filterengine"
)

// coerceOperand resolves the runtime kind of a raw operand through the
// declared field kind. JSON numbers do not tell Long from Double and JSON
// strings do not tell String from Version. Arrays are coerced element-wise.
func coerceOperand(kind engine.Kind, key string, v engine.Value) (engine.Value, error) {
	switch v.Kind() {
	case engine.KindNull:
		return v, nil
	case engine.KindArray:
		items := make([]engine.Value, 0, v.Len())
		for _, item := range v.Items() {
			c, err := coerceOperand(kind, key, item)
			if err != nil {
				return engine.Null(), err
			}
			items = append(items, c)
		}
		return engine.Array(items...), nil
	case engine.KindObject:
		return engine.Null(), engine.Invalidf(key, "operator %s does not accept an object operand", key)
	}

	switch kind {
	case engine.KindBool:
		if v.Kind() == engine.KindBool {
			return v, nil
		}
	case engine.KindLong:
		if v.Kind().IsNumeric() {
			return v, nil
		}
	case engine.KindDouble:
		if n, ok := v.Number(); ok {
			return engine.Double(n), nil
		}
	case engine.KindString:
		if v.Kind() == engine.KindString {
			return v, nil
		}
	case engine.KindVersion:
		switch v.Kind() {
		case engine.KindVersion:
			return v, nil
		case engine.KindString:
			s, _ := v.AsString()
			ver, err := engine.ParseVersion(s)
			if err != nil {
				return engine.Null(), engine.Invalidf(key, "operator %s: %v", key, err)
			}
			return ver, nil
		}
	}
	return engine.Null(), engine.Invalidf(key, "operator %s expects a %s operand, got %s %s", key, kind, v.Kind(), v)
}
