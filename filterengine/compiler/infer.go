package compiler

import (
	"github.com/pkg/errors"

	engine "github.com/PhucNguyen204/scenefilter/filterengine"
	"github.com/PhucNguyen204/scenefilter/filterengine/matcher"
)

// inferKind picks the operand kind of a path-addressed leaf from its JSON
// literal. Long and Double mix to Double; other mixes are rejected.
func inferKind(opKey string, operand engine.Value) (engine.Kind, error) {
	if opKey == matcher.OpRegex {
		return engine.KindString, nil
	}
	values := []engine.Value{operand}
	if operand.Kind() == engine.KindArray {
		values = operand.Items()
	}

	kind := engine.KindNull
	for _, v := range values {
		k := v.Kind()
		switch {
		case k == engine.KindNull:
			continue
		case !k.IsScalar():
			return engine.KindNull, errors.Errorf("%s operand cannot contain %s values", opKey, k)
		case kind == engine.KindNull:
			kind = k
		case kind == k:
		case kind.IsNumeric() && k.IsNumeric():
			kind = engine.KindDouble
		default:
			return engine.KindNull, errors.Errorf("%s operand mixes %s and %s values", opKey, kind, k)
		}
	}
	if kind == engine.KindNull {
		kind = engine.KindString
	}
	return kind, nil
}
