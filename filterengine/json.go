package filterengine

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ParseJSON parses text into a Value tree. Object members keep document
// order and integral numbers become Long.
func ParseJSON(text string) (Value, error) {
	if !gjson.Valid(text) {
		return Null(), errors.New("malformed JSON")
	}
	return FromJSON(gjson.Parse(text)), nil
}

// FromJSON converts a gjson result. Missing results convert to null.
func FromJSON(r gjson.Result) Value {
	switch r.Type {
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.Number:
		return numberFromRaw(r)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			items := make([]Value, 0)
			r.ForEach(func(_, v gjson.Result) bool {
				items = append(items, FromJSON(v))
				return true
			})
			return Value{kind: KindArray, arr: items}
		}
		members := make([]Member, 0)
		r.ForEach(func(k, v gjson.Result) bool {
			members = append(members, Member{Key: k.Str, Value: FromJSON(v)})
			return true
		})
		return Value{kind: KindObject, obj: members}
	}
	return Null()
}

func numberFromRaw(r gjson.Result) Value {
	raw := strings.TrimSpace(r.Raw)
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Long(i)
		}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Double(f)
	}
	return Double(r.Num)
}
