package filterengine

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

// Kind identifies the payload carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindLong
	KindDouble
	KindString
	KindVersion
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindVersion:
		return "version"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsScalar reports whether k can be the declared kind of a scene filter.
func (k Kind) IsScalar() bool {
	switch k {
	case KindBool, KindLong, KindDouble, KindString, KindVersion:
		return true
	}
	return false
}

// IsNumeric is true for Long and Double.
func (k Kind) IsNumeric() bool { return k == KindLong || k == KindDouble }

// ParseKind maps a schema type name onto a scalar kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return KindBool, nil
	case "long", "int", "int64", "integer":
		return KindLong, nil
	case "double", "float", "float64", "number":
		return KindDouble, nil
	case "string":
		return KindString, nil
	case "version":
		return KindVersion, nil
	}
	return KindNull, errors.Errorf("unknown field type %q", name)
}

// Member is one entry of an object value. Objects keep document order.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable tagged filter value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	ver  *version.Version
	arr  []Value
	obj  []Member
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Long(i int64) Value { return Value{kind: KindLong, i: i} }
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value(nil), items...)}
}
func Object(members ...Member) Value {
	return Value{kind: KindObject, obj: append([]Member(nil), members...)}
}

// Version wraps a parsed version. A nil version is null.
func Version(v *version.Version) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindVersion, ver: v}
}

// ParseVersion accepts dotted numeric versions only ("1", "1.0.1").
func ParseVersion(s string) (Value, error) {
	if !isDottedNumeric(s) {
		return Null(), errors.Errorf("version %q is not a dotted numeric version", s)
	}
	v, err := version.NewVersion(s)
	if err != nil {
		return Null(), errors.Wrapf(err, "parse version %q", s)
	}
	return Version(v), nil
}

func isDottedNumeric(s string) bool {
	if s == "" || s[0] == '.' || s[len(s)-1] == '.' {
		return false
	}
	prevDot := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if prevDot {
				return false
			}
			prevDot = true
		case c >= '0' && c <= '9':
			prevDot = false
		default:
			return false
		}
	}
	return true
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsLong() (int64, bool) { return v.i, v.kind == KindLong }
func (v Value) AsDouble() (float64, bool) { return v.f, v.kind == KindDouble }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsVersion() (*version.Version, bool) {
	return v.ver, v.kind == KindVersion
}

// Number widens Long and Double payloads to float64.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindLong:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	}
	return 0, false
}

// Items returns the elements of an array value.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Members returns the entries of an object value in document order.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Get returns the first member named key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Null(), false
}

// Len is the element count of arrays and objects, zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	}
	return 0
}

// Equal compares structurally. Long and Double are equal when they hold the
// same number.
func (v Value) Equal(o Value) bool {
	if v.kind.IsNumeric() && o.kind.IsNumeric() {
		c, ok := compareNumeric(v, o)
		return ok && c == 0
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindVersion:
		return v.ver.Equal(o.ver)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for i := range v.obj {
			if v.obj[i].Key != o.obj[i].Key || !v.obj[i].Value.Equal(o.obj[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders numbers (Long and Double mixed), strings and versions.
// The second result is false when the pair has no ordering.
func (v Value) Compare(o Value) (int, bool) {
	switch {
	case v.kind.IsNumeric() && o.kind.IsNumeric():
		return compareNumeric(v, o)
	case v.kind == KindString && o.kind == KindString:
		return strings.Compare(v.s, o.s), true
	case v.kind == KindVersion && o.kind == KindVersion:
		return v.ver.Compare(o.ver), true
	}
	return 0, false
}

func compareNumeric(a, b Value) (int, bool) {
	switch {
	case a.kind == KindLong && b.kind == KindLong:
		return cmpInt(a.i, b.i), true
	case a.kind == KindLong:
		if i, ok := exactInt(b.f); ok {
			return cmpInt(a.i, i), true
		}
		return cmpFloat(float64(a.i), b.f)
	case b.kind == KindLong:
		if i, ok := exactInt(a.f); ok {
			return cmpInt(i, b.i), true
		}
		return cmpFloat(a.f, float64(b.i))
	}
	return cmpFloat(a.f, b.f)
}

func exactInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) (int, bool) {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return 0, false
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

// Key is a kind-qualified rendering used to address result cache entries.
func (v Value) Key() string { return v.kind.String() + ":" + v.String() }

// String renders v as canonical JSON.
func (v Value) String() string { return string(v.appendJSON(nil)) }

func (v Value) MarshalJSON() ([]byte, error) { return v.appendJSON(nil), nil }

func (v Value) appendJSON(buf []byte) []byte {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(buf, v.b)
	case KindLong:
		return strconv.AppendInt(buf, v.i, 10)
	case KindDouble:
		return appendDouble(buf, v.f)
	case KindString:
		return appendQuoted(buf, v.s)
	case KindVersion:
		return appendQuoted(buf, v.ver.Original())
	case KindArray:
		buf = append(buf, '[')
		for i, item := range v.arr {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = item.appendJSON(buf)
		}
		return append(buf, ']')
	case KindObject:
		buf = append(buf, '{')
		for i, m := range v.obj {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendQuoted(buf, m.Key)
			buf = append(buf, ':')
			buf = m.Value.appendJSON(buf)
		}
		return append(buf, '}')
	}
	return append(buf, "null"...)
}

func appendDouble(buf []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return appendQuoted(buf, strconv.FormatFloat(f, 'g', -1, 64))
	}
	start := len(buf)
	buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
	if !strings.ContainsAny(string(buf[start:]), ".eE") {
		buf = append(buf, ".0"...)
	}
	return buf
}

func appendQuoted(buf []byte, s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, b...)
}
