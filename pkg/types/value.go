package types

import "fmt"

// ValueKind identifies the concrete type held by a Value.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindString
)

// String returns a human-readable name for the kind.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is one resolved option value. It holds either a boolean or a
// string; templates only ever see the stringified form.
type Value struct {
	kind ValueKind
	b    bool
	s    string
}

// BoolValue creates a boolean Value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// StringValue creates a string Value.
func StringValue(s string) Value {
	return Value{kind: KindString, s: s}
}

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Bool returns the boolean payload. It is false for string values.
func (v Value) Bool() bool {
	return v.kind == KindBool && v.b
}

// Str returns the string payload. It is empty for boolean values.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// String renders the value the way it appears in templates: "true" or
// "false" for booleans, the raw string otherwise.
func (v Value) String() string {
	if v.kind == KindBool {
		if v.b {
			return "true"
		}
		return "false"
	}
	return v.s
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindBool {
		return v.b == o.b
	}
	return v.s == o.s
}

// Values is a resolved configuration: the final mapping of option names
// to concrete values for one generation run. Options whose activation
// condition evaluated false are absent from the map.
type Values map[string]Value

// Lookup returns the value for name and whether it is present.
func (vs Values) Lookup(name string) (Value, bool) {
	v, ok := vs[name]
	return v, ok
}

// Clone returns an independent copy of the mapping.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}
