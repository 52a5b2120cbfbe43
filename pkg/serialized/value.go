// Package serialized decodes, edits and re-encodes values written in the PHP
// serialize format. Only string leaves are ever searched or rewritten; array
// keys, property names and class names are structural and left untouched.
package serialized

// Kind tags a decoded value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindReference // r:n; or R:n;
	KindCustom    // C:len:"Class":len:{payload}
	KindEnum      // E:len:"Class:Case";
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindReference:
		return "reference"
	case KindCustom:
		return "custom"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Value is one node of a decoded tree.
//
// Scalar holds the literal text of bool, int, float and reference values as it
// appeared in the input, so re-encoding reproduces it exactly. Str holds the
// payload of strings, custom objects and enums. Class names objects and custom
// objects. Entries holds key/value pairs for arrays and objects.
type Value struct {
	Kind    Kind
	Scalar  string
	Str     string
	Class   string
	RefTag  byte
	Entries []Entry
}

// Entry is a key/value pair in an array or object.
type Entry struct {
	Key   *Value
	Value *Value
}

// String returns a string leaf.
func String(s string) *Value {
	return &Value{Kind: KindString, Str: s}
}

// Walk visits v and every value nested below it, depth first. Keys are passed
// with isKey set so callers can skip them.
func (v *Value) Walk(fn func(node *Value, isKey bool)) {
	v.walk(fn, false)
}

func (v *Value) walk(fn func(*Value, bool), isKey bool) {
	fn(v, isKey)
	for _, e := range v.Entries {
		e.Key.walk(fn, true)
		e.Value.walk(fn, false)
	}
}
