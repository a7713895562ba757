// Package types defines Sisp's closed type lattice: four primitive types,
// no subtyping, no inference.
package types

// Type is one of the four Sisp types. There is no subtyping and no type
// inference: every value's type is known from a declaration.
type Type int

const (
	Invalid Type = iota
	Int64
	Float64
	Bool
	Void
)

func (t Type) String() string {
	switch t {
	case Int64:
		return "int"
	case Float64:
		return "float"
	case Bool:
		return "bool"
	case Void:
		return "void"
	default:
		return "<invalid type>"
	}
}

// FromName maps the parser's type keywords to a Type, or (Invalid, false)
// if name names no Sisp type.
func FromName(name string) (Type, bool) {
	switch name {
	case "int":
		return Int64, true
	case "float":
		return Float64, true
	case "bool":
		return Bool, true
	case "void":
		return Void, true
	default:
		return Invalid, false
	}
}

// IsNumeric reports whether t supports +, -, *, <, >.
func IsNumeric(t Type) bool {
	return t == Int64 || t == Float64
}
