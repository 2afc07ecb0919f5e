package dbus

import (
	"fmt"
	"strings"
)

// Kind discriminates the shape of a Type.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindByte
	KindInt16
	KindInt32
	KindInt64
	KindUint16
	KindUint32
	KindUint64
	KindDouble
	KindString
	KindObjectPath
	KindSignature
	KindArray
	KindVariant
	KindStruct
	KindDictEntry
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindObjectPath:
		return "object-path"
	case KindSignature:
		return "signature"
	case KindArray:
		return "array"
	case KindVariant:
		return "variant"
	case KindStruct:
		return "struct"
	case KindDictEntry:
		return "dict-entry"
	case KindTuple:
		return "tuple"
	default:
		return "invalid"
	}
}

// A Type describes the shape of a DBus value, per spec.md §3: an atomic
// tag, array(Type), variant, struct(Type...), dict-entry(Key,Val), or the
// synthetic top-level tuple(Type...) used for multi-value message bodies.
//
// Type is a value type: the zero Type is KindInvalid. Because Type holds
// a slice field it is not comparable with ==; compare Types with
// [Type.Equal].
type Type struct {
	Kind Kind

	// Elem is the element type, for KindArray.
	Elem *Type
	// Fields is the ordered field list, for KindStruct and KindTuple.
	Fields []Type
	// Key and Val are the key/value types, for KindDictEntry.
	Key *Type
	Val *Type
}

var (
	TypeBool       = Type{Kind: KindBool}
	TypeByte       = Type{Kind: KindByte}
	TypeInt16      = Type{Kind: KindInt16}
	TypeInt32      = Type{Kind: KindInt32}
	TypeInt64      = Type{Kind: KindInt64}
	TypeUint16     = Type{Kind: KindUint16}
	TypeUint32     = Type{Kind: KindUint32}
	TypeUint64     = Type{Kind: KindUint64}
	TypeDouble     = Type{Kind: KindDouble}
	TypeString     = Type{Kind: KindString}
	TypeObjectPath = Type{Kind: KindObjectPath}
	TypeSignature  = Type{Kind: KindSignature}
	TypeVariant    = Type{Kind: KindVariant}
	// TypeUnit is the zero-element tuple: the type of a signature with no
	// top-level types in it.
	TypeUnit = Type{Kind: KindTuple}
)

// ArrayOf returns array(elem).
func ArrayOf(elem Type) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e}
}

// StructOf returns struct(fields...). Panics if fields is empty: DBus
// structs must have at least one field.
func StructOf(fields ...Type) Type {
	if len(fields) == 0 {
		panic("dbus: StructOf requires at least one field")
	}
	return Type{Kind: KindStruct, Fields: fields}
}

// DictEntryOf returns dict-entry(key,val). Only valid as the Elem of an
// ArrayOf.
func DictEntryOf(key, val Type) Type {
	k, v := key, val
	return Type{Kind: KindDictEntry, Key: &k, Val: &v}
}

// TupleOf returns the synthetic top-level tuple(parts...). A single-part
// tuple is equivalent to that part alone; callers normally get a Tuple
// from [ParseSignature], which already applies that collapsing rule.
func TupleOf(parts ...Type) Type {
	switch len(parts) {
	case 0:
		return TypeUnit
	case 1:
		return parts[0]
	default:
		return Type{Kind: KindTuple, Fields: parts}
	}
}

// IsBasic reports whether t is a fixed atomic type or string-like type
// valid as a dict-entry key or array element alignment decision.
func (t Type) IsBasic() bool {
	switch t.Kind {
	case KindBool, KindByte, KindInt16, KindInt32, KindInt64,
		KindUint16, KindUint32, KindUint64, KindDouble,
		KindString, KindObjectPath, KindSignature:
		return true
	default:
		return false
	}
}

// Align returns the DBus alignment, in bytes, required before a value of
// this type. Per spec.md §3: y,g,v=1; n,q=2; b,i,u,s,o,a=4; x,t,d,(,{=8.
func (t Type) Align() int {
	switch t.Kind {
	case KindByte, KindSignature, KindVariant:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindBool, KindInt32, KindUint32, KindString, KindObjectPath, KindArray:
		return 4
	case KindInt64, KindUint64, KindDouble, KindStruct, KindDictEntry:
		return 8
	case KindTuple:
		// Tuples are a synthetic wrapper around top-level message parts;
		// they aren't themselves aligned, only their constituent parts
		// are, each against the message origin.
		return 1
	default:
		return 1
	}
}

// Equal reports whether t and o describe the same DBus type.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Equal(*o.Elem)
	case KindDictEntry:
		return t.Key.Equal(*o.Key) && t.Val.Equal(*o.Val)
	case KindStruct, KindTuple:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders t back to its DBus signature string. It is the inverse
// of ParseSignature/parseOneType, per spec.md §4.2.
func (t Type) String() string {
	var sb strings.Builder
	t.render(&sb)
	return sb.String()
}

func (t Type) render(sb *strings.Builder) {
	switch t.Kind {
	case KindBool:
		sb.WriteByte('b')
	case KindByte:
		sb.WriteByte('y')
	case KindInt16:
		sb.WriteByte('n')
	case KindUint16:
		sb.WriteByte('q')
	case KindInt32:
		sb.WriteByte('i')
	case KindUint32:
		sb.WriteByte('u')
	case KindInt64:
		sb.WriteByte('x')
	case KindUint64:
		sb.WriteByte('t')
	case KindDouble:
		sb.WriteByte('d')
	case KindString:
		sb.WriteByte('s')
	case KindObjectPath:
		sb.WriteByte('o')
	case KindSignature:
		sb.WriteByte('g')
	case KindVariant:
		sb.WriteByte('v')
	case KindArray:
		sb.WriteByte('a')
		t.Elem.render(sb)
	case KindStruct:
		sb.WriteByte('(')
		for _, f := range t.Fields {
			f.render(sb)
		}
		sb.WriteByte(')')
	case KindDictEntry:
		sb.WriteByte('{')
		t.Key.render(sb)
		t.Val.render(sb)
		sb.WriteByte('}')
	case KindTuple:
		for _, f := range t.Fields {
			f.render(sb)
		}
	default:
		panic(fmt.Sprintf("dbus: cannot render invalid type %#v", t))
	}
}
