package dbus

import "fmt"

// A Value is a DBus-typed value, per spec.md §3 and the sum-type
// approach described in spec.md §9 design note (a). Each concrete type
// below implements exactly one DBus shape; TypeOf derives a Value's
// [Type] for marshalling and for signature inference.
type Value interface {
	isValue()
}

type (
	// Bool is a DBus boolean.
	Bool bool
	// Byte is a DBus byte (y).
	Byte uint8
	// Int16 is a DBus int16 (n).
	Int16 int16
	// Int32 is a DBus int32 (i).
	Int32 int32
	// Int64 is a DBus int64 (x).
	Int64 int64
	// Uint16 is a DBus uint16 (q).
	Uint16 uint16
	// Uint32 is a DBus uint32 (u).
	Uint32 uint32
	// Uint64 is a DBus uint64 (t). Values above math.MaxInt64 are
	// representable; Go's uint64 already covers the full unsigned range,
	// so unlike languages without a native 64-bit unsigned type this
	// needs no big-integer fallback (spec.md §4.3 "unsigned-integer
	// semantics").
	Uint64 uint64
	// Double is a DBus double (d). NaN compares equal to itself for the
	// purposes of [ValuesEqual], per spec.md §8.
	Double float64
	// Str is a DBus string (s).
	Str string
	// ObjectPathValue is a DBus object path (o).
	ObjectPathValue string
	// SignatureValue is a DBus signature (g).
	SignatureValue Signature
)

func (Bool) isValue()            {}
func (Byte) isValue()            {}
func (Int16) isValue()           {}
func (Int32) isValue()           {}
func (Int64) isValue()           {}
func (Uint16) isValue()          {}
func (Uint32) isValue()          {}
func (Uint64) isValue()          {}
func (Double) isValue()          {}
func (Str) isValue()             {}
func (ObjectPathValue) isValue() {}
func (SignatureValue) isValue()  {}

// Array is a DBus array(Elem) value: a homogeneous sequence.
type Array struct {
	Elem  Type
	Items []Value
}

func (Array) isValue() {}

// Struct is a DBus struct(...) value: a heterogeneous fixed tuple.
type Struct struct {
	Fields []Value
}

func (Struct) isValue() {}

// DictEntry is one key/value pair of a Dict. It is never marshalled on
// its own: only as an element of the array that makes up a Dict.
type DictEntry struct {
	Key   Value
	Value Value
}

// Dict is a DBus array-of-dict-entry value: the DBus encoding of a
// dictionary. Entries preserve insertion order, since the wire format has
// no canonical ordering and callers may care about write order (e.g. for
// reproducible test fixtures).
type Dict struct {
	KeyType Type
	ValType Type
	Entries []DictEntry
}

func (Dict) isValue() {}

// Variant is a DBus variant value: a value tagged with its own type at
// runtime, per spec.md §9's note on variant ergonomics.
type Variant struct {
	Type  Type
	Value Value
}

func (Variant) isValue() {}

// Tuple is the synthetic top-level sequence used when a signature (as in
// a message body) contains more than one top-level type. A Tuple is
// never nested inside another DBus container; it only appears as the
// outermost shape of a message body.
type Tuple struct {
	Values []Value
}

func (Tuple) isValue() {}

// TypeOf derives a Value's DBus Type. It is the dynamic-typing
// counterpart to [Signature.Type]: given a constructed Value tree, it
// recovers the Type that would marshal it, without requiring the caller
// to track types in parallel.
func TypeOf(v Value) Type {
	switch v := v.(type) {
	case Bool:
		return TypeBool
	case Byte:
		return TypeByte
	case Int16:
		return TypeInt16
	case Int32:
		return TypeInt32
	case Int64:
		return TypeInt64
	case Uint16:
		return TypeUint16
	case Uint32:
		return TypeUint32
	case Uint64:
		return TypeUint64
	case Double:
		return TypeDouble
	case Str:
		return TypeString
	case ObjectPathValue:
		return TypeObjectPath
	case SignatureValue:
		return TypeSignature
	case Array:
		return ArrayOf(v.Elem)
	case Struct:
		fields := make([]Type, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = TypeOf(f)
		}
		return StructOf(fields...)
	case Dict:
		return ArrayOf(DictEntryOf(v.KeyType, v.ValType))
	case Variant:
		return TypeVariant
	case Tuple:
		types := make([]Type, len(v.Values))
		for i, f := range v.Values {
			types[i] = TypeOf(f)
		}
		return TupleOf(types...)
	default:
		panic(fmt.Sprintf("dbus: unknown Value implementation %T", v))
	}
}

// ValuesEqual reports whether a and b represent the same DBus value,
// treating NaN as equal to itself (spec.md §8's round-trip tolerance
// clause for doubles) and comparing Dict entries order-independently by
// key.
func ValuesEqual(a, b Value) bool {
	switch a := a.(type) {
	case Double:
		b, ok := b.(Double)
		if !ok {
			return false
		}
		if a != a && b != b { // both NaN
			return true
		}
		return a == b
	case Array:
		b, ok := b.(Array)
		if !ok || len(a.Items) != len(b.Items) || !a.Elem.Equal(b.Elem) {
			return false
		}
		for i := range a.Items {
			if !ValuesEqual(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case Struct:
		b, ok := b.(Struct)
		if !ok || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !ValuesEqual(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	case Dict:
		b, ok := b.(Dict)
		if !ok || len(a.Entries) != len(b.Entries) {
			return false
		}
		used := make([]bool, len(b.Entries))
		for _, ae := range a.Entries {
			found := false
			for i, be := range b.Entries {
				if used[i] {
					continue
				}
				if ValuesEqual(ae.Key, be.Key) && ValuesEqual(ae.Value, be.Value) {
					used[i] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case Variant:
		b, ok := b.(Variant)
		return ok && a.Type.Equal(b.Type) && ValuesEqual(a.Value, b.Value)
	case Tuple:
		b, ok := b.(Tuple)
		if !ok || len(a.Values) != len(b.Values) {
			return false
		}
		for i := range a.Values {
			if !ValuesEqual(a.Values[i], b.Values[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
