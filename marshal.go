package dbus

import (
	"fmt"

	"github.com/go-dbus/client/wire"
)

// UnknownType is returned when a caller attempts to marshal a Value
// whose dynamic type doesn't match the Type it was asked to marshal
// against.
type UnknownType struct {
	Type  Type
	Value Value
}

func (e UnknownType) Error() string {
	return fmt.Sprintf("cannot marshal %T as DBus type %s", e.Value, e.Type)
}

// Marshal writes v, which must be of type t, to e. This implements the
// value codec's write half (spec.md §4.3): atomics align then write
// fixed-width bytes; arrays write a placeholder length, backpatched
// after all elements, with a forced 8-byte pre-element align whenever
// the element type's own alignment exceeds 4 (structs, dict-entries,
// int64/uint64/double) since the length field alone doesn't imply that
// alignment (and dict-entry arrays fold a Dict's entries the same way);
// structs align to 8 then write fields in order; variants write a
// signature followed by the value; tuples write each part with no
// leading alignment of their own.
func Marshal(e *wire.Encoder, t Type, v Value) error {
	switch t.Kind {
	case KindBool:
		b, ok := v.(Bool)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Bool(bool(b))
	case KindByte:
		b, ok := v.(Byte)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Uint8(uint8(b))
	case KindInt16:
		b, ok := v.(Int16)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Int16(int16(b))
	case KindInt32:
		b, ok := v.(Int32)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Int32(int32(b))
	case KindInt64:
		b, ok := v.(Int64)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Int64(int64(b))
	case KindUint16:
		b, ok := v.(Uint16)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Uint16(uint16(b))
	case KindUint32:
		b, ok := v.(Uint32)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Uint32(uint32(b))
	case KindUint64:
		b, ok := v.(Uint64)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Uint64(uint64(b))
	case KindDouble:
		b, ok := v.(Double)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Float64(float64(b))
	case KindString:
		b, ok := v.(Str)
		if !ok {
			return UnknownType{t, v}
		}
		return e.String(string(b))
	case KindObjectPath:
		b, ok := v.(ObjectPathValue)
		if !ok {
			return UnknownType{t, v}
		}
		return e.String(string(b))
	case KindSignature:
		b, ok := v.(SignatureValue)
		if !ok {
			return UnknownType{t, v}
		}
		return e.SignatureString(Signature(b).String())
	case KindArray:
		return marshalArray(e, t, v)
	case KindStruct:
		return marshalStruct(e, t, v)
	case KindVariant:
		vv, ok := v.(Variant)
		if !ok {
			return UnknownType{t, v}
		}
		if err := e.Variant(vv.Type.String()); err != nil {
			return err
		}
		return Marshal(e, vv.Type, vv.Value)
	case KindTuple:
		return marshalTuple(e, t, v)
	default:
		return UnknownType{t, v}
	}
}

func marshalArray(e *wire.Encoder, t Type, v Value) error {
	if t.Elem.Kind == KindDictEntry {
		d, ok := v.(Dict)
		if !ok {
			return UnknownType{t, v}
		}
		return e.Array(true, func() error {
			for _, ent := range d.Entries {
				if err := e.DictEntry(
					func() error { return Marshal(e, *t.Elem.Key, ent.Key) },
					func() error { return Marshal(e, *t.Elem.Val, ent.Value) },
				); err != nil {
					return err
				}
			}
			return nil
		})
	}

	a, ok := v.(Array)
	if !ok {
		return UnknownType{t, v}
	}
	return e.Array(t.Elem.Align() > 4, func() error {
		for _, item := range a.Items {
			if err := Marshal(e, *t.Elem, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func marshalStruct(e *wire.Encoder, t Type, v Value) error {
	s, ok := v.(Struct)
	if !ok {
		return UnknownType{t, v}
	}
	if len(s.Fields) != len(t.Fields) {
		return fmt.Errorf("dbus: struct value has %d fields, type %s wants %d", len(s.Fields), t, len(t.Fields))
	}
	return e.Struct(func() error {
		for i, ft := range t.Fields {
			if err := Marshal(e, ft, s.Fields[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func marshalTuple(e *wire.Encoder, t Type, v Value) error {
	tup, ok := v.(Tuple)
	if !ok {
		// A single-element tuple collapses to its bare element type
		// (spec.md §4.2), so a caller marshalling a top-level signature
		// with one part may pass the bare Value directly.
		if len(t.Fields) <= 1 {
			parts := t.Fields
			if len(parts) == 0 {
				return nil
			}
			return Marshal(e, parts[0], v)
		}
		return UnknownType{t, v}
	}
	if len(tup.Values) != len(t.Fields) {
		return fmt.Errorf("dbus: tuple value has %d parts, type %s wants %d", len(tup.Values), t, len(t.Fields))
	}
	for i, ft := range t.Fields {
		if err := Marshal(e, ft, tup.Values[i]); err != nil {
			return err
		}
	}
	return nil
}
