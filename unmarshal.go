package dbus

import (
	"fmt"

	"github.com/go-dbus/client/wire"
)

// Unmarshal reads a Value of type t from d. This implements the value
// codec's read half (spec.md §4.3): atomics align then read fixed-width
// bytes; an array aligns to 4, reads a uint32 byte-length, and (if its
// element alignment exceeds 4) aligns once more before the first element
// since the length field doesn't imply element alignment; arrays of
// dict-entry fold into a Dict rather than a plain sequence; variants read
// an embedded signature then a value of that type; tuples read each part
// in turn with no leading alignment of their own.
func Unmarshal(d *wire.Decoder, t Type) (Value, error) {
	switch t.Kind {
	case KindBool:
		v, err := d.Bool()
		return Bool(v), err
	case KindByte:
		v, err := d.Uint8()
		return Byte(v), err
	case KindInt16:
		v, err := d.Int16()
		return Int16(v), err
	case KindInt32:
		v, err := d.Int32()
		return Int32(v), err
	case KindInt64:
		v, err := d.Int64()
		return Int64(v), err
	case KindUint16:
		v, err := d.Uint16()
		return Uint16(v), err
	case KindUint32:
		v, err := d.Uint32()
		return Uint32(v), err
	case KindUint64:
		v, err := d.Uint64()
		return Uint64(v), err
	case KindDouble:
		v, err := d.Float64()
		return Double(v), err
	case KindString:
		v, err := d.String()
		return Str(v), err
	case KindObjectPath:
		v, err := d.String()
		return ObjectPathValue(v), err
	case KindSignature:
		sig, err := UnmarshalSignature(d)
		return SignatureValue(sig), err
	case KindArray:
		return unmarshalArray(d, t)
	case KindStruct:
		return unmarshalStruct(d, t)
	case KindVariant:
		return unmarshalVariant(d)
	case KindTuple:
		return unmarshalTuple(d, t)
	default:
		return nil, fmt.Errorf("dbus: cannot unmarshal unknown type %s", t)
	}
}

func unmarshalArray(d *wire.Decoder, t Type) (Value, error) {
	if t.Elem.Kind == KindDictEntry {
		ret := Dict{KeyType: *t.Elem.Key, ValType: *t.Elem.Val}
		_, err := d.Array(true, func(int) error {
			var entry DictEntry
			err := d.DictEntry(
				func() error {
					k, err := Unmarshal(d, *t.Elem.Key)
					entry.Key = k
					return err
				},
				func() error {
					v, err := Unmarshal(d, *t.Elem.Val)
					entry.Value = v
					return err
				},
			)
			if err != nil {
				return err
			}
			ret.Entries = append(ret.Entries, entry)
			return nil
		})
		return ret, err
	}

	ret := Array{Elem: *t.Elem}
	_, err := d.Array(t.Elem.Align() > 4, func(int) error {
		v, err := Unmarshal(d, *t.Elem)
		if err != nil {
			return err
		}
		ret.Items = append(ret.Items, v)
		return nil
	})
	return ret, err
}

func unmarshalStruct(d *wire.Decoder, t Type) (Value, error) {
	ret := Struct{Fields: make([]Value, len(t.Fields))}
	err := d.Struct(func() error {
		for i, ft := range t.Fields {
			v, err := Unmarshal(d, ft)
			if err != nil {
				return err
			}
			ret.Fields[i] = v
		}
		return nil
	})
	return ret, err
}

func unmarshalVariant(d *wire.Decoder) (Value, error) {
	sigStr, err := d.Variant()
	if err != nil {
		return nil, fmt.Errorf("reading variant signature: %w", err)
	}
	sig, err := ParseSignature(sigStr)
	if err != nil {
		return nil, fmt.Errorf("parsing variant signature %q: %w", sigStr, err)
	}
	if !sig.IsSingle() && !sig.IsZero() {
		return nil, fmt.Errorf("variant signature %q is not a single complete type", sigStr)
	}
	inner := sig.Type()
	v, err := Unmarshal(d, inner)
	if err != nil {
		return nil, fmt.Errorf("reading variant value (signature %q): %w", sigStr, err)
	}
	return Variant{Type: inner, Value: v}, nil
}

func unmarshalTuple(d *wire.Decoder, t Type) (Value, error) {
	values := make([]Value, len(t.Fields))
	for i, ft := range t.Fields {
		v, err := Unmarshal(d, ft)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return Tuple{Values: values}, nil
}
