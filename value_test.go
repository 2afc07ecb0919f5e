package dbus

import (
	"math"
	"testing"

	"github.com/go-dbus/client/wire"
)

func roundTrip(t *testing.T, typ Type, v Value) Value {
	t.Helper()
	buf := wire.NewBuffer(64)
	enc := wire.NewEncoder(buf, wire.LittleEndian)
	if err := Marshal(enc, typ, v); err != nil {
		t.Fatalf("Marshal(%v, %v): %v", typ, v, err)
	}
	buf.Flip()
	dec := wire.NewDecoder(buf, wire.LittleEndian)
	got, err := Unmarshal(dec, typ)
	if err != nil {
		t.Fatalf("Unmarshal(%v): %v", typ, err)
	}
	return got
}

func TestDictRoundTrip(t *testing.T) {
	d := Dict{
		KeyType: TypeString,
		ValType: TypeUint32,
		Entries: []DictEntry{
			{Key: Str("one"), Value: Uint32(1)},
			{Key: Str("two"), Value: Uint32(2)},
		},
	}
	got := roundTrip(t, TypeOf(d), d)
	if !ValuesEqual(d, got) {
		t.Errorf("round-tripped dict = %#v, want %#v", got, d)
	}
}

// TestDictRoundTripEmpty guards against the dict-entry array's mandatory
// pre-element alignment being written and read inconsistently: a
// zero-entry a{sv}-shaped dict has no elements to align before, but the
// array framing itself must still agree between Marshal and Unmarshal.
func TestDictRoundTripEmpty(t *testing.T) {
	d := Dict{KeyType: TypeString, ValType: TypeVariant}
	got := roundTrip(t, TypeOf(d), d)
	gotDict, ok := got.(Dict)
	if !ok {
		t.Fatalf("round-tripped value is %T, want Dict", got)
	}
	if len(gotDict.Entries) != 0 {
		t.Errorf("round-tripped dict has %d entries, want 0", len(gotDict.Entries))
	}
}

// TestArrayOfInt64RoundTrip covers an array element type whose alignment
// (8) exceeds the array length field's own alignment (4) without being a
// struct, exercising the same forced-alignment path as dict-entry and
// struct elements.
func TestArrayOfInt64RoundTrip(t *testing.T) {
	a := Array{Elem: TypeInt64, Items: []Value{Int64(1), Int64(-2), Int64(3)}}
	got := roundTrip(t, TypeOf(a), a)
	if !ValuesEqual(a, got) {
		t.Errorf("round-tripped array = %#v, want %#v", got, a)
	}
}

func TestVariantRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Variant
	}{
		{"string", Variant{Type: TypeString, Value: Str("hello")}},
		{"uint32", Variant{Type: TypeUint32, Value: Uint32(42)}},
		{"struct", Variant{Type: StructOf(TypeInt16, TypeBool), Value: Struct{Fields: []Value{Int16(-1), Bool(true)}}}},
		{"array-of-variant", Variant{
			Type:  ArrayOf(TypeVariant),
			Value: Array{Elem: TypeVariant, Items: []Value{Variant{Type: TypeByte, Value: Byte(9)}}},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := roundTrip(t, TypeVariant, tc.v)
			if !ValuesEqual(tc.v, got) {
				t.Errorf("round-tripped variant = %#v, want %#v", got, tc.v)
			}
		})
	}
}

func TestValuesEqualNaN(t *testing.T) {
	nan := Double(math.NaN())
	if !ValuesEqual(nan, nan) {
		t.Error("ValuesEqual(NaN, NaN) = false, want true")
	}
}

func TestValuesEqualDictOrderIndependent(t *testing.T) {
	a := Dict{Entries: []DictEntry{
		{Key: Str("a"), Value: Uint32(1)},
		{Key: Str("b"), Value: Uint32(2)},
	}}
	b := Dict{Entries: []DictEntry{
		{Key: Str("b"), Value: Uint32(2)},
		{Key: Str("a"), Value: Uint32(1)},
	}}
	if !ValuesEqual(a, b) {
		t.Error("ValuesEqual on dicts with same entries in different order = false, want true")
	}
}

func TestMarshalTypeMismatch(t *testing.T) {
	buf := wire.NewBuffer(16)
	enc := wire.NewEncoder(buf, wire.LittleEndian)
	err := Marshal(enc, TypeUint32, Str("wrong type"))
	if _, ok := err.(UnknownType); !ok {
		t.Fatalf("Marshal with mismatched Value type returned %v, want UnknownType", err)
	}
}
