package wire_test

import (
	"bytes"
	"testing"

	"github.com/go-dbus/client/wire"
)

func TestEncoderPrimitivesLittleEndian(t *testing.T) {
	buf := wire.NewBuffer(64)
	enc := wire.NewEncoder(buf, wire.LittleEndian)

	if err := enc.Uint32(12345); err != nil {
		t.Fatal(err)
	}
	if err := enc.Int32(-42); err != nil {
		t.Fatal(err)
	}
	if err := enc.String("hello"); err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0x39, 0x30, 0x00, 0x00,
		0xD6, 0xFF, 0xFF, 0xFF,
		0x05, 0x00, 0x00, 0x00,
		0x68, 0x65, 0x6C, 0x6C, 0x6F, 0x00,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded bytes = % X, want % X", buf.Bytes(), want)
	}

	buf.Flip()
	dec := wire.NewDecoder(buf, wire.LittleEndian)
	u, err := dec.Uint32()
	if err != nil || u != 12345 {
		t.Errorf("Uint32() = %d, %v, want 12345, nil", u, err)
	}
	i, err := dec.Int32()
	if err != nil || i != -42 {
		t.Errorf("Int32() = %d, %v, want -42, nil", i, err)
	}
	s, err := dec.String()
	if err != nil || s != "hello" {
		t.Errorf("String() = %q, %v, want \"hello\", nil", s, err)
	}
}

func TestStructAlignment(t *testing.T) {
	// struct(byte 1, uint32 2) at origin 0: one padding run of 3 bytes
	// after the byte field, since struct itself aligns to 8 but the
	// origin is 0 so there's no leading pad.
	buf := wire.NewBuffer(16)
	enc := wire.NewEncoder(buf, wire.LittleEndian)
	err := enc.Struct(func() error {
		if err := enc.Uint8(1); err != nil {
			return err
		}
		return enc.Uint32(2)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("struct bytes = % X, want % X", buf.Bytes(), want)
	}
}

func TestArrayBackpatch(t *testing.T) {
	buf := wire.NewBuffer(64)
	enc := wire.NewEncoder(buf, wire.LittleEndian)
	err := enc.Array(false, func() error {
		for _, v := range []uint32{1, 2, 3} {
			if err := enc.Uint32(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	buf.Flip()
	dec := wire.NewDecoder(buf, wire.LittleEndian)
	var got []uint32
	n, err := dec.Array(false, func(i int) error {
		v, err := dec.Uint32()
		got = append(got, v)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("got %v (n=%d), want [1 2 3] (n=3)", got, n)
	}
}

func TestAlignFromOrigin(t *testing.T) {
	// With Origin=3, a single byte write lands the cursor at offset 1,
	// which is 2 (mod 4) measured from Origin; a following uint32 (align 4)
	// must pad 2 bytes to land on Origin, not 3 bytes as measuring from
	// the start of the buffer would.
	buf := wire.NewBuffer(32)
	buf.Origin = 3
	enc := wire.NewEncoder(buf, wire.LittleEndian)
	if err := enc.Uint8(0xFF); err != nil {
		t.Fatal(err)
	}
	if err := enc.Uint32(0xAABBCCDD); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.Len(), 1+2+4; got != want {
		t.Errorf("buffer length = %d, want %d", got, want)
	}
}

func TestBadAlignmentDetectsNonZeroPadding(t *testing.T) {
	buf := wire.NewFixedBuffer([]byte{1, 1, 1, 1, 0, 0, 0, 0})
	dec := wire.NewDecoder(buf, wire.LittleEndian)
	if _, err := dec.Uint8(); err != nil {
		t.Fatal(err)
	}
	_, err := dec.Uint32()
	var bad wire.BadAlignment
	if err == nil {
		t.Fatal("expected BadAlignment error, got nil")
	}
	if !asBadAlignment(err, &bad) {
		t.Fatalf("expected BadAlignment, got %v", err)
	}
}

func asBadAlignment(err error, out *wire.BadAlignment) bool {
	if ba, ok := err.(wire.BadAlignment); ok {
		*out = ba
		return true
	}
	return false
}

func TestTruncatedRead(t *testing.T) {
	buf := wire.NewFixedBuffer([]byte{1, 2})
	dec := wire.NewDecoder(buf, wire.LittleEndian)
	_, err := dec.Uint32()
	if _, ok := err.(wire.TruncatedMessage); !ok {
		t.Fatalf("expected TruncatedMessage, got %v", err)
	}
}
