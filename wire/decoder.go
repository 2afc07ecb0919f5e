package wire

import (
	"fmt"
	"math"
)

// A Decoder reads DBus primitives from a Buffer, consuming (and
// validating) padding as needed. All multi-byte values are interpreted
// in Order.
type Decoder struct {
	Order ByteOrder
	Buf   *Buffer
}

// NewDecoder returns a Decoder reading from buf (which must already be in
// read mode, i.e. Flip'd or constructed with NewFixedBuffer).
func NewDecoder(buf *Buffer, order ByteOrder) *Decoder {
	return &Decoder{Order: order, Buf: buf}
}

// ByteOrderFlag reads the message's order-mark byte and sets d.Order to
// match it.
func (d *Decoder) ByteOrderFlag() error {
	b, err := d.Buf.ReadByte()
	if err != nil {
		return err
	}
	order, ok := OrderForFlag(b)
	if !ok {
		return fmt.Errorf("unknown byte order flag %q", b)
	}
	d.Order = order
	return nil
}

// Uint8 reads a byte.
func (d *Decoder) Uint8() (uint8, error) {
	return d.Buf.ReadByte()
}

// Uint16 reads a uint16, aligned to 2.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.Buf.Align(2, false); err != nil {
		return 0, err
	}
	bs, err := d.Buf.Read(2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(bs), nil
}

// Uint32 reads a uint32, aligned to 4.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.Buf.Align(4, false); err != nil {
		return 0, err
	}
	bs, err := d.Buf.Read(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// Uint64 reads a uint64, aligned to 8.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.Buf.Align(8, false); err != nil {
		return 0, err
	}
	bs, err := d.Buf.Read(8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(bs), nil
}

func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Float64 reads a double, aligned to 8.
func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// InvalidBoolean is returned when a boolean's wire-encoded uint32 is
// neither 0 nor 1.
type InvalidBoolean struct{ Value uint32 }

func (e InvalidBoolean) Error() string {
	return fmt.Sprintf("invalid boolean wire value %d, must be 0 or 1", e.Value)
}

// Bool reads a DBus boolean (wire-encoded as a uint32).
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, InvalidBoolean{v}
	}
}

// RawBytes reads a length-prefixed byte blob with no trailing NUL.
func (d *Decoder) RawBytes() ([]byte, error) {
	ln, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return d.Buf.Read(int(ln))
}

// String reads a DBus string: uint32 length, UTF-8 bytes, mandatory NUL.
func (d *Decoder) String() (string, error) {
	ln, err := d.Uint32()
	if err != nil {
		return "", err
	}
	bs, err := d.Buf.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	return string(bs[:len(bs)-1]), nil
}

// SignatureString reads a DBus signature: byte length, ASCII bytes,
// mandatory NUL.
func (d *Decoder) SignatureString() (string, error) {
	ln, err := d.Uint8()
	if err != nil {
		return "", err
	}
	bs, err := d.Buf.Read(int(ln) + 1)
	if err != nil {
		return "", err
	}
	return string(bs[:len(bs)-1]), nil
}

// Array reads an array: uint32 byte-length L, an optional 8-byte
// struct-header alignment if elementsContainStructs (forced even when
// L==0, because the length field alone doesn't imply element alignment),
// then readElement is called with successive indices until the L bytes
// of array data are consumed. readElement must consume exactly one
// element's worth of bytes per call.
//
// Array returns the number of elements read.
func (d *Decoder) Array(elementsContainStructs bool, readElement func(idx int) error) (int, error) {
	ln, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if elementsContainStructs {
		if err := d.Buf.Align(8, false); err != nil {
			return 0, err
		}
	}
	end := d.Buf.Position() + int(ln)
	idx := 0
	for d.Buf.Position() < end {
		if err := readElement(idx); err != nil {
			return idx, err
		}
		idx++
	}
	if d.Buf.Position() != end {
		return idx, fmt.Errorf("array element decoder overran array bounds: at %d, array ends at %d", d.Buf.Position(), end)
	}
	return idx, nil
}

// Struct reads a struct: mandatory 8-byte alignment, then the fields.
func (d *Decoder) Struct(fields func() error) error {
	if err := d.Buf.Align(8, false); err != nil {
		return err
	}
	return fields()
}

// DictEntry reads a dict-entry: mandatory 8-byte alignment, key, value.
func (d *Decoder) DictEntry(key, value func() error) error {
	if err := d.Buf.Align(8, false); err != nil {
		return err
	}
	if err := key(); err != nil {
		return err
	}
	return value()
}

// Variant reads a variant's embedded signature. The caller must then read
// the value itself, of the type the signature describes.
func (d *Decoder) Variant() (string, error) {
	return d.SignatureString()
}
