package wire

import "math"

// An Encoder writes DBus primitives to a Buffer, inserting padding as
// needed to satisfy DBus alignment rules. All multi-byte values are
// written in Order.
type Encoder struct {
	Order ByteOrder
	Buf   *Buffer
}

// NewEncoder returns an Encoder writing into buf using the given byte
// order. Callers writing a fresh message should Buf.Reset() first so that
// Origin and the cursor both start at zero.
func NewEncoder(buf *Buffer, order ByteOrder) *Encoder {
	return &Encoder{Order: order, Buf: buf}
}

// ByteOrderFlag writes the single-byte order mark ('l' or 'B') that
// begins every DBus message.
func (e *Encoder) ByteOrderFlag() error {
	return e.Buf.AppendByte(e.Order.dbusFlag())
}

// Uint8 writes a byte. Alignment 1: never needs padding.
func (e *Encoder) Uint8(v uint8) error {
	return e.Buf.AppendByte(v)
}

// Uint16 writes a uint16, aligned to 2.
func (e *Encoder) Uint16(v uint16) error {
	if err := e.Buf.Align(2, true); err != nil {
		return err
	}
	var bs [2]byte
	e.Order.PutUint16(bs[:], v)
	return e.Buf.Append(bs[:])
}

// Uint32 writes a uint32, aligned to 4.
func (e *Encoder) Uint32(v uint32) error {
	if err := e.Buf.Align(4, true); err != nil {
		return err
	}
	var bs [4]byte
	e.Order.PutUint32(bs[:], v)
	return e.Buf.Append(bs[:])
}

// Uint64 writes a uint64, aligned to 8.
func (e *Encoder) Uint64(v uint64) error {
	if err := e.Buf.Align(8, true); err != nil {
		return err
	}
	var bs [8]byte
	e.Order.PutUint64(bs[:], v)
	return e.Buf.Append(bs[:])
}

// Int16, Int32, Int64 are signed wrappers around the unsigned writers;
// DBus has no separate signed wire representation, only two's-complement
// reinterpretation.
func (e *Encoder) Int16(v int16) error { return e.Uint16(uint16(v)) }
func (e *Encoder) Int32(v int32) error { return e.Uint32(uint32(v)) }
func (e *Encoder) Int64(v int64) error { return e.Uint64(uint64(v)) }

// Float64 writes a double, aligned to 8.
func (e *Encoder) Float64(v float64) error {
	return e.Uint64(math.Float64bits(v))
}

// Bool writes a DBus boolean, which is wire-encoded as a uint32.
func (e *Encoder) Bool(v bool) error {
	if v {
		return e.Uint32(1)
	}
	return e.Uint32(0)
}

// RawBytes writes a length-prefixed, unterminated byte blob, for callers
// that need raw byte arrays. String does not use it, since a DBus string
// also carries a trailing NUL.
func (e *Encoder) RawBytes(bs []byte) error {
	if err := e.Buf.Align(4, true); err != nil {
		return err
	}
	if err := e.Uint32(uint32(len(bs))); err != nil {
		return err
	}
	return e.Buf.Append(bs)
}

// String writes a DBus string: uint32 length, UTF-8 bytes, NUL.
func (e *Encoder) String(s string) error {
	if err := e.Uint32(uint32(len(s))); err != nil {
		return err
	}
	if err := e.Buf.Append([]byte(s)); err != nil {
		return err
	}
	return e.Buf.AppendByte(0)
}

// SignatureString writes a DBus signature: byte length, ASCII bytes, NUL.
func (e *Encoder) SignatureString(s string) error {
	if len(s) > 255 {
		return BufferExhausted{Requested: len(s), Capacity: 255}
	}
	if err := e.Uint8(uint8(len(s))); err != nil {
		return err
	}
	if err := e.Buf.Append([]byte(s)); err != nil {
		return err
	}
	return e.Buf.AppendByte(0)
}

// Array writes an array: a placeholder uint32 length, the elements (with
// elementsContainStructs deciding whether the 8-byte struct-header pad is
// forced even for an empty array), then the length is back-patched to the
// byte span the elements actually occupied.
//
// The length field itself, and any padding consumed aligning the first
// element, are excluded from the reported length per the DBus spec.
func (e *Encoder) Array(elementsContainStructs bool, elements func() error) error {
	if err := e.Buf.Align(4, true); err != nil {
		return err
	}
	lenOffset := e.Buf.Position()
	if err := e.Uint32(0); err != nil {
		return err
	}
	if elementsContainStructs {
		if err := e.Buf.Align(8, true); err != nil {
			return err
		}
	}
	start := e.Buf.Position()
	if err := elements(); err != nil {
		return err
	}
	end := e.Buf.Position()

	raw := e.Buf.Bytes()
	e.Order.PutUint32(raw[lenOffset:lenOffset+4], uint32(end-start))
	return nil
}

// Struct writes a struct: mandatory 8-byte alignment, then the fields.
func (e *Encoder) Struct(fields func() error) error {
	if err := e.Buf.Align(8, true); err != nil {
		return err
	}
	return fields()
}

// DictEntry writes a dict-entry: mandatory 8-byte alignment, key, value.
func (e *Encoder) DictEntry(key, value func() error) error {
	if err := e.Buf.Align(8, true); err != nil {
		return err
	}
	if err := key(); err != nil {
		return err
	}
	return value()
}

// Variant writes a variant header (a signature, with no alignment of its
// own). The value itself must be written by the caller immediately after.
func (e *Encoder) Variant(signature string) error {
	return e.SignatureString(signature)
}
