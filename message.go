package dbus

import (
	"fmt"

	"github.com/go-dbus/client/wire"
)

// headerFieldStructType is the DBus type of one header-field array
// element: struct(byte, variant) (spec.md §4.4). It documents the wire
// shape; writeHeaderFields and readHeaderFields encode that shape
// directly and do not reference this variable.
var headerFieldStructType = StructOf(TypeByte, TypeVariant)

// WriteMessage marshals msg into buf, which must be in write mode (a
// fresh or Clear'd Buffer). This implements spec.md §4.4's
// write_message: order flag, type/flags/version bytes, a placeholder
// body-length, the serial, the header-field array (each field wrapped as
// struct(byte,variant)), an 8-byte align, and finally the body (if a
// signature is present), with the body-length backpatched afterward.
func WriteMessage(buf *wire.Buffer, msg *Message) error {
	if msg.Body != nil && msg.Signature.IsZero() {
		msg.Signature = SignatureOf(TypeOf(msg.Body))
	}

	order := wire.LittleEndian
	if msg.Order == OrderBigEndian {
		order = wire.BigEndian
	}
	e := wire.NewEncoder(buf, order)

	if err := e.ByteOrderFlag(); err != nil {
		return err
	}
	if err := e.Uint8(byte(msg.Type)); err != nil {
		return err
	}
	if err := e.Uint8(byte(msg.Flags)); err != nil {
		return err
	}
	if err := e.Uint8(msg.Version); err != nil {
		return err
	}

	lengthOffset := buf.Position()
	if err := e.Uint32(0); err != nil {
		return err
	}
	if err := e.Uint32(msg.Serial); err != nil {
		return err
	}

	if err := writeHeaderFields(e, msg); err != nil {
		return err
	}
	if err := buf.Align(8, true); err != nil {
		return err
	}

	bodyStart := buf.Position()
	if !msg.Signature.IsZero() && msg.Body != nil {
		if err := Marshal(e, msg.Signature.Type(), msg.Body); err != nil {
			return err
		}
	}
	bodyLen := buf.Position() - bodyStart

	raw := buf.Bytes()
	order.PutUint32(raw[lengthOffset:lengthOffset+4], uint32(bodyLen))
	return nil
}

func writeHeaderFields(e *wire.Encoder, msg *Message) error {
	type field struct {
		code HeaderField
		v    Value
	}
	var fields []field
	if msg.Path != "" {
		fields = append(fields, field{FieldPath, msg.Path})
	}
	if msg.Interface != "" {
		fields = append(fields, field{FieldInterface, Str(msg.Interface)})
	}
	if msg.Member != "" {
		fields = append(fields, field{FieldMember, Str(msg.Member)})
	}
	if msg.ErrorName != "" {
		fields = append(fields, field{FieldErrorName, Str(msg.ErrorName)})
	}
	if msg.ReplySerial != 0 {
		fields = append(fields, field{FieldReplySerial, Uint32(msg.ReplySerial)})
	}
	if msg.Destination != "" {
		fields = append(fields, field{FieldDestination, Str(msg.Destination)})
	}
	if msg.Sender != "" {
		fields = append(fields, field{FieldSender, Str(msg.Sender)})
	}
	if !msg.Signature.IsZero() {
		fields = append(fields, field{FieldSignature, SignatureValue(msg.Signature)})
	}
	if msg.UnixFDs != 0 {
		fields = append(fields, field{FieldUnixFDs, Uint32(msg.UnixFDs)})
	}

	return e.Array(true, func() error {
		for _, f := range fields {
			if err := e.Struct(func() error {
				if err := e.Uint8(byte(f.code)); err != nil {
					return err
				}
				ft := headerFieldType[f.code]
				if err := e.Variant(ft.String()); err != nil {
					return err
				}
				return Marshal(e, ft, f.v)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadMessageHeader reads spec.md §4.4's read_message_header: the fixed
// preamble and the header-field array, without the body. buf must be in
// read mode and positioned at the start of a message. The returned
// Message's Body is nil; bodyLen is the body-length field so the caller
// can fetch exactly that many more bytes before calling ReadBody.
func ReadMessageHeader(buf *wire.Buffer) (msg *Message, bodyLen uint32, err error) {
	d := wire.NewDecoder(buf, wire.NativeEndian)
	if err := d.ByteOrderFlag(); err != nil {
		return nil, 0, err
	}

	msg = &Message{Order: ByteOrderTag(0)}
	if d.Order == wire.BigEndian {
		msg.Order = OrderBigEndian
	} else {
		msg.Order = OrderLittleEndian
	}

	typ, err := d.Uint8()
	if err != nil {
		return nil, 0, err
	}
	msg.Type = MessageType(typ)

	flags, err := d.Uint8()
	if err != nil {
		return nil, 0, err
	}
	msg.Flags = Flag(flags)

	msg.Version, err = d.Uint8()
	if err != nil {
		return nil, 0, err
	}

	bodyLen, err = d.Uint32()
	if err != nil {
		return nil, 0, err
	}

	msg.Serial, err = d.Uint32()
	if err != nil {
		return nil, 0, err
	}
	if err := readHeaderFields(d, msg); err != nil {
		return nil, 0, err
	}
	if err := buf.Align(8, false); err != nil {
		return nil, 0, err
	}
	return msg, bodyLen, nil
}

func readHeaderFields(d *wire.Decoder, msg *Message) error {
	_, err := d.Array(true, func(int) error {
		return d.Struct(func() error {
			code, err := d.Uint8()
			if err != nil {
				return err
			}
			sigStr, err := d.Variant()
			if err != nil {
				return err
			}
			sig, err := ParseSignature(sigStr)
			if err != nil {
				return err
			}
			v, err := Unmarshal(d, sig.Type())
			if err != nil {
				return err
			}

			switch HeaderField(code) {
			case FieldPath:
				msg.Path, _ = v.(ObjectPathValue)
			case FieldInterface:
				s, _ := v.(Str)
				msg.Interface = string(s)
			case FieldMember:
				s, _ := v.(Str)
				msg.Member = string(s)
			case FieldErrorName:
				s, _ := v.(Str)
				msg.ErrorName = string(s)
			case FieldReplySerial:
				u, _ := v.(Uint32)
				msg.ReplySerial = uint32(u)
			case FieldDestination:
				s, _ := v.(Str)
				msg.Destination = string(s)
			case FieldSender:
				s, _ := v.(Str)
				msg.Sender = string(s)
			case FieldSignature:
				sv, _ := v.(SignatureValue)
				msg.Signature = Signature(sv)
			case FieldUnixFDs:
				u, _ := v.(Uint32)
				msg.UnixFDs = uint32(u)
			default:
				if code < 1 || code > 9 {
					return InvalidHeaderField{code}
				}
				// Codes 1..9 are all known above; unreachable.
			}
			return nil
		})
	})
	return err
}

// ReadBody reads a Value of the type described by sig. buf must be
// positioned at the start of the body and in read mode with Origin reset
// to the message's start (spec.md §4.4's read_body).
func ReadBody(buf *wire.Buffer, order wire.ByteOrder, sig Signature) (Value, error) {
	d := wire.NewDecoder(buf, order)
	return Unmarshal(d, sig.Type())
}

// ReadMessage reads a complete message: header then, if a signature is
// present and the body is non-empty, the body (spec.md §4.4's
// read_message). buf must hold the full header plus body bytes already.
func ReadMessage(buf *wire.Buffer) (*Message, error) {
	msg, bodyLen, err := ReadMessageHeader(buf)
	if err != nil {
		return nil, err
	}
	if !msg.Signature.IsZero() && bodyLen > 0 {
		order := wire.LittleEndian
		if msg.Order == OrderBigEndian {
			order = wire.BigEndian
		}
		body, err := ReadBody(buf, order, msg.Signature)
		if err != nil {
			return nil, fmt.Errorf("reading body of message serial %d: %w", msg.Serial, err)
		}
		msg.Body = body
	}
	return msg, nil
}
