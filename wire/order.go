// Package wire implements the low-level byte-buffer primitives used to
// marshal and unmarshal the DBus wire format: a growable, endian-aware
// buffer with alignment-from-origin padding, and thin Encoder/Decoder
// wrappers around it.
package wire

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// ByteOrder is the byte order of a DBus message. DBus tags every message
// with an explicit order byte ('l' or 'B'), so unlike most binary
// protocols this has to be a per-message, runtime value rather than a
// compile-time constant.
type ByteOrder interface {
	byteOrder
	dbusFlag() byte
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type wrapStd struct {
	byteOrder
}

func (w wrapStd) dbusFlag() byte {
	switch w.byteOrder {
	case binary.BigEndian:
		return 'B'
	case binary.LittleEndian:
		return 'l'
	case binary.NativeEndian:
		if cpu.IsBigEndian {
			return 'B'
		}
		return 'l'
	default:
		panic("unknown ByteOrder")
	}
}

// OrderForFlag returns the ByteOrder for a DBus order byte ('l' or 'B').
func OrderForFlag(b byte) (ByteOrder, bool) {
	switch b {
	case 'l':
		return LittleEndian, true
	case 'B':
		return BigEndian, true
	default:
		return nil, false
	}
}

var (
	BigEndian    ByteOrder = wrapStd{binary.BigEndian}
	LittleEndian ByteOrder = wrapStd{binary.LittleEndian}
	// NativeEndian is the host's byte order. Outbound messages are written
	// little-endian (or big-endian when a message asks for it); a decoder
	// starts with NativeEndian only until it reads a message's order flag.
	NativeEndian ByteOrder = wrapStd{binary.NativeEndian}
)
