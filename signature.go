package dbus

import (
	"fmt"

	"github.com/creachadair/mds/mapset"
	"github.com/go-dbus/client/wire"
)

// InvalidSignature is returned by ParseSignature for malformed or
// oversized type strings.
type InvalidSignature struct {
	Signature string
	Reason    string
}

func (e InvalidSignature) Error() string {
	return fmt.Sprintf("invalid DBus signature %q: %s", e.Signature, e.Reason)
}

// maxSignatureLen and maxTypeDepth are the limits imposed by the DBus
// wire protocol itself (spec.md §3).
const (
	maxSignatureLen = 255
	maxTypeDepth    = 32
)

var basicTypeChars = map[byte]Type{
	'b': TypeBool,
	'y': TypeByte,
	'n': TypeInt16,
	'q': TypeUint16,
	'i': TypeInt32,
	'u': TypeUint32,
	'x': TypeInt64,
	't': TypeUint64,
	'd': TypeDouble,
	's': TypeString,
	'o': TypeObjectPath,
	'g': TypeSignature,
	'v': TypeVariant,
}

// dictKeyKinds is the set of Kinds valid as a dict-entry key, i.e. every
// atomic type except variant (variants can't be compared for equality
// the way a map key must be).
var dictKeyKinds = mapset.New(
	KindBool, KindByte, KindInt16, KindInt32, KindInt64,
	KindUint16, KindUint32, KindUint64, KindDouble,
	KindString, KindObjectPath, KindSignature,
)

// A Signature is a DBus type signature string together with its parsed
// Type. It may describe a single complete type, or (only when used as a
// message body signature) a sequence of top-level types bundled into a
// synthetic KindTuple.
type Signature struct {
	raw string
	typ Type
}

// ParseSignature parses a DBus type signature string (spec.md §4.2) via
// recursive descent: each character advances one position, 'a' consumes
// one nested type, '(' consumes until ')', '{' consumes exactly two
// nested types then '}'. A signature with zero top-level types parses to
// the unit Type; one type returns that type bare; two or more are
// wrapped in a KindTuple.
func ParseSignature(sig string) (Signature, error) {
	if len(sig) > maxSignatureLen {
		return Signature{}, InvalidSignature{sig, "exceeds 255 byte maximum length"}
	}
	var parts []Type
	rest := sig
	for rest != "" {
		t, tail, err := parseOneType(sig, rest, false, 0)
		if err != nil {
			return Signature{}, err
		}
		parts = append(parts, t)
		rest = tail
	}
	return Signature{raw: sig, typ: TupleOf(parts...)}, nil
}

// MustParseSignature is ParseSignature, panicking on error. Intended for
// package-level signature constants.
func MustParseSignature(sig string) Signature {
	ret, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return ret
}

// SignatureOf returns the Signature corresponding to a Type.
func SignatureOf(t Type) Signature {
	return Signature{raw: t.String(), typ: t}
}

func parseOneType(full, rest string, inArray bool, depth int) (Type, string, error) {
	if rest == "" {
		return Type{}, "", InvalidSignature{full, "unexpected end of signature"}
	}
	if depth > maxTypeDepth {
		return Type{}, "", InvalidSignature{full, "exceeds maximum nesting depth of 32"}
	}

	c := rest[0]
	if t, ok := basicTypeChars[c]; ok {
		return t, rest[1:], nil
	}

	switch c {
	case 'a':
		isDict := len(rest) > 1 && rest[1] == '{'
		if isDict {
			// The dict-entry parser below enforces inArray itself; here
			// we just need to recurse one level past the 'a'.
			elem, tail, err := parseOneType(full, rest[1:], true, depth+1)
			if err != nil {
				return Type{}, "", err
			}
			return ArrayOf(elem), tail, nil
		}
		elem, tail, err := parseOneType(full, rest[1:], false, depth+1)
		if err != nil {
			return Type{}, "", err
		}
		return ArrayOf(elem), tail, nil
	case '(':
		var fields []Type
		tail := rest[1:]
		for tail != "" && tail[0] != ')' {
			var (
				f   Type
				err error
			)
			f, tail, err = parseOneType(full, tail, false, depth+1)
			if err != nil {
				return Type{}, "", err
			}
			fields = append(fields, f)
		}
		if tail == "" {
			return Type{}, "", InvalidSignature{full, "unbalanced ( in struct definition"}
		}
		if len(fields) == 0 {
			return Type{}, "", InvalidSignature{full, "struct must have at least one field"}
		}
		return StructOf(fields...), tail[1:], nil
	case '{':
		if !inArray {
			return Type{}, "", InvalidSignature{full, "dict-entry type found outside array context"}
		}
		key, tail, err := parseOneType(full, rest[1:], false, depth+1)
		if err != nil {
			return Type{}, "", err
		}
		if !dictKeyKinds.Has(key.Kind) {
			return Type{}, "", InvalidSignature{full, fmt.Sprintf("dict-entry key type %q is not a basic type", key)}
		}
		val, tail2, err := parseOneType(full, tail, false, depth+1)
		if err != nil {
			return Type{}, "", err
		}
		if tail2 == "" || tail2[0] != '}' {
			return Type{}, "", InvalidSignature{full, "unbalanced { in dict-entry definition"}
		}
		return DictEntryOf(key, val), tail2[1:], nil
	case ')', '}':
		return Type{}, "", InvalidSignature{full, fmt.Sprintf("unexpected closing %q with no matching opener", c)}
	default:
		return Type{}, "", InvalidSignature{full, fmt.Sprintf("unknown type specifier %q", c)}
	}
}

// String returns the signature's wire string.
func (s Signature) String() string { return s.raw }

// Type returns the parsed Type.
func (s Signature) Type() Type { return s.typ }

// IsZero reports whether s describes the zero-length (void) signature.
func (s Signature) IsZero() bool { return s.raw == "" }

// IsSingle reports whether s contains exactly one top-level complete
// type, as opposed to a multi-type message-body signature.
func (s Signature) IsSingle() bool {
	return s.typ.Kind != KindTuple || len(s.typ.Fields) <= 1
}

// MarshalWire writes the signature in DBus wire form: byte length, ASCII
// bytes, NUL.
func (s Signature) MarshalWire(e *wire.Encoder) error {
	return e.SignatureString(s.raw)
}

// UnmarshalSignature reads a DBus wire-form signature and parses it.
func UnmarshalSignature(d *wire.Decoder) (Signature, error) {
	raw, err := d.SignatureString()
	if err != nil {
		return Signature{}, err
	}
	return ParseSignature(raw)
}
