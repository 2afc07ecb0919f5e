package dbus

import "fmt"

// MessageType is the type of a DBus message (spec.md §3).
type MessageType byte

const (
	MessageMethodCall MessageType = iota + 1
	MessageMethodReturn
	MessageError
	MessageSignal
)

func (t MessageType) String() string {
	switch t {
	case MessageMethodCall:
		return "METHOD_CALL"
	case MessageMethodReturn:
		return "METHOD_RETURN"
	case MessageError:
		return "ERROR"
	case MessageSignal:
		return "SIGNAL"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// Flag is one bit of a message's flag byte (spec.md §3).
type Flag byte

const (
	FlagNoReplyExpected               Flag = 0x01
	FlagNoAutoStart                   Flag = 0x02
	FlagAllowInteractiveAuthorization Flag = 0x04
)

// HeaderField identifies one of the well-known DBus message header
// fields (spec.md §4.4 table).
type HeaderField byte

const (
	FieldPath HeaderField = iota + 1
	FieldInterface
	FieldMember
	FieldErrorName
	FieldReplySerial
	FieldDestination
	FieldSender
	FieldSignature
	FieldUnixFDs
)

// InvalidHeaderField is returned when a message header-field array
// contains a field code outside 1..9.
type InvalidHeaderField struct {
	Code byte
}

func (e InvalidHeaderField) Error() string {
	return fmt.Sprintf("invalid DBus header field code %d", e.Code)
}

// headerFieldType maps each well-known header field to its declared
// type. The header field is always wrapped in a variant on the wire,
// because different codes carry different value types (spec.md §9);
// this table tells the writer which signature to emit, and names the
// field for the reader (whose variant signature is otherwise trusted
// as-is).
var headerFieldType = map[HeaderField]Type{
	FieldPath:        TypeObjectPath,
	FieldInterface:   TypeString,
	FieldMember:      TypeString,
	FieldErrorName:   TypeString,
	FieldReplySerial: TypeUint32,
	FieldDestination: TypeString,
	FieldSender:      TypeString,
	FieldSignature:   TypeSignature,
	FieldUnixFDs:     TypeUint32,
}

// Message is a complete DBus message: the fixed header, its header-field
// mapping, and a typed body (spec.md §3).
type Message struct {
	Order    ByteOrderTag
	Type     MessageType
	Flags    Flag
	Version  uint8
	Serial   uint32

	Path        ObjectPathValue
	Interface   string
	Member      string
	ErrorName   string
	ReplySerial uint32
	Destination string
	Sender      string
	Signature   Signature
	UnixFDs     uint32

	Body Value
}

// ByteOrderTag is the DBus order mark carried by a message ('l' or 'B').
type ByteOrderTag byte

const (
	OrderLittleEndian ByteOrderTag = 'l'
	OrderBigEndian    ByteOrderTag = 'B'
)

// WantReply reports whether this message requires a METHOD_RETURN or
// ERROR response.
func (m *Message) WantReply() bool {
	return m.Type == MessageMethodCall && m.Flags&FlagNoReplyExpected == 0
}

// Valid checks that the message's header fields satisfy the
// requirements of its message type (spec.md §3 "Message").
func (m *Message) Valid() error {
	if m.Serial == 0 {
		return fmt.Errorf("invalid message with zero serial")
	}
	switch m.Type {
	case MessageMethodCall:
		if m.Path == "" || m.Member == "" || m.Destination == "" {
			return fmt.Errorf("METHOD_CALL missing required header field (path=%q member=%q destination=%q)", m.Path, m.Member, m.Destination)
		}
	case MessageMethodReturn:
		if m.ReplySerial == 0 {
			return fmt.Errorf("METHOD_RETURN missing required header field ReplySerial")
		}
	case MessageError:
		if m.ReplySerial == 0 || m.ErrorName == "" {
			return fmt.Errorf("ERROR missing required header field (reply-serial=%d error-name=%q)", m.ReplySerial, m.ErrorName)
		}
	case MessageSignal:
		if m.Path == "" || m.Interface == "" || m.Member == "" {
			return fmt.Errorf("SIGNAL missing required header field (path=%q interface=%q member=%q)", m.Path, m.Interface, m.Member)
		}
	default:
		return fmt.Errorf("invalid message type %d", m.Type)
	}
	return nil
}
