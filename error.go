package dbus

import "fmt"

// TypeError wraps broader type-derivation failures that aren't a direct
// Value/Type mismatch (those return [UnknownType] from Marshal instead).
type TypeError struct {
	Type   string
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("dbus cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error { return e.Reason }

// CallError is returned from Conn.Call (and friends) when the method
// call completed, but the peer replied with a DBus ERROR message rather
// than a METHOD_RETURN.
type CallError struct {
	Name   string
	Detail string
}

func (e CallError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("call error %s", e.Name)
	}
	return fmt.Sprintf("call error %s: %s", e.Name, e.Detail)
}

// AuthenticationFailed is returned by SystemBus and SessionBus when the
// SASL handshake does not produce an OK response; it wraps the reason
// of the transport's AuthError (spec.md §4.5, §7).
type AuthenticationFailed struct {
	Reason string
}

func (e AuthenticationFailed) Error() string {
	return fmt.Sprintf("DBus authentication failed: %s", e.Reason)
}

// ProtocolError is returned for malformed handshake or framing data that
// isn't an outright authentication rejection (spec.md §4.5, §7).
type ProtocolError struct {
	Reason string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("DBus protocol error: %s", e.Reason)
}

// ConnectionClosed is returned from Send (or a pending reply future) when
// issued after the connection's read loop has died (spec.md §7).
type ConnectionClosed struct {
	Reason error
}

func (e ConnectionClosed) Error() string {
	if e.Reason == nil {
		return "dbus: connection closed"
	}
	return fmt.Sprintf("dbus: connection closed: %s", e.Reason)
}

func (e ConnectionClosed) Unwrap() error { return e.Reason }
