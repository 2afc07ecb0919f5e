// Package dbus is a client library for the D-Bus message bus protocol.
//
// A [Conn] opens a connection to the session or system bus, completes
// the SASL EXTERNAL handshake and the Hello call, and then exposes
// [Conn.Call] and [Conn.Send] for method calls, plus a [Handler] that
// receives every incoming message: signals, unmatched messages, and
// also the replies that resolve pending calls.
//
// Values exchanged over the wire are represented with the [Value]
// interface and its concrete implementations ([Bool], [Byte], [Array],
// [Struct], [Dict], [Variant], and so on), paired with a [Type]
// describing their DBus shape. [Marshal] and [Unmarshal] convert between
// a Value and its wire encoding; [TypeOf] recovers a Value's Type
// without requiring the caller to track it separately.
//
// [Peer], [Object] and [Interface] are thin, purely local handles
// layered over Conn.Call: they carry a destination bus name, object
// path and interface name, and do not themselves imply that the remote
// side exists or is reachable.
package dbus
