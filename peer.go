package dbus

import "context"

// Peer is a bus name: a service that can be addressed on a Conn. It is a
// purely local handle; obtaining one does not check that the name is
// currently owned by anyone.
type Peer struct {
	c    *Conn
	name string
}

// Name returns the bus name this Peer addresses.
func (p Peer) Name() string { return p.name }

// Conn returns the connection the Peer was obtained from.
func (p Peer) Conn() *Conn { return p.c }

// Object returns the object at path, offered by this Peer.
func (p Peer) Object(path ObjectPathValue) Object {
	return Object{p: p, path: path}
}

// Ping calls org.freedesktop.DBus.Peer.Ping on the root object, per the
// standard Peer interface every bus name implements.
func (p Peer) Ping(ctx context.Context) error {
	_, err := p.c.Call(ctx, p.name, "/", "org.freedesktop.DBus.Peer", "Ping", nil)
	return err
}

// GetMachineId returns the peer's unique machine identifier, per the
// standard Peer interface.
func (p Peer) GetMachineId(ctx context.Context) (string, error) {
	reply, err := p.c.Call(ctx, p.name, "/", "org.freedesktop.DBus.Peer", "GetMachineId", nil)
	if err != nil {
		return "", err
	}
	s, ok := reply.Body.(Str)
	if !ok {
		return "", ProtocolError{Reason: "GetMachineId reply body is not a string"}
	}
	return string(s), nil
}

// GetNameOwner returns the unique connection name (e.g. ":1.42") that
// currently owns p's bus name, via org.freedesktop.DBus.GetNameOwner
// (spec.md §6.2).
func (p Peer) GetNameOwner(ctx context.Context) (string, error) {
	reply, err := p.busCall(ctx, "GetNameOwner", Str(p.name))
	if err != nil {
		return "", err
	}
	s, ok := reply.Body.(Str)
	if !ok {
		return "", ProtocolError{Reason: "GetNameOwner reply body is not a string"}
	}
	return string(s), nil
}

// GetConnectionUnixProcessID returns the process ID of the process that
// owns p's bus name, via
// org.freedesktop.DBus.GetConnectionUnixProcessID (spec.md §6.2).
func (p Peer) GetConnectionUnixProcessID(ctx context.Context) (uint32, error) {
	reply, err := p.busCall(ctx, "GetConnectionUnixProcessID", Str(p.name))
	if err != nil {
		return 0, err
	}
	u, ok := reply.Body.(Uint32)
	if !ok {
		return 0, ProtocolError{Reason: "GetConnectionUnixProcessID reply body is not a uint32"}
	}
	return uint32(u), nil
}

// GetConnectionUnixUser returns the user ID of the process that owns p's
// bus name, via org.freedesktop.DBus.GetConnectionUnixUser (spec.md
// §6.2).
func (p Peer) GetConnectionUnixUser(ctx context.Context) (uint32, error) {
	reply, err := p.busCall(ctx, "GetConnectionUnixUser", Str(p.name))
	if err != nil {
		return 0, err
	}
	u, ok := reply.Body.(Uint32)
	if !ok {
		return 0, ProtocolError{Reason: "GetConnectionUnixUser reply body is not a uint32"}
	}
	return uint32(u), nil
}

// busCall invokes a method on the bus daemon itself (org.freedesktop.DBus,
// not p), the pattern every well-known bus-introspection method shares.
func (p Peer) busCall(ctx context.Context, method string, body Value) (*Message, error) {
	return p.c.Call(ctx, "org.freedesktop.DBus", "/org/freedesktop/DBus", "org.freedesktop.DBus", method, body)
}
