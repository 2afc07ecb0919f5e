package dbus

import (
	"cmp"
	"context"
	"fmt"
)

const ifaceProperties = "org.freedesktop.DBus.Properties"

// Interface is a set of methods, properties and signals offered by an
// [Object].
type Interface struct {
	o    Object
	name string
}

// Conn returns the DBus connection associated with the interface.
func (f Interface) Conn() *Conn { return f.o.Conn() }

// Peer returns the Peer that is offering the interface.
func (f Interface) Peer() Peer { return f.o.Peer() }

// Object returns the Object that implements the interface.
func (f Interface) Object() Object { return f.o }

// Name returns the name of the interface.
func (f Interface) Name() string { return f.name }

func (f Interface) String() string {
	if f.name == "" {
		return fmt.Sprintf("%s:<no interface>", f.o.Path())
	}
	return fmt.Sprintf("%s:%s", f.o.Path(), f.name)
}

// Compare compares two interfaces, with the same convention as [cmp.Compare].
func (f Interface) Compare(other Interface) int {
	if ret := cmp.Compare(f.o.Path(), other.o.Path()); ret != 0 {
		return ret
	}
	return cmp.Compare(f.name, other.name)
}

// Call invokes method on the interface with the given request body and
// returns the reply message.
//
// This is a low-level calling API: it is the caller's responsibility to
// pass a body whose dynamic type matches the method's input signature,
// and to interpret reply.Body against the method's output signature.
// Body may be nil for methods that accept no parameters.
func (f Interface) Call(ctx context.Context, method string, body Value) (*Message, error) {
	return f.Conn().Call(ctx, f.Peer().Name(), f.o.Path(), f.name, method, body)
}

// OneWay invokes method on the interface with the given request body,
// and tells the peer not to send a reply.
//
// OneWay returns after the call is successfully written to the socket.
// Since the reply is suppressed at the bus level, there is no way to
// know whether the call was delivered to or acted on by anyone.
func (f Interface) OneWay(ctx context.Context, method string, body Value) error {
	msg := &Message{
		Type:        MessageMethodCall,
		Version:     1,
		Flags:       FlagNoReplyExpected,
		Path:        f.o.Path(),
		Interface:   f.name,
		Member:      method,
		Destination: f.Peer().Name(),
		Body:        body,
	}
	_, err := f.Conn().Send(ctx, msg)
	return err
}

// GetProperty reads a single property of the interface via
// org.freedesktop.DBus.Properties.Get, returning the property's variant
// value (spec.md §6.2).
func (f Interface) GetProperty(ctx context.Context, name string) (Variant, error) {
	req := Tuple{Values: []Value{Str(f.name), Str(name)}}
	reply, err := f.o.Interface(ifaceProperties).Call(ctx, "Get", req)
	if err != nil {
		return Variant{}, err
	}
	v, ok := reply.Body.(Variant)
	if !ok {
		return Variant{}, ProtocolError{Reason: "Properties.Get reply body is not a variant"}
	}
	return v, nil
}

// SetProperty sets a single property of the interface via
// org.freedesktop.DBus.Properties.Set.
func (f Interface) SetProperty(ctx context.Context, name string, value Variant) error {
	req := Tuple{Values: []Value{Str(f.name), Str(name), value}}
	_, err := f.o.Interface(ifaceProperties).Call(ctx, "Set", req)
	return err
}

// GetAllProperties returns every property the interface exposes, via
// org.freedesktop.DBus.Properties.GetAll.
func (f Interface) GetAllProperties(ctx context.Context) (Dict, error) {
	reply, err := f.o.Interface(ifaceProperties).Call(ctx, "GetAll", Str(f.name))
	if err != nil {
		return Dict{}, err
	}
	d, ok := reply.Body.(Dict)
	if !ok {
		return Dict{}, ProtocolError{Reason: "Properties.GetAll reply body is not a dict"}
	}
	return d, nil
}
