package dbus

import "context"

// Object is one object path offered by a [Peer].
type Object struct {
	p    Peer
	path ObjectPathValue
}

// Conn returns the connection the Object was obtained from.
func (o Object) Conn() *Conn { return o.p.Conn() }

// Peer returns the Peer that hosts this Object.
func (o Object) Peer() Peer { return o.p }

// Path returns the object path.
func (o Object) Path() ObjectPathValue { return o.path }

// Interface returns a handle for the named interface on this Object.
func (o Object) Interface(name string) Interface {
	return Interface{o: o, name: name}
}

// Introspect requests and returns the raw introspection XML for this
// object (spec.md §6 "Introspection").
func (o Object) Introspect(ctx context.Context) (string, error) {
	reply, err := o.Conn().Call(ctx, o.p.name, o.path, "org.freedesktop.DBus.Introspectable", "Introspect", nil)
	if err != nil {
		return "", err
	}
	s, ok := reply.Body.(Str)
	if !ok {
		return "", ProtocolError{Reason: "Introspect reply body is not a string"}
	}
	return string(s), nil
}

// Describe introspects the object and folds the result into a
// structured [ObjectDescription].
func (o Object) Describe(ctx context.Context) (ObjectDescription, error) {
	xml, err := o.Introspect(ctx)
	if err != nil {
		return ObjectDescription{}, err
	}
	return ParseIntrospection(xml)
}
