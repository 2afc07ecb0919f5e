package dbus

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-dbus/client/transport"
	"github.com/go-dbus/client/wire"
)

// pipeTransport adapts a net.Pipe half to transport.Transport for tests
// that exercise Conn without a real bus socket.
type pipeTransport struct {
	net.Conn
}

func (pipeTransport) GUID() string { return "test-guid" }

// newTestConn wires up a Conn directly (bypassing newConn's dial and
// Hello handshake, which require a real bus) over an in-memory pipe, and
// returns the peer end the test drives as the "bus".
func newTestConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	client, bus := net.Pipe()
	c := &Conn{
		t:       pipeTransport{client},
		wbuf:    wire.NewBuffer(4096),
		pending: map[uint32]*pendingCall{},
		rbuf:    make([]byte, 0, 4096),
		name:    ":1.1",
	}
	go c.readLoop()
	t.Cleanup(func() { c.Close() })
	return c, bus
}

func readFullMessage(t *testing.T, r net.Conn) *Message {
	t.Helper()
	hdr := make([]byte, 16)
	if _, err := readFull(r, hdr); err != nil {
		t.Fatalf("reading header preamble: %v", err)
	}
	_, headerFieldsLen, bodyLen, err := peekPreamble(hdr)
	if err != nil {
		t.Fatalf("peekPreamble: %v", err)
	}
	headerEnd := align(16+int(headerFieldsLen), 8)
	rest := make([]byte, headerEnd-16+int(bodyLen))
	if _, err := readFull(r, rest); err != nil {
		t.Fatalf("reading rest of message: %v", err)
	}
	full := append(hdr, rest...)
	buf := wire.NewFixedBuffer(full)
	msg, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeMessage(t *testing.T, w net.Conn, msg *Message) {
	t.Helper()
	buf := wire.NewBuffer(256)
	if err := WriteMessage(buf, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatalf("writing message to pipe: %v", err)
	}
}

func TestConnCallResolvesOnReply(t *testing.T) {
	c, bus := newTestConn(t)

	done := make(chan struct{})
	var reply *Message
	var callErr error
	go func() {
		reply, callErr = c.Call(context.Background(), "org.example", "/obj", "org.example.Iface", "Method", nil)
		close(done)
	}()

	req := readFullMessage(t, bus)
	if req.Member != "Method" || req.Interface != "org.example.Iface" {
		t.Fatalf("bus observed unexpected request: %+v", req)
	}

	writeMessage(t, bus, &Message{
		Type:        MessageMethodReturn,
		Version:     1,
		Serial:      1,
		ReplySerial: req.Serial,
		Body:        Str("ok"),
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Call did not return")
	}
	if callErr != nil {
		t.Fatalf("Call returned error: %v", callErr)
	}
	if s, ok := reply.Body.(Str); !ok || s != "ok" {
		t.Errorf("reply.Body = %#v, want Str(\"ok\")", reply.Body)
	}
}

func TestConnCallTranslatesErrorReply(t *testing.T) {
	c, bus := newTestConn(t)

	done := make(chan struct{})
	var callErr error
	go func() {
		_, callErr = c.Call(context.Background(), "org.example", "/obj", "org.example.Iface", "Method", nil)
		close(done)
	}()

	req := readFullMessage(t, bus)
	writeMessage(t, bus, &Message{
		Type:        MessageError,
		Version:     1,
		Serial:      1,
		ReplySerial: req.Serial,
		ErrorName:   "org.example.Error.Failed",
		Body:        Str("it broke"),
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Call did not return")
	}
	ce, ok := callErr.(CallError)
	if !ok {
		t.Fatalf("Call error = %v (%T), want CallError", callErr, callErr)
	}
	if ce.Name != "org.example.Error.Failed" || ce.Detail != "it broke" {
		t.Errorf("CallError = %+v, want Name=org.example.Error.Failed Detail=\"it broke\"", ce)
	}
}

func TestConnHandlerAlwaysInvoked(t *testing.T) {
	c, bus := newTestConn(t)

	seen := make(chan *Message, 2)
	c.SetHandler(func(m *Message) { seen <- m })

	writeMessage(t, bus, &Message{
		Type:      MessageSignal,
		Version:   1,
		Serial:    1,
		Path:      "/obj",
		Interface: "org.example.Iface",
		Member:    "Changed",
	})

	select {
	case m := <-seen:
		if m.Member != "Changed" {
			t.Errorf("handler saw Member = %q, want Changed", m.Member)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not invoked for signal")
	}
}

func TestConnClosedRejectsPendingCalls(t *testing.T) {
	c, bus := newTestConn(t)

	done := make(chan struct{})
	var callErr error
	go func() {
		_, callErr = c.Call(context.Background(), "org.example", "/obj", "org.example.Iface", "Method", nil)
		close(done)
	}()

	readFullMessage(t, bus)
	bus.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Call did not return after transport closed")
	}
	if _, ok := callErr.(ConnectionClosed); !ok {
		t.Fatalf("Call error after close = %v (%T), want ConnectionClosed", callErr, callErr)
	}
}

func TestConnSendNoReplyExpected(t *testing.T) {
	c, bus := newTestConn(t)
	defer bus.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- c.EmitSignal(context.Background(), "/obj", "org.example.Iface", "Changed", nil)
	}()

	msg := readFullMessage(t, bus)
	if msg.Type != MessageSignal || msg.Member != "Changed" {
		t.Errorf("observed message = %+v, want SIGNAL Changed", msg)
	}
	if err := <-errc; err != nil {
		t.Fatalf("EmitSignal: %v", err)
	}
}

var _ transport.Transport = pipeTransport{}
