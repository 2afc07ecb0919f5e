package dbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-dbus/client/transport"
	"github.com/go-dbus/client/wire"
)

// sessionAddrPattern extracts the filesystem path out of a
// DBUS_SESSION_BUS_ADDRESS entry of the form "unix:path=<fs-path>".
var sessionAddrPattern = regexp.MustCompile(`unix:path=([^,;]+)`)

// systemBusSocket is the well-known system bus endpoint.
const systemBusSocket = "/run/dbus/system_bus_socket"

// SystemBus connects to the system bus.
func SystemBus(ctx context.Context) (*Conn, error) {
	return newConn(ctx, systemBusSocket)
}

// SessionBus connects to the current user's session bus, using the
// address in DBUS_SESSION_BUS_ADDRESS.
func SessionBus(ctx context.Context) (*Conn, error) {
	addr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if addr == "" {
		return nil, errors.New("dbus: session bus not available (DBUS_SESSION_BUS_ADDRESS is unset)")
	}
	for _, uri := range strings.Split(addr, ";") {
		m := sessionAddrPattern.FindStringSubmatch(uri)
		if m == nil {
			continue
		}
		return newConn(ctx, m[1])
	}
	return nil, fmt.Errorf("dbus: no usable unix:path= address in %q", addr)
}

// Handler is invoked by the read loop for every message the connection
// receives, including ones that also resolve a pending call (spec.md
// §4.6: "always also invoke the user-supplied signal handler"). It runs
// inline on the reader goroutine and must not block or call back into
// the same Conn synchronously.
type Handler func(*Message)

// Conn is a DBus connection: one serial counter, one pending-reply map,
// and one background read loop per socket (spec.md §3 "Connection
// state").
type Conn struct {
	t    transport.Transport
	name string // assigned by the Hello call; immutable after newConn returns

	writeMu sync.Mutex
	wbuf    *wire.Buffer

	serial atomic.Uint32

	mu       sync.Mutex
	closed   bool
	pending  map[uint32]*pendingCall
	handler  Handler
	fatalErr error

	rbuf []byte // read-loop-owned raw accumulator; never touched elsewhere
}

type pendingCall struct {
	done chan struct{}
	msg  *Message
	err  error
}

func newConn(ctx context.Context, path string) (*Conn, error) {
	t, err := transport.DialUnix(ctx, path)
	if err != nil {
		var ae transport.AuthError
		if errors.As(err, &ae) {
			return nil, AuthenticationFailed{Reason: ae.Reason}
		}
		var fe transport.FramingError
		if errors.As(err, &fe) {
			return nil, ProtocolError{Reason: fe.Reason}
		}
		return nil, err
	}

	c := &Conn{
		t:       t,
		wbuf:    wire.NewBuffer(4096),
		pending: map[uint32]*pendingCall{},
		rbuf:    make([]byte, 0, 4096),
	}

	go c.readLoop()

	reply, err := c.Call(ctx, "org.freedesktop.DBus", "/org/freedesktop/DBus", "org.freedesktop.DBus", "Hello", nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("dbus: Hello handshake failed: %w", err)
	}
	name, ok := reply.Body.(Str)
	if !ok {
		c.Close()
		return nil, ProtocolError{Reason: fmt.Sprintf("Hello reply body has unexpected shape %T", reply.Body)}
	}
	c.name = string(name)

	return c, nil
}

// LocalName returns the connection's server-assigned unique bus name
// (e.g. ":1.42").
func (c *Conn) LocalName() string { return c.name }

// Peer returns a handle for the given bus name, addressable through this
// connection. Obtaining a Peer does not check that name is currently
// owned by anyone (spec.md §6).
func (c *Conn) Peer(name string) Peer {
	return Peer{c: c, name: name}
}

// Features returns the set of optional feature names the bus daemon
// supports, via the org.freedesktop.DBus.Features property (spec.md
// §6.2).
func (c *Conn) Features(ctx context.Context) ([]string, error) {
	v, err := c.Peer("org.freedesktop.DBus").
		Object("/org/freedesktop/DBus").
		Interface("org.freedesktop.DBus").
		GetProperty(ctx, "Features")
	if err != nil {
		return nil, err
	}
	arr, ok := v.Value.(Array)
	if !ok {
		return nil, ProtocolError{Reason: "Features property is not an array"}
	}
	ret := make([]string, 0, len(arr.Items))
	for _, item := range arr.Items {
		if s, ok := item.(Str); ok {
			ret = append(ret, string(s))
		}
	}
	return ret, nil
}

// SetHandler installs the general message handler, replacing any
// previous one. It may be called at any time, including concurrently
// with traffic.
func (c *Conn) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Close shuts down the connection: the read loop exits, every
// outstanding call is resolved with ConnectionClosed, and the
// underlying socket is closed.
func (c *Conn) Close() error {
	c.failAll(ConnectionClosed{})
	return c.t.Close()
}

func (c *Conn) failAll(reason error) {
	var pend map[uint32]*pendingCall
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.fatalErr = reason
	pend, c.pending = c.pending, nil
	c.mu.Unlock()

	for _, p := range pend {
		p.err = reason
		close(p.done)
	}
}

// Future is a one-shot handle to a reply that may not have arrived yet
// (spec.md §4.6 "send(message) → future<reply>").
type Future struct {
	pc *pendingCall
}

// Wait blocks until the reply arrives, the connection dies, or ctx is
// done, whichever happens first.
func (f *Future) Wait(ctx context.Context) (*Message, error) {
	if f.pc == nil {
		return nil, nil
	}
	select {
	case <-f.pc.done:
		return f.pc.msg, f.pc.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send assigns msg a fresh serial, marshals it onto the wire, and
// returns a Future for its reply. A message flagged NO_REPLY_EXPECTED
// (or one that isn't a METHOD_CALL) gets an already-resolved Future with
// no value, per spec.md §4.6 "Send".
func (c *Conn) Send(ctx context.Context, msg *Message) (*Future, error) {
	// The write lock covers serial allocation as well as marshalling and
	// flushing, so serials reach the wire in increasing order.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	serial := c.serial.Add(1)
	msg.Serial = serial

	var pc *pendingCall
	wantReply := msg.Type == MessageMethodCall && msg.Flags&FlagNoReplyExpected == 0
	if wantReply {
		pc = &pendingCall{done: make(chan struct{})}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ConnectionClosed{Reason: c.fatalErr}
		}
		c.pending[serial] = pc
		c.mu.Unlock()
	}

	if err := c.writeMsg(msg); err != nil {
		if pc != nil {
			c.mu.Lock()
			delete(c.pending, serial)
			c.mu.Unlock()
		}
		return nil, err
	}

	return &Future{pc: pc}, nil
}

// writeMsg marshals msg into c.wbuf and flushes it. The caller must hold
// c.writeMu.
func (c *Conn) writeMsg(msg *Message) error {
	c.wbuf.Reset()
	if err := WriteMessage(c.wbuf, msg); err != nil {
		return err
	}

	bs := c.wbuf.Bytes()
	for len(bs) > 0 {
		n, err := c.t.Write(bs)
		if err != nil {
			c.failAll(ConnectionClosed{Reason: err})
			return err
		}
		bs = bs[n:]
	}
	return nil
}

// Call builds a METHOD_CALL for the given destination, path, interface
// and method, sends it, and blocks for the reply. An ERROR reply is
// translated to a CallError; a METHOD_RETURN reply is returned as-is.
func (c *Conn) Call(ctx context.Context, destination string, path ObjectPathValue, iface, method string, body Value) (*Message, error) {
	msg := &Message{
		Type:        MessageMethodCall,
		Version:     1,
		Path:        path,
		Interface:   iface,
		Member:      method,
		Destination: destination,
		Body:        body,
	}
	future, err := c.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	reply, err := future.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if reply.Type == MessageError {
		return reply, callErrorFromReply(reply)
	}
	return reply, nil
}

func callErrorFromReply(reply *Message) error {
	detail := ""
	switch b := reply.Body.(type) {
	case Str:
		detail = string(b)
	case Tuple:
		if len(b.Values) > 0 {
			if s, ok := b.Values[0].(Str); ok {
				detail = string(s)
			}
		}
	}
	return CallError{Name: reply.ErrorName, Detail: detail}
}

// EmitSignal sends a SIGNAL message from the given object path.
func (c *Conn) EmitSignal(ctx context.Context, path ObjectPathValue, iface, member string, body Value) error {
	msg := &Message{
		Type:      MessageSignal,
		Version:   1,
		Path:      path,
		Interface: iface,
		Member:    member,
		Body:      body,
	}
	_, err := c.Send(ctx, msg)
	return err
}

// readLoop is the dedicated background task described in spec.md §4.6:
// read once (blocking), parse the header, ensure the full body is
// buffered, dispatch. It owns c.rbuf exclusively and never runs
// concurrently with itself.
func (c *Conn) readLoop() {
	for {
		msg, err := c.readOneMessage()
		if err != nil {
			// net.ErrClosed means Close was called deliberately; anything
			// else is an unexpected protocol or transport failure worth a
			// log line, since it silently kills every future call on c.
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("dbus: read loop terminated: %v", err)
			}
			c.failAll(ConnectionClosed{Reason: err})
			return
		}
		c.dispatch(msg)
	}
}

// readOneMessage implements read_message_header / ensure_full_read /
// read_body: the fixed 16-byte preamble tells us the header-field-array
// length and the body length, which together give the exact byte count
// the rest of the message needs; readAtLeast grows c.rbuf and keeps
// reading from the socket until that many bytes are buffered.
func (c *Conn) readOneMessage() (*Message, error) {
	c.rbuf = c.rbuf[:0]
	if err := c.readAtLeast(16); err != nil {
		return nil, err
	}

	_, headerFieldsLen, bodyLen, err := peekPreamble(c.rbuf)
	if err != nil {
		return nil, err
	}
	// Header-field array length is itself 4-byte aligned from offset 12;
	// the array content follows immediately and the whole header block
	// is padded up to an 8-byte boundary before the body starts.
	headerEnd := align(16+int(headerFieldsLen), 8)
	total := headerEnd + int(bodyLen)

	if err := c.readAtLeast(total); err != nil {
		return nil, err
	}

	buf := wire.NewFixedBuffer(c.rbuf[:total])
	return ReadMessage(buf)
}

// readAtLeast grows c.rbuf by reading from the transport until it holds
// at least n bytes.
func (c *Conn) readAtLeast(n int) error {
	if len(c.rbuf) >= n {
		return nil
	}
	if cap(c.rbuf) < n {
		grown := make([]byte, len(c.rbuf), n)
		copy(grown, c.rbuf)
		c.rbuf = grown
	}
	tmp := make([]byte, 4096)
	for len(c.rbuf) < n {
		want := len(tmp)
		if remaining := n - len(c.rbuf); remaining < want {
			want = remaining
		}
		read, err := c.t.Read(tmp[:want])
		if read > 0 {
			c.rbuf = append(c.rbuf, tmp[:read]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("dbus: connection closed by peer: %w", io.EOF)
			}
			return err
		}
	}
	return nil
}

func peekPreamble(bs []byte) (order wire.ByteOrder, headerFieldsLen, bodyLen uint32, err error) {
	if len(bs) < 16 {
		return nil, 0, 0, wire.TruncatedMessage{Requested: 16, Available: len(bs)}
	}
	order, ok := wire.OrderForFlag(bs[0])
	if !ok {
		return nil, 0, 0, ProtocolError{Reason: fmt.Sprintf("invalid byte-order flag %q", bs[0])}
	}
	bodyLen = order.Uint32(bs[4:8])
	headerFieldsLen = order.Uint32(bs[12:16])
	return order, headerFieldsLen, bodyLen, nil
}

func align(n, a int) int {
	if r := n % a; r != 0 {
		return n + (a - r)
	}
	return n
}

// dispatch resolves a pending call keyed by reply-serial (if any), then
// always invokes the general handler, per spec.md §4.6.
func (c *Conn) dispatch(msg *Message) {
	if msg.Type == MessageMethodReturn || msg.Type == MessageError {
		c.mu.Lock()
		pc := c.pending[msg.ReplySerial]
		delete(c.pending, msg.ReplySerial)
		h := c.handler
		c.mu.Unlock()

		if pc != nil {
			pc.msg = msg
			close(pc.done)
		}
		if h != nil {
			h(msg)
		}
		return
	}

	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(msg)
	}
}
