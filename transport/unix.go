// Package transport implements the Unix-domain socket transport and SASL
// EXTERNAL handshake that a DBus [Conn] is built on (spec.md §4.5).
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/mds/queue"
	"golang.org/x/sys/unix"
)

// Transport is a raw, already-authenticated DBus connection: a byte
// stream plus the (negotiated-but-unused-in-this-implementation) ability
// to carry file descriptors as ancillary data, per spec.md's non-goal of
// actual FD exchange.
type Transport interface {
	io.ReadWriteCloser

	// GUID is the server GUID extracted from the handshake's OK line.
	GUID() string
}

// DialUnix connects to the bus at the given filesystem path and runs the
// SASL EXTERNAL handshake described in spec.md §4.5.
func DialUnix(ctx context.Context, path string) (Transport, error) {
	addr := &net.UnixAddr{Net: "unix", Name: path}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, err
	}

	ret := &unixTransport{
		conn: conn,
		fds:  queue.New[*os.File](),
	}
	ret.buf = bufio.NewReader(funcReader(ret.readToBuf))

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := conn.SetDeadline(deadline); err != nil {
		ret.Close()
		return nil, err
	}
	if err := ret.handshake(); err != nil {
		ret.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

// unixTransport is a Transport that runs over a Unix domain socket.
type unixTransport struct {
	conn *net.UnixConn
	oob  [512]byte
	buf  *bufio.Reader
	fds  *queue.Queue[*os.File]
	guid string
}

func (u *unixTransport) Read(bs []byte) (int, error)  { return u.buf.Read(bs) }
func (u *unixTransport) Write(bs []byte) (int, error) { return u.conn.Write(bs) }
func (u *unixTransport) GUID() string                 { return u.guid }

func (u *unixTransport) Close() error {
	u.fds.Each(func(f *os.File) bool {
		f.Close()
		return true
	})
	u.fds.Clear()
	return u.conn.Close()
}

// AuthError is returned by DialUnix when the SASL handshake completes
// without ever receiving an OK response. Conn wraps this as
// [dbus.AuthenticationFailed].
type AuthError struct{ Reason string }

func (e AuthError) Error() string { return e.Reason }

func authFailed(reason string) error { return AuthError{reason} }

// FramingError is returned by DialUnix when the handshake's line framing
// is itself malformed (an ERROR line, or a line that matches none of the
// expected SASL commands). Conn wraps this as [dbus.ProtocolError].
type FramingError struct{ Reason string }

func (e FramingError) Error() string { return e.Reason }

func protoErr(reason string) error { return FramingError{reason} }

// handshake performs the SASL EXTERNAL sequence of spec.md §4.5: a
// leading NUL, then AUTH EXTERNAL / DATA / NEGOTIATE_UNIX_FD / BEGIN
// pipelined as one write (the bus tolerates the queued commands provided
// they appear in this order), followed by scanning the replies for OK
// (extracting the GUID), an optional AGREE_UNIX_FD, and bailing out on
// ERROR or REJECTED.
func (u *unixTransport) handshake() error {
	uid := os.Getuid()
	uidHex := hexEncode(strconv.Itoa(uid))

	var out strings.Builder
	out.WriteByte(0)
	fmt.Fprintf(&out, "AUTH EXTERNAL %s\r\n", uidHex)
	out.WriteString("DATA\r\n")
	out.WriteString("NEGOTIATE_UNIX_FD\r\n")
	out.WriteString("BEGIN\r\n")
	if _, err := io.WriteString(u.conn, out.String()); err != nil {
		return err
	}

	for {
		line, err := u.buf.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading handshake response: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "OK "):
			u.guid = strings.TrimSpace(strings.TrimPrefix(line, "OK "))
			// BEGIN was already sent; everything after this point in the
			// buffered reader is the start of the binary message stream,
			// and bufio.Reader preserves it for us.
			return nil
		case line == "AGREE_UNIX_FD":
			// May arrive before or after OK depending on server
			// implementation; either order is acceptable.
			continue
		case strings.HasPrefix(line, "REJECTED"):
			next, err := u.buf.ReadString('\n')
			if err != nil {
				return authFailed(fmt.Sprintf("server said %q, then: %v", line, err))
			}
			next = strings.TrimRight(next, "\r\n")
			if !strings.HasPrefix(next, "OK ") {
				return authFailed(fmt.Sprintf("server rejected EXTERNAL: %q", line))
			}
			u.guid = strings.TrimSpace(strings.TrimPrefix(next, "OK "))
			return nil
		case strings.HasPrefix(line, "ERROR"):
			return protoErr(fmt.Sprintf("server reported handshake error: %q", line))
		default:
			return protoErr(fmt.Sprintf("unexpected handshake line %q", line))
		}
	}
}

func hexEncode(s string) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(s)*2)
	for i := 0; i < len(s); i++ {
		out[2*i] = digits[s[i]>>4]
		out[2*i+1] = digits[s[i]&0xf]
	}
	return string(out)
}

func (u *unixTransport) readToBuf(bs []byte) (int, error) {
	n, oobn, flags, _, err := u.conn.ReadMsgUnix(bs, u.oob[:])
	if flags&unix.MSG_CTRUNC != 0 {
		u.Close()
		return 0, errors.New("control message truncated")
	}
	if oobn > 0 {
		if oobErr := u.parseFDs(u.oob[:oobn]); oobErr != nil {
			u.Close()
			return 0, oobErr
		}
	}
	if err != nil {
		u.Close()
		return 0, err
	}
	return n, nil
}

func (u *unixTransport) parseFDs(oob []byte) error {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return err
	}
	// Accumulate errors and keep parsing on errors, so we extract and
	// close every fd the kernel handed us even if one control message is
	// malformed.
	var errs []error
	for _, scm := range scms {
		if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&scm)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing unix rights: %w", err))
			continue
		}
		for _, fd := range fds {
			f := os.NewFile(uintptr(fd), "")
			if f == nil {
				errs = append(errs, fmt.Errorf("invalid file descriptor %d received on dbus socket", fd))
				continue
			}
			u.fds.Add(f)
		}
	}
	if len(errs) != 0 {
		return errors.Join(errs...)
	}
	return nil
}

type funcReader func([]byte) (int, error)

func (f funcReader) Read(bs []byte) (int, error) { return f(bs) }
