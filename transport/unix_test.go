package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// fakeServer listens on a temp unix socket and responds to the first
// connection's handshake with resp, after draining whatever the client
// sent (the AUTH/DATA/NEGOTIATE_UNIX_FD/BEGIN pipeline).
func fakeServer(t *testing.T, resp string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bus.sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Net: "unix", Name: path})
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, _ := conn.Read(buf)
		_ = n // the client's AUTH pipeline; its exact framing isn't asserted here

		io.WriteString(conn, resp)
		// Keep the connection open briefly so DialUnix can reset its
		// deadline and return before the fake server tears down.
		time.Sleep(100 * time.Millisecond)
	}()

	return path
}

func TestHandshakeOK(t *testing.T) {
	path := fakeServer(t, "OK 1234deadbeef\r\nAGREE_UNIX_FD\r\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialUnix(ctx, path)
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	defer tr.Close()

	if got, want := tr.GUID(), "1234deadbeef"; got != want {
		t.Errorf("GUID() = %q, want %q", got, want)
	}
}

func TestHandshakeAgreeUnixFDBeforeOK(t *testing.T) {
	path := fakeServer(t, "AGREE_UNIX_FD\r\nOK cafef00d\r\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialUnix(ctx, path)
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	defer tr.Close()

	if got, want := tr.GUID(), "cafef00d"; got != want {
		t.Errorf("GUID() = %q, want %q", got, want)
	}
}

func TestHandshakeRejectedThenOK(t *testing.T) {
	path := fakeServer(t, "REJECTED EXTERNAL ANONYMOUS\r\nOK aaaa0000\r\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialUnix(ctx, path)
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}
	defer tr.Close()

	if got, want := tr.GUID(), "aaaa0000"; got != want {
		t.Errorf("GUID() = %q, want %q", got, want)
	}
}

func TestHandshakeRejectedWithNoFollowupOK(t *testing.T) {
	path := fakeServer(t, "REJECTED EXTERNAL ANONYMOUS\r\nERROR\r\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := DialUnix(ctx, path)
	var ae AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("DialUnix error = %v (%T), want AuthError", err, err)
	}
}

func TestHandshakeError(t *testing.T) {
	path := fakeServer(t, "ERROR \"unsupported mechanism\"\r\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := DialUnix(ctx, path)
	var fe FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("DialUnix error = %v (%T), want FramingError", err, err)
	}
}
