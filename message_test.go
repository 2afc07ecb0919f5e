package dbus

import (
	"testing"

	"github.com/go-dbus/client/wire"
	"github.com/google/go-cmp/cmp"
)

func writeAndRead(t *testing.T, msg *Message) *Message {
	t.Helper()
	buf := wire.NewBuffer(256)
	if err := WriteMessage(buf, msg); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	buf.Flip()
	got, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return got
}

func TestMessageRoundTripEmptyBody(t *testing.T) {
	msg := &Message{
		Type:        MessageMethodReturn,
		Version:     1,
		Serial:      7,
		ReplySerial: 3,
		Sender:      "org.freedesktop.DBus",
		Destination: ":1.42",
	}
	got := writeAndRead(t, msg)
	if got.Body != nil {
		t.Errorf("Body = %#v, want nil", got.Body)
	}
	if diff := cmp.Diff(msg.ReplySerial, got.ReplySerial); diff != "" {
		t.Errorf("ReplySerial mismatch (-want +got):\n%s", diff)
	}
	if got.Sender != msg.Sender || got.Destination != msg.Destination {
		t.Errorf("Sender/Destination = %q/%q, want %q/%q", got.Sender, got.Destination, msg.Sender, msg.Destination)
	}
}

func TestMessageRoundTripWithBody(t *testing.T) {
	msg := &Message{
		Type:        MessageMethodCall,
		Version:     1,
		Serial:      1,
		Path:        "/org/freedesktop/DBus",
		Interface:   "org.freedesktop.DBus",
		Member:      "Hello",
		Destination: "org.freedesktop.DBus",
		Body: Struct{Fields: []Value{
			Str("hello"),
			Uint32(42),
			Array{Elem: TypeString, Items: []Value{Str("a"), Str("b")}},
		}},
	}
	got := writeAndRead(t, msg)
	if !ValuesEqual(msg.Body, got.Body) {
		t.Errorf("Body round-tripped as %#v, want %#v", got.Body, msg.Body)
	}
	if got.Path != msg.Path || got.Interface != msg.Interface || got.Member != msg.Member || got.Destination != msg.Destination {
		t.Errorf("header fields did not round-trip: got %+v", got)
	}
}

func TestMessageValid(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"zero serial", Message{Type: MessageMethodCall}, true},
		{"method call missing member", Message{Type: MessageMethodCall, Serial: 1, Path: "/", Destination: "x"}, true},
		{"valid method call", Message{Type: MessageMethodCall, Serial: 1, Path: "/", Member: "M", Destination: "x"}, false},
		{"method return missing reply serial", Message{Type: MessageMethodReturn, Serial: 1}, true},
		{"valid method return", Message{Type: MessageMethodReturn, Serial: 1, ReplySerial: 1}, false},
		{"error missing name", Message{Type: MessageError, Serial: 1, ReplySerial: 1}, true},
		{"valid error", Message{Type: MessageError, Serial: 1, ReplySerial: 1, ErrorName: "org.x.Error"}, false},
		{"signal missing interface", Message{Type: MessageSignal, Serial: 1, Path: "/", Member: "M"}, true},
		{"valid signal", Message{Type: MessageSignal, Serial: 1, Path: "/", Interface: "org.x", Member: "M"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Valid()
			if (err != nil) != tc.wantErr {
				t.Errorf("Valid() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWantReply(t *testing.T) {
	call := &Message{Type: MessageMethodCall}
	if !call.WantReply() {
		t.Error("plain METHOD_CALL should want a reply")
	}
	call.Flags = FlagNoReplyExpected
	if call.WantReply() {
		t.Error("METHOD_CALL with NO_REPLY_EXPECTED should not want a reply")
	}
	signal := &Message{Type: MessageSignal}
	if signal.WantReply() {
		t.Error("SIGNAL should never want a reply")
	}
}
