package dbus

import (
	"context"
	"testing"
	"time"
)

func TestPeerGetNameOwner(t *testing.T) {
	c, bus := newTestConn(t)

	done := make(chan struct{})
	var owner string
	var err error
	go func() {
		owner, err = c.Peer("org.example.Service").GetNameOwner(context.Background())
		close(done)
	}()

	req := readFullMessage(t, bus)
	if req.Member != "GetNameOwner" || req.Destination != "org.freedesktop.DBus" {
		t.Fatalf("bus observed unexpected request: %+v", req)
	}
	if s, ok := req.Body.(Str); !ok || string(s) != "org.example.Service" {
		t.Fatalf("request body = %#v, want Str(\"org.example.Service\")", req.Body)
	}
	writeMessage(t, bus, &Message{
		Type:        MessageMethodReturn,
		Version:     1,
		Serial:      1,
		ReplySerial: req.Serial,
		Body:        Str(":1.7"),
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("GetNameOwner did not return")
	}
	if err != nil {
		t.Fatalf("GetNameOwner: %v", err)
	}
	if owner != ":1.7" {
		t.Errorf("GetNameOwner() = %q, want \":1.7\"", owner)
	}
}

func TestConnFeatures(t *testing.T) {
	c, bus := newTestConn(t)

	done := make(chan struct{})
	var features []string
	var err error
	go func() {
		features, err = c.Features(context.Background())
		close(done)
	}()

	req := readFullMessage(t, bus)
	if req.Member != "Get" || req.Interface != "org.freedesktop.DBus.Properties" {
		t.Fatalf("bus observed unexpected request: %+v", req)
	}
	writeMessage(t, bus, &Message{
		Type:        MessageMethodReturn,
		Version:     1,
		Serial:      1,
		ReplySerial: req.Serial,
		Body: Variant{
			Type:  ArrayOf(TypeString),
			Value: Array{Elem: TypeString, Items: []Value{Str("HeaderFiltering")}},
		},
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Features did not return")
	}
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	if len(features) != 1 || features[0] != "HeaderFiltering" {
		t.Errorf("Features() = %v, want [HeaderFiltering]", features)
	}
}
