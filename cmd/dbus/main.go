package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/go-dbus/client"
	"github.com/kr/pretty"
)

var globalArgs struct {
	UseSessionBus bool `flag:"session,Connect to session bus instead of system bus"`
}

func busConn(ctx context.Context) (*dbus.Conn, error) {
	if globalArgs.UseSessionBus {
		return dbus.SessionBus(ctx)
	}
	return dbus.SystemBus(ctx)
}

func main() {
	root := &command.C{
		Name:     "dbus",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "list-names",
				Usage: "list-names",
				Help:  "List bus names currently registered on the bus.",
				Run:   command.Adapt(runListNames),
			},
			{
				Name:  "introspect",
				Usage: "introspect peer [object] [interface]",
				Help: `Recursively introspect a peer and print its interfaces.

With one argument, walk every object the peer exposes starting at "/".
With two arguments, print only objects whose path matches the given
regular expression. With three, also print only interfaces whose name
matches the third argument as a regular expression.`,
				Run: runIntrospect,
			},
			{
				Name:  "ping",
				Usage: "ping peer",
				Help:  "Ping a peer.",
				Run:   command.Adapt(runPing),
			},
			{
				Name:  "call",
				Usage: "call peer object interface method",
				Help:  "Call a method with no arguments and print the reply body.",
				Run:   command.Adapt(runCall),
			},
			{
				Name:  "get-property",
				Usage: "get-property peer object interface property",
				Help:  "Read a single property.",
				Run:   command.Adapt(runGetProperty),
			},
			{
				Name:  "get-all-properties",
				Usage: "get-all-properties peer object interface",
				Help:  "Read every property an interface exposes.",
				Run:   command.Adapt(runGetAllProperties),
			},
			{
				Name:  "listen",
				Usage: "listen",
				Help:  "Print every message the bus delivers to this connection.",
				Run:   command.Adapt(runListen),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func runListNames(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), time.Minute)
	defer cancel()

	bus := conn.Peer("org.freedesktop.DBus").Object("/org/freedesktop/DBus").Interface("org.freedesktop.DBus")
	reply, err := bus.Call(ctx, "ListNames", nil)
	if err != nil {
		return fmt.Errorf("listing bus names: %w", err)
	}
	arr, ok := reply.Body.(dbus.Array)
	if !ok {
		return fmt.Errorf("ListNames returned unexpected body shape %T", reply.Body)
	}
	names := make([]string, 0, len(arr.Items))
	for _, item := range arr.Items {
		if s, ok := item.(dbus.Str); ok {
			names = append(names, string(s))
		}
	}
	slices.SortFunc(names, cmp.Compare)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runIntrospect(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	args := growTo(env.Args, 3)
	if args[0] == "" {
		return env.Usagef("introspect requires a peer name")
	}

	ctx, cancel := context.WithTimeout(env.Context(), time.Minute)
	defer cancel()

	objectFilter := args[1]
	if objectFilter == "" {
		objectFilter = ".*"
	}
	interfaceFilter := args[2]
	if interfaceFilter == "" {
		interfaceFilter = ".*"
	}

	peer := conn.Peer(args[0])
	var lastPath dbus.ObjectPathValue
	for oi, err := range walkInterfaces(ctx, peer, objectFilter, interfaceFilter) {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if oi.Object().Path() != lastPath {
			lastPath = oi.Object().Path()
			fmt.Println(lastPath)
		}
		fmt.Println(" ", oi.Description)
	}
	return nil
}

func runPing(env *command.Env, peer string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	if err := conn.Peer(peer).Ping(env.Context()); err != nil {
		return fmt.Errorf("pinging %s: %w", peer, err)
	}
	return nil
}

func runCall(env *command.Env, peer, object, iface, method string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	reply, err := conn.Peer(peer).Object(dbus.ObjectPathValue(object)).Interface(iface).Call(env.Context(), method, nil)
	if err != nil {
		return fmt.Errorf("calling %s.%s: %w", iface, method, err)
	}
	fmt.Printf("%# v\n", pretty.Formatter(reply.Body))
	return nil
}

func runGetProperty(env *command.Env, peer, object, iface, prop string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	v, err := conn.Peer(peer).Object(dbus.ObjectPathValue(object)).Interface(iface).GetProperty(env.Context(), prop)
	if err != nil {
		return fmt.Errorf("getting %s.%s: %w", iface, prop, err)
	}
	fmt.Printf("%# v\n", pretty.Formatter(v.Value))
	return nil
}

func runGetAllProperties(env *command.Env, peer, object, iface string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	d, err := conn.Peer(peer).Object(dbus.ObjectPathValue(object)).Interface(iface).GetAllProperties(env.Context())
	if err != nil {
		return fmt.Errorf("getting all properties of %s: %w", iface, err)
	}
	for _, ent := range d.Entries {
		fmt.Printf("%v: %# v\n", ent.Key, pretty.Formatter(ent.Value))
	}
	return nil
}

func runListen(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	conn.SetHandler(func(msg *dbus.Message) {
		fmt.Printf("%s %s.%s from %s:\n  %# v\n\n", msg.Type, msg.Interface, msg.Member, msg.Sender, pretty.Formatter(msg.Body))
	})

	fmt.Println("Listening...")
	<-env.Context().Done()
	return nil
}
