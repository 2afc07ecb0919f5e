package main

import (
	"context"
	"iter"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/creachadair/mds/heapq"
	"github.com/go-dbus/client"
)

type objectInterface struct {
	dbus.Interface
	Description *dbus.InterfaceDescription
}

// walkInterfaces recursively introspects peer starting at "/", yielding
// every (object, interface) pair whose object path and interface name
// match the given filters. The filters are regular expressions matched
// anywhere in the path or name; every object is still walked, and only
// the output is filtered.
func walkInterfaces(ctx context.Context, peer dbus.Peer, objectFilter, interfaceFilter string) iter.Seq2[objectInterface, error] {
	return func(yield func(objectInterface, error) bool) {
		om, err := regexp.Compile(objectFilter)
		if err != nil {
			yield(objectInterface{}, err)
			return
		}
		im, err := regexp.Compile(interfaceFilter)
		if err != nil {
			yield(objectInterface{}, err)
			return
		}

		objs := heapq.New(func(a, b dbus.ObjectPathValue) int {
			return strings.Compare(string(a), string(b))
		})
		objs.Add("/")
		seen := map[dbus.ObjectPathValue]bool{}
		for !objs.IsEmpty() {
			path, _ := objs.Pop()
			if seen[path] {
				continue
			}
			seen[path] = true

			obj := peer.Object(path)
			desc, err := obj.Describe(ctx)
			if err != nil {
				if !yield(objectInterface{}, err) {
					return
				}
				continue
			}
			for _, child := range desc.Children {
				objs.Add(joinPath(path, child))
			}
			if !om.MatchString(string(path)) {
				continue
			}
			for _, k := range slices.Sorted(maps.Keys(desc.Interfaces)) {
				if !im.MatchString(k) {
					continue
				}
				yield(objectInterface{obj.Interface(k), desc.Interfaces[k]}, nil)
			}
		}
	}
}

func joinPath(parent dbus.ObjectPathValue, child string) dbus.ObjectPathValue {
	if parent == "/" {
		return dbus.ObjectPathValue("/" + child)
	}
	return dbus.ObjectPathValue(string(parent) + "/" + child)
}

func growTo(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}
