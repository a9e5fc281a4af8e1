// Package bridge describes the native capability surface a host application
// (DingTalk, Feishu/Lark) injects into the page's global scope.
//
// Bridges are callback-style: every capability takes a single options object
// whose function-valued fields (onSuccess/onFail, success/fail) are invoked by
// the host at some later point. Implementations of Host translate those calls
// to whatever actually runs the page: a goja VM, a live browser tab, or a fake.
package bridge

import (
	"errors"
	"fmt"
)

// ErrNoSuchMethod is returned when a dotted method path does not resolve to a
// function on the bridge object.
var ErrNoSuchMethod = errors.New("bridge method not found")

// Callback receives a JSON-shaped value from the host. Hosts call it with nil
// when the native side passed no argument.
type Callback func(v any)

// Args is the single options object passed to a native call. Values of type
// Callback are exposed to the host as functions; everything else must be
// JSON-shaped (strings, numbers, bools, slices, maps).
type Args map[string]any

// Object is a handle to one injected global such as window.dd.
type Object interface {
	// Call invokes the function at the dotted path (e.g.
	// "runtime.permission.requestAuthCode") with args as its only argument.
	// A nil error only means the call was issued; outcomes arrive through the
	// callbacks in args.
	Call(method string, args Args) error

	// Listen passes fn as the only argument of a registration function such
	// as ready or error.
	Listen(method string, fn Callback) error
}

// Host is the global execution context of the page.
type Host interface {
	// Global returns the injected object bound to name, if present.
	Global(name string) (Object, bool)

	// Location returns the page's current href.
	Location() string
}

// MethodError describes a bridge call the host refused or that threw
// synchronously.
type MethodError struct {
	Method string
	Err    error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("bridge call %s: %v", e.Method, e.Err)
}

func (e *MethodError) Unwrap() error { return e.Err }
