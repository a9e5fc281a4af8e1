// Package bridgetest provides an in-memory bridge.Host whose objects record
// every call and let tests drive the registered callbacks.
package bridgetest

import (
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// Invocation is one recorded Call or Listen.
type Invocation struct {
	Method string
	Args   bridge.Args     // nil for Listen
	Fn     bridge.Callback // set for Listen
}

// Handler answers a Call synchronously, typically by invoking one of the
// callbacks in args. Returning an error makes Call fail.
type Handler func(args bridge.Args) error

// Object is a scripted bridge.Object.
type Object struct {
	mu        sync.Mutex
	calls     []Invocation
	handlers  map[string]Handler
	listeners map[string][]bridge.Callback
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{
		handlers:  make(map[string]Handler),
		listeners: make(map[string][]bridge.Callback),
	}
}

// Handle installs h for method. Calls to methods without a handler are only
// recorded.
func (o *Object) Handle(method string, h Handler) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[method] = h
	return o
}

// Call implements bridge.Object.
func (o *Object) Call(method string, args bridge.Args) error {
	o.mu.Lock()
	o.calls = append(o.calls, Invocation{Method: method, Args: args})
	h := o.handlers[method]
	o.mu.Unlock()

	if h == nil {
		return nil
	}
	return h(args)
}

// Listen implements bridge.Object.
func (o *Object) Listen(method string, fn bridge.Callback) error {
	if fn == nil {
		return fmt.Errorf("listen %s: nil callback", method)
	}
	o.mu.Lock()
	o.calls = append(o.calls, Invocation{Method: method, Fn: fn})
	o.listeners[method] = append(o.listeners[method], fn)
	o.mu.Unlock()
	return nil
}

// Fire invokes every callback registered through Listen(method) with v and
// returns how many there were.
func (o *Object) Fire(method string, v any) int {
	o.mu.Lock()
	fns := make([]bridge.Callback, len(o.listeners[method]))
	copy(fns, o.listeners[method])
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return len(fns)
}

// Listeners reports how many callbacks are registered for method.
func (o *Object) Listeners(method string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners[method])
}

// Calls returns a copy of the recorded invocations.
func (o *Object) Calls() []Invocation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Invocation, len(o.calls))
	copy(out, o.calls)
	return out
}

// CallsTo returns the recorded Calls (not Listens) of method.
func (o *Object) CallsTo(method string) []Invocation {
	var out []Invocation
	for _, c := range o.Calls() {
		if c.Method == method && c.Fn == nil {
			out = append(out, c)
		}
	}
	return out
}

// Host is a scripted bridge.Host.
type Host struct {
	mu      sync.Mutex
	href    string
	globals map[string]*Object
	lookups int
}

// NewHost creates a Host at href with no globals.
func NewHost(href string) *Host {
	return &Host{href: href, globals: make(map[string]*Object)}
}

// Set binds obj to name. A nil obj removes the binding.
func (h *Host) Set(name string, obj *Object) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	if obj == nil {
		delete(h.globals, name)
	} else {
		h.globals[name] = obj
	}
	return h
}

// SetLocation changes the href reported by Location.
func (h *Host) SetLocation(href string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.href = href
}

// Global implements bridge.Host.
func (h *Host) Global(name string) (bridge.Object, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lookups++
	obj, ok := h.globals[name]
	if !ok {
		return nil, false
	}
	return obj, true
}

// Location implements bridge.Host.
func (h *Host) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.href
}

// Lookups reports how many times Global was called.
func (h *Host) Lookups() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lookups
}

// Reply returns a Handler that invokes the callback at key (e.g. "onSuccess"
// or "fail") with v.
func Reply(key string, v any) Handler {
	return func(args bridge.Args) error {
		return invoke(args, key, v)
	}
}

func invoke(args bridge.Args, key string, v any) error {
	fn, ok := args[key].(bridge.Callback)
	if !ok {
		return fmt.Errorf("callback %q missing", key)
	}
	fn(v)
	return nil
}

// Invoke calls the callback stored at key in args, if any. Tests use it to
// settle a recorded call after the fact.
func Invoke(args bridge.Args, key string, v any) bool {
	return invoke(args, key, v) == nil
}
