// Package jsvm hosts bridge globals inside a goja JavaScript VM.
//
// A Runtime owns one goja.Runtime and serializes every access to it on a
// single loop goroutine. Host scripts (a DingTalk or Feishu shim, a recorded
// fixture, a test double) define window.dd / window.h5sdk / window.tt; the
// platform adapters then talk to them through the bridge.Host interface.
//
// Go callbacks passed in bridge.Args are delivered through a
// bridge.Dispatcher in the order JS invoked them, so a callback may issue
// further bridge calls without deadlocking the loop.
package jsvm

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// ErrClosed is returned by operations on a closed Runtime.
var ErrClosed = errors.New("jsvm: runtime closed")

// Runtime is a goja-backed bridge.Host. Safe for concurrent use.
type Runtime struct {
	vm     *goja.Runtime
	logger *slog.Logger

	jobs      chan func()
	done      chan struct{}
	closeOnce sync.Once

	callbacks *bridge.Dispatcher

	timerMu sync.Mutex
	timers  map[int64]*time.Timer
	timerID int64

	hrefMu sync.RWMutex
	href   string
}

var _ bridge.Host = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger console.* output is sent to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithLocation sets the initial location.href.
func WithLocation(href string) Option {
	return func(r *Runtime) { r.href = href }
}

// New starts a Runtime with window, location, console and timers installed.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		vm:     goja.New(),
		logger: slog.Default(),
		jobs:   make(chan func(), 64),
		done:   make(chan struct{}),
		timers: make(map[int64]*time.Timer),
	}
	for _, o := range opts {
		o(r)
	}

	r.callbacks = bridge.NewDispatcher()
	go r.loop()

	if err := r.do(r.installGlobals); err != nil {
		r.Close()
		return nil, fmt.Errorf("install globals: %w", err)
	}
	return r, nil
}

// RunScript evaluates src in the global scope.
func (r *Runtime) RunScript(name, src string) error {
	return r.do(func(vm *goja.Runtime) error {
		if _, err := vm.RunScript(name, src); err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}
		return nil
	})
}

// RunFile reads and evaluates a script file.
func (r *Runtime) RunFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return r.RunScript(path, string(src))
}

// SetLocation replaces location.href (and its derived fields).
func (r *Runtime) SetLocation(href string) error {
	r.hrefMu.Lock()
	r.href = href
	r.hrefMu.Unlock()
	return r.do(func(vm *goja.Runtime) error {
		return vm.Set("location", locationObject(vm, href))
	})
}

// Location implements bridge.Host.
func (r *Runtime) Location() string {
	r.hrefMu.RLock()
	defer r.hrefMu.RUnlock()
	return r.href
}

// Global implements bridge.Host. Only object values count as present.
func (r *Runtime) Global(name string) (bridge.Object, bool) {
	var obj *goja.Object
	err := r.do(func(vm *goja.Runtime) error {
		if o, ok := vm.GlobalObject().Get(name).(*goja.Object); ok {
			obj = o
		}
		return nil
	})
	if err != nil || obj == nil {
		return nil, false
	}
	return &jsObject{r: r, name: name, obj: obj}, true
}

// Close stops the loop and cancels pending timers. Pending callbacks are
// dropped.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.callbacks.Close()
		r.timerMu.Lock()
		for id, t := range r.timers {
			t.Stop()
			delete(r.timers, id)
		}
		r.timerMu.Unlock()
	})
	return nil
}

func (r *Runtime) loop() {
	for {
		select {
		case <-r.done:
			return
		case job := <-r.jobs:
			job()
		}
	}
}

// do runs fn on the loop goroutine and waits for it. Panics raised by goja
// (TypeErrors from Go-side conversions) come back as errors.
func (r *Runtime) do(fn func(vm *goja.Runtime) error) error {
	errCh := make(chan error, 1)
	job := func() {
		defer func() {
			if p := recover(); p != nil {
				errCh <- fmt.Errorf("jsvm: %v", p)
			}
		}()
		errCh <- fn(r.vm)
	}

	select {
	case r.jobs <- job:
	case <-r.done:
		return ErrClosed
	}
	select {
	case err := <-errCh:
		return err
	case <-r.done:
		return ErrClosed
	}
}

// post queues fn on the loop without waiting.
func (r *Runtime) post(fn func(vm *goja.Runtime)) {
	job := func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Warn("jsvm: async job panicked", "error", p)
			}
		}()
		fn(r.vm)
	}
	select {
	case r.jobs <- job:
	case <-r.done:
	}
}

// dispatch queues a Go callback on the dispatcher.
func (r *Runtime) dispatch(fn bridge.Callback, v any) {
	r.callbacks.Submit(func() { fn(v) })
}

func (r *Runtime) installGlobals(vm *goja.Runtime) error {
	global := vm.GlobalObject()
	if err := vm.Set("window", global); err != nil {
		return err
	}
	if err := vm.Set("globalThis", global); err != nil {
		return err
	}
	if err := vm.Set("location", locationObject(vm, r.Location())); err != nil {
		return err
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			r.logConsole(level, strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	if err := vm.Set("setTimeout", r.setTimeout); err != nil {
		return err
	}
	return vm.Set("clearTimeout", r.clearTimeout)
}

func (r *Runtime) logConsole(level, msg string) {
	switch level {
	case "warn":
		r.logger.Warn("host console", "msg", msg)
	case "error":
		r.logger.Error("host console", "msg", msg)
	case "debug":
		r.logger.Debug("host console", "msg", msg)
	default:
		r.logger.Info("host console", "msg", msg)
	}
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout: callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	r.timerMu.Lock()
	r.timerID++
	id := r.timerID
	r.timers[id] = time.AfterFunc(delay, func() {
		r.timerMu.Lock()
		_, live := r.timers[id]
		delete(r.timers, id)
		r.timerMu.Unlock()
		if !live {
			return
		}
		r.post(func(*goja.Runtime) {
			if _, err := fn(goja.Undefined()); err != nil {
				r.logger.Warn("jsvm: timer callback threw", "error", err)
			}
		})
	})
	r.timerMu.Unlock()
	return r.vm.ToValue(id)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	r.timerMu.Lock()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	r.timerMu.Unlock()
	return goja.Undefined()
}

func locationObject(vm *goja.Runtime, href string) *goja.Object {
	loc := vm.NewObject()
	_ = loc.Set("href", href)
	search, hash, pathname := "", "", ""
	if u, err := url.Parse(href); err == nil {
		if u.RawQuery != "" {
			search = "?" + u.RawQuery
		}
		if f := u.EscapedFragment(); f != "" {
			hash = "#" + f
		}
		pathname = u.EscapedPath()
	}
	_ = loc.Set("search", search)
	_ = loc.Set("hash", hash)
	_ = loc.Set("pathname", pathname)
	_ = loc.Set("toString", func(goja.FunctionCall) goja.Value { return vm.ToValue(href) })
	return loc
}
