package rodhost

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/ysmood/gson"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// callJS issues one bridge call synchronously inside the page. Callbacks are
// replaced by stubs that forward their first argument to the exposed Go
// binding together with the callback id.
const callJS = `(binding, name, method, data, cbs, listen) => {
  let self = window[name];
  const parts = method.split(".");
  for (let i = 0; i < parts.length - 1 && self != null; i++) self = self[parts[i]];
  const fn = self == null ? undefined : self[parts[parts.length - 1]];
  if (typeof fn !== "function") return "missing";
  const stub = (id) => (v) => { window[binding]({ id: id, value: v === undefined ? null : v }); };
  let arg;
  if (listen) {
    arg = stub(cbs.fn);
  } else {
    arg = Object.assign({}, data);
    for (const key of Object.keys(cbs)) arg[key] = stub(cbs[key]);
  }
  try { fn.call(self, arg); } catch (e) { return "threw:" + (e && e.message ? e.message : String(e)); }
  return "ok";
}`

const probeJS = `(name) => typeof window[name] === "object" && window[name] !== null`

// Host is one Chrome page exposed as a bridge.Host.
type Host struct {
	page     *rod.Page
	logger   *slog.Logger
	binding  string
	stop     func() error
	dispatch *bridge.Dispatcher

	mu        sync.Mutex
	callbacks map[string]registered
	closed    bool
}

var _ bridge.Host = (*Host)(nil)

// registered is a Go callback waiting for the page. Callbacks of one Call
// share a group and are dropped together once any of them fires; Listen
// callbacks have no group and stay registered.
type registered struct {
	fn    bridge.Callback
	group string
}

func newHost(page *rod.Page, logger *slog.Logger) (*Host, error) {
	h := &Host{
		page:      page,
		logger:    logger,
		binding:   "__openplatform_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		dispatch:  bridge.NewDispatcher(),
		callbacks: make(map[string]registered),
	}

	stop, err := page.Expose(h.binding, h.deliver)
	if err != nil {
		h.dispatch.Close()
		return nil, fmt.Errorf("expose callback binding: %w", err)
	}
	h.stop = stop
	h.setupConsoleListener()
	return h, nil
}

// Global implements bridge.Host.
func (h *Host) Global(name string) (bridge.Object, bool) {
	res, err := h.page.Eval(probeJS, name)
	if err != nil {
		h.logger.Warn("probe global failed", "name", name, "error", err)
		return nil, false
	}
	if !res.Value.Bool() {
		return nil, false
	}
	return &pageObject{h: h, name: name}, true
}

// Location implements bridge.Host.
func (h *Host) Location() string {
	res, err := h.page.Eval(`() => location.href`)
	if err != nil {
		if info, ierr := h.page.Info(); ierr == nil && info != nil {
			return info.URL
		}
		return ""
	}
	return res.Value.Str()
}

// Close detaches the binding and closes the page.
func (h *Host) Close() error {
	h.close()
	return h.page.Close()
}

func (h *Host) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.callbacks = make(map[string]registered)
	h.mu.Unlock()

	h.dispatch.Close()
	if h.stop != nil {
		_ = h.stop()
	}
}

// deliver receives {id, value} from the page binding.
func (h *Host) deliver(j gson.JSON) (interface{}, error) {
	id := j.Get("id").Str()
	value := j.Get("value").Val()

	h.mu.Lock()
	cb, ok := h.callbacks[id]
	if ok && cb.group != "" {
		for k, other := range h.callbacks {
			if other.group == cb.group {
				delete(h.callbacks, k)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("callback for unknown id dropped", "id", id)
		return nil, nil
	}
	h.dispatch.Submit(func() { cb.fn(value) })
	return nil, nil
}

func (h *Host) register(fn bridge.Callback, group string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", fmt.Errorf("host closed")
	}
	id := uuid.NewString()
	h.callbacks[id] = registered{fn: fn, group: group}
	return id, nil
}

func (h *Host) forget(ids map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		delete(h.callbacks, id)
	}
}

func (h *Host) setupConsoleListener() {
	go h.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		var parts []string
		for _, arg := range e.Args {
			s := arg.Value.String()
			if s != "" && s != "null" {
				parts = append(parts, s)
			}
		}
		msg := strings.Join(parts, " ")
		switch e.Type {
		case proto.RuntimeConsoleAPICalledTypeWarning:
			h.logger.Warn("page console", "msg", msg)
		case proto.RuntimeConsoleAPICalledTypeError:
			h.logger.Error("page console", "msg", msg)
		default:
			h.logger.Debug("page console", "msg", msg)
		}
	})()
}

// pageObject is a global inside the page, addressed by name on every call.
type pageObject struct {
	h    *Host
	name string
}

// Call implements bridge.Object.
func (o *pageObject) Call(method string, args bridge.Args) error {
	data := make(map[string]any, len(args))
	cbs := make(map[string]string)
	group := uuid.NewString()
	for k, v := range args {
		fn, ok := v.(bridge.Callback)
		if !ok {
			data[k] = v
			continue
		}
		id, err := o.h.register(fn, group)
		if err != nil {
			o.h.forget(cbs)
			return err
		}
		cbs[k] = id
	}
	if err := o.eval(method, data, cbs, false); err != nil {
		o.h.forget(cbs)
		return err
	}
	return nil
}

// Listen implements bridge.Object.
func (o *pageObject) Listen(method string, fn bridge.Callback) error {
	id, err := o.h.register(fn, "")
	if err != nil {
		return err
	}
	cbs := map[string]string{"fn": id}
	if err := o.eval(method, nil, cbs, true); err != nil {
		o.h.forget(cbs)
		return err
	}
	return nil
}

func (o *pageObject) eval(method string, data map[string]any, cbs map[string]string, listen bool) error {
	// Round-trip through JSON so only plain values reach the page.
	raw, err := json.Marshal(data)
	if err != nil {
		return &bridge.MethodError{Method: o.qualified(method), Err: err}
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return &bridge.MethodError{Method: o.qualified(method), Err: err}
	}

	res, err := o.h.page.Eval(callJS, o.h.binding, o.name, method, plain, cbs, listen)
	if err != nil {
		return &bridge.MethodError{Method: o.qualified(method), Err: err}
	}
	switch status := res.Value.Str(); {
	case status == "ok":
		return nil
	case status == "missing":
		return &bridge.MethodError{Method: o.qualified(method), Err: bridge.ErrNoSuchMethod}
	default:
		return &bridge.MethodError{Method: o.qualified(method), Err: fmt.Errorf("%s", strings.TrimPrefix(status, "threw:"))}
	}
}

func (o *pageObject) qualified(method string) string {
	return o.name + "." + method
}
