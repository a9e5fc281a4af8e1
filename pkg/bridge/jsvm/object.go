package jsvm

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// jsObject is a handle to a global captured by Runtime.Global.
type jsObject struct {
	r    *Runtime
	name string
	obj  *goja.Object
}

// Call implements bridge.Object.
func (o *jsObject) Call(method string, args bridge.Args) error {
	return o.r.do(func(vm *goja.Runtime) error {
		this, fn, err := o.resolve(method)
		if err != nil {
			return err
		}
		if _, err := fn(this, o.r.toJS(vm, args)); err != nil {
			return &bridge.MethodError{Method: o.qualified(method), Err: err}
		}
		return nil
	})
}

// Listen implements bridge.Object.
func (o *jsObject) Listen(method string, fn bridge.Callback) error {
	return o.r.do(func(vm *goja.Runtime) error {
		this, target, err := o.resolve(method)
		if err != nil {
			return err
		}
		if _, err := target(this, o.r.wrapCallback(vm, fn)); err != nil {
			return &bridge.MethodError{Method: o.qualified(method), Err: err}
		}
		return nil
	})
}

// resolve walks a dotted path from the captured object. Must run on the loop.
func (o *jsObject) resolve(method string) (*goja.Object, goja.Callable, error) {
	parts := strings.Split(method, ".")
	this := o.obj
	for _, p := range parts[:len(parts)-1] {
		next, ok := this.Get(p).(*goja.Object)
		if !ok {
			return nil, nil, &bridge.MethodError{Method: o.qualified(method), Err: bridge.ErrNoSuchMethod}
		}
		this = next
	}
	fn, ok := goja.AssertFunction(this.Get(parts[len(parts)-1]))
	if !ok {
		return nil, nil, &bridge.MethodError{Method: o.qualified(method), Err: bridge.ErrNoSuchMethod}
	}
	return this, fn, nil
}

func (o *jsObject) qualified(method string) string {
	return fmt.Sprintf("%s.%s", o.name, method)
}

// toJS converts Args into a plain JS object; Callback values become functions.
func (r *Runtime) toJS(vm *goja.Runtime, args bridge.Args) goja.Value {
	obj := vm.NewObject()
	for k, v := range args {
		if cb, ok := v.(bridge.Callback); ok {
			_ = obj.Set(k, r.wrapCallback(vm, cb))
			continue
		}
		_ = obj.Set(k, toJSValue(vm, v))
	}
	return obj
}

// toJSValue deep-copies slices into real JS arrays so host code can use
// Array methods on them.
func toJSValue(vm *goja.Runtime, v any) goja.Value {
	switch val := v.(type) {
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = toJSValue(vm, item)
		}
		return vm.NewArray(items...)
	case []string:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return vm.NewArray(items...)
	default:
		return vm.ToValue(v)
	}
}

func (r *Runtime) wrapCallback(vm *goja.Runtime, fn bridge.Callback) goja.Value {
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		var v any
		if len(call.Arguments) > 0 {
			v = call.Arguments[0].Export()
		}
		r.dispatch(fn, v)
		return goja.Undefined()
	})
}
