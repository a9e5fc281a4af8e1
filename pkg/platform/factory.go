package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
)

// constructor builds an adapter bound to the factory's host.
type constructor func() Adapter

// Factory selects and caches the adapter for the page's host application.
// Each kind is constructed at most once per Factory. Safe for concurrent use.
type Factory struct {
	host     bridge.Host
	detector Detector
	logger   *slog.Logger

	mu           sync.Mutex
	constructors map[Kind]constructor
	adapters     map[Kind]Adapter
}

// NewFactory creates a Factory over host with both platforms registered.
// Adapters are built lazily on first request.
func NewFactory(host bridge.Host, opts ...Option) *Factory {
	s := newSettings(opts)
	f := &Factory{
		host:     host,
		detector: s.detector,
		logger:   s.logger,
		adapters: make(map[Kind]Adapter),
	}
	f.constructors = map[Kind]constructor{
		KindDingTalk: func() Adapter { return NewDingTalk(host, opts...) },
		KindFeishu:   func() Adapter { return NewFeishu(host, opts...) },
	}
	return f
}

// Detect reports the platform the host belongs to.
func (f *Factory) Detect() (Kind, error) {
	d := f.detector(f.host)
	if !d.OK {
		return 0, ErrUnknownPlatform
	}
	return d.Kind, nil
}

// Instance returns the adapter for the detected platform, or
// ErrUnknownPlatform when the host carries no known bridge.
func (f *Factory) Instance() (Adapter, error) {
	kind, err := f.Detect()
	if err != nil {
		return nil, err
	}
	a := f.InstanceOf(kind)
	if a == nil {
		return nil, fmt.Errorf("%s: no adapter registered: %w", kind, ErrUnknownPlatform)
	}
	return a, nil
}

// InstanceOf returns the adapter for kind, skipping detection. It returns nil
// when kind is not registered.
func (f *Factory) InstanceOf(kind Kind) Adapter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.adapters[kind]; ok {
		return a
	}
	build, ok := f.constructors[kind]
	if !ok {
		return nil
	}
	a := build()
	f.adapters[kind] = a
	f.logger.Debug("platform adapter created", "platform", kind.String(), "business_app_id", a.BusinessAppID())
	return a
}
