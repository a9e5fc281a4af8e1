// Package platform adapts the DingTalk and Feishu JS bridges to one blocking,
// context-aware API, and picks the right adapter for the current page.
//
// Typical use:
//
//	f := platform.NewFactory(host)
//	a, err := f.Instance()
//	if err != nil { ... }
//	if _, err := a.Init(ctx, &platform.Options{SignatureURL: signURL}); err != nil { ... }
//	res, err := a.AuthCode(ctx)
package platform

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
	"github.com/nextlevelbuilder/openplatform/pkg/urlctx"
)

const tracerName = "github.com/nextlevelbuilder/openplatform/pkg/platform"

// Adapter is the capability contract both platforms implement.
type Adapter interface {
	Kind() Kind
	// Key is the query name of the platform id: "corpId" or "appId".
	Key() string
	BusinessAppID() string
	IsReady() bool
	State() State
	// Options returns what the last Init was called with.
	Options() *Options

	// Init performs the bridge handshake and blocks until the bridge reports
	// ready (true, nil) or error (false, *BridgeError).
	Init(ctx context.Context, opts *Options) (bool, error)
	AuthCode(ctx context.Context) (*AuthResult, error)
	// ScanCode opens the scanner. Empty types selects the platform default.
	ScanCode(ctx context.Context, types []ScanType, barCodeInput bool) (ScanResult, error)
	// Share opens the share panel. debug skips the readiness check.
	Share(ctx context.Context, params ShareParams, debug bool) (any, error)
}

// Option configures adapters and the factory.
type Option func(*settings)

type settings struct {
	logger   *slog.Logger
	fetcher  *SignatureFetcher
	tracer   trace.Tracer
	detector Detector
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithSignatureFetcher replaces the default signature fetcher.
func WithSignatureFetcher(f *SignatureFetcher) Option {
	return func(s *settings) { s.fetcher = f }
}

// WithTracerProvider sets where spans go (default: the global provider).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracer = tp.Tracer(tracerName) }
}

// WithDetector replaces DefaultDetector. Only the factory uses it.
func WithDetector(d Detector) Option {
	return func(s *settings) { s.detector = d }
}

func newSettings(opts []Option) *settings {
	s := &settings{detector: DefaultDetector}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fetcher == nil {
		s.fetcher = NewSignatureFetcher(WithFetcherLogger(s.logger))
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// core holds the state and plumbing shared by both adapters.
type core struct {
	kind    Kind
	key     string
	ids     urlctx.Identifiers
	logger  *slog.Logger
	fetcher *SignatureFetcher
	tracer  trace.Tracer

	// initSem serializes Init so that overlapping calls never race on the
	// same settlement; holders release it once their Init settles.
	initSem chan struct{}

	mu         sync.RWMutex
	state      State
	options    *Options
	platformID string // corpId or appId sent with requestAuthCode
}

func newCore(kind Kind, key string, host bridge.Host, s *settings) *core {
	var ids urlctx.Identifiers
	if host != nil {
		ids = urlctx.Resolve(host.Location(), key)
	} else {
		ids = urlctx.Identifiers{Key: key}
	}
	return &core{
		kind:       kind,
		key:        key,
		ids:        ids,
		logger:     s.logger.With("platform", kind.String()),
		fetcher:    s.fetcher,
		tracer:     s.tracer,
		initSem:    make(chan struct{}, 1),
		platformID: ids.Value,
	}
}

func (c *core) Kind() Kind            { return c.kind }
func (c *core) Key() string           { return c.key }
func (c *core) BusinessAppID() string { return c.ids.BusinessAppID }

func (c *core) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *core) IsReady() bool { return c.State() == StateReady }

func (c *core) Options() *Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options
}

// PlatformID returns the corpId/appId the adapter authenticates against.
func (c *core) PlatformID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.platformID
}

func (c *core) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *core) setPlatformID(id string) {
	c.mu.Lock()
	c.platformID = id
	c.mu.Unlock()
}

func (c *core) requireReady() error {
	if !c.IsReady() {
		return notReady(c.kind)
	}
	return nil
}

// handshake runs the shared Init flow. configure performs the platform's
// signature fetch and config call; it is skipped without a SignatureURL.
// lifecycle is the object exposing ready/error.
func (c *core) handshake(ctx context.Context, opts *Options, lifecycle bridge.Object,
	configure func(ctx context.Context, signatureURL string) error) (ok bool, err error) {

	ctx, span := c.startSpan(ctx, "init")
	defer func() { endSpan(span, err) }()

	select {
	case c.initSem <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-c.initSem }()

	c.mu.Lock()
	c.options = opts
	prev := c.state
	if prev != StateReady {
		c.state = StatePending
	}
	c.mu.Unlock()

	restore := func() {
		c.mu.Lock()
		if c.state == StatePending {
			c.state = prev
		}
		c.mu.Unlock()
	}

	if lifecycle == nil {
		restore()
		return false, unavailable(c.kind)
	}

	if opts != nil && opts.SignatureURL != "" {
		span.SetAttributes(attribute.Bool("openplatform.signed", true))
		if err := configure(ctx, opts.SignatureURL); err != nil {
			restore()
			return false, err
		}
	}

	out := newSettlement[bool]()
	if err := lifecycle.Listen("ready", func(any) {
		c.setState(StateReady)
		c.logger.Info("bridge ready")
		out.resolve(true)
	}); err != nil {
		restore()
		return false, err
	}
	if err := lifecycle.Listen("error", func(v any) {
		c.setState(StateFailed)
		c.logger.Warn("bridge error", "payload", v)
		out.reject(&BridgeError{Kind: c.kind, Method: "error", Payload: v})
	}); err != nil {
		restore()
		return false, err
	}

	ok, err = out.wait(ctx)
	if err != nil && ctx.Err() != nil {
		restore()
	}
	return ok, err
}

// invoke issues one callback-style bridge call and blocks until either of the
// two callbacks fires or ctx ends.
func (c *core) invoke(ctx context.Context, obj bridge.Object, method string, args bridge.Args,
	okKey, failKey string) (any, error) {

	callID := uuid.NewString()
	out := newSettlement[any]()
	args[okKey] = bridge.Callback(func(v any) { out.resolve(v) })
	args[failKey] = bridge.Callback(func(v any) {
		out.reject(&BridgeError{Kind: c.kind, Method: method, Payload: v})
	})

	c.logger.Debug("bridge call", "method", method, "call_id", callID)
	if err := obj.Call(method, args); err != nil {
		return nil, err
	}
	v, err := out.wait(ctx)
	if err != nil {
		c.logger.Debug("bridge call failed", "method", method, "call_id", callID, "error", err)
	}
	return v, err
}

func (c *core) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "openplatform."+op,
		trace.WithAttributes(
			attribute.String("openplatform.kind", c.kind.String()),
			attribute.String("openplatform.business_app_id", c.ids.BusinessAppID),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// settlement is a single-assignment result. The first resolve or reject wins;
// later ones are dropped.
type settlement[T any] struct {
	once sync.Once
	ch   chan outcome[T]
}

type outcome[T any] struct {
	val T
	err error
}

func newSettlement[T any]() *settlement[T] {
	return &settlement[T]{ch: make(chan outcome[T], 1)}
}

func (s *settlement[T]) resolve(v T) {
	s.once.Do(func() { s.ch <- outcome[T]{val: v} })
}

func (s *settlement[T]) reject(err error) {
	s.once.Do(func() { s.ch <- outcome[T]{err: err} })
}

func (s *settlement[T]) wait(ctx context.Context) (T, error) {
	select {
	case o := <-s.ch:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// asMap copies a bridge payload into a fresh map so stamping fields never
// mutates host-owned values.
func asMap(v any) map[string]any {
	out := make(map[string]any)
	if m, ok := v.(map[string]any); ok {
		for k, val := range m {
			out[k] = val
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func authResult(payload any, businessAppID string) *AuthResult {
	raw := asMap(payload)
	raw[urlctx.BusinessAppIDKey] = businessAppID
	return &AuthResult{
		Code:          stringField(raw, "code"),
		BusinessAppID: businessAppID,
		Raw:           raw,
	}
}
