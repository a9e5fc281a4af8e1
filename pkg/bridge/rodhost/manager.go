// Package rodhost drives a real Chrome page through go-rod and exposes the
// page's injected globals as a bridge.Host. It is how the adapters are
// exercised against a live micro-app page outside the host application, with
// the page (or an injected shim) providing window.dd / window.h5sdk.
package rodhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const stableWait = 300 * time.Millisecond

// Manager handles the Chrome browser lifecycle and the pages opened as hosts.
type Manager struct {
	mu         sync.Mutex
	browser    *rod.Browser
	hosts      []*Host
	headless   bool
	controlURL string
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithHeadless sets headless mode (default true).
func WithHeadless(h bool) Option {
	return func(m *Manager) { m.headless = h }
}

// WithControlURL connects to an already running Chrome (its DevTools
// websocket URL) instead of launching one.
func WithControlURL(u string) Option {
	return func(m *Manager) { m.controlURL = u }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager with options.
func New(opts ...Option) *Manager {
	m := &Manager{
		headless: true,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start launches (or connects to) Chrome.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return fmt.Errorf("browser already running")
	}

	controlURL := m.controlURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(m.headless).
			Set("disable-gpu").
			Set("no-first-run").
			Set("no-default-browser-check")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch Chrome: %w", err)
		}
		controlURL = u
		m.logger.Info("Chrome launched", "cdp", controlURL, "headless", m.headless)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to Chrome: %w", err)
	}

	m.browser = b
	return nil
}

// Stop closes every host and the browser.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}
	for _, h := range m.hosts {
		h.close()
	}
	m.hosts = nil

	err := m.browser.Close()
	m.browser = nil
	return err
}

// Open navigates a new tab to pageURL, optionally evaluating shim scripts
// before any page script runs, and returns it as a bridge.Host.
func (m *Manager) Open(ctx context.Context, pageURL string, shims ...string) (*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil, fmt.Errorf("browser not running")
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	for _, js := range shims {
		if _, err := page.EvalOnNewDocument(js); err != nil {
			return nil, fmt.Errorf("install shim: %w", err)
		}
	}

	h, err := newHost(page, m.logger)
	if err != nil {
		_ = page.Close()
		return nil, err
	}

	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		h.close()
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.Context(ctx).WaitStable(stableWait); err != nil {
		h.close()
		return nil, fmt.Errorf("wait stable: %w", err)
	}

	m.hosts = append(m.hosts, h)
	return h, nil
}
