package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/openplatform/internal/config"
	"github.com/nextlevelbuilder/openplatform/pkg/bridge"
	"github.com/nextlevelbuilder/openplatform/pkg/bridge/jsvm"
	"github.com/nextlevelbuilder/openplatform/pkg/bridge/rodhost"
	"github.com/nextlevelbuilder/openplatform/pkg/platform"
)

// session is one bridge host plus the factory bound to it.
type session struct {
	cfg     *config.Config
	host    bridge.Host
	factory *platform.Factory
	closers []func() error
}

// openSession builds the host the config selects and a factory over it.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg}

	var err error
	switch cfg.Host.Mode {
	case config.HostBrowser:
		err = s.openBrowser(ctx)
	default:
		err = s.openScript()
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.factory = platform.NewFactory(s.host,
		platform.WithLogger(slog.Default()),
		platform.WithSignatureFetcher(newFetcher(cfg.Signature)),
	)
	return s, nil
}

func (s *session) openScript() error {
	rt, err := jsvm.New(jsvm.WithLocation(s.cfg.PageURL), jsvm.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	s.closers = append(s.closers, rt.Close)
	s.host = rt

	for _, path := range s.cfg.Host.Scripts {
		if err := rt.RunFile(path); err != nil {
			return err
		}
		slog.Debug("host script loaded", "path", path)
	}
	return nil
}

func (s *session) openBrowser(ctx context.Context) error {
	shims := make([]string, 0, len(s.cfg.Host.Scripts))
	for _, path := range s.cfg.Host.Scripts {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read shim: %w", err)
		}
		shims = append(shims, string(src))
	}

	opts := []rodhost.Option{
		rodhost.WithHeadless(s.cfg.Host.IsHeadless()),
		rodhost.WithLogger(slog.Default()),
	}
	if s.cfg.Host.ControlURL != "" {
		opts = append(opts, rodhost.WithControlURL(s.cfg.Host.ControlURL))
	}
	mgr := rodhost.New(opts...)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	s.closers = append(s.closers, mgr.Stop)

	h, err := mgr.Open(ctx, s.cfg.PageURL, shims...)
	if err != nil {
		return err
	}
	s.host = h
	return nil
}

// adapter returns the forced platform's adapter or the detected one.
func (s *session) adapter() (platform.Adapter, error) {
	if s.cfg.Platform == "" {
		return s.factory.Instance()
	}
	kind, err := platform.ParseKind(s.cfg.Platform)
	if err != nil {
		return nil, err
	}
	return s.factory.InstanceOf(kind), nil
}

// ready initializes a and reports an error unless the bridge became ready.
func (s *session) ready(ctx context.Context, a platform.Adapter) error {
	ok, err := a.Init(ctx, &platform.Options{SignatureURL: s.cfg.SignatureURL})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s bridge reported an error during init", a.Kind())
	}
	return nil
}

// Close releases the host in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Debug("session close", "error", err)
		}
	}
	s.closers = nil
}

func newFetcher(sc config.SignatureConfig) *platform.SignatureFetcher {
	opts := []platform.FetcherOption{
		platform.WithClient(&http.Client{Timeout: time.Duration(sc.TimeoutMs) * time.Millisecond}),
		platform.WithFetcherLogger(slog.Default()),
	}
	if sc.RatePerMinute > 0 {
		opts = append(opts, platform.WithRateLimit(rate.Every(time.Minute/time.Duration(sc.RatePerMinute)), 1))
	}
	return platform.NewSignatureFetcher(opts...)
}
