package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/openplatform/internal/config"
)

func watchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep a session initialized, rebuilding it when the config or host scripts change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			shutdown := initTelemetry(cmd.Context(), cfg)
			defer shutdown()
			return runWatch(cmd.Context(), g, cfg)
		},
	}
}

func runWatch(ctx context.Context, g *globalFlags, cfg *config.Config) error {
	w, err := config.NewWatcher(g.resolveConfigPath(), cfg.Host.Scripts...)
	if err != nil {
		return err
	}

	reloads := make(chan *config.Config, 1)
	w.OnChange(func(next *config.Config) {
		g.apply(next)
		select {
		case reloads <- next:
		default:
			// a reload is already queued; replace it
			select {
			case <-reloads:
			default:
			}
			reloads <- next
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	s := startWatched(ctx, g, cfg)
	for {
		select {
		case <-ctx.Done():
			if s != nil {
				s.Close()
			}
			return nil
		case next := <-reloads:
			if s != nil {
				s.Close()
			}
			s = startWatched(ctx, g, next)
		}
	}
}

// startWatched opens and initializes a session, logging instead of failing
// so that a bad edit can be fixed while watching.
func startWatched(ctx context.Context, g *globalFlags, cfg *config.Config) *session {
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "error", err)
		return nil
	}
	initCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s, err := openSession(initCtx, cfg)
	if err != nil {
		slog.Error("open session failed", "error", err)
		return nil
	}
	a, err := s.adapter()
	if err != nil {
		slog.Error("no adapter", "error", err)
		return s
	}
	if err := s.ready(initCtx, a); err != nil {
		slog.Error("init failed", "platform", a.Kind().String(), "state", a.State().String(), "error", err)
		return s
	}
	slog.Info("bridge ready", "platform", a.Kind().String(), "businessAppId", a.BusinessAppID())
	return s
}
