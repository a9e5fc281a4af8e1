// Package cmd implements the openplatform command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/openplatform/internal/config"
)

// Version is the CLI version, overridable with -ldflags.
var Version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath   string
	verbose      bool
	platform     string
	pageURL      string
	signatureURL string
	timeout      time.Duration
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "openplatform",
		Short:         "Drive DingTalk and Feishu page bridges from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default $"+config.EnvConfigPath+" or "+config.DefaultConfigPath+")")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&g.platform, "platform", "", "force platform (dingtalk|feishu), skipping detection")
	pf.StringVar(&g.pageURL, "page-url", "", "page location (overrides pageUrl)")
	pf.StringVar(&g.signatureURL, "signature-url", "", "JSAPI signature endpoint (overrides signatureUrl)")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "limit for each bridge operation")

	root.AddCommand(detectCmd(g))
	root.AddCommand(initCmd(g))
	root.AddCommand(authCmd(g))
	root.AddCommand(scanCmd(g))
	root.AddCommand(shareCmd(g))
	root.AddCommand(qrCmd(g))
	root.AddCommand(watchCmd(g))
	root.AddCommand(configCmd(g))
	root.AddCommand(doctorCmd(g))
	root.AddCommand(onboardCmd(g))
	return root
}

func (g *globalFlags) resolveConfigPath() string {
	return config.ResolvePath(g.configPath)
}

// load reads the config, applies flag overrides and installs the logger.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.resolveConfigPath())
	if err != nil {
		return nil, err
	}
	g.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log, g.verbose))
	return cfg, nil
}

func (g *globalFlags) apply(cfg *config.Config) {
	if g.platform != "" {
		cfg.Platform = config.NormalizePlatform(g.platform)
	}
	if g.pageURL != "" {
		cfg.PageURL = g.pageURL
	}
	if g.signatureURL != "" {
		cfg.SignatureURL = g.signatureURL
	}
}

func newLogger(lc config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
