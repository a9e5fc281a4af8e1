package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/openplatform/internal/config"
	"github.com/nextlevelbuilder/openplatform/pkg/urlctx"
)

func doctorCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.OutOrStdout(), g)
		},
	}
}

func runDoctor(w io.Writer, g *globalFlags) {
	fmt.Fprintln(w, "openplatform doctor")
	fmt.Fprintf(w, "  Version:  %s\n", Version)
	fmt.Fprintf(w, "  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Go:       %s\n", runtime.Version())
	fmt.Fprintln(w)

	cfgPath := g.resolveConfigPath()
	fmt.Fprintf(w, "  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Fprintln(w, " (NOT FOUND, using defaults)")
	} else {
		fmt.Fprintln(w, " (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(w, "  Config load error: %s\n", err)
		return
	}
	g.apply(cfg)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Page:")
	if cfg.PageURL == "" {
		fmt.Fprintf(w, "    %-14s (not configured)\n", "URL:")
	} else {
		fmt.Fprintf(w, "    %-14s %s\n", "URL:", redactURL(cfg.PageURL))
		checkIdentifier(w, cfg.PageURL, "corpId")
		checkIdentifier(w, cfg.PageURL, "appId")
	}
	platformName := cfg.Platform
	if platformName == "" {
		platformName = "detect"
	}
	fmt.Fprintf(w, "    %-14s %s\n", "Platform:", platformName)
	signing := "(not configured, Init skips config)"
	if cfg.SignatureURL != "" {
		signing = redactURL(cfg.SignatureURL)
	}
	fmt.Fprintf(w, "    %-14s %s\n", "Signature:", signing)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Host (%s):\n", cfg.Host.Mode)
	for _, s := range cfg.Host.Scripts {
		checkFile(w, s)
	}
	if cfg.Host.Mode == config.HostBrowser {
		if cfg.Host.ControlURL != "" {
			fmt.Fprintf(w, "    %-14s %s\n", "Chrome:", cfg.Host.ControlURL)
		} else {
			checkBinary(w, "chromium", "google-chrome", "chrome")
		}
	}

	fmt.Fprintln(w)
	telemetryStatus := "disabled"
	if cfg.Telemetry.Enabled {
		telemetryStatus = fmt.Sprintf("%s (%s), needs -tags otel", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	}
	fmt.Fprintf(w, "  Telemetry: %s\n", telemetryStatus)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Doctor check complete.")
}

func checkIdentifier(w io.Writer, pageURL, key string) {
	ids := urlctx.Resolve(pageURL, key)
	if ids.Value == "" {
		return
	}
	fmt.Fprintf(w, "    %-14s %s\n", key+":", ids.Value)
	if ids.BusinessAppID == "" {
		fmt.Fprintf(w, "    %-14s (missing)\n", urlctx.BusinessAppIDKey+":")
	} else {
		fmt.Fprintf(w, "    %-14s %s\n", urlctx.BusinessAppIDKey+":", ids.BusinessAppID)
	}
}

func checkFile(w io.Writer, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(w, "    %s NOT FOUND\n", path)
	} else {
		fmt.Fprintf(w, "    %s (OK)\n", path)
	}
}

func checkBinary(w io.Writer, names ...string) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			fmt.Fprintf(w, "    %-14s %s\n", "Chrome:", path)
			return
		}
	}
	fmt.Fprintf(w, "    %-14s NOT FOUND (rod will download one)\n", "Chrome:")
}
