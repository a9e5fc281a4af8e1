package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/openplatform/internal/config"
	"github.com/nextlevelbuilder/openplatform/pkg/urlctx"
)

func onboardCmd(g *globalFlags) *cobra.Command {
	var nonInteractive bool
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Setup wizard: page URL, signing endpoint and bridge host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := g.resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not load existing config: %v\n", err)
				cfg = config.Default()
			}
			g.apply(cfg)

			if !nonInteractive {
				if err := runOnboardPrompts(cfg); err != nil {
					return fmt.Errorf("onboard cancelled: %w", err)
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Config saved to %s\n", cfgPath)
			fmt.Fprintf(w, "  Platform:  %s\n", orDefault(cfg.Platform, "detect"))
			fmt.Fprintf(w, "  Page:      %s\n", orDefault(cfg.PageURL, "(none)"))
			fmt.Fprintf(w, "  Host:      %s\n", cfg.Host.Mode)
			fmt.Fprintln(w, "Run `openplatform doctor` to check it.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "write config from flags and env without prompting")
	return cmd
}

func runOnboardPrompts(cfg *config.Config) error {
	platformIdx := map[string]int{"": 0, "dingtalk": 1, "feishu": 2}[cfg.Platform]
	p, err := promptSelect("Host application", []SelectOption[string]{
		{Label: "Detect from page globals", Value: ""},
		{Label: "DingTalk (dd)", Value: "dingtalk"},
		{Label: "Feishu / Lark (h5sdk + tt)", Value: "feishu"},
	}, platformIdx)
	if err != nil {
		return err
	}
	cfg.Platform = p

	hint := "query or hash should carry corpId/appId and " + urlctx.BusinessAppIDKey
	if cfg.PageURL, err = promptString("Page URL", hint, cfg.PageURL); err != nil {
		return err
	}
	if cfg.SignatureURL, err = promptString("Signature URL", "leave empty to skip JSAPI config", cfg.SignatureURL); err != nil {
		return err
	}

	modeIdx := 0
	if cfg.Host.Mode == config.HostBrowser {
		modeIdx = 1
	}
	if cfg.Host.Mode, err = promptSelect("Bridge host", []SelectOption[string]{
		{Label: "Script VM (local shim scripts)", Value: config.HostScript},
		{Label: "Chrome page (go-rod)", Value: config.HostBrowser},
	}, modeIdx); err != nil {
		return err
	}

	scripts, err := promptString("Shim scripts", "comma-separated paths, relative to the config file", strings.Join(cfg.Host.Scripts, ","))
	if err != nil {
		return err
	}
	cfg.Host.Scripts = splitList(scripts)

	if cfg.Host.Mode == config.HostBrowser {
		headless, err := promptConfirm("Run Chrome headless?", cfg.Host.IsHeadless())
		if err != nil {
			return err
		}
		cfg.Host.Headless = &headless
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
