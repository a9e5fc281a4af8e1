package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/openplatform/pkg/platform"
)

// withAdapter loads config, opens a session and hands the selected adapter
// to fn under the --timeout deadline.
func withAdapter(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, s *session, a platform.Adapter) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	shutdown := initTelemetry(cmd.Context(), cfg)
	defer shutdown()

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.adapter()
	if err != nil {
		return err
	}
	return fn(ctx, s, a)
}

func detectCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Report which host bridge the page exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdapter(cmd, g, func(_ context.Context, s *session, a platform.Adapter) error {
				out := map[string]any{
					"platform":      a.Kind().String(),
					"location":      s.host.Location(),
					"key":           a.Key(),
					"businessAppId": a.BusinessAppID(),
				}
				return printResult(cmd.OutOrStdout(), jsonOutput, out, []field{
					{"Platform", a.Kind()},
					{"Location", s.host.Location()},
					{"Key", a.Key()},
					{"Business app", a.BusinessAppID()},
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func initCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Run the bridge handshake and report readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdapter(cmd, g, func(ctx context.Context, s *session, a platform.Adapter) error {
				ready, err := a.Init(ctx, &platform.Options{SignatureURL: s.cfg.SignatureURL})
				if err != nil {
					return err
				}
				out := map[string]any{
					"platform": a.Kind().String(),
					"ready":    ready,
					"state":    a.State().String(),
				}
				return printResult(cmd.OutOrStdout(), jsonOutput, out, []field{
					{"Platform", a.Kind()},
					{"Ready", ready},
					{"State", a.State()},
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func authCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Request a free-login authorization code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdapter(cmd, g, func(ctx context.Context, s *session, a platform.Adapter) error {
				if err := s.ready(ctx, a); err != nil {
					return err
				}
				res, err := a.AuthCode(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), jsonOutput, res, []field{
					{"Code", res.Code},
					{"Business app", res.BusinessAppID},
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func scanCmd(g *globalFlags) *cobra.Command {
	var (
		jsonOutput   bool
		types        []string
		barCodeInput bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Open the host scanner and print what it read",
		RunE: func(cmd *cobra.Command, args []string) error {
			scanTypes, err := parseScanTypes(types)
			if err != nil {
				return err
			}
			return withAdapter(cmd, g, func(ctx context.Context, s *session, a platform.Adapter) error {
				if err := s.ready(ctx, a); err != nil {
					return err
				}
				res, err := a.ScanCode(ctx, scanTypes, barCodeInput)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), jsonOutput, res, []field{
					{"Platform", res.Kind()},
					{"Content", res.Content()},
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringSliceVar(&types, "type", nil, "accepted formats: all, qrCode, barCode (repeatable)")
	cmd.Flags().BoolVar(&barCodeInput, "barcode-input", false, "allow typing the barcode manually (Feishu)")
	return cmd
}

func parseScanTypes(raw []string) ([]platform.ScanType, error) {
	out := make([]platform.ScanType, 0, len(raw))
	for _, r := range raw {
		switch t := platform.ScanType(r); t {
		case platform.ScanAll, platform.ScanQRCode, platform.ScanBarCode:
			out = append(out, t)
		default:
			return nil, fmt.Errorf("unknown scan type %q", r)
		}
	}
	return out, nil
}

func shareCmd(g *globalFlags) *cobra.Command {
	var (
		jsonOutput bool
		debug      bool
		shareType  int
		params     platform.ShareParams
	)
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Open the host share panel for a link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if shareType < int(platform.ShareAll) || shareType > int(platform.NoShare) {
				return fmt.Errorf("--type must be 0, 1 or 2")
			}
			params.Type = platform.ShareType(shareType)
			return withAdapter(cmd, g, func(ctx context.Context, s *session, a platform.Adapter) error {
				if !debug {
					if err := s.ready(ctx, a); err != nil {
						return err
					}
				}
				res, err := a.Share(ctx, params, debug)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), jsonOutput, res, []field{
					{"Platform", a.Kind()},
					{"Result", res},
				})
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&jsonOutput, "json", false, "output as JSON")
	f.BoolVar(&debug, "debug", false, "skip the readiness check")
	f.IntVar(&shareType, "type", 0, "0 all targets, 1 current page (DingTalk), 2 refresh only")
	f.StringVar(&params.URL, "url", "", "link to share")
	f.StringVar(&params.Title, "title", "", "share title")
	f.StringVar(&params.Content, "content", "", "share text (DingTalk)")
	f.StringVar(&params.Image, "image", "", "thumbnail URL")
	return cmd
}
