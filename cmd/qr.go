package cmd

import (
	"fmt"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

func qrCmd(g *globalFlags) *cobra.Command {
	var (
		outPath string
		size    int
	)
	cmd := &cobra.Command{
		Use:   "qr [url]",
		Short: "Render the page URL as a QR code to open it inside the host app",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			} else {
				cfg, err := g.load()
				if err != nil {
					return err
				}
				target = cfg.PageURL
			}
			if target == "" {
				return fmt.Errorf("no URL: pass one or set pageUrl")
			}

			if outPath != "" {
				if err := qrcode.WriteFile(target, qrcode.Medium, size, outPath); err != nil {
					return fmt.Errorf("write qr: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "QR code for %s written to %s\n", target, outPath)
				return nil
			}

			q, err := qrcode.New(target, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("encode qr: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), q.ToSmallString(false))
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write a PNG instead of printing to the terminal")
	cmd.Flags().IntVar(&size, "size", 512, "PNG size in pixels")
	return cmd
}
