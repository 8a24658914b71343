package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/waypoint/internal/cli/ui"
)

func newConfigCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			out, plain := cmd.OutOrStdout(), g.plain()
			ui.WriteField(out, "address", cfg.Server.Address, plain)
			ui.WriteField(out, "prefix", orNone(cfg.Prefix), plain)
			ui.WriteField(out, "development", strconv.FormatBool(cfg.Development), plain)
			ui.WriteField(out, "log", cfg.Log.Level+"/"+cfg.Log.Format, plain)
			ui.WriteField(out, "sessions", enabled(cfg.Session.Enabled, cfg.Session.Store), plain)
			ui.WriteField(out, "rate limit", enabled(cfg.RateLimit.Enabled,
				fmt.Sprintf("%s, %d per %s", cfg.RateLimit.Store, cfg.RateLimit.Limit, cfg.RateLimit.Window)), plain)
			ui.WriteField(out, "cors", enabled(cfg.CORS.Enabled, ""), plain)
			ui.WriteField(out, "auth", enabled(cfg.Auth.Secret != "", "issuer "+orNone(cfg.Auth.Issuer)), plain)
			ui.WriteSuccess(out, "configuration is valid", plain)
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func enabled(on bool, detail string) string {
	switch {
	case !on:
		return "disabled"
	case detail == "":
		return "enabled"
	default:
		return "enabled (" + detail + ")"
	}
}
