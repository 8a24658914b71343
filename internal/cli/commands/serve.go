package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/cli/ui"
	"github.com/conduit-lang/waypoint/internal/logging"
)

func newServeCommand(g *globals, factory AppFactory) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and serve until interrupted.

SIGINT and SIGTERM trigger a graceful shutdown bounded by
server.shutdown_timeout.

Examples:
  waypoint serve
  waypoint serve --addr :3000
  WAYPOINT_DEVELOPMENT=true waypoint serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			logger, err := logging.New(cfg.Log, cfg.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			app, err := factory(cfg, logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("serving %d routes on %s", len(app.Routes()), cfg.Server.Address), g.plain())
			logger.Info("starting server", zap.String("address", cfg.Server.Address), zap.Bool("development", cfg.Development))
			return app.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address, overrides server.address")
	return cmd
}

