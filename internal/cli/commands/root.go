// Package commands implements the waypoint command line: serving an
// application, listing its routes and checking its configuration.
package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint"
	"github.com/conduit-lang/waypoint/internal/cli/ui"
	"github.com/conduit-lang/waypoint/internal/config"
)

var (
	// Version information, set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// AppFactory builds the application served by the commands
type AppFactory func(cfg *config.Config, logger *zap.Logger) (*waypoint.App, error)

type globals struct {
	configPath string
	noColor    bool
}

func (g *globals) plain() bool {
	return g.noColor || color.NoColor
}

func (g *globals) load() (*config.Config, error) {
	return config.Load(g.configPath)
}

// NewRootCommand creates the root command around factory
func NewRootCommand(factory AppFactory) *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "waypoint",
		Short: "Serve declared controllers over HTTP",
		Long: `waypoint serves an application whose controllers, actions and middleware
are declared up front and bound to a chi router.

Configuration is read from waypoint.yaml (or --config) and WAYPOINT_*
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (default ./waypoint.yaml)")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newServeCommand(g, factory))
	rootCmd.AddCommand(newRoutesCommand(g, factory))
	rootCmd.AddCommand(newConfigCommand(g))
	rootCmd.AddCommand(newVersionCommand(g))
	return rootCmd
}

func newVersionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			ui.WriteField(out, "waypoint", Version, g.plain())
			ui.WriteField(out, "commit", GitCommit, g.plain())
			ui.WriteField(out, "built", BuildDate, g.plain())
			ui.WriteField(out, "go", runtime.Version(), g.plain())
		},
	}
}

// Execute runs the root command and reports a failure on stderr
func Execute(factory AppFactory) error {
	rootCmd := NewRootCommand(factory)
	if err := rootCmd.Execute(); err != nil {
		ui.WriteProblem(rootCmd.ErrOrStderr(), ui.Problem{Message: err.Error(), Help: []string{"waypoint --help"}}, color.NoColor)
		return err
	}
	return nil
}
