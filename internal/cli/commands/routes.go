package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/cli/ui"
	"github.com/conduit-lang/waypoint/internal/web/router"
)

func newRoutesCommand(g *globals, factory AppFactory) *cobra.Command {
	var controller string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the application's routes",
		Long: `List every registered route with its method and action.

Examples:
  waypoint routes
  waypoint routes --controller userController`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			app, err := factory(cfg, zap.NewNop())
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer app.Close()

			routes := app.Routes()
			if controller != "" {
				filtered := filterRoutes(routes, controller)
				if len(filtered) == 0 {
					return unknownController(controller, routes)
				}
				routes = filtered
			}

			table := ui.NewTable(cmd.OutOrStdout(), g.plain(), "METHOD", "PATH", "ACTION")
			for _, r := range routes {
				table.AddRow(r.Method, r.Pattern, r.Action)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&controller, "controller", "", "only list routes of this controller")
	return cmd
}

func controllerOf(r router.RouteInfo) string {
	name, _, _ := strings.Cut(r.Action, ".")
	return name
}

func filterRoutes(routes []router.RouteInfo, controller string) []router.RouteInfo {
	var out []router.RouteInfo
	for _, r := range routes {
		if strings.EqualFold(controllerOf(r), controller) {
			out = append(out, r)
		}
	}
	return out
}

func unknownController(name string, routes []router.RouteInfo) error {
	seen := make(map[string]bool)
	var names []string
	for _, r := range routes {
		if c := controllerOf(r); !seen[c] {
			seen[c] = true
			names = append(names, c)
		}
	}
	sort.Strings(names)

	if similar := ui.Similar(name, names, 3, 3); len(similar) > 0 {
		return fmt.Errorf("no routes for controller %q, did you mean %s?", name, strings.Join(similar, ", "))
	}
	return fmt.Errorf("no routes for controller %q", name)
}
