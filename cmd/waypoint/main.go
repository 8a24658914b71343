// Command waypoint serves the users example application.
package main

import (
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint"
	"github.com/conduit-lang/waypoint/examples/users"
	"github.com/conduit-lang/waypoint/internal/cli/commands"
	"github.com/conduit-lang/waypoint/internal/config"
)

func main() {
	if err := commands.Execute(newApp); err != nil {
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, logger *zap.Logger) (*waypoint.App, error) {
	return users.New(cfg, logger, nil)
}
