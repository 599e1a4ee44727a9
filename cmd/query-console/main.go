// query-console is an ad-hoc SQL query console for a SQLite patient
// database. It runs as a terminal UI, as one-shot commands, or as an SSH
// server that offers both.
package main

import (
	"os"

	"github.com/johan-st/query-console/internal/cli"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.BuildDate = buildDate

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
