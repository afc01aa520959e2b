// Command venvboot creates a project's Python virtual environment and
// installs its requirements, replacing per-platform setup scripts.
package main

import (
	"github.com/richinsley/venvboot/internal/cli"
)

// Set with -ldflags "-X main.version=..." at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
