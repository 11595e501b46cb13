// Command kraken is the CLI entry point: setup-targets, setup-series,
// show-stage-schema, and daemon.
package main

import "github.com/kluhan/kraken/internal/cmd"

// version, commit, and buildDate are injected at build time via
// -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
