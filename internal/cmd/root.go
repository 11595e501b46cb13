// Package cmd implements kraken's CLI surface: setup-targets,
// setup-series, show-stage-schema, and daemon, matching spec.md §6's
// exit-code contract (0 success, 1 validation/JSON/schema/filter
// errors or operator abort).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kluhan/kraken/internal/observability"
)

// versionInfo is populated by SetVersionInfo, called from cmd/kraken's
// main before Execute runs, and surfaced by --version.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo records build metadata injected via linker flags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "kraken",
	Short: "kraken is a distributed crawl scheduling and document historisation engine",
	Long: `kraken schedules crawls across a pool of targets, dispatches their
requests through a Task Dispatcher, and historises the documents the
requests return.`,
	Version: versionInfo.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate("kraken {{.Version}}\n")
}

// Execute runs the root command, exiting the process with status 1 on
// any error per spec.md §6's exit-code contract.
func Execute() {
	rootCmd.Version = versionInfo.Version
	if err := rootCmd.Execute(); err != nil {
		observability.CLILogger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
