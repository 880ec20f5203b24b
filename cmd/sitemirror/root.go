package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitemirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemirror",
		Short: "Recursive site crawler and resumable downloader",
		Long: `sitemirror crawls a web site starting from a seed page, follows links up to
a configurable depth and downloads every matching file into a local mirror
tree (downloads/<host>/<path> by default).

Large files are fetched in byte ranges when the server supports them, and
files that already exist are skipped, replaced or resumed on later runs.
Every run is recorded in a local journal; see "sitemirror history".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable trace logging (overrides WEBSCRAPER_LOG_LEVEL)")

	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
