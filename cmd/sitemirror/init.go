package main

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
)

//go:embed templates/sitemirror.yaml
var configTemplate embed.FS

const templatePath = "templates/sitemirror.yaml"

// errInitTargetConflict is returned when both --output and --global are set.
var errInitTargetConflict = errors.New("--output and --global cannot be used together")

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a commented site configuration file",
		Long: `Init writes a commented site file documenting the per-host settings:
request headers such as cookies or tokens, include and exclude patterns,
and crawl depth.

By default the file is .sitemirror in the current directory. With --global
it is written to the XDG config directory, the last place mirror looks.

Examples:
  sitemirror init
  sitemirror init --global
  sitemirror init -o ~/work/site.yaml -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Where to write the site file")
	cmd.Flags().BoolP("global", "g", false,
		"Write to the XDG config directory instead")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing file")

	return cmd
}

// initTarget resolves the path the site file is written to.
func initTarget(cmd *cobra.Command) (string, error) {
	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return "", err
	}
	if !global {
		return cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("output") {
		return "", errInitTargetConflict
	}
	return filepath.Join(config.XDGConfigDir(), "config.yaml"), nil
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	target, err := initTarget(cmd)
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(target); statErr == nil && !force {
		return fmt.Errorf("%s already exists (use -f to replace it)", target)
	}

	body, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	// The file tends to collect cookies.
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nAdd headers, include/exclude patterns or a depth per host, then run sitemirror mirror.\n", target)
	return nil
}
