package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	themesDir   string
	dbPath      string
	policyPaths []string
	verbose     bool
	jsonOutput  bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "glaze",
		Short: "Glaze - coordinated theme transition engine",
		Long: `Glaze coordinates visual theme transitions: variable resolution and
caching, frame-aligned property updates, FLIP geometry animation, and
accessibility monitoring, all driven by a single orchestrator.

The CLI drives the engine against a synthetic scene so themes, timing,
and policies can be exercised without a host application:
  - run a transition and inspect its result
  - list and validate theme definitions
  - report on recorded transition history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "engine config file path")
	rootCmd.PersistentFlags().StringVar(&themesDir, "themes", "./themes", "theme definitions directory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "transition history database path")
	rootCmd.PersistentFlags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newThemesCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
