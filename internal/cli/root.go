// Package cli implements the chaos command-line interface using Cobra.
// Each subcommand drives one console operation (systems, show, set,
// analyze, chat, simulate) or runs the server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaostheorist/chaos/internal/daemon"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "chaos",
	Short: "Chaos Theorist: monitor and steer complex adaptive systems",
	Long: `Chaos Theorist is the operator console for complex adaptive systems.
Browse the systems you are allowed to see, tune their parameters, rank
leverage points, start simulation runs and ask the AI analyst.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $CHAOS_HOME/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	daemon.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
