// Package cli implements the command-line interface for the Imoto client cache.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// envPrefix is the prefix of every environment override (IMOTO_CACHE_DEFAULT_TTL, ...).
const envPrefix = "IMOTO"

// Global flags
type globalFlags struct {
	configPath  string
	refresh     bool
	dumpMetrics bool
}

// NewRootCmd builds the command tree. Each call returns an independent tree
// so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "imoto",
		Short:         "Imoto CLI – browse vehicle listings through the local cache",
		Long:          `A command-line client for the Imoto vehicle marketplace. Reads are served from a durable local cache and revalidated against the backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file (IMOTO_* env vars override it)")
	rootCmd.PersistentFlags().BoolVarP(&flags.refresh, "refresh", "r", false, "Bypass the cache and fetch from the backend")
	rootCmd.PersistentFlags().BoolVar(&flags.dumpMetrics, "metrics", false, "Print cache metrics to stderr on exit")

	rootCmd.AddCommand(newVehiclesCmd(flags))
	rootCmd.AddCommand(newCacheCmd(flags))
	rootCmd.AddCommand(newDoctorCmd(flags))

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
