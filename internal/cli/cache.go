package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statsOutput is the printed form of cache.Stats.
type statsOutput struct {
	TotalEntries int    `json:"total_entries"`
	TotalSize    int    `json:"total_size"`
	OldestEntry  string `json:"oldest_entry,omitempty"`
	OldestAge    string `json:"oldest_age,omitempty"`
}

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry count, total size and the oldest entry",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, false, func(cmd *cobra.Command, a *app, _ []string) error {
			stats := a.cache.GetStats()
			out := statsOutput{
				TotalEntries: stats.TotalEntries,
				TotalSize:    stats.TotalSize,
				OldestEntry:  stats.OldestEntry,
			}
			if stats.OldestEntry != "" {
				out.OldestAge = stats.OldestAge.String()
			}
			return printJSON(cmd.OutOrStdout(), out)
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry, or only one user's entries with --user",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, false, func(cmd *cobra.Command, a *app, _ []string) error {
			user, _ := cmd.Flags().GetString("user")
			if user != "" {
				a.cache.ClearUserCache(user)
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared cache for user %s\n", user)
				return err
			}
			removed := a.cache.ClearAll()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return err
		}),
	}
	clearCmd.Flags().String("user", "", "Only clear the entries scoped to this user")

	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop the active listing and, with --user, that user's entries",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, false, func(cmd *cobra.Command, a *app, _ []string) error {
			user, _ := cmd.Flags().GetString("user")
			a.repo.InvalidateCaches(user)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "invalidated")
			return err
		}),
	}
	invalidateCmd.Flags().String("user", "", "Also invalidate this user's listings and saved vehicles")

	cmd.AddCommand(statsCmd, clearCmd, invalidateCmd)
	return cmd
}
