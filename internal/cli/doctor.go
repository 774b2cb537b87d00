package cli

import (
	"fmt"
	"strings"

	"github.com/Combine-Capital/imoto/pkg/health"
	"github.com/Combine-Capital/imoto/pkg/vehicles"
	"github.com/spf13/cobra"
)

func newDoctorCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the cache store and the backend are reachable",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, false, func(cmd *cobra.Command, a *app, _ []string) error {
			h := health.New(health.WithLogger(a.logger), health.WithTimeout(a.cfg.Remote.Timeout))
			h.Register("store", health.StoreChecker(a.store))
			if a.cfg.Remote.BaseURL != "" {
				h.Register("remote", health.RemoteChecker(a.service, vehicles.TableVehicles))
			}

			report := h.Check(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Healthy() {
				return fmt.Errorf("unhealthy: %s", strings.Join(report.Failed(), ", "))
			}
			return nil
		}),
	}
	return cmd
}
