package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Combine-Capital/imoto/pkg/vehicles"
	"github.com/spf13/cobra"
)

func newVehiclesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicles",
		Short: "Read vehicle listings",
	}

	// listCmd handles the active or status-filtered listing
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List vehicles by status (default: active)",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, true, func(cmd *cobra.Command, a *app, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			return printJSON(cmd.OutOrStdout(), a.repo.GetVehicles(cmd.Context(), status, flags.refresh))
		}),
	}
	listCmd.Flags().String("status", vehicles.StatusActive, "Listing status (active, sold, ...)")

	// showCmd handles fetching a single vehicle by ID
	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a vehicle by its ID",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, true, func(cmd *cobra.Command, a *app, args []string) error {
			v := a.repo.GetVehicleByID(cmd.Context(), args[0], flags.refresh)
			if v == nil {
				return fmt.Errorf("vehicle %s not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), v)
		}),
	}

	// mineCmd handles a seller's own listings
	mineCmd := &cobra.Command{
		Use:   "mine [user-id]",
		Short: "List every vehicle owned by a user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, true, func(cmd *cobra.Command, a *app, args []string) error {
			return printJSON(cmd.OutOrStdout(), a.repo.GetUserVehicles(cmd.Context(), args[0], flags.refresh))
		}),
	}

	// savedCmd handles a user's saved vehicles
	savedCmd := &cobra.Command{
		Use:   "saved [user-id]",
		Short: "List the vehicles a user has saved",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, true, func(cmd *cobra.Command, a *app, args []string) error {
			return printJSON(cmd.OutOrStdout(), a.repo.GetSavedVehicles(cmd.Context(), args[0], flags.refresh))
		}),
	}

	// searchCmd handles free-text search over make, model and variant
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search active vehicles by make, model or variant",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(flags, true, func(cmd *cobra.Command, a *app, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return printJSON(cmd.OutOrStdout(), a.repo.SearchVehicles(cmd.Context(), query))
		}),
	}

	// filterCmd handles the structured filter
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter active vehicles by price, year, mileage and more",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, true, func(cmd *cobra.Command, a *app, _ []string) error {
			f, err := filtersFromFlags(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.repo.FilterVehicles(cmd.Context(), f))
		}),
	}
	fs := filterCmd.Flags()
	fs.String("query", "", "Text matched against make, model and variant")
	fs.Float64("min-price", 0, "Minimum price")
	fs.Float64("max-price", 0, "Maximum price")
	fs.Int("min-year", 0, "Oldest model year")
	fs.Int("max-year", 0, "Newest model year")
	fs.Int("min-mileage", 0, "Minimum mileage in km")
	fs.Int("max-mileage", 0, "Maximum mileage in km")
	fs.StringSlice("fuel", nil, "Fuel types (repeatable or comma separated)")
	fs.String("transmission", "", "Transmission (all, manual, automatic)")
	fs.StringSlice("body", nil, "Body types (repeatable or comma separated)")
	fs.Float64("min-engine", vehicles.EngineCapacityFloor, "Minimum engine capacity in litres")
	fs.Float64("max-engine", vehicles.EngineCapacityCeiling, "Maximum engine capacity in litres")
	fs.String("province", "", "Province")
	fs.String("city", "", "City")

	cmd.AddCommand(listCmd, showCmd, mineCmd, savedCmd, searchCmd, filterCmd)
	return cmd
}

func filtersFromFlags(cmd *cobra.Command) (vehicles.Filters, error) {
	fs := cmd.Flags()
	var f vehicles.Filters
	var err error

	f.Query, _ = fs.GetString("query")
	f.MinPrice, _ = fs.GetFloat64("min-price")
	f.MaxPrice, _ = fs.GetFloat64("max-price")
	f.MinYear, _ = fs.GetInt("min-year")
	f.MaxYear, _ = fs.GetInt("max-year")
	f.MinMileage, _ = fs.GetInt("min-mileage")
	f.MaxMileage, _ = fs.GetInt("max-mileage")
	f.FuelTypes, _ = fs.GetStringSlice("fuel")
	f.Transmission, _ = fs.GetString("transmission")
	f.BodyTypes, _ = fs.GetStringSlice("body")
	f.EngineCapacityMin, _ = fs.GetFloat64("min-engine")
	f.EngineCapacityMax, _ = fs.GetFloat64("max-engine")
	f.Province, _ = fs.GetString("province")
	f.City, _ = fs.GetString("city")

	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		err = fmt.Errorf("--min-price %v is above --max-price %v", f.MinPrice, f.MaxPrice)
	}
	if f.MaxYear > 0 && f.MinYear > f.MaxYear {
		err = fmt.Errorf("--min-year %d is after --max-year %d", f.MinYear, f.MaxYear)
	}
	return f, err
}

// withApp wires an app for the command and closes it when the command returns.
func withApp(flags *globalFlags, needRemote bool, run func(*cobra.Command, *app, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, flags, needRemote)
		if err != nil {
			return err
		}
		runErr := run(cmd, a, args)
		if err := a.Close(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
