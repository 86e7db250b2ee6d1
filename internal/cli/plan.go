package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plan versions",
	}
	cmd.AddCommand(
		newPlanCreateCmd(a),
		newPlanStatusCmd(a),
		newPlanCurrentCmd(a),
		newPlanGetCmd(a),
		newPlanListCmd(a),
		newPlanDetailCmd(a),
	)
	return cmd
}

// readPayload decodes a plan payload from path, or from stdin when path is
// "-".
func readPayload(cmd *cobra.Command, path string) (types.PlanPayload, error) {
	var p types.PlanPayload
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return p, fmt.Errorf("reading payload: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, usagef("payload is not a plan JSON object: %v", err)
	}
	return p, nil
}

func newPlanCreateCmd(a *app) *cobra.Command {
	var (
		file              string
		totalCost, budget float64
	)
	cmd := &cobra.Command{
		Use:   "create <trip-id>",
		Short: "Store the next plan version of a trip",
		Long: "Create stores a new draft version numbered one past the trip's\n" +
			"latest. The payload is a JSON object with optional itinerary, hotels,\n" +
			"flights, and agent_metadata blobs plus daily_budget and\n" +
			"total_estimated_cost.",
		Example: `  tripctl plan create 0195f3d2-... --file plan.json
  agent-run | tripctl plan create 0195f3d2-... --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload types.PlanPayload
			if file != "" {
				p, err := readPayload(cmd, file)
				if err != nil {
					return err
				}
				payload = p
			}
			if cmd.Flags().Changed("total-cost") {
				payload.TotalEstimatedCost = totalCost
			}
			if cmd.Flags().Changed("daily-budget") {
				payload.DailyBudget = budget
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				pv, err := store.CreateVersion(ctx, args[0], payload)
				if err != nil {
					return err
				}
				return a.emit(cmd, pv, func(w io.Writer) {
					fmt.Fprintf(w, "Created plan %s (version %d)\n", pv.PlanID, pv.Version)
				})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "payload JSON file, - for stdin")
	cmd.Flags().Float64Var(&totalCost, "total-cost", 0, "total estimated cost")
	cmd.Flags().Float64Var(&budget, "daily-budget", 0, "daily budget")
	return cmd
}

func newPlanStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "status <plan-id> <approved|rejected>",
		Short:   "Approve or reject a draft version",
		Example: `  tripctl plan status 0195f3e0-... approved`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := types.ParsePlanStatus(args[1])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				pv, err := store.SetPlanStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				return a.emit(cmd, pv, func(w io.Writer) {
					fmt.Fprintf(w, "Plan %s (version %d) is now %s\n", pv.PlanID, pv.Version, pv.Status)
				})
			})
		},
	}
}

func newPlanCurrentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "current <trip-id>",
		Short: "Show the trip's newest version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				pv, err := store.CurrentVersion(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, pv, func(w io.Writer) { printPlan(w, pv) })
			})
		},
	}
}

func newPlanGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <plan-id> | get <trip-id> <version>",
		Short: "Show one version by id, or by trip and number",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int
			if len(args) == 2 {
				v, err := strconv.Atoi(args[1])
				if err != nil || v < 1 {
					return usagef("version must be a positive integer, got %q", args[1])
				}
				n = v
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				var (
					pv  *types.PlanVersion
					err error
				)
				if n > 0 {
					pv, err = store.GetVersionByNumber(ctx, args[0], n)
				} else {
					pv, err = store.GetVersion(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return a.emit(cmd, pv, func(w io.Writer) { printPlan(w, pv) })
			})
		},
	}
}

func newPlanListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <trip-id>",
		Short: "List a trip's versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				plans, err := store.ListVersions(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(plans), func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "VERSION\tPLAN ID\tSTATUS\tTOTAL COST\tGENERATED")
					for _, pv := range plans {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n", pv.Version, pv.PlanID, pv.Status,
							pv.TotalEstimatedCost, pv.GeneratedAt.Format(timeFormat))
					}
					tw.Flush()
				})
			})
		},
	}
}

func newPlanDetailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detail <plan-id>",
		Short: "Show a version with its trip and owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				d, err := store.PlanDetail(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, d, func(w io.Writer) {
					printPlan(w, &d.Plan)
					fmt.Fprintf(w, "Current:   %t\n", d.IsCurrent)
					fmt.Fprintf(w, "Trip:      %s (%s, %s)\n", d.Trip.Title, d.Trip.Destination, d.Trip.Status)
					fmt.Fprintf(w, "Traveler:  %s <%s>\n", d.User.Name, d.User.Email)
				})
			})
		},
	}
}

func printPlan(w io.Writer, pv *types.PlanVersion) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Plan ID:\t%s\n", pv.PlanID)
	fmt.Fprintf(tw, "Trip ID:\t%s\n", pv.TripID)
	fmt.Fprintf(tw, "Version:\t%d\n", pv.Version)
	fmt.Fprintf(tw, "Status:\t%s\n", pv.Status)
	fmt.Fprintf(tw, "Total cost:\t%.2f\n", pv.TotalEstimatedCost)
	fmt.Fprintf(tw, "Daily budget:\t%.2f\n", pv.DailyBudget)
	fmt.Fprintf(tw, "Generated:\t%s\n", pv.GeneratedAt.Format(timeFormat))
	tw.Flush()
}
