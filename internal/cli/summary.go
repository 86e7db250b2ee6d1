package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func newSummaryCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "summary [trip-id]",
		Short: "Summarize a trip, or every trip of a user",
		Long: "Summary joins a trip with its owner, its current plan, and its\n" +
			"message and version counts. The figures are recomputed on every call.",
		Example: `  tripctl summary 0195f3d9-...
  tripctl summary --user 0195f3d2-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (userID != "") {
				return usagef("pass a trip id or --user, exactly one")
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				if userID != "" {
					all, err := store.TripSummaries(ctx, userID)
					if err != nil {
						return err
					}
					return a.emit(cmd, nonNil(all), func(w io.Writer) {
						for i, s := range all {
							if i > 0 {
								fmt.Fprintln(w)
							}
							printSummary(w, s)
						}
					})
				}
				s, err := store.TripSummary(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, s, func(w io.Writer) { printSummary(w, s) })
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "summarize every trip of this user")
	return cmd
}

func printSummary(w io.Writer, s *types.TripSummary) {
	t := &s.Trip
	fmt.Fprintf(w, "%s (%s) for %s\n", t.Title, t.Status, s.UserName)
	fmt.Fprintf(w, "  %s -> %s, %s to %s, %d days, %d travelers\n",
		t.Origin, t.Destination, t.StartDate.Format(types.DateLayout), t.EndDate.Format(types.DateLayout),
		s.DurationDays, s.TotalTravelers)
	fmt.Fprintf(w, "  budget %.2f %s, %d messages, %d plan versions\n",
		t.Budget, t.Currency, s.MessageCount, s.VersionCount)
	if s.HasCurrentPlanCost {
		fmt.Fprintf(w, "  current plan v%d (%s), estimated %.2f %s\n",
			s.CurrentPlan.Version, s.CurrentPlan.Status, s.CurrentPlanCost, t.Currency)
	} else {
		fmt.Fprintln(w, "  no plan yet")
	}
}
