package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// Flag defaults for trip create. The store itself has no default adult
// count or budget.
const (
	defaultAdults = 1
	defaultBudget = 500.0
)

func newTripCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trip",
		Short: "Manage trips and their lifecycle",
	}
	cmd.AddCommand(
		newTripCreateCmd(a),
		newTripGetCmd(a),
		newTripListCmd(a),
		newTripActiveCmd(a),
		newTripUpdateCmd(a),
		newTripTransitionCmd(a),
		newTripDeleteCmd(a),
	)
	return cmd
}

// tripFields are the editable trip flags shared by create and update.
type tripFields struct {
	phase, title, origin, destination string
	start, end                        string
	accommodation                     string
	adults, children                  int
	budget                            float64
	currency, purpose                 string
	preferences, constraints          string
}

func (f *tripFields) register(fs *pflag.FlagSet, defaults bool) {
	phase, adults, budget := "", 0, 0.0
	if defaults {
		phase, adults, budget = string(types.PhaseLangflow), defaultAdults, defaultBudget
	}
	fs.StringVar(&f.phase, "phase", phase, "agent pipeline phase")
	fs.StringVar(&f.title, "title", "", "trip title (default \"My Trip\")")
	fs.StringVar(&f.origin, "origin", "", "departure city")
	fs.StringVar(&f.destination, "destination", "", "destination city")
	fs.StringVar(&f.start, "start", "", "start date, YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "end date, YYYY-MM-DD, after start")
	fs.StringVar(&f.accommodation, "accommodation", "", "accommodation type (default hotel)")
	fs.IntVar(&f.adults, "adults", adults, "number of adults")
	fs.IntVar(&f.children, "children", 0, "number of children")
	fs.Float64Var(&f.budget, "budget", budget, "total budget")
	fs.StringVar(&f.currency, "currency", "", "ISO 4217 currency code (default USD)")
	fs.StringVar(&f.purpose, "purpose", "", "trip purpose (default leisure)")
	fs.StringVar(&f.preferences, "preferences", "", "travel preferences")
	fs.StringVar(&f.constraints, "constraints", "", "travel constraints")
}

func parseDateFlag(name, value string) (time.Time, error) {
	d, err := types.ParseDate(value)
	if err != nil {
		return time.Time{}, usagef("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return d, nil
}

// trip builds a new trip from the flags.
func (f *tripFields) trip(userID string) (*types.Trip, error) {
	start, err := parseDateFlag("start", f.start)
	if err != nil {
		return nil, err
	}
	end, err := parseDateFlag("end", f.end)
	if err != nil {
		return nil, err
	}
	return &types.Trip{
		UserID:            userID,
		Phase:             types.Phase(f.phase),
		Title:             f.title,
		Origin:            f.origin,
		Destination:       f.destination,
		StartDate:         start,
		EndDate:           end,
		Accommodation:     types.Accommodation(f.accommodation),
		Adults:            f.adults,
		Children:          f.children,
		Budget:            f.budget,
		Currency:          f.currency,
		Purpose:           f.purpose,
		TravelPreferences: f.preferences,
		TravelConstraints: f.constraints,
	}, nil
}

// patch builds a patch from the flags the user actually set.
func (f *tripFields) patch(fs *pflag.FlagSet) (types.TripPatch, error) {
	var p types.TripPatch
	if fs.Changed("phase") {
		ph := types.Phase(f.phase)
		p.Phase = &ph
	}
	if fs.Changed("title") {
		p.Title = &f.title
	}
	if fs.Changed("origin") {
		p.Origin = &f.origin
	}
	if fs.Changed("destination") {
		p.Destination = &f.destination
	}
	if fs.Changed("start") {
		d, err := parseDateFlag("start", f.start)
		if err != nil {
			return p, err
		}
		p.StartDate = &d
	}
	if fs.Changed("end") {
		d, err := parseDateFlag("end", f.end)
		if err != nil {
			return p, err
		}
		p.EndDate = &d
	}
	if fs.Changed("accommodation") {
		acc := types.Accommodation(f.accommodation)
		p.Accommodation = &acc
	}
	if fs.Changed("adults") {
		p.Adults = &f.adults
	}
	if fs.Changed("children") {
		p.Children = &f.children
	}
	if fs.Changed("budget") {
		p.Budget = &f.budget
	}
	if fs.Changed("currency") {
		p.Currency = &f.currency
	}
	if fs.Changed("purpose") {
		p.Purpose = &f.purpose
	}
	if fs.Changed("preferences") {
		p.TravelPreferences = &f.preferences
	}
	if fs.Changed("constraints") {
		p.TravelConstraints = &f.constraints
	}
	return p, nil
}

func newTripCreateCmd(a *app) *cobra.Command {
	var (
		userID string
		fields tripFields
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a trip in draft",
		Example: `  tripctl trip create --user 0195f3d2-... --origin "New York" --destination Paris \
      --start 2026-03-10 --end 2026-03-20 --adults 2 --budget 5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := fields.trip(userID)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				t, err := store.CreateTrip(ctx, in)
				if err != nil {
					return err
				}
				return a.emit(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "Created trip %s (%s, revision %d)\n", t.TripID, t.Status, t.Revision)
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user id (required)")
	fields.register(cmd.Flags(), true)
	for _, name := range []string{"user", "origin", "destination", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTripGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <trip-id>",
		Short: "Show one trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				t, err := store.GetTrip(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, t, func(w io.Writer) { printTrip(w, t) })
			})
		},
	}
}

func newTripListCmd(a *app) *cobra.Command {
	var (
		filter   types.TripFilter
		statuses []string
		phase    string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List trips, newest first",
		Example: `  tripctl trip list --user 0195f3d2-... --status draft --status confirmed`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				st, err := types.ParseTripStatus(s)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, st)
			}
			if phase != "" {
				p, err := types.ParsePhase(phase)
				if err != nil {
					return err
				}
				filter.Phase = p
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				trips, err := store.ListTrips(ctx, filter)
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(trips), func(w io.Writer) { printTripTable(w, trips) })
			})
		},
	}
	cmd.Flags().StringVar(&filter.UserID, "user", "", "only this user's trips")
	cmd.Flags().StringArrayVar(&statuses, "status", nil, "only trips in this status (repeatable)")
	cmd.Flags().StringVar(&phase, "phase", "", "only trips in this phase")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum trips to return (0 = all)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "trips to skip")
	return cmd
}

func newTripActiveCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "active",
		Short: "List draft, confirmed, and in-progress trips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				trips, err := store.ActiveTrips(ctx, userID)
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(trips), func(w io.Writer) { printTripTable(w, trips) })
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only this user's trips")
	return cmd
}

func newTripUpdateCmd(a *app) *cobra.Command {
	var (
		revision int64
		fields   tripFields
	)
	cmd := &cobra.Command{
		Use:   "update <trip-id>",
		Short: "Edit trip fields if the revision still matches",
		Long: "Update applies the given fields only if the trip is still at\n" +
			"--revision. A stale revision fails with a concurrency conflict.",
		Example: `  tripctl trip update 0195f3d2-... --revision 1 --budget 6500`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := fields.patch(cmd.Flags())
			if err != nil {
				return err
			}
			if patch.Empty() {
				return usagef("nothing to update: pass at least one trip field flag")
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				t, err := store.UpdateTrip(ctx, args[0], revision, patch)
				if err != nil {
					return err
				}
				return a.emit(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "Updated trip %s (revision %d)\n", t.TripID, t.Revision)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&revision, "revision", 0, "expected current revision (required)")
	_ = cmd.MarkFlagRequired("revision")
	fields.register(cmd.Flags(), false)
	return cmd
}

func newTripTransitionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <trip-id> <status>",
		Short: "Move a trip to a new status",
		Long: "Allowed moves: draft -> confirmed -> in_progress -> completed, and\n" +
			"any non-terminal status -> cancelled.",
		Example: `  tripctl trip transition 0195f3d2-... confirmed`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := types.ParseTripStatus(args[1])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				t, err := store.TransitionTrip(ctx, args[0], to)
				if err != nil {
					return err
				}
				return a.emit(cmd, t, func(w io.Writer) {
					fmt.Fprintf(w, "Trip %s is now %s\n", t.TripID, t.Status)
				})
			})
		},
	}
}

func newTripDeleteCmd(a *app) *cobra.Command {
	var purge string
	cmd := &cobra.Command{
		Use:   "delete <trip-id>",
		Short: "Delete a trip and its plan versions",
		Long: "Delete removes the trip and all of its plan versions. Chat messages\n" +
			"referencing the trip block the delete unless --purge is reassign\n" +
			"(move them to the owner's pre-trip stream) or delete.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := types.ParsePurgeMode(purge)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				res, err := store.DeleteTrip(ctx, args[0], mode)
				if err != nil {
					return err
				}
				return a.emit(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted trip %s: %d plan versions removed", res.TripID, res.PlansDeleted)
					switch {
					case res.MessagesReassigned > 0:
						fmt.Fprintf(w, ", %d messages moved to the pre-trip stream", res.MessagesReassigned)
					case res.MessagesDeleted > 0:
						fmt.Fprintf(w, ", %d messages deleted", res.MessagesDeleted)
					}
					fmt.Fprintln(w)
				})
			})
		},
	}
	cmd.Flags().StringVar(&purge, "purge", "none", "what to do with chat messages: none, reassign, delete")
	return cmd
}

func printTrip(w io.Writer, t *types.Trip) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Trip ID:\t%s\n", t.TripID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	fmt.Fprintf(tw, "Owner:\t%s\n", t.UserID)
	fmt.Fprintf(tw, "Status:\t%s (revision %d)\n", t.Status, t.Revision)
	fmt.Fprintf(tw, "Phase:\t%s\n", t.Phase)
	fmt.Fprintf(tw, "Route:\t%s -> %s\n", t.Origin, t.Destination)
	fmt.Fprintf(tw, "Dates:\t%s to %s (%d days)\n",
		t.StartDate.Format(types.DateLayout), t.EndDate.Format(types.DateLayout), t.DurationDays())
	fmt.Fprintf(tw, "Travelers:\t%d adults, %d children\n", t.Adults, t.Children)
	fmt.Fprintf(tw, "Budget:\t%.2f %s (%.2f per day)\n", t.Budget, t.Currency, t.DailyBudget())
	fmt.Fprintf(tw, "Accommodation:\t%s\n", t.Accommodation)
	fmt.Fprintf(tw, "Purpose:\t%s\n", t.Purpose)
	tw.Flush()
}

func printTripTable(w io.Writer, trips []*types.Trip) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIP ID\tSTATUS\tDESTINATION\tSTART\tEND\tTITLE")
	for _, t := range trips {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.TripID, t.Status, t.Destination,
			t.StartDate.Format(types.DateLayout), t.EndDate.Format(types.DateLayout), t.Title)
	}
	tw.Flush()
}
