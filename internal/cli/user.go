package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(
		newUserCreateCmd(a),
		newUserGetCmd(a),
		newUserListCmd(a),
		newUserUpdateCmd(a),
		newUserDeleteCmd(a),
	)
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var u types.User
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Example: `  tripctl user create --name "Ada Lovelace" --email ada@example.com
  tripctl user create --name Bob --email bob@example.com --preferences "museums, food"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				created, err := store.CreateUser(ctx, &u)
				if err != nil {
					return err
				}
				return a.emit(cmd, created, func(w io.Writer) {
					fmt.Fprintf(w, "Created user %s\n", created.UserID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&u.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&u.Email, "email", "", "unique email address (required)")
	cmd.Flags().StringVar(&u.Profile, "profile", "", "free-form profile")
	cmd.Flags().StringVar(&u.TravelPreferences, "preferences", "", "travel preferences")
	cmd.Flags().StringVar(&u.TravelConstraints, "constraints", "", "travel constraints")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserGetCmd(a *app) *cobra.Command {
	var byEmail bool
	cmd := &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show one user",
		Example: `  tripctl user get 0195f3d2-...
  tripctl user get --email ada@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				var (
					u   *types.User
					err error
				)
				if byEmail {
					u, err = store.GetUserByEmail(ctx, args[0])
				} else {
					u, err = store.GetUser(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return a.emit(cmd, u, func(w io.Writer) { printUser(w, u) })
			})
		},
	}
	cmd.Flags().BoolVar(&byEmail, "email", false, "look the user up by email instead of id")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				users, err := store.ListUsers(ctx)
				if err != nil {
					return err
				}
				return a.emit(cmd, nonNil(users), func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USER ID\tNAME\tEMAIL")
					for _, u := range users {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", u.UserID, u.Name, u.Email)
					}
					tw.Flush()
				})
			})
		},
	}
}

func newUserUpdateCmd(a *app) *cobra.Command {
	var name, profile, prefs, constraints string
	cmd := &cobra.Command{
		Use:     "update <user-id>",
		Short:   "Edit a user's profile fields",
		Example: `  tripctl user update 0195f3d2-... --constraints "no red-eye flights"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch types.UserProfilePatch
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("profile") {
				patch.Profile = &profile
			}
			if flags.Changed("preferences") {
				patch.TravelPreferences = &prefs
			}
			if flags.Changed("constraints") {
				patch.TravelConstraints = &constraints
			}
			if patch == (types.UserProfilePatch{}) {
				return usagef("nothing to update: pass at least one of --name, --profile, --preferences, --constraints")
			}

			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				u, err := store.UpdateUserProfile(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return a.emit(cmd, u, func(w io.Writer) { printUser(w, u) })
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&profile, "profile", "", "free-form profile")
	cmd.Flags().StringVar(&prefs, "preferences", "", "travel preferences")
	cmd.Flags().StringVar(&constraints, "constraints", "", "travel constraints")
	return cmd
}

func newUserDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user with no trips or messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				if err := store.DeleteUser(ctx, args[0]); err != nil {
					return err
				}
				out := map[string]string{"deleted": args[0]}
				return a.emit(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted user %s\n", args[0])
				})
			})
		},
	}
}

func printUser(w io.Writer, u *types.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "User ID:\t%s\n", u.UserID)
	fmt.Fprintf(tw, "Name:\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	if u.Profile != "" {
		fmt.Fprintf(tw, "Profile:\t%s\n", u.Profile)
	}
	if u.TravelPreferences != "" {
		fmt.Fprintf(tw, "Preferences:\t%s\n", u.TravelPreferences)
	}
	if u.TravelConstraints != "" {
		fmt.Fprintf(tw, "Constraints:\t%s\n", u.TravelConstraints)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", u.CreatedAt.Format(timeFormat))
	tw.Flush()
}

// timeFormat renders timestamps in text output.
const timeFormat = "2006-01-02 15:04:05Z07:00"

// nonNil keeps empty lists as [] rather than null in JSON output.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
