// Package cli implements tripctl, the operator command line for the trip
// state store.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// NewRootCmd creates the tripctl command tree. Each call returns an
// independent tree, so tests can run several side by side.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tripctl",
		Short: "Inspect and administer the trip-planning state store",
		Long: "tripctl manages users, trips, plan versions, and chat history in the\n" +
			"trip-planning state store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: config data_dir or platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newUserCmd(a),
		newTripCmd(a),
		newPlanCmd(a),
		newChatCmd(a),
		newSummaryCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newMetricsCmd(a),
	)
	markRunErrors(root)
	return root
}

// markRunErrors wraps every RunE so that errors raised while running a
// command can be told apart from the argument and flag errors cobra
// reports before RunE is reached.
func markRunErrors(cmd *cobra.Command) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			if err := run(c, args); err != nil {
				return &runError{err: err}
			}
			return nil
		}
	}
	for _, sub := range cmd.Commands() {
		markRunErrors(sub)
	}
}

type runError struct{ err error }

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

// Execute runs tripctl with os.Args and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

// exitCode maps domain and usage errors to exitUserError. Any other error
// raised inside a command is a system error.
func exitCode(err error) int {
	var (
		usage *usageError
		ran   *runError
	)
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &usage),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrDependentData),
		errors.Is(err, types.ErrConcurrencyConflict),
		errors.Is(err, sqlite.ErrStoreNotEmpty):
		return exitUserError
	case errors.As(err, &ran):
		return exitSysError
	}
	return exitUserError
}

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
