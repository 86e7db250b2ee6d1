package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write a JSONL snapshot of every table",
		Long: "Export writes users.jsonl, trips.jsonl, plan_versions.jsonl, and\n" +
			"chat_messages.jsonl to dir from one consistent read.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				counts, err := store.Export(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, counts, func(w io.Writer) { printCounts(w, "Exported", counts) })
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load a JSONL snapshot into an empty store",
		Long: "Import validates and loads a snapshot written by export, keeping ids,\n" +
			"version numbers, and sequence numbers. The store must be empty, and\n" +
			"nothing is written unless the whole snapshot loads.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				counts, err := store.Import(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, counts, func(w io.Writer) { printCounts(w, "Imported", counts) })
			})
		},
	}
}

func printCounts(w io.Writer, verb string, c *types.SnapshotCounts) {
	fmt.Fprintf(w, "%s %d users, %d trips, %d plan versions, %d chat messages\n",
		verb, c.Users, c.Trips, c.Plans, c.Messages)
}
