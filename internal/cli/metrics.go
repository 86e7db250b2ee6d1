package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/metrics"
	"github.com/mesh-intelligence/tripstate/internal/sqlite"
)

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print store gauges in Prometheus text format",
		Long: "Metrics counts users, trips by status, plan versions by status, and\n" +
			"chat messages by stream, and prints them in the Prometheus text\n" +
			"exposition format for a textfile collector.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *sqlite.Backend) error {
				if err := a.registry.Register(metrics.NewStoreCollector(store)); err != nil {
					return err
				}
				return metrics.WriteText(cmd.OutOrStdout(), a.registry)
			})
		},
	}
}
