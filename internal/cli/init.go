package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tripstate/internal/config"
	"github.com/mesh-intelligence/tripstate/internal/paths"
	"github.com/mesh-intelligence/tripstate/internal/sqlite"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: "Write a default config.yaml when none exists, then create the\n" +
			"database and apply the schema. Safe to run more than once.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return fmt.Errorf("resolving config dir: %w", err)
			}
			var dataDir string
			if a.flags.dataDir != "" {
				if dataDir, err = filepath.Abs(a.flags.dataDir); err != nil {
					return fmt.Errorf("resolving data dir: %w", err)
				}
			}
			wrote, err := config.WriteDefault(configDir, dataDir)
			if err != nil {
				return err
			}

			return a.withStore(cmd, func(context.Context, *sqlite.Backend) error {
				out := struct {
					ConfigDir     string `json:"config_dir"`
					DataDir       string `json:"data_dir"`
					ConfigWritten bool   `json:"config_written"`
				}{configDir, a.dataDir, wrote}
				return a.emit(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "tripstate initialized\n  config: %s\n  data:   %s\n", configDir, a.dataDir)
				})
			})
		},
	}
}
