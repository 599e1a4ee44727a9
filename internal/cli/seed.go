package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/johan-st/query-console/internal/database"
	"github.com/johan-st/query-console/internal/fixtures"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo patients table",
		Long: `Create the patients table in the configured database and fill it with
demo records. Running it again leaves existing rows alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			if rt.cfg.Database.ReadOnly {
				return fmt.Errorf("database %s is configured read-only", rt.cfg.Database.Path)
			}

			conn, err := database.Open(cmd.Context(), rt.cfg.Database.Path, database.OpenOptions{
				BusyTimeout: rt.cfg.Database.BusyTimeoutMS,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := fixtures.Seed(cmd.Context(), conn.DB)
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", rt.cfg.Database.Path, err)
			}

			rt.logger.Info("seeded patients", "path", rt.cfg.Database.Path, "inserted", n)
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %s patients into %s\n", humanize.Comma(int64(n)), rt.cfg.Database.Path)
			return nil
		},
	}
}
