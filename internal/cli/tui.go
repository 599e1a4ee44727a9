package cli

import (
	"github.com/johan-st/query-console/internal/tui"
	"github.com/spf13/cobra"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive console (default)",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}

	svc, closeDB, err := rt.openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	return tui.Run(cmd.Context(), tui.Deps{
		Service: svc,
		Config:  rt.cfg,
		Logger:  rt.logger,
	})
}
