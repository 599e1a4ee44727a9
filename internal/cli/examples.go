package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newExamplesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List the example queries",
		Long: `List the example queries offered by the console: the ones named in the
config file followed by those loaded from console.examples_glob.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}

			examples, err := rt.cfg.Examples()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(examples)
			case "table", "":
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.SetStyle(table.StyleLight)
				t.Style().Format.Header = text.FormatDefault
				t.AppendHeader(table.Row{"#", "Name", "Query"})
				for i, ex := range examples {
					t.AppendRow(table.Row{i + 1, ex.Name, strings.TrimSpace(ex.Query)})
				}
				t.Render()
				return nil
			default:
				return fmt.Errorf("unknown format %q (use table or json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}
