package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/johan-st/query-console/internal/console"
	"github.com/johan-st/query-console/internal/platform"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Output formats of the query command.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
	formatURI   = "uri"
)

var queryFormats = []string{formatTable, formatJSON, formatCSV, formatURI}

// errNoQuery is returned when neither an argument nor stdin holds SQL.
var errNoQuery = errors.New("no query given")

type queryOptions struct {
	format   string
	copy     bool
	download bool
}

func newQueryCmd() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a query and print the rows",
		Long: `Run one query against the configured database and print the result.

Row-returning statements print their rows; other statements print the
number of affected rows. A failing query prints the database error and
exits non-zero. Without an argument the query is read from stdin.`,
		Example: `  query-console query "SELECT * FROM patients LIMIT 5"
  query-console query --format json "SELECT first_name, last_name FROM patients"
  echo "SELECT COUNT(*) FROM patients" | query-console query
  query-console query --download "SELECT * FROM patients WHERE last_name LIKE 'S%'"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "Output format: table, json, csv, uri")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Copy the rows to the clipboard as JSON")
	cmd.Flags().BoolVar(&opts.download, "download", false, "Save the rows as "+console.DownloadFileName)

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return queryFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *queryOptions) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	if !validFormat(opts.format) {
		return fmt.Errorf("unknown format %q (use %s)", opts.format, strings.Join(queryFormats, ", "))
	}

	query, err := readQuery(cmd, args, rt.session == nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, closeDB, err := rt.openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	clip, err := rt.clipboard(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	controller := console.NewController(svc, console.Options{
		Clipboard:    clip,
		Saver:        platform.DirSaver{Dir: rt.downloadDir()},
		Logger:       rt.logger,
		CopiedWindow: rt.cfg.GetCopiedWindow(),
		InitialQuery: query,
	})
	defer controller.Close()

	if err := controller.Execute(ctx); err != nil {
		return err
	}

	view := controller.View()
	if view.Kind == console.ViewError {
		return fmt.Errorf("query failed: %s", view.Message)
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if err := writeResult(out, controller.Result(), view, opts.format); err != nil {
		return err
	}
	if len(view.Mismatched) > 0 {
		fmt.Fprintf(errOut, "warning: %d rows have different columns than the first row\n", len(view.Mismatched))
	}

	rows := int64(controller.Result().RowCount())
	if opts.copy {
		if !controller.CanExport() {
			fmt.Fprintln(errOut, "Nothing to copy")
		} else if err := controller.CopyResults(ctx); err != nil {
			return err
		} else {
			fmt.Fprintf(errOut, "Copied %s rows to the clipboard\n", humanize.Comma(rows))
		}
	}

	if opts.download {
		d, err := controller.DownloadResults(ctx)
		if err != nil {
			return err
		}
		if d.Saved() {
			fmt.Fprintf(errOut, "Saved %s rows (%s) to %s\n",
				humanize.Comma(int64(d.Rows)), humanize.Bytes(uint64(d.Size)), d.Location)
		} else {
			fmt.Fprintln(errOut, "Nothing to download")
		}
	}

	return nil
}

func validFormat(format string) bool {
	for _, f := range queryFormats {
		if f == format {
			return true
		}
	}
	return false
}

// readQuery joins the arguments into one query. Without arguments the
// query is read from piped stdin when allowed.
func readQuery(cmd *cobra.Command, args []string, allowStdin bool) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query != "" {
		return query, nil
	}
	if !allowStdin || isTerminal(cmd.InOrStdin()) {
		return "", errNoQuery
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	query = strings.TrimSpace(string(data))
	if query == "" {
		return "", errNoQuery
	}
	return query, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeResult prints a successful result in the requested format.
func writeResult(w io.Writer, result *console.QueryResult, view console.View, format string) error {
	switch format {
	case formatJSON, formatURI:
		data, err := console.MarshalRows(result.Data)
		if err != nil {
			return err
		}
		if format == formatURI {
			_, err = fmt.Fprintln(w, console.DataURI(data))
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err

	case formatCSV:
		t := newTable(w, view.Headers)
		for _, row := range result.Data {
			t.AppendRow(csvRow(row, view.Headers))
		}
		t.RenderCSV()
		return nil

	default:
		if view.Kind != console.ViewTable {
			_, err := fmt.Fprintln(w, view.Message)
			return err
		}
		t := newTable(w, view.Headers)
		t.SetStyle(table.StyleLight)
		t.Style().Format.Header = text.FormatDefault
		for _, cells := range view.Rows {
			row := make(table.Row, len(cells))
			for i, c := range cells {
				row[i] = c
			}
			t.AppendRow(row)
		}
		t.Render()
		_, err := fmt.Fprintf(w, "(%s rows)\n", humanize.Comma(int64(len(view.Rows))))
		return err
	}
}

func newTable(w io.Writer, headers []string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	if len(headers) > 0 {
		header := make(table.Row, len(headers))
		for i, h := range headers {
			header[i] = h
		}
		t.AppendHeader(header)
	}
	return t
}

// csvRow leaves NULL and missing cells empty.
func csvRow(row console.Row, headers []string) table.Row {
	out := make(table.Row, len(headers))
	for i, col := range headers {
		v, ok := row.Get(col)
		if !ok || v == nil {
			out[i] = ""
			continue
		}
		out[i] = console.DisplayValue(v)
	}
	return out
}
