// Package cli implements the query-console command line for local use and
// the command subset served over SSH.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/johan-st/query-console/internal/config"
	"github.com/johan-st/query-console/internal/console"
	"github.com/johan-st/query-console/internal/database"
	"github.com/johan-st/query-console/internal/platform"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// runtimeKey stores the runtime in the command context.
type runtimeKey struct{}

// runtime is what commands share once the configuration is loaded.
type runtime struct {
	cfg     *config.Config
	logger  *log.Logger
	logFile *os.File

	// Set when commands run inside an SSH session.
	session ssh.Session
	service *database.Service
}

func withRuntime(ctx context.Context, rt *runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

func runtimeFrom(ctx context.Context) (*runtime, error) {
	if rt, ok := ctx.Value(runtimeKey{}).(*runtime); ok {
		return rt, nil
	}
	return nil, errors.New("configuration not loaded")
}

// openService returns the query service. Over SSH the server's shared
// service is used and the returned close func does nothing.
func (rt *runtime) openService(ctx context.Context) (*database.Service, func(), error) {
	if rt.service != nil {
		return rt.service, func() {}, nil
	}

	conn, err := database.Open(ctx, rt.cfg.Database.Path, database.OpenOptions{
		ReadOnly:    rt.cfg.Database.ReadOnly,
		BusyTimeout: rt.cfg.Database.BusyTimeoutMS,
	})
	if err != nil {
		return nil, nil, err
	}

	svc := database.NewService(conn, database.ServiceOptions{
		Logger:  rt.logger,
		Timeout: rt.cfg.GetQueryTimeout(),
	})
	return svc, func() {
		if err := conn.Close(); err != nil {
			rt.logger.Warn("failed to close database", "error", err)
		}
	}, nil
}

// clipboard picks the clipboard for command output. Over SSH the sequence
// goes to the session; locally OSC52 goes to out so stdout stays clean.
func (rt *runtime) clipboard(out io.Writer) (console.ClipboardWriter, error) {
	mode := rt.cfg.ConsoleSettings().Clipboard
	if rt.session != nil && mode != platform.ClipboardNone {
		return platform.OSC52Clipboard{Out: rt.session}, nil
	}
	return platform.NewClipboard(mode, out)
}

func (rt *runtime) downloadDir() string {
	dir := rt.cfg.ConsoleSettings().DownloadDir
	if rt.session != nil {
		return filepath.Join(dir, platform.UserDir(rt.session.User()))
	}
	return dir
}

func (rt *runtime) close() {
	if rt.logFile != nil {
		rt.logFile.Close()
		rt.logFile = nil
	}
}

// loadConfig reads path, or the defaults when path is empty, and applies
// the database override.
func loadConfig(path, dbPath string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// newLogger builds the process logger. Interactive sessions must not write
// to the terminal, so they log to the configured file or nowhere.
func newLogger(cfg *config.Config, stderr io.Writer, interactive bool) (*log.Logger, *os.File, error) {
	var out io.Writer = stderr
	var file *os.File

	switch {
	case cfg.Log.File != "":
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, file = f, f
	case interactive:
		out = io.Discard
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           cfg.GetLogLevel(),
		ReportTimestamp: true,
		Prefix:          "query-console",
	})
	return logger, file, nil
}

func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", "__complete", "version":
		return true
	}
	return false
}

// NewRootCmd creates the root command. Without a subcommand it starts the
// interactive console.
func NewRootCmd() *cobra.Command {
	var configPath, dbPath string
	var rt *runtime

	root := &cobra.Command{
		Use:   "query-console",
		Short: "Ad-hoc SQL query console for a SQLite patient database",
		Long: `query-console runs free-form SQL against a SQLite database and shows the
rows in a table. Results can be copied to the clipboard or saved as
patient_query_results.json.

It runs as a terminal UI, as one-shot commands, or as an SSH server that
offers both.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig(cmd) {
				return nil
			}

			cfg, err := loadConfig(configPath, dbPath)
			if err != nil {
				return err
			}

			interactive := cmd == cmd.Root() || cmd.Name() == "tui"
			logger, file, err := newLogger(cfg, cmd.ErrOrStderr(), interactive)
			if err != nil {
				return err
			}

			rt = &runtime{cfg: cfg, logger: logger, logFile: file}
			cmd.SetContext(withRuntime(cmd.Context(), rt))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt != nil {
				rt.close()
			}
		},
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: built-in settings)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database to query (overrides database.path)")

	root.AddCommand(newTUICmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newExamplesCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
