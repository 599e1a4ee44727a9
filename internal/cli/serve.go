package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/johan-st/query-console/internal/config"
	"github.com/johan-st/query-console/internal/database"
	"github.com/johan-st/query-console/internal/server"
	"github.com/johan-st/query-console/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console over SSH",
		Long: `Start an SSH server. Sessions with a terminal get the interactive
console; sessions that pass a command run it and exit:

  ssh -p 2222 host                                 interactive console
  ssh -p 2222 host query "SELECT * FROM patients"  one-shot query
  ssh -p 2222 host examples                        list example queries

Clients are not authenticated. The config file is reloaded when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			if listen != "" {
				rt.cfg.SetListen(listen)
			}
			return runServe(cmd.Context(), rt)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides server.ssh.listen)")
	return cmd
}

func runServe(ctx context.Context, rt *runtime) error {
	svc, closeDB, err := rt.openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := svc.Ping(ctx); err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)

	// Start config watcher for hot-reloading
	if rt.cfg.Path() != "" {
		watcher, err := config.NewWatcher(rt.cfg, rt.logger)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		watcher.OnReload(func(cfg *config.Config) {
			rt.logger.SetLevel(cfg.GetLogLevel())
			rt.logger.Info("config reloaded", "path", cfg.Path())
		})
		if err := watcher.Start(); err != nil {
			rt.logger.Warn("failed to start config watcher", "error", err)
		}
		eg.Go(func() error {
			<-egctx.Done()
			watcher.Stop()
			return nil
		})
	}

	srv := server.NewServer(rt.cfg, rt.logger)
	srv.SetTUIHandler(tui.Handler(tui.Deps{
		Service: svc,
		Config:  rt.cfg,
		Logger:  rt.logger,
	}))
	srv.SetCLIHandler(SessionHandler(rt.cfg, rt.logger, svc))

	eg.Go(func() error {
		return srv.ListenAndServe(egctx)
	})

	return eg.Wait()
}

// newSessionCmd builds the command tree available to SSH sessions.
func newSessionCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "query-console",
		Short:         "Query console over SSH",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newQueryCmd())
	root.AddCommand(newExamplesCmd())
	root.AddCommand(newVersionCmd())
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// SessionHandler runs the command of an SSH session against the shared
// query service and exits the session with its status.
func SessionHandler(cfg *config.Config, logger *log.Logger, svc *database.Service) func(ssh.Session) {
	return func(s ssh.Session) {
		l := logger
		if session := server.GetSessionFromSSH(s); session != nil {
			l = logger.With("session", session.ID)
		}

		rt := &runtime{cfg: cfg, logger: l, session: s, service: svc}

		root := newSessionCmd()
		root.SetArgs(s.Command())
		root.SetIn(s)
		root.SetOut(s)
		root.SetErr(s.Stderr())

		err := root.ExecuteContext(withRuntime(s.Context(), rt))
		if err == nil {
			_ = s.Exit(0)
			return
		}
		if errors.Is(err, context.Canceled) {
			l.Info("session closed while running command")
		}
		wish.Fatalln(s, "Error: "+err.Error())
	}
}
