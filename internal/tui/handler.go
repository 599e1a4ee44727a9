package tui

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/johan-st/query-console/internal/config"
	"github.com/johan-st/query-console/internal/console"
	"github.com/johan-st/query-console/internal/database"
	"github.com/johan-st/query-console/internal/platform"
	"github.com/johan-st/query-console/internal/server"
	"golang.org/x/term"
)

// Deps are what every console session is built from.
type Deps struct {
	Service *database.Service
	Config  *config.Config
	Logger  *log.Logger
}

func (d Deps) newController(clip console.ClipboardWriter, downloadDir string, logger *log.Logger) *console.Controller {
	settings := d.Config.ConsoleSettings()
	return console.NewController(d.Service, console.Options{
		Clipboard:    clip,
		Saver:        platform.DirSaver{Dir: downloadDir},
		Logger:       logger,
		CopiedWindow: d.Config.GetCopiedWindow(),
		InitialQuery: settings.DefaultQuery,
	})
}

func (d Deps) newApp(ctx context.Context, controller *console.Controller, logger *log.Logger, width, height int) *App {
	examples, err := d.Config.Examples()
	if err != nil {
		logger.Warn("failed to load example files", "error", err)
	}

	return NewApp(controller, Options{
		Title:    d.Config.GetName(),
		Source:   d.Service.Path(),
		Examples: examples,
		Pinger:   d.Service,
		Context:  ctx,
		Width:    width,
		Height:   height,
	})
}

// Run runs the console on the local terminal until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, deps Deps) error {
	settings := deps.Config.ConsoleSettings()
	clip, err := platform.NewClipboard(settings.Clipboard, os.Stdout)
	if err != nil {
		return err
	}

	controller := deps.newController(clip, settings.DownloadDir, deps.Logger)
	defer controller.Close()

	// Get terminal size
	width, height := 80, 24
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
	}

	app := deps.newApp(ctx, controller, deps.Logger, width, height)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// Handler returns a bubbletea middleware handler for SSH sessions. Each
// session gets its own controller; the clipboard is reached through OSC52
// and downloads land in a per-user directory on the server.
func Handler(deps Deps) bubbletea.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		pty, _, ok := s.Pty()
		if !ok {
			// This shouldn't happen as routing middleware checks for PTY
			return nil, nil
		}

		logger := deps.Logger
		if session := server.GetSessionFromSSH(s); session != nil {
			logger = logger.With("session", session.ID)
		}

		settings := deps.Config.ConsoleSettings()
		var clip console.ClipboardWriter = platform.OSC52Clipboard{Out: s}
		if settings.Clipboard == platform.ClipboardNone {
			clip, _ = platform.NewClipboard(platform.ClipboardNone, nil)
		}

		controller := deps.newController(clip, filepath.Join(settings.DownloadDir, platform.UserDir(s.User())), logger)
		go func() {
			<-s.Context().Done()
			controller.Close()
		}()

		app := deps.newApp(s.Context(), controller, logger, pty.Window.Width, pty.Window.Height)

		return app, []tea.ProgramOption{
			tea.WithAltScreen(),
		}
	}
}
