// Package server serves the query console over SSH.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/johan-st/query-console/internal/config"
)

// shutdownTimeout bounds how long open sessions may take to finish.
const shutdownTimeout = 30 * time.Second

// Server is the SSH server for the query console. Clients are not
// authenticated.
type Server struct {
	config     *config.Config
	logger     *log.Logger
	sessionMgr *SessionManager
	tuiHandler bubbletea.Handler
	cliHandler func(ssh.Session)
}

// NewServer creates a new SSH server.
func NewServer(cfg *config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		config:     cfg,
		logger:     logger.With("component", "ssh"),
		sessionMgr: NewSessionManager(),
	}
}

// SetTUIHandler sets the Bubble Tea handler for interactive sessions.
func (s *Server) SetTUIHandler(handler bubbletea.Handler) {
	s.tuiHandler = handler
}

// SetCLIHandler sets the handler for CLI commands.
func (s *Server) SetCLIHandler(handler func(ssh.Session)) {
	s.cliHandler = handler
}

// build creates the underlying wish server.
func (s *Server) build() (*ssh.Server, error) {
	settings := s.config.SSHSettings()

	// Ensure host key directory exists
	keyDir := filepath.Dir(settings.HostKeyPath)
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create host key directory: %w", err)
	}

	// Build middleware chain
	middleware := []wish.Middleware{
		// Order matters: last middleware wraps first
		s.routingMiddleware(),           // Route to TUI or CLI
		LoggingMiddleware(s.logger),     // Log connections
		SessionMiddleware(s.sessionMgr), // Create session
	}

	opts := []ssh.Option{
		wish.WithAddress(settings.Listen),
		wish.WithHostKeyPath(settings.HostKeyPath),
		wish.WithMiddleware(middleware...),
	}

	// Add timeouts
	if s.config.GetIdleTimeout() > 0 {
		opts = append(opts, wish.WithIdleTimeout(s.config.GetIdleTimeout()))
	}
	if s.config.GetMaxTimeout() > 0 {
		opts = append(opts, wish.WithMaxTimeout(s.config.GetMaxTimeout()))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH server: %w", err)
	}
	return server, nil
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	return s.run(ctx, s.config.SSHSettings().Listen, func(server *ssh.Server) error {
		return server.ListenAndServe()
	})
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	return s.run(ctx, l.Addr().String(), func(server *ssh.Server) error {
		return server.Serve(l)
	})
}

func (s *Server) run(ctx context.Context, addr string, serve func(*ssh.Server) error) error {
	server, err := s.build()
	if err != nil {
		return err
	}

	s.logger.Info("starting SSH server", "listen", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(server)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, ssh.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down SSH server", "sessions", s.sessionMgr.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// GetSessionManager returns the session manager.
func (s *Server) GetSessionManager() *SessionManager {
	return s.sessionMgr
}

// routingMiddleware routes requests to either TUI or CLI handler.
func (s *Server) routingMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			cmd := sess.Command()

			// If command is provided, use CLI handler
			if len(cmd) > 0 {
				if s.cliHandler != nil {
					s.cliHandler(sess)
				} else {
					wish.Fatalln(sess, "commands are not available on this server")
				}
				return
			}

			// No command, use TUI handler
			_, _, hasPty := sess.Pty()
			if !hasPty {
				wish.Fatalln(sess, "PTY required for interactive mode. Use -t flag or provide a command.")
				return
			}

			if s.tuiHandler != nil {
				bubbletea.Middleware(s.tuiHandler)(next)(sess)
			} else {
				wish.Fatalln(sess, "interactive console is not available on this server")
			}
		}
	}
}
