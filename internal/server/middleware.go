package server

import (
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// Context keys for middleware values
type ctxKey string

const (
	ctxKeySession ctxKey = "session"
)

// SessionMiddleware registers a session for each connection.
func SessionMiddleware(sessionMgr *SessionManager) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			session := sessionMgr.CreateSession(s.User(), s.RemoteAddr().String(), s.Command())

			// Store session in context
			s.Context().SetValue(ctxKeySession, session)

			// Ensure session is cleaned up
			defer sessionMgr.EndSession(session.ID)

			next(s)
		}
	}
}

// LoggingMiddleware logs connections. It must run inside SessionMiddleware
// to tag log lines with the session id.
func LoggingMiddleware(logger *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			l := logger
			if session := GetSessionFromSSH(s); session != nil {
				l = logger.With("session", session.ID)
			}

			l.Info("connection",
				"remote", s.RemoteAddr().String(),
				"user", s.User(),
				"command", s.Command())

			next(s)

			if session := GetSessionFromSSH(s); session != nil {
				l.Info("disconnected", "remote", s.RemoteAddr().String(), "duration", session.Duration())
			} else {
				l.Info("disconnected", "remote", s.RemoteAddr().String())
			}
		}
	}
}

// GetSessionFromSSH retrieves the session from the SSH session context.
func GetSessionFromSSH(s ssh.Session) *Session {
	if session, ok := s.Context().Value(ctxKeySession).(*Session); ok {
		return session
	}
	return nil
}
