package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/johan-st/query-console/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

func startServer(t *testing.T, srv *Server) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, l) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return l.Addr().String()
}

func dial(t *testing.T, addr, user string) *gossh.Client {
	t.Helper()

	client, err := gossh.Dial("tcp", addr, &gossh.ClientConfig{
		User:            user,
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.SSH.HostKeyPath = filepath.Join(t.TempDir(), "keys", "host_key")
	return cfg
}

func TestServer_RoutesCommands(t *testing.T) {
	srv := NewServer(testConfig(t), nil)
	srv.SetCLIHandler(func(s ssh.Session) {
		session := GetSessionFromSSH(s)
		fmt.Fprintf(s, "%s %v %t\n", s.User(), s.Command(), session != nil && !session.Interactive())
		s.Exit(0)
	})
	addr := startServer(t, srv)

	client := dial(t, addr, "alice")
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	out, err := sess.Output("version")
	require.NoError(t, err)
	assert.Equal(t, "alice [version] true\n", string(out))

	client.Close()
	assert.Eventually(t, func() bool {
		return srv.GetSessionManager().Count() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServer_InteractiveNeedsPTY(t *testing.T) {
	srv := NewServer(testConfig(t), nil)
	addr := startServer(t, srv)

	client := dial(t, addr, "bob")
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	var stderr bytes.Buffer
	sess.Stderr = &stderr
	require.NoError(t, sess.Shell())

	err = sess.Wait()
	var exitErr *gossh.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitStatus())
	assert.Contains(t, stderr.String(), "PTY required")
}

func TestSessionManager(t *testing.T) {
	sm := NewSessionManager()

	a := sm.CreateSession("alice", "127.0.0.1:1", nil)
	b := sm.CreateSession("bob", "127.0.0.1:2", []string{"query", "SELECT 1"})

	assert.Equal(t, 2, sm.Count())
	assert.True(t, a.Interactive())
	assert.False(t, b.Interactive())
	assert.Same(t, a, sm.GetSession(a.ID))
	assert.NotEqual(t, a.ID, b.ID)

	sm.EndSession(a.ID)
	assert.Equal(t, 1, sm.Count())
	assert.Nil(t, sm.GetSession(a.ID))
	assert.Len(t, sm.ListActiveSessions(), 1)
}
