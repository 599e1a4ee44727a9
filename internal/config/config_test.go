package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "SELECT * FROM patients LIMIT 10", cfg.Console.DefaultQuery)
	assert.Equal(t, 2*time.Second, cfg.GetCopiedWindow())
	assert.Equal(t, 30*time.Second, cfg.GetQueryTimeout())
	assert.Equal(t, log.InfoLevel, cfg.GetLogLevel())
	assert.NoError(t, cfg.Validate())

	require.Len(t, cfg.Console.Examples, 2)
	assert.Equal(t, "Basic query", cfg.Console.Examples[0].Name)
	assert.Equal(t, "SELECT * FROM patients ORDER BY last_name LIMIT 10", cfg.Console.Examples[0].Query)
	assert.Equal(t, "Filter by name", cfg.Console.Examples[1].Name)
	assert.Equal(t, "SELECT * FROM patients WHERE last_name LIKE 'S%' ORDER BY last_name", cfg.Console.Examples[1].Query)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
name: clinic
database:
  path: /data/clinic.db
  read_only: true
  query_timeout: 5s
console:
  copied_window: 500ms
  clipboard: osc52
  examples:
    - name: Count
      query: SELECT COUNT(*) FROM patients
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clinic", cfg.Name)
	assert.Equal(t, "/data/clinic.db", cfg.Database.Path)
	assert.True(t, cfg.Database.ReadOnly)
	assert.Equal(t, 5000, cfg.Database.BusyTimeoutMS, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.GetQueryTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetCopiedWindow())
	assert.Equal(t, "osc52", cfg.Console.Clipboard)
	assert.Equal(t, DefaultQuery, cfg.Console.DefaultQuery)
	assert.Equal(t, []Example{{Name: "Count", Query: "SELECT COUNT(*) FROM patients"}}, cfg.Console.Examples)
	assert.Equal(t, log.DebugLevel, cfg.GetLogLevel())
	assert.Equal(t, path, cfg.Path())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "name: [", "failed to parse config file"},
		{"bad duration", "console:\n  copied_window: soon\n", "console.copied_window"},
		{"bad clipboard", "console:\n  clipboard: fax\n", "console.clipboard"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"empty example", "console:\n  examples:\n    - name: x\n", "console.examples[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "name: before\ndatabase:\n  path: a.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.HasChanged())

	writeConfig(t, dir, "name: after\ndatabase:\n  path: b.db\n")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	assert.True(t, cfg.HasChanged())

	require.NoError(t, cfg.Reload())
	assert.Equal(t, "after", cfg.Name)
	assert.Equal(t, "a.db", cfg.Database.Path, "database settings survive reloads")
	assert.False(t, cfg.HasChanged())
}

func TestReload_ConcurrentReads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "name: clinic\nserver:\n  ssh:\n    listen: \":2300\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			assert.NoError(t, cfg.Reload())
		}
	}()

	for {
		select {
		case <-done:
			assert.Equal(t, "clinic", cfg.GetName())
			assert.Equal(t, ":2300", cfg.SSHSettings().Listen)
			return
		default:
			assert.Equal(t, "clinic", cfg.GetName())
			assert.Equal(t, ":2300", cfg.SSHSettings().Listen)
			_ = cfg.ConsoleSettings()
		}
	}
}

func TestSetListen(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":2222", cfg.SSHSettings().Listen)
	cfg.SetListen("127.0.0.1:0")
	assert.Equal(t, "127.0.0.1:0", cfg.SSHSettings().Listen)
}

func TestExamples_Glob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "queries", "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries", "by_gender.sql"),
		[]byte("SELECT gender, COUNT(*) FROM patients GROUP BY gender\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries", "nested", "recent.sql"),
		[]byte("-- name: Recent patients\nSELECT * FROM patients ORDER BY created_at DESC\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries", "empty.sql"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries", "notes.txt"), []byte("ignored"), 0644))

	path := writeConfig(t, dir, "console:\n  examples_glob: queries/**/*.sql\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	examples, err := cfg.Examples()
	require.NoError(t, err)

	require.Len(t, examples, 4)
	assert.Equal(t, BuiltinExamples(), examples[:2])
	assert.Equal(t, Example{Name: "by_gender", Query: "SELECT gender, COUNT(*) FROM patients GROUP BY gender"}, examples[2])
	assert.Equal(t, Example{Name: "Recent patients", Query: "SELECT * FROM patients ORDER BY created_at DESC"}, examples[3])
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "name: before\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(cfg, nil)
	require.NoError(t, err)

	reloaded := make(chan string, 1)
	w.OnReload(func(c *Config) {
		select {
		case reloaded <- c.Name:
		default:
		}
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	writeConfig(t, dir, "name: after\n")

	select {
	case name := <-reloaded:
		assert.Equal(t, "after", name)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
