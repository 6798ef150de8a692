package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/diffchunk-mcp/pkg/types"
)

func writeSettings(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeSettings(t, t.TempDir(), "settings.yaml", `
chunking:
  max_chunk_lines: 1500
  whitespace: all
  exclude_patterns:
    - "*.snap"
    - "testdata/**"
server:
  max_sessions: 4
  history_disabled: true
`)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1500, f.Chunking.MaxChunkLines)
	assert.Equal(t, WhitespaceAll, f.Chunking.Whitespace)
	assert.Equal(t, []string{"*.snap", "testdata/**"}, f.Chunking.ExcludePatterns)
	// Unset fields keep their defaults
	assert.True(t, f.Chunking.SkipTrivial)
	assert.True(t, f.Chunking.PreferFileBoundaries)

	assert.Equal(t, 4, f.Server.MaxSessions)
	assert.True(t, f.Server.HistoryDisabled)
	assert.Equal(t, DefaultHistoryPath, f.Server.HistoryPath)
	assert.Equal(t, "info", f.Server.LogLevel)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeSettings(t, t.TempDir(), "empty.yaml", "")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultFile(), f)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "chunking:\n  max_lines: 10\n"},
		{"not yaml", "chunking: [unclosed\n"},
		{"invalid budget", "chunking:\n  max_chunk_lines: 0\n"},
		{"invalid sessions", "server:\n  max_sessions: 0\n"},
		{"wrong type", "chunking:\n  skip_trivial: often\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSettings(t, dir, tt.name+".yaml", tt.content)
			_, err := Load(path)
			assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestLoadDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("environment variable", func(t *testing.T) {
		path := writeSettings(t, t.TempDir(), "env.yaml", "chunking:\n  max_chunk_lines: 11\n")
		t.Setenv(EnvConfigPath, path)

		f, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, 11, f.Chunking.MaxChunkLines)
	})

	t.Run("parent directory", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		root := t.TempDir()
		writeSettings(t, root, ".diffchunk.yaml", "chunking:\n  max_chunk_lines: 22\n")
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		t.Chdir(nested)

		f, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, 22, f.Chunking.MaxChunkLines)
	})

	t.Run("user config", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Chdir(t.TempDir())
		path := writeSettings(t, home, filepath.Join(".config", "diffchunk", "config.yaml"), "chunking:\n  max_chunk_lines: 33\n")
		t.Cleanup(func() { _ = os.Remove(path) })

		f, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, 33, f.Chunking.MaxChunkLines)
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Chdir(t.TempDir())

		f, err := LoadDefault()
		require.NoError(t, err)
		assert.Equal(t, DefaultFile(), f)
	})
}

func TestResolvedHistoryPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := ServerConfig{}.ResolvedHistoryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".diffchunk", "history.db"), path)

	path, err = ServerConfig{HistoryPath: "/var/lib/diffchunk.db"}.ResolvedHistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/diffchunk.db", path)
}
