package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/diffchunk-mcp/internal/storage"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

func addedFile(path string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\nnew file mode 100644\n--- /dev/null\n+++ b/%s\n", path, path, path)
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", n)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "+%s line %d\n", path, i)
	}
	return b.String()
}

// fixture writes a diff and a settings file that keeps the history in
// the test directory
type fixture struct {
	dir      string
	diff     string
	settings string
	history  string
}

func newFixture(t *testing.T, settings string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		diff:     filepath.Join(dir, "changes.diff"),
		settings: filepath.Join(dir, "diffchunk.yaml"),
		history:  filepath.Join(dir, "state", "history.db"),
	}

	content := addedFile("a.py", 3) + addedFile("b.js", 3) + addedFile("c.py", 3)
	require.NoError(t, os.WriteFile(f.diff, []byte(content), 0o644))

	yaml := fmt.Sprintf("server:\n  history_path: %s\n%s", f.history, settings)
	require.NoError(t, os.WriteFile(f.settings, []byte(yaml), 0o644))
	return f
}

func (f fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", f.settings}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestList(t *testing.T) {
	f := newFixture(t, "")

	out, _, err := f.run(t, "list", f.diff, "--max-lines", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "3 lines  Changes to a.py")
	assert.Contains(t, lines[2], "Changes to c.py")
}

func TestList_SettingsFile(t *testing.T) {
	f := newFixture(t, "chunking:\n  max_chunk_lines: 100\n  exclude_patterns: [\"*.js\"]\n")

	out, _, err := f.run(t, "list", f.diff)
	require.NoError(t, err)
	assert.Equal(t, "1        6 lines  Changes to a.py, c.py\n", out)

	// Flags win over the file
	out, _, err = f.run(t, "list", f.diff, "--exclude", "", "--max-lines", "3")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestShow(t *testing.T) {
	f := newFixture(t, "")

	out, _, err := f.run(t, "show", f.diff, "2", "--max-lines", "3", "--no-metadata")
	require.NoError(t, err)
	assert.Equal(t, addedFile("b.js", 3), out)

	out, _, err = f.run(t, "show", f.diff, "2", "--max-lines", "3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "=== Chunk 2 of 3 ===\n"), out)
}

func TestShow_Errors(t *testing.T) {
	f := newFixture(t, "")

	_, _, err := f.run(t, "show", f.diff, "9")
	assert.ErrorIs(t, err, types.ErrOutOfRange)

	_, _, err = f.run(t, "show", f.diff, "two")
	assert.Error(t, err)

	_, _, err = f.run(t, "show", filepath.Join(f.dir, "missing.diff"), "1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, _, err = f.run(t, "show", f.diff)
	assert.Error(t, err, "chunk number is required")
}

func TestFind(t *testing.T) {
	f := newFixture(t, "")

	out, _, err := f.run(t, "find", f.diff, "*.py", "--max-lines", "3")
	require.NoError(t, err)
	assert.Equal(t, "1 3\n", out)

	out, _, err = f.run(t, "find", f.diff, "*.go", "--max-lines", "3")
	require.NoError(t, err)
	assert.Equal(t, "No chunks contain files matching *.go\n", out)

	_, _, err = f.run(t, "find", f.diff, "[")
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestInfo(t *testing.T) {
	f := newFixture(t, "")

	out, _, err := f.run(t, "info", f.diff, "--max-lines", "3", "--stats")
	require.NoError(t, err)

	assert.Contains(t, out, "File:       "+f.diff+"\n")
	assert.Contains(t, out, "Chunks:     3 (max 3 lines each)\n")
	assert.Contains(t, out, "Files:      3 (0 trivial-only, 0 excluded, 0 generated, 0 binary)\n")
	assert.Contains(t, out, "Lines:      9 (+9 -0, 0 trivial)\n")
	assert.Contains(t, out, "Chunk lines: min 3, max 3")
	assert.NotContains(t, out, "Anomaly:")
}

func TestInfo_LogLevel(t *testing.T) {
	f := newFixture(t, "")

	_, stderr, err := f.run(t, "info", f.diff)
	require.NoError(t, err)
	assert.Empty(t, stderr, "commands stay quiet by default")

	_, stderr, err = f.run(t, "info", f.diff, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, "diff loaded")

	_, _, err = f.run(t, "info", f.diff, "--log-level", "loud")
	assert.Error(t, err)
}

func TestInfo_LogLevelFromEnv(t *testing.T) {
	f := newFixture(t, "")
	t.Setenv(envLogLevel, "debug")

	_, stderr, err := f.run(t, "info", f.diff)
	require.NoError(t, err)
	assert.Contains(t, stderr, "diff loaded")

	// The flag wins over the environment
	_, stderr, err = f.run(t, "info", f.diff, "--log-level", "error")
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestInvalidFlags(t *testing.T) {
	f := newFixture(t, "")

	_, _, err := f.run(t, "list", f.diff, "--max-lines", "0")
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)

	_, _, err = f.run(t, "list", f.diff, "--whitespace", "none")
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestExport(t *testing.T) {
	f := newFixture(t, "")
	outDir := filepath.Join(f.dir, "chunks")

	out, _, err := f.run(t, "export", f.diff, "--max-lines", "3", "--out", outDir, "--workers", "2")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Wrote 3 chunks to %s\n", outDir), out)

	data, err := os.ReadFile(filepath.Join(outDir, "chunk-003.diff"))
	require.NoError(t, err)
	assert.Equal(t, addedFile("c.py", 3), string(data))

	_, _, err = f.run(t, "export", f.diff)
	assert.Error(t, err, "--out is required")
}

func TestHistory(t *testing.T) {
	f := newFixture(t, "")

	out, _, err := f.run(t, "history")
	require.NoError(t, err)
	assert.Equal(t, "No loads recorded\n", out)

	store, err := storage.NewSQLiteStorage(f.history)
	require.NoError(t, err)
	require.NoError(t, store.RecordLoad(context.Background(), &storage.LoadRecord{
		Handle:     "0123456789abcdef",
		DiffPath:   f.diff,
		ChunkCount: 3,
		TotalLines: 12345,
		LoadedAt:   time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.Close())

	out, _, err = f.run(t, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "12,345 lines")
	assert.Contains(t, out, f.diff)
}

func TestHistory_Disabled(t *testing.T) {
	f := newFixture(t, "")
	yaml := "server:\n  history_disabled: true\n"
	require.NoError(t, os.WriteFile(f.settings, []byte(yaml), 0o644))

	_, _, err := f.run(t, "history")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	f := newFixture(t, "")

	out, _, err := f.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "diffchunk version: dev\n")
	assert.Contains(t, out, "build mode: "+storage.BuildMode)
}
