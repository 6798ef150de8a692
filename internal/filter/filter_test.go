package filter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/diffchunk-mcp/internal/config"
	"github.com/dshills/diffchunk-mcp/internal/parser"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// fileDiff builds a one-hunk git diff for path from content lines
func fileDiff(path string, body ...string) string {
	oldCount, newCount := 0, 0
	for _, l := range body {
		switch {
		case strings.HasPrefix(l, "+"):
			newCount++
		case strings.HasPrefix(l, "-"):
			oldCount++
		default:
			oldCount++
			newCount++
		}
	}
	var b strings.Builder
	b.WriteString("diff --git a/" + path + " b/" + path + "\n")
	b.WriteString("--- a/" + path + "\n")
	b.WriteString("+++ b/" + path + "\n")
	b.WriteString(types.FormatHeader(1, oldCount, 1, newCount, "") + "\n")
	for _, l := range body {
		b.WriteString(l + "\n")
	}
	return b.String()
}

func parse(t *testing.T, diffs ...string) *types.DiffDocument {
	t.Helper()
	doc := parser.New().ParseString(strings.Join(diffs, ""))
	require.Zero(t, doc.AnomalyCount(), "fixture should parse cleanly")
	return doc
}

// trivialFlags returns the Trivial flag of each line of the first hunk
func trivialFlags(f *types.FileDiff) []bool {
	var flags []bool
	for _, l := range f.Hunks[0].Lines {
		flags = append(flags, l.Trivial)
	}
	return flags
}

func TestClassify_BlankLines(t *testing.T) {
	doc := parse(t, fileDiff("a.go", " x", "+", "+   ", "+\t"))

	require.NoError(t, Classify(doc, config.Default()))

	f := doc.Files[0]
	assert.Equal(t, []bool{false, true, true, true}, trivialFlags(f))
	assert.Equal(t, types.ExclusionTrivialOnly, f.Exclusion)
}

func TestClassify_TrivialOnlyRequiresSkipTrivial(t *testing.T) {
	doc := parse(t, fileDiff("a.go", " x", "+"))

	cfg := config.Default()
	cfg.SkipTrivial = false
	require.NoError(t, Classify(doc, cfg))

	f := doc.Files[0]
	assert.Equal(t, types.ExclusionNone, f.Exclusion)
	assert.True(t, f.Hunks[0].Lines[1].Trivial, "lines are still annotated")
}

func TestClassify_TrailingWhitespaceAndLineEndings(t *testing.T) {
	doc := parse(t,
		fileDiff("a.go", "-foo", "+foo  "),
		fileDiff("b.go", "-bar\r", "+bar"),
		fileDiff("c.go", "-baz", "+qux"),
	)
	require.NoError(t, Classify(doc, config.Default()))

	assert.Equal(t, []bool{true, true}, trivialFlags(doc.Files[0]))
	assert.Equal(t, []bool{true, true}, trivialFlags(doc.Files[1]))
	assert.Equal(t, []bool{false, false}, trivialFlags(doc.Files[2]))
	assert.Equal(t, types.ExclusionNone, doc.Files[2].Exclusion)
}

func TestClassify_WhitespaceModes(t *testing.T) {
	tests := []struct {
		name string
		del  string
		add  string
		want map[config.WhitespaceMode]bool
	}{
		{
			name: "reindent",
			del:  "-    foo()",
			add:  "+\tfoo()",
			want: map[config.WhitespaceMode]bool{
				config.WhitespaceTrailing:    false,
				config.WhitespaceIndentation: true,
				config.WhitespaceAll:         true,
			},
		},
		{
			name: "inner spacing",
			del:  "-a = b",
			add:  "+a  =  b",
			want: map[config.WhitespaceMode]bool{
				config.WhitespaceTrailing:    false,
				config.WhitespaceIndentation: false,
				config.WhitespaceAll:         true,
			},
		},
		{
			name: "real edit",
			del:  "-a = b",
			add:  "+a = c",
			want: map[config.WhitespaceMode]bool{
				config.WhitespaceTrailing:    false,
				config.WhitespaceIndentation: false,
				config.WhitespaceAll:         false,
			},
		},
	}

	for _, tt := range tests {
		for mode, want := range tt.want {
			t.Run(tt.name+"/"+string(mode), func(t *testing.T) {
				doc := parse(t, fileDiff("a.go", tt.del, tt.add))
				cfg := config.Default()
				cfg.Whitespace = mode
				require.NoError(t, Classify(doc, cfg))
				assert.Equal(t, []bool{want, want}, trivialFlags(doc.Files[0]))
			})
		}
	}
}

func TestClassify_PairsByPositionInRun(t *testing.T) {
	doc := parse(t, fileDiff("a.go",
		"-a",
		"-b",
		"+a ",
		"+c",
		" ctx",
		"-d",
		"+d\t",
	))
	require.NoError(t, Classify(doc, config.Default()))

	assert.Equal(t, []bool{true, false, true, false, false, true, true}, trivialFlags(doc.Files[0]))
	assert.Equal(t, types.ExclusionNone, doc.Files[0].Exclusion)
}

func TestClassify_Generated(t *testing.T) {
	doc := parse(t,
		fileDiff("package-lock.json", "-a", "+b"),
		fileDiff("web/node_modules/left-pad/index.js", "-a", "+b"),
		fileDiff("dist/app.js", "-a", "+b"),
		fileDiff("static/app.min.js", "-a", "+b"),
		fileDiff("api/service.pb.go", "-a", "+b"),
		fileDiff("src/dist.go", "-a", "+b"),
		fileDiff("build.go", "-a", "+b"),
	)

	require.NoError(t, Classify(doc, config.Default()))
	var got []types.Exclusion
	for _, f := range doc.Files {
		got = append(got, f.Exclusion)
	}
	assert.Equal(t, []types.Exclusion{
		types.ExclusionGenerated,
		types.ExclusionGenerated,
		types.ExclusionGenerated,
		types.ExclusionGenerated,
		types.ExclusionGenerated,
		types.ExclusionNone,
		types.ExclusionNone,
	}, got)

	cfg := config.Default()
	cfg.SkipGenerated = false
	require.NoError(t, Classify(doc, cfg))
	for _, f := range doc.Files {
		assert.Equal(t, types.ExclusionNone, f.Exclusion, f.Path())
	}
}

func TestClassify_GeneratedDeletionUsesOldPath(t *testing.T) {
	input := strings.Join([]string{
		"diff --git a/yarn.lock b/yarn.lock",
		"deleted file mode 100644",
		"--- a/yarn.lock",
		"+++ /dev/null",
		"@@ -1 +0,0 @@",
		"-lock",
		"",
	}, "\n")
	doc := parse(t, input)
	require.NoError(t, Classify(doc, config.Default()))
	assert.Equal(t, types.ExclusionGenerated, doc.Files[0].Exclusion)
}

func TestClassify_IncludeExclude(t *testing.T) {
	newDoc := func() *types.DiffDocument {
		return parse(t,
			fileDiff("main.py", "-a", "+b"),
			fileDiff("tests/test_main.py", "-a", "+b"),
			fileDiff("README.md", "-a", "+b"),
		)
	}

	exclusions := func(doc *types.DiffDocument) []types.Exclusion {
		var out []types.Exclusion
		for _, f := range doc.Files {
			out = append(out, f.Exclusion)
		}
		return out
	}

	t.Run("include", func(t *testing.T) {
		doc := newDoc()
		cfg := config.Default()
		cfg.IncludePatterns = []string{"*.py"}
		require.NoError(t, Classify(doc, cfg))
		assert.Equal(t, []types.Exclusion{"", "", types.ExclusionPattern}, exclusions(doc))
	})

	t.Run("exclude wins over include", func(t *testing.T) {
		doc := newDoc()
		cfg := config.Default()
		cfg.IncludePatterns = []string{"*.py"}
		cfg.ExcludePatterns = []string{"tests/*"}
		require.NoError(t, Classify(doc, cfg))
		assert.Equal(t, []types.Exclusion{"", types.ExclusionPattern, types.ExclusionPattern}, exclusions(doc))
	})

	t.Run("rename matches old path", func(t *testing.T) {
		doc := parse(t, strings.Join([]string{
			"diff --git a/old/x.py b/new/x.txt",
			"similarity index 90%",
			"rename from old/x.py",
			"rename to new/x.txt",
			"",
		}, "\n"))
		cfg := config.Default()
		cfg.ExcludePatterns = []string{"old/*"}
		require.NoError(t, Classify(doc, cfg))
		assert.Equal(t, types.ExclusionPattern, doc.Files[0].Exclusion)
	})
}

func TestClassify_BinaryAndRenameNeverTrivialOnly(t *testing.T) {
	doc := parse(t, strings.Join([]string{
		"diff --git a/logo.png b/logo.png",
		"Binary files a/logo.png and b/logo.png differ",
		"diff --git a/a.go b/b.go",
		"similarity index 100%",
		"rename from a.go",
		"rename to b.go",
		"",
	}, "\n"))
	require.NoError(t, Classify(doc, config.Default()))
	assert.Equal(t, types.ExclusionNone, doc.Files[0].Exclusion)
	assert.Equal(t, types.ExclusionNone, doc.Files[1].Exclusion)
}

func TestClassify_Idempotent(t *testing.T) {
	doc := parse(t,
		fileDiff("a.go", "-x ", "+x", "+", " y", "-z", "+w"),
		fileDiff("b.go", "+"),
		fileDiff("yarn.lock", "-a", "+b"),
	)
	c, err := New(config.Default())
	require.NoError(t, err)

	c.Classify(doc)
	first := snapshot(doc)
	c.Classify(doc)
	second := snapshot(doc)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second classification changed flags (-first +second):\n%s", diff)
	}
}

func TestClassify_ResetsPreviousResult(t *testing.T) {
	doc := parse(t, fileDiff("a.go", "-x", "+x "))

	require.NoError(t, Classify(doc, config.Default()))
	assert.Equal(t, types.ExclusionTrivialOnly, doc.Files[0].Exclusion)

	cfg := config.Default()
	cfg.SkipTrivial = false
	require.NoError(t, Classify(doc, cfg))
	assert.Equal(t, types.ExclusionNone, doc.Files[0].Exclusion)
}

type fileFlags struct {
	Exclusion types.Exclusion
	Trivial   []bool
}

func snapshot(doc *types.DiffDocument) []fileFlags {
	out := make([]fileFlags, 0, len(doc.Files))
	for _, f := range doc.Files {
		ff := fileFlags{Exclusion: f.Exclusion}
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				ff.Trivial = append(ff.Trivial, l.Trivial)
			}
		}
		out = append(out, ff)
	}
	return out
}

func TestClassify_InvalidConfig(t *testing.T) {
	doc := parse(t, fileDiff("a.go", "+x"))

	cfg := config.Default()
	cfg.MaxChunkLines = 0
	err := Classify(doc, cfg)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindInvalidConfiguration))

	cfg = config.Default()
	cfg.IncludePatterns = []string{"[oops"}
	_, err = New(cfg)
	assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

func TestSummarize(t *testing.T) {
	doc := parse(t,
		fileDiff("a.go", "-x", "+x ", "-y", "+z"),
		fileDiff("blank.go", "+"),
		fileDiff("yarn.lock", "+   "),
		fileDiff("docs/guide.md", "-a", "+b"),
	)
	cfg := config.Default()
	cfg.ExcludePatterns = []string{"docs/*"}
	require.NoError(t, Classify(doc, cfg))

	s := Summarize(doc)
	assert.Equal(t, Summary{
		TrivialOnlyFiles: 1,
		PatternExcluded:  1,
		GeneratedFiles:   1,
		TrivialLines:     3,
	}, s)
	assert.Contains(t, s.String(), "trivial-only=1")

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestIsGenerated(t *testing.T) {
	assert.True(t, IsGenerated("poetry.lock"))
	assert.True(t, IsGenerated("services/api/poetry.lock"))
	assert.True(t, IsGenerated("src/__pycache__/mod.cpython-312.pyc"))
	assert.True(t, IsGenerated("Forms/Main.designer.cs"))
	assert.False(t, IsGenerated("lock.go"))
	assert.False(t, IsGenerated("distribution/readme.md"))
}
