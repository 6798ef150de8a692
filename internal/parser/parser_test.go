package parser

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/google/go-cmp/cmp"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// lines joins diff lines with newlines. Writing fixtures this way keeps the
// single space of empty context lines visible.
func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

var multiFileDiff = lines(
	"diff --git a/README.md b/README.md",
	"index 3b18e51..a1b2c3d 100644",
	"--- a/README.md",
	"+++ b/README.md",
	"@@ -1,4 +1,5 @@",
	" # Project",
	" ",
	"-Old description.",
	"+New description.",
	"+More detail.",
	" ",
	"@@ -10,2 +11,2 @@ Usage",
	" run it",
	"-with flags",
	"+with options",
	"diff --git a/cmd/tool.go b/cmd/tool.go",
	"new file mode 100644",
	"index 0000000..e69de29",
	"--- /dev/null",
	"+++ b/cmd/tool.go",
	"@@ -0,0 +1,3 @@",
	"+package cmd",
	"+",
	"+func Run() {}",
	"diff --git a/legacy.txt b/legacy.txt",
	"deleted file mode 100644",
	"index e69de29..0000000",
	"--- a/legacy.txt",
	"+++ /dev/null",
	"@@ -1,2 +0,0 @@",
	"-first",
	"-second",
	"diff --git a/pkg/old.go b/pkg/new.go",
	"similarity index 90%",
	"rename from pkg/old.go",
	"rename to pkg/new.go",
	"index 1111111..2222222 100644",
	"--- a/pkg/old.go",
	"+++ b/pkg/new.go",
	"@@ -1,3 +1,3 @@",
	" package pkg",
	"-var x = 1",
	"+var x = 2",
	" ",
)

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
}

func TestParse_GitDiff(t *testing.T) {
	doc := New().ParseString(multiFileDiff)

	require.Len(t, doc.Files, 4)
	assert.Equal(t, 0, doc.AnomalyCount())
	assert.Equal(t, 9+3+2+4, doc.TotalLines)

	readme := doc.Files[0]
	assert.Equal(t, "README.md", readme.OldPath)
	assert.Equal(t, "README.md", readme.NewPath)
	assert.Equal(t, types.ChangeModified, readme.ChangeKind)
	assert.Len(t, readme.Hunks, 2)
	assert.Equal(t, 9, readme.LineCount)
	assert.Equal(t, "Usage", readme.Hunks[1].Section)
	assert.Equal(t, "@@ -10,2 +11,2 @@ Usage", readme.Hunks[1].Header)
	assert.Equal(t, []string{
		"diff --git a/README.md b/README.md",
		"index 3b18e51..a1b2c3d 100644",
		"--- a/README.md",
		"+++ b/README.md",
	}, readme.HeaderLines)

	added := doc.Files[1]
	assert.Equal(t, types.ChangeAdded, added.ChangeKind)
	assert.Equal(t, "cmd/tool.go", added.Path())
	assert.Equal(t, []string{"cmd/tool.go"}, added.Paths())

	deleted := doc.Files[2]
	assert.Equal(t, types.ChangeDeleted, deleted.ChangeKind)
	assert.Equal(t, "legacy.txt", deleted.Path())

	renamed := doc.Files[3]
	assert.Equal(t, types.ChangeRenamed, renamed.ChangeKind)
	assert.Equal(t, "pkg/old.go", renamed.OldPath)
	assert.Equal(t, "pkg/new.go", renamed.NewPath)
	assert.Equal(t, []string{"pkg/new.go", "pkg/old.go"}, renamed.Paths())
}

// fileShape is the part of a parsed file both parsers agree on
type fileShape struct {
	Path      string
	Kind      types.ChangeKind
	Hunks     [][4]int
	Additions int
	Deletions int
}

func TestParse_AgreesWithGitdiff(t *testing.T) {
	files, _, err := gitdiff.Parse(strings.NewReader(multiFileDiff))
	require.NoError(t, err)

	want := make([]fileShape, 0, len(files))
	for _, f := range files {
		shape := fileShape{Path: f.NewName, Kind: types.ChangeModified}
		switch {
		case f.IsNew:
			shape.Kind = types.ChangeAdded
		case f.IsDelete:
			shape.Kind = types.ChangeDeleted
			shape.Path = f.OldName
		case f.IsRename:
			shape.Kind = types.ChangeRenamed
		}
		for _, frag := range f.TextFragments {
			shape.Hunks = append(shape.Hunks, [4]int{
				int(frag.OldPosition), int(frag.OldLines),
				int(frag.NewPosition), int(frag.NewLines),
			})
			shape.Additions += int(frag.LinesAdded)
			shape.Deletions += int(frag.LinesDeleted)
		}
		want = append(want, shape)
	}

	doc := New().ParseString(multiFileDiff)
	got := make([]fileShape, 0, len(doc.Files))
	for _, f := range doc.Files {
		shape := fileShape{Path: f.Path(), Kind: f.ChangeKind}
		for _, h := range f.Hunks {
			shape.Hunks = append(shape.Hunks, [4]int{h.OldStart, h.OldCount, h.NewStart, h.NewCount})
		}
		shape.Additions, shape.Deletions = f.ChangeCounts()
		got = append(got, shape)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed files differ from gitdiff (-want +got):\n%s", diff)
	}
}

func TestParse_UnifiedDiffWithoutGitHeaders(t *testing.T) {
	first, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines("one\ntwo\nthree\n"),
		B:        difflib.SplitLines("one\n2\nthree\nfour\n"),
		FromFile: "old/a.txt",
		ToFile:   "new/a.txt",
		Context:  3,
	})
	require.NoError(t, err)

	second, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        []string{},
		B:        difflib.SplitLines("hello\n"),
		FromFile: types.DevNull,
		ToFile:   "new/b.txt",
		Context:  3,
	})
	require.NoError(t, err)

	doc := New().ParseString(first + second)
	require.Len(t, doc.Files, 2)
	assert.Equal(t, 0, doc.AnomalyCount())

	a := doc.Files[0]
	assert.Equal(t, "old/a.txt", a.OldPath)
	assert.Equal(t, "new/a.txt", a.NewPath)
	assert.Equal(t, types.ChangeModified, a.ChangeKind)
	adds, dels := a.ChangeCounts()
	assert.Equal(t, 2, adds)
	assert.Equal(t, 1, dels)

	b := doc.Files[1]
	assert.Equal(t, types.ChangeAdded, b.ChangeKind)
	assert.Equal(t, "new/b.txt", b.Path())
	assert.Equal(t, 1, b.LineCount)
}

func TestParse_TimestampsAndPrefixes(t *testing.T) {
	input := lines(
		"--- a/src/x.c\t2024-01-01 10:00:00.000000000 +0000",
		"+++ b/src/x.c\t2024-01-02 10:00:00.000000000 +0000",
		"@@ -1 +1 @@",
		"-a",
		"+b",
	)
	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	assert.Equal(t, "src/x.c", doc.Files[0].OldPath)
	assert.Equal(t, "src/x.c", doc.Files[0].NewPath)
}

func TestParse_FormatPatch(t *testing.T) {
	input := lines(
		"From 1234567890abcdef Mon Sep 17 00:00:00 2001",
		"From: Dev <dev@example.com>",
		"Subject: [PATCH] fix typo",
		"",
		"---",
		" a.txt | 2 +-",
		" 1 file changed, 1 insertion(+), 1 deletion(-)",
		"",
		"diff --git a/a.txt b/a.txt",
		"index 1111111..2222222 100644",
		"--- a/a.txt",
		"+++ b/a.txt",
		"@@ -1 +1 @@",
		"-teh",
		"+the",
		"-- ",
		"2.40.0",
	)

	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	assert.Equal(t, 0, doc.AnomalyCount())
	assert.Equal(t, "a.txt", doc.Files[0].Path())
	assert.Equal(t, 2, doc.Files[0].LineCount)
}

func TestParse_LinePositions(t *testing.T) {
	input := lines(
		"--- a/f",
		"+++ b/f",
		"@@ -10,3 +20,4 @@",
		" a",
		"-b",
		"+c",
		"+d",
		" e",
	)
	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	hunk := doc.Files[0].Hunks[0]

	type pos struct{ Old, New int }
	var got []pos
	for _, l := range hunk.Lines {
		got = append(got, pos{l.OldLine, l.NewLine})
	}
	assert.Equal(t, []pos{{10, 20}, {11, 0}, {0, 21}, {0, 22}, {12, 23}}, got)
}

func TestParse_OmittedCounts(t *testing.T) {
	input := lines(
		"--- a/f",
		"+++ b/f",
		"@@ -5 +5,2 @@ func x",
		"-a",
		"+b",
		"+c",
	)
	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	hunk := doc.Files[0].Hunks[0]
	assert.Equal(t, 1, hunk.OldCount)
	assert.Equal(t, 2, hunk.NewCount)
	assert.Equal(t, "func x", hunk.Section)
	assert.Empty(t, doc.Files[0].Anomalies)
}

func TestParse_NoNewlineMarker(t *testing.T) {
	input := lines(
		"--- a/f",
		"+++ b/f",
		"@@ -1 +1 @@",
		"-a",
		`\ No newline at end of file`,
		"+b",
		`\ No newline at end of file`,
	)
	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	f := doc.Files[0]
	assert.Equal(t, 2, f.LineCount)
	assert.Empty(t, f.Anomalies)
	require.Len(t, f.Hunks[0].Lines, 2)
	assert.True(t, f.Hunks[0].Lines[0].NoNewline)
	assert.True(t, f.Hunks[0].Lines[1].NoNewline)
}

func TestParse_EmptyContextWithoutSpace(t *testing.T) {
	input := lines(
		"--- a/f",
		"+++ b/f",
		"@@ -1,3 +1,3 @@",
		" a",
		"",
		"-b",
		"+c",
	)
	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	f := doc.Files[0]
	assert.Empty(t, f.Anomalies)
	require.Len(t, f.Hunks[0].Lines, 4)
	assert.Equal(t, types.LineContext, f.Hunks[0].Lines[1].Kind)
	assert.Equal(t, "", f.Hunks[0].Lines[1].Text)
}

func TestParse_CRLF(t *testing.T) {
	input := "diff --git a/w.txt b/w.txt\r\n" +
		"--- a/w.txt\r\n" +
		"+++ b/w.txt\r\n" +
		"@@ -1 +1 @@\r\n" +
		"-a\r\n" +
		"+a \r\n"

	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	f := doc.Files[0]
	assert.Equal(t, "w.txt", f.Path())
	assert.Empty(t, f.Anomalies)
	require.Len(t, f.Hunks[0].Lines, 2)
	assert.Equal(t, "a\r", f.Hunks[0].Lines[0].Text)
	assert.Equal(t, "a \r", f.Hunks[0].Lines[1].Text)
}

func TestParse_Binary(t *testing.T) {
	t.Run("git marker", func(t *testing.T) {
		input := lines(
			"diff --git a/img.png b/img.png",
			"index 1111111..2222222 100644",
			"Binary files a/img.png and b/img.png differ",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 1)
		f := doc.Files[0]
		assert.True(t, f.IsBinary)
		assert.Equal(t, types.ChangeBinary, f.ChangeKind)
		assert.Equal(t, "img.png", f.Path())
		assert.Equal(t, 0, f.LineCount)
		assert.Len(t, f.HeaderLines, 3)
	})

	t.Run("standalone markers", func(t *testing.T) {
		input := lines(
			"Binary files old/a.bin and new/a.bin differ",
			"Binary files old/b.bin and new/b.bin differ",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 2)
		assert.Equal(t, "new/a.bin", doc.Files[0].Path())
		assert.Equal(t, "new/b.bin", doc.Files[1].Path())
		assert.True(t, doc.Files[1].IsBinary)
	})

	t.Run("git binary patch", func(t *testing.T) {
		input := lines(
			"diff --git a/b.bin b/b.bin",
			"index 1111111..2222222 100644",
			"GIT binary patch",
			"literal 5",
			"McmZQzWMO1y0000A0RR91",
			"",
			"literal 0",
			"HcmV?d00001",
			"",
			"diff --git a/c.txt b/c.txt",
			"--- a/c.txt",
			"+++ b/c.txt",
			"@@ -1 +1 @@",
			"-x",
			"+y",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 2)
		assert.Equal(t, types.ChangeBinary, doc.Files[0].ChangeKind)
		assert.Empty(t, doc.Files[0].Hunks)
		assert.Equal(t, "c.txt", doc.Files[1].Path())
		assert.Equal(t, 2, doc.TotalLines)
		assert.Equal(t, 0, doc.AnomalyCount())
	})
}

func TestParse_PureRename(t *testing.T) {
	input := lines(
		"diff --git a/old.go b/new.go",
		"similarity index 100%",
		"rename from old.go",
		"rename to new.go",
	)
	doc := New().ParseString(input)
	require.Len(t, doc.Files, 1)
	f := doc.Files[0]
	assert.Equal(t, types.ChangeRenamed, f.ChangeKind)
	assert.Equal(t, "old.go", f.OldPath)
	assert.Equal(t, "new.go", f.NewPath)
	assert.Empty(t, f.Hunks)
	assert.Equal(t, 0, f.LineCount)
}

func TestParse_PathsWithSpaces(t *testing.T) {
	t.Run("unquoted", func(t *testing.T) {
		doc := New().ParseString(lines(
			"diff --git a/my file.txt b/my file.txt",
			"new file mode 100644",
		))
		require.Len(t, doc.Files, 1)
		assert.Equal(t, "my file.txt", doc.Files[0].NewPath)
		assert.Equal(t, types.ChangeAdded, doc.Files[0].ChangeKind)
	})

	t.Run("quoted", func(t *testing.T) {
		doc := New().ParseString(lines(
			`diff --git "a/tab\there.txt" "b/tab\there.txt"`,
			`--- "a/tab\there.txt"`,
			`+++ "b/tab\there.txt"`,
			"@@ -1 +1 @@",
			"-x",
			"+y",
		))
		require.Len(t, doc.Files, 1)
		assert.Equal(t, "tab\there.txt", doc.Files[0].OldPath)
		assert.Equal(t, "tab\there.txt", doc.Files[0].NewPath)
	})
}

func TestParse_Anomalies(t *testing.T) {
	t.Run("malformed hunk header", func(t *testing.T) {
		input := lines(
			"diff --git a/x b/x",
			"--- a/x",
			"+++ b/x",
			"@@ -a,1 +1 @@",
			"-x",
			"+y",
			"@@ -10 +10 @@",
			"-p",
			"+q",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 1)
		f := doc.Files[0]
		require.Len(t, f.Anomalies, 1)
		assert.Equal(t, 4, f.Anomalies[0].Line)
		assert.Len(t, f.Hunks, 1)
		assert.Equal(t, 2, f.LineCount)
	})

	t.Run("hunk ends early", func(t *testing.T) {
		input := lines(
			"diff --git a/x b/x",
			"--- a/x",
			"+++ b/x",
			"@@ -1,3 +1,3 @@",
			" a",
			"-b",
			"+c",
			"diff --git a/y b/y",
			"--- a/y",
			"+++ b/y",
			"@@ -1 +1 @@",
			"-m",
			"+n",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 2)
		assert.Len(t, doc.Files[0].Anomalies, 1)
		assert.Contains(t, doc.Files[0].Anomalies[0].Message, "ends early")
		assert.Empty(t, doc.Files[1].Anomalies)
		assert.Equal(t, 3, doc.Files[0].LineCount)
	})

	t.Run("hunk longer than declared", func(t *testing.T) {
		input := lines(
			"--- a/x",
			"+++ b/x",
			"@@ -1,1 +1,1 @@",
			"-a",
			"+b",
			"+c",
			"+d",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 1)
		f := doc.Files[0]
		assert.Len(t, f.Anomalies, 1)
		require.Len(t, f.Hunks, 1)
		assert.Len(t, f.Hunks[0].Lines, 4)
		assert.Equal(t, 4, f.LineCount)
	})

	t.Run("stray change line", func(t *testing.T) {
		input := lines(
			"--- a/x",
			"+++ b/x",
			"@@ -1 +1 @@",
			"-a",
			"+b",
			"garbage",
			"+stray",
		)
		doc := New().ParseString(input)
		require.Len(t, doc.Files, 1)
		f := doc.Files[0]
		assert.Len(t, f.Anomalies, 1)
		assert.Equal(t, 7, f.Anomalies[0].Line)
		assert.Equal(t, 2, f.LineCount)
	})
}

func TestParse_EmptyAndPreambleOnly(t *testing.T) {
	for name, input := range map[string]string{
		"empty":         "",
		"preamble only": "commit message\n\nmore text\n",
	} {
		t.Run(name, func(t *testing.T) {
			doc := New().ParseString(input)
			require.NotNil(t, doc)
			assert.True(t, doc.IsEmpty())
			assert.Equal(t, 0, doc.TotalLines)
		})
	}
}

func TestParse_LongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	doc := New().ParseString(lines(
		"--- a/min.js",
		"+++ b/min.js",
		"@@ -1 +1 @@",
		"-"+long,
		"+"+long+"y",
	))
	require.Len(t, doc.Files, 1)
	require.Len(t, doc.Files[0].Hunks[0].Lines, 2)
	assert.Equal(t, long+"y", doc.Files[0].Hunks[0].Lines[1].Text)
}

func TestParse_ReadError(t *testing.T) {
	_, err := New().Parse(iotest.ErrReader(errors.New("disk on fire")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
