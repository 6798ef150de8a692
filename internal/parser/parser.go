package parser

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/diffchunk-mcp/pkg/types"
)

var (
	hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)
	binaryPattern     = regexp.MustCompile(`^Binary files (.+) and (.+) differ$`)
)

// state is the position of the parser in the diff grammar
type state int

const (
	seekingFile state = iota
	inFileHeader
	inHunk
)

// Parser turns unified diff text into a DiffDocument
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// Parse reads a diff from r in a single forward pass. Malformed sections are
// recorded as anomalies on the affected file; the only error returned is a
// failure of r itself.
func (p *Parser) Parse(r io.Reader) (*types.DiffDocument, error) {
	run := &parseRun{
		src: newLineSource(r),
		doc: &types.DiffDocument{Files: make([]*types.FileDiff, 0)},
	}

	for {
		line, ok := run.src.Next()
		if !ok {
			break
		}
		run.handle(line)
	}
	if err := run.src.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}

	run.closeFile()
	return run.doc, nil
}

// ParseString parses diff text held in memory
func (p *Parser) ParseString(s string) *types.DiffDocument {
	// A strings.Reader never fails
	doc, _ := p.Parse(strings.NewReader(s))
	return doc
}

// parseRun holds the state machine for one Parse call
type parseRun struct {
	src   *lineSource
	doc   *types.DiffDocument
	state state

	file *types.FileDiff
	hunk *types.Hunk

	// Per-file header facts, resolved into ChangeKind when the file closes
	gitStyle  bool
	sawOld    bool
	isNew     bool
	isDeleted bool
	isRename  bool

	// Remaining line counts declared by the open hunk's header
	oldLeft int
	newLeft int
	oldLine int
	newLine int

	// lastHunk is the hunk that just completed; content lines that follow
	// it directly are kept as overflow instead of being dropped
	lastHunk    *types.Hunk
	overflowing bool

	// skipping is set after a malformed hunk header or inside a
	// GIT binary patch payload
	skipping bool
}

func (r *parseRun) handle(line string) {
	switch r.state {
	case inHunk:
		if r.handleHunkLine(line) {
			return
		}
		// The line does not belong to the hunk: close it and re-evaluate
		// the line as a header.
		r.closeHunk()
		r.state = inFileHeader
		r.handleHeaderLine(line)
	case inFileHeader:
		r.handleHeaderLine(line)
	default:
		r.handleSeeking(line)
	}
}

// handleSeeking looks for the start of the first file; everything else
// (commit messages, mail headers, diffstat) is preamble.
func (r *parseRun) handleSeeking(line string) {
	clean := strings.TrimSuffix(line, "\r")
	switch {
	case strings.HasPrefix(clean, "diff "):
		r.startFile(clean)
	case r.isFilePair(clean):
		r.startFile("")
		r.handleOldMarker(clean)
	case binaryPattern.MatchString(clean):
		r.startFile("")
		r.markBinary(clean)
	}
}

// handleHunkLine consumes a line belonging to the open hunk. It returns
// false when the line does not fit, which closes the hunk.
func (r *parseRun) handleHunkLine(line string) bool {
	if strings.HasPrefix(line, `\`) {
		// "\ No newline at end of file" applies to the preceding line
		if n := len(r.hunk.Lines); n > 0 {
			r.hunk.Lines[n-1].NoNewline = true
		}
		return true
	}

	exhausted := r.oldLeft <= 0 && r.newLeft <= 0
	if exhausted && !r.overflowing {
		return false
	}
	if r.overflowing && strings.TrimSuffix(line, "\r") == "-- " {
		// format-patch signature separator
		return false
	}

	if line == "" || line == "\r" {
		// Some tools strip the single space from empty context lines
		if exhausted {
			return false
		}
		r.addLine(types.LineContext, "")
		return true
	}

	switch line[0] {
	case ' ':
		if !r.overflowing && r.oldLeft <= 0 && r.newLeft <= 0 {
			return false
		}
		r.addLine(types.LineContext, line[1:])
	case '+':
		if !r.overflowing && r.newLeft <= 0 {
			return false
		}
		r.addLine(types.LineAddition, line[1:])
	case '-':
		if !r.overflowing && r.oldLeft <= 0 {
			return false
		}
		r.addLine(types.LineDeletion, line[1:])
	default:
		return false
	}
	return true
}

// handleHeaderLine interprets a line while a file is open and no hunk is
func (r *parseRun) handleHeaderLine(line string) {
	clean := strings.TrimSuffix(line, "\r")
	overflowOK := r.lastHunk != nil
	r.lastHunk = nil

	if r.skipping && r.file.IsBinary {
		// GIT binary patch payload runs until the next file
		if strings.HasPrefix(clean, "diff ") {
			r.startFile(clean)
		}
		return
	}

	switch {
	case strings.HasPrefix(clean, "diff "):
		r.startFile(clean)
		return
	case strings.HasPrefix(clean, "@@"):
		r.openHunk(clean)
		return
	case strings.HasPrefix(clean, "--- ") && r.isFilePair(clean) && (r.sawOld || len(r.file.Hunks) > 0 || r.file.IsBinary):
		// A ---/+++ pair after this file's own markers starts the next file
		r.startFile("")
		r.handleOldMarker(clean)
		return
	}

	if r.skipping {
		if isContentLine(clean) {
			return
		}
		r.skipping = false
	}

	if overflowOK && isContentLine(line) && clean != "-- " {
		r.resumeHunk(line)
		return
	}

	switch {
	case strings.HasPrefix(clean, "--- ") && len(r.file.Hunks) == 0:
		r.handleOldMarker(clean)
	case strings.HasPrefix(clean, "+++ ") && len(r.file.Hunks) == 0:
		r.handleNewMarker(clean)
	case strings.HasPrefix(clean, "new file mode"):
		r.isNew = true
		r.addHeader(line)
	case strings.HasPrefix(clean, "deleted file mode"):
		r.isDeleted = true
		r.addHeader(line)
	case strings.HasPrefix(clean, "rename from "), strings.HasPrefix(clean, "copy from "):
		r.isRename = true
		r.file.OldPath = unquote(clean[strings.Index(clean, "from ")+5:])
		r.addHeader(line)
	case strings.HasPrefix(clean, "rename to "), strings.HasPrefix(clean, "copy to "):
		r.isRename = true
		r.file.NewPath = unquote(clean[strings.Index(clean, "to ")+3:])
		r.addHeader(line)
	case binaryPattern.MatchString(clean):
		if len(r.file.Hunks) > 0 || r.file.IsBinary || r.sawOld {
			// diff -r prints standalone binary markers between files
			r.startFile("")
		}
		r.markBinary(clean)
	case clean == "GIT binary patch":
		r.file.IsBinary = true
		r.addHeader(line)
		r.skipping = true
	case len(r.file.Hunks) == 0:
		// index, mode, similarity and other extended headers
		r.addHeader(line)
	case (clean != "" && (clean[0] == '+' || clean[0] == '-')) && clean != "-- ":
		r.file.AddAnomaly(r.src.Line(), "stray change line outside any hunk: %q", truncate(clean, 60))
	}
}

// isFilePair reports whether line is a --- marker immediately followed by
// a +++ marker, which is how a non-git unified diff starts a file.
func (r *parseRun) isFilePair(clean string) bool {
	if !strings.HasPrefix(clean, "--- ") {
		return false
	}
	next, ok := r.src.Peek()
	return ok && strings.HasPrefix(next, "+++ ")
}

// startFile closes the current file and opens a new one. header is the
// "diff ..." line that introduced it, or "" for files introduced by a
// ---/+++ pair or a standalone binary marker.
func (r *parseRun) startFile(header string) {
	r.closeFile()

	r.file = &types.FileDiff{
		ChangeKind: types.ChangeModified,
		Hunks:      make([]*types.Hunk, 0),
	}
	r.state = inFileHeader

	if header == "" {
		return
	}
	r.file.HeaderLines = append(r.file.HeaderLines, header)
	if rest, ok := strings.CutPrefix(header, "diff --git "); ok {
		r.gitStyle = true
		r.file.OldPath, r.file.NewPath = splitGitPaths(rest)
		return
	}
	// Plain "diff [options] old new": the last two fields name the files
	fields := strings.Fields(header)
	if len(fields) >= 3 {
		r.file.OldPath = fields[len(fields)-2]
		r.file.NewPath = fields[len(fields)-1]
	}
}

func (r *parseRun) handleOldMarker(clean string) {
	r.sawOld = true
	r.addHeader(clean)
	path := markerPath(clean[4:])
	if path == types.DevNull {
		r.isNew = true
	}
	r.file.OldPath = path
}

func (r *parseRun) handleNewMarker(clean string) {
	r.addHeader(clean)
	path := markerPath(clean[4:])
	if path == types.DevNull {
		r.isDeleted = true
	}
	r.file.NewPath = path
	r.stripPrefixes()
}

func (r *parseRun) markBinary(clean string) {
	r.file.IsBinary = true
	r.addHeader(clean)
	if len(r.file.HeaderLines) > 1 {
		// The diff --git line already named the files
		return
	}
	if m := binaryPattern.FindStringSubmatch(clean); m != nil {
		r.file.OldPath = unquote(m[1])
		r.file.NewPath = unquote(m[2])
		if r.file.OldPath == types.DevNull {
			r.isNew = true
		}
		if r.file.NewPath == types.DevNull {
			r.isDeleted = true
		}
		r.stripPrefixes()
	}
}

func (r *parseRun) addHeader(line string) {
	r.file.HeaderLines = append(r.file.HeaderLines, line)
}

// stripPrefixes removes the a/ and b/ prefixes git-style tools add
func (r *parseRun) stripPrefixes() {
	oldPath, newPath := r.file.OldPath, r.file.NewPath
	oldOK := oldPath == types.DevNull || strings.HasPrefix(oldPath, "a/")
	newOK := newPath == types.DevNull || strings.HasPrefix(newPath, "b/")
	if !(r.gitStyle || (oldOK && newOK)) {
		return
	}
	if strings.HasPrefix(oldPath, "a/") {
		r.file.OldPath = oldPath[2:]
	}
	if strings.HasPrefix(newPath, "b/") {
		r.file.NewPath = newPath[2:]
	}
}

func (r *parseRun) openHunk(clean string) {
	m := hunkHeaderPattern.FindStringSubmatch(clean)
	if m == nil {
		r.file.AddAnomaly(r.src.Line(), "malformed hunk header %q, its lines are skipped", truncate(clean, 80))
		r.skipping = true
		return
	}
	r.skipping = false

	hunk := &types.Hunk{
		OldStart: atoi(m[1]),
		OldCount: countOrOne(m[2]),
		NewStart: atoi(m[3]),
		NewCount: countOrOne(m[4]),
		Section:  m[5],
		Header:   clean,
	}
	r.file.Hunks = append(r.file.Hunks, hunk)
	r.hunk = hunk
	r.oldLeft = hunk.OldCount
	r.newLeft = hunk.NewCount
	r.oldLine = hunk.OldStart
	r.newLine = hunk.NewStart
	r.overflowing = false
	r.state = inHunk
}

// resumeHunk reopens the hunk that just completed because more content
// follows it than its header declared
func (r *parseRun) resumeHunk(line string) {
	hunk := r.file.Hunks[len(r.file.Hunks)-1]
	r.file.AddAnomaly(r.src.Line(), "hunk %q has more lines than its header declares", truncate(hunk.Header, 80))
	r.hunk = hunk
	r.overflowing = true
	r.state = inHunk
	r.handleHunkLine(line)
}

func (r *parseRun) addLine(kind types.LineKind, text string) {
	dl := types.DiffLine{Kind: kind, Text: text}
	switch kind {
	case types.LineContext:
		dl.OldLine, dl.NewLine = r.oldLine, r.newLine
		r.oldLine++
		r.newLine++
		r.oldLeft--
		r.newLeft--
	case types.LineAddition:
		dl.NewLine = r.newLine
		r.newLine++
		r.newLeft--
	case types.LineDeletion:
		dl.OldLine = r.oldLine
		r.oldLine++
		r.oldLeft--
	}
	r.hunk.Lines = append(r.hunk.Lines, dl)
}

func (r *parseRun) closeHunk() {
	if r.hunk == nil {
		return
	}
	complete := r.oldLeft <= 0 && r.newLeft <= 0
	if !r.overflowing && !complete {
		r.file.AddAnomaly(r.src.Line(), "hunk %q ends early: expected %d old and %d new lines, found %d and %d",
			truncate(r.hunk.Header, 80), r.hunk.OldCount, r.hunk.NewCount,
			r.hunk.OldCount-r.oldLeft, r.hunk.NewCount-r.newLeft)
	}
	if complete && !r.overflowing {
		r.lastHunk = r.hunk
	}
	r.hunk = nil
	r.overflowing = false
}

func (r *parseRun) closeFile() {
	r.closeHunk()
	if r.file == nil {
		return
	}

	f := r.file
	for _, h := range f.Hunks {
		f.LineCount += len(h.Lines)
	}
	if f.IsBinary {
		// Binary files carry no hunks
		f.Hunks = f.Hunks[:0]
		f.LineCount = 0
	}
	if f.OldPath == "" && f.NewPath != "" {
		f.OldPath = f.NewPath
	}
	if f.NewPath == "" && f.OldPath != "" {
		f.NewPath = f.OldPath
	}

	switch {
	case f.IsBinary:
		f.ChangeKind = types.ChangeBinary
	case r.isNew:
		f.ChangeKind = types.ChangeAdded
	case r.isDeleted:
		f.ChangeKind = types.ChangeDeleted
	case r.isRename:
		f.ChangeKind = types.ChangeRenamed
	default:
		f.ChangeKind = types.ChangeModified
	}

	r.doc.Files = append(r.doc.Files, f)
	r.doc.TotalLines += f.LineCount

	r.file = nil
	r.gitStyle, r.sawOld = false, false
	r.isNew, r.isDeleted, r.isRename = false, false, false
	r.lastHunk = nil
	r.skipping = false
	r.state = seekingFile
}

// isContentLine reports whether a line has a hunk content marker
func isContentLine(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '+' || line[0] == '-')
}

// splitGitPaths splits the "a/X b/Y" part of a diff --git line. Paths with
// spaces are ambiguous; the common case of identical names is tried first.
func splitGitPaths(rest string) (string, string) {
	if strings.HasPrefix(rest, `"`) {
		if oldPath, tail, ok := cutQuoted(rest); ok {
			return strings.TrimPrefix(oldPath, "a/"), strings.TrimPrefix(unquote(strings.TrimSpace(tail)), "b/")
		}
	}

	if n := len(rest); n%2 == 1 {
		half := n / 2
		a, b := rest[:half], rest[half+1:]
		if rest[half] == ' ' && strings.HasPrefix(a, "a/") && strings.HasPrefix(b, "b/") && a[2:] == b[2:] {
			return a[2:], b[2:]
		}
	}

	if i := strings.LastIndex(rest, " b/"); i > 0 {
		return strings.TrimPrefix(rest[:i], "a/"), rest[i+3:]
	}
	if oldPath, newPath, ok := strings.Cut(rest, " "); ok {
		return oldPath, newPath
	}
	return rest, rest
}

// markerPath extracts the path from the text after "--- " or "+++ ",
// dropping any tab-separated timestamp.
func markerPath(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	return unquote(strings.TrimSpace(s))
}

// unquote decodes a C-style quoted path as git writes it
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// cutQuoted splits a leading quoted string from the rest of s
func cutQuoted(s string) (string, string, bool) {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return unquote(s[:i+1]), s[i+1:], true
		}
	}
	return "", "", false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// countOrOne parses an optional hunk count; unified diffs omit it when it is 1
func countOrOne(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
