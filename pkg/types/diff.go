package types

import (
	"fmt"
	"strings"
)

// DevNull is the path git and diff(1) use for a side that does not exist
const DevNull = "/dev/null"

// ChangeKind classifies what happened to a file
type ChangeKind string

const (
	ChangeModified ChangeKind = "modified"
	ChangeAdded    ChangeKind = "added"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
	ChangeBinary   ChangeKind = "binary"
)

// LineKind identifies a line inside a hunk
type LineKind int

const (
	LineContext LineKind = iota
	LineAddition
	LineDeletion
)

// Marker returns the unified diff prefix character for the kind
func (k LineKind) Marker() byte {
	switch k {
	case LineAddition:
		return '+'
	case LineDeletion:
		return '-'
	default:
		return ' '
	}
}

// Exclusion records why the classifier dropped a file, if it did
type Exclusion string

const (
	ExclusionNone        Exclusion = ""
	ExclusionPattern     Exclusion = "pattern"
	ExclusionGenerated   Exclusion = "generated"
	ExclusionTrivialOnly Exclusion = "trivial-only"
)

// DiffDocument is the parsed form of one diff input
type DiffDocument struct {
	// Files in the order they appear in the input. Never reordered.
	Files []*FileDiff

	// TotalLines is the number of content lines across all hunks
	TotalLines int
}

// AnomalyCount returns the number of parse anomalies across all files
func (d *DiffDocument) AnomalyCount() int {
	n := 0
	for _, f := range d.Files {
		n += len(f.Anomalies)
	}
	return n
}

// IsEmpty reports whether the input held no file sections at all
func (d *DiffDocument) IsEmpty() bool {
	return d == nil || len(d.Files) == 0
}

// FileDiff is one file's block of changes
type FileDiff struct {
	OldPath    string
	NewPath    string
	IsBinary   bool
	ChangeKind ChangeKind

	// HeaderLines are the raw lines preceding the first hunk (diff --git,
	// index, mode, ---/+++, binary marker), kept verbatim for rendering.
	HeaderLines []string

	Hunks []*Hunk

	// LineCount is the number of content lines across Hunks
	LineCount int

	// Anomalies are non-fatal irregularities found while parsing this file
	Anomalies []Anomaly

	// Exclusion is set by the classifier
	Exclusion Exclusion
}

// Path returns the path a reader would call this file by: the new path,
// or the old path when the file was deleted.
func (f *FileDiff) Path() string {
	if f.NewPath == "" || f.NewPath == DevNull {
		return f.OldPath
	}
	return f.NewPath
}

// Paths returns the distinct existing paths of the file (old and new)
func (f *FileDiff) Paths() []string {
	paths := make([]string, 0, 2)
	if f.NewPath != "" && f.NewPath != DevNull {
		paths = append(paths, f.NewPath)
	}
	if f.OldPath != "" && f.OldPath != DevNull && f.OldPath != f.NewPath {
		paths = append(paths, f.OldPath)
	}
	return paths
}

// Excluded reports whether the classifier removed the file from output
func (f *FileDiff) Excluded() bool {
	return f.Exclusion != ExclusionNone
}

// AddAnomaly records a non-fatal parse irregularity at the given input line
func (f *FileDiff) AddAnomaly(line int, format string, args ...interface{}) {
	f.Anomalies = append(f.Anomalies, Anomaly{
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// ChangeCounts returns the number of added and deleted lines
func (f *FileDiff) ChangeCounts() (additions, deletions int) {
	for _, h := range f.Hunks {
		for i := range h.Lines {
			switch h.Lines[i].Kind {
			case LineAddition:
				additions++
			case LineDeletion:
				deletions++
			}
		}
	}
	return additions, deletions
}

// Hunk is one @@ ... @@ block
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int

	// Section is the optional text after the closing @@ (usually a function name)
	Section string

	// Header is the raw @@ line as it appeared in the input
	Header string

	Lines []DiffLine
}

// FormatHeader renders a hunk header for the given positions
func FormatHeader(oldStart, oldCount, newStart, newCount int, section string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@", oldStart, oldCount, newStart, newCount)
	if section != "" {
		b.WriteByte(' ')
		b.WriteString(section)
	}
	return b.String()
}

// HasChanges reports whether the hunk contains any addition or deletion
func (h *Hunk) HasChanges() bool {
	for i := range h.Lines {
		if h.Lines[i].Kind != LineContext {
			return true
		}
	}
	return false
}

// DiffLine is a single physical line inside a hunk
type DiffLine struct {
	Kind LineKind

	// Text is the line content without the leading marker. A trailing
	// carriage return is kept so line-ending changes stay visible.
	Text string

	// Trivial is set by the classifier; it only has meaning for additions
	// and deletions.
	Trivial bool

	// NoNewline records a "\ No newline at end of file" marker after this line
	NoNewline bool

	// OldLine and NewLine are 1-based positions in the old and new file;
	// 0 when the line does not exist on that side.
	OldLine int
	NewLine int
}

// IsChange reports whether the line is an addition or deletion
func (l *DiffLine) IsChange() bool {
	return l.Kind != LineContext
}

// String renders the line with its marker
func (l *DiffLine) String() string {
	return string(l.Kind.Marker()) + l.Text
}

// Anomaly is a non-fatal irregularity found while parsing
type Anomaly struct {
	Line    int // 1-based line in the input
	Message string
}

// String formats the anomaly for display
func (a Anomaly) String() string {
	return fmt.Sprintf("line %d: %s", a.Line, a.Message)
}
