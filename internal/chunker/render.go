package chunker

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// noNewlineMarker follows a line that has no trailing newline in its file
const noNewlineMarker = `\ No newline at end of file`

// RenderOptions controls chunk output
type RenderOptions struct {
	// Metadata adds the banner, part marks, anomalies and the trailing
	// summary. Without it the output is plain diff text.
	Metadata bool

	// HideTrivial drops trivial change lines, matching a chunk built with
	// SkipTrivial
	HideTrivial bool
}

// Render formats chunk c of total as text
func Render(c *types.Chunk, total int, opts RenderOptions) string {
	var b strings.Builder

	if opts.Metadata {
		writeBanner(&b, c, total)
	}

	for i := range c.Slices {
		s := &c.Slices[i]
		if opts.Metadata && i > 0 {
			b.WriteByte('\n')
		}
		for _, h := range s.File.HeaderLines {
			b.WriteString(h)
			b.WriteByte('\n')
		}
		for _, hs := range s.Hunks {
			writeHunk(&b, hs, opts.HideTrivial)
		}
	}

	if opts.Metadata {
		fmt.Fprintf(&b, "\n=== End of chunk %d: %s, %s ===\n",
			c.Index, plural(c.FileCount(), "file"), plural(c.LineCount, "line"))
	}
	return b.String()
}

func writeBanner(b *strings.Builder, c *types.Chunk, total int) {
	paths := c.FilePaths()
	fmt.Fprintf(b, "=== Chunk %d of %d ===\n", c.Index, total)
	fmt.Fprintf(b, "Files: %s (%s)\n", Summary(paths), plural(len(paths), "file"))
	fmt.Fprintf(b, "Lines: %s\n", humanize.Comma(int64(c.LineCount)))

	for i := range c.Slices {
		s := &c.Slices[i]
		if s.IsPartial() {
			fmt.Fprintf(b, "Split: %s (part %d/%d)\n", s.File.Path(), s.Part, s.Parts)
		}
	}
	for i := range c.Slices {
		s := &c.Slices[i]
		if s.Part > 1 {
			// Reported with the first part only
			continue
		}
		for _, a := range s.File.Anomalies {
			fmt.Fprintf(b, "Warning: %s %s\n", s.File.Path(), a)
		}
	}
	b.WriteByte('\n')
}

// writeHunk writes the visible lines of one hunk slice. Whole hunks with
// nothing hidden keep their original header; anything else gets a header
// recomputed from the lines actually shown.
func writeHunk(b *strings.Builder, hs types.HunkSlice, hideTrivial bool) {
	h := hs.Hunk
	shown := func(l *types.DiffLine) bool {
		return !(hideTrivial && l.IsChange() && l.Trivial)
	}

	hidden := false
	for i := hs.Start; i < hs.End; i++ {
		if !shown(&h.Lines[i]) {
			hidden = true
			break
		}
	}

	if hs.Fragment || hidden {
		b.WriteString(fragmentHeader(h, hs.Start, hs.End, shown))
	} else {
		b.WriteString(h.Header)
	}
	b.WriteByte('\n')

	for i := hs.Start; i < hs.End; i++ {
		l := &h.Lines[i]
		if !shown(l) {
			continue
		}
		b.WriteByte(l.Kind.Marker())
		b.WriteString(l.Text)
		b.WriteByte('\n')
		if l.NoNewline {
			b.WriteString(noNewlineMarker)
			b.WriteByte('\n')
		}
	}
}

// fragmentHeader computes the @@ header for the shown lines in [start, end)
func fragmentHeader(h *types.Hunk, start, end int, shown func(*types.DiffLine) bool) string {
	oldPos, newPos := h.OldStart, h.NewStart
	for i := 0; i < start; i++ {
		switch h.Lines[i].Kind {
		case types.LineContext:
			oldPos++
			newPos++
		case types.LineDeletion:
			oldPos++
		case types.LineAddition:
			newPos++
		}
	}

	oldCount, newCount := 0, 0
	for i := start; i < end; i++ {
		l := &h.Lines[i]
		if !shown(l) {
			continue
		}
		if l.Kind != types.LineAddition {
			oldCount++
		}
		if l.Kind != types.LineDeletion {
			newCount++
		}
	}

	// An empty side names the line before the change
	if oldCount == 0 && oldPos > 0 {
		oldPos--
	}
	if newCount == 0 && newPos > 0 {
		newPos--
	}
	return types.FormatHeader(oldPos, oldCount, newPos, newCount, h.Section)
}

// Summary describes a list of paths in one line
func Summary(paths []string) string {
	switch n := len(paths); {
	case n == 0:
		return "No changes"
	case n == 1:
		return "Changes to " + paths[0]
	case n <= 3:
		return "Changes to " + strings.Join(paths, ", ")
	default:
		return fmt.Sprintf("Changes to %s, %s and %d other files", paths[0], paths[1], n-2)
	}
}

func plural(n int, noun string) string {
	s := humanize.Comma(int64(n)) + " " + noun
	if n != 1 {
		s += "s"
	}
	return s
}
