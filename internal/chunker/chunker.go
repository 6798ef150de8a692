package chunker

import (
	"github.com/dshills/diffchunk-mcp/internal/config"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// NominalFileSize is the budget charged for a file with no hunks to show,
// such as a binary change or a pure rename
const NominalFileSize = 1

// Chunker groups classified files into budgeted chunks
type Chunker struct {
	maxLines    int
	hideTrivial bool
	strict      bool
}

// New creates a Chunker for cfg. The configuration is assumed valid.
func New(cfg config.Config) *Chunker {
	return &Chunker{
		maxLines:    cfg.MaxChunkLines,
		hideTrivial: cfg.SkipTrivial,
		strict:      !cfg.PreferFileBoundaries,
	}
}

// Build chunks doc with a fresh Chunker
func Build(doc *types.DiffDocument, cfg config.Config) []*types.Chunk {
	return New(cfg).Build(doc)
}

// unit is one hunk as the chunker sees it: the indexes of its visible lines
type unit struct {
	hunk    *types.Hunk
	visible []int
}

// plan returns the visible hunks of f and its effective size. Files with
// nothing to show but a header get NominalFileSize; a size of 0 means the
// file contributes nothing.
func (c *Chunker) plan(f *types.FileDiff) ([]unit, int) {
	if f.IsBinary || len(f.Hunks) == 0 {
		return nil, NominalFileSize
	}

	units := make([]unit, 0, len(f.Hunks))
	size := 0
	for _, h := range f.Hunks {
		vis := VisibleLines(h, c.hideTrivial)
		if len(vis) == 0 {
			continue
		}
		units = append(units, unit{hunk: h, visible: vis})
		size += len(vis)
	}
	return units, size
}

// VisibleLines returns the indexes of the lines of h that are shown. With
// hideTrivial, trivial changes are hidden and a hunk left without any
// significant change is hidden entirely, context included.
func VisibleLines(h *types.Hunk, hideTrivial bool) []int {
	if !hideTrivial {
		vis := make([]int, len(h.Lines))
		for i := range vis {
			vis[i] = i
		}
		return vis
	}

	significant := false
	vis := make([]int, 0, len(h.Lines))
	for i := range h.Lines {
		l := &h.Lines[i]
		if l.IsChange() && l.Trivial {
			continue
		}
		if l.IsChange() {
			significant = true
		}
		vis = append(vis, i)
	}
	if !significant {
		return nil
	}
	return vis
}

// Build partitions the non-excluded files of doc into chunks, in source
// order. The result depends only on doc and the configuration.
func (c *Chunker) Build(doc *types.DiffDocument) []*types.Chunk {
	b := &builder{max: c.maxLines, cur: &types.Chunk{}}
	if doc == nil {
		return b.chunks
	}

	for _, f := range doc.Files {
		if f.Excluded() {
			continue
		}
		units, size := c.plan(f)
		if size == 0 {
			continue
		}

		b.startFile(f)
		switch {
		case c.strict:
			b.placeStrict(units)
		case size <= b.remaining():
			b.placeWhole(units, size)
		case size <= b.max:
			b.flush()
			b.placeWhole(units, size)
		default:
			b.placeSplit(units)
		}
		b.finishFile()
	}

	b.flush()
	for i, ch := range b.chunks {
		ch.Index = i + 1
	}
	return b.chunks
}

// partRef locates one slice of the file being placed
type partRef struct {
	chunk *types.Chunk
	idx   int
}

type builder struct {
	max    int
	chunks []*types.Chunk
	cur    *types.Chunk

	file  *types.FileDiff
	parts []partRef
}

func (b *builder) remaining() int {
	return b.max - b.cur.LineCount
}

// flush closes the current chunk if it holds anything
func (b *builder) flush() {
	if len(b.cur.Slices) == 0 {
		return
	}
	b.chunks = append(b.chunks, b.cur)
	b.cur = &types.Chunk{}
}

func (b *builder) startFile(f *types.FileDiff) {
	b.file = f
	b.parts = b.parts[:0]
}

// slice returns the current file's slice in the current chunk, opening one
// if needed
func (b *builder) slice() *types.FileSlice {
	n := len(b.cur.Slices)
	if n > 0 && b.cur.Slices[n-1].File == b.file {
		return &b.cur.Slices[n-1]
	}
	b.cur.Slices = append(b.cur.Slices, types.FileSlice{File: b.file})
	b.parts = append(b.parts, partRef{chunk: b.cur, idx: n})
	return &b.cur.Slices[n]
}

func (b *builder) add(hs *types.HunkSlice, lines int) {
	s := b.slice()
	if hs != nil {
		s.Hunks = append(s.Hunks, *hs)
	}
	s.LineCount += lines
	b.cur.LineCount += lines
}

// finishFile numbers the parts of a file spread over several chunks
func (b *builder) finishFile() {
	for i, ref := range b.parts {
		s := &ref.chunk.Slices[ref.idx]
		s.Part = i + 1
		s.Parts = len(b.parts)
	}
	b.file = nil
}

// placeWhole adds every unit to the current chunk
func (b *builder) placeWhole(units []unit, size int) {
	if len(units) == 0 {
		b.add(nil, size)
		return
	}
	for _, u := range units {
		b.add(wholeHunk(u), len(u.visible))
	}
}

// placeSplit places a file larger than a chunk. It starts in the space left
// in the current chunk and moves hunk by hunk; a hunk that fits a fresh
// chunk is never split, a hunk larger than a chunk is split by lines.
func (b *builder) placeSplit(units []unit) {
	for _, u := range units {
		n := len(u.visible)
		switch {
		case n <= b.remaining():
			b.add(wholeHunk(u), n)
		case n <= b.max:
			b.flush()
			b.add(wholeHunk(u), n)
		default:
			b.placeLines(u)
		}
	}
}

// placeStrict fills every chunk to the budget, splitting wherever it ends
func (b *builder) placeStrict(units []unit) {
	if len(units) == 0 {
		if b.remaining() < NominalFileSize {
			b.flush()
		}
		b.add(nil, NominalFileSize)
		return
	}
	for _, u := range units {
		if len(u.visible) <= b.remaining() {
			b.add(wholeHunk(u), len(u.visible))
			continue
		}
		b.placeLines(u)
	}
}

// placeLines splits one hunk at line granularity, filling the space left
// in the current chunk first
func (b *builder) placeLines(u unit) {
	vis := u.visible
	for len(vis) > 0 {
		room := b.remaining()
		if room <= 0 {
			b.flush()
			continue
		}
		take := min(room, len(vis))
		hs := &types.HunkSlice{
			Hunk:     u.hunk,
			Start:    vis[0],
			End:      vis[take-1] + 1,
			Fragment: true,
		}
		if take == len(u.visible) {
			hs = wholeHunk(u)
		}
		b.add(hs, take)
		vis = vis[take:]
	}
}

func wholeHunk(u unit) *types.HunkSlice {
	return &types.HunkSlice{
		Hunk:  u.hunk,
		Start: 0,
		End:   len(u.hunk.Lines),
	}
}
