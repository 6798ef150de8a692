// Package chunker groups a classified diff into chunks bounded by a line
// budget and renders chunks as text.
//
// # Basic Usage
//
//	chunks := chunker.Build(doc, cfg)
//	for _, c := range chunks {
//	    fmt.Print(chunker.Render(c, len(chunks), chunker.RenderOptions{
//	        Metadata:    true,
//	        HideTrivial: cfg.SkipTrivial,
//	    }))
//	}
//
// # Chunking Strategy
//
// Files are placed greedily in source order:
//   - A file that fits the space left in the current chunk is appended whole
//   - A file that fits an empty chunk starts a new chunk
//   - A larger file starts in the space that is left and is placed hunk by
//     hunk; only a hunk larger than the budget is split between lines
//
// With PreferFileBoundaries turned off every chunk is filled to the budget
// and files and hunks are split wherever it runs out.
//
// # Line Accounting
//
// A chunk's LineCount is the number of hunk lines it shows. Header lines are
// free. Binary files and files with no hunks (pure renames, mode changes)
// count as NominalFileSize. With SkipTrivial, trivial change lines are not
// counted, and a hunk whose changes are all trivial is dropped with its
// context. Every chunk satisfies LineCount <= MaxChunkLines.
//
// # Rendering
//
// Render repeats a split file's header lines in every chunk that holds part
// of it. Hunks cut between lines, or with lines hidden, get a header whose
// positions are recomputed from the lines shown.
package chunker
