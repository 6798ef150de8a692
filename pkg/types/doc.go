// Package types provides shared type definitions for diffchunk.
//
// This package defines the domain types passed between the parser, the
// classifier, the chunker and the index, along with the typed errors every
// layer returns.
//
// # Core Types
//
// DiffDocument is a parsed diff: an ordered list of FileDiff values, each
// holding its hunks and their lines:
//
//	doc := parser.New().ParseString(input)
//	for _, f := range doc.Files {
//	    fmt.Println(f.Path(), f.ChangeKind, len(f.Hunks))
//	}
//
// Chunk is one budgeted piece of output. It references hunks owned by the
// document through FileSlice and HunkSlice values and never copies text:
//
//	for _, s := range chunk.Slices {
//	    if s.IsPartial() {
//	        fmt.Printf("%s (part %d/%d)\n", s.File.Path(), s.Part, s.Parts)
//	    }
//	}
//
// # Errors
//
// Every failure the core reports is an *Error with a Kind. Match kinds with
// errors.Is against the sentinels:
//
//	if errors.Is(err, types.ErrOutOfRange) {
//	    // ask for a chunk between 1 and the chunk count
//	}
//
// Errors carry optional context for callers that report them:
//
//	types.ConfigError("invalid file pattern", err).WithContext("pattern", p)
package types
