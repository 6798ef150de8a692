package types

// Chunk is one budgeted unit of output. It references hunks owned by the
// DiffDocument and never copies line text.
type Chunk struct {
	// Index is 1-based and matches the chunk's position in the sequence
	Index int

	Slices []FileSlice

	// LineCount is the number of lines the chunk shows
	LineCount int
}

// FileSlice is the part of one file that a chunk covers
type FileSlice struct {
	File  *FileDiff
	Hunks []HunkSlice

	// LineCount is the number of lines this slice contributes to the chunk
	LineCount int

	// Part and Parts number the slices of a file split across chunks
	// (1-based). Parts is 1 when the file is not split.
	Part  int
	Parts int
}

// IsPartial reports whether the file is spread over more than one chunk
func (s *FileSlice) IsPartial() bool {
	return s.Parts > 1
}

// HunkSlice is a half-open range [Start, End) of a hunk's lines
type HunkSlice struct {
	Hunk  *Hunk
	Start int
	End   int

	// Fragment is true when the range does not cover the whole hunk
	Fragment bool
}

// FilePaths returns the distinct file paths in the chunk, in order
func (c *Chunk) FilePaths() []string {
	seen := make(map[string]bool, len(c.Slices))
	paths := make([]string, 0, len(c.Slices))
	for i := range c.Slices {
		p := c.Slices[i].File.Path()
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// FileCount returns the number of distinct files in the chunk
func (c *Chunk) FileCount() int {
	return len(c.FilePaths())
}
