// Package index provides read-only lookups over a built chunk sequence.
package index

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/diffchunk-mcp/internal/glob"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// patternCacheSize bounds the number of remembered pattern lookups
const patternCacheSize = 128

// Index answers queries by chunk number and by file pattern. It is safe for
// concurrent use.
type Index struct {
	chunks []*types.Chunk

	// paths[i] holds every old and new path touched by chunk i+1
	paths [][]string

	cache *lru.Cache[string, []int]
}

// New indexes chunks, which must be numbered 1..len(chunks)
func New(chunks []*types.Chunk) *Index {
	cache, err := lru.New[string, []int](patternCacheSize)
	if err != nil {
		// This should never happen with a positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	paths := make([][]string, len(chunks))
	for i, c := range chunks {
		for j := range c.Slices {
			paths[i] = append(paths[i], c.Slices[j].File.Paths()...)
		}
	}

	return &Index{
		chunks: chunks,
		paths:  paths,
		cache:  cache,
	}
}

// Count returns the number of chunks
func (x *Index) Count() int {
	return len(x.chunks)
}

// Chunk returns chunk i (1-based)
func (x *Index) Chunk(i int) (*types.Chunk, error) {
	if i < 1 || i > len(x.chunks) {
		return nil, types.OutOfRangeError(i, len(x.chunks))
	}
	return x.chunks[i-1], nil
}

// All returns the chunks in order
func (x *Index) All() []*types.Chunk {
	out := make([]*types.Chunk, len(x.chunks))
	copy(out, x.chunks)
	return out
}

// FindByPattern returns, in ascending order, the numbers of the chunks that
// contain a file whose old or new path matches pattern. No match is an
// empty result, not an error.
func (x *Index) FindByPattern(pattern string) ([]int, error) {
	if hits, ok := x.cache.Get(pattern); ok {
		return clone(hits), nil
	}

	p, err := glob.Compile(pattern)
	if err != nil {
		return nil, types.ConfigError(fmt.Sprintf("invalid file pattern %q", pattern), err).
			WithContext("pattern", pattern)
	}

	hits := make([]int, 0)
	for i, paths := range x.paths {
		for _, path := range paths {
			if p.Match(path) {
				hits = append(hits, i+1)
				break
			}
		}
	}

	x.cache.Add(pattern, hits)
	return clone(hits), nil
}

func clone(hits []int) []int {
	out := make([]int, len(hits))
	copy(out, hits)
	return out
}
