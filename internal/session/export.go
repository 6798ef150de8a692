package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/diffchunk-mcp/internal/chunker"
)

// ExportOptions controls Export
type ExportOptions struct {
	// Workers bounds the number of files written at once
	// (default: runtime.NumCPU())
	Workers int

	Metadata bool
}

// Export writes every chunk to dir as chunk-NNN.diff and returns the paths
// written, in chunk order. The directory is created if needed.
func (s *Session) Export(ctx context.Context, dir string, opts ExportOptions) ([]string, error) {
	if s == nil {
		return nil, notLoaded()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	chunks := s.index.All()
	total := len(chunks)
	width := max(3, len(strconv.Itoa(total)))
	paths := make([]string, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, c := range chunks {
		paths[i] = filepath.Join(dir, fmt.Sprintf("chunk-%0*d.diff", width, c.Index))
		path := paths[i]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text := chunker.Render(c, total, chunker.RenderOptions{
				Metadata:    opts.Metadata,
				HideTrivial: s.Config.SkipTrivial,
			})
			if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
