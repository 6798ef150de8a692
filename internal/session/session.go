// Package session runs the load pipeline (parse, classify, chunk, index)
// and serves queries against the result.
//
// A Session is immutable once Load returns and may be shared between
// goroutines. Loading again, with the same or another configuration,
// produces a new independent Session.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/diffchunk-mcp/internal/chunker"
	"github.com/dshills/diffchunk-mcp/internal/config"
	"github.com/dshills/diffchunk-mcp/internal/filter"
	"github.com/dshills/diffchunk-mcp/internal/index"
	"github.com/dshills/diffchunk-mcp/internal/parser"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// Session is a loaded diff and its chunks
type Session struct {
	// ID is a unique handle for this load
	ID string

	// Path names the input: a file path, or a label for reader input
	Path string

	// ContentHash is the SHA-256 of the input bytes
	ContentHash [32]byte

	Config   config.Config
	LoadedAt time.Time
	Duration time.Duration

	doc   *types.DiffDocument
	index *index.Index
	stats Stats
}

// Stats summarizes a load
type Stats struct {
	ChunkCount int `json:"chunk_count"`

	// FileCount is the number of files parsed from the input
	FileCount  int `json:"file_count"`
	TotalLines int `json:"total_lines"`

	// TrivialCount is the number of files dropped because every change
	// in them is trivial
	TrivialCount   int `json:"trivial_count"`
	ExcludedCount  int `json:"excluded_count"`
	GeneratedCount int `json:"generated_count"`
	TrivialLines   int `json:"trivial_lines"`

	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	BinaryFiles  int `json:"binary_files"`
	AnomalyCount int `json:"anomaly_count"`
}

// ChunkInfo describes one chunk without its content
type ChunkInfo struct {
	Index     int      `json:"chunk"`
	FilePaths []string `json:"files"`
	LineCount int      `json:"lines"`
	Summary   string   `json:"summary"`
}

// FileAnomaly is a parse anomaly together with the file it belongs to
type FileAnomaly struct {
	Path string `json:"path"`
	Line int    `json:"line"`

	Message string `json:"message"`
}

// GetOptions controls GetChunk output
type GetOptions struct {
	Metadata bool
}

// Loader runs loads and logs their outcome
type Loader struct {
	logger *slog.Logger
	parser *parser.Parser
}

// NewLoader creates a Loader. A nil logger discards output.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{
		logger: logger,
		parser: parser.New(),
	}
}

// Load reads and chunks the diff at path using slog.Default for logging
func Load(ctx context.Context, path string, cfg config.Config) (*Session, error) {
	return NewLoader(slog.Default()).Load(ctx, path, cfg)
}

// LoadReader chunks a diff read from r using slog.Default for logging
func LoadReader(r io.Reader, name string, cfg config.Config) (*Session, error) {
	return NewLoader(slog.Default()).LoadReader(r, name, cfg)
}

// Load reads the diff file at path once, as a stream, and builds a Session.
// It fails with NotFound when path cannot be read, InvalidConfiguration
// when cfg is invalid and EmptyInput when the file holds no diff.
func (l *Loader) Load(ctx context.Context, path string, cfg config.Config) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, types.NotFoundError(fmt.Sprintf("cannot read diff file: %s", path), err).
			WithContext("path", path)
	}
	if info.IsDir() {
		return nil, types.NotFoundError(fmt.Sprintf("diff path is a directory: %s", path), nil).
			WithContext("path", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, types.NotFoundError(fmt.Sprintf("cannot read diff file: %s", path), err).
			WithContext("path", path)
	}
	defer func() { _ = f.Close() }()

	return l.LoadReader(f, path, cfg)
}

// LoadReader builds a Session from any reader; name labels the input
func (l *Loader) LoadReader(r io.Reader, name string, cfg config.Config) (*Session, error) {
	start := time.Now()

	classifier, err := filter.New(cfg)
	if err != nil {
		return nil, err
	}

	hasher := sha256.New()
	doc, err := l.parser.Parse(io.TeeReader(r, hasher))
	if err != nil {
		return nil, types.NotFoundError(fmt.Sprintf("failed to read diff: %s", name), err).
			WithContext("path", name)
	}
	if doc.IsEmpty() {
		return nil, types.EmptyInputError(fmt.Sprintf("no diff content found in %s", name)).
			WithContext("path", name)
	}

	classifier.Classify(doc)
	chunks := chunker.Build(doc, cfg)

	s := &Session{
		ID:       uuid.NewString(),
		Path:     name,
		Config:   cfg,
		LoadedAt: start,
		doc:      doc,
		index:    index.New(chunks),
	}
	copy(s.ContentHash[:], hasher.Sum(nil))
	s.stats = computeStats(doc, len(chunks))
	s.Duration = time.Since(start)

	l.logger.Info("diff loaded",
		"handle", s.ID,
		"path", name,
		"chunks", s.stats.ChunkCount,
		"files", s.stats.FileCount,
		"lines", s.stats.TotalLines,
		"duration", s.Duration)
	for _, a := range s.anomalies() {
		l.logger.Debug("parse anomaly", "path", a.Path, "line", a.Line, "message", a.Message)
	}

	return s, nil
}

func computeStats(doc *types.DiffDocument, chunkCount int) Stats {
	sum := filter.Summarize(doc)
	st := Stats{
		ChunkCount:     chunkCount,
		FileCount:      len(doc.Files),
		TotalLines:     doc.TotalLines,
		TrivialCount:   sum.TrivialOnlyFiles,
		ExcludedCount:  sum.PatternExcluded,
		GeneratedCount: sum.GeneratedFiles,
		TrivialLines:   sum.TrivialLines,
		AnomalyCount:   doc.AnomalyCount(),
	}
	for _, f := range doc.Files {
		adds, dels := f.ChangeCounts()
		st.Additions += adds
		st.Deletions += dels
		if f.IsBinary {
			st.BinaryFiles++
		}
	}
	return st
}

func notLoaded() error {
	return types.NotLoadedError("no diff loaded, call load_diff first")
}

// Hash returns the content hash as hex
func (s *Session) Hash() string {
	if s == nil {
		return ""
	}
	return hex.EncodeToString(s.ContentHash[:])
}

// Stats returns the load statistics
func (s *Session) Stats() (Stats, error) {
	if s == nil {
		return Stats{}, notLoaded()
	}
	return s.stats, nil
}

// ListChunks describes every chunk in order
func (s *Session) ListChunks() ([]ChunkInfo, error) {
	if s == nil {
		return nil, notLoaded()
	}

	chunks := s.index.All()
	infos := make([]ChunkInfo, 0, len(chunks))
	for _, c := range chunks {
		paths := c.FilePaths()
		infos = append(infos, ChunkInfo{
			Index:     c.Index,
			FilePaths: paths,
			LineCount: c.LineCount,
			Summary:   chunker.Summary(paths),
		})
	}
	return infos, nil
}

// GetChunk renders chunk i (1-based)
func (s *Session) GetChunk(i int, opts GetOptions) (string, error) {
	if s == nil {
		return "", notLoaded()
	}

	c, err := s.index.Chunk(i)
	if err != nil {
		return "", err
	}
	return chunker.Render(c, s.index.Count(), chunker.RenderOptions{
		Metadata:    opts.Metadata,
		HideTrivial: s.Config.SkipTrivial,
	}), nil
}

// FindChunksForFiles returns the chunks holding a file matching pattern
func (s *Session) FindChunksForFiles(pattern string) ([]int, error) {
	if s == nil {
		return nil, notLoaded()
	}
	return s.index.FindByPattern(pattern)
}

// Anomalies lists the parse anomalies of every file, in input order
func (s *Session) Anomalies() ([]FileAnomaly, error) {
	if s == nil {
		return nil, notLoaded()
	}
	return s.anomalies(), nil
}

func (s *Session) anomalies() []FileAnomaly {
	out := make([]FileAnomaly, 0)
	for _, f := range s.doc.Files {
		for _, a := range f.Anomalies {
			out = append(out, FileAnomaly{Path: f.Path(), Line: a.Line, Message: a.Message})
		}
	}
	return out
}
