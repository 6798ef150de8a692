package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/diffchunk-mcp/internal/config"
	"github.com/dshills/diffchunk-mcp/internal/session"
	"github.com/dshills/diffchunk-mcp/internal/storage"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "diffchunk-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// DefaultMaxSessions bounds the loaded diffs kept in memory
	DefaultMaxSessions = 16
	// DefaultHistoryKeep is the number of history rows kept after each load
	DefaultHistoryKeep = 500
)

// Options configures a Server
type Options struct {
	// Defaults are the chunking settings load_diff starts from
	Defaults config.Config

	// MaxSessions bounds the loaded diffs kept in memory; the least
	// recently used one is dropped first
	MaxSessions int

	// History records every load when set. The server closes it.
	History     storage.Storage
	HistoryKeep int

	Logger *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	defaults config.Config
	loader   *session.Loader
	history  storage.Storage
	keep     int
	logger   *slog.Logger

	sessions *lru.Cache[string, *session.Session]
	loads    singleflight.Group

	mu     sync.Mutex
	latest string
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if err := opts.Defaults.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.HistoryKeep <= 0 {
		opts.HistoryKeep = DefaultHistoryKeep
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessions, err := lru.New[string, *session.Session](opts.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		defaults: opts.Defaults,
		loader:   session.NewLoader(opts.Logger),
		history:  opts.History,
		keep:     opts.HistoryKeep,
		logger:   opts.Logger,
		sessions: sessions,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until ctx is done or
// the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO serves MCP over the given streams
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	defer func() { _ = s.Close() }()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)
	return stdio.Listen(ctx, in, out)
}

// Close releases the history store
func (s *Server) Close() error {
	if s.history == nil {
		return nil
	}
	return s.history.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(loadDiffTool(), s.handleLoadDiff)
	s.mcp.AddTool(listChunksTool(), s.handleListChunks)
	s.mcp.AddTool(getChunkTool(), s.handleGetChunk)
	s.mcp.AddTool(findChunksTool(), s.handleFindChunks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}

// load runs a load, collapsing concurrent loads of the same file with the
// same configuration into one
func (s *Server) load(ctx context.Context, path string, cfg config.Config) (*session.Session, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	key := path + "\x00" + cfg.Fingerprint()
	v, err, shared := s.loads.Do(key, func() (interface{}, error) {
		sess, err := s.loader.Load(ctx, path, cfg)
		if err != nil {
			return nil, err
		}
		s.remember(sess)
		s.record(ctx, sess)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("load shared with a concurrent caller", "path", path)
	}
	return v.(*session.Session), nil
}

func (s *Server) remember(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evicted := s.sessions.Add(sess.ID, sess); evicted {
		s.logger.Debug("session cache full, dropped least recently used load")
	}
	s.latest = sess.ID
}

// record writes the load to the history; failures are logged, not returned
func (s *Server) record(ctx context.Context, sess *session.Session) {
	if s.history == nil {
		return
	}

	stats, _ := sess.Stats()
	rec := &storage.LoadRecord{
		Handle:            sess.ID,
		DiffPath:          sess.Path,
		ContentHash:       sess.ContentHash,
		ConfigFingerprint: sess.Config.Fingerprint(),
		ChunkCount:        stats.ChunkCount,
		FileCount:         stats.FileCount,
		TotalLines:        stats.TotalLines,
		TrivialCount:      stats.TrivialCount,
		AnomalyCount:      stats.AnomalyCount,
		LoadedAt:          sess.LoadedAt,
	}

	err := func() error {
		tx, err := s.history.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := tx.RecordLoad(ctx, rec); err != nil {
			return err
		}
		if _, err := tx.PruneLoads(ctx, s.keep); err != nil {
			return err
		}
		return tx.Commit()
	}()
	if err != nil {
		s.logger.Warn("failed to record load history", "handle", sess.ID, "error", err)
	}
}

// session resolves a handle; an empty handle means the most recent load
func (s *Server) session(handle string) (*session.Session, error) {
	s.mu.Lock()
	if handle == "" {
		handle = s.latest
	}
	s.mu.Unlock()

	if handle == "" {
		return nil, types.NotLoadedError("no diff loaded, call load_diff first")
	}

	sess, ok := s.sessions.Get(handle)
	if !ok {
		return nil, types.NotFoundError(fmt.Sprintf("unknown handle %q, it may have been evicted; call load_diff again", handle), nil).
			WithContext("handle", handle)
	}
	return sess, nil
}
