package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/diffchunk-mcp/internal/config"
	"github.com/dshills/diffchunk-mcp/internal/session"
	"github.com/dshills/diffchunk-mcp/internal/storage"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters or configuration
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound      = -32001 // Diff file or handle does not exist
	ErrorCodeEmptyInput    = -32002 // Input holds no diff
	ErrorCodeNotLoaded     = -32003 // No diff loaded yet
	ErrorCodeOutOfRange    = -32004 // Chunk number outside 1..count
)

// statusHistoryLimit is the number of history rows get_status reports
const statusHistoryLimit = 10

// handleLoadDiff handles the load_diff tool invocation
func (s *Server) handleLoadDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}

	opts := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k != "file_path" {
			opts[k] = v
		}
	}
	cfg, err := config.FromOptions(s.defaults, opts)
	if err != nil {
		return nil, toMCPError(err)
	}

	sess, err := s.load(ctx, path, cfg)
	if err != nil {
		return nil, toMCPError(err)
	}

	stats, _ := sess.Stats()
	response := map[string]interface{}{
		"handle":          sess.ID,
		"file_path":       sess.Path,
		"content_hash":    sess.Hash(),
		"chunk_count":     stats.ChunkCount,
		"file_count":      stats.FileCount,
		"total_lines":     stats.TotalLines,
		"trivial_count":   stats.TrivialCount,
		"excluded_count":  stats.ExcludedCount,
		"generated_count": stats.GeneratedCount,
		"trivial_lines":   stats.TrivialLines,
		"additions":       stats.Additions,
		"deletions":       stats.Deletions,
		"binary_files":    stats.BinaryFiles,
		"anomaly_count":   stats.AnomalyCount,
		"duration_ms":     sess.Duration.Milliseconds(),
	}

	if stats.AnomalyCount > 0 {
		// Include first few anomalies
		anomalies, _ := sess.Anomalies()
		if len(anomalies) > 5 {
			anomalies = anomalies[:5]
		}
		response["anomalies"] = anomalies
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListChunks handles the list_chunks tool invocation
func (s *Server) handleListChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	sess, err := s.session(getStringDefault(args, "handle", ""))
	if err != nil {
		return nil, toMCPError(err)
	}

	chunks, err := sess.ListChunks()
	if err != nil {
		return nil, toMCPError(err)
	}

	response := map[string]interface{}{
		"handle":      sess.ID,
		"chunk_count": len(chunks),
		"chunks":      chunks,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetChunk handles the get_chunk tool invocation
func (s *Server) handleGetChunk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	n, ok, err := getInt(args, "chunk_number")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_number must be an integer", map[string]interface{}{
			"param":  "chunk_number",
			"reason": err.Error(),
		})
	}
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunk_number parameter is required", map[string]interface{}{
			"param":  "chunk_number",
			"reason": "missing",
		})
	}

	sess, err := s.session(getStringDefault(args, "handle", ""))
	if err != nil {
		return nil, toMCPError(err)
	}

	text, err := sess.GetChunk(n, session.GetOptions{
		Metadata: getBoolDefault(args, "include_metadata", true),
	})
	if err != nil {
		return nil, toMCPError(err)
	}

	return mcp.NewToolResultText(text), nil
}

// handleFindChunks handles the find_chunks_for_files tool invocation
func (s *Server) handleFindChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "pattern parameter is required", map[string]interface{}{
			"param":  "pattern",
			"reason": "missing or empty",
		})
	}

	sess, err := s.session(getStringDefault(args, "handle", ""))
	if err != nil {
		return nil, toMCPError(err)
	}

	chunks, err := sess.FindChunksForFiles(pattern)
	if err != nil {
		return nil, toMCPError(err)
	}

	response := map[string]interface{}{
		"handle":  sess.ID,
		"pattern": pattern,
		"chunks":  chunks,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	loaded := make([]map[string]interface{}, 0, s.sessions.Len())
	for _, handle := range s.sessions.Keys() {
		sess, ok := s.sessions.Peek(handle)
		if !ok {
			continue
		}
		stats, _ := sess.Stats()
		loaded = append(loaded, map[string]interface{}{
			"handle":      sess.ID,
			"file_path":   sess.Path,
			"chunk_count": stats.ChunkCount,
			"total_lines": stats.TotalLines,
			"loaded_at":   sess.LoadedAt.Format(time.RFC3339),
			"latest":      sess.ID == latest,
		})
	}

	response := map[string]interface{}{
		"server":   map[string]interface{}{"name": ServerName, "version": ServerVersion},
		"sessions": loaded,
		"defaults": map[string]interface{}{
			config.OptMaxChunkLines:        s.defaults.MaxChunkLines,
			config.OptSkipTrivial:          s.defaults.SkipTrivial,
			config.OptSkipGenerated:        s.defaults.SkipGenerated,
			config.OptWhitespace:           s.defaults.Whitespace,
			config.OptPreferFileBoundaries: s.defaults.PreferFileBoundaries,
		},
	}

	if s.history != nil {
		recent, err := s.history.ListLoads(ctx, statusHistoryLimit)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to read load history", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["history"] = historyEntries(recent)
		response["storage"] = storage.BuildMode
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func historyEntries(loads []*storage.LoadRecord) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(loads))
	for _, l := range loads {
		out = append(out, map[string]interface{}{
			"handle":      l.Handle,
			"file_path":   l.DiffPath,
			"chunk_count": l.ChunkCount,
			"total_lines": l.TotalLines,
			"loaded_at":   l.LoadedAt.Format(time.RFC3339),
		})
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps a core error to its protocol code
func toMCPError(err error) error {
	var e *types.Error
	if !errors.As(err, &e) {
		return newMCPError(ErrorCodeInternalError, err.Error(), nil)
	}

	code := ErrorCodeInternalError
	switch e.Kind {
	case types.KindInvalidConfiguration:
		code = ErrorCodeInvalidParams
	case types.KindNotFound:
		code = ErrorCodeNotFound
	case types.KindEmptyInput:
		code = ErrorCodeEmptyInput
	case types.KindNotLoaded:
		code = ErrorCodeNotLoaded
	case types.KindOutOfRange:
		code = ErrorCodeOutOfRange
	}

	data := map[string]interface{}{"kind": e.Kind.String()}
	for k, v := range e.Context {
		data[k] = v
	}
	if e.Cause != nil {
		data["cause"] = e.Cause.Error()
	}
	return newMCPError(code, e.Message, data)
}

// arguments returns the tool arguments; a call without arguments is
// treated as an empty object
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getInt extracts an integer parameter. JSON numbers arrive as float64,
// so whole floats are accepted and fractional ones rejected.
func getInt(args map[string]interface{}, key string) (int, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch val := raw.(type) {
	case float64:
		if val != math.Trunc(val) {
			return 0, true, fmt.Errorf("%v is not a whole number", val)
		}
		return int(val), true, nil
	case int:
		return val, true, nil
	case int64:
		return int(val), true, nil
	default:
		return 0, true, fmt.Errorf("unexpected type %T", raw)
	}
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
