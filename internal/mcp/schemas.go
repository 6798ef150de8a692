package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/diffchunk-mcp/internal/config"
)

// handleProperty is shared by every tool that reads a loaded diff
var handleProperty = map[string]interface{}{
	"type":        "string",
	"description": "Handle returned by load_diff (default: the most recent load)",
}

// loadDiffTool returns the tool definition for load_diff
func loadDiffTool() mcp.Tool {
	return mcp.Tool{
		Name:        "load_diff",
		Description: "Parse a unified diff file, drop trivial and generated changes, and split the rest into chunks that fit a line budget",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the diff file (output of git diff, diff -u or git format-patch)",
				},
				config.OptMaxChunkLines: map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of diff lines per chunk",
					"default":     config.DefaultMaxChunkLines,
					"minimum":     1,
				},
				config.OptSkipTrivial: map[string]interface{}{
					"type":        "boolean",
					"description": "If true, drop files whose changes are only whitespace and hide trivial lines",
					"default":     true,
				},
				config.OptSkipGenerated: map[string]interface{}{
					"type":        "boolean",
					"description": "If true, drop lock files, minified bundles and build output",
					"default":     true,
				},
				config.OptIncludePatterns: map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated glob patterns; when set only matching files are kept (e.g. '*.go,internal/**')",
				},
				config.OptExcludePatterns: map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated glob patterns of files to drop",
				},
				config.OptWhitespace: map[string]interface{}{
					"type":        "string",
					"description": "Which paired whitespace edits count as trivial",
					"enum":        []string{string(config.WhitespaceTrailing), string(config.WhitespaceIndentation), string(config.WhitespaceAll)},
					"default":     string(config.WhitespaceTrailing),
				},
				config.OptPreferFileBoundaries: map[string]interface{}{
					"type":        "boolean",
					"description": "If true, start a new chunk rather than split a file that fits in one",
					"default":     true,
				},
			},
			Required: []string{"file_path"},
		},
	}
}

// listChunksTool returns the tool definition for list_chunks
func listChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_chunks",
		Description: "List the chunks of a loaded diff with their files, line counts and summaries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"handle": handleProperty,
			},
		},
	}
}

// getChunkTool returns the tool definition for get_chunk
func getChunkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunk",
		Description: "Return the diff text of one chunk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_number": map[string]interface{}{
					"type":        "integer",
					"description": "Chunk number, starting at 1",
					"minimum":     1,
				},
				"include_metadata": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, prefix the chunk with a banner naming its files and line count",
					"default":     true,
				},
				"handle": handleProperty,
			},
			Required: []string{"chunk_number"},
		},
	}
}

// findChunksTool returns the tool definition for find_chunks_for_files
func findChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_chunks_for_files",
		Description: "Find the chunks that contain files matching a glob pattern",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern for file paths (e.g. '*.py', 'src/**')",
				},
				"handle": handleProperty,
			},
			Required: []string{"pattern"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Show the loaded diffs held by the server and the recent load history",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
