// Package mcp implements the Model Context Protocol (MCP) server for diffchunk.
//
// The MCP server lets an AI assistant read a large diff piece by piece
// instead of all at once. It exposes five tools:
//   - load_diff: Parse, filter and chunk a diff file
//   - list_chunks: Describe every chunk of a loaded diff
//   - get_chunk: Return the text of one chunk
//   - find_chunks_for_files: Find the chunks holding files that match a glob
//   - get_status: Show loaded diffs and the recent load history
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	diffchunk serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: load_diff
//
//	Request:
//	{
//	  "name": "load_diff",
//	  "arguments": {
//	    "file_path": "/tmp/feature.diff",
//	    "max_chunk_lines": 2000,
//	    "exclude_patterns": "*.snap,testdata/**"
//	  }
//	}
//
//	Response:
//	{
//	  "handle": "6f1c2c9e-7d0b-4c43-9a57-0b8f6f1d2a11",
//	  "chunk_count": 7,
//	  "file_count": 42,
//	  "total_lines": 12408,
//	  "trivial_count": 3,
//	  ...
//	}
//
// Each load gets its own handle. The other tools take an optional handle
// and default to the most recent load, so a client working on one diff at
// a time never needs it.
//
// # Tool: get_chunk
//
//	Request:
//	{
//	  "name": "get_chunk",
//	  "arguments": {"chunk_number": 2, "include_metadata": true}
//	}
//
// The response is the chunk as plain unified diff text, optionally
// preceded by a banner:
//
//	=== Chunk 2 of 7 ===
//	Files: Changes to internal/auth/service.go, internal/auth/token.go (2 files)
//	Lines: 1,874
//
//	diff --git a/internal/auth/service.go b/internal/auth/service.go
//	...
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "diffchunk": {
//	      "command": "/usr/local/bin/diffchunk",
//	      "args": ["serve"]
//	    }
//	  }
//	}
//
// # Error Handling
//
// Tool errors are returned as MCPError values carrying a JSON-RPC code
// and a data object with the error kind and context:
//
//	{
//	  "code": -32004,
//	  "message": "chunk 9 not found, available chunks: 1-7",
//	  "data": {"kind": "OUT_OF_RANGE", "index": 9, "count": 7}
//	}
//
// Error codes:
//   - -32602: Invalid params or configuration
//   - -32603: Internal error
//   - -32001: Diff file or handle not found
//   - -32002: Input holds no diff
//   - -32003: No diff loaded
//   - -32004: Chunk number out of range
//
// # Logging
//
// The server logs to stderr through log/slog; stdout is reserved for
// the protocol. Set the level with --log-level or server.log_level in
// the settings file.
package mcp
