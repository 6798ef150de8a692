// Package storage provides SQLite-based persistence for the load history.
//
// Every successful load made by the MCP server is recorded with its handle, input path, content hash, the
// fingerprint of the configuration used and the headline statistics.
// The history answers "what did I look at recently" across server
// restarts; it never holds diff content.
//
// # Database Schema
//
// Tables:
//   - schema_version: Applied migrations (semantic versions)
//   - loads: One row per load, newest rows have the largest loaded_at
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.diffchunk/history.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.RecordLoad(ctx, &storage.LoadRecord{
//	    Handle:     sess.ID,
//	    DiffPath:   sess.Path,
//	    ChunkCount: stats.ChunkCount,
//	    LoadedAt:   sess.LoadedAt,
//	})
//
//	recent, err := db.ListLoads(ctx, 10)
//
// # Transactions
//
// Recording and pruning are usually done together:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.RecordLoad(ctx, rec); err != nil {
//	    return err
//	}
//	if _, err := tx.PruneLoads(ctx, 100); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// Pure Go Build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build ./...
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags sqlite_cgo ./...
package storage
