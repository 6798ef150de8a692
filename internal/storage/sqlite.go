package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to record a handle twice
	ErrAlreadyExists = errors.New("already exists")
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance, creating the
// database file and its directory when needed
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) RecordLoad(ctx context.Context, rec *LoadRecord) error {
	return recordLoad(ctx, t.tx, rec)
}

func (t *sqliteTx) GetLoad(ctx context.Context, handle string) (*LoadRecord, error) {
	return getLoad(ctx, t.tx, handle)
}

func (t *sqliteTx) ListLoads(ctx context.Context, limit int) ([]*LoadRecord, error) {
	return listLoads(ctx, t.tx, limit)
}

func (t *sqliteTx) FindLoadsByHash(ctx context.Context, contentHash [32]byte) ([]*LoadRecord, error) {
	return findLoadsByHash(ctx, t.tx, contentHash)
}

func (t *sqliteTx) PruneLoads(ctx context.Context, keep int) (int, error) {
	return pruneLoads(ctx, t.tx, keep)
}

func (s *SQLiteStorage) RecordLoad(ctx context.Context, rec *LoadRecord) error {
	return recordLoad(ctx, s.db, rec)
}

func (s *SQLiteStorage) GetLoad(ctx context.Context, handle string) (*LoadRecord, error) {
	return getLoad(ctx, s.db, handle)
}

func (s *SQLiteStorage) ListLoads(ctx context.Context, limit int) ([]*LoadRecord, error) {
	return listLoads(ctx, s.db, limit)
}

func (s *SQLiteStorage) FindLoadsByHash(ctx context.Context, contentHash [32]byte) ([]*LoadRecord, error) {
	return findLoadsByHash(ctx, s.db, contentHash)
}

func (s *SQLiteStorage) PruneLoads(ctx context.Context, keep int) (int, error) {
	return pruneLoads(ctx, s.db, keep)
}

const loadColumns = `id, handle, diff_path, content_hash, config_fingerprint, chunk_count,
		       file_count, total_lines, trivial_count, anomaly_count, loaded_at`

func recordLoad(ctx context.Context, q querier, rec *LoadRecord) error {
	if rec.Handle == "" {
		return fmt.Errorf("failed to record load: empty handle")
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = time.Now()
	}

	query := `
		INSERT INTO loads (handle, diff_path, content_hash, config_fingerprint, chunk_count,
		                   file_count, total_lines, trivial_count, anomaly_count, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		rec.Handle, rec.DiffPath, rec.ContentHash[:], rec.ConfigFingerprint,
		rec.ChunkCount, rec.FileCount, rec.TotalLines, rec.TrivialCount,
		rec.AnomalyCount, rec.LoadedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("load %s: %w", rec.Handle, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to record load: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func getLoad(ctx context.Context, q querier, handle string) (*LoadRecord, error) {
	query := `SELECT ` + loadColumns + ` FROM loads WHERE handle = ?`
	rec, err := scanLoad(q.QueryRowContext(ctx, query, handle))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func listLoads(ctx context.Context, q querier, limit int) ([]*LoadRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `SELECT ` + loadColumns + ` FROM loads ORDER BY loaded_at DESC, id DESC LIMIT ?`
	return queryLoads(ctx, q, query, limit)
}

func findLoadsByHash(ctx context.Context, q querier, contentHash [32]byte) ([]*LoadRecord, error) {
	query := `SELECT ` + loadColumns + ` FROM loads WHERE content_hash = ? ORDER BY loaded_at DESC, id DESC`
	return queryLoads(ctx, q, query, contentHash[:])
}

func pruneLoads(ctx context.Context, q querier, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	query := `
		DELETE FROM loads WHERE id NOT IN (
			SELECT id FROM loads ORDER BY loaded_at DESC, id DESC LIMIT ?
		)
	`
	result, err := q.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune loads: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func queryLoads(ctx context.Context, q querier, query string, args ...interface{}) ([]*LoadRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	loads := make([]*LoadRecord, 0)
	for rows.Next() {
		rec, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, rec)
	}
	return loads, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLoad(row scanner) (*LoadRecord, error) {
	var rec LoadRecord
	var hash []byte
	var loadedAt int64

	err := row.Scan(
		&rec.ID, &rec.Handle, &rec.DiffPath, &hash, &rec.ConfigFingerprint,
		&rec.ChunkCount, &rec.FileCount, &rec.TotalLines, &rec.TrivialCount,
		&rec.AnomalyCount, &loadedAt,
	)
	if err != nil {
		return nil, err
	}

	copy(rec.ContentHash[:], hash)
	rec.LoadedAt = time.UnixMilli(loadedAt)
	return &rec, nil
}

// isUniqueViolation reports a UNIQUE constraint failure; both drivers
// carry SQLite's own message text
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
