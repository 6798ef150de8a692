package storage

import (
	"context"
	"encoding/hex"
	"time"
)

// Store holds the load history operations shared by the database and
// its transactions
type Store interface {
	// RecordLoad inserts rec and sets rec.ID
	RecordLoad(ctx context.Context, rec *LoadRecord) error

	// GetLoad returns the load with the given handle or ErrNotFound
	GetLoad(ctx context.Context, handle string) (*LoadRecord, error)

	// ListLoads returns up to limit loads, newest first. A limit <= 0
	// returns every load.
	ListLoads(ctx context.Context, limit int) ([]*LoadRecord, error)

	// FindLoadsByHash returns the loads of identical input, newest first
	FindLoadsByHash(ctx context.Context, contentHash [32]byte) ([]*LoadRecord, error)

	// PruneLoads keeps the newest keep loads and deletes the rest
	PruneLoads(ctx context.Context, keep int) (deleted int, err error)
}

// Storage defines the interface for persisting the load history
type Storage interface {
	Store

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Store
}

// LoadRecord is one entry of the load history
type LoadRecord struct {
	ID                int64     `json:"-"`
	Handle            string    `json:"handle"`
	DiffPath          string    `json:"diff_path"`
	ContentHash       [32]byte  `json:"-"`
	ConfigFingerprint string    `json:"config"`
	ChunkCount        int       `json:"chunk_count"`
	FileCount         int       `json:"file_count"`
	TotalLines        int       `json:"total_lines"`
	TrivialCount      int       `json:"trivial_count"`
	AnomalyCount      int       `json:"anomaly_count"`
	LoadedAt          time.Time `json:"loaded_at"`
}

// Hash returns the content hash as hex
func (r *LoadRecord) Hash() string {
	return hex.EncodeToString(r.ContentHash[:])
}
