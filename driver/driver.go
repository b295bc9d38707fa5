package driver

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by engines when a key does not exist in the
	// view being read.
	ErrNotFound = errors.New("key not found")

	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("engine closed")
)

// ReadOptions mirrors the subset of engine read options the snapshot
// subsystem cares about.
type ReadOptions struct {
	// DontFillCache keeps blocks touched by the read out of the engine cache.
	DontFillCache bool
}

// Snapshot is an engine-owned point-in-time read view. Get may be called
// from several goroutines at once; Release is called exactly once.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	Release()
}

// Snapshotter produces engine snapshots. The read options are bound into
// the returned handle.
type Snapshotter interface {
	NewSnapshot(ro ReadOptions) (Snapshot, error)
}

// DB is the storage engine contract consumed by the database layer.
type DB interface {
	Snapshotter

	Get(key []byte, ro ReadOptions) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	Close() error
}
