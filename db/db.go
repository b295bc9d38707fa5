package db

import (
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
	_ "github.com/IceFireDB/IceFireDB-Snapshot/driver/badger"
	_ "github.com/IceFireDB/IceFireDB-Snapshot/driver/goleveldb"
	_ "github.com/IceFireDB/IceFireDB-Snapshot/driver/pebble"
	"github.com/IceFireDB/IceFireDB-Snapshot/snapshot"
)

// ErrClosed is returned by live operations once Close has started.
var ErrClosed = errors.New("db closed")

// DB owns a storage engine together with the snapshot registry and the
// worker pool serving asynchronous reads.
type DB struct {
	cfg    *config.Config
	engine driver.DB

	dispatcher *snapshot.Dispatcher
	snapshots  *snapshot.Registry
	metrics    *snapshot.Metrics
	registry   *prometheus.Registry

	mu     sync.RWMutex
	closed bool
}

// Open opens the engine named by cfg.Engine under cfg.DataDir.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.NewConfigDefault()
	}

	store, err := driver.GetStore(cfg.Engine)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cfg.DataDir, store.String())
	engine, err := store.Open(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", store.String())
	}

	reg := prometheus.NewRegistry()
	m := snapshot.NewMetrics(reg)
	registerEngineMetrics(reg, store.String(), engine)
	d := snapshot.NewDispatcher(cfg.Snapshot.AsyncWorkers)

	logrus.WithFields(logrus.Fields{
		"engine":   store.String(),
		"path":     path,
		"inMemory": cfg.InMemory,
		"workers":  cfg.Snapshot.AsyncWorkers,
	}).Info("db opened")

	return &DB{
		cfg:        cfg,
		engine:     engine,
		dispatcher: d,
		snapshots:  snapshot.NewRegistry(engine, d, m),
		metrics:    m,
		registry:   reg,
	}, nil
}

// Engine is the name of the storage engine in use.
func (db *DB) Engine() string {
	return db.cfg.Engine
}

// Gatherer exposes the DB's snapshot metrics.
func (db *DB) Gatherer() prometheus.Gatherer {
	return db.registry
}

// Driver returns the underlying engine.
func (db *DB) Driver() driver.DB {
	return db.engine
}

func (db *DB) Put(key, value []byte) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return ErrClosed
	}
	return db.engine.Put(key, value)
}

func (db *DB) Delete(key []byte) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return ErrClosed
	}
	return db.engine.Delete(key)
}

// Get reads the current value of key.
func (db *DB) Get(key []byte, opts snapshot.GetOptions) (snapshot.Value, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return snapshot.Value{}, ErrClosed
	}
	res := db.liveRead(key, opts).Run()
	return res.Value, res.Err
}

// GetAsync reads the current value of key on the worker pool.
// The lock is not held while the read is queued: Dispatch may block on a
// busy pool. A read queued after Close has drained the pool is answered
// with ErrEngineUnavailable without touching the engine.
func (db *DB) GetAsync(key []byte, opts snapshot.GetOptions, cb snapshot.Callback) {
	db.mu.RLock()
	closed := db.closed
	db.mu.RUnlock()

	if closed {
		db.dispatcher.Go(func() {
			cb(snapshot.Result{Key: snapshot.NewValue(key, snapshot.EncodingRaw), Err: ErrClosed})
		})
		return
	}
	db.dispatcher.Dispatch(db.liveRead(key, opts), cb)
}

func (db *DB) liveRead(key []byte, opts snapshot.GetOptions) *snapshot.ReadOperation {
	src := snapshot.LiveSource(db.engine, driver.ReadOptions{DontFillCache: opts.DontFillCache})
	// Live reads stay out of the snapshot read counters.
	return snapshot.NewReadOperation(src, key, snapshot.EncodingRaw, opts.ValueEncoding, nil, nil)
}

// NewSnapshot captures the current state of the store.
func (db *DB) NewSnapshot(opts snapshot.Options) (*snapshot.Snapshot, error) {
	return db.snapshots.Create(opts)
}

// Snapshot returns the live snapshot registered under id.
func (db *DB) Snapshot(id uint64) (*snapshot.Snapshot, error) {
	return db.snapshots.Lookup(id)
}

func (db *DB) SnapshotGet(id uint64, key []byte, opts snapshot.GetOptions) (snapshot.Value, error) {
	return db.snapshots.Get(id, key, opts)
}

func (db *DB) SnapshotGetAsync(id uint64, key []byte, opts snapshot.GetOptions, cb snapshot.Callback) {
	db.snapshots.GetAsync(id, key, opts, cb)
}

// ReleaseSnapshot releases snapshot id. Unknown ids are ignored.
func (db *DB) ReleaseSnapshot(id uint64) {
	db.snapshots.Release(id)
}

// Snapshots lists live snapshot ids in ascending order.
func (db *DB) Snapshots() []uint64 {
	return db.snapshots.IDs()
}

// Close force-releases every live snapshot, waits for in-flight reads and
// closes the engine. Calling Close again is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	db.snapshots.ReleaseAll()
	db.dispatcher.Close()

	if err := db.engine.Close(); err != nil {
		logrus.WithError(err).Warn("close engine")
		return errors.Wrap(err, "close engine")
	}
	logrus.WithField("engine", db.cfg.Engine).Info("db closed")
	return nil
}
