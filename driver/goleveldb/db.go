package goleveldb

import (
	"io/fs"
	"os"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/atomic"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

const (
	StorageName                = "goleveldb"
	MB                         = 1024 * 1024
	defaultHotCacheSize        = 1024 // unit:MB 1G
	defaultHotCacheNumCounters = 1e7
	defaultFilterBits          = 10
)

var _ driver.DB = (*DB)(nil)

func init() {
	driver.Register(Store{})
}

type Store struct{}

func (s Store) String() string {
	return StorageName
}

// Open opens a leveldb cold tier at path (or in memory when cfg.InMemory is
// set) fronted by a ristretto hot tier for live reads.
func (s Store) Open(path string, cfg *config.Config) (driver.DB, error) {
	db := new(DB)
	db.path = path
	db.cfg = &cfg.LevelDB

	db.initOpts()

	var err error
	if cfg.InMemory {
		db.db, err = leveldb.Open(storage.NewMemStorage(), db.opts)
	} else {
		if err = os.MkdirAll(path, fs.ModePerm); err != nil {
			return nil, err
		}
		db.db, err = leveldb.OpenFile(db.path, db.opts)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}

	hotCacheSize := db.cfg.HotCacheSize
	if hotCacheSize <= 0 {
		hotCacheSize = defaultHotCacheSize
	}

	db.cache, err = ristretto.NewCache(&ristretto.Config[[]byte, []byte]{
		MaxCost:     hotCacheSize * MB,
		NumCounters: defaultHotCacheNumCounters,
		BufferItems: 64,
		Metrics:     true,
		Cost: func(value []byte) int64 {
			return int64(len(value))
		},
	})
	if err != nil {
		db.db.Close()
		return nil, err
	}

	return db, nil
}

type DB struct {
	path string
	cfg  *config.LevelDBConfig
	db   *leveldb.DB // Cold tier storage
	opts *opt.Options

	syncOpts *opt.WriteOptions

	// Writers hold mu exclusively while invalidating the hot tier so a
	// concurrent read miss cannot re-populate it with a stale value.
	mu    sync.RWMutex
	cache *ristretto.Cache[[]byte, []byte] // Hot tier storage

	closed atomic.Bool
}

func (db *DB) initOpts() {
	db.opts = newOptions(db.cfg)

	db.syncOpts = &opt.WriteOptions{}
	db.syncOpts.Sync = true
}

func newOptions(cfg *config.LevelDBConfig) *opt.Options {
	opts := &opt.Options{}
	opts.ErrorIfMissing = false
	opts.BlockCacheCapacity = cfg.CacheSize
	opts.Filter = filter.NewBloomFilter(defaultFilterBits)

	if !cfg.Compression {
		opts.Compression = opt.NoCompression
	} else {
		opts.Compression = opt.SnappyCompression
	}

	opts.BlockSize = cfg.BlockSize
	opts.WriteBuffer = cfg.WriteBufferSize
	opts.OpenFilesCacheCapacity = cfg.MaxOpenFiles
	opts.CompactionTableSize = 32 * 1024 * 1024
	opts.WriteL0SlowdownTrigger = 16
	opts.WriteL0PauseTrigger = 64

	return opts
}

func readOptions(ro driver.ReadOptions) *opt.ReadOptions {
	return &opt.ReadOptions{DontFillCache: ro.DontFillCache}
}

func convertErr(err error) error {
	switch err {
	case nil:
		return nil
	case leveldb.ErrNotFound:
		return driver.ErrNotFound
	case leveldb.ErrClosed:
		return driver.ErrClosed
	default:
		return err
	}
}

func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Close the cache and wait for pending sets to be dropped.
	db.cache.Close()
	return db.db.Close()
}

func (db *DB) Put(key, value []byte) error {
	if db.closed.Load() {
		return driver.ErrClosed
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	// Write-through: persist first, then drop the hot copy.
	if err := db.db.Put(key, value, db.syncOpts); err != nil {
		return convertErr(err)
	}
	db.invalidate(key)
	return nil
}

func (db *DB) Delete(key []byte) error {
	if db.closed.Load() {
		return driver.ErrClosed
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.db.Delete(key, db.syncOpts); err != nil {
		return convertErr(err)
	}
	db.invalidate(key)
	return nil
}

// invalidate must be called with mu held for writing. Wait flushes sets
// buffered by earlier read misses so none of them lands after the delete.
func (db *DB) invalidate(key []byte) {
	db.cache.Del(key)
	db.cache.Wait()
}

// Get reads the live state. The hot tier is consulted first; on a miss the
// value is promoted unless the caller asked not to fill caches.
func (db *DB) Get(key []byte, ro driver.ReadOptions) ([]byte, error) {
	if db.closed.Load() {
		return nil, driver.ErrClosed
	}

	// 1. Check hot tier
	if v, ok := db.cache.Get(key); ok {
		return copyBytes(v), nil
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	// 2. Check cold tier
	v, err := db.db.Get(key, readOptions(ro))
	if err != nil {
		return nil, convertErr(err)
	}

	// 3. Promote to hot tier
	if !ro.DontFillCache {
		db.cache.Set(copyBytes(key), copyBytes(v), int64(len(v)))
	}
	return v, nil
}

// NewSnapshot pins the current leveldb sequence. The hot tier only ever
// reflects the latest state, so snapshot reads go straight to leveldb.
func (db *DB) NewSnapshot(ro driver.ReadOptions) (driver.Snapshot, error) {
	if db.closed.Load() {
		return nil, driver.ErrClosed
	}
	snp, err := db.db.GetSnapshot()
	if err != nil {
		return nil, convertErr(err)
	}
	return &Snapshot{
		snp: snp,
		ro:  readOptions(ro),
	}, nil
}

// Metrics reports hot tier statistics.
func (db *DB) Metrics() (tit string, metrics []map[string]interface{}) {
	tit = "goleveldb hot cache"
	if db.cache == nil || db.cache.Metrics == nil {
		return tit, nil
	}
	m := db.cache.Metrics
	metrics = []map[string]interface{}{
		{"hits": m.Hits()},
		{"misses": m.Misses()},
		{"keys_added": m.KeysAdded()},
		{"keys_evicted": m.KeysEvicted()},
		{"sets_dropped": m.SetsDropped()},
	}
	return
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
