package pebble

import (
	"io"
	"io/fs"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

const StorageName = "pebble"

var (
	_ driver.Store = (*Store)(nil)
	_ driver.DB    = (*DB)(nil)
)

func init() {
	driver.Register(Store{})
}

type Store struct{}

func (s Store) String() string {
	return StorageName
}

func (s Store) Open(path string, cfg *config.Config) (driver.DB, error) {
	options := &pebble.Options{
		Logger: logrus.StandardLogger(),
	}
	if cfg.InMemory {
		path = ""
		options.FS = vfs.NewMem()
	} else if err := os.MkdirAll(path, fs.ModePerm); err != nil {
		return nil, err
	}
	if cfg.Pebble.CacheSize > 0 {
		cache := pebble.NewCache(cfg.Pebble.CacheSize)
		defer cache.Unref()
		options.Cache = cache
	}

	pDB, err := pebble.Open(path, options)
	if err != nil {
		return nil, errors.Wrap(err, "open pebble")
	}
	return &DB{pebble: pDB}, nil
}

type DB struct {
	pebble *pebble.DB
	closed atomic.Bool
}

func convertErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pebble.ErrNotFound):
		return driver.ErrNotFound
	case errors.Is(err, pebble.ErrClosed):
		return driver.ErrClosed
	default:
		return err
	}
}

// reader is satisfied by both *pebble.DB and *pebble.Snapshot.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(r reader, key []byte) ([]byte, error) {
	data, closer, err := r.Get(key)
	if err != nil {
		return nil, convertErr(err)
	}
	v := make([]byte, len(data))
	copy(v, data)
	return v, closer.Close()
}

func (d *DB) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.pebble.Close()
}

// Get reads the live state. Pebble has no per-read cache fill switch.
func (d *DB) Get(key []byte, ro driver.ReadOptions) ([]byte, error) {
	if d.closed.Load() {
		return nil, driver.ErrClosed
	}
	return get(d.pebble, key)
}

func (d *DB) Put(key, value []byte) error {
	if d.closed.Load() {
		return driver.ErrClosed
	}
	return convertErr(d.pebble.Set(key, value, pebble.Sync))
}

func (d *DB) Delete(key []byte) error {
	if d.closed.Load() {
		return driver.ErrClosed
	}
	return convertErr(d.pebble.Delete(key, pebble.Sync))
}

// NewSnapshot must not reach pebble after Close: pebble panics on a closed DB.
func (d *DB) NewSnapshot(ro driver.ReadOptions) (driver.Snapshot, error) {
	if d.closed.Load() {
		return nil, driver.ErrClosed
	}
	return &snapshot{snapshot: d.pebble.NewSnapshot()}, nil
}

type snapshot struct {
	snapshot *pebble.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	return get(s.snapshot, key)
}

func (s *snapshot) Release() {
	if err := s.snapshot.Close(); err != nil {
		logrus.WithError(err).Warn("pebble: close snapshot")
	}
}
