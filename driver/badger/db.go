package badger

import (
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/atomic"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

var _ driver.DB = (*DB)(nil)

type DB struct {
	cfg    *config.Config
	opts   badger.Options
	db     *badger.DB
	closed atomic.Bool
}

func convertErr(err error) error {
	switch err {
	case nil:
		return nil
	case badger.ErrKeyNotFound:
		return driver.ErrNotFound
	case badger.ErrDBClosed:
		return driver.ErrClosed
	default:
		return err
	}
}

func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	printf("db close")
	return db.db.Close()
}

func (db *DB) Put(key, value []byte) error {
	if db.closed.Load() {
		return driver.ErrClosed
	}
	printf("db put %s=%s", key, value)
	return convertErr(db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}))
}

// Get reads the live state. Badger keeps no separate block-fill switch per
// read, so ro is accepted for interface symmetry only.
func (db *DB) Get(key []byte, ro driver.ReadOptions) ([]byte, error) {
	if db.closed.Load() {
		return nil, driver.ErrClosed
	}
	var v []byte
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	printf("db get %s=%s, err: %v", key, v, err)
	if err != nil {
		return nil, convertErr(err)
	}
	return v, nil
}

func (db *DB) Delete(key []byte) error {
	if db.closed.Load() {
		return driver.ErrClosed
	}
	printf("db delete %s", key)
	return convertErr(db.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}))
}

// NewSnapshot opens a read-only transaction; its read timestamp is the
// point in time the snapshot observes.
func (db *DB) NewSnapshot(ro driver.ReadOptions) (driver.Snapshot, error) {
	if db.closed.Load() {
		return nil, driver.ErrClosed
	}
	printf("new snap")
	return &Snapshot{
		txn: db.db.NewTransaction(false),
	}, nil
}
