package badger

import (
	"io/fs"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

const StorageName = "badger"

var _ driver.Store = (*Store)(nil)

func init() {
	driver.Register(Store{})
}

type Store struct{}

func (s Store) String() string {
	return StorageName
}

func (s Store) Open(path string, cfg *config.Config) (driver.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, fs.ModePerm); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	if cfg.Badger.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.Badger.ValueLogFileSize)
	}
	opts = opts.WithLogger(logrus.StandardLogger())

	db := new(DB)
	db.cfg = cfg
	db.opts = opts

	var err error
	db.db, err = badger.Open(db.opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}

	return db, nil
}
