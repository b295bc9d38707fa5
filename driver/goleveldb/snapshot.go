package goleveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

type Snapshot struct {
	snp *leveldb.Snapshot
	ro  *opt.ReadOptions
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	v, err := s.snp.Get(key, s.ro)
	if err != nil {
		return nil, convertErr(err)
	}
	return v, nil
}

func (s *Snapshot) Release() {
	s.snp.Release()
}
