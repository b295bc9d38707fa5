package badger

import (
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Snapshot wraps a read-only badger transaction. Transactions are not safe
// for concurrent use, so reads are serialized.
type Snapshot struct {
	lock sync.Mutex
	txn  *badger.Txn
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	item, err := s.txn.Get(key)
	if err != nil {
		return nil, convertErr(err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	printf("snap get %s=%s", key, val)
	return val, nil
}

func (s *Snapshot) Release() {
	s.lock.Lock()
	defer s.lock.Unlock()

	printf("snap release")
	s.txn.Discard()
}
