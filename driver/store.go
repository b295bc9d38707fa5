package driver

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/IceFireDB/IceFireDB-Snapshot/config"
)

// Store opens a DB for a named engine.
type Store interface {
	String() string
	Open(path string, cfg *config.Config) (DB, error)
}

var (
	storesMu sync.RWMutex
	stores   = map[string]Store{}
)

func Register(s Store) {
	storesMu.Lock()
	defer storesMu.Unlock()

	name := s.String()
	if _, ok := stores[name]; ok {
		panic(errors.Errorf("store %s is registered", name))
	}
	stores[name] = s
}

func ListStores() []string {
	storesMu.RLock()
	defer storesMu.RUnlock()

	s := make([]string, 0, len(stores))
	for k := range stores {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}

func GetStore(name string) (Store, error) {
	storesMu.RLock()
	defer storesMu.RUnlock()

	if s, ok := stores[name]; ok {
		return s, nil
	}
	return nil, errors.Errorf("store %s is not registered", name)
}
