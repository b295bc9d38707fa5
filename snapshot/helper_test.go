package snapshot

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

// memEngine is a copy-on-snapshot engine that records how its handles are
// used.
type memEngine struct {
	mu      sync.Mutex
	data    map[string][]byte
	snaps   []*memSnapshot
	lastRO  driver.ReadOptions
	failNew error
	failGet error
	gate    chan struct{}
}

func newMemEngine() *memEngine {
	return &memEngine{data: make(map[string][]byte)}
}

func (e *memEngine) put(k, v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[k] = []byte(v)
}

func (e *memEngine) NewSnapshot(ro driver.ReadOptions) (driver.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failNew != nil {
		return nil, e.failNew
	}
	e.lastRO = ro
	data := make(map[string][]byte, len(e.data))
	for k, v := range e.data {
		data[k] = v
	}
	s := &memSnapshot{data: data, gate: e.gate, failGet: e.failGet}
	e.snaps = append(e.snaps, s)
	return s, nil
}

type memSnapshot struct {
	data     map[string][]byte
	gate     chan struct{}
	failGet  error
	reads    atomic.Int32
	releases atomic.Int32
}

func (s *memSnapshot) Get(key []byte) ([]byte, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.releases.Load() != 0 {
		panic("read through released snapshot handle")
	}
	s.reads.Inc()
	if s.failGet != nil {
		return nil, s.failGet
	}
	v, ok := s.data[string(key)]
	if !ok {
		return nil, driver.ErrNotFound
	}
	return v, nil
}

func (s *memSnapshot) Release() {
	s.releases.Inc()
}

func (e *memEngine) handle(i int) *memSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snaps[i]
}

func newTestRegistry(e *memEngine, workers int) (*Registry, *Dispatcher) {
	d := NewDispatcher(workers)
	return NewRegistry(e, d, NewMetrics(nil)), d
}
