package snapshot

import (
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

// Registry hands out snapshot ids and maps them to live snapshots. An id is
// removed from the live set before its snapshot starts releasing, so a
// successful lookup always yields a readable snapshot.
type Registry struct {
	engine     driver.Snapshotter
	dispatcher *Dispatcher
	metrics    *Metrics

	nextID atomic.Uint64

	mu     sync.Mutex
	live   map[uint64]*Snapshot
	closed bool

	// draining counts snapshots whose engine handle has not been released.
	draining sync.WaitGroup
}

func NewRegistry(engine driver.Snapshotter, dispatcher *Dispatcher, metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(runtime.NumCPU())
	}
	return &Registry{
		engine:     engine,
		dispatcher: dispatcher,
		metrics:    metrics,
		live:       make(map[uint64]*Snapshot),
	}
}

// Create captures the engine's current committed state.
func (r *Registry) Create(opts Options) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, engineUnavailable(errRegistryClosed)
	}

	handle, err := r.engine.NewSnapshot(driver.ReadOptions{DontFillCache: !opts.FillCache})
	if err != nil {
		logrus.WithError(err).Warn("engine refused snapshot")
		return nil, engineUnavailable(err)
	}

	s := newSnapshot(r, r.nextID.Inc(), handle, opts)
	r.live[s.id] = s
	r.draining.Add(1)

	r.metrics.created.Inc()
	r.metrics.live.Inc()
	logrus.WithFields(logrus.Fields{
		"snapshot":  s.id,
		"fillCache": opts.FillCache,
	}).Debug("snapshot created")

	return s, nil
}

// Lookup returns the live snapshot for id, or ErrSnapshotClosed.
func (r *Registry) Lookup(id uint64) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.live[id]
	if !ok {
		return nil, ErrSnapshotClosed
	}
	return s, nil
}

// acquire looks up id and takes a read reference in one step.
func (r *Registry) acquire(id uint64) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.live[id]
	if !ok {
		return nil, ErrSnapshotClosed
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get reads key through snapshot id.
func (r *Registry) Get(id uint64, key []byte, opts GetOptions) (Value, error) {
	s, err := r.acquire(id)
	if err != nil {
		r.metrics.observeRead(modeSync, err)
		return Value{}, err
	}
	res := s.newReadOperation(key, opts).Run()
	return res.Value, res.Err
}

// GetAsync reads key through snapshot id on the worker pool.
func (r *Registry) GetAsync(id uint64, key []byte, opts GetOptions, cb Callback) {
	s, err := r.acquire(id)
	if err != nil {
		r.metrics.observeRead(modeAsync, err)
		r.dispatcher.Go(func() {
			cb(Result{Key: NewValue(key, EncodingRaw), Err: err})
		})
		return
	}
	r.dispatcher.Dispatch(s.newReadOperation(key, opts), cb)
}

// Release is a no-op for unknown or already released ids.
func (r *Registry) Release(id uint64) {
	r.mu.Lock()
	s, ok := r.live[id]
	if ok {
		delete(r.live, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.metrics.live.Dec()
	s.requestRelease()
}

// ReleaseAll releases every live snapshot, refuses further Create calls and
// waits until every engine handle has been returned.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.closed = true
	snaps := make([]*Snapshot, 0, len(r.live))
	for id, s := range r.live {
		snaps = append(snaps, s)
		delete(r.live, id)
	}
	r.mu.Unlock()

	for _, s := range snaps {
		r.metrics.live.Dec()
		s.requestRelease()
	}
	if len(snaps) > 0 {
		logrus.WithField("count", len(snaps)).Info("force released live snapshots")
	}

	r.draining.Wait()
}

// IDs returns the live snapshot ids in ascending order.
func (r *Registry) IDs() []uint64 {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *Registry) finalized(s *Snapshot) {
	r.metrics.released.Inc()
	logrus.WithField("snapshot", s.id).Debug("snapshot released")
	r.draining.Done()
}
