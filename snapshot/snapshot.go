package snapshot

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

// State is the lifecycle stage of a Snapshot. Transitions only go forward.
type State int32

const (
	Live State = iota
	Releasing
	Released
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Releasing:
		return "releasing"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// releaseRequested is the top bit of Snapshot.refs; the bits below it
// count in-flight reads.
const (
	releaseRequested int64 = 1 << 62
	pendingMask            = releaseRequested - 1
)

// Snapshot is a checked-out, point-in-time read view. It is created by a
// Registry and owns its engine handle until the last read after release
// has finished.
type Snapshot struct {
	id     uint64
	reg    *Registry
	handle driver.Snapshot
	opts   Options

	refs     atomic.Int64
	released atomic.Bool
	done     chan struct{}
}

func newSnapshot(reg *Registry, id uint64, handle driver.Snapshot, opts Options) *Snapshot {
	return &Snapshot{
		id:     id,
		reg:    reg,
		handle: handle,
		opts:   opts,
		done:   make(chan struct{}),
	}
}

func (s *Snapshot) ID() uint64 { return s.id }

func (s *Snapshot) Options() Options { return s.opts }

func (s *Snapshot) State() State {
	if s.released.Load() {
		return Released
	}
	if s.refs.Load()&releaseRequested != 0 {
		return Releasing
	}
	return Live
}

// PendingReads is the number of reads currently holding the engine handle.
func (s *Snapshot) PendingReads() int64 {
	return s.refs.Load() & pendingMask
}

// Done is closed once the engine handle has been released.
func (s *Snapshot) Done() <-chan struct{} {
	return s.done
}

// Get reads key as of the snapshot's creation. opts.DontFillCache is
// ignored: the fill policy was fixed when the snapshot was created.
func (s *Snapshot) Get(key []byte, opts GetOptions) (Value, error) {
	if err := s.acquire(); err != nil {
		s.reg.metrics.observeRead(modeSync, err)
		return Value{}, err
	}
	res := s.newReadOperation(key, opts).Run()
	return res.Value, res.Err
}

// GetAsync reads key on the registry's worker pool. cb is invoked exactly
// once, never on the caller's goroutine.
func (s *Snapshot) GetAsync(key []byte, opts GetOptions, cb Callback) {
	if err := s.acquire(); err != nil {
		s.reg.metrics.observeRead(modeAsync, err)
		s.reg.dispatcher.Go(func() {
			cb(Result{Key: NewValue(key, s.opts.KeyEncoding()), Err: err})
		})
		return
	}
	s.reg.dispatcher.Dispatch(s.newReadOperation(key, opts), cb)
}

// Close releases the snapshot. It never fails and may return before the
// engine handle is freed if reads are still draining.
func (s *Snapshot) Close() {
	s.reg.Release(s.id)
}

func (s *Snapshot) newReadOperation(key []byte, opts GetOptions) *ReadOperation {
	return NewReadOperation(
		s.handle,
		key,
		s.opts.KeyEncoding(),
		opts.ValueEncoding.or(s.opts.ValueEncoding()),
		s.unref,
		s.reg.metrics,
	)
}

func (s *Snapshot) acquire() error {
	for {
		v := s.refs.Load()
		if v&releaseRequested != 0 {
			return ErrSnapshotClosed
		}
		if s.refs.CompareAndSwap(v, v+1) {
			s.reg.metrics.pending.Inc()
			return nil
		}
	}
}

func (s *Snapshot) unref() {
	s.reg.metrics.pending.Dec()
	if s.refs.Dec() == releaseRequested {
		s.finalize()
	}
}

// requestRelease moves Live to Releasing. It reports false if release was
// already requested.
func (s *Snapshot) requestRelease() bool {
	for {
		v := s.refs.Load()
		if v&releaseRequested != 0 {
			return false
		}
		if s.refs.CompareAndSwap(v, v|releaseRequested) {
			if v == 0 {
				s.finalize()
			} else {
				logrus.WithFields(logrus.Fields{
					"snapshot": s.id,
					"pending":  v,
				}).Debug("snapshot draining")
			}
			return true
		}
	}
}

// finalize runs exactly once: the refs word reaches releaseRequested with
// no pending reads only once, since acquire refuses after the flag is set.
func (s *Snapshot) finalize() {
	s.handle.Release()
	s.released.Store(true)
	close(s.done)
	s.reg.finalized(s)
}

// Info is a point-in-time description of a snapshot.
type Info struct {
	ID           uint64
	State        State
	Options      Options
	PendingReads int64
}

func (s *Snapshot) Info() Info {
	return Info{
		ID:           s.id,
		State:        s.State(),
		Options:      s.opts,
		PendingReads: s.PendingReads(),
	}
}
