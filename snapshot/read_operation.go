package snapshot

import (
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

// Source is a view a single key can be read from.
type Source interface {
	Get(key []byte) ([]byte, error)
}

type liveSource struct {
	db driver.DB
	ro driver.ReadOptions
}

func (l liveSource) Get(key []byte) ([]byte, error) {
	return l.db.Get(key, l.ro)
}

// LiveSource binds the engine's current state and ro into a Source.
func LiveSource(db driver.DB, ro driver.ReadOptions) Source {
	return liveSource{db: db, ro: ro}
}

// ReadOperation is one key lookup against a Source. done runs once the
// engine read has finished, before the result is handed back.
type ReadOperation struct {
	src      Source
	key      []byte
	keyEnc   Encoding
	valueEnc Encoding
	done     func()
	metrics  *Metrics
}

func NewReadOperation(src Source, key []byte, keyEnc, valueEnc Encoding, done func(), m *Metrics) *ReadOperation {
	return &ReadOperation{
		src:      src,
		key:      key,
		keyEnc:   keyEnc.or(EncodingRaw),
		valueEnc: valueEnc.or(EncodingRaw),
		done:     done,
		metrics:  m,
	}
}

// Run performs the read on the calling goroutine.
func (op *ReadOperation) Run() Result {
	return op.run(modeSync)
}

func (op *ReadOperation) run(mode string) Result {
	v, err := op.src.Get(op.key)
	if op.done != nil {
		op.done()
	}
	err = readError("get", err)
	if op.metrics != nil {
		op.metrics.observeRead(mode, err)
	}
	res := Result{Key: NewValue(op.key, op.keyEnc), Err: err}
	if err == nil {
		res.Value = NewValue(v, op.valueEnc)
	}
	return res
}

// abort completes op without reading from its source.
func (op *ReadOperation) abort(err error) Result {
	if op.done != nil {
		op.done()
	}
	if op.metrics != nil {
		op.metrics.observeRead(modeAsync, err)
	}
	return Result{Key: NewValue(op.key, op.keyEnc), Err: err}
}

// Dispatcher runs asynchronous reads on a bounded worker pool.
type Dispatcher struct {
	mu     sync.RWMutex
	closed bool
	pool   *pool.Pool
}

func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		pool: pool.New().WithMaxGoroutines(workers),
	}
}

// Dispatch queues op and hands its result to cb. It blocks while every
// worker is busy. Once the dispatcher is closed op is not run; cb gets
// ErrEngineUnavailable instead.
func (d *Dispatcher) Dispatch(op *ReadOperation, cb Callback) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		go cb(op.abort(engineUnavailable(errDispatcherClosed)))
		return
	}
	d.pool.Go(func() {
		cb(op.run(modeAsync))
	})
}

// Go runs task on the pool. Once the dispatcher is closed tasks get their
// own goroutine; callers only hand it error deliveries at that point.
func (d *Dispatcher) Go(task func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		go task()
		return
	}
	d.pool.Go(task)
}

// Close waits for every queued task to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.pool.Wait()
}
