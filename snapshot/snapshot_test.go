package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Isolation(t *testing.T) {
	e := newMemEngine()
	r, d := newTestRegistry(e, 2)
	defer d.Close()

	s, err := r.Create(Options{FillCache: false, KeyAsBuffer: true, ValueAsBuffer: true})
	require.NoError(t, err)
	defer s.Close()

	e.put("a", "1")
	_, err = s.Get([]byte("a"), GetOptions{})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	e.put("a", "2")
	_, err = s.Get([]byte("a"), GetOptions{})
	assert.ErrorIs(t, err, ErrKeyNotFound)

	later, err := r.Create(DefaultOptions())
	require.NoError(t, err)
	defer later.Close()

	v, err := later.Get([]byte("a"), GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2", v.String())
}

func TestSnapshot_GetAfterClose(t *testing.T) {
	e := newMemEngine()
	e.put("a", "1")
	r, d := newTestRegistry(e, 1)
	defer d.Close()

	s, err := r.Create(DefaultOptions())
	require.NoError(t, err)

	s.Close()
	assert.Equal(t, Released, s.State())

	_, err = s.Get([]byte("a"), GetOptions{})
	assert.ErrorIs(t, err, ErrSnapshotClosed)

	done := make(chan Result, 1)
	s.GetAsync([]byte("a"), GetOptions{}, func(res Result) { done <- res })
	res := <-done
	assert.ErrorIs(t, res.Err, ErrSnapshotClosed)
	assert.Equal(t, []byte("a"), res.Key.Bytes())

	assert.Equal(t, int32(0), e.handle(0).reads.Load())
	assert.Equal(t, int32(1), e.handle(0).releases.Load())
}

func TestSnapshot_AsyncReadsDrainBeforeRelease(t *testing.T) {
	const n = 16

	e := newMemEngine()
	e.put("k", "v")
	e.gate = make(chan struct{})
	r, d := newTestRegistry(e, n)
	defer d.Close()

	s, err := r.Create(DefaultOptions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan Result, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.GetAsync([]byte("k"), GetOptions{}, func(res Result) {
			results <- res
			wg.Done()
		})
	}
	assert.Equal(t, int64(n), s.PendingReads())

	s.Close()
	assert.Equal(t, Releasing, s.State())
	assert.Equal(t, int32(0), e.handle(0).releases.Load(), "handle freed while reads in flight")

	_, err = s.Get([]byte("k"), GetOptions{})
	assert.ErrorIs(t, err, ErrSnapshotClosed, "no new read may start once release is requested")

	close(e.gate)
	wg.Wait()
	close(results)

	for res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, []byte("v"), res.Value.Bytes())
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot never released")
	}
	assert.Equal(t, Released, s.State())
	assert.Equal(t, int64(0), s.PendingReads())
	assert.Equal(t, int32(1), e.handle(0).releases.Load())
	assert.Equal(t, int32(n), e.handle(0).reads.Load())
}

func TestSnapshot_ConcurrentReadsRaceRelease(t *testing.T) {
	e := newMemEngine()
	e.put("k", "v")
	r, d := newTestRegistry(e, 4)
	defer d.Close()

	for round := 0; round < 50; round++ {
		s, err := r.Create(DefaultOptions())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					v, err := r.Get(s.ID(), []byte("k"), GetOptions{})
					if err != nil {
						assert.ErrorIs(t, err, ErrSnapshotClosed)
						return
					}
					assert.Equal(t, "v", v.String())
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Release(s.ID())
			r.Release(s.ID())
		}()
		wg.Wait()

		<-s.Done()
		assert.Equal(t, int32(1), e.handle(round).releases.Load())
	}
}

func TestSnapshot_Encoding(t *testing.T) {
	e := newMemEngine()
	e.put("k", "v")
	r, d := newTestRegistry(e, 1)
	defer d.Close()

	text, err := r.Create(Options{KeyAsBuffer: false, ValueAsBuffer: false})
	require.NoError(t, err)
	defer text.Close()

	v, err := text.Get([]byte("k"), GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, EncodingText, v.Encoding())
	assert.Equal(t, "v", v.Interface())

	// per-call override wins over the snapshot preference
	v, err = text.Get([]byte("k"), GetOptions{ValueEncoding: EncodingRaw})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v.Interface())

	done := make(chan Result, 1)
	text.GetAsync([]byte("k"), GetOptions{}, func(res Result) { done <- res })
	res := <-done
	require.NoError(t, res.Err)
	assert.Equal(t, "k", res.Key.Interface())
	assert.Equal(t, "v", res.Value.Interface())

	raw, err := r.Create(DefaultOptions())
	require.NoError(t, err)
	defer raw.Close()

	v, err = raw.Get([]byte("k"), GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v.Interface())
}

func TestSnapshot_FillCacheBoundAtCreation(t *testing.T) {
	e := newMemEngine()
	r, d := newTestRegistry(e, 1)
	defer d.Close()

	s, err := r.Create(DefaultOptions())
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, e.lastRO.DontFillCache)

	filling, err := r.Create(Options{FillCache: true, KeyAsBuffer: true, ValueAsBuffer: true})
	require.NoError(t, err)
	defer filling.Close()
	assert.False(t, e.lastRO.DontFillCache)
	assert.True(t, filling.Options().FillCache)

	// A per-call override is accepted and has no effect.
	_, err = s.Get([]byte("missing"), GetOptions{DontFillCache: false})
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.False(t, s.Options().FillCache)
}

func TestSnapshot_EngineErrorPropagated(t *testing.T) {
	e := newMemEngine()
	boom := errors.New("corrupted block")
	e.failGet = boom
	r, d := newTestRegistry(e, 1)
	defer d.Close()

	s, err := r.Create(DefaultOptions())
	require.NoError(t, err)

	_, err = s.Get([]byte("k"), GetOptions{})
	require.Error(t, err)
	assert.True(t, IsEngineError(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, boom, errors.Cause(err))

	done := make(chan Result, 1)
	s.GetAsync([]byte("k"), GetOptions{}, func(res Result) { done <- res })
	assert.True(t, IsEngineError((<-done).Err))

	s.Close()
	assert.Equal(t, int32(1), e.handle(0).releases.Load())
}

func TestSnapshot_Info(t *testing.T) {
	r, d := newTestRegistry(newMemEngine(), 1)
	defer d.Close()

	s, err := r.Create(DefaultOptions())
	require.NoError(t, err)

	info := s.Info()
	assert.Equal(t, s.ID(), info.ID)
	assert.Equal(t, Live, info.State)
	assert.Equal(t, DefaultOptions(), info.Options)
	assert.Equal(t, int64(0), info.PendingReads)

	s.Close()
	assert.Equal(t, "released", s.Info().State.String())
}

func TestSnapshot_Metrics(t *testing.T) {
	e := newMemEngine()
	e.put("a", "1")
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d := NewDispatcher(1)
	defer d.Close()
	r := NewRegistry(e, d, m)

	s, err := r.Create(DefaultOptions())
	require.NoError(t, err)
	_, err = r.Create(DefaultOptions())
	require.NoError(t, err)

	_, err = s.Get([]byte("a"), GetOptions{})
	require.NoError(t, err)
	_, err = s.Get([]byte("b"), GetOptions{})
	require.ErrorIs(t, err, ErrKeyNotFound)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.created))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.live))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reads.WithLabelValues(modeSync, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reads.WithLabelValues(modeSync, "not_found")))

	s.Close()
	_, err = s.Get([]byte("a"), GetOptions{})
	require.ErrorIs(t, err, ErrSnapshotClosed)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.live))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.released))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.pending))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reads.WithLabelValues(modeSync, "closed")))

	r.ReleaseAll()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.live))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.released))
}
