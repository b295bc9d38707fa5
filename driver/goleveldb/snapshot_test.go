package goleveldb

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

func TestSnapshot(t *testing.T) {
	db := newTestDB(t)

	// Insert initial data
	initialData := map[string]string{
		"key1": "value1",
		"key2": "value2",
		"key3": "value3",
	}
	for k, v := range initialData {
		require.NoError(t, db.Put([]byte(k), []byte(v)))
	}

	snapshot, err := db.NewSnapshot(driver.ReadOptions{DontFillCache: true})
	require.NoError(t, err)
	defer snapshot.Release()

	// Modify data after snapshot
	modifiedData := map[string]string{
		"key1": "new-value1",
		"key4": "value4",
	}
	for k, v := range modifiedData {
		require.NoError(t, db.Put([]byte(k), []byte(v)))
	}
	require.NoError(t, db.Delete([]byte("key2")))

	// Snapshot should see original data
	for k, expectedValue := range initialData {
		value, err := snapshot.Get([]byte(k))
		require.NoError(t, err)
		assert.Equal(t, []byte(expectedValue), value, "Snapshot should see original value for key %s", k)
	}

	// Snapshot should not see new data
	_, err = snapshot.Get([]byte("key4"))
	assert.ErrorIs(t, err, driver.ErrNotFound, "Snapshot should not see new key")

	// Current DB should see modified data
	for k, expectedValue := range modifiedData {
		value, err := db.Get([]byte(k), driver.ReadOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte(expectedValue), value)
	}

	_, err = db.Get([]byte("key2"), driver.ReadOptions{})
	assert.ErrorIs(t, err, driver.ErrNotFound, "Current DB should not see deleted key")
}

func TestSnapshot_Release(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	snapshot, err := db.NewSnapshot(driver.ReadOptions{})
	require.NoError(t, err)

	snapshot.Release()

	_, err = snapshot.Get([]byte("k"))
	assert.ErrorIs(t, err, leveldb.ErrSnapshotReleased)
}

func TestSnapshot_Concurrent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Put([]byte("initial"), []byte("value")))

	snapshots := make([]driver.Snapshot, 5)
	for i := range snapshots {
		snapshot, err := db.NewSnapshot(driver.ReadOptions{})
		require.NoError(t, err)
		snapshots[i] = snapshot
	}

	require.NoError(t, db.Put([]byte("initial"), []byte("modified")))
	require.NoError(t, db.Put([]byte("new"), []byte("value")))

	var wg sync.WaitGroup
	for i, snapshot := range snapshots {
		wg.Add(1)
		go func(i int, snapshot driver.Snapshot) {
			defer wg.Done()
			defer snapshot.Release()

			value, err := snapshot.Get([]byte("initial"))
			assert.NoError(t, err)
			assert.Equal(t, []byte("value"), value, "Snapshot %d should see original value", i)

			_, err = snapshot.Get([]byte("new"))
			assert.ErrorIs(t, err, driver.ErrNotFound, "Snapshot %d should not see new key", i)
		}(i, snapshot)
	}
	wg.Wait()
}

func TestSnapshot_FillCacheBound(t *testing.T) {
	db := newTestDB(t)

	for _, dontFill := range []bool{true, false} {
		s, err := db.NewSnapshot(driver.ReadOptions{DontFillCache: dontFill})
		require.NoError(t, err)
		assert.Equal(t, dontFill, s.(*Snapshot).ro.DontFillCache)
		s.Release()
	}
}
