package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staleAfter = 55 * time.Minute

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "run_batch.lock")
}

func TestAcquireCreatesMarker(t *testing.T) {
	path := lockPath(t)

	lk, err := Acquire(path, staleAfter)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data, "marker should record the owner pid")

	require.NoError(t, lk.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "marker should be gone after release")
}

func TestFreshMarkerBlocks(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0644))
	// Ten minutes old: inside the freshness window.
	stamp := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	before, err := os.Stat(path)
	require.NoError(t, err)

	lk, err := Acquire(path, staleAfter)
	require.Nil(t, lk)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeld))

	var held *HeldError
	require.True(t, errors.As(err, &held))
	assert.Equal(t, 12345, held.PID)
	assert.GreaterOrEqual(t, held.Age, 10*time.Minute)

	// A blocked acquire must not touch the marker.
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestStaleMarkerReplaced(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0644))
	stamp := time.Now().Add(-90 * time.Minute)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	lk, err := Acquire(path, staleAfter)
	require.NoError(t, err)
	defer func() { _ = lk.Release() }()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, time.Since(fi.ModTime()), time.Minute, "marker should be recreated, not inherited")
	assert.Equal(t, os.Getpid(), readPID(path))
}

func TestAcquireAfterRelease(t *testing.T) {
	path := lockPath(t)

	lk, err := Acquire(path, staleAfter)
	require.NoError(t, err)
	require.NoError(t, lk.Release())
	require.NoError(t, lk.Release(), "release is idempotent")

	lk, err = Acquire(path, staleAfter)
	require.NoError(t, err)
	require.NoError(t, lk.Release())
}

func TestRaceLoserReportsHeld(t *testing.T) {
	path := lockPath(t)

	winner, err := Acquire(path, staleAfter)
	require.NoError(t, err)
	defer func() { _ = winner.Release() }()

	_, err = Acquire(path, staleAfter)
	assert.True(t, errors.Is(err, ErrHeld))
}

func TestInspect(t *testing.T) {
	path := lockPath(t)

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.False(t, info.Exists)

	lk, err := Acquire(path, staleAfter)
	require.NoError(t, err)
	defer func() { _ = lk.Release() }()

	info, err = Inspect(path)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.True(t, info.PIDRunning, "our own pid should be reported live")
	assert.Less(t, info.Age, time.Minute)
}
