package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}

	l.Line("starting batch")
	l.Printf("batch finished (exit %d)", 0)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2026-03-14 09:26:53] starting batch", lines[0])
	assert.Equal(t, "[2026-03-14 09:26:53] batch finished (exit 0)", lines[1])
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_batch.log")

	l, err := Open(path, false)
	require.NoError(t, err)
	l.Line("first run")
	require.NoError(t, l.Close())

	l, err = Open(path, false)
	require.NoError(t, err)
	l.Line("second run")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_batch.log")
	l, err := Open(path, false)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}
