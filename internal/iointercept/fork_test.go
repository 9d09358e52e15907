package iointercept

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteForkTeesToFile(t *testing.T) {
	dir := t.TempDir()
	var primary bytes.Buffer

	fork, err := NewWriteFork(&primary, dir, "test.stdin.txt")
	require.NoError(t, err)

	n, err := fork.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", primary.String())

	require.NoError(t, fork.Close())

	// Give the background writer a moment to flush on shutdown.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, "test.stdin.txt"))
		return err == nil && bytes.Contains(data, []byte("hello"))
	}, time.Second, 10*time.Millisecond)
}

func TestWriteForkNeverBlocksUnderBurstyWrites(t *testing.T) {
	dir := t.TempDir()
	var primary bytes.Buffer

	fork, err := NewWriteFork(&primary, dir, "test.stdout.txt")
	require.NoError(t, err)

	// Primary writes must always succeed immediately: the tee queue is
	// unbounded, so a slow disk backs up the queue, not the caller.
	for i := 0; i < 1000; i++ {
		_, err := fork.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.Equal(t, 1000, primary.Len())
}

func TestReadForkTeesToFile(t *testing.T) {
	dir := t.TempDir()
	src := bytes.NewBufferString("response-bytes")

	fork, err := NewReadFork(src, dir, "test.lsp.txt")
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := fork.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "response-bytes", string(buf[:n]))
}
