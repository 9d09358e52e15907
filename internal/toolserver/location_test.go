package toolserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationInsideWorkspaceIsRelative(t *testing.T) {
	loc, ok := newMcpLocation("/ws", "file:///ws/src/lib.rs", 12, 7, false)
	require.True(t, ok)
	assert.Equal(t, "src/lib.rs", loc.File)
	assert.Equal(t, uint32(13), loc.Line)
	assert.Equal(t, uint32(8), loc.Character)
}

func TestLocationOutsideWorkspaceDroppedByDefault(t *testing.T) {
	_, ok := newMcpLocation("/ws", "file:///other/dep/src/lib.rs", 0, 7, false)
	assert.False(t, ok)
}

func TestLocationOutsideWorkspaceKeptWhenRequested(t *testing.T) {
	loc, ok := newMcpLocation("/ws", "file:///other/dep/src/lib.rs", 0, 7, true)
	require.True(t, ok)
	assert.Equal(t, "/other/dep/src/lib.rs", loc.File)
}

func TestPathToURIHandlesAbsoluteAndRelative(t *testing.T) {
	assert.Equal(t, "file:///abs/path", pathToURI("/ws", "/abs/path"))
	assert.Equal(t, "file:///ws/rel/path", pathToURI("/ws", "rel/path"))
}
