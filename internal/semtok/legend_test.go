package semtok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSingleLineTokens(t *testing.T) {
	legend := New([]string{"function", "namespace"}, []string{"declaration", "public"})
	content := "fn main() {}\nmod sub {}\n"

	// token 1: line 0, char 3, len 4 ("main"), type=function(0), mods=none
	// token 2: line 1, char 4, len 3 ("sub"), type=namespace(1), mods=declaration(bit0)
	data := []uint32{
		0, 3, 4, 0, 0,
		1, 4, 3, 1, 1,
	}

	doc, err := legend.Decode(content, data)
	require.NoError(t, err)

	matches := doc.Query("main", nil, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Line)
	assert.Equal(t, uint32(4), matches[0].Character)
	assert.Equal(t, "function", matches[0].Type)
	assert.Empty(t, matches[0].Modifiers())

	matches = doc.Query("sub", nil, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(2), matches[0].Line)
	assert.Equal(t, []string{"declaration"}, matches[0].Modifiers())
}

func TestDecodeSameLineAccumulatesStart(t *testing.T) {
	legend := New([]string{"variable"}, nil)
	content := "a b c\n"

	data := []uint32{
		0, 0, 1, 0, 0,
		0, 2, 1, 0, 0,
		0, 2, 1, 0, 0,
	}

	doc, err := legend.Decode(content, data)
	require.NoError(t, err)

	matches := doc.Query("a", nil, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Character)

	matches = doc.Query("b", nil, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(3), matches[0].Character)

	matches = doc.Query("c", nil, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(5), matches[0].Character)
}

func TestQueryTieBreaksByDistance(t *testing.T) {
	legend := New([]string{"function"}, nil)
	content := "sub sub sub\n"

	data := []uint32{
		0, 0, 3, 0, 0,
		0, 4, 3, 0, 0,
		0, 4, 3, 0, 0,
	}
	doc, err := legend.Decode(content, data)
	require.NoError(t, err)

	line := uint32(1)
	char := uint32(5)
	matches := doc.Query("sub", &line, &char)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(5), matches[0].Character)
}

func TestDecodeRejectsOutOfBoundsRange(t *testing.T) {
	legend := New([]string{"function"}, nil)
	_, err := legend.Decode("x\n", []uint32{0, 0, 10, 0, 0})
	require.Error(t, err)
}

func TestDecodeRejectsUnknownTokenType(t *testing.T) {
	legend := New([]string{"function"}, nil)
	_, err := legend.Decode("abc\n", []uint32{0, 0, 1, 5, 0})
	require.Error(t, err)
}
