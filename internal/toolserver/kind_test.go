package toolserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindNameMatchesCanonicalSpelling(t *testing.T) {
	assert.Equal(t, "Function", kindName(12))
	assert.Equal(t, "Struct", kindName(23))
}

func TestKindNameUnknownFallsBack(t *testing.T) {
	assert.Equal(t, "Unknown", kindName(9999))
}
