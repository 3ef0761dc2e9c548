package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIdentity(t *testing.T) {
	h := HashIdentity("user@example.com", "salt-1")

	assert.Len(t, h, 64)
	assert.Equal(t, h, HashIdentity("user@example.com", "salt-1"))
	assert.NotEqual(t, h, HashIdentity("user@example.com", "salt-2"))
	assert.NotEqual(t, h, HashIdentity("other@example.com", "salt-1"))

	// Delimited input prevents ambiguous salt/id boundaries.
	assert.NotEqual(t, HashIdentity("bc", "a"), HashIdentity("c", "ab"))
}

func TestHashString(t *testing.T) {
	assert.Equal(t, HashString("question"), HashString("question"))
	assert.NotEqual(t, HashString("question"), HashString("Question"))
	assert.Len(t, HashString(""), 64)
}
