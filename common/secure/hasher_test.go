package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	content := []byte("mri scan bytes")

	h1, err := Hash(content)
	require.NoError(t, err)
	h2, err := Hash(content)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "sha-256 hex digest is 64 characters")
}

func TestHash_DifferentContent(t *testing.T) {
	h1, err := Hash([]byte("scan one"))
	require.NoError(t, err)
	h2, err := Hash([]byte("scan two"))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestHash_EmptyInput(t *testing.T) {
	_, err := Hash(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Hash([]byte{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}
