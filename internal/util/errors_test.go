package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "context"))

	orig := errors.New("original")
	err := WrapError(orig, "context")
	require.Error(t, err)
	assert.Equal(t, "context: original", err.Error())
	assert.ErrorIs(t, err, orig)
}

func TestWrapErrorf(t *testing.T) {
	assert.NoError(t, WrapErrorf(nil, "step %d", 1))

	err := WrapErrorf(ErrNotFound, "profile %q", "office")
	assert.Equal(t, `profile "office": not found`, err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotSupported(err))
}

func TestMultiError(t *testing.T) {
	m := NewMultiError()
	assert.NoError(t, m.Err())
	assert.Equal(t, "", m.Error())

	m.Add(nil)
	assert.Equal(t, 0, m.Len())

	m.Add(errors.New("a"))
	assert.Equal(t, "a", m.Error())

	m.Add(ErrNotSupported)
	m.Add(errors.New("c"))
	require.Error(t, m.Err())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "a; "+ErrNotSupported.Error(), m.Summary(2))
	assert.Contains(t, m.Error(), "3 errors occurred")
	assert.ErrorIs(t, m.Err(), ErrNotSupported)
}
