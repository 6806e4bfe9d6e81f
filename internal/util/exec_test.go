//go:build !windows

package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner(t *testing.T) {
	run := NewCommandRunner(5 * time.Second)

	out, err := run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sh failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestCommandRunner_Timeout(t *testing.T) {
	run := NewCommandRunner(50 * time.Millisecond)

	_, err := run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
