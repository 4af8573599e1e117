//go:build windows

package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemChannel_CloseReleasesQueryPublishers(t *testing.T) {
	local := &systemQuery{dir: Backward, publishers: map[string]evtHandle{"Microsoft-Windows-Security-Auditing": 0}}
	remote := &systemQuery{dir: Backward, publishers: map[string]evtHandle{"Microsoft-Windows-Security-Auditing": 0}}
	c := &SystemChannel{queries: map[Handle]*systemQuery{1: local, 2: remote}}

	require.NoError(t, c.Close(1))
	assert.Empty(t, local.publishers)
	assert.Len(t, remote.publishers, 1, "another session's metadata stays open")

	_, err := c.ReadBatch(context.Background(), 1, Backward)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, c.Close(1), ErrUnknownHandle)
}
