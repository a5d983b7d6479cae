package services

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsLifecycle(t *testing.T) {
	ss := NewSessionsService()
	defer ss.Close()

	sessionId, expiresAt := ss.CreateSession()
	assert.NotEmpty(t, sessionId)
	assert.Greater(t, expiresAt, time.Now().UnixMilli())
	assert.True(t, ss.IsSessionValid(sessionId))

	assert.False(t, ss.IsSessionValid("unknown-session"))

	ss.InvalidateSession(sessionId)
	assert.False(t, ss.IsSessionValid(sessionId))
}

func TestSessionsCloseStopsSweeper(t *testing.T) {
	baseline := runtime.NumGoroutine()

	ss := NewSessionsService()
	require.NoError(t, ss.Close())

	// the sweeper goroutine must exit once Close is called
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 2*time.Second, 10*time.Millisecond)
}
