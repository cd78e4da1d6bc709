package semihosting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exitSentinel is what the test exitFn panics with so that the caller of
// Exit stops at the trap the way the real host would stop it.
type exitSentinel int

func trapExits(t *testing.T) {
	t.Helper()
	prevExit, prevFlushers := exitFn, flushers
	exitFn = func(code int) { panic(exitSentinel(code)) }
	flushers = nil
	flushed = false
	t.Cleanup(func() {
		exitFn, flushers = prevExit, prevFlushers
		flushed = false
	})
}

func TestExitReportsCodeAndReason(t *testing.T) {
	trapExits(t)
	require.PanicsWithValue(t, exitSentinel(37), func() { Exit(37) })
	assert.Equal(t, uint64(SemihostingStopApplicationExit), paramBlock[0])
	assert.Equal(t, uint64(37), paramBlock[1])
}

func TestShutdownNeverReturns(t *testing.T) {
	trapExits(t)
	returned := false
	require.PanicsWithValue(t, exitSentinel(FailureExitCode), func() {
		Shutdown()
		returned = true
	})
	assert.False(t, returned)
}

func TestFlushersRunInReverseOnce(t *testing.T) {
	trapExits(t)
	var order []string
	OnShutdown(func() { order = append(order, "log") })
	OnShutdown(func() { order = append(order, "console") })

	require.Panics(t, func() { Exit(0) })
	require.Panics(t, func() { Exit(0) })
	assert.Equal(t, []string{"console", "log"}, order)
}

func TestClockIsMonotonic(t *testing.T) {
	a := Clock()
	b := Clock()
	assert.LessOrEqual(t, a, b)
	assert.NotEqual(t, ^uint64(0), a)
}
